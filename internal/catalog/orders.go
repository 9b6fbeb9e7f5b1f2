package catalog

import (
	"context"
	"fmt"
	"net/url"
	"slices"

	"github.com/shopspring/decimal"

	"eshop/internal/auth/models"
	"eshop/internal/docstore"
	"eshop/internal/payload"
	"eshop/internal/query"
	dErrors "eshop/pkg/domain-errors"
	"eshop/pkg/platform/middleware/auth"
)

const (
	Orders = "orders"

	StatusPending    = "Pending"
	StatusProcessing = "Processing"
	StatusShipped    = "Shipped"
	StatusDelivered  = "Delivered"
	StatusCancelled  = "Cancelled"

	msgOrderNotFound = "No order found with that ID"
)

// orderTransitions lists the statuses each status may move to.
var orderTransitions = map[string][]string{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  nil,
	StatusCancelled:  nil,
}

func (c *Catalog) orderResource() *Resource {
	return &Resource{
		Collection: Orders,
		Path:       "orders",
		Singular:   "order",
		Plural:     "orders",
		NotFound:   msgOrderNotFound,
		Schema: query.Schema{
			Fields: map[string]query.Kind{
				"user_id":        query.KindID,
				"status":         query.KindString,
				"total_amount":   query.KindNumber,
				"currency":       query.KindString,
				"payment.status": query.KindString,
				"payment.method": query.KindString,
			},
		},
		Writable:   []string{"shipping_address", "items", "currency", "shipping_cost", "tax_amount", "payment"},
		JSONFields: []string{"shipping_address", "items", "payment"},
		Required:   []string{"user_id", "shipping_address", "items", "total_amount"},
		Defaults:   docstore.Document{"currency": "SAR"},

		BeforeCreate: c.priceOrder,
	}
}

func isAdmin(p *auth.Principal) bool {
	return p != nil && p.Role == string(models.RoleAdmin)
}

// ownership restricts non-admin callers to their own orders.
func ownership(p *auth.Principal) []query.Predicate {
	if isAdmin(p) {
		return nil
	}
	id := ""
	if p != nil {
		id = p.ID
	}
	return []query.Predicate{query.Eq("user_id", query.KindID, id)}
}

func (c *Catalog) ListOrders(ctx context.Context, params url.Values) ([]docstore.Document, error) {
	return c.List(ctx, c.orders, params, ownership(auth.PrincipalFrom(ctx))...)
}

// GetOrder hides other customers' orders behind not found.
func (c *Catalog) GetOrder(ctx context.Context, id string) (docstore.Document, error) {
	doc, err := c.Get(ctx, c.orders, id)
	if err != nil {
		return nil, err
	}
	p := auth.PrincipalFrom(ctx)
	if !isAdmin(p) && (p == nil || doc.String("user_id") != p.ID) {
		return nil, dErrors.New(dErrors.CodeNotFound, msgOrderNotFound)
	}
	return doc, nil
}

func (c *Catalog) CreateOrder(ctx context.Context, p *payload.Payload) (docstore.Document, error) {
	return c.Create(ctx, c.orders, p)
}

func (c *Catalog) DeleteOrder(ctx context.Context, id string) error {
	return c.Delete(ctx, c.orders, id)
}

// UpdateOrderStatus moves an order along the fulfilment workflow.
func (c *Catalog) UpdateOrderStatus(ctx context.Context, id, status string) (docstore.Document, error) {
	if _, known := orderTransitions[status]; !known {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("Invalid Input Data. Invalid order status: %s", status))
	}
	order, err := c.Get(ctx, c.orders, id)
	if err != nil {
		return nil, err
	}
	current := order.String("status")
	if !slices.Contains(orderTransitions[current], status) {
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("Cannot change order status from %s to %s", current, status))
	}
	doc, err := c.docs.Update(ctx, Orders, id, docstore.Document{"status": status})
	if err != nil {
		return nil, docstore.DomainError(err, msgOrderNotFound)
	}
	c.metrics.incWrite(Orders, "status")
	c.logger.InfoContext(ctx, "order status changed",
		"order_id", id,
		"from", current,
		"to", status,
	)
	return doc, nil
}

// priceOrder snapshots every item from the product it references and
// computes line totals and total_amount. Client-sent prices are ignored.
func (c *Catalog) priceOrder(ctx context.Context, m *Mutation) error {
	if m.Principal == nil {
		return dErrors.New(dErrors.CodeUnauthorized, "You are not logged in! Please log in to get access.")
	}
	m.Changes["user_id"] = m.Principal.ID

	if addr, ok := m.Changes["shipping_address"]; ok {
		if _, isObject := addr.(map[string]any); !isObject {
			return dErrors.New(dErrors.CodeValidation, "Invalid Input Data. shipping_address must be an object")
		}
	}

	raw, _ := m.Changes["items"].([]any)
	if len(raw) == 0 {
		return dErrors.New(dErrors.CodeValidation, "Invalid Input Data. An order needs at least one item")
	}
	items := make([]any, 0, len(raw))
	total := decimal.Zero
	for i, v := range raw {
		item, err := c.orderItem(ctx, i+1, v)
		if err != nil {
			return err
		}
		line, _ := decimalOf(item["total"])
		total = total.Add(line)
		items = append(items, item)
	}

	for _, field := range []string{"shipping_cost", "tax_amount"} {
		amount := decimal.Zero
		if v, ok := m.Changes[field]; ok && v != nil {
			d, valid := decimalOf(v)
			if !valid || d.IsNegative() {
				return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("Invalid Input Data. %s must be a non-negative number", field))
			}
			amount = d
		}
		m.Changes[field] = amount.InexactFloat64()
		total = total.Add(amount)
	}

	method := ""
	if pay, ok := m.Changes["payment"].(map[string]any); ok {
		method, _ = pay["method"].(string)
	}
	m.Changes["payment"] = map[string]any{"method": method, "status": StatusPending}
	m.Changes["items"] = items
	m.Changes["total_amount"] = total.Round(2).InexactFloat64()
	m.Changes["status"] = StatusPending
	return nil
}

func (c *Catalog) orderItem(ctx context.Context, n int, v any) (map[string]any, error) {
	entry, ok := v.(map[string]any)
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("Invalid Input Data. Item %d must be an object", n))
	}
	qty, ok := decimalOf(entry["quantity"])
	if !ok || !qty.IsInteger() || qty.LessThan(decimal.NewFromInt(1)) {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("Invalid Input Data. Item %d quantity must be a positive integer", n))
	}
	productID, _ := entry["product_id"].(string)
	product, err := c.docs.FindByID(ctx, Products, productID)
	if err != nil {
		if err := docstore.DomainError(err, ""); dErrors.CodeOf(err) != dErrors.CodeInternal {
			return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("Item %d: product not found", n))
		}
		return nil, docstore.DomainError(err, "")
	}
	if !product.Bool("is_active") {
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("Item %d: product is not available", n))
	}

	unit := decimal.NewFromFloat(product.Float("price.current"))
	return map[string]any{
		"product_id": productID,
		"sku":        product.String("sku"),
		"name":       product["name"],
		"quantity":   qty.InexactFloat64(),
		"unit_price": unit.InexactFloat64(),
		"total":      unit.Mul(qty).Round(2).InexactFloat64(),
	}, nil
}
