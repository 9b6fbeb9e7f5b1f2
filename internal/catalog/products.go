package catalog

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"eshop/internal/docstore"
	"eshop/internal/payload"
	"eshop/internal/query"
	dErrors "eshop/pkg/domain-errors"
)

const (
	Products = "products"

	relatedLimit    = 10
	maxGalleryFiles = 10
	defaultCurrency = "EGP"

	mediaMain    = "main"
	mediaGallery = "gallery"
	mediaVideo   = "video"
)

var hundred = decimal.NewFromInt(100)

func (c *Catalog) productResource() *Resource {
	return &Resource{
		Collection: Products,
		Path:       "products",
		Singular:   "product",
		Plural:     "products",
		NotFound:   "Product not found",
		Schema: query.Schema{
			Fields: map[string]query.Kind{
				"sku":                        query.KindString,
				"model":                      query.KindString,
				"slug":                       query.KindString,
				"name.en":                    query.KindString,
				"name.ar":                    query.KindString,
				"brand.brand_id":             query.KindID,
				"brand.name":                 query.KindString,
				"variant_of":                 query.KindID,
				"price.base":                 query.KindNumber,
				"price.current":              query.KindNumber,
				"price.discount_percentage":  query.KindNumber,
				"stock_quantity":             query.KindNumber,
				"is_active":                  query.KindBool,
				"reviews_summary.avg_rating": query.KindNumber,
			},
			SearchFields: []string{"name.en", "name.ar", "sku", "model"},
		},
		Writable: []string{
			"sku", "model", "name", "short_description", "description", "brand", "variant_of",
			"price", "stock_quantity", "is_active", "categories", "attributes", "meta",
		},
		JSONFields: []string{
			"name", "short_description", "description", "brand", "price", "categories", "attributes", "meta",
		},
		Required: []string{"name.en", "name.ar", "brand.name", "price.base", "price.current"},
		Defaults: docstore.Document{
			"stock_quantity":  float64(0),
			"is_active":       true,
			"reviews_summary": map[string]any{"avg_rating": float64(0), "count": float64(0)},
		},

		BeforeCreate: chain(priceHook, slugFrom("name.en"), c.assignSKU, c.productMedia),
		BeforeUpdate: chain(priceHook, slugFrom("name.en"), c.productMedia),
		AfterDelete:  c.deleteProductMedia,
	}
}

func priceHook(_ context.Context, m *Mutation) error {
	raw, ok := m.Changes["price"]
	if !ok {
		return nil
	}
	price, err := CurrentPrice(raw)
	if err != nil {
		return err
	}
	m.Changes["price"] = price
	return nil
}

// CurrentPrice validates a price object and sets current to
// base - base*discount_percentage/100, rounded to two decimals.
func CurrentPrice(raw any) (map[string]any, error) {
	price, ok := raw.(map[string]any)
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "Invalid Input Data. price must be an object")
	}
	base, ok := decimalOf(price["base"])
	if !ok || base.IsNegative() {
		return nil, dErrors.New(dErrors.CodeValidation, "Invalid Input Data. price.base must be a non-negative number")
	}
	discount := decimal.Zero
	if v, present := price["discount_percentage"]; present && v != nil {
		discount, ok = decimalOf(v)
		if !ok || discount.IsNegative() || discount.GreaterThan(hundred) {
			return nil, dErrors.New(dErrors.CodeValidation, "Invalid Input Data. price.discount_percentage must be between 0 and 100")
		}
	}
	current := base.Sub(base.Mul(discount).Div(hundred)).Round(2)

	out := maps.Clone(price)
	out["base"] = base.InexactFloat64()
	out["discount_percentage"] = discount.InexactFloat64()
	out["current"] = current.InexactFloat64()
	if cur, _ := out["currency"].(string); cur == "" {
		out["currency"] = defaultCurrency
	}
	return out, nil
}

func decimalOf(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	}
	return decimal.Decimal{}, false
}

// assignSKU generates <BRD>-<MODEL6>-<seq3> when no SKU was given.
func (c *Catalog) assignSKU(ctx context.Context, m *Mutation) error {
	if sku, _ := m.Changes["sku"].(string); strings.TrimSpace(sku) != "" {
		return nil
	}
	n, err := c.docs.Count(ctx, Products)
	if err != nil {
		return docstore.DomainError(err, c.products.NotFound)
	}
	m.Changes["sku"] = GenerateSKU(m.String("brand.name"), m.String("model"), n+1)
	return nil
}

func GenerateSKU(brand, model string, seq int) string {
	prefix := "PRD"
	if brand = strings.TrimSpace(brand); brand != "" {
		prefix = strings.ToUpper(truncate(brand, 3))
	}
	part := "GEN"
	if model = strings.Join(strings.Fields(model), ""); model != "" {
		part = strings.ToUpper(truncate(model, 6))
	}
	return fmt.Sprintf("%s-%s-%03d", prefix, part, seq)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// productMedia uploads mainImage and gallery files. New uploads replace the
// stored entries of the same kind; the rest of the list is kept.
func (c *Catalog) productMedia(ctx context.Context, m *Mutation) error {
	main := firstFile(m.Files, "mainImage")
	gallery := m.Files["gallery"]
	if main == nil && len(gallery) == 0 {
		return nil
	}
	if len(gallery) > maxGalleryFiles {
		return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("At most %d gallery files are allowed", maxGalleryFiles))
	}

	files := gallery
	if main != nil {
		files = append([]*payload.File{main}, gallery...)
	}
	objects, err := c.upload(ctx, m, Products, files...)
	if err != nil {
		return err
	}

	var mains, rest []any
	for _, item := range mediaItems(m.Existing) {
		if item["type"] == mediaMain {
			mains = append(mains, item)
		} else {
			rest = append(rest, item)
		}
	}
	if main != nil {
		m.Replace(mediaURLs(mains)...)
		mains = []any{map[string]any{"url": objects[0].URL, "type": mediaMain}}
		objects = objects[1:]
	}
	if len(gallery) > 0 {
		m.Replace(mediaURLs(rest)...)
		rest = rest[:0]
		for i, obj := range objects {
			kind := mediaGallery
			if gallery[i].IsVideo() {
				kind = mediaVideo
			}
			rest = append(rest, map[string]any{"url": obj.URL, "type": kind})
		}
	}

	items := append(mains, rest...)
	for i, item := range items {
		item.(map[string]any)["sort_order"] = float64(i)
	}
	m.Changes["media"] = items
	return nil
}

func mediaItems(doc docstore.Document) []map[string]any {
	list, _ := doc["media"].([]any)
	items := make([]map[string]any, 0, len(list))
	for _, v := range list {
		if item, ok := v.(map[string]any); ok {
			items = append(items, item)
		}
	}
	return items
}

func mediaURLs(items []any) []string {
	urls := make([]string, 0, len(items))
	for _, v := range items {
		if item, ok := v.(map[string]any); ok {
			if u, _ := item["url"].(string); u != "" {
				urls = append(urls, u)
			}
		}
	}
	return urls
}

func (c *Catalog) deleteProductMedia(ctx context.Context, doc docstore.Document) error {
	var urls []string
	for _, item := range mediaItems(doc) {
		if u, _ := item["url"].(string); u != "" {
			urls = append(urls, u)
		}
	}
	c.removeMedia(ctx, Products, urls...)
	return nil
}

// RelatedProducts returns up to ten active products sharing a category
// with id, excluding the product itself.
func (c *Catalog) RelatedProducts(ctx context.Context, id string) ([]docstore.Document, error) {
	product, err := c.Get(ctx, c.products, id)
	if err != nil {
		return nil, err
	}

	related := []docstore.Document{}
	seen := map[string]bool{id: true}
	for _, categoryID := range categoryIDs(product) {
		docs, err := c.docs.Find(ctx, Products, query.Spec{
			Filters: []query.Predicate{
				query.Contains("categories", map[string]any{"category_id": categoryID}),
				query.Eq("is_active", query.KindBool, true),
			},
			Sort:       []query.SortKey{{Field: query.FieldCreatedAt, Kind: query.KindTime, Desc: true}},
			Projection: query.Projection{Fields: []string{query.FieldVersion}, Exclude: true},
			Limit:      relatedLimit + 1,
		})
		if err != nil {
			return nil, docstore.DomainError(err, c.products.NotFound)
		}
		for _, doc := range docs {
			if seen[doc.ID()] {
				continue
			}
			seen[doc.ID()] = true
			related = append(related, doc)
			if len(related) == relatedLimit {
				return related, nil
			}
		}
	}
	return related, nil
}
