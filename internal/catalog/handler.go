package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"eshop/internal/auth/models"
	"eshop/internal/docstore"
	"eshop/internal/payload"
	dErrors "eshop/pkg/domain-errors"
	"eshop/pkg/platform/httputil"
	"eshop/pkg/platform/middleware/auth"
	"eshop/pkg/requestcontext"
)

// Handler exposes the catalog over HTTP. Reads are public except orders;
// writes require an admin, except placing an order.
type Handler struct {
	catalog *Catalog
	gate    *auth.Gate
	logger  *slog.Logger
}

func NewHandler(c *Catalog, gate *auth.Gate, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{catalog: c, gate: gate, logger: logger}
}

type listResponse struct {
	Status  string         `json:"status"`
	Results int            `json:"results"`
	Data    map[string]any `json:"data"`
}

type docResponse struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func (r *statusRequest) Validate() error {
	if r.Status == "" {
		return dErrors.New(dErrors.CodeBadRequest, "Please provide the new status")
	}
	return nil
}

func (h *Handler) Register(r chi.Router) {
	c := h.catalog
	r.Route("/categories", func(r chi.Router) {
		r.Get("/tree", h.HandleCategoryTree)
		h.mount(r, c.categories)
	})
	r.Route("/brands", func(r chi.Router) {
		r.Get("/featured", h.HandleFeaturedBrands)
		h.mount(r, c.brands)
	})
	r.Route("/products", func(r chi.Router) {
		r.Get("/{id}/related", h.HandleRelatedProducts)
		h.mount(r, c.products)
	})
	for _, res := range []*Resource{c.regions, c.areas, c.sliders, c.productServices} {
		r.Route("/"+res.Path, func(r chi.Router) {
			h.mount(r, res)
		})
	}

	r.Route("/orders", func(r chi.Router) {
		r.Use(h.gate.Protect)
		r.Get("/", h.HandleListOrders)
		r.Post("/", h.HandleCreateOrder)
		r.Get("/{id}", h.HandleGetOrder)
		r.Group(func(r chi.Router) {
			r.Use(h.gate.RestrictTo(string(models.RoleAdmin)))
			r.Patch("/{id}", h.HandleUpdateOrderStatus)
			r.Delete("/{id}", h.HandleDeleteOrder)
		})
	})
}

// mount registers the generic list/get/create/update/delete routes.
func (h *Handler) mount(r chi.Router, res *Resource) {
	r.Get("/", h.list(res))
	r.Get("/{id}", h.get(res))
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Protect, h.gate.RestrictTo(string(models.RoleAdmin)))
		r.Post("/", h.create(res))
		r.Patch("/{id}", h.update(res))
		r.Delete("/{id}", h.remove(res))
	})
}

func (h *Handler) list(res *Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := h.catalog.List(r.Context(), res, r.URL.Query())
		if err != nil {
			h.fail(w, r, res, "list failed", err)
			return
		}
		writeList(w, res.Plural, docs)
	}
}

func (h *Handler) get(res *Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := h.catalog.Get(r.Context(), res, chi.URLParam(r, "id"))
		if err != nil {
			h.fail(w, r, res, "get failed", err)
			return
		}
		writeDoc(w, http.StatusOK, res.Singular, doc)
	}
}

func (h *Handler) create(res *Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := payload.FromRequest(r)
		if err != nil {
			h.fail(w, r, res, "failed to decode body", err)
			return
		}
		doc, err := h.catalog.Create(r.Context(), res, p)
		if err != nil {
			h.fail(w, r, res, "create failed", err)
			return
		}
		writeDoc(w, http.StatusCreated, res.Singular, doc)
	}
}

func (h *Handler) update(res *Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := payload.FromRequest(r)
		if err != nil {
			h.fail(w, r, res, "failed to decode body", err)
			return
		}
		doc, err := h.catalog.Update(r.Context(), res, chi.URLParam(r, "id"), p)
		if err != nil {
			h.fail(w, r, res, "update failed", err)
			return
		}
		writeDoc(w, http.StatusOK, res.Singular, doc)
	}
}

func (h *Handler) remove(res *Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.catalog.Delete(r.Context(), res, chi.URLParam(r, "id")); err != nil {
			h.fail(w, r, res, "delete failed", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleCategoryTree implements GET /categories/tree[?parent=id].
func (h *Handler) HandleCategoryTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.catalog.CategoryTree(r.Context(), r.URL.Query().Get("parent"))
	if err != nil {
		h.fail(w, r, h.catalog.categories, "category tree failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, docResponse{
		Status: httputil.StatusSuccess,
		Data:   map[string]any{"categories": tree},
	})
}

func (h *Handler) HandleFeaturedBrands(w http.ResponseWriter, r *http.Request) {
	docs, err := h.catalog.FeaturedBrands(r.Context())
	if err != nil {
		h.fail(w, r, h.catalog.brands, "featured brands failed", err)
		return
	}
	writeList(w, "featuredBrands", docs)
}

func (h *Handler) HandleRelatedProducts(w http.ResponseWriter, r *http.Request) {
	docs, err := h.catalog.RelatedProducts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, h.catalog.products, "related products failed", err)
		return
	}
	writeList(w, "products", docs)
}

func (h *Handler) HandleListOrders(w http.ResponseWriter, r *http.Request) {
	docs, err := h.catalog.ListOrders(r.Context(), r.URL.Query())
	if err != nil {
		h.fail(w, r, h.catalog.orders, "list orders failed", err)
		return
	}
	writeList(w, "orders", docs)
}

func (h *Handler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	doc, err := h.catalog.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, h.catalog.orders, "get order failed", err)
		return
	}
	writeDoc(w, http.StatusOK, "order", doc)
}

func (h *Handler) HandleCreateOrder(w http.ResponseWriter, r *http.Request) {
	p, err := payload.FromRequest(r)
	if err != nil {
		h.fail(w, r, h.catalog.orders, "failed to decode body", err)
		return
	}
	doc, err := h.catalog.CreateOrder(r.Context(), p)
	if err != nil {
		h.fail(w, r, h.catalog.orders, "create order failed", err)
		return
	}
	writeDoc(w, http.StatusCreated, "order", doc)
}

// HandleUpdateOrderStatus implements PATCH /orders/{id} with {"status": ...}.
func (h *Handler) HandleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[statusRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	doc, err := h.catalog.UpdateOrderStatus(ctx, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.fail(w, r, h.catalog.orders, "order status update failed", err)
		return
	}
	writeDoc(w, http.StatusOK, "order", doc)
}

func (h *Handler) HandleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, h.catalog.orders, "delete order failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeList(w http.ResponseWriter, key string, docs []docstore.Document) {
	if docs == nil {
		docs = []docstore.Document{}
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{
		Status:  httputil.StatusSuccess,
		Results: len(docs),
		Data:    map[string]any{key: docs},
	})
}

func writeDoc(w http.ResponseWriter, status int, key string, doc docstore.Document) {
	httputil.WriteJSON(w, status, docResponse{
		Status: httputil.StatusSuccess,
		Data:   map[string]any{key: doc},
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, res *Resource, msg string, err error) {
	ctx := r.Context()
	attrs := []any{
		"collection", res.Collection,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	}
	if httputil.DomainCodeToHTTPStatus(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, r, err)
}
