package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"eshop/internal/docstore"
	"eshop/internal/media"
	"eshop/internal/payload"
	"eshop/internal/query"
	dErrors "eshop/pkg/domain-errors"
	"eshop/pkg/platform/middleware/auth"
)

const msgNoChanges = "No updatable fields provided"

// Catalog runs the CRUD pipeline for every catalog resource.
type Catalog struct {
	docs    docstore.Store
	media   media.Storage
	logger  *slog.Logger
	metrics *Metrics

	categories      *Resource
	brands          *Resource
	products        *Resource
	orders          *Resource
	regions         *Resource
	areas           *Resource
	sliders         *Resource
	productServices *Resource
}

type Option func(*Catalog)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Catalog) {
		c.metrics = m
	}
}

func New(docs docstore.Store, storage media.Storage, opts ...Option) (*Catalog, error) {
	if docs == nil {
		return nil, errors.New("document store is required")
	}
	if storage == nil {
		return nil, errors.New("media storage is required")
	}
	c := &Catalog{
		docs:   docs,
		media:  storage,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.categories = c.categoryResource()
	c.brands = c.brandResource()
	c.products = c.productResource()
	c.orders = c.orderResource()
	c.regions = c.regionResource()
	c.areas = c.areaResource()
	c.sliders = sliderResource()
	c.productServices = productServiceResource()
	return c, nil
}

// Resources returns the collections served by the generic routes.
func (c *Catalog) Resources() []*Resource {
	return []*Resource{c.categories, c.brands, c.products, c.regions, c.areas, c.sliders, c.productServices}
}

// List runs the query pipeline over params. scope adds filters the client
// cannot override, such as order ownership.
func (c *Catalog) List(ctx context.Context, res *Resource, params url.Values, scope ...query.Predicate) ([]docstore.Document, error) {
	spec, err := query.New(res.Schema, params).
		Filter().Search().Sort().LimitFields().Paginate().
		Where(scope...).
		Build()
	if err != nil {
		return nil, err
	}
	docs, err := c.docs.Find(ctx, res.Collection, spec)
	if err != nil {
		return nil, docstore.DomainError(err, res.NotFound)
	}
	return docs, nil
}

func (c *Catalog) Get(ctx context.Context, res *Resource, id string) (docstore.Document, error) {
	doc, err := c.docs.FindByID(ctx, res.Collection, id)
	if err != nil {
		return nil, docstore.DomainError(err, res.NotFound)
	}
	return doc, nil
}

// Create whitelists and decodes the payload, runs the create hook, uploads
// images and inserts the document.
func (c *Catalog) Create(ctx context.Context, res *Resource, p *payload.Payload) (docstore.Document, error) {
	m, err := c.mutation(ctx, res, p)
	if err != nil {
		return nil, err
	}
	for k, v := range res.Defaults {
		if _, ok := m.Changes[k]; !ok {
			m.Changes[k] = v
		}
	}
	if err := c.prepare(ctx, res, m, res.BeforeCreate); err != nil {
		return nil, err
	}
	if err := checkRequired(res, m.Changes); err != nil {
		c.discard(ctx, m)
		return nil, err
	}

	doc, err := c.docs.Insert(ctx, res.Collection, m.Changes)
	if err != nil {
		c.discard(ctx, m)
		return nil, docstore.DomainError(err, res.NotFound)
	}
	c.settle(ctx, m)
	c.metrics.incWrite(res.Collection, "create")
	c.logger.InfoContext(ctx, "catalog document created",
		"collection", res.Collection,
		"id", doc.ID(),
	)
	return doc, nil
}

// Update applies a partial update. Images replaced by the update are
// deleted once the write succeeds.
func (c *Catalog) Update(ctx context.Context, res *Resource, id string, p *payload.Payload) (docstore.Document, error) {
	existing, err := c.Get(ctx, res, id)
	if err != nil {
		return nil, err
	}
	m, err := c.mutation(ctx, res, p)
	if err != nil {
		return nil, err
	}
	m.ID = id
	m.Existing = existing
	if len(m.Changes) == 0 && len(m.Files) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, msgNoChanges)
	}
	if err := c.prepare(ctx, res, m, res.BeforeUpdate); err != nil {
		return nil, err
	}

	doc, err := c.docs.Update(ctx, res.Collection, id, m.Changes)
	if err != nil {
		c.discard(ctx, m)
		return nil, docstore.DomainError(err, res.NotFound)
	}
	c.settle(ctx, m)
	c.metrics.incWrite(res.Collection, "update")
	return doc, nil
}

// Delete removes the document, its images and runs the delete hook.
func (c *Catalog) Delete(ctx context.Context, res *Resource, id string) error {
	doc, err := c.docs.Delete(ctx, res.Collection, id)
	if err != nil {
		return docstore.DomainError(err, res.NotFound)
	}
	c.metrics.incWrite(res.Collection, "delete")

	urls := make([]string, 0, len(res.Images))
	for _, slot := range res.Images {
		urls = append(urls, doc.String(slot.Field))
	}
	c.removeMedia(ctx, res.Collection, urls...)

	if res.AfterDelete != nil {
		if err := res.AfterDelete(ctx, doc); err != nil {
			return docstore.DomainError(err, res.NotFound)
		}
	}
	return nil
}

func (c *Catalog) mutation(ctx context.Context, res *Resource, p *payload.Payload) (*Mutation, error) {
	if p == nil {
		p = &payload.Payload{}
	}
	fields, err := payload.Normalize(p.Fields, res.Writable, res.JSONFields)
	if err != nil {
		return nil, err
	}
	changes := docstore.Document(fields)
	if err := coerce(res.Schema, changes); err != nil {
		return nil, err
	}
	return &Mutation{
		Changes:   changes,
		Files:     p.Files,
		Principal: auth.PrincipalFrom(ctx),
	}, nil
}

func (c *Catalog) prepare(ctx context.Context, res *Resource, m *Mutation, hook Hook) error {
	if hook != nil {
		if err := hook(ctx, m); err != nil {
			c.discard(ctx, m)
			return err
		}
	}
	if err := c.attachImages(ctx, res, m); err != nil {
		c.discard(ctx, m)
		return err
	}
	return nil
}

// coerce converts form-encoded scalars of number, bool and id fields to
// their declared kinds. Empty ids clear the reference.
func coerce(schema query.Schema, changes docstore.Document) error {
	for field, v := range changes {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		kind, ok := schema.Fields[field]
		if !ok || kind == query.KindString || kind == query.KindTime {
			continue
		}
		if kind == query.KindID && (raw == "" || raw == "null") {
			changes[field] = nil
			continue
		}
		value, err := query.Convert(kind, raw)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, raw))
		}
		changes[field] = value
	}
	return nil
}

func checkRequired(res *Resource, doc docstore.Document) error {
	var missing []string
	for _, path := range res.Required {
		v, ok := doc.Get(path)
		if !ok || v == nil || v == "" {
			missing = append(missing, path)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	msg := "Invalid Input Data."
	for _, path := range missing {
		msg += fmt.Sprintf(" %s is required.", path)
	}
	return dErrors.New(dErrors.CodeValidation, msg)
}
