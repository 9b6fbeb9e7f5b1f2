// Package catalog serves the storefront collections (categories, brands,
// products, orders and the reference data around them) through one generic
// CRUD pipeline configured per collection.
package catalog

import (
	"context"

	"eshop/internal/docstore"
	"eshop/internal/payload"
	"eshop/internal/query"
	"eshop/pkg/platform/middleware/auth"
)

// Resource describes one collection: what clients may filter and write,
// which uploads it accepts and the hooks that derive stored fields.
type Resource struct {
	Collection string
	// Path is the route segment under the API prefix.
	Path string
	// Singular and Plural key the document(s) under "data" in responses.
	Singular string
	Plural   string
	NotFound string

	Schema     query.Schema
	Writable   []string
	JSONFields []string
	// Required lists dotted paths a created document must carry.
	Required []string
	Defaults docstore.Document
	Images   []ImageSlot

	BeforeCreate Hook
	BeforeUpdate Hook
	AfterDelete  func(ctx context.Context, doc docstore.Document) error
}

// ImageSlot maps a single-file upload field onto a URL field, e.g. the
// "logo" form file onto logo_url.
type ImageSlot struct {
	Form   string
	Field  string
	Folder string
}

// Hook adjusts a pending write. Returning an error aborts it and discards
// anything uploaded for it.
type Hook func(ctx context.Context, m *Mutation) error

// Mutation is a create or update in flight.
type Mutation struct {
	ID        string
	Existing  docstore.Document
	Changes   docstore.Document
	Files     map[string][]*payload.File
	Principal *auth.Principal

	uploaded []string
	replaced []string
}

// Creating reports whether the mutation inserts a new document.
func (m *Mutation) Creating() bool {
	return m.Existing == nil
}

// Value returns the pending value at path, falling back to the stored one.
func (m *Mutation) Value(path string) (any, bool) {
	if v, ok := m.Changes.Get(path); ok {
		return v, true
	}
	if m.Existing != nil {
		return m.Existing.Get(path)
	}
	return nil, false
}

// String is Value for string fields.
func (m *Mutation) String(path string) string {
	v, _ := m.Value(path)
	s, _ := v.(string)
	return s
}

// Replace schedules url for deletion once the write succeeds.
func (m *Mutation) Replace(urls ...string) {
	for _, u := range urls {
		if u != "" {
			m.replaced = append(m.replaced, u)
		}
	}
}
