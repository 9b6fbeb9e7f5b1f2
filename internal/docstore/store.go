// Package docstore persists JSON documents grouped in collections and
// executes query.Spec values against them. Postgres (JSONB) backs
// production; the in-memory store backs tests and DB_ADAPTER=memory.
package docstore

import (
	"context"
	"fmt"

	"eshop/internal/query"
	"eshop/internal/sentinel"
)

// Store is the document store boundary every service talks to.
//
// Error contract: missing documents wrap sentinel.ErrNotFound, unique
// violations are *DuplicateKeyError (wrapping sentinel.ErrDuplicate) and
// malformed ids wrap sentinel.ErrInvalidID.
type Store interface {
	Find(ctx context.Context, collection string, spec query.Spec) ([]Document, error)
	FindOne(ctx context.Context, collection string, filters ...query.Predicate) (Document, error)
	FindByID(ctx context.Context, collection, id string) (Document, error)
	Count(ctx context.Context, collection string, filters ...query.Predicate) (int, error)
	Insert(ctx context.Context, collection string, doc Document) (Document, error)
	Update(ctx context.Context, collection, id string, changes Document) (Document, error)
	UpdateMany(ctx context.Context, collection string, filters []query.Predicate, changes Document) (int, error)
	Delete(ctx context.Context, collection, id string) (Document, error)
}

// DuplicateKeyError names the unique field a write collided on.
type DuplicateKeyError struct {
	Collection string
	Field      string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate %s.%s", e.Collection, e.Field)
}

func (e *DuplicateKeyError) Unwrap() error {
	return sentinel.ErrDuplicate
}

// UniqueIndex declares a field whose value must be unique in a collection.
// The Postgres migrations create the matching partial indexes; Name is the
// index name used there.
type UniqueIndex struct {
	Collection string
	Field      string
}

func (u UniqueIndex) Name() string {
	return fmt.Sprintf("documents_%s_%s_key", u.Collection, sanitizeName(u.Field))
}

// UniqueIndexes is the set of unique constraints in force.
var UniqueIndexes = []UniqueIndex{
	{Collection: "users", Field: "email"},
	{Collection: "users", Field: "phone"},
	{Collection: "products", Field: "sku"},
	{Collection: "products", Field: "slug"},
	{Collection: "categories", Field: "slug"},
	{Collection: "brands", Field: "slug"},
	{Collection: "regions", Field: "source_id"},
	{Collection: "areas", Field: "source_id"},
}

func sanitizeName(field string) string {
	out := []byte(field)
	for i, c := range out {
		if c == '.' {
			out[i] = '_'
		}
	}
	return string(out)
}

func notFound(collection, id string) error {
	return fmt.Errorf("%s %s not found: %w", collection, id, sentinel.ErrNotFound)
}
