package docstore

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"eshop/internal/query"
	"eshop/internal/sentinel"
	"eshop/pkg/requestcontext"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
	ctx   context.Context
	now   time.Time
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *MemoryStoreSuite) insert(collection string, doc Document) Document {
	stored, err := s.store.Insert(s.ctx, collection, doc)
	s.Require().NoError(err)
	return stored
}

func (s *MemoryStoreSuite) TestInsert() {
	s.T().Run("assigns identity, timestamps and version", func(t *testing.T) {
		doc := s.insert("brands", Document{"name": "Acme", "rank": 3})

		require.NotEmpty(t, doc.ID())
		assert.Equal(t, s.now.Format(time.RFC3339Nano), doc[query.FieldCreatedAt])
		assert.Equal(t, doc[query.FieldCreatedAt], doc[query.FieldUpdatedAt])
		assert.Equal(t, float64(0), doc[query.FieldVersion])
		assert.Equal(t, float64(3), doc["rank"], "numbers are stored in JSON form")
	})

	s.T().Run("rejects duplicate unique values", func(t *testing.T) {
		s.insert("users", Document{"email": "a@example.com"})
		_, err := s.store.Insert(s.ctx, "users", Document{"email": "a@example.com"})

		var dup *DuplicateKeyError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "email", dup.Field)
		assert.ErrorIs(t, err, sentinel.ErrDuplicate)
	})

	s.T().Run("missing unique values do not collide", func(t *testing.T) {
		s.insert("users", Document{"email": "b@example.com"})
		_, err := s.store.Insert(s.ctx, "users", Document{"email": "c@example.com"})
		assert.NoError(t, err)
	})

	s.T().Run("rejects a malformed explicit id", func(t *testing.T) {
		_, err := s.store.Insert(s.ctx, "brands", Document{query.FieldID: "not-a-uuid"})
		assert.ErrorIs(t, err, sentinel.ErrInvalidID)
	})
}

func (s *MemoryStoreSuite) TestFindByID() {
	doc := s.insert("brands", Document{"name": "Acme"})

	found, err := s.store.FindByID(s.ctx, "brands", doc.ID())
	s.Require().NoError(err)
	s.Equal("Acme", found.String("name"))

	found["name"] = "mutated"
	again, err := s.store.FindByID(s.ctx, "brands", doc.ID())
	s.Require().NoError(err)
	s.Equal("Acme", again.String("name"), "callers get copies")

	_, err = s.store.FindByID(s.ctx, "brands", "00000000-0000-0000-0000-000000000000")
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByID(s.ctx, "brands", "123")
	s.ErrorIs(err, sentinel.ErrInvalidID)
}

func (s *MemoryStoreSuite) TestFind() {
	s.insert("products", Document{"name": Document{"en": "Washer"}, "price": Document{"current": 500}, "tags": []any{"home"}})
	s.insert("products", Document{"name": Document{"en": "Dryer"}, "price": Document{"current": 900}, "tags": []any{"home", "sale"}})
	s.insert("products", Document{"name": Document{"en": "Phone"}, "price": Document{"current": 300}})

	s.T().Run("range filters and sort", func(t *testing.T) {
		docs, err := s.store.Find(s.ctx, "products", query.Spec{
			Filters: []query.Predicate{{Field: "price.current", Kind: query.KindNumber, Op: query.OpGte, Value: 400.0}},
			Sort:    []query.SortKey{{Field: "price.current", Kind: query.KindNumber, Desc: true}},
		})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "Dryer", docs[0].String("name.en"))
		assert.Equal(t, "Washer", docs[1].String("name.en"))
	})

	s.T().Run("equality matches array elements", func(t *testing.T) {
		docs, err := s.store.Find(s.ctx, "products", query.Spec{
			Filters: []query.Predicate{query.Eq("tags", query.KindString, "sale")},
		})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "Dryer", docs[0].String("name.en"))
	})

	s.T().Run("case-insensitive search", func(t *testing.T) {
		docs, err := s.store.Find(s.ctx, "products", query.Spec{
			Search: &query.Search{Keyword: "PHO", Fields: []string{"name.en"}},
		})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "Phone", docs[0].String("name.en"))
	})

	s.T().Run("skip and limit page the sorted result", func(t *testing.T) {
		docs, err := s.store.Find(s.ctx, "products", query.Spec{
			Sort:  []query.SortKey{{Field: "price.current", Kind: query.KindNumber}},
			Limit: 1,
			Skip:  1,
		})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "Washer", docs[0].String("name.en"))
	})

	s.T().Run("page past the end is empty", func(t *testing.T) {
		params := url.Values{"page": {"922337203685477580"}, "limit": {"100"}}
		spec, err := query.New(query.Schema{}, params).Paginate().Build()
		require.NoError(t, err)
		docs, err := s.store.Find(s.ctx, "products", spec)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	s.T().Run("projection", func(t *testing.T) {
		docs, err := s.store.Find(s.ctx, "products", query.Spec{
			Projection: query.Projection{Fields: []string{"name.en"}},
			Limit:      1,
		})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.NotEmpty(t, docs[0].ID())
		assert.NotEmpty(t, docs[0].String("name.en"))
		_, hasPrice := docs[0]["price"]
		assert.False(t, hasPrice)
	})

	s.T().Run("null predicate matches missing fields", func(t *testing.T) {
		docs, err := s.store.Find(s.ctx, "products", query.Spec{
			Filters: []query.Predicate{query.IsNull("tags")},
		})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "Phone", docs[0].String("name.en"))
	})
}

func (s *MemoryStoreSuite) TestContains() {
	s.insert("products", Document{"categories": []any{Document{"category_id": "c1", "name": "TV"}}})
	s.insert("products", Document{"categories": []any{Document{"category_id": "c2", "name": "Audio"}}})

	n, err := s.store.Count(s.ctx, "products", query.Contains("categories", map[string]any{"category_id": "c2"}))
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *MemoryStoreSuite) TestUpdate() {
	doc := s.insert("brands", Document{"name": "Acme", "slug": "acme", "logo": "x.png"})

	later := s.now.Add(time.Hour)
	ctx := requestcontext.WithTime(context.Background(), later)
	updated, err := s.store.Update(ctx, "brands", doc.ID(), Document{
		"name":                "Acme Corp",
		"logo":                nil,
		query.FieldCreatedAt: "1999-01-01T00:00:00Z",
	})
	s.Require().NoError(err)

	s.Equal("Acme Corp", updated.String("name"))
	s.NotContains(updated, "logo")
	s.Equal(doc[query.FieldCreatedAt], updated[query.FieldCreatedAt])
	s.Equal(later.Format(time.RFC3339Nano), updated[query.FieldUpdatedAt])
	s.Equal(float64(1), updated[query.FieldVersion])

	other := s.insert("brands", Document{"name": "Other", "slug": "other"})
	_, err = s.store.Update(s.ctx, "brands", other.ID(), Document{"slug": "acme"})
	s.ErrorIs(err, sentinel.ErrDuplicate)

	_, err = s.store.Update(s.ctx, "brands", "00000000-0000-0000-0000-000000000000", Document{"name": "x"})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestUpdateMany() {
	parent := s.insert("categories", Document{"name": "Root", "is_active": true})
	s.insert("categories", Document{"name": "Child A", "parent_id": parent.ID(), "is_active": true})
	s.insert("categories", Document{"name": "Child B", "parent_id": parent.ID(), "is_active": true})

	n, err := s.store.UpdateMany(s.ctx, "categories",
		[]query.Predicate{query.Eq("parent_id", query.KindID, parent.ID())},
		Document{"is_active": false})
	s.Require().NoError(err)
	s.Equal(2, n)

	active, err := s.store.Count(s.ctx, "categories", query.Eq("is_active", query.KindBool, true))
	s.Require().NoError(err)
	s.Equal(1, active)
}

func (s *MemoryStoreSuite) TestFindOneAndDelete() {
	doc := s.insert("users", Document{"email": "x@example.com"})

	found, err := s.store.FindOne(s.ctx, "users", query.Eq("email", query.KindString, "x@example.com"))
	s.Require().NoError(err)
	s.Equal(doc.ID(), found.ID())

	deleted, err := s.store.Delete(s.ctx, "users", doc.ID())
	s.Require().NoError(err)
	s.Equal(doc.ID(), deleted.ID())

	_, err = s.store.FindOne(s.ctx, "users", query.Eq("email", query.KindString, "x@example.com"))
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.Delete(s.ctx, "users", doc.ID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
