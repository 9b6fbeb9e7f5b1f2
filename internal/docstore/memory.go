package docstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"eshop/internal/query"
	"eshop/internal/sentinel"
	"eshop/pkg/requestcontext"
)

// MemoryStore keeps documents in process memory. Safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	unique      []UniqueIndex
}

// NewMemory builds an in-memory store enforcing the given unique indexes.
// With no indexes it enforces UniqueIndexes.
func NewMemory(indexes ...UniqueIndex) *MemoryStore {
	if len(indexes) == 0 {
		indexes = UniqueIndexes
	}
	return &MemoryStore{
		collections: make(map[string]map[string]Document),
		unique:      indexes,
	}
}

func (s *MemoryStore) Find(_ context.Context, collection string, spec query.Spec) ([]Document, error) {
	s.mu.RLock()
	var hits []Document
	for _, doc := range s.collections[collection] {
		if matches(doc, spec.Filters, spec.Search) {
			hits = append(hits, doc)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(hits, func(a, b Document) int {
		return compareDocs(a, b, spec.Sort)
	})

	if spec.Skip > 0 {
		if spec.Skip >= len(hits) {
			hits = nil
		} else {
			hits = hits[spec.Skip:]
		}
	}
	if spec.Limit > 0 && len(hits) > spec.Limit {
		hits = hits[:spec.Limit]
	}

	out := make([]Document, 0, len(hits))
	for _, doc := range hits {
		out = append(out, Project(deepCopy(doc), spec.Projection))
	}
	return out, nil
}

func (s *MemoryStore) FindOne(_ context.Context, collection string, filters ...query.Predicate) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found Document
	for _, doc := range s.collections[collection] {
		if matches(doc, filters, nil) && (found == nil || doc.ID() < found.ID()) {
			found = doc
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%s not found: %w", collection, sentinel.ErrNotFound)
	}
	return deepCopy(found), nil
}

func (s *MemoryStore) FindByID(_ context.Context, collection, id string) (Document, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, notFound(collection, id)
	}
	return deepCopy(doc), nil
}

func (s *MemoryStore) Count(_ context.Context, collection string, filters ...query.Predicate) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, doc := range s.collections[collection] {
		if matches(doc, filters, nil) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Insert(ctx context.Context, collection string, doc Document) (Document, error) {
	stored, err := prepareInsert(doc, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collection(collection)
	if _, exists := docs[stored.ID()]; exists {
		return nil, &DuplicateKeyError{Collection: collection, Field: query.FieldID}
	}
	if err := s.checkUnique(collection, stored); err != nil {
		return nil, err
	}
	docs[stored.ID()] = stored
	return deepCopy(stored), nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, changes Document) (Document, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	normalized, err := Normalize(changes)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collection(collection)
	existing, ok := docs[id]
	if !ok {
		return nil, notFound(collection, id)
	}
	updated := merge(existing, normalized, requestcontext.Now(ctx))
	if err := s.checkUnique(collection, updated); err != nil {
		return nil, err
	}
	docs[id] = updated
	return deepCopy(updated), nil
}

func (s *MemoryStore) UpdateMany(ctx context.Context, collection string, filters []query.Predicate, changes Document) (int, error) {
	normalized, err := Normalize(changes)
	if err != nil {
		return 0, err
	}
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collection(collection)
	updated := make(map[string]Document)
	for id, doc := range docs {
		if matches(doc, filters, nil) {
			updated[id] = merge(doc, normalized, now)
		}
	}
	for id, doc := range updated {
		docs[id] = doc
	}
	return len(updated), nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, id string) (Document, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collection(collection)
	doc, ok := docs[id]
	if !ok {
		return nil, notFound(collection, id)
	}
	delete(docs, id)
	return doc, nil
}

// collection returns the collection map, creating it. Callers hold mu.
func (s *MemoryStore) collection(name string) map[string]Document {
	docs, ok := s.collections[name]
	if !ok {
		docs = make(map[string]Document)
		s.collections[name] = docs
	}
	return docs
}

// checkUnique rejects doc when another document shares a unique value.
// Callers hold mu.
func (s *MemoryStore) checkUnique(collection string, doc Document) error {
	for _, idx := range s.unique {
		if idx.Collection != collection {
			continue
		}
		v, ok := doc.Get(idx.Field)
		if !ok || v == nil {
			continue
		}
		for id, other := range s.collections[collection] {
			if id == doc.ID() {
				continue
			}
			if ov, ok := other.Get(idx.Field); ok && fmt.Sprint(ov) == fmt.Sprint(v) {
				return &DuplicateKeyError{Collection: collection, Field: idx.Field}
			}
		}
	}
	return nil
}

// prepareInsert normalizes doc and stamps identity, timestamps and version.
func prepareInsert(doc Document, now time.Time) (Document, error) {
	stored, err := Normalize(doc)
	if err != nil {
		return nil, err
	}
	if id := stored.ID(); id == "" {
		stored[query.FieldID] = uuid.NewString()
	} else if err := validateID(id); err != nil {
		return nil, err
	}
	stamp := now.UTC().Format(time.RFC3339Nano)
	stored[query.FieldCreatedAt] = stamp
	stored[query.FieldUpdatedAt] = stamp
	stored[query.FieldVersion] = float64(0)
	return stored, nil
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid _id %q: %w", id, sentinel.ErrInvalidID)
	}
	return nil
}
