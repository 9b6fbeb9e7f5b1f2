package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"eshop/internal/query"
	"eshop/pkg/requestcontext"
)

const uniqueViolation = "23505"

// PostgresStore keeps documents as JSONB rows in the documents table.
type PostgresStore struct {
	db      *sql.DB
	tracer  trace.Tracer
	metrics *Metrics
	unique  map[string]string
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithMetrics records per-operation latency.
func WithMetrics(m *Metrics) PostgresOption {
	return func(s *PostgresStore) {
		s.metrics = m
	}
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) PostgresOption {
	return func(s *PostgresStore) {
		s.tracer = t
	}
}

// NewPostgres constructs a store over an open pgx-backed *sql.DB. The schema
// comes from the embedded migrations.
func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{
		db:     db,
		unique: map[string]string{"documents_pkey": query.FieldID},
	}
	for _, idx := range UniqueIndexes {
		s.unique[idx.Name()] = idx.Field
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("eshop/docstore")
	}
	return s
}

// observe opens a span for one operation and returns the closer.
func (s *PostgresStore) observe(ctx context.Context, collection, operation string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "docstore."+operation, trace.WithAttributes(
		attribute.String("db.collection", collection),
		attribute.String("db.operation", operation),
	))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.metrics.observe(collection, operation, time.Since(start), err)
	}
}

func (s *PostgresStore) Find(ctx context.Context, collection string, spec query.Spec) (docs []Document, err error) {
	ctx, done := s.observe(ctx, collection, "find")
	defer func() { done(err) }()

	c := &compiler{}
	where, err := c.where(collection, spec.Filters, spec.Search)
	if err != nil {
		return nil, err
	}
	order, err := orderBy(spec.Sort)
	if err != nil {
		return nil, err
	}
	stmt := "SELECT data FROM documents WHERE " + where + " ORDER BY " + order
	if spec.Limit > 0 {
		stmt += " LIMIT " + c.arg(spec.Limit)
	}
	if spec.Skip > 0 {
		stmt += " OFFSET " + c.arg(spec.Skip)
	}

	rows, err := s.db.QueryContext(ctx, stmt, c.args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer rows.Close()

	docs = []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		docs = append(docs, Project(doc, spec.Projection))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return docs, nil
}

func (s *PostgresStore) FindOne(ctx context.Context, collection string, filters ...query.Predicate) (doc Document, err error) {
	ctx, done := s.observe(ctx, collection, "find_one")
	defer func() { done(err) }()

	c := &compiler{}
	where, err := c.where(collection, filters, nil)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, "SELECT data FROM documents WHERE "+where+" ORDER BY id ASC LIMIT 1", c.args...)
	doc, err = scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(collection, "")
	}
	if err != nil {
		return nil, fmt.Errorf("find one %s: %w", collection, err)
	}
	return doc, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, collection, id string) (doc Document, err error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	ctx, done := s.observe(ctx, collection, "find_by_id")
	defer func() { done(err) }()

	row := s.db.QueryRowContext(ctx, "SELECT data FROM documents WHERE collection = $1 AND id = $2", collection, id)
	doc, err = scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s %s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *PostgresStore) Count(ctx context.Context, collection string, filters ...query.Predicate) (n int, err error) {
	ctx, done := s.observe(ctx, collection, "count")
	defer func() { done(err) }()

	c := &compiler{}
	where, err := c.where(collection, filters, nil)
	if err != nil {
		return 0, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE "+where, c.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func (s *PostgresStore) Insert(ctx context.Context, collection string, doc Document) (stored Document, err error) {
	ctx, done := s.observe(ctx, collection, "insert")
	defer func() { done(err) }()

	stored, err = prepareInsert(doc, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", collection, err)
	}
	created := stored.Time(query.FieldCreatedAt)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, version, created_at, updated_at)
		 VALUES ($1, $2, $3, 0, $4, $4)`,
		collection, stored.ID(), raw, created)
	if err != nil {
		return nil, s.mapWriteError(collection, err)
	}
	return stored, nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, changes Document) (updated Document, err error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	normalized, err := Normalize(changes)
	if err != nil {
		return nil, err
	}
	ctx, done := s.observe(ctx, collection, "update")
	defer func() { done(err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is no-op
	}()

	row := tx.QueryRowContext(ctx, "SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE", collection, id)
	existing, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", collection, id, err)
	}

	updated = merge(existing, normalized, requestcontext.Now(ctx))
	if err := s.write(ctx, tx, collection, updated); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) UpdateMany(ctx context.Context, collection string, filters []query.Predicate, changes Document) (n int, err error) {
	normalized, err := Normalize(changes)
	if err != nil {
		return 0, err
	}
	ctx, done := s.observe(ctx, collection, "update_many")
	defer func() { done(err) }()

	c := &compiler{}
	where, err := c.where(collection, filters, nil)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin update tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is no-op
	}()

	rows, err := tx.QueryContext(ctx, "SELECT data FROM documents WHERE "+where+" ORDER BY id FOR UPDATE", c.args...)
	if err != nil {
		return 0, fmt.Errorf("select %s: %w", collection, err)
	}
	var matched []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan %s: %w", collection, err)
		}
		matched = append(matched, doc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate %s: %w", collection, err)
	}

	now := requestcontext.Now(ctx)
	for _, doc := range matched {
		if err := s.write(ctx, tx, collection, merge(doc, normalized, now)); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit update: %w", err)
	}
	return len(matched), nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) (doc Document, err error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	ctx, done := s.observe(ctx, collection, "delete")
	defer func() { done(err) }()

	row := s.db.QueryRowContext(ctx, "DELETE FROM documents WHERE collection = $1 AND id = $2 RETURNING data", collection, id)
	doc, err = scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("delete %s %s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *PostgresStore) write(ctx context.Context, tx *sql.Tx, collection string, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", collection, err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE documents SET data = $3, version = $4, updated_at = $5
		 WHERE collection = $1 AND id = $2`,
		collection, doc.ID(), raw, int64(doc.Float(query.FieldVersion)), doc.Time(query.FieldUpdatedAt))
	if err != nil {
		return s.mapWriteError(collection, err)
	}
	return nil
}

// mapWriteError turns unique violations into *DuplicateKeyError.
func (s *PostgresStore) mapWriteError(collection string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		field, ok := s.unique[pgErr.ConstraintName]
		if !ok {
			field = pgErr.ConstraintName
		}
		return &DuplicateKeyError{Collection: collection, Field: field}
	}
	return fmt.Errorf("write %s: %w", collection, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

var _ Store = (*PostgresStore)(nil)
var _ Store = (*MemoryStore)(nil)
