package user

import (
	"context"
	"fmt"
	"time"

	"eshop/internal/auth/models"
	"eshop/internal/docstore"
	"eshop/internal/query"
	"eshop/internal/sentinel"
)

// Collection is the document collection holding principals.
const Collection = "users"

// Schema is the admin list allow-list.
var Schema = query.Schema{
	Fields: map[string]query.Kind{
		"first_name":  query.KindString,
		"last_name":   query.KindString,
		"email":       query.KindString,
		"phone":       query.KindString,
		"role":        query.KindString,
		"is_verified": query.KindBool,
	},
	SearchFields: []string{"first_name", "last_name", "email"},
}

// Error Contract:
// - missing users wrap sentinel.ErrNotFound
// - email/phone collisions are *docstore.DuplicateKeyError
// - malformed ids wrap sentinel.ErrInvalidID
// Other errors are wrapped infrastructure failures.

// Store persists users as documents.
type Store struct {
	docs docstore.Store
}

func New(docs docstore.Store) *Store {
	return &Store{docs: docs}
}

func (s *Store) Create(ctx context.Context, user *models.User) (*models.User, error) {
	doc, err := docstore.Normalize(user)
	if err != nil {
		return nil, err
	}
	stored, err := s.docs.Insert(ctx, Collection, doc)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return decode(stored)
}

func (s *Store) FindByID(ctx context.Context, id string) (*models.User, error) {
	doc, err := s.docs.FindByID(ctx, Collection, id)
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return decode(doc)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, query.Eq("email", query.KindString, email))
}

func (s *Store) FindByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return s.findOne(ctx, query.Eq("google_id", query.KindString, googleID))
}

// FindByOTP returns the user whose live OTP hash is otpHash.
func (s *Store) FindByOTP(ctx context.Context, otpHash string, now time.Time) (*models.User, error) {
	return s.findOne(ctx,
		query.Eq("otp", query.KindString, otpHash),
		query.After("otp_expires", now),
	)
}

// FindByResetToken returns the user whose live reset token hash is tokenHash.
func (s *Store) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	return s.findOne(ctx,
		query.Eq("password_reset_token", query.KindString, tokenHash),
		query.After("password_reset_expires", now),
	)
}

// Update applies changes; nil values unset fields.
func (s *Store) Update(ctx context.Context, id string, changes docstore.Document) (*models.User, error) {
	doc, err := s.docs.Update(ctx, Collection, id, changes)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return decode(doc)
}

// ConsumeOTP applies changes only while otpHash is still the live OTP of
// user id. A concurrent caller that consumed it first leaves nothing to
// match, which reports sentinel.ErrNotFound.
func (s *Store) ConsumeOTP(ctx context.Context, id, otpHash string, now time.Time, changes docstore.Document) (*models.User, error) {
	return s.consume(ctx, id, changes,
		query.Eq("otp", query.KindString, otpHash),
		query.After("otp_expires", now),
	)
}

// ConsumeResetToken is ConsumeOTP for password reset tokens.
func (s *Store) ConsumeResetToken(ctx context.Context, id, tokenHash string, now time.Time, changes docstore.Document) (*models.User, error) {
	return s.consume(ctx, id, changes,
		query.Eq("password_reset_token", query.KindString, tokenHash),
		query.After("password_reset_expires", now),
	)
}

func (s *Store) consume(ctx context.Context, id string, changes docstore.Document, guard ...query.Predicate) (*models.User, error) {
	filters := append([]query.Predicate{query.Eq(query.FieldID, query.KindID, id)}, guard...)
	n, err := s.docs.UpdateMany(ctx, Collection, filters, changes)
	if err != nil {
		return nil, fmt.Errorf("consume user secret: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("consume user secret: %w", sentinel.ErrNotFound)
	}
	return s.FindByID(ctx, id)
}

// List runs a list query and returns documents stripped of secrets, so
// projections reach the caller unchanged.
func (s *Store) List(ctx context.Context, spec query.Spec) ([]docstore.Document, error) {
	docs, err := s.docs.Find(ctx, Collection, spec)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for _, doc := range docs {
		models.StripSensitive(doc)
	}
	return docs, nil
}

func (s *Store) findOne(ctx context.Context, filters ...query.Predicate) (*models.User, error) {
	doc, err := s.docs.FindOne(ctx, Collection, filters...)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return decode(doc)
}

func decode(doc docstore.Document) (*models.User, error) {
	var u models.User
	if err := doc.Decode(&u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}
