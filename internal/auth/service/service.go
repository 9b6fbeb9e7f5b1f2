// Package service implements account registration, login, password
// management, federated sign-in and admin user management.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"eshop/internal/auth/models"
	"eshop/internal/auth/oauth"
	"eshop/internal/docstore"
	jwttoken "eshop/internal/jwt_token"
	"eshop/internal/query"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

// UserStore persists principals.
// Error Contract: Find methods wrap sentinel.ErrNotFound when no user
// matches; unique collisions are *docstore.DuplicateKeyError.
type UserStore interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	FindByOTP(ctx context.Context, otpHash string, now time.Time) (*models.User, error)
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	Update(ctx context.Context, id string, changes docstore.Document) (*models.User, error)
	ConsumeOTP(ctx context.Context, id, otpHash string, now time.Time, changes docstore.Document) (*models.User, error)
	ConsumeResetToken(ctx context.Context, id, tokenHash string, now time.Time, changes docstore.Document) (*models.User, error)
	List(ctx context.Context, spec query.Spec) ([]docstore.Document, error)
}

// Notifier sends the account emails.
type Notifier interface {
	SendVerification(ctx context.Context, to, firstName, otp string) error
	SendWelcome(ctx context.Context, to, firstName string) error
	SendPasswordReset(ctx context.Context, to, firstName, resetURL string) error
}

type TokenIssuer interface {
	IssueSessionToken(ctx context.Context, userID string) (jwttoken.Token, error)
}

type PasswordHasher interface {
	HashPassword(plain string) (string, error)
	VerifyPassword(plain, hash string) bool
}

// StateStore holds federated sign-in state values until they are consumed.
type StateStore interface {
	Save(ctx context.Context, state string) error
	Consume(ctx context.Context, state string) error
}

type Config struct {
	// APIURL is the public base URL used in password reset links.
	APIURL string
}

type Service struct {
	users    UserStore
	tokens   TokenIssuer
	hasher   PasswordHasher
	notifier Notifier
	google   oauth.Provider
	states   StateStore
	apiURL   string
	logger   *slog.Logger
	metrics  *Metrics

	decoyOnce sync.Once
	decoyHash string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithGoogle enables Google sign-in.
func WithGoogle(provider oauth.Provider, states StateStore) Option {
	return func(s *Service) {
		s.google = provider
		s.states = states
	}
}

func New(users UserStore, tokens TokenIssuer, hasher PasswordHasher, notifier Notifier, cfg Config, opts ...Option) (*Service, error) {
	if users == nil || tokens == nil || hasher == nil || notifier == nil {
		return nil, errors.New("user store, token issuer, hasher and notifier are required")
	}
	svc := &Service{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		notifier: notifier,
		apiURL:   cfg.APIURL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc, nil
}

// decoy returns a hash at the hasher's cost that no password matches. Login
// verifies against it for unknown emails so both failures cost one bcrypt
// comparison.
func (s *Service) decoy() string {
	s.decoyOnce.Do(func() {
		plain, err := randomHex(16)
		if err != nil {
			plain = "decoy"
		}
		s.decoyHash, _ = s.hasher.HashPassword(plain)
	})
	return s.decoyHash
}

// authenticated issues a session token for user.
func (s *Service) authenticated(ctx context.Context, user *models.User) (*models.AuthResult, error) {
	token, err := s.tokens.IssueSessionToken(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &models.AuthResult{
		User:      user,
		Token:     token.Value,
		IssuedAt:  token.IssuedAt,
		ExpiresAt: token.ExpiresAt,
	}, nil
}
