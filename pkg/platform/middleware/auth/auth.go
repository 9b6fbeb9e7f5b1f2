// Package auth is the request authorization gate: it extracts a session
// token, verifies it, loads the principal it names, rejects tokens that
// predate a password change and finally checks the principal's role.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	dErrors "eshop/pkg/domain-errors"
	"eshop/pkg/platform/httputil"
	"eshop/pkg/requestcontext"
)

// CookieName is the cookie carrying the session token for browser clients.
const CookieName = "jwt"

const (
	msgNotLoggedIn     = "You are not logged in! Please log in to get access."
	msgInvalidToken    = "Invalid token. Please log in again!"
	msgPrincipalGone   = "User no longer exist"
	msgPasswordChanged = "User recently changed password, please log in again!"
	msgForbidden       = "you don't have the permission to perform this action"
)

// Claims are the verified facts a session token carries.
type Claims struct {
	Subject  string
	IssuedAt time.Time
}

// TokenVerifier checks a token's signature, algorithm and expiry.
type TokenVerifier interface {
	VerifyToken(token string) (*Claims, error)
}

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	ID                string
	Email             string
	Role              string
	PasswordChangedAt *time.Time
}

// PrincipalLoader resolves a token subject. A missing principal must be
// reported with domain code not_found.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, id string) (*Principal, error)
}

// StaleCheck reports whether a token issued at issuedAt predates the
// principal's last password change.
type StaleCheck func(passwordChangedAt *time.Time, issuedAt time.Time) bool

type contextKeyPrincipal struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal{}, p)
}

// PrincipalFrom returns the authenticated principal or nil.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(contextKeyPrincipal{}).(*Principal)
	return p
}

// Gate builds the authentication and role middleware.
type Gate struct {
	verifier   TokenVerifier
	principals PrincipalLoader
	stale      StaleCheck
	logger     *slog.Logger
	metrics    *Metrics
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

func New(verifier TokenVerifier, principals PrincipalLoader, stale StaleCheck, opts ...Option) *Gate {
	g := &Gate{
		verifier:   verifier,
		principals: principals,
		stale:      stale,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// rejection is a terminal gate state.
type rejection struct {
	reason string
	err    error
}

func (g *Gate) authenticate(r *http.Request) (*Principal, *rejection) {
	ctx := r.Context()
	token := TokenFromRequest(r)
	if token == "" {
		return nil, &rejection{"no_credential", dErrors.New(dErrors.CodeUnauthorized, msgNotLoggedIn)}
	}

	claims, err := g.verifier.VerifyToken(token)
	if err != nil {
		return nil, &rejection{"invalid_token", &dErrors.Error{Code: dErrors.CodeUnauthorized, Message: msgInvalidToken, Err: err}}
	}

	principal, err := g.principals.LoadPrincipal(ctx, claims.Subject)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, &rejection{"principal_gone", dErrors.New(dErrors.CodeUnauthorized, msgPrincipalGone)}
		}
		return nil, &rejection{"load_failed", &dErrors.Error{Code: dErrors.CodeInternal, Message: "failed to load principal", Err: err}}
	}

	if g.stale(principal.PasswordChangedAt, claims.IssuedAt) {
		return nil, &rejection{"password_changed", dErrors.New(dErrors.CodeUnauthorized, msgPasswordChanged)}
	}
	return principal, nil
}

// Protect rejects requests without a valid session and attaches the
// principal for the rest of the chain.
func (g *Gate) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, rej := g.authenticate(r)
		if rej != nil {
			g.reject(w, r, rej)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// Optional attaches the principal when the request carries a valid session
// and otherwise lets the request through anonymously.
func (g *Gate) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, rej := g.authenticate(r)
		if rej != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// RestrictTo admits only principals whose role is listed. It must run after
// Protect.
func (g *Gate) RestrictTo(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFrom(r.Context())
			if principal == nil {
				g.reject(w, r, &rejection{"no_credential", dErrors.New(dErrors.CodeUnauthorized, msgNotLoggedIn)})
				return
			}
			if !Allowed(principal.Role, roles) {
				g.reject(w, r, &rejection{"forbidden", dErrors.New(dErrors.CodeForbidden, msgForbidden)})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Allowed reports whether role is one of roles.
func Allowed(role string, roles []string) bool {
	return role != "" && slices.Contains(roles, role)
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, rej *rejection) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	if rej.reason == "load_failed" {
		g.logger.ErrorContext(ctx, "failed to load principal",
			"error", rej.err,
			"request_id", requestID,
		)
	} else {
		g.logger.WarnContext(ctx, "request rejected by auth gate",
			"reason", rej.reason,
			"error", rej.err,
			"request_id", requestID,
		)
	}
	g.metrics.incRejection(rej.reason)
	httputil.WriteError(w, r, rej.err)
}

// TokenFromRequest returns the bearer token, falling back to the session
// cookie. An empty string means no credential was presented.
func TokenFromRequest(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "loggedout" {
		return c.Value
	}
	return ""
}
