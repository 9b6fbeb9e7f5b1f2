package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"eshop/internal/auth/models"
	"eshop/internal/docstore"
	jwttoken "eshop/internal/jwt_token"
	"eshop/internal/payload"
	dErrors "eshop/pkg/domain-errors"
	"eshop/pkg/platform/httputil"
	"eshop/pkg/platform/middleware/auth"
	"eshop/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

// Service defines the account operations behind the users and auth routes.
type Service interface {
	Signup(ctx context.Context, req *models.SignupRequest) (*models.AuthResult, error)
	VerifyEmail(ctx context.Context, callerID, otp string) (*models.User, error)
	ResendOTP(ctx context.Context, email string) error
	Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token string, req *models.ResetPasswordRequest) (*models.AuthResult, error)
	UpdatePassword(ctx context.Context, userID string, req *models.UpdatePasswordRequest) (*models.AuthResult, error)
	Me(ctx context.Context, userID string) (*models.User, error)
	ListUsers(ctx context.Context, params url.Values) ([]docstore.Document, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, req *models.CreateUserRequest) (*models.User, error)
	UpdateUser(ctx context.Context, id string, fields payload.Fields) (*models.User, error)
	GoogleStart(ctx context.Context) (string, error)
	GoogleCallback(ctx context.Context, state, code string) (*models.AuthResult, error)
}

// Handler serves /users and /auth/google.
type Handler struct {
	auth          Service
	gate          *auth.Gate
	limit         func(http.Handler) http.Handler
	logger        *slog.Logger
	secureCookies bool
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithRateLimit guards the credential endpoints (signup, login, OTP and
// password recovery) with mw.
func WithRateLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		if mw != nil {
			h.limit = mw
		}
	}
}

// WithSecureCookies marks session cookies Secure.
func WithSecureCookies(secure bool) Option {
	return func(h *Handler) {
		h.secureCookies = secure
	}
}

func New(svc Service, gate *auth.Gate, opts ...Option) *Handler {
	h := &Handler{
		auth:   svc,
		gate:   gate,
		limit:  func(next http.Handler) http.Handler { return next },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the routes under the API prefix router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.limit)
			r.Post("/signup", h.HandleSignup)
			r.With(h.gate.Optional).Post("/verifyEmail", h.HandleVerifyEmail)
			r.Post("/resendOTP", h.HandleResendOTP)
			r.Post("/login", h.HandleLogin)
			r.Post("/forgotPassword", h.HandleForgotPassword)
		})
		r.Patch("/resetPassword/{token}", h.HandleResetPassword)
		r.Post("/logout", h.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(h.gate.Protect)
			r.Patch("/updateMyPassword", h.HandleUpdatePassword)
			r.Get("/me", h.HandleMe)

			r.Group(func(r chi.Router) {
				r.Use(h.gate.RestrictTo(string(models.RoleAdmin)))
				r.Get("/", h.HandleListUsers)
				r.Post("/", h.HandleCreateUser)
				r.Get("/{id}", h.HandleGetUser)
				r.Patch("/{id}", h.HandleUpdateUser)
			})
		})
	})

	r.Get("/auth/google", h.HandleGoogleStart)
	r.Get("/auth/google/callback", h.HandleGoogleCallback)
}

// writeSession sets the session cookie and returns the token in the body.
func (h *Handler) writeSession(w http.ResponseWriter, status int, res *models.AuthResult) {
	jwttoken.SetSessionCookie(w, jwttoken.Token{
		Value:     res.Token,
		IssuedAt:  res.IssuedAt,
		ExpiresAt: res.ExpiresAt,
	}, h.secureCookies)
	httputil.WriteJSON(w, status, models.TokenResponse{
		Status: httputil.StatusSuccess,
		Token:  res.Token,
		Data:   models.UserData{User: models.NewUserView(res.User)},
	})
}

func (h *Handler) writeUser(w http.ResponseWriter, status int, user *models.User) {
	httputil.WriteJSON(w, status, models.UserResponse{
		Status: httputil.StatusSuccess,
		Data:   models.UserData{User: models.NewUserView(user)},
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error, attrs ...any) {
	ctx := r.Context()
	args := append([]any{"error", err, "request_id", requestcontext.RequestID(ctx)}, attrs...)
	if httputil.DomainCodeToHTTPStatus(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, args...)
	} else {
		h.logger.WarnContext(ctx, msg, args...)
	}
	httputil.WriteError(w, r, err)
}

// callerID is the authenticated principal's id, or empty.
func callerID(r *http.Request) string {
	if p := auth.PrincipalFrom(r.Context()); p != nil {
		return p.ID
	}
	return ""
}
