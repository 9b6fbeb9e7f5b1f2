package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	dErrors "eshop/pkg/domain-errors"
)

const testUserID = "550e8400-e29b-41d4-a716-446655440001"

type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) VerifyToken(token string) (*Claims, error) {
	args := m.Called(token)
	if claims := args.Get(0); claims != nil {
		return claims.(*Claims), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockPrincipalLoader struct {
	mock.Mock
}

func (m *MockPrincipalLoader) LoadPrincipal(ctx context.Context, id string) (*Principal, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*Principal), args.Error(1)
	}
	return nil, args.Error(1)
}

// mockHandler captures whether it ran and with which context.
type mockHandler struct {
	called  bool
	context context.Context
}

func (m *mockHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.called = true
	m.context = r.Context()
	w.WriteHeader(http.StatusOK)
}

func staleAfter(changedAt *time.Time, issuedAt time.Time) bool {
	return changedAt != nil && changedAt.Sub(issuedAt) >= time.Second
}

type GateSuite struct {
	suite.Suite
	verifier   *MockTokenVerifier
	principals *MockPrincipalLoader
	next       *mockHandler
	gate       *Gate
	issuedAt   time.Time
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func (s *GateSuite) SetupTest() {
	s.verifier = new(MockTokenVerifier)
	s.principals = new(MockPrincipalLoader)
	s.next = &mockHandler{}
	s.gate = New(s.verifier, s.principals, staleAfter, WithLogger(slog.Default()))
	s.issuedAt = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
}

func (s *GateSuite) TearDownTest() {
	s.verifier.AssertExpectations(s.T())
	s.principals.AssertExpectations(s.T())
}

func (s *GateSuite) serve(h http.Handler, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func (s *GateSuite) TestProtect() {
	s.Run("valid bearer token attaches the principal", func() {
		s.next = &mockHandler{}
		principal := &Principal{ID: testUserID, Role: "customer"}
		s.verifier.On("VerifyToken", "good").Return(&Claims{Subject: testUserID, IssuedAt: s.issuedAt}, nil).Once()
		s.principals.On("LoadPrincipal", mock.Anything, testUserID).Return(principal, nil).Once()

		w := s.serve(s.gate.Protect(s.next), bearer("good"))

		s.Equal(http.StatusOK, w.Code)
		s.Require().True(s.next.called)
		s.Equal(principal, PrincipalFrom(s.next.context))
	})

	s.Run("cookie is used when no bearer header is sent", func() {
		s.next = &mockHandler{}
		s.verifier.On("VerifyToken", "from-cookie").Return(&Claims{Subject: testUserID, IssuedAt: s.issuedAt}, nil).Once()
		s.principals.On("LoadPrincipal", mock.Anything, testUserID).Return(&Principal{ID: testUserID}, nil).Once()

		w := s.serve(s.gate.Protect(s.next), func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
		})

		s.Equal(http.StatusOK, w.Code)
		s.True(s.next.called)
	})

	s.Run("no credential", func() {
		s.next = &mockHandler{}
		w := s.serve(s.gate.Protect(s.next), nil)

		s.False(s.next.called)
		s.Equal(http.StatusUnauthorized, w.Code)
		s.JSONEq(`{"status":"fail","message":"You are not logged in! Please log in to get access."}`, w.Body.String())
	})

	s.Run("logged out cookie is no credential", func() {
		s.next = &mockHandler{}
		w := s.serve(s.gate.Protect(s.next), func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: CookieName, Value: "loggedout"})
		})
		s.Equal(http.StatusUnauthorized, w.Code)
		s.False(s.next.called)
	})

	s.Run("invalid token", func() {
		s.next = &mockHandler{}
		s.verifier.On("VerifyToken", "bad").Return(nil, errors.New("signature is invalid")).Once()

		w := s.serve(s.gate.Protect(s.next), bearer("bad"))

		s.False(s.next.called)
		s.Equal(http.StatusUnauthorized, w.Code)
		s.JSONEq(`{"status":"fail","message":"Invalid token. Please log in again!"}`, w.Body.String())
	})

	s.Run("principal no longer exists", func() {
		s.next = &mockHandler{}
		s.verifier.On("VerifyToken", "orphan").Return(&Claims{Subject: testUserID, IssuedAt: s.issuedAt}, nil).Once()
		s.principals.On("LoadPrincipal", mock.Anything, testUserID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "user not found")).Once()

		w := s.serve(s.gate.Protect(s.next), bearer("orphan"))

		s.Equal(http.StatusUnauthorized, w.Code)
		s.JSONEq(`{"status":"fail","message":"User no longer exist"}`, w.Body.String())
	})

	s.Run("store failure is a server error", func() {
		s.next = &mockHandler{}
		s.verifier.On("VerifyToken", "tok").Return(&Claims{Subject: testUserID, IssuedAt: s.issuedAt}, nil).Once()
		s.principals.On("LoadPrincipal", mock.Anything, testUserID).Return(nil, errors.New("db down")).Once()

		w := s.serve(s.gate.Protect(s.next), bearer("tok"))

		s.Equal(http.StatusInternalServerError, w.Code)
		s.JSONEq(`{"status":"error","message":"Something went wrong!"}`, w.Body.String())
	})

	s.Run("password changed after issue", func() {
		s.next = &mockHandler{}
		changed := s.issuedAt.Add(time.Minute)
		s.verifier.On("VerifyToken", "old").Return(&Claims{Subject: testUserID, IssuedAt: s.issuedAt}, nil).Once()
		s.principals.On("LoadPrincipal", mock.Anything, testUserID).
			Return(&Principal{ID: testUserID, PasswordChangedAt: &changed}, nil).Once()

		w := s.serve(s.gate.Protect(s.next), bearer("old"))

		s.False(s.next.called)
		s.Equal(http.StatusUnauthorized, w.Code)
		s.JSONEq(`{"status":"fail","message":"User recently changed password, please log in again!"}`, w.Body.String())
	})
}

func (s *GateSuite) TestOptional() {
	s.Run("anonymous requests pass through", func() {
		s.next = &mockHandler{}
		w := s.serve(s.gate.Optional(s.next), nil)

		s.Equal(http.StatusOK, w.Code)
		s.Require().True(s.next.called)
		s.Nil(PrincipalFrom(s.next.context))
	})

	s.Run("invalid tokens pass through anonymously", func() {
		s.next = &mockHandler{}
		s.verifier.On("VerifyToken", "bad").Return(nil, errors.New("expired")).Once()

		w := s.serve(s.gate.Optional(s.next), bearer("bad"))

		s.Equal(http.StatusOK, w.Code)
		s.Nil(PrincipalFrom(s.next.context))
	})

	s.Run("valid tokens attach the principal", func() {
		s.next = &mockHandler{}
		s.verifier.On("VerifyToken", "good").Return(&Claims{Subject: testUserID, IssuedAt: s.issuedAt}, nil).Once()
		s.principals.On("LoadPrincipal", mock.Anything, testUserID).Return(&Principal{ID: testUserID}, nil).Once()

		s.serve(s.gate.Optional(s.next), bearer("good"))

		s.Require().NotNil(PrincipalFrom(s.next.context))
		s.Equal(testUserID, PrincipalFrom(s.next.context).ID)
	})
}

func (s *GateSuite) TestRestrictTo() {
	withRole := func(role string) func(*http.Request) {
		return func(r *http.Request) {
			*r = *r.WithContext(WithPrincipal(r.Context(), &Principal{ID: testUserID, Role: role}))
		}
	}

	s.Run("listed role passes", func() {
		s.next = &mockHandler{}
		w := s.serve(s.gate.RestrictTo("admin")(s.next), withRole("admin"))
		s.Equal(http.StatusOK, w.Code)
		s.True(s.next.called)
	})

	s.Run("other roles are forbidden", func() {
		s.next = &mockHandler{}
		w := s.serve(s.gate.RestrictTo("admin")(s.next), withRole("customer"))
		s.Equal(http.StatusForbidden, w.Code)
		s.JSONEq(`{"status":"fail","message":"you don't have the permission to perform this action"}`, w.Body.String())
		s.False(s.next.called)
	})

	s.Run("missing principal is unauthorized", func() {
		s.next = &mockHandler{}
		w := s.serve(s.gate.RestrictTo("admin")(s.next), nil)
		s.Equal(http.StatusUnauthorized, w.Code)
	})
}

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed("admin", []string{"admin"}))
	assert.True(t, Allowed("customer", []string{"admin", "customer"}))
	assert.False(t, Allowed("customer", []string{"admin"}))
	assert.False(t, Allowed("", []string{"admin"}))
	assert.False(t, Allowed("admin", nil))
}

func TestTokenFromRequest(t *testing.T) {
	t.Run("bearer wins over cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer abc")
		req.AddCookie(&http.Cookie{Name: CookieName, Value: "xyz"})
		require.Equal(t, "abc", TokenFromRequest(req))
	})

	t.Run("other schemes are ignored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		assert.Empty(t, TokenFromRequest(req))
	})
}
