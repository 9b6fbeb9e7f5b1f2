package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"eshop/internal/auth/handler/mocks"
	"eshop/internal/auth/models"
	"eshop/internal/docstore"
	"eshop/internal/payload"
	dErrors "eshop/pkg/domain-errors"
	"eshop/pkg/platform/httputil"
	"eshop/pkg/platform/middleware/auth"
)

const (
	customerID = "2f7e7c0e-4f37-4e0a-9d61-0c7a4b0b2a11"
	adminID    = "9b1d8c5a-70a4-4a57-8a8e-3c1f6f3a9e22"
)

var signupBody = `{"first_name":"Jane","last_name":"Doe","phone":"01012345678","email":"Jane@Example.com","password":"Passw0rdOne","passwordConfirm":"Passw0rdOne"}`

// stubVerifier accepts "<role>-token".
type stubVerifier struct{}

func (stubVerifier) VerifyToken(token string) (*auth.Claims, error) {
	switch token {
	case "customer-token":
		return &auth.Claims{Subject: customerID, IssuedAt: time.Now()}, nil
	case "admin-token":
		return &auth.Claims{Subject: adminID, IssuedAt: time.Now()}, nil
	}
	return nil, errors.New("bad token")
}

type stubPrincipals struct{}

func (stubPrincipals) LoadPrincipal(_ context.Context, id string) (*auth.Principal, error) {
	role := string(models.RoleCustomer)
	if id == adminID {
		role = string(models.RoleAdmin)
	}
	return &auth.Principal{ID: id, Role: role}, nil
}

type AuthHandlerSuite struct {
	suite.Suite
}

func TestAuthHandlerSuite(t *testing.T) {
	suite.Run(t, new(AuthHandlerSuite))
}

func (s *AuthHandlerSuite) newHandler(t *testing.T, opts ...Option) (*mocks.MockService, *chi.Mux) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	gate := auth.New(stubVerifier{}, stubPrincipals{}, func(*time.Time, time.Time) bool { return false })

	router := chi.NewRouter()
	New(svc, gate, opts...).Register(router)
	return svc, router
}

func (s *AuthHandlerSuite) do(router http.Handler, method, target, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func authResult(user *models.User) *models.AuthResult {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &models.AuthResult{User: user, Token: "signed.jwt.value", IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
}

func testUser() *models.User {
	return &models.User{
		ID:        customerID,
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@example.com",
		Role:      models.RoleCustomer,
		Password:  "$2a$04$secret-hash",
		OTP:       "otp-hash",
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func (s *AuthHandlerSuite) TestSignup() {
	s.T().Run("creates the account and starts a session - 201", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().Signup(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req *models.SignupRequest) (*models.AuthResult, error) {
				assert.Equal(t, "jane@example.com", req.Email)
				return authResult(testUser()), nil
			})

		w := s.do(router, http.MethodPost, "/users/signup", signupBody, "")

		require.Equal(t, http.StatusCreated, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "success", body["status"])
		assert.Equal(t, "signed.jwt.value", body["token"])
		assert.NotContains(t, w.Body.String(), "secret-hash")
		assert.NotContains(t, w.Body.String(), "otp-hash")

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, auth.CookieName, cookies[0].Name)
		assert.Equal(t, "signed.jwt.value", cookies[0].Value)
		assert.True(t, cookies[0].HttpOnly)
	})

	s.T().Run("invalid payload never reaches the service - 400", func(t *testing.T) {
		_, router := s.newHandler(t)
		w := s.do(router, http.MethodPost, "/users/signup", `{"email":"jane@example.com"}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	s.T().Run("duplicate email - 409", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().Signup(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "Duplicate field value: email. Please use another value!"))

		w := s.do(router, http.MethodPost, "/users/signup", signupBody, "")

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.JSONEq(t, `{"status":"fail","message":"Duplicate field value: email. Please use another value!"}`, w.Body.String())
	})

	s.T().Run("secure cookies when configured", func(t *testing.T) {
		svc, router := s.newHandler(t, WithSecureCookies(true))
		svc.EXPECT().Signup(gomock.Any(), gomock.Any()).Return(authResult(testUser()), nil)

		w := s.do(router, http.MethodPost, "/users/signup", signupBody, "")

		require.Len(t, w.Result().Cookies(), 1)
		assert.True(t, w.Result().Cookies()[0].Secure)
	})
}

func (s *AuthHandlerSuite) TestLogin() {
	s.T().Run("missing fields - 400", func(t *testing.T) {
		_, router := s.newHandler(t)
		w := s.do(router, http.MethodPost, "/users/login", `{"email":"jane@example.com"}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"status":"fail","message":"Please provide email and password"}`, w.Body.String())
	})

	s.T().Run("wrong credentials - 401", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().Login(gomock.Any(), &models.LoginRequest{Email: "jane@example.com", Password: "nope"}).
			Return(nil, dErrors.New(dErrors.CodeUnauthorized, "Incorrect email or password"))

		w := s.do(router, http.MethodPost, "/users/login", `{"email":" JANE@example.com ","password":"nope"}`, "")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, w.Result().Cookies())
	})

	s.T().Run("success - 200", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().Login(gomock.Any(), gomock.Any()).Return(authResult(testUser()), nil)

		w := s.do(router, http.MethodPost, "/users/login", `{"email":"jane@example.com","password":"Passw0rdOne"}`, "")

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeBody(t, w)["data"].(map[string]any)
		assert.Equal(t, customerID, data["user"].(map[string]any)["_id"])
	})

	s.T().Run("malformed json - 400", func(t *testing.T) {
		_, router := s.newHandler(t)
		w := s.do(router, http.MethodPost, "/users/login", `{`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func (s *AuthHandlerSuite) TestVerifyEmail() {
	s.T().Run("anonymous caller", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().VerifyEmail(gomock.Any(), "", "123456").Return(testUser(), nil)

		w := s.do(router, http.MethodPost, "/users/verifyEmail", `{"otp":" 123456 "}`, "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"success","message":"Email verified successfully"}`, w.Body.String())
	})

	s.T().Run("signed-in caller is scoped to their account", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().VerifyEmail(gomock.Any(), customerID, "123456").Return(testUser(), nil)

		w := s.do(router, http.MethodPost, "/users/verifyEmail", `{"otp":"123456"}`, "customer-token")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	s.T().Run("invalid otp - 400", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().VerifyEmail(gomock.Any(), "", "000000").
			Return(nil, dErrors.New(dErrors.CodeBadRequest, "Invalid or expired OTP"))

		w := s.do(router, http.MethodPost, "/users/verifyEmail", `{"otp":"000000"}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	s.T().Run("missing otp - 400", func(t *testing.T) {
		_, router := s.newHandler(t)
		w := s.do(router, http.MethodPost, "/users/verifyEmail", `{}`, "")
		assert.JSONEq(t, `{"status":"fail","message":"Please provide the OTP"}`, w.Body.String())
	})
}

func (s *AuthHandlerSuite) TestResendOTP() {
	svc, router := s.newHandler(s.T())
	svc.EXPECT().ResendOTP(gomock.Any(), "jane@example.com").Return(nil)

	w := s.do(router, http.MethodPost, "/users/resendOTP", `{"email":"jane@example.com"}`, "")

	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"status":"success","message":"OTP sent to email!"}`, w.Body.String())
}

func (s *AuthHandlerSuite) TestPasswordRecovery() {
	s.T().Run("forgot password never returns the token", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().ForgotPassword(gomock.Any(), "jane@example.com").Return(nil)

		w := s.do(router, http.MethodPost, "/users/forgotPassword", `{"email":"jane@example.com"}`, "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"success","message":"Token sent to email!"}`, w.Body.String())
	})

	s.T().Run("unknown email - 404", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().ForgotPassword(gomock.Any(), "ghost@example.com").
			Return(dErrors.New(dErrors.CodeNotFound, "There is no user with email address"))

		w := s.do(router, http.MethodPost, "/users/forgotPassword", `{"email":"ghost@example.com"}`, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	s.T().Run("reset passes the path token", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().ResetPassword(gomock.Any(), "abc123", gomock.Any()).Return(authResult(testUser()), nil)

		w := s.do(router, http.MethodPatch, "/users/resetPassword/abc123",
			`{"password":"NewPassw0rd","passwordConfirm":"NewPassw0rd"}`, "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "signed.jwt.value", decodeBody(t, w)["token"])
	})

	s.T().Run("mismatched confirmation - 400", func(t *testing.T) {
		_, router := s.newHandler(t)
		w := s.do(router, http.MethodPatch, "/users/resetPassword/abc123",
			`{"password":"NewPassw0rd","passwordConfirm":"Other0ne"}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func (s *AuthHandlerSuite) TestUpdatePassword() {
	body := `{"passwordCurrent":"Passw0rdOne","password":"NewPassw0rd","passwordConfirm":"NewPassw0rd"}`

	s.T().Run("requires a session - 401", func(t *testing.T) {
		_, router := s.newHandler(t)
		w := s.do(router, http.MethodPatch, "/users/updateMyPassword", body, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	s.T().Run("updates the caller's password", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().UpdatePassword(gomock.Any(), customerID, gomock.Any()).Return(authResult(testUser()), nil)

		w := s.do(router, http.MethodPatch, "/users/updateMyPassword", body, "customer-token")

		assert.Equal(t, http.StatusOK, w.Code)
		require.Len(t, w.Result().Cookies(), 1)
	})

	s.T().Run("wrong current password - 401", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().UpdatePassword(gomock.Any(), customerID, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeUnauthorized, "Your current password is wrong"))

		w := s.do(router, http.MethodPatch, "/users/updateMyPassword", body, "customer-token")
		assert.JSONEq(t, `{"status":"fail","message":"Your current password is wrong"}`, w.Body.String())
	})
}

func (s *AuthHandlerSuite) TestLogoutAndMe() {
	s.T().Run("logout overwrites the cookie", func(t *testing.T) {
		_, router := s.newHandler(t)
		w := s.do(router, http.MethodPost, "/users/logout", "", "")

		assert.Equal(t, http.StatusOK, w.Code)
		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "loggedout", cookies[0].Value)
	})

	s.T().Run("me returns the current principal", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().Me(gomock.Any(), customerID).Return(testUser(), nil)

		w := s.do(router, http.MethodGet, "/users/me", "", "customer-token")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "password")
	})
}

func (s *AuthHandlerSuite) TestAdminRoutes() {
	s.T().Run("customers are forbidden - 403", func(t *testing.T) {
		_, router := s.newHandler(t)
		w := s.do(router, http.MethodGet, "/users", "", "customer-token")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	s.T().Run("list forwards the query string", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().ListUsers(gomock.Any(), url.Values{"role": {"admin"}, "limit": {"5"}}).
			Return([]docstore.Document{{"_id": adminID, "email": "admin@example.com"}}, nil)

		w := s.do(router, http.MethodGet, "/users?role=admin&limit=5", "", "admin-token")

		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.EqualValues(t, 1, body["results"])
	})

	s.T().Run("get by id", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().GetUser(gomock.Any(), "missing").
			Return(nil, dErrors.New(dErrors.CodeNotFound, "No user found with that ID"))

		w := s.do(router, http.MethodGet, "/users/missing", "", "admin-token")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	s.T().Run("create - 201", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().CreateUser(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req *models.CreateUserRequest) (*models.User, error) {
				assert.Equal(t, models.RoleAdmin, req.Role)
				return testUser(), nil
			})

		body := strings.TrimSuffix(signupBody, "}") + `,"role":"admin"}`
		w := s.do(router, http.MethodPost, "/users", body, "admin-token")
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	s.T().Run("update forwards raw fields", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().UpdateUser(gomock.Any(), customerID, payload.Fields{"first_name": "Janet", "password": "x"}).
			Return(testUser(), nil)

		w := s.do(router, http.MethodPatch, "/users/"+customerID, `{"first_name":"Janet","password":"x"}`, "admin-token")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func (s *AuthHandlerSuite) TestGoogle() {
	s.T().Run("start redirects to the provider", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().GoogleStart(gomock.Any()).Return("https://accounts.example.com/auth?state=xyz", nil)

		w := s.do(router, http.MethodGet, "/auth/google", "", "")

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://accounts.example.com/auth?state=xyz", w.Header().Get("Location"))
	})

	s.T().Run("callback signs the user in", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().GoogleCallback(gomock.Any(), "xyz", "code-1").Return(authResult(testUser()), nil)

		w := s.do(router, http.MethodGet, "/auth/google/callback?state=xyz&code=code-1", "", "")

		assert.Equal(t, http.StatusOK, w.Code)
		require.Len(t, w.Result().Cookies(), 1)
	})

	s.T().Run("provider failure - 502", func(t *testing.T) {
		svc, router := s.newHandler(t)
		svc.EXPECT().GoogleCallback(gomock.Any(), "xyz", "code-1").
			Return(nil, dErrors.New(dErrors.CodeUpstream, "Google sign-in failed"))

		w := s.do(router, http.MethodGet, "/auth/google/callback?state=xyz&code=code-1", "", "")
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func (s *AuthHandlerSuite) TestRateLimitCoversCredentialRoutes() {
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httputil.WriteError(w, r, dErrors.New(dErrors.CodeRateLimited, "slow down"))
		})
	}
	svc, router := s.newHandler(s.T(), WithRateLimit(deny))

	for _, path := range []string{"/users/signup", "/users/login", "/users/verifyEmail", "/users/resendOTP", "/users/forgotPassword"} {
		w := s.do(router, http.MethodPost, path, `{}`, "")
		s.Equal(http.StatusTooManyRequests, w.Code, path)
	}

	svc.EXPECT().Me(gomock.Any(), customerID).Return(testUser(), nil)
	w := s.do(router, http.MethodGet, "/users/me", "", "customer-token")
	s.Equal(http.StatusOK, w.Code)
}
