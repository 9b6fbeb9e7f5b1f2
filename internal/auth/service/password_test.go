package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"eshop/internal/auth/credential"
	"eshop/internal/auth/models"
	"eshop/internal/auth/service/mocks"
	userStore "eshop/internal/auth/store/user"
	"eshop/internal/docstore"
	jwttoken "eshop/internal/jwt_token"
	"eshop/internal/sentinel"
	dErrors "eshop/pkg/domain-errors"
)

const newPassword = "N3wPassword"

func (s *ServiceSuite) TestLogin() {
	s.signup("login@example.com", "01000000031")

	s.T().Run("correct credentials", func(t *testing.T) {
		res, err := s.service.Login(s.ctx(0), &models.LoginRequest{Email: "login@example.com", Password: strongPassword})
		require.NoError(t, err)
		assert.Equal(t, "login@example.com", res.User.Email)
		assert.NotEmpty(t, res.Token)
	})

	s.T().Run("wrong password and unknown email look the same", func(t *testing.T) {
		_, wrongPassword := s.service.Login(s.ctx(0), &models.LoginRequest{Email: "login@example.com", Password: "Nope12345"})
		_, unknownEmail := s.service.Login(s.ctx(0), &models.LoginRequest{Email: "ghost@example.com", Password: strongPassword})

		for _, err := range []error{wrongPassword, unknownEmail} {
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
			assert.Equal(t, "Incorrect email or password", err.Error())
		}
	})
}

// countingHasher records VerifyPassword calls.
type countingHasher struct {
	PasswordHasher
	verified atomic.Int32
}

func (h *countingHasher) VerifyPassword(plain, hash string) bool {
	h.verified.Add(1)
	return h.PasswordHasher.VerifyPassword(plain, hash)
}

func TestLoginUnknownEmailRunsBcrypt(t *testing.T) {
	hasher := &countingHasher{PasswordHasher: credential.NewHasher(4)}
	svc, err := New(
		userStore.New(docstore.NewMemory()),
		jwttoken.NewJWTService("test-secret", time.Hour),
		hasher,
		mocks.NewMockNotifier(gomock.NewController(t)),
		Config{},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), &models.LoginRequest{Email: "ghost@example.com", Password: strongPassword})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Equal(t, int32(1), hasher.verified.Load())

	decoy := svc.decoy()
	assert.True(t, strings.HasPrefix(decoy, "$2a$04$"), decoy)
	assert.Equal(t, decoy, svc.decoy())
	assert.False(t, hasher.VerifyPassword(strongPassword, decoy))
}

// forgot requests a reset and returns the token from the emailed URL.
func (s *ServiceSuite) forgot(email string) string {
	var url string
	s.mockNotifier.EXPECT().SendPasswordReset(gomock.Any(), email, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _, resetURL string) error {
			url = resetURL
			return nil
		})
	s.Require().NoError(s.service.ForgotPassword(s.ctx(0), email))
	s.Require().True(strings.HasPrefix(url, "https://api.shop.test/api/v1/users/resetPassword/"), url)
	return strings.TrimPrefix(url, "https://api.shop.test/api/v1/users/resetPassword/")
}

func (s *ServiceSuite) TestForgotAndResetPassword() {
	s.T().Run("reset token works once", func(t *testing.T) {
		user, _ := s.signup("reset@example.com", "01000000041")
		token := s.forgot("reset@example.com")
		require.Len(t, token, 64)

		stored, err := s.users.FindByID(s.ctx(0), user.ID)
		require.NoError(t, err)
		assert.Equal(t, credential.HashToken(token), stored.PasswordResetToken, "only the hash is stored")

		req := &models.ResetPasswordRequest{Password: newPassword, PasswordConfirm: newPassword}
		res, err := s.service.ResetPassword(s.ctx(time.Minute), token, req)
		require.NoError(t, err)
		assert.NotEmpty(t, res.Token)
		require.NotNil(t, res.User.PasswordChangedAt)
		assert.Empty(t, res.User.PasswordResetToken)
		assert.False(t, credential.CheckStaleToken(res.User.PasswordChangedAt, res.IssuedAt), "new token is fresh")
		assert.True(t, credential.CheckStaleToken(res.User.PasswordChangedAt, s.now.Add(-time.Hour)), "older tokens are stale")

		_, err = s.service.ResetPassword(s.ctx(time.Minute), token, req)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

		_, err = s.service.Login(s.ctx(time.Minute), &models.LoginRequest{Email: "reset@example.com", Password: newPassword})
		assert.NoError(t, err)
	})

	s.T().Run("expired token", func(t *testing.T) {
		s.signup("expired@example.com", "01000000042")
		token := s.forgot("expired@example.com")

		_, err := s.service.ResetPassword(s.ctx(credential.ResetTTL+time.Second), token,
			&models.ResetPasswordRequest{Password: newPassword, PasswordConfirm: newPassword})
		require.Error(t, err)
		assert.Equal(t, "Token is invalid or has expired", err.Error())
	})

	s.T().Run("unknown email", func(t *testing.T) {
		err := s.service.ForgotPassword(s.ctx(0), "ghost@example.com")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
		assert.Equal(t, "There is no user with email address", err.Error())
	})

	s.T().Run("email failure discards the token", func(t *testing.T) {
		user, _ := s.signup("nodelivery@example.com", "01000000043")
		s.mockNotifier.EXPECT().SendPasswordReset(gomock.Any(), "nodelivery@example.com", gomock.Any(), gomock.Any()).
			Return(errors.New("smtp down"))

		err := s.service.ForgotPassword(s.ctx(0), "nodelivery@example.com")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUpstream))

		stored, err := s.users.FindByID(s.ctx(0), user.ID)
		require.NoError(t, err)
		assert.Empty(t, stored.PasswordResetToken)
		assert.Nil(t, stored.PasswordResetExpires)
	})
}

func (s *ServiceSuite) TestUpdatePassword() {
	user, _ := s.signup("update@example.com", "01000000051")

	s.T().Run("wrong current password", func(t *testing.T) {
		_, err := s.service.UpdatePassword(s.ctx(0), user.ID, &models.UpdatePasswordRequest{
			PasswordCurrent: "Wrong1234", Password: newPassword, PasswordConfirm: newPassword,
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Equal(t, "Your current password is wrong", err.Error())
	})

	s.T().Run("unknown user", func(t *testing.T) {
		_, err := s.service.UpdatePassword(s.ctx(0), "550e8400-e29b-41d4-a716-446655440000", &models.UpdatePasswordRequest{
			PasswordCurrent: strongPassword, Password: newPassword, PasswordConfirm: newPassword,
		})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.T().Run("success rotates the password", func(t *testing.T) {
		res, err := s.service.UpdatePassword(s.ctx(time.Minute), user.ID, &models.UpdatePasswordRequest{
			PasswordCurrent: strongPassword, Password: newPassword, PasswordConfirm: newPassword,
		})
		require.NoError(t, err)
		require.NotNil(t, res.User.PasswordChangedAt)
		assert.True(t, s.hasher.VerifyPassword(newPassword, res.User.Password))
	})
}

func TestLogin_StoreFailureIsInternal(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserStore(ctrl)
	svc, err := New(users, jwttoken.NewJWTService("k", time.Hour), credential.NewHasher(4), mocks.NewMockNotifier(ctrl), Config{})
	require.NoError(t, err)

	users.EXPECT().FindByEmail(gomock.Any(), "a@b.co").Return(nil, errors.New("connection refused"))

	_, err = svc.Login(context.Background(), &models.LoginRequest{Email: "a@b.co", Password: "x"})
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeInternal, dErrors.CodeOf(err))
}

func TestSignup_TokenFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserStore(ctrl)
	tokens := mocks.NewMockTokenIssuer(ctrl)
	notifier := mocks.NewMockNotifier(ctrl)
	svc, err := New(users, tokens, credential.NewHasher(4), notifier, Config{})
	require.NoError(t, err)

	users.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u *models.User) (*models.User, error) {
			u.ID = "550e8400-e29b-41d4-a716-446655440009"
			return u, nil
		})
	notifier.EXPECT().SendVerification(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	tokens.EXPECT().IssueSessionToken(gomock.Any(), "550e8400-e29b-41d4-a716-446655440009").
		Return(jwttoken.Token{}, dErrors.New(dErrors.CodeInternal, "could not sign token"))

	_, err = svc.Signup(context.Background(), signupRequest("a@b.co", "01000000099"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

// A request that finds a live secret but loses the write to a concurrent
// request must fail instead of verifying or resetting a second time.
func TestSecretConsumedConcurrently(t *testing.T) {
	lost := fmt.Errorf("consume user secret: %w", sentinel.ErrNotFound)
	expires := time.Now().Add(time.Hour)
	found := &models.User{
		ID:                   "550e8400-e29b-41d4-a716-446655440010",
		Email:                "race@example.com",
		OTP:                  credential.HashToken("123456"),
		OTPExpires:           &expires,
		PasswordResetToken:   credential.HashToken("reset-token"),
		PasswordResetExpires: &expires,
	}

	t.Run("verify email", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		users := mocks.NewMockUserStore(ctrl)
		svc, err := New(users, jwttoken.NewJWTService("k", time.Hour), credential.NewHasher(4), mocks.NewMockNotifier(ctrl), Config{})
		require.NoError(t, err)

		users.EXPECT().FindByOTP(gomock.Any(), found.OTP, gomock.Any()).Return(found, nil)
		users.EXPECT().ConsumeOTP(gomock.Any(), found.ID, found.OTP, gomock.Any(), gomock.Any()).Return(nil, lost)

		_, err = svc.VerifyEmail(context.Background(), "", "123456")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
		assert.Equal(t, "Invalid or expired OTP", err.Error())
	})

	t.Run("reset password", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		users := mocks.NewMockUserStore(ctrl)
		svc, err := New(users, jwttoken.NewJWTService("k", time.Hour), credential.NewHasher(4), mocks.NewMockNotifier(ctrl), Config{})
		require.NoError(t, err)

		users.EXPECT().FindByResetToken(gomock.Any(), found.PasswordResetToken, gomock.Any()).Return(found, nil)
		users.EXPECT().ConsumeResetToken(gomock.Any(), found.ID, found.PasswordResetToken, gomock.Any(), gomock.Any()).Return(nil, lost)

		_, err = svc.ResetPassword(context.Background(), "reset-token", &models.ResetPasswordRequest{
			Password: newPassword, PasswordConfirm: newPassword,
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}
