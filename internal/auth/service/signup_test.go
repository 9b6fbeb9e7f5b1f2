package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"eshop/internal/auth/credential"
	dErrors "eshop/pkg/domain-errors"
)

func (s *ServiceSuite) TestSignup() {
	s.T().Run("creates an unverified customer with a pending otp", func(t *testing.T) {
		user, otp := s.signup("mona@example.com", "01000000001")

		require.Len(t, otp, 6)
		stored, err := s.users.FindByID(s.ctx(0), user.ID)
		require.NoError(t, err)
		assert.Equal(t, "customer", string(stored.Role))
		assert.False(t, stored.IsVerified)
		assert.Equal(t, credential.HashToken(otp), stored.OTP)
		assert.True(t, s.now.Add(credential.OTPTTL).Equal(*stored.OTPExpires))
		assert.True(t, s.hasher.VerifyPassword(strongPassword, stored.Password))
	})

	s.T().Run("returns a session token", func(t *testing.T) {
		s.mockNotifier.EXPECT().SendVerification(gomock.Any(), "token@example.com", gomock.Any(), gomock.Any()).Return(nil)

		res, err := s.service.Signup(s.ctx(0), signupRequest("token@example.com", "01000000002"))
		require.NoError(t, err)
		assert.NotEmpty(t, res.Token)
		assert.Equal(t, s.now, res.IssuedAt)
		assert.Equal(t, s.now.Add(time.Hour), res.ExpiresAt)
	})

	s.T().Run("duplicate email is a conflict", func(t *testing.T) {
		s.signup("dup@example.com", "01000000003")

		_, err := s.service.Signup(s.ctx(0), signupRequest("dup@example.com", "01000000004"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		assert.Contains(t, err.Error(), "email")
	})

	s.T().Run("verification email failure does not fail signup", func(t *testing.T) {
		s.mockNotifier.EXPECT().SendVerification(gomock.Any(), "nomail@example.com", gomock.Any(), gomock.Any()).
			Return(errors.New("smtp down"))

		res, err := s.service.Signup(s.ctx(0), signupRequest("nomail@example.com", "01000000005"))
		require.NoError(t, err)
		assert.NotEmpty(t, res.User.ID)
	})
}

func (s *ServiceSuite) TestVerifyEmail() {
	s.T().Run("anonymous caller verifies by otp", func(t *testing.T) {
		user, otp := s.signup("verify@example.com", "01000000011")
		s.mockNotifier.EXPECT().SendWelcome(gomock.Any(), "verify@example.com", "Mona").Return(nil)

		verified, err := s.service.VerifyEmail(s.ctx(time.Minute), "", otp)
		require.NoError(t, err)
		assert.Equal(t, user.ID, verified.ID)
		assert.True(t, verified.IsVerified)
		assert.Empty(t, verified.OTP)
		assert.Nil(t, verified.OTPExpires)

		_, err = s.service.VerifyEmail(s.ctx(time.Minute), "", otp)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest), "otp is single use")
	})

	s.T().Run("expired otp", func(t *testing.T) {
		_, otp := s.signup("late@example.com", "01000000012")

		_, err := s.service.VerifyEmail(s.ctx(credential.OTPTTL+time.Second), "", otp)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
		assert.Equal(t, "Invalid or expired OTP", err.Error())
	})

	s.T().Run("wrong otp", func(t *testing.T) {
		s.signup("wrong@example.com", "01000000013")

		_, err := s.service.VerifyEmail(s.ctx(0), "", "000000")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.T().Run("signed-in caller cannot verify another account", func(t *testing.T) {
		_, otp := s.signup("victim@example.com", "01000000014")
		caller, _ := s.signup("caller@example.com", "01000000015")

		_, err := s.service.VerifyEmail(s.ctx(0), caller.ID, otp)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.T().Run("welcome email failure is tolerated", func(t *testing.T) {
		_, otp := s.signup("welcome@example.com", "01000000016")
		s.mockNotifier.EXPECT().SendWelcome(gomock.Any(), "welcome@example.com", gomock.Any()).Return(errors.New("smtp down"))

		verified, err := s.service.VerifyEmail(s.ctx(0), "", otp)
		require.NoError(t, err)
		assert.True(t, verified.IsVerified)
	})
}

func (s *ServiceSuite) TestResendOTP() {
	s.T().Run("replaces the live otp", func(t *testing.T) {
		_, oldOTP := s.signup("resend@example.com", "01000000021")
		var newOTP string
		s.mockNotifier.EXPECT().SendVerification(gomock.Any(), "resend@example.com", "Mona", gomock.Any()).
			DoAndReturn(func(_ context.Context, _, _, code string) error {
				newOTP = code
				return nil
			})

		require.NoError(t, s.service.ResendOTP(s.ctx(0), "resend@example.com"))
		if newOTP == oldOTP {
			t.Skip("random otp collided")
		}

		_, err := s.service.VerifyEmail(s.ctx(0), "", oldOTP)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

		s.mockNotifier.EXPECT().SendWelcome(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		_, err = s.service.VerifyEmail(s.ctx(0), "", newOTP)
		require.NoError(t, err)

		err = s.service.ResendOTP(s.ctx(0), "resend@example.com")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest), "already verified")
	})

	s.T().Run("unknown email", func(t *testing.T) {
		err := s.service.ResendOTP(s.ctx(0), "ghost@example.com")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.T().Run("delivery failure is reported", func(t *testing.T) {
		s.signup("bounce@example.com", "01000000022")
		s.mockNotifier.EXPECT().SendVerification(gomock.Any(), "bounce@example.com", gomock.Any(), gomock.Any()).
			Return(errors.New("smtp down"))

		err := s.service.ResendOTP(s.ctx(0), "bounce@example.com")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUpstream))
	})
}
