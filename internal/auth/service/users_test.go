package service

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eshop/internal/auth/models"
	"eshop/internal/payload"
	dErrors "eshop/pkg/domain-errors"
)

func (s *ServiceSuite) TestLoadPrincipal() {
	user, _ := s.signup("principal@example.com", "01000000071")

	s.T().Run("found", func(t *testing.T) {
		p, err := s.service.LoadPrincipal(s.ctx(0), user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.ID, p.ID)
		assert.Equal(t, "customer", p.Role)
		assert.Nil(t, p.PasswordChangedAt)
	})

	s.T().Run("missing and malformed ids are not_found", func(t *testing.T) {
		for _, id := range []string{"550e8400-e29b-41d4-a716-446655440000", "42"} {
			_, err := s.service.LoadPrincipal(s.ctx(0), id)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound), id)
		}
	})
}

func (s *ServiceSuite) TestAdminUsers() {
	created, err := s.service.CreateUser(s.ctx(0), &models.CreateUserRequest{
		SignupRequest: *signupRequest("staff@example.com", "01000000081"),
		Role:          models.RoleAdmin,
		IsVerified:    true,
	})
	s.Require().NoError(err)

	s.T().Run("create stores role and verification", func(t *testing.T) {
		assert.Equal(t, models.RoleAdmin, created.Role)
		assert.True(t, created.IsVerified)
		assert.Empty(t, created.OTP)
	})

	s.T().Run("list strips secrets and honours filters", func(t *testing.T) {
		docs, err := s.service.ListUsers(s.ctx(0), url.Values{"role": {"admin"}})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "staff@example.com", docs[0]["email"])
		assert.NotContains(t, docs[0], "password")

		_, err = s.service.ListUsers(s.ctx(0), url.Values{"password": {"x"}})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.T().Run("update applies whitelisted fields only", func(t *testing.T) {
		updated, err := s.service.UpdateUser(s.ctx(0), created.ID, payload.Fields{
			"first_name":  "Salma",
			"is_verified": "false",
			"password":    "Hacked123",
			"otp":         "123456",
			"email":       "takeover@example.com",
			"google_id":   "google-sub",
		})
		require.NoError(t, err)
		assert.Equal(t, "Salma", updated.FirstName)
		assert.False(t, updated.IsVerified)
		assert.True(t, s.hasher.VerifyPassword(strongPassword, updated.Password))
		assert.Empty(t, updated.OTP)
		assert.Equal(t, "staff@example.com", updated.Email)
		assert.Empty(t, updated.GoogleID)
	})

	s.T().Run("update decodes addresses sent as json text", func(t *testing.T) {
		updated, err := s.service.UpdateUser(s.ctx(0), created.ID, payload.Fields{
			"addresses": `[{"region_id":"550e8400-e29b-41d4-a716-446655440001","area_id":"550e8400-e29b-41d4-a716-446655440002","street_address":"12 Nile Street"}]`,
		})
		require.NoError(t, err)
		require.Len(t, updated.Addresses, 1)
		assert.Equal(t, "12 Nile Street", updated.Addresses[0].StreetAddress)
	})

	s.T().Run("update rejects bad values", func(t *testing.T) {
		_, err := s.service.UpdateUser(s.ctx(0), created.ID, payload.Fields{"role": "root"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = s.service.UpdateUser(s.ctx(0), created.ID, payload.Fields{"addresses": "{not json"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeMalformedField))

		_, err = s.service.UpdateUser(s.ctx(0), created.ID, payload.Fields{"password": "x"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.T().Run("get unknown user", func(t *testing.T) {
		_, err := s.service.GetUser(s.ctx(0), "550e8400-e29b-41d4-a716-446655440000")
		require.Error(t, err)
		assert.Equal(t, "No user found with that ID", err.Error())
	})
}
