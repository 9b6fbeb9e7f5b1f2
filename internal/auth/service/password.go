package service

import (
	"context"
	"errors"
	"strings"

	"eshop/internal/auth/credential"
	"eshop/internal/auth/device"
	"eshop/internal/auth/models"
	"eshop/internal/docstore"
	"eshop/internal/platform/privacy"
	"eshop/internal/sentinel"
	dErrors "eshop/pkg/domain-errors"
	"eshop/pkg/requestcontext"
)

const (
	msgIncorrectLogin  = "Incorrect email or password"
	msgInvalidReset    = "Token is invalid or has expired"
	msgUserNotFound    = "User not found"
	msgWrongPassword   = "Your current password is wrong"
	msgEmailSendFailed = "There was an error sending the email. Try again later!"
)

// Login checks email and password. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.hasher.VerifyPassword(req.Password, s.decoy())
			s.authFailure(ctx, "unknown_email")
			return nil, dErrors.New(dErrors.CodeUnauthorized, msgIncorrectLogin)
		}
		return nil, docstore.DomainError(err, msgIncorrectLogin)
	}
	if !s.hasher.VerifyPassword(req.Password, user.Password) {
		s.authFailure(ctx, "wrong_password", "user_id", user.ID)
		return nil, dErrors.New(dErrors.CodeUnauthorized, msgIncorrectLogin)
	}

	s.metrics.incLogin("success")
	s.logAudit(ctx, "user_logged_in",
		"user_id", user.ID,
		"device", device.ParseUserAgent(requestcontext.UserAgent(ctx)),
		"client_ip", privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
	)
	return s.authenticated(ctx, user)
}

// ForgotPassword stores a reset token and emails the reset link. The token
// itself is only ever delivered by email; if that fails it is discarded.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return docstore.DomainError(err, msgNoUserByEmail)
	}

	secret, err := credential.GenerateResetToken(requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	if _, err := s.users.Update(ctx, user.ID, map[string]any{
		"password_reset_token":   secret.Hash,
		"password_reset_expires": secret.ExpiresAt,
	}); err != nil {
		return docstore.DomainError(err, msgNoUserByEmail)
	}

	if err := s.notifier.SendPasswordReset(ctx, user.Email, user.FirstName, s.resetURL(secret.Plain)); err != nil {
		if _, clearErr := s.users.Update(ctx, user.ID, map[string]any{
			"password_reset_token":   nil,
			"password_reset_expires": nil,
		}); clearErr != nil {
			s.bestEffort(ctx, "reset token cleanup", clearErr, "user_id", user.ID)
		}
		return &dErrors.Error{Code: dErrors.CodeUpstream, Message: msgEmailSendFailed, Err: err}
	}
	s.logAudit(ctx, "password_reset_requested", "user_id", user.ID)
	return nil
}

func (s *Service) resetURL(token string) string {
	return strings.TrimSuffix(s.apiURL, "/") + "/api/v1/users/resetPassword/" + token
}

// ResetPassword consumes a reset token and sets a new password. Tokens
// issued before now become stale.
func (s *Service) ResetPassword(ctx context.Context, token string, req *models.ResetPasswordRequest) (*models.AuthResult, error) {
	now := requestcontext.Now(ctx)
	tokenHash := credential.HashToken(token)
	user, err := s.users.FindByResetToken(ctx, tokenHash, now)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeBadRequest, msgInvalidReset)
		}
		return nil, docstore.DomainError(err, msgInvalidReset)
	}

	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	updated, err := s.users.ConsumeResetToken(ctx, user.ID, tokenHash, now, map[string]any{
		"password":               hash,
		"password_changed_at":    now,
		"password_reset_token":   nil,
		"password_reset_expires": nil,
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeBadRequest, msgInvalidReset)
		}
		return nil, docstore.DomainError(err, msgInvalidReset)
	}
	s.logAudit(ctx, "password_reset", "user_id", updated.ID)
	return s.authenticated(ctx, updated)
}

// UpdatePassword changes the password of the signed-in user.
func (s *Service) UpdatePassword(ctx context.Context, userID string, req *models.UpdatePasswordRequest) (*models.AuthResult, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, docstore.DomainError(err, msgUserNotFound)
	}
	if !s.hasher.VerifyPassword(req.PasswordCurrent, user.Password) {
		s.authFailure(ctx, "wrong_current_password", "user_id", user.ID)
		return nil, dErrors.New(dErrors.CodeUnauthorized, msgWrongPassword)
	}

	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	updated, err := s.users.Update(ctx, user.ID, map[string]any{
		"password":            hash,
		"password_changed_at": requestcontext.Now(ctx),
	})
	if err != nil {
		return nil, docstore.DomainError(err, msgUserNotFound)
	}
	s.logAudit(ctx, "password_updated", "user_id", updated.ID)
	return s.authenticated(ctx, updated)
}
