package service

import (
	"context"
	"errors"

	"eshop/internal/auth/credential"
	"eshop/internal/auth/models"
	"eshop/internal/docstore"
	"eshop/internal/sentinel"
	dErrors "eshop/pkg/domain-errors"
	"eshop/pkg/requestcontext"
)

const (
	msgInvalidOTP    = "Invalid or expired OTP"
	msgNoUserByEmail = "There is no user with email address"
)

// Signup registers a customer, stores a fresh OTP and emails it.
func (s *Service) Signup(ctx context.Context, req *models.SignupRequest) (*models.AuthResult, error) {
	now := requestcontext.Now(ctx)
	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	otp, err := credential.GenerateOTP(now)
	if err != nil {
		return nil, err
	}

	created, err := s.users.Create(ctx, &models.User{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		Email:      req.Email,
		Role:       models.RoleCustomer,
		Password:   hash,
		OTP:        otp.Hash,
		OTPExpires: &otp.ExpiresAt,
	})
	if err != nil {
		return nil, docstore.DomainError(err, "user not found")
	}
	s.metrics.incUserCreated("signup")
	s.logAudit(ctx, "user_created", "user_id", created.ID, "source", "signup")

	s.bestEffort(ctx, "verification email",
		s.notifier.SendVerification(ctx, created.Email, created.FirstName, otp.Plain),
		"user_id", created.ID,
	)
	return s.authenticated(ctx, created)
}

// VerifyEmail consumes an OTP. With a callerID the OTP must belong to that
// user; anonymous callers are matched by the OTP itself.
func (s *Service) VerifyEmail(ctx context.Context, callerID, otp string) (*models.User, error) {
	now := requestcontext.Now(ctx)
	hash := credential.HashToken(otp)

	var user *models.User
	var err error
	if callerID != "" {
		user, err = s.users.FindByID(ctx, callerID)
		if err == nil && !user.OTPValid(hash, now) {
			err = sentinel.ErrNotFound
		}
	} else {
		user, err = s.users.FindByOTP(ctx, hash, now)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeBadRequest, msgInvalidOTP)
		}
		return nil, docstore.DomainError(err, msgInvalidOTP)
	}

	updated, err := s.users.ConsumeOTP(ctx, user.ID, hash, now, map[string]any{
		"is_verified": true,
		"otp":         nil,
		"otp_expires": nil,
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeBadRequest, msgInvalidOTP)
		}
		return nil, docstore.DomainError(err, msgInvalidOTP)
	}
	s.logAudit(ctx, "email_verified", "user_id", updated.ID)

	s.bestEffort(ctx, "welcome email",
		s.notifier.SendWelcome(ctx, updated.Email, updated.FirstName),
		"user_id", updated.ID,
	)
	return updated, nil
}

// ResendOTP replaces the live OTP of an unverified user and emails it.
func (s *Service) ResendOTP(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return docstore.DomainError(err, msgNoUserByEmail)
	}
	if user.IsVerified {
		return dErrors.New(dErrors.CodeBadRequest, "Email is already verified")
	}

	otp, err := credential.GenerateOTP(requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	if _, err := s.users.Update(ctx, user.ID, map[string]any{
		"otp":         otp.Hash,
		"otp_expires": otp.ExpiresAt,
	}); err != nil {
		return docstore.DomainError(err, msgNoUserByEmail)
	}

	if err := s.notifier.SendVerification(ctx, user.Email, user.FirstName, otp.Plain); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstream, "There was an error sending the email. Try again later!")
	}
	s.logAudit(ctx, "otp_resent", "user_id", user.ID)
	return nil
}
