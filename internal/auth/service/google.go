package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"eshop/internal/auth/models"
	"eshop/internal/docstore"
	"eshop/internal/sentinel"
	dErrors "eshop/pkg/domain-errors"
)

var errGoogleDisabled = dErrors.New(dErrors.CodeNotFound, "Google sign-in is not enabled")

// GoogleStart issues a one-time state value and returns the provider URL
// the client is redirected to.
func (s *Service) GoogleStart(ctx context.Context) (string, error) {
	if s.google == nil {
		return "", errGoogleDisabled
	}
	state, err := randomHex(16)
	if err != nil {
		return "", err
	}
	if err := s.states.Save(ctx, state); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not start Google sign-in")
	}
	return s.google.AuthCodeURL(state), nil
}

// GoogleCallback completes sign-in: it consumes state, exchanges code for
// the provider identity, then finds or creates the matching user.
func (s *Service) GoogleCallback(ctx context.Context, state, code string) (*models.AuthResult, error) {
	if s.google == nil {
		return nil, errGoogleDisabled
	}
	if state == "" || code == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Missing state or code")
	}
	if err := s.states.Consume(ctx, state); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeBadRequest, "Invalid or expired sign-in state")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not verify sign-in state")
	}

	identity, err := s.google.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	if identity.Email == "" || identity.Subject == "" {
		return nil, dErrors.New(dErrors.CodeUpstream, "Google sign-in failed")
	}
	// An unverified provider email proves nothing about the account it names.
	if !identity.EmailVerified {
		s.authFailure(ctx, "google_email_unverified")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "Your Google email address is not verified")
	}

	user, err := s.findOrCreateGoogleUser(ctx, identity.Subject, strings.ToLower(identity.Email), identity.GivenName, identity.FamilyName)
	if err != nil {
		return nil, err
	}
	s.metrics.incLogin("success")
	s.logAudit(ctx, "user_logged_in", "user_id", user.ID, "provider", "google")
	return s.authenticated(ctx, user)
}

func (s *Service) findOrCreateGoogleUser(ctx context.Context, googleID, email, givenName, familyName string) (*models.User, error) {
	user, err := s.users.FindByGoogleID(ctx, googleID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, docstore.DomainError(err, msgUserNotFound)
	}

	user, err = s.users.FindByEmail(ctx, email)
	if err == nil {
		if user.GoogleID != "" {
			return user, nil
		}
		linked, err := s.users.Update(ctx, user.ID, map[string]any{
			"google_id":   googleID,
			"is_verified": true,
		})
		if err != nil {
			return nil, docstore.DomainError(err, msgUserNotFound)
		}
		s.logAudit(ctx, "google_account_linked", "user_id", linked.ID)
		return linked, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, docstore.DomainError(err, msgUserNotFound)
	}

	password, err := randomHex(32)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return nil, err
	}
	if givenName == "" {
		givenName, _, _ = strings.Cut(email, "@")
	}
	created, err := s.users.Create(ctx, &models.User{
		FirstName:  givenName,
		LastName:   familyName,
		Email:      email,
		Role:       models.RoleCustomer,
		Password:   hash,
		GoogleID:   googleID,
		IsVerified: true,
	})
	if err != nil {
		return nil, docstore.DomainError(err, msgUserNotFound)
	}
	s.metrics.incUserCreated("google")
	s.logAudit(ctx, "user_created", "user_id", created.ID, "source", "google")
	s.bestEffort(ctx, "welcome email",
		s.notifier.SendWelcome(ctx, created.Email, created.FirstName),
		"user_id", created.ID,
	)
	return created, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate random value")
	}
	return hex.EncodeToString(b), nil
}
