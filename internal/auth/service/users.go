package service

import (
	"context"
	"net/url"

	"eshop/internal/auth/models"
	userStore "eshop/internal/auth/store/user"
	"eshop/internal/docstore"
	"eshop/internal/payload"
	"eshop/internal/query"
	dErrors "eshop/pkg/domain-errors"
	"eshop/pkg/platform/middleware/auth"
	"eshop/pkg/validation"
)

const msgNoUserWithID = "No user found with that ID"

// LoadPrincipal resolves a token subject for the authorization gate.
func (s *Service) LoadPrincipal(ctx context.Context, id string) (*auth.Principal, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		err = docstore.DomainError(err, msgUserNotFound)
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			return nil, &dErrors.Error{Code: dErrors.CodeNotFound, Message: msgUserNotFound, Err: err}
		}
		return nil, err
	}
	return &auth.Principal{
		ID:                user.ID,
		Email:             user.Email,
		Role:              string(user.Role),
		PasswordChangedAt: user.PasswordChangedAt,
	}, nil
}

// Me returns the signed-in user.
func (s *Service) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, docstore.DomainError(err, msgUserNotFound)
	}
	return user, nil
}

// ListUsers runs the list pipeline over the users collection. Documents
// come back without sensitive fields.
func (s *Service) ListUsers(ctx context.Context, params url.Values) ([]docstore.Document, error) {
	spec, err := query.FromRequest(userStore.Schema, params)
	if err != nil {
		return nil, err
	}
	docs, err := s.users.List(ctx, spec)
	if err != nil {
		return nil, docstore.DomainError(err, msgNoUserWithID)
	}
	return docs, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, docstore.DomainError(err, msgNoUserWithID)
	}
	return user, nil
}

// CreateUser is the admin-side account creation. No OTP is issued.
func (s *Service) CreateUser(ctx context.Context, req *models.CreateUserRequest) (*models.User, error) {
	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	role := req.Role
	if role == "" {
		role = models.RoleCustomer
	}
	created, err := s.users.Create(ctx, &models.User{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		Email:      req.Email,
		Role:       role,
		Password:   hash,
		IsVerified: req.IsVerified,
	})
	if err != nil {
		return nil, docstore.DomainError(err, msgNoUserWithID)
	}
	s.metrics.incUserCreated("admin")
	s.logAudit(ctx, "user_created", "user_id", created.ID, "source", "admin")
	return created, nil
}

// UpdateUser applies whitelisted admin changes. Password and token fields
// can never be written here.
func (s *Service) UpdateUser(ctx context.Context, id string, fields payload.Fields) (*models.User, error) {
	normalized, err := payload.Normalize(fields, models.UpdateUserFields, []string{"addresses"})
	if err != nil {
		return nil, err
	}
	changes, err := userChanges(normalized)
	if err != nil {
		return nil, err
	}
	updated, err := s.users.Update(ctx, id, changes)
	if err != nil {
		return nil, docstore.DomainError(err, msgNoUserWithID)
	}
	s.logAudit(ctx, "user_updated", "user_id", updated.ID)
	return updated, nil
}

// userChangeSet is the typed, validated form of an admin user update.
type userChangeSet struct {
	FirstName  *string          `json:"first_name,omitempty" validate:"omitempty,min=2,max=30"`
	LastName   *string          `json:"last_name,omitempty" validate:"omitempty,min=2,max=30"`
	Phone      *string          `json:"phone,omitempty" validate:"omitempty,phone"`
	Role       *models.Role     `json:"role,omitempty" validate:"omitempty,oneof=customer admin"`
	IsVerified *bool            `json:"is_verified,omitempty"`
	Addresses  []models.Address `json:"addresses,omitempty" validate:"omitempty,dive"`
}

func userChanges(fields payload.Fields) (docstore.Document, error) {
	if len(fields) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "No updatable fields provided")
	}
	if v, ok := fields["is_verified"].(string); ok {
		fields["is_verified"] = v == "true"
	}

	var set userChangeSet
	if err := docstore.Document(fields).Decode(&set); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "Invalid Input Data. Unexpected field type")
	}
	if err := validation.Validate(set); err != nil {
		return nil, err
	}
	changes, err := docstore.Normalize(set)
	if err != nil {
		return nil, err
	}
	return changes, nil
}
