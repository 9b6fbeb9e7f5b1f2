package models

import (
	"strings"

	dErrors "eshop/pkg/domain-errors"
	"eshop/pkg/validation"
)

// SignupRequest registers a customer.
type SignupRequest struct {
	FirstName       string `json:"first_name" validate:"required,min=2,max=30"`
	LastName        string `json:"last_name" validate:"required,min=2,max=30"`
	Phone           string `json:"phone" validate:"required,phone"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Password        string `json:"password" validate:"required,min=8,max=72,strongpassword"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

func (r *SignupRequest) Sanitize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Phone = strings.TrimSpace(r.Phone)
}

func (r *SignupRequest) Normalize() {
	r.Email = normalizeEmail(r.Email)
}

func (r *SignupRequest) Validate() error {
	return validation.Validate(r)
}

type VerifyEmailRequest struct {
	OTP string `json:"otp"`
}

func (r *VerifyEmailRequest) Sanitize() {
	r.OTP = strings.TrimSpace(r.OTP)
}

func (r *VerifyEmailRequest) Validate() error {
	if r.OTP == "" {
		return dErrors.New(dErrors.CodeBadRequest, "Please provide the OTP")
	}
	return nil
}

// EmailRequest carries a single email address (resendOTP, forgotPassword).
type EmailRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

func (r *EmailRequest) Normalize() {
	r.Email = normalizeEmail(r.Email)
}

func (r *EmailRequest) Validate() error {
	if r.Email == "" {
		return dErrors.New(dErrors.CodeBadRequest, "Please provide your email address")
	}
	return validation.Validate(r)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Normalize() {
	r.Email = normalizeEmail(r.Email)
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeBadRequest, "Please provide email and password")
	}
	return nil
}

type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8,max=72,strongpassword"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

func (r *ResetPasswordRequest) Validate() error {
	return validation.Validate(r)
}

type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password" validate:"required,min=8,max=72,strongpassword"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

func (r *UpdatePasswordRequest) Validate() error {
	if r.PasswordCurrent == "" || r.Password == "" || r.PasswordConfirm == "" {
		return dErrors.New(dErrors.CodeBadRequest, "Please provide current password, new password, and confirm password")
	}
	return validation.Validate(r)
}

// CreateUserRequest is the admin-side user creation payload.
type CreateUserRequest struct {
	SignupRequest
	Role       Role `json:"role" validate:"omitempty,oneof=customer admin"`
	IsVerified bool `json:"is_verified"`
}

func (r *CreateUserRequest) Validate() error {
	return validation.Validate(r)
}

// UpdateUserFields is the admin-writable whitelist of user fields.
var UpdateUserFields = []string{"first_name", "last_name", "phone", "role", "is_verified", "addresses"}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
