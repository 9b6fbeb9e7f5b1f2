package models

import (
	"time"
)

// This file contains the principal as persisted in the users collection.
// Sensitive fields never leave the service; use UserView for responses.

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAdmin
}

// Address is a saved shipping address.
type Address struct {
	RegionID      string `json:"region_id" validate:"required,uuid"`
	AreaID        string `json:"area_id" validate:"required,uuid"`
	StreetAddress string `json:"street_address" validate:"required,min=5"`
	ZipCode       string `json:"zip_code,omitempty" validate:"omitempty,numeric,min=5,max=10"`
	IsDefault     bool   `json:"is_default"`
}

// User is the stored principal.
type User struct {
	ID        string `json:"_id,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`

	Password             string     `json:"password,omitempty"`
	PasswordChangedAt    *time.Time `json:"password_changed_at,omitempty"`
	PasswordResetToken   string     `json:"password_reset_token,omitempty"`
	PasswordResetExpires *time.Time `json:"password_reset_expires,omitempty"`

	IsVerified bool       `json:"is_verified"`
	OTP        string     `json:"otp,omitempty"`
	OTPExpires *time.Time `json:"otp_expires,omitempty"`

	GoogleID  string    `json:"google_id,omitempty"`
	Addresses []Address `json:"addresses,omitempty"`
	Wishlist  []string  `json:"wishlist,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// OTPValid reports whether hash matches the live OTP at now.
func (u *User) OTPValid(hash string, now time.Time) bool {
	return u.OTP != "" && u.OTP == hash && u.OTPExpires != nil && now.Before(*u.OTPExpires)
}

// ResetTokenValid reports whether hash matches the live reset token at now.
func (u *User) ResetTokenValid(hash string, now time.Time) bool {
	return u.PasswordResetToken != "" && u.PasswordResetToken == hash &&
		u.PasswordResetExpires != nil && now.Before(*u.PasswordResetExpires)
}

// SensitiveFields are stored user keys that are never serialised.
var SensitiveFields = []string{
	"password",
	"password_changed_at",
	"password_reset_token",
	"password_reset_expires",
	"otp",
	"otp_expires",
	"google_id",
	"__v",
}

// StripSensitive removes SensitiveFields from a raw user document in place.
func StripSensitive(doc map[string]any) {
	for _, k := range SensitiveFields {
		delete(doc, k)
	}
}
