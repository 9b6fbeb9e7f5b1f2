package models

import (
	"time"

	"eshop/internal/docstore"
)

// This file contains transport-layer response models for JSON output.

// UserView is the public projection of a User. Password, OTP and reset
// fields have no counterpart here.
type UserView struct {
	ID         string    `json:"_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Phone      string    `json:"phone,omitempty"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	IsVerified bool      `json:"is_verified"`
	Addresses  []Address `json:"addresses"`
	Wishlist   []string  `json:"wishlist"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func NewUserView(u *User) *UserView {
	if u == nil {
		return nil
	}
	addresses := u.Addresses
	if addresses == nil {
		addresses = []Address{}
	}
	wishlist := u.Wishlist
	if wishlist == nil {
		wishlist = []string{}
	}
	return &UserView{
		ID:         u.ID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Phone:      u.Phone,
		Email:      u.Email,
		Role:       u.Role,
		IsVerified: u.IsVerified,
		Addresses:  addresses,
		Wishlist:   wishlist,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// AuthResult is returned by every endpoint that logs the caller in.
type AuthResult struct {
	User      *User
	Token     string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

type UserData struct {
	User *UserView `json:"user"`
}

// TokenResponse is the body of signup, login and password endpoints.
type TokenResponse struct {
	Status string   `json:"status"`
	Token  string   `json:"token"`
	Data   UserData `json:"data"`
}

type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type UserResponse struct {
	Status string   `json:"status"`
	Data   UserData `json:"data"`
}

// UserListData holds projected user documents with secrets stripped.
type UserListData struct {
	Users []docstore.Document `json:"users"`
}

type UserListResponse struct {
	Status  string       `json:"status"`
	Results int          `json:"results"`
	Data    UserListData `json:"data"`
}
