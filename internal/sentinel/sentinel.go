package sentinel

import "errors"

// Sentinel dependency errors. Stores return these (optionally wrapped)
// so services can translate them into domain errors exactly once.
var (
	ErrNotFound    = errors.New("not found")
	ErrDuplicate   = errors.New("duplicate key")
	ErrInvalidID   = errors.New("invalid id")
	ErrExpired     = errors.New("expired")
	ErrUnavailable = errors.New("unavailable")
)
