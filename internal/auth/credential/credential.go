// Package credential implements password hashing, one-time codes and
// reset tokens. Session tokens live in internal/jwt_token.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	dErrors "eshop/pkg/domain-errors"
)

const (
	DefaultCost = 12

	OTPTTL   = 10 * time.Minute
	ResetTTL = 10 * time.Minute

	// StaleMargin is how far a password change must trail token issuance
	// before the token is considered stale.
	StaleMargin = time.Second

	otpMin = 100000
	otpMax = 999999
)

// Hasher hashes and verifies passwords with bcrypt.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher using cost, or DefaultCost when cost is outside
// bcrypt's accepted range.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", dErrors.New(dErrors.CodeValidation, "Please provide a password")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeValidation, "Password is too long")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not hash password")
	}
	return string(hashed), nil
}

// VerifyPassword reports whether plain matches hash. Malformed hashes are
// treated as a mismatch.
func (h *Hasher) VerifyPassword(plain, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Secret is a generated plaintext value with the hash to persist.
type Secret struct {
	Plain     string
	Hash      string
	ExpiresAt time.Time
}

// GenerateOTP returns a uniformly random six-digit code valid for OTPTTL.
func GenerateOTP(now time.Time) (Secret, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return Secret{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not generate otp")
	}
	plain := big.NewInt(0).Add(n, big.NewInt(otpMin)).String()
	return Secret{Plain: plain, Hash: HashToken(plain), ExpiresAt: now.Add(OTPTTL)}, nil
}

// GenerateResetToken returns 32 random bytes hex-encoded, valid for ResetTTL.
func GenerateResetToken(now time.Time) (Secret, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return Secret{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not generate reset token")
	}
	plain := hex.EncodeToString(buf)
	return Secret{Plain: plain, Hash: HashToken(plain), ExpiresAt: now.Add(ResetTTL)}, nil
}

// HashToken is the lookup hash stored for OTPs and reset tokens.
func HashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// CheckStaleToken reports whether a token issued at issuedAt predates a
// password change. A nil passwordChangedAt never makes a token stale.
func CheckStaleToken(passwordChangedAt *time.Time, issuedAt time.Time) bool {
	if passwordChangedAt == nil || passwordChangedAt.IsZero() {
		return false
	}
	return passwordChangedAt.Sub(issuedAt) >= StaleMargin
}
