package jwttoken

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "eshop/pkg/domain-errors"
	"eshop/pkg/requestcontext"
)

const invalidTokenMessage = "Invalid token. Please log in again!"

// SessionClaims are the registered claims of a session token: sub is the
// user id, jti a random identifier.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// Token is a signed session token and its validity window.
type Token struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// JWTService issues and verifies HS256 session tokens.
type JWTService struct {
	signingKey []byte
	tokenTTL   time.Duration
}

func NewJWTService(signingKey string, tokenTTL time.Duration) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		tokenTTL:   tokenTTL,
	}
}

func (s *JWTService) TTL() time.Duration {
	return s.tokenTTL
}

// IssueSessionToken signs a token for userID issued at the request time.
func (s *JWTService) IssueSessionToken(ctx context.Context, userID string) (Token, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return Token{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not generate token id")
	}
	// JWT numeric dates carry whole seconds.
	now := requestcontext.Now(ctx).Truncate(time.Second)
	expiresAt := now.Add(s.tokenTTL)

	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        hex.EncodeToString(b),
		},
	})
	signed, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return Token{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not sign token")
	}
	return Token{Value: signed, IssuedAt: now, ExpiresAt: expiresAt}, nil
}

// VerifySessionToken checks algorithm, signature, expiry and subject. Every
// failure is reported as unauthorized with the same message.
func (s *JWTService) VerifySessionToken(tokenString string) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, invalidTokenMessage)
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &dErrors.Error{Code: dErrors.CodeUnauthorized, Message: "Your token has expired! Please log in again.", Err: err}
		}
		return nil, &dErrors.Error{Code: dErrors.CodeUnauthorized, Message: invalidTokenMessage, Err: err}
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, invalidTokenMessage)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, &dErrors.Error{Code: dErrors.CodeUnauthorized, Message: invalidTokenMessage, Err: err}
	}
	if claims.IssuedAt == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, invalidTokenMessage)
	}
	return claims, nil
}
