package jwttoken

import (
	"eshop/pkg/platform/middleware/auth"
)

func ToGateClaims(claims *SessionClaims) *auth.Claims {
	return &auth.Claims{
		Subject:  claims.Subject,
		IssuedAt: claims.IssuedAt.Time,
	}
}

// GateAdapter exposes JWTService as the auth gate's TokenVerifier.
type GateAdapter struct {
	service *JWTService
}

func NewGateAdapter(service *JWTService) *GateAdapter {
	return &GateAdapter{service: service}
}

func (a *GateAdapter) VerifyToken(tokenString string) (*auth.Claims, error) {
	claims, err := a.service.VerifySessionToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToGateClaims(claims), nil
}
