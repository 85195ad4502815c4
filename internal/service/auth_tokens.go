package service

import (
	"fmt"

	"github.com/AnsKM/dealflow-crm/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenTypeAccess = "access"
	tokenIssuer     = "dealflow-api"
)

// ============================================================
// ValidateToken: used by middleware
// ============================================================

// JWTClaims represents the custom claims in access tokens.
type JWTClaims struct {
	Sub      string `json:"sub"`
	TenantID string `json:"tenant_id"`
	Type     string `json:"type"`
	jwt.RegisteredClaims
}

// Principal returns the caller identity carried by the token.
func (c *JWTClaims) Principal() domain.Principal {
	return domain.Principal{UserID: c.Sub, TenantID: c.TenantID}
}

// ValidateAccessToken parses an HS256 access token and checks its type.
func (s *AuthService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "could not validate credentials"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	if claims.Type != tokenTypeAccess {
		return nil, &domain.ErrUnauthorized{Message: "invalid token type"}
	}
	if claims.Sub == "" || claims.TenantID == "" {
		return nil, &domain.ErrUnauthorized{Message: "could not validate credentials"}
	}

	return claims, nil
}

func (s *AuthService) signAccessToken(userID, tenantID string) (string, error) {
	now := s.now()
	claims := JWTClaims{
		Sub:      userID,
		TenantID: tenantID,
		Type:     tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
