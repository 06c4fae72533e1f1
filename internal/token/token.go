// Package token validates the dashboard bearer tokens issued by the identity
// service. Only verification lives here; issuance is external.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "tabhq/pkg/domain-errors"

	"tabhq/internal/platform/middleware"
)

// DashboardClaims are the JWT claims carried by dashboard tokens.
type DashboardClaims struct {
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
	jwt.RegisteredClaims
}

// Validator verifies HS256 dashboard tokens against a shared signing key.
type Validator struct {
	signingKey []byte
}

// NewValidator creates a token validator.
func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

// ValidateToken parses and verifies a bearer token, returning the caller
// identity. Implements middleware.TokenValidator.
func (v *Validator) ValidateToken(tokenString string) (*middleware.TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &DashboardClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*DashboardClaims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.OrgID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token missing organization")
	}

	return &middleware.TokenClaims{
		UserID: claims.UserID,
		OrgID:  claims.OrgID,
	}, nil
}

// Issue mints a short-lived dashboard token. Used by local tooling and
// tests; production tokens come from the identity service.
func (v *Validator) Issue(userID, orgID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := DashboardClaims{
		UserID: userID,
		OrgID:  orgID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign token")
	}
	return signed, nil
}
