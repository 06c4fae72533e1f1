package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "tabhq/pkg/domain"
)

// TokenValidator validates dashboard bearer tokens. Token issuance lives
// outside this service; only verification happens here.
type TokenValidator interface {
	ValidateToken(tokenString string) (*TokenClaims, error)
}

// TokenClaims carries the identity extracted from a validated bearer token.
type TokenClaims struct {
	UserID string
	OrgID  string
}

// KeyIdentity is the tenant identity resolved from a valid API key.
type KeyIdentity struct {
	AppID id.AppID
	OrgID id.OrgID
}

// APIKeyValidator resolves a raw API key to the app it belongs to.
type APIKeyValidator interface {
	ValidateKey(ctx context.Context, rawKey string) (*KeyIdentity, error)
}

type contextKeyOrgID struct{}
type contextKeyAppID struct{}

// GetOrgID retrieves the authenticated organization ID from the context.
func GetOrgID(ctx context.Context) string {
	orgID, ok := ctx.Value(contextKeyOrgID{}).(string)
	if !ok {
		return ""
	}
	return orgID
}

// GetAppID retrieves the API-key-authenticated app ID from the context.
func GetAppID(ctx context.Context) string {
	appID, ok := ctx.Value(contextKeyAppID{}).(string)
	if !ok {
		return ""
	}
	return appID
}

// RequireAuth guards dashboard endpoints with a bearer token.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok || token == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				unauthorized(w, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyOrgID{}, claims.OrgID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAPIKey guards machine endpoints with a tenant API key.
// The key arrives in the X-API-Key header; validation is delegated to the
// key manager so active-flag and checksum rules live in one place.
func RequireAPIKey(validator APIKeyValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawKey := r.Header.Get("X-API-Key")
			if rawKey == "" {
				unauthorized(w, "API key missing")
				return
			}

			identity, err := validator.ValidateKey(r.Context(), rawKey)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - invalid API key",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				unauthorized(w, "invalid or inactive API key")
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyAppID{}, identity.AppID.String())
			ctx = context.WithValue(ctx, contextKeyOrgID{}, identity.OrgID.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized","error_description":"` + msg + `"}`))
}
