package main

import (
	"context"

	appservice "tabhq/internal/app/service"
	"tabhq/internal/platform/middleware"
)

// apiKeyValidator adapts the app service's key validation to the middleware
// contract.
type apiKeyValidator struct {
	apps *appservice.Service
}

func (v *apiKeyValidator) ValidateKey(ctx context.Context, rawKey string) (*middleware.KeyIdentity, error) {
	identity, err := v.apps.ValidateKey(ctx, rawKey)
	if err != nil {
		return nil, err
	}
	return &middleware.KeyIdentity{AppID: identity.AppID, OrgID: identity.OrgID}, nil
}
