// Package models holds per-app payment provider credential records.
package models

import (
	"time"

	id "tabhq/pkg/domain"

	"tabhq/internal/provider"
)

// ProviderCredential binds one app to one payment processor with the secrets
// the processor needs. At most one active credential exists per app+provider
// pair; configuring again replaces the old one.
type ProviderCredential struct {
	ID          id.CredentialID
	AppID       id.AppID
	Provider    provider.Name
	Credentials provider.Credentials
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
