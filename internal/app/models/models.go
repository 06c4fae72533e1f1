// Package models holds the tenant app and API key records.
package models

import (
	"time"

	id "tabhq/pkg/domain"
)

// App is a customer-registered application scoped to one organization. Each
// app holds its own provider credentials and exactly one active API key.
type App struct {
	ID          id.AppID
	OrgID       id.OrgID
	Name        string
	Description string
	Environment string
	APIKeyID    id.APIKeyID // the currently attached key
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// APIKey is a bearer credential for one app. The raw value is shown to the
// tenant exactly once, at rotation time.
type APIKey struct {
	ID        id.APIKeyID
	AppID     id.AppID
	Key       string
	Active    bool
	CreatedAt time.Time
}
