// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "tabhq/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing AppID where OrgID is expected.
type (
	AppID        uuid.UUID
	OrgID        uuid.UUID
	PaymentID    uuid.UUID
	APIKeyID     uuid.UUID
	CredentialID uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseAppID(s string) (AppID, error) {
	id, err := parseUUID(s, "app ID")
	return AppID(id), err
}

func ParseOrgID(s string) (OrgID, error) {
	id, err := parseUUID(s, "organization ID")
	return OrgID(id), err
}

func ParsePaymentID(s string) (PaymentID, error) {
	id, err := parseUUID(s, "payment ID")
	return PaymentID(id), err
}

func ParseAPIKeyID(s string) (APIKeyID, error) {
	id, err := parseUUID(s, "API key ID")
	return APIKeyID(id), err
}

func ParseCredentialID(s string) (CredentialID, error) {
	id, err := parseUUID(s, "credential ID")
	return CredentialID(id), err
}

// String methods - for logging and debugging.

func (id AppID) String() string        { return uuid.UUID(id).String() }
func (id OrgID) String() string        { return uuid.UUID(id).String() }
func (id PaymentID) String() string    { return uuid.UUID(id).String() }
func (id APIKeyID) String() string     { return uuid.UUID(id).String() }
func (id CredentialID) String() string { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id AppID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id OrgID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id PaymentID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id APIKeyID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id CredentialID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// parseUUID is the shared validation logic.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	return id, nil
}
