// Package models holds the payment record and its status rules.
package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "tabhq/pkg/domain"

	"tabhq/internal/provider"
)

// Payment is one payment attempt routed through a provider. VendorTxnRef is
// the reference the vendor echoes back in webhooks; (Provider, VendorTxnRef)
// is unique so a delivery always maps to at most one row.
type Payment struct {
	ID           id.PaymentID
	AppID        id.AppID
	OrgID        id.OrgID
	Provider     provider.Name
	VendorTxnRef string
	Amount       decimal.Decimal
	Currency     string
	Status       provider.Status
	Metadata     map[string]any
	RedirectURL  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanTransitionTo reports whether moving to next is a legal forward step.
// Terminal states only move SUCCESS -> REFUNDED; everything else is frozen.
func (p *Payment) CanTransitionTo(next provider.Status) bool {
	switch p.Status {
	case provider.StatusPending:
		return next == provider.StatusSuccess || next == provider.StatusFailed
	case provider.StatusSuccess:
		return next == provider.StatusRefunded
	default:
		return false
	}
}
