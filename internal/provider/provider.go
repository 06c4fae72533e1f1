// Package provider defines the uniform capability contract every payment
// processor adapter implements, plus the canonical status vocabulary the rest
// of the platform speaks.
package provider

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

// Name identifies a supported payment processor. The set is closed; new
// processors are added by explicit registration, never implicitly.
type Name string

const (
	NameStripe      Name = "stripe"
	NameFlutterwave Name = "flutterwave"
	NamePayPal      Name = "paypal"
)

// Normalize lowercases a provider name for case-insensitive lookup.
func Normalize(raw string) Name {
	return Name(strings.ToLower(strings.TrimSpace(raw)))
}

func (n Name) String() string { return string(n) }

// Status is the platform-wide canonical payment status.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusSuccess  Status = "SUCCESS"
	StatusFailed   Status = "FAILED"
	StatusRefunded Status = "REFUNDED"
)

// IsTerminal reports whether a payment in this status can no longer be
// advanced by webhook reconciliation.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusRefunded
}

// MapVendorStatus maps a vendor-reported status string into the canonical
// enum. The table is fixed and case-insensitive; anything unrecognized
// defaults to PENDING, never to SUCCESS.
func MapVendorStatus(vendorStatus string) Status {
	switch strings.ToLower(strings.TrimSpace(vendorStatus)) {
	case "succeeded", "success", "successful", "paid":
		return StatusSuccess
	case "pending", "processing":
		return StatusPending
	case "failed", "cancelled", "error":
		return StatusFailed
	default:
		return StatusPending
	}
}

// Credentials is the opaque per-tenant credential blob attached to an
// (app, provider) pair. Fields are vendor-specific; the platform only reads
// the signature-secret and callback-URL keys it needs for reconciliation.
type Credentials map[string]any

// Well-known credential keys the reconciler depends on. Everything else in
// the blob belongs to the adapter that consumes it.
const (
	CredSecretHash  = "secretHash"
	CredCallbackURL = "callbackUrl"
)

// String returns the string value stored under key, or "" when absent or of
// another type.
func (c Credentials) String(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

// SignatureSecret returns the webhook signature secret, if configured.
func (c Credentials) SignatureSecret() string { return c.String(CredSecretHash) }

// CallbackURL returns the tenant callback URL, if configured.
func (c Credentials) CallbackURL() string { return c.String(CredCallbackURL) }

// CreateResult is the normalized outcome of an adapter CreatePayment call.
type CreateResult struct {
	VendorTxnRef string
	VendorStatus string
	RedirectURL  string
}

// Adapter is the capability set every vendor integration implements.
// Instances are single-use: resolved fresh from the registry, configured with
// one tenant's credentials via Init, and discarded after the request. Nothing
// is shared across tenants.
type Adapter interface {
	// Name returns the provider name this adapter serves.
	Name() Name

	// Init stores vendor configuration. Idempotent; fails when required
	// credential fields are absent.
	Init(creds Credentials) error

	// CreatePayment initiates a payment with the vendor and returns the
	// vendor transaction reference, the raw vendor status string, and an
	// optional redirect URL for approval-style flows.
	CreatePayment(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]any) (*CreateResult, error)

	// CapturePayment captures a previously authorized payment.
	CapturePayment(ctx context.Context, vendorTxnRef string) (bool, error)

	// RefundPayment refunds a payment, optionally partially.
	RefundPayment(ctx context.Context, vendorTxnRef string, amount *decimal.Decimal) (bool, error)

	// VerifyWebhookSignature checks the vendor signature on a webhook
	// delivery against the tenant's stored secret. Implementations must use
	// constant-time comparison for shared-secret schemes.
	VerifyWebhookSignature(headers http.Header, payload []byte, secret string) bool

	// VerifyTransactionByReference re-checks the transaction outcome against
	// the vendor of record. This call, never the webhook body, is the source
	// of truth during reconciliation.
	VerifyTransactionByReference(ctx context.Context, txRef string) (bool, error)
}
