// Package stripe implements the card-intent style provider adapter against
// the Stripe REST API. Amounts are converted to minor units; webhook
// signatures follow Stripe's t=timestamp,v1=hmac header scheme.
package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"tabhq/internal/provider"
	dErrors "tabhq/pkg/domain-errors"
)

const defaultBaseURL = "https://api.stripe.com/v1"

// Adapter talks to the Stripe REST API for one tenant.
type Adapter struct {
	client    *resty.Client
	secretKey string
}

// New returns an unconfigured adapter. Init must be called before use.
func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Name() provider.Name { return provider.NameStripe }

// Init stores vendor configuration. The credential blob may override the base
// URL so tests can point at a stub server.
func (a *Adapter) Init(creds provider.Credentials) error {
	secretKey := creds.String("secretKey")
	if secretKey == "" {
		return dErrors.New(dErrors.CodeValidation, "stripe requires secretKey")
	}
	a.secretKey = secretKey

	baseURL := creds.String("baseUrl")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	a.client = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetAuthToken(secretKey).
		SetHeader("Content-Type", "application/x-www-form-urlencoded")
	return nil
}

type paymentIntent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type refund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreatePayment creates a PaymentIntent. Stripe amounts are integer minor
// units, so 10.50 USD becomes 1050.
func (a *Adapter) CreatePayment(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]any) (*provider.CreateResult, error) {
	form := map[string]string{
		"amount":   amount.Mul(decimal.NewFromInt(100)).Round(0).String(),
		"currency": strings.ToLower(currency),
	}
	for k, v := range metadata {
		if s, ok := v.(string); ok {
			form["metadata["+k+"]"] = s
		}
	}

	var out paymentIntent
	resp, err := a.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&out).
		SetError(&out).
		Post("/payment_intents")
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeVendorError, "stripe payment_intents request failed")
	}
	if resp.IsError() {
		msg := "payment intent creation failed"
		if out.Error != nil {
			msg = out.Error.Message
		}
		return nil, dErrors.New(dErrors.CodeVendorError, "stripe error: "+msg)
	}

	return &provider.CreateResult{
		VendorTxnRef: out.ID,
		VendorStatus: out.Status,
	}, nil
}

// CapturePayment captures a previously authorized PaymentIntent.
func (a *Adapter) CapturePayment(ctx context.Context, vendorTxnRef string) (bool, error) {
	var out paymentIntent
	resp, err := a.client.R().
		SetContext(ctx).
		SetResult(&out).
		Post("/payment_intents/" + vendorTxnRef + "/capture")
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeVendorError, "stripe capture request failed")
	}
	if resp.IsError() {
		return false, dErrors.New(dErrors.CodeVendorError, "stripe capture failed")
	}
	return out.Status == "succeeded", nil
}

// RefundPayment refunds a PaymentIntent, optionally partially.
func (a *Adapter) RefundPayment(ctx context.Context, vendorTxnRef string, amount *decimal.Decimal) (bool, error) {
	form := map[string]string{"payment_intent": vendorTxnRef}
	if amount != nil {
		form["amount"] = amount.Mul(decimal.NewFromInt(100)).Round(0).String()
	}

	var out refund
	resp, err := a.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&out).
		Post("/refunds")
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeVendorError, "stripe refund request failed")
	}
	if resp.IsError() {
		return false, dErrors.New(dErrors.CodeVendorError, "stripe refund failed")
	}
	return out.Status == "succeeded", nil
}

// VerifyWebhookSignature validates Stripe's signed webhook header: the
// Stripe-Signature header carries t=<timestamp> and v1=<hmac>, where the hmac
// is HMAC-SHA256 over "<timestamp>.<payload>" with the endpoint secret.
func (a *Adapter) VerifyWebhookSignature(headers http.Header, payload []byte, secret string) bool {
	header := headers.Get("Stripe-Signature")
	if header == "" || secret == "" {
		return false
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			signatures = append(signatures, v)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if subtle.ConstantTimeCompare([]byte(expected), []byte(sig)) == 1 {
			return true
		}
	}
	return false
}

// VerifyTransactionByReference re-reads the PaymentIntent from Stripe.
func (a *Adapter) VerifyTransactionByReference(ctx context.Context, txRef string) (bool, error) {
	var out paymentIntent
	resp, err := a.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/payment_intents/" + txRef)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeVendorError, "stripe verify request failed")
	}
	if resp.IsError() {
		return false, dErrors.New(dErrors.CodeVendorError, "could not verify payment intent")
	}
	return out.Status == "succeeded", nil
}

var _ provider.Adapter = (*Adapter)(nil)
