// Package paypal implements the approval-redirect style provider adapter.
//
// Payments are created as orders that the payer approves on PayPal's site;
// the approve link comes back as the redirect URL. Webhook signatures are
// verified through PayPal's own verify-webhook-signature endpoint rather than
// a shared-secret comparison.
package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"tabhq/internal/provider"
	dErrors "tabhq/pkg/domain-errors"
)

const (
	sandboxBaseURL = "https://api.sandbox.paypal.com"
	liveBaseURL    = "https://api.paypal.com"
)

// Adapter talks to the PayPal REST API for one tenant.
type Adapter struct {
	client       *resty.Client
	clientID     string
	clientSecret string
	webhookID    string
}

// New returns an unconfigured adapter. Init must be called before use.
func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Name() provider.Name { return provider.NamePayPal }

// Init stores vendor configuration. environment selects sandbox or production;
// baseUrl overrides both for tests.
func (a *Adapter) Init(creds provider.Credentials) error {
	clientID := creds.String("clientId")
	clientSecret := creds.String("clientSecret")
	if clientID == "" || clientSecret == "" {
		return dErrors.New(dErrors.CodeValidation, "paypal requires both clientId and clientSecret")
	}
	a.clientID = clientID
	a.clientSecret = clientSecret
	a.webhookID = creds.String("webhookId")

	baseURL := creds.String("baseUrl")
	if baseURL == "" {
		if creds.String("environment") == "production" {
			baseURL = liveBaseURL
		} else {
			baseURL = sandboxBaseURL
		}
	}
	a.client = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetBasicAuth(clientID, clientSecret)
	return nil
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
	Message string `json:"message"`
}

// CreatePayment creates an order with CAPTURE intent. Approval-redirect flows
// need returnUrl and cancelUrl in metadata; without them PayPal has nowhere to
// send the payer back.
func (a *Adapter) CreatePayment(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]any) (*provider.CreateResult, error) {
	returnURL := mstr(metadata, "returnUrl")
	cancelURL := mstr(metadata, "cancelUrl")
	if returnURL == "" || cancelURL == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "returnUrl and cancelUrl are required for paypal payments")
	}

	description := mstr(metadata, "description")
	if description == "" {
		description = "Payment for goods/services"
	}
	brandName := mstr(metadata, "brandName")
	if brandName == "" {
		brandName = "TabHQ"
	}

	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"amount": map[string]any{
				"currency_code": strings.ToUpper(currency),
				"value":         amount.String(),
			},
			"description": description,
		}},
		"application_context": map[string]any{
			"brand_name":   brandName,
			"landing_page": "NO_PREFERENCE",
			"user_action":  "PAY_NOW",
			"return_url":   returnURL,
			"cancel_url":   cancelURL,
		},
	}

	var out orderResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post("/v2/checkout/orders")
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeVendorError, "paypal create order request failed")
	}
	if resp.IsError() {
		return nil, dErrors.New(dErrors.CodeVendorError, "paypal error: "+out.Message)
	}

	var redirect string
	for _, link := range out.Links {
		if link.Rel == "approve" {
			redirect = link.Href
			break
		}
	}
	return &provider.CreateResult{
		VendorTxnRef: out.ID,
		VendorStatus: out.Status,
		RedirectURL:  redirect,
	}, nil
}

// CapturePayment captures an approved order.
func (a *Adapter) CapturePayment(ctx context.Context, vendorTxnRef string) (bool, error) {
	var out orderResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetResult(&out).
		Post("/v2/checkout/orders/" + vendorTxnRef + "/capture")
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeVendorError, "paypal capture request failed")
	}
	if resp.IsError() {
		return false, dErrors.New(dErrors.CodeVendorError, "paypal capture failed: "+out.Message)
	}
	return out.Status == "COMPLETED", nil
}

// RefundPayment refunds a captured payment.
func (a *Adapter) RefundPayment(ctx context.Context, vendorTxnRef string, amount *decimal.Decimal) (bool, error) {
	body := map[string]any{"note_to_payer": "Refund"}
	if amount != nil {
		body["amount"] = map[string]any{
			"value":         amount.String(),
			"currency_code": "USD",
		}
	}

	var out orderResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/v2/payments/captures/" + vendorTxnRef + "/refund")
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeVendorError, "paypal refund request failed")
	}
	if resp.IsError() {
		return false, dErrors.New(dErrors.CodeVendorError, "paypal refund failed: "+out.Message)
	}
	return out.Status == "COMPLETED", nil
}

// VerifyWebhookSignature asks PayPal to verify the delivery. PayPal signs
// webhooks with certificates rather than a shared secret, so the check is a
// round trip to the vendor; any transport failure counts as invalid.
func (a *Adapter) VerifyWebhookSignature(headers http.Header, payload []byte, _ string) bool {
	if a.webhookID == "" || a.client == nil {
		return false
	}

	var event json.RawMessage
	if err := json.Unmarshal(payload, &event); err != nil {
		return false
	}

	body := map[string]any{
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"webhook_id":        a.webhookID,
		"webhook_event":     event,
	}

	var out struct {
		VerificationStatus string `json:"verification_status"`
	}
	resp, err := a.client.R().
		SetBody(body).
		SetResult(&out).
		Post("/v1/notifications/verify-webhook-signature")
	if err != nil || resp.IsError() {
		return false
	}
	return out.VerificationStatus == "SUCCESS"
}

// VerifyTransactionByReference re-reads the order from PayPal.
func (a *Adapter) VerifyTransactionByReference(ctx context.Context, txRef string) (bool, error) {
	var out orderResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v2/checkout/orders/" + txRef)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeVendorError, "paypal verify request failed")
	}
	if resp.IsError() {
		return false, dErrors.New(dErrors.CodeVendorError, "could not verify order: "+out.Message)
	}
	return out.Status == "COMPLETED", nil
}

func mstr(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

var _ provider.Adapter = (*Adapter)(nil)
