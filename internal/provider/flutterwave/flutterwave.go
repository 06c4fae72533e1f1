// Package flutterwave implements the mobile-money style provider adapter.
//
// Flutterwave routes mobile-money charges through country-specific endpoints
// with country-specific payload fields. This adapter normalizes those quirks
// behind the uniform CreatePayment call: callers pass a country (either a
// mobile-money region or a francophone ISO code) in metadata and the adapter
// derives the charge type and payload shape.
package flutterwave

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tabhq/internal/provider"
	dErrors "tabhq/pkg/domain-errors"
)

const defaultBaseURL = "https://api.flutterwave.com/v3"

const defaultCountry = "ghana"

// chargeTypes maps a mobile-money country to the Flutterwave charge type.
var chargeTypes = map[string]string{
	"ghana":        "mobile_money_ghana",
	"uganda":       "mobile_money_uganda",
	"rwanda":       "mobile_money_rwanda",
	"zambia":       "mobile_money_zambia",
	"tanzania":     "mobile_money_tanzania",
	"franco_phone": "mobile_money_franco",
	"mpesa":        "mpesa",
}

// francophoneCountries maps ISO codes to the country name Flutterwave expects
// on francophone charges.
var francophoneCountries = map[string]string{
	"CM": "cameroon",
	"CI": "cote_divoire",
	"SN": "senegal",
	"ML": "mali",
	"TG": "togo",
	"BF": "burkina_faso",
	"BJ": "benin",
	"GN": "guinea",
	"CD": "democratic_republic_congo",
	"FR": "france",
}

// Adapter talks to the Flutterwave REST API for one tenant.
type Adapter struct {
	client         *resty.Client
	publicKey      string
	secretKey      string
	defaultCountry string
}

// New returns an unconfigured adapter. Init must be called before use.
func New() *Adapter {
	return &Adapter{defaultCountry: defaultCountry}
}

func (a *Adapter) Name() provider.Name { return provider.NameFlutterwave }

// Init stores vendor configuration. The credential blob may override the base
// URL (tests point it at a stub server) and the default mobile-money country.
func (a *Adapter) Init(creds provider.Credentials) error {
	publicKey := creds.String("publicKey")
	secretKey := creds.String("secretKey")
	if publicKey == "" || secretKey == "" {
		return dErrors.New(dErrors.CodeValidation, "flutterwave requires both publicKey and secretKey")
	}
	a.publicKey = publicKey
	a.secretKey = secretKey
	if country := creds.String("defaultCountry"); country != "" {
		a.defaultCountry = country
	}

	baseURL := creds.String("baseUrl")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	a.client = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetAuthToken(secretKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return nil
}

// apiResponse is the Flutterwave response envelope.
type apiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID      int64  `json:"id"`
		TxRef   string `json:"tx_ref"`
		FlwRef  string `json:"flw_ref"`
		Status  string `json:"status"`
		AuthURL string `json:"auth_url"`
	} `json:"data"`
	Meta struct {
		Authorization struct {
			Redirect string `json:"redirect"`
		} `json:"authorization"`
	} `json:"meta"`
}

type chargePayload struct {
	TxRef       string `json:"tx_ref"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Fullname    string `json:"fullname,omitempty"`

	Network           string `json:"network,omitempty"`
	Voucher           string `json:"voucher,omitempty"`
	OrderID           string `json:"order_id,omitempty"`
	RedirectURL       string `json:"redirect_url,omitempty"`
	Country           string `json:"country,omitempty"`
	ClientIP          string `json:"client_ip,omitempty"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`
}

// resolvedCountry is the outcome of normalizing the caller-supplied country.
type resolvedCountry struct {
	apiCountry string // key into chargeTypes
	isoCountry string // original ISO code for francophone charges
}

func (a *Adapter) resolveCountry(raw string) (resolvedCountry, error) {
	if raw == "" {
		raw = a.defaultCountry
	}
	if _, ok := francophoneCountries[strings.ToUpper(raw)]; ok {
		return resolvedCountry{apiCountry: "franco_phone", isoCountry: strings.ToUpper(raw)}, nil
	}
	lower := strings.ToLower(raw)
	if _, ok := chargeTypes[lower]; ok {
		return resolvedCountry{apiCountry: lower}, nil
	}
	return resolvedCountry{}, dErrors.New(dErrors.CodeUnsupportedVariant,
		fmt.Sprintf("mobile money not supported for country %q; supported: %s", raw, supportedCountries()))
}

func supportedCountries() string {
	names := make([]string, 0, len(chargeTypes)+len(francophoneCountries))
	for c := range chargeTypes {
		names = append(names, c)
	}
	for iso := range francophoneCountries {
		names = append(names, iso)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// CreatePayment initiates a mobile-money charge.
func (a *Adapter) CreatePayment(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]any) (*provider.CreateResult, error) {
	country, err := a.resolveCountry(mstr(metadata, "country"))
	if err != nil {
		return nil, err
	}

	txRef := mstr(metadata, "txRef")
	if txRef == "" {
		txRef = "tx-" + uuid.NewString()
	}

	payload := chargePayload{
		TxRef:       txRef,
		Amount:      amount.String(),
		Currency:    currency,
		Email:       mstr(metadata, "customerEmail"),
		PhoneNumber: mstr(metadata, "phoneNumber"),
		Fullname:    mstr(metadata, "customerName"),
	}

	switch country.apiCountry {
	case "ghana":
		payload.Network = defaulted(mstr(metadata, "network"), "MTN")
	case "uganda":
		payload.Network = defaulted(mstr(metadata, "network"), "MTN")
		payload.Voucher = mstr(metadata, "voucher")
		payload.RedirectURL = mstr(metadata, "redirectUrl")
	case "rwanda":
		payload.OrderID = mstr(metadata, "orderId")
	case "tanzania":
		payload.Network = defaulted(mstr(metadata, "network"), "Halopesa")
		payload.ClientIP = mstr(metadata, "clientIp")
		payload.DeviceFingerprint = mstr(metadata, "deviceFingerprint")
	case "franco_phone":
		payload.Country = country.isoCountry
	}

	var out apiResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("type", chargeTypes[country.apiCountry]).
		SetBody(payload).
		SetResult(&out).
		Post("/charges")
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeVendorError, "flutterwave charge request failed")
	}
	if resp.IsError() || out.Status != "success" {
		return nil, dErrors.New(dErrors.CodeVendorError, "flutterwave error: "+out.Message)
	}

	redirect := out.Meta.Authorization.Redirect
	if redirect == "" {
		redirect = out.Data.AuthURL
	}
	return &provider.CreateResult{
		VendorTxnRef: txRef,
		VendorStatus: defaulted(out.Data.Status, out.Status),
		RedirectURL:  redirect,
	}, nil
}

// CapturePayment reports whether the charge ended successful. Mobile-money
// charges have no separate capture step at the vendor.
func (a *Adapter) CapturePayment(ctx context.Context, vendorTxnRef string) (bool, error) {
	return a.VerifyTransactionByReference(ctx, vendorTxnRef)
}

// RefundPayment refunds a charge, optionally partially. Flutterwave refunds
// key on the numeric transaction id, so the reference is resolved first.
func (a *Adapter) RefundPayment(ctx context.Context, vendorTxnRef string, amount *decimal.Decimal) (bool, error) {
	verified, err := a.verifyByReference(ctx, vendorTxnRef)
	if err != nil {
		return false, err
	}

	body := map[string]any{}
	if amount != nil {
		body["amount"] = amount.String()
	}

	var out apiResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post(fmt.Sprintf("/transactions/%d/refund", verified.Data.ID))
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeVendorError, "flutterwave refund request failed")
	}
	if resp.IsError() || out.Status != "success" {
		return false, dErrors.New(dErrors.CodeVendorError, "refund failed: "+out.Message)
	}
	return true, nil
}

// VerifyWebhookSignature compares the verif-hash header against the tenant's
// stored secret in constant time.
func (a *Adapter) VerifyWebhookSignature(headers http.Header, _ []byte, secret string) bool {
	signature := headers.Get("verif-hash")
	if signature == "" || secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(signature), []byte(secret)) == 1
}

// VerifyTransactionByReference re-checks the transaction with the vendor of
// record. Only a vendor-confirmed "successful" status counts.
func (a *Adapter) VerifyTransactionByReference(ctx context.Context, txRef string) (bool, error) {
	out, err := a.verifyByReference(ctx, txRef)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(out.Data.Status, "successful"), nil
}

func (a *Adapter) verifyByReference(ctx context.Context, txRef string) (*apiResponse, error) {
	var out apiResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("tx_ref", txRef).
		SetResult(&out).
		Get("/transactions/verify_by_reference")
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeVendorError, "flutterwave verify request failed")
	}
	if resp.IsError() || out.Status != "success" {
		return nil, dErrors.New(dErrors.CodeVendorError, "could not verify transaction: "+out.Message)
	}
	return &out, nil
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

func defaulted(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

var _ provider.Adapter = (*Adapter)(nil)
