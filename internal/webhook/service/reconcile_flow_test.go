package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "tabhq/pkg/domain"
	dErrors "tabhq/pkg/domain-errors"

	configmodels "tabhq/internal/paymentconfig/models"
	paymentmodels "tabhq/internal/payment/models"
	paymentstore "tabhq/internal/payment/store"
	"tabhq/internal/provider"
	"tabhq/internal/provider/catalog"
	"tabhq/internal/provider/tracer"
)

// Full reconciliation against the real mobile-money adapter, with the vendor
// API and the tenant callback both simulated.
func TestReconcileFlowWithFlutterwaveAdapter(t *testing.T) {
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transactions/verify_by_reference", r.URL.Path)
		require.Equal(t, "tx-1", r.URL.Query().Get("tx_ref"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data":   map[string]any{"status": "successful", "tx_ref": "tx-1"},
		})
	}))
	defer vendor.Close()

	callbacks := make(chan Notification, 1)
	tenant := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "abc", r.Header.Get("verif-hash"))
		var n Notification
		require.NoError(t, json.NewDecoder(r.Body).Decode(&n))
		callbacks <- n
		w.WriteHeader(http.StatusOK)
	}))
	defer tenant.Close()

	st := paymentstore.NewInMemory()
	now := time.Now()
	appID := id.AppID(uuid.New())
	payment := &paymentmodels.Payment{
		ID:           id.PaymentID(uuid.New()),
		AppID:        appID,
		OrgID:        id.OrgID(uuid.New()),
		Provider:     provider.NameFlutterwave,
		VendorTxnRef: "tx-1",
		Amount:       decimal.NewFromInt(100),
		Currency:     "GHS",
		Status:       provider.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.Create(context.Background(), payment))

	configs := &fakeConfigs{cred: &configmodels.ProviderCredential{
		ID:       id.CredentialID(uuid.New()),
		AppID:    appID,
		Provider: provider.NameFlutterwave,
		Credentials: provider.Credentials{
			"publicKey":              "pk_test",
			"secretKey":              "sk_test",
			"baseUrl":                vendor.URL,
			provider.CredSecretHash:  "abc",
			provider.CredCallbackURL: tenant.URL,
		},
		Active: true,
	}}

	notifier := NewNotifier(time.Second, tracer.NewNoop(), testLogger())
	rec := NewReconciler(st, configs, catalog.Default(), notifier, tracer.NewNoop(), nil, testLogger())

	headers := http.Header{}
	headers.Set("verif-hash", "abc")
	payload := []byte(`{"event":"charge.completed","data":{"tx_ref":"tx-1","status":"successful"}}`)

	result, err := rec.Process(context.Background(), "flutterwave", headers, payload)
	require.NoError(t, err)
	assert.True(t, result.Transitioned)
	assert.Equal(t, provider.StatusSuccess, result.Status)

	stored, err := st.FindByVendorRef(context.Background(), provider.NameFlutterwave, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, provider.StatusSuccess, stored.Status)

	select {
	case n := <-callbacks:
		assert.Equal(t, "tx-1", n.TxRef)
		assert.Equal(t, "SUCCESS", n.Status)
		assert.Equal(t, "GHS", n.Currency)
	case <-time.After(2 * time.Second):
		t.Fatal("tenant callback never arrived")
	}

	// Vendor retry of the same delivery: acknowledged, no second transition,
	// no second callback.
	again, err := rec.Process(context.Background(), "flutterwave", headers, payload)
	require.NoError(t, err)
	assert.False(t, again.Transitioned)
	assert.Equal(t, provider.StatusSuccess, again.Status)

	select {
	case <-callbacks:
		t.Fatal("duplicate delivery must not re-notify the tenant")
	case <-time.After(100 * time.Millisecond):
	}
}

// PayPal attests signatures through its API rather than a shared secret, so
// the adapter has to be configured with the tenant's credentials before the
// signature check can reach the vendor.
func TestReconcileFlowWithPayPalAdapter(t *testing.T) {
	attest := true
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/notifications/verify-webhook-signature":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "wh-1", body["webhook_id"])
			status := "FAILURE"
			if attest {
				status = "SUCCESS"
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"verification_status": status})
		case "/v2/checkout/orders/ORD-1":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "ORD-1", "status": "COMPLETED"})
		default:
			t.Errorf("unexpected vendor call %s", r.URL.Path)
		}
	}))
	defer vendor.Close()

	st := paymentstore.NewInMemory()
	now := time.Now()
	appID := id.AppID(uuid.New())
	payment := &paymentmodels.Payment{
		ID:           id.PaymentID(uuid.New()),
		AppID:        appID,
		OrgID:        id.OrgID(uuid.New()),
		Provider:     provider.NamePayPal,
		VendorTxnRef: "ORD-1",
		Amount:       decimal.NewFromInt(25),
		Currency:     "USD",
		Status:       provider.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.Create(context.Background(), payment))

	configs := &fakeConfigs{cred: &configmodels.ProviderCredential{
		ID:       id.CredentialID(uuid.New()),
		AppID:    appID,
		Provider: provider.NamePayPal,
		Credentials: provider.Credentials{
			"clientId":     "client",
			"clientSecret": "secret",
			"webhookId":    "wh-1",
			"baseUrl":      vendor.URL,
		},
		Active: true,
	}}

	rec := NewReconciler(st, configs, catalog.Default(), nil, tracer.NewNoop(), nil, testLogger())

	headers := http.Header{}
	headers.Set("Paypal-Transmission-Id", "tid-1")
	headers.Set("Paypal-Transmission-Sig", "sig-1")
	headers.Set("Paypal-Transmission-Time", "2026-01-01T00:00:00Z")
	payload := []byte(`{"event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"ORD-1"}}`)

	result, err := rec.Process(context.Background(), "paypal", headers, payload)
	require.NoError(t, err)
	assert.True(t, result.Transitioned)
	assert.Equal(t, provider.StatusSuccess, result.Status)

	stored, err := st.FindByVendorRef(context.Background(), provider.NamePayPal, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, provider.StatusSuccess, stored.Status)
}

func TestReconcileFlowWithPayPalAdapter_UnattestedDelivery(t *testing.T) {
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/notifications/verify-webhook-signature", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"verification_status": "FAILURE"})
	}))
	defer vendor.Close()

	st := paymentstore.NewInMemory()
	now := time.Now()
	appID := id.AppID(uuid.New())
	require.NoError(t, st.Create(context.Background(), &paymentmodels.Payment{
		ID:           id.PaymentID(uuid.New()),
		AppID:        appID,
		OrgID:        id.OrgID(uuid.New()),
		Provider:     provider.NamePayPal,
		VendorTxnRef: "ORD-2",
		Amount:       decimal.NewFromInt(25),
		Currency:     "USD",
		Status:       provider.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))

	configs := &fakeConfigs{cred: &configmodels.ProviderCredential{
		ID:       id.CredentialID(uuid.New()),
		AppID:    appID,
		Provider: provider.NamePayPal,
		Credentials: provider.Credentials{
			"clientId":     "client",
			"clientSecret": "secret",
			"webhookId":    "wh-1",
			"baseUrl":      vendor.URL,
		},
		Active: true,
	}}

	rec := NewReconciler(st, configs, catalog.Default(), nil, tracer.NewNoop(), nil, testLogger())

	payload := []byte(`{"event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"ORD-2"}}`)
	_, err := rec.Process(context.Background(), "paypal", http.Header{}, payload)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidSignature))

	stored, err := st.FindByVendorRef(context.Background(), provider.NamePayPal, "ORD-2")
	require.NoError(t, err)
	assert.Equal(t, provider.StatusPending, stored.Status)
}
