package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabhq/internal/provider"
	dErrors "tabhq/pkg/domain-errors"
)

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	a := New()
	require.NoError(t, a.Init(provider.Credentials{"secretKey": "sk_test", "baseUrl": baseURL}))
	return a
}

func TestInit_RequiresSecretKey(t *testing.T) {
	err := New().Init(provider.Credentials{"publicKey": "pk_test"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestCreatePayment_MinorUnitsAndMetadata(t *testing.T) {
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "pi_123", "status": "requires_payment_method"})
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	res, err := a.CreatePayment(context.Background(), decimal.RequireFromString("10.50"), "USD", map[string]any{
		"orderId": "ord-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "1050", form["amount"][0])
	assert.Equal(t, "usd", form["currency"][0])
	assert.Equal(t, "ord-1", form["metadata[orderId]"][0])
	assert.Equal(t, "pi_123", res.VendorTxnRef)
	// Unrecognized vendor status strings map to PENDING downstream.
	assert.Equal(t, provider.StatusPending, provider.MapVendorStatus(res.VendorStatus))
}

func TestCreatePayment_VendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "card declined"}})
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	_, err := a.CreatePayment(context.Background(), decimal.NewFromInt(5), "USD", nil)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeVendorError))
	assert.Contains(t, err.Error(), "card declined")
}

func TestVerifyTransactionByReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment_intents/pi_123", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "pi_123", "status": "succeeded"})
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	ok, err := a.VerifyTransactionByReference(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.True(t, ok)
}

func signedHeader(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "."))
	mac.Write(payload)
	return "t=" + timestamp + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	a := New()
	payload := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"

	t.Run("valid signature", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("Stripe-Signature", signedHeader(secret, "1700000000", payload))
		assert.True(t, a.VerifyWebhookSignature(headers, payload, secret))
	})

	t.Run("wrong secret", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("Stripe-Signature", signedHeader("whsec_other", "1700000000", payload))
		assert.False(t, a.VerifyWebhookSignature(headers, payload, secret))
	})

	t.Run("tampered payload", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("Stripe-Signature", signedHeader(secret, "1700000000", payload))
		assert.False(t, a.VerifyWebhookSignature(headers, []byte(`{"id":"evt_2"}`), secret))
	})

	t.Run("missing header", func(t *testing.T) {
		assert.False(t, a.VerifyWebhookSignature(http.Header{}, payload, secret))
	})
}

func TestCapturePayment(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "pi_123", "status": "succeeded"})
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	ok, err := a.CapturePayment(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/payment_intents/pi_123/capture", path)
}

func TestRefundPayment_PartialMinorUnits(t *testing.T) {
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "re_1", "status": "succeeded"})
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	amount := decimal.RequireFromString("2.25")
	ok, err := a.RefundPayment(context.Background(), "pi_123", &amount)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "pi_123", form["payment_intent"][0])
	assert.Equal(t, "225", form["amount"][0])
}

func TestRefundPayment_FullOmitsAmount(t *testing.T) {
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "re_2", "status": "succeeded"})
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	ok, err := a.RefundPayment(context.Background(), "pi_123", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotContains(t, form, "amount")
}
