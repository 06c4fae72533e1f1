package provider

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "tabhq/pkg/domain-errors"
)

func TestMapVendorStatus(t *testing.T) {
	cases := []struct {
		vendor string
		want   Status
	}{
		{"succeeded", StatusSuccess},
		{"success", StatusSuccess},
		{"successful", StatusSuccess},
		{"paid", StatusSuccess},
		{"PAID", StatusSuccess},
		{"pending", StatusPending},
		{"Processing", StatusPending},
		{"failed", StatusFailed},
		{"cancelled", StatusFailed},
		{"error", StatusFailed},
		// Unrecognized statuses must never map to SUCCESS.
		{"requires_payment_method", StatusPending},
		{"", StatusPending},
		{"garbage", StatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.vendor, func(t *testing.T) {
			assert.Equal(t, tc.want, MapVendorStatus(tc.vendor))
		})
	}
}

func TestStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusSuccess.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusRefunded.IsTerminal())
}

func TestCredentials_WellKnownKeys(t *testing.T) {
	creds := Credentials{
		"secretKey":   "sk_test",
		"secretHash":  "abc",
		"callbackUrl": "https://tenant.example.com/hook",
	}
	assert.Equal(t, "abc", creds.SignatureSecret())
	assert.Equal(t, "https://tenant.example.com/hook", creds.CallbackURL())
	assert.Equal(t, "", creds.String("missing"))
	assert.Equal(t, "", Credentials{"n": 1}.String("n"))
}

type stubAdapter struct {
	name Name
}

func (a *stubAdapter) Name() Name                    { return a.name }
func (a *stubAdapter) Init(Credentials) error        { return nil }
func (a *stubAdapter) CreatePayment(context.Context, decimal.Decimal, string, map[string]any) (*CreateResult, error) {
	return nil, nil
}
func (a *stubAdapter) CapturePayment(context.Context, string) (bool, error) { return false, nil }
func (a *stubAdapter) RefundPayment(context.Context, string, *decimal.Decimal) (bool, error) {
	return false, nil
}
func (a *stubAdapter) VerifyWebhookSignature(http.Header, []byte, string) bool { return false }
func (a *stubAdapter) VerifyTransactionByReference(context.Context, string) (bool, error) {
	return false, nil
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	r.Register(NameFlutterwave, func() Adapter { return &stubAdapter{name: NameFlutterwave} })

	t.Run("case-insensitive lookup", func(t *testing.T) {
		a, err := r.Resolve("FlutterWave")
		require.NoError(t, err)
		assert.Equal(t, NameFlutterwave, a.Name())
	})

	t.Run("fresh instance per call", func(t *testing.T) {
		a1, err := r.Resolve("flutterwave")
		require.NoError(t, err)
		a2, err := r.Resolve("flutterwave")
		require.NoError(t, err)
		assert.NotSame(t, a1, a2)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := r.Resolve("skrill")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnsupportedProvider))
	})
}
