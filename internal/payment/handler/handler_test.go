package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "tabhq/pkg/domain"
	dErrors "tabhq/pkg/domain-errors"

	"tabhq/internal/payment/models"
	"tabhq/internal/payment/service"
	"tabhq/internal/platform/middleware"
	"tabhq/internal/provider"
)

type stubService struct {
	payment *models.Payment
	err     error
	gotIn   service.CreateInput
	gotAmt  *decimal.Decimal
}

func (s *stubService) Create(_ context.Context, in service.CreateInput) (*models.Payment, error) {
	s.gotIn = in
	return s.payment, s.err
}

func (s *stubService) Get(context.Context, id.PaymentID, id.OrgID) (*models.Payment, error) {
	return s.payment, s.err
}

func (s *stubService) ListByApp(context.Context, id.AppID) ([]*models.Payment, error) {
	if s.payment == nil {
		return nil, s.err
	}
	return []*models.Payment{s.payment}, s.err
}

func (s *stubService) Refund(_ context.Context, _ id.PaymentID, _ id.OrgID, amount *decimal.Decimal) (*models.Payment, error) {
	s.gotAmt = amount
	return s.payment, s.err
}

type stubGuard struct{ err error }

func (g stubGuard) OwnsApp(context.Context, id.AppID, id.OrgID) error { return g.err }

type staticTokens struct{ orgID string }

func (v staticTokens) ValidateToken(_ string) (*middleware.TokenClaims, error) {
	return &middleware.TokenClaims{UserID: "user-1", OrgID: v.orgID}, nil
}

type staticKeys struct{ identity *middleware.KeyIdentity }

func (v staticKeys) ValidateKey(context.Context, string) (*middleware.KeyIdentity, error) {
	if v.identity == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid API key")
	}
	return v.identity, nil
}

func samplePayment() *models.Payment {
	return &models.Payment{
		ID:           id.PaymentID(uuid.New()),
		AppID:        id.AppID(uuid.New()),
		OrgID:        id.OrgID(uuid.New()),
		Provider:     provider.NameStripe,
		VendorTxnRef: "pi_123",
		Amount:       decimal.NewFromInt(50),
		Currency:     "USD",
		Status:       provider.StatusPending,
		RedirectURL:  "https://stripe.example/next",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func dashboardRouter(svc Service, guard AppGuard, orgID string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequireAuth(staticTokens{orgID: orgID}, testLogger()))
	New(svc, guard, testLogger()).RegisterDashboard(r)
	return r
}

func machineRouter(svc Service, identity *middleware.KeyIdentity) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequireAPIKey(staticKeys{identity: identity}, testLogger()))
	New(svc, stubGuard{}, testLogger()).RegisterMachine(r)
	return r
}

func TestHandlePayUsesKeyIdentity(t *testing.T) {
	payment := samplePayment()
	svc := &stubService{payment: payment}
	identity := &middleware.KeyIdentity{AppID: payment.AppID, OrgID: payment.OrgID}
	router := machineRouter(svc, identity)

	body := `{"provider":"stripe","amount":"50","currency":"USD","metadata":{"orderId":"o-1"}}`
	req := httptest.NewRequest(http.MethodPost, "/payments/pay", strings.NewReader(body))
	req.Header.Set("X-API-Key", "tab_key")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, payment.AppID, svc.gotIn.AppID)
	assert.Equal(t, payment.OrgID, svc.gotIn.OrgID)

	var resp PaymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pi_123", resp.TxRef)
	assert.Equal(t, "PENDING", resp.Status)
	assert.Equal(t, "https://stripe.example/next", resp.RedirectURL)
}

func TestHandlePayMissingKey(t *testing.T) {
	router := machineRouter(&stubService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/payments/pay", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleInitGuardsAppOwnership(t *testing.T) {
	guard := stubGuard{err: dErrors.New(dErrors.CodeNotFound, "app not found")}
	router := dashboardRouter(&stubService{}, guard, uuid.NewString())

	body := `{"provider":"stripe","amount":"50","currency":"USD"}`
	req := httptest.NewRequest(http.MethodPost, "/payments/"+uuid.NewString()+"/init", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleInitValidation(t *testing.T) {
	router := dashboardRouter(&stubService{payment: samplePayment()}, stubGuard{}, uuid.NewString())

	body := `{"provider":"stripe","amount":"-5","currency":"USD"}`
	req := httptest.NewRequest(http.MethodPost, "/payments/"+uuid.NewString()+"/init", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRefundEmptyBodyMeansFull(t *testing.T) {
	payment := samplePayment()
	payment.Status = provider.StatusRefunded
	svc := &stubService{payment: payment}
	router := dashboardRouter(svc, stubGuard{}, payment.OrgID.String())

	req := httptest.NewRequest(http.MethodPost, "/payments/"+payment.ID.String()+"/refund", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.gotAmt)

	var resp PaymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "REFUNDED", resp.Status)
}

func TestHandleRefundPartialAmount(t *testing.T) {
	payment := samplePayment()
	svc := &stubService{payment: payment}
	router := dashboardRouter(svc, stubGuard{}, payment.OrgID.String())

	req := httptest.NewRequest(http.MethodPost, "/payments/"+payment.ID.String()+"/refund",
		strings.NewReader(`{"amount":"20"}`))
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.gotAmt)
	assert.True(t, decimal.NewFromInt(20).Equal(*svc.gotAmt))
}

func TestHandleGetNotFound(t *testing.T) {
	svc := &stubService{err: dErrors.New(dErrors.CodePaymentNotFound, "payment not found")}
	router := dashboardRouter(svc, stubGuard{}, uuid.NewString())

	req := httptest.NewRequest(http.MethodGet, "/payments/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
