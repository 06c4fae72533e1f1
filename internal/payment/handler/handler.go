package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	id "tabhq/pkg/domain"
	dErrors "tabhq/pkg/domain-errors"
	"tabhq/pkg/platform/httputil"

	"tabhq/internal/payment/models"
	"tabhq/internal/payment/service"
	"tabhq/internal/platform/middleware"
)

// AppGuard confirms the caller's org owns the app.
type AppGuard interface {
	OwnsApp(ctx context.Context, appID id.AppID, orgID id.OrgID) error
}

// Service defines the payment operations the handler depends on.
type Service interface {
	Create(ctx context.Context, in service.CreateInput) (*models.Payment, error)
	Get(ctx context.Context, paymentID id.PaymentID, orgID id.OrgID) (*models.Payment, error)
	ListByApp(ctx context.Context, appID id.AppID) ([]*models.Payment, error)
	Refund(ctx context.Context, paymentID id.PaymentID, orgID id.OrgID, amount *decimal.Decimal) (*models.Payment, error)
}

type Handler struct {
	service Service
	guard   AppGuard
	logger  *slog.Logger
}

func New(service Service, guard AppGuard, logger *slog.Logger) *Handler {
	return &Handler{service: service, guard: guard, logger: logger}
}

// RegisterDashboard mounts the bearer-token payment routes.
func (h *Handler) RegisterDashboard(r chi.Router) {
	r.Post("/payments/{appID}/init", h.HandleInit)
	r.Get("/payments/{paymentID}", h.HandleGet)
	r.Post("/payments/{paymentID}/refund", h.HandleRefund)
	r.Get("/apps/{appID}/payments", h.HandleList)
}

// RegisterMachine mounts the API-key payment route. The app identity comes
// from the key itself, never from the body.
func (h *Handler) RegisterMachine(r chi.Router) {
	r.Post("/payments/pay", h.HandlePay)
}

// CreatePaymentRequest is the payload for initiating a payment.
type CreatePaymentRequest struct {
	Provider string          `json:"provider"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Metadata map[string]any  `json:"metadata"`
}

func (r *CreatePaymentRequest) Validate() error {
	if r.Provider == "" {
		return dErrors.New(dErrors.CodeValidation, "provider is required")
	}
	if !r.Amount.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	if r.Currency == "" {
		return dErrors.New(dErrors.CodeValidation, "currency is required")
	}
	return nil
}

// RefundRequest optionally narrows a refund to part of the amount.
type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

// PaymentResponse is the public shape of a payment. Vendor credentials and
// raw vendor payloads never appear here.
type PaymentResponse struct {
	ID          string          `json:"id"`
	Provider    string          `json:"provider"`
	TxRef       string          `json:"txRef"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"`
	RedirectURL string          `json:"redirectUrl,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// HandleInit initiates a payment from the dashboard for a named app.
func (h *Handler) HandleInit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	orgID, err := id.ParseOrgID(middleware.GetOrgID(ctx))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	appID, err := id.ParseAppID(chi.URLParam(r, "appID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.guard.OwnsApp(ctx, appID, orgID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.createPayment(w, r, appID, orgID, requestID)
}

// HandlePay initiates a payment on behalf of the app owning the API key.
func (h *Handler) HandlePay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	appID, err := id.ParseAppID(middleware.GetAppID(ctx))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "API key required"))
		return
	}
	orgID, err := id.ParseOrgID(middleware.GetOrgID(ctx))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "API key required"))
		return
	}

	h.createPayment(w, r, appID, orgID, requestID)
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request, appID id.AppID, orgID id.OrgID, requestID string) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[CreatePaymentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	payment, err := h.service.Create(ctx, service.CreateInput{
		AppID:    appID,
		OrgID:    orgID,
		Provider: req.Provider,
		Amount:   req.Amount,
		Currency: req.Currency,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "create payment failed",
			"error", err, "app_id", appID, "provider", req.Provider, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toPaymentResponse(payment))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID, err := id.ParseOrgID(middleware.GetOrgID(ctx))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	paymentID, err := id.ParsePaymentID(chi.URLParam(r, "paymentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	payment, err := h.service.Get(ctx, paymentID, orgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toPaymentResponse(payment))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID, err := id.ParseOrgID(middleware.GetOrgID(ctx))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	appID, err := id.ParseAppID(chi.URLParam(r, "appID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.guard.OwnsApp(ctx, appID, orgID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	payments, err := h.service.ListByApp(ctx, appID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]PaymentResponse, 0, len(payments))
	for _, payment := range payments {
		out = append(out, toPaymentResponse(payment))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleRefund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	orgID, err := id.ParseOrgID(middleware.GetOrgID(ctx))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	paymentID, err := id.ParsePaymentID(chi.URLParam(r, "paymentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// The body is optional; absent means refund in full.
	var amount *decimal.Decimal
	if r.ContentLength != 0 {
		req, ok := httputil.DecodeAndPrepare[RefundRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
		amount = req.Amount
	}

	payment, err := h.service.Refund(ctx, paymentID, orgID, amount)
	if err != nil {
		h.logger.ErrorContext(ctx, "refund failed",
			"error", err, "payment_id", paymentID, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toPaymentResponse(payment))
}

func toPaymentResponse(payment *models.Payment) PaymentResponse {
	return PaymentResponse{
		ID:          payment.ID.String(),
		Provider:    payment.Provider.String(),
		TxRef:       payment.VendorTxnRef,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Status:      string(payment.Status),
		RedirectURL: payment.RedirectURL,
		CreatedAt:   payment.CreatedAt,
		UpdatedAt:   payment.UpdatedAt,
	}
}
