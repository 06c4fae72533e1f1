// Package service orchestrates payments across providers. It owns the
// resolve-credentials, call-vendor, persist sequence; everything
// vendor-specific stays behind the adapter interface.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	id "tabhq/pkg/domain"
	dErrors "tabhq/pkg/domain-errors"

	configmodels "tabhq/internal/paymentconfig/models"
	"tabhq/internal/payment/metrics"
	"tabhq/internal/payment/models"
	"tabhq/internal/provider"
	"tabhq/internal/provider/tracer"
	"tabhq/internal/sentinel"
)

// Store persists payments.
type Store interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error)
	FindByVendorRef(ctx context.Context, name provider.Name, vendorTxnRef string) (*models.Payment, error)
	ListByApp(ctx context.Context, appID id.AppID) ([]*models.Payment, error)
	TransitionStatus(ctx context.Context, paymentID id.PaymentID, next provider.Status) (bool, error)
}

// ConfigSource yields the active credential for an app+provider pair.
type ConfigSource interface {
	GetActive(ctx context.Context, appID id.AppID, rawName string) (*configmodels.ProviderCredential, error)
}

// Resolver looks up a payment adapter by provider name.
type Resolver interface {
	Resolve(name string) (provider.Adapter, error)
}

// Service is the payment orchestrator.
type Service struct {
	store    Store
	configs  ConfigSource
	registry Resolver
	tracer   tracer.Tracer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// New creates the payment service.
func New(store Store, configs ConfigSource, registry Resolver, tr tracer.Tracer, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		configs:  configs,
		registry: registry,
		tracer:   tr,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateInput carries the fields for initiating a payment.
type CreateInput struct {
	AppID    id.AppID
	OrgID    id.OrgID
	Provider string
	Amount   decimal.Decimal
	Currency string
	Metadata map[string]any
}

// Create initiates a payment: resolve the app's credentials for the
// requested provider, call the vendor, persist the attempt. The stored
// status comes from the canonical mapping of whatever the vendor reported,
// so an unrecognized vendor status lands as PENDING and waits for the
// webhook.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Payment, error) {
	if in.AppID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "app ID is required")
	}
	if !in.Amount.IsPositive() {
		return nil, dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	if in.Currency == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "currency is required")
	}

	cred, err := s.configs.GetActive(ctx, in.AppID, in.Provider)
	if err != nil {
		return nil, err
	}

	adapter, err := s.registry.Resolve(in.Provider)
	if err != nil {
		return nil, err
	}
	if err := adapter.Init(cred.Credentials); err != nil {
		return nil, err
	}

	name := adapter.Name()
	start := s.now()
	spanCtx, span := s.tracer.Start(ctx, tracer.SpanPaymentCreate,
		tracer.String(tracer.AttrProvider, name.String()),
		tracer.String(tracer.AttrCurrency, in.Currency),
		tracer.String(tracer.AttrAppID, in.AppID.String()),
	)
	result, err := adapter.CreatePayment(spanCtx, in.Amount, in.Currency, in.Metadata)
	span.End(err)
	if err != nil {
		s.countVendorError(name, "create")
		return nil, err
	}

	now := s.now()
	payment := &models.Payment{
		ID:           id.PaymentID(uuid.New()),
		AppID:        in.AppID,
		OrgID:        in.OrgID,
		Provider:     name,
		VendorTxnRef: result.VendorTxnRef,
		Amount:       in.Amount,
		Currency:     in.Currency,
		Status:       provider.MapVendorStatus(result.VendorStatus),
		Metadata:     in.Metadata,
		RedirectURL:  result.RedirectURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Create(ctx, payment); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "duplicate vendor transaction reference")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store payment")
	}

	if s.metrics != nil {
		s.metrics.IncrementPaymentsCreated(name.String())
		s.metrics.ObserveCreateLatency(name.String(), s.now().Sub(start).Seconds())
	}
	s.logger.InfoContext(ctx, "payment initiated",
		"payment_id", payment.ID,
		"provider", name,
		"tx_ref", payment.VendorTxnRef,
		"status", payment.Status,
	)
	return payment, nil
}

// Get retrieves a payment, enforcing org ownership.
func (s *Service) Get(ctx context.Context, paymentID id.PaymentID, orgID id.OrgID) (*models.Payment, error) {
	payment, err := s.store.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodePaymentNotFound, "payment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find payment")
	}
	if payment.OrgID != orgID {
		return nil, dErrors.New(dErrors.CodePaymentNotFound, "payment not found")
	}
	return payment, nil
}

// ListByApp retrieves an app's payments, newest first.
func (s *Service) ListByApp(ctx context.Context, appID id.AppID) ([]*models.Payment, error) {
	payments, err := s.store.ListByApp(ctx, appID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list payments")
	}
	return payments, nil
}

// Refund refunds a successful payment, fully or partially. The status moves
// to REFUNDED only after the vendor confirms.
func (s *Service) Refund(ctx context.Context, paymentID id.PaymentID, orgID id.OrgID, amount *decimal.Decimal) (*models.Payment, error) {
	payment, err := s.Get(ctx, paymentID, orgID)
	if err != nil {
		return nil, err
	}
	if payment.Status != provider.StatusSuccess {
		return nil, dErrors.New(dErrors.CodeInvalidTransition,
			"only successful payments can be refunded")
	}
	if amount != nil && (amount.IsNegative() || amount.IsZero() || amount.GreaterThan(payment.Amount)) {
		return nil, dErrors.New(dErrors.CodeValidation, "refund amount must be positive and not exceed the payment")
	}

	cred, err := s.configs.GetActive(ctx, payment.AppID, payment.Provider.String())
	if err != nil {
		return nil, err
	}
	adapter, err := s.registry.Resolve(payment.Provider.String())
	if err != nil {
		return nil, err
	}
	if err := adapter.Init(cred.Credentials); err != nil {
		return nil, err
	}

	spanCtx, span := s.tracer.Start(ctx, tracer.SpanPaymentRefund,
		tracer.String(tracer.AttrProvider, payment.Provider.String()),
		tracer.String(tracer.AttrTxRef, payment.VendorTxnRef),
	)
	ok, err := adapter.RefundPayment(spanCtx, payment.VendorTxnRef, amount)
	span.End(err)
	if err != nil {
		s.countVendorError(payment.Provider, "refund")
		return nil, err
	}
	if !ok {
		return nil, dErrors.New(dErrors.CodeVendorError, "vendor declined the refund")
	}

	moved, err := s.store.TransitionStatus(ctx, payment.ID, provider.StatusRefunded)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "record refund")
	}
	if !moved {
		// Something else already closed the payment.
		return nil, dErrors.New(dErrors.CodeInvalidTransition, "payment is no longer refundable")
	}
	payment.Status = provider.StatusRefunded

	if s.metrics != nil {
		s.metrics.IncrementRefundsProcessed(payment.Provider.String())
	}
	s.logger.InfoContext(ctx, "payment refunded",
		"payment_id", payment.ID,
		"provider", payment.Provider,
		"tx_ref", payment.VendorTxnRef,
	)
	return payment, nil
}

func (s *Service) countVendorError(name provider.Name, operation string) {
	if s.metrics != nil {
		s.metrics.IncrementVendorErrors(name.String(), operation)
	}
}
