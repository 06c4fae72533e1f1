// Package service reconciles vendor webhook deliveries against payments.
//
// The webhook body is treated as a hint, never as truth: once the delivery is
// authenticated, the payment outcome comes from the adapter's authoritative
// re-check against the vendor. The status update is a guarded transition, so
// duplicate and out-of-order deliveries converge on the same terminal state
// with exactly one of them performing the write.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	id "tabhq/pkg/domain"
	dErrors "tabhq/pkg/domain-errors"

	configmodels "tabhq/internal/paymentconfig/models"
	paymentmodels "tabhq/internal/payment/models"
	"tabhq/internal/provider"
	"tabhq/internal/provider/tracer"
	"tabhq/internal/sentinel"
	"tabhq/internal/webhook/metrics"
)

// PaymentStore is the slice of the payment store reconciliation needs.
type PaymentStore interface {
	FindByVendorRef(ctx context.Context, name provider.Name, vendorTxnRef string) (*paymentmodels.Payment, error)
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

// Reconciler processes one vendor delivery per call.
type Reconciler struct {
	payments PaymentStore
	configs  ConfigSource
	registry Resolver
	notifier *Notifier
	tracer   tracer.Tracer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewReconciler creates the webhook reconciler. notifier may be nil when
// tenant callbacks are disabled.
func NewReconciler(payments PaymentStore, configs ConfigSource, registry Resolver, notifier *Notifier, tr tracer.Tracer, m *metrics.Metrics, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		payments: payments,
		configs:  configs,
		registry: registry,
		notifier: notifier,
		tracer:   tr,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Result is the acknowledged outcome of one delivery.
type Result struct {
	PaymentID    id.PaymentID
	TxRef        string
	Status       provider.Status
	Transitioned bool
}

// Process runs the reconciliation state machine for one delivery. A nil
// error means the delivery is acknowledged; the returned error's code maps
// to the HTTP status the vendor sees.
func (r *Reconciler) Process(ctx context.Context, providerName string, headers http.Header, payload []byte) (*Result, error) {
	adapter, err := r.registry.Resolve(providerName)
	if err != nil {
		return nil, err
	}
	name := adapter.Name()
	r.countDelivery(name)
	start := r.now()

	txRef, err := extractTxRef(payload)
	if err != nil {
		r.countRejected(name, "malformed")
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed webhook payload")
	}

	payment, err := r.payments.FindByVendorRef(ctx, name, txRef)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			r.countRejected(name, "unknown_payment")
			return nil, dErrors.New(dErrors.CodePaymentNotFound, "no payment for reference "+txRef)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "look up payment")
	}

	cred, err := r.configs.GetActive(ctx, payment.AppID, name.String())
	if err != nil {
		r.countRejected(name, "missing_config")
		return nil, err
	}

	// Init before the signature check: some vendors attest signatures
	// through their API, so verification needs a configured client.
	if err := adapter.Init(cred.Credentials); err != nil {
		return nil, err
	}

	if !adapter.VerifyWebhookSignature(headers, payload, cred.Credentials.SignatureSecret()) {
		r.countRejected(name, "bad_signature")
		return nil, dErrors.New(dErrors.CodeInvalidSignature, "webhook signature mismatch")
	}

	spanCtx, span := r.tracer.Start(ctx, tracer.SpanWebhookVerify,
		tracer.String(tracer.AttrProvider, name.String()),
		tracer.String(tracer.AttrTxRef, txRef),
	)
	confirmed, err := adapter.VerifyTransactionByReference(spanCtx, txRef)
	span.End(err)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeVendorError, "authoritative verification failed")
	}

	next := provider.StatusFailed
	if confirmed {
		next = provider.StatusSuccess
	}

	transitioned, err := r.payments.TransitionStatus(ctx, payment.ID, next)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update payment status")
	}

	status := payment.Status
	if transitioned {
		status = next
		r.countTransition(name, next)
	} else {
		r.countDuplicate(name)
	}

	r.logger.InfoContext(ctx, "webhook reconciled",
		"provider", name,
		"tx_ref", txRef,
		"payment_id", payment.ID,
		"status", status,
		"transitioned", transitioned,
	)
	if r.metrics != nil {
		r.metrics.ObserveReconcileLatency(name.String(), r.now().Sub(start).Seconds())
	}

	if transitioned {
		r.notify(ctx, cred, payment, status)
	}

	return &Result{
		PaymentID:    payment.ID,
		TxRef:        txRef,
		Status:       status,
		Transitioned: transitioned,
	}, nil
}

// notify fires the tenant callback without holding up the acknowledgment.
func (r *Reconciler) notify(ctx context.Context, cred *configmodels.ProviderCredential, payment *paymentmodels.Payment, status provider.Status) {
	if r.notifier == nil {
		return
	}
	callbackURL := cred.Credentials.CallbackURL()
	if callbackURL == "" {
		return
	}

	payload := Notification{
		TxRef:    payment.VendorTxnRef,
		Status:   string(status),
		Amount:   payment.Amount,
		Currency: payment.Currency,
	}
	secret := cred.Credentials.SignatureSecret()
	name := payment.Provider

	go func() {
		// Detach from the request so the ack can return first.
		ctx := context.WithoutCancel(ctx)
		if err := r.notifier.Notify(ctx, callbackURL, secret, payload); err != nil && r.metrics != nil {
			r.metrics.IncrementNotificationFailures(name.String())
		}
	}()
}

// extractTxRef pulls the vendor transaction reference out of a delivery.
// Vendors nest it differently; the probe order covers the charge-style
// data.tx_ref, the intent-style data.object.id, and the order-style
// resource.id shapes.
func extractTxRef(payload []byte) (string, error) {
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return "", err
	}

	if ref := stringField(doc, "txRef", "tx_ref", "reference"); ref != "" {
		return ref, nil
	}
	if data, ok := doc["data"].(map[string]any); ok {
		if ref := stringField(data, "tx_ref", "txRef", "reference", "id"); ref != "" {
			return ref, nil
		}
		if object, ok := data["object"].(map[string]any); ok {
			if ref := stringField(object, "id"); ref != "" {
				return ref, nil
			}
		}
	}
	if resource, ok := doc["resource"].(map[string]any); ok {
		if ref := stringField(resource, "id"); ref != "" {
			return ref, nil
		}
	}
	return "", errors.New("no transaction reference in payload")
}

func stringField(doc map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := doc[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func (r *Reconciler) countDelivery(name provider.Name) {
	if r.metrics != nil {
		r.metrics.IncrementDeliveries(name.String())
	}
}

func (r *Reconciler) countRejected(name provider.Name, reason string) {
	if r.metrics != nil {
		r.metrics.IncrementRejected(name.String(), reason)
	}
}

func (r *Reconciler) countTransition(name provider.Name, status provider.Status) {
	if r.metrics != nil {
		r.metrics.IncrementTransitions(name.String(), string(status))
	}
}

func (r *Reconciler) countDuplicate(name provider.Name) {
	if r.metrics != nil {
		r.metrics.IncrementDuplicates(name.String())
	}
}
