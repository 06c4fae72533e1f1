package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"tabhq/internal/provider/tracer"
)

// signatureHeader carries the tenant's stored secret on outbound callbacks so
// the tenant can authenticate the notification the same way vendors sign
// theirs.
const signatureHeader = "verif-hash"

// Notification is the payload POSTed to a tenant's callback URL after a
// payment reaches a terminal state.
type Notification struct {
	TxRef    string          `json:"txRef"`
	Status   string          `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Notifier delivers best-effort callbacks to tenant systems. One attempt,
// bounded timeout, failures are logged and dropped.
type Notifier struct {
	client *resty.Client
	tracer tracer.Tracer
	logger *slog.Logger
}

// NewNotifier creates a tenant callback notifier with the given per-attempt
// timeout.
func NewNotifier(timeout time.Duration, tr tracer.Tracer, logger *slog.Logger) *Notifier {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &Notifier{client: client, tracer: tr, logger: logger}
}

// Notify posts the notification to callbackURL, signing it with the tenant's
// stored secret. The returned error is for the caller's log line only; the
// reconciliation outcome never depends on it.
func (n *Notifier) Notify(ctx context.Context, callbackURL, secret string, payload Notification) error {
	spanCtx, span := n.tracer.Start(ctx, tracer.SpanTenantCallback,
		tracer.String(tracer.AttrTxRef, payload.TxRef),
	)

	resp, err := n.client.R().
		SetContext(spanCtx).
		SetHeader(signatureHeader, secret).
		SetBody(payload).
		Post(callbackURL)
	if err == nil && resp.IsError() {
		err = fmt.Errorf("tenant callback returned %s", resp.Status())
	}
	span.End(err)

	if err != nil {
		n.logger.WarnContext(ctx, "tenant callback failed",
			"callback_url", callbackURL,
			"tx_ref", payload.TxRef,
			"error", err,
		)
		return err
	}
	return nil
}
