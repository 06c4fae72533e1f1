package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tabhq/pkg/platform/httputil"

	"tabhq/internal/platform/middleware"
	"tabhq/internal/webhook/service"
)

// maxPayloadBytes bounds vendor delivery bodies. Real vendor events are a
// few KB; anything near this limit is garbage.
const maxPayloadBytes = 1 << 20

// Reconciler processes one vendor delivery.
type Reconciler interface {
	Process(ctx context.Context, providerName string, headers http.Header, payload []byte) (*service.Result, error)
}

type Handler struct {
	reconciler Reconciler
	logger     *slog.Logger
}

func New(reconciler Reconciler, logger *slog.Logger) *Handler {
	return &Handler{reconciler: reconciler, logger: logger}
}

// Register mounts the vendor webhook route. No auth middleware: the
// signature check inside reconciliation is the authentication.
func (h *Handler) Register(r chi.Router) {
	r.Post("/webhooks/{provider}", h.HandleDelivery)
}

// AckResponse is the body vendors see on an acknowledged delivery.
type AckResponse struct {
	Status       string `json:"status"`
	TxRef        string `json:"txRef"`
	Transitioned bool   `json:"transitioned"`
}

func (h *Handler) HandleDelivery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		h.logger.WarnContext(ctx, "failed to read webhook body", "error", err, "request_id", requestID)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	result, err := h.reconciler.Process(ctx, chi.URLParam(r, "provider"), r.Header, payload)
	if err != nil {
		h.logger.WarnContext(ctx, "webhook rejected",
			"provider", chi.URLParam(r, "provider"),
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &AckResponse{
		Status:       string(result.Status),
		TxRef:        result.TxRef,
		Transitioned: result.Transitioned,
	})
}
