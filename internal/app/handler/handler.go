package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	id "tabhq/pkg/domain"
	dErrors "tabhq/pkg/domain-errors"
	"tabhq/pkg/platform/httputil"

	"tabhq/internal/app/models"
	"tabhq/internal/app/service"
	"tabhq/internal/platform/middleware"
)

// Service defines the app operations the handler depends on.
// Returns domain objects, not HTTP response DTOs.
type Service interface {
	CreateApp(ctx context.Context, in service.CreateAppInput) (*models.App, string, error)
	GetApp(ctx context.Context, appID id.AppID, orgID id.OrgID) (*models.App, error)
	RotateKey(ctx context.Context, appID id.AppID, orgID id.OrgID) (string, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts app routes. The router must already carry dashboard auth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/apps", h.HandleCreateApp)
	r.Get("/apps/{appID}", h.HandleGetApp)
	r.Post("/apps/{appID}/keys/rotate", h.HandleRotateKey)
}

// CreateAppRequest is the payload for registering an app.
type CreateAppRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Environment string `json:"environment"`
}

func (r *CreateAppRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

// AppResponse is the public shape of an app. The raw key never appears here.
type AppResponse struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"orgId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Environment string    `json:"environment,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateAppResponse carries the app plus its first API key, shown once.
type CreateAppResponse struct {
	App    AppResponse `json:"app"`
	APIKey string      `json:"apiKey"`
}

// RotateKeyResponse carries the replacement key, shown once.
type RotateKeyResponse struct {
	APIKey string `json:"apiKey"`
}

func (h *Handler) HandleCreateApp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	orgID, ok := h.callerOrg(w, ctx, requestID)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateAppRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	app, rawKey, err := h.service.CreateApp(ctx, service.CreateAppInput{
		OrgID:       orgID,
		Name:        req.Name,
		Description: req.Description,
		Environment: req.Environment,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "create app failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, &CreateAppResponse{
		App:    toAppResponse(app),
		APIKey: rawKey,
	})
}

func (h *Handler) HandleGetApp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	orgID, ok := h.callerOrg(w, ctx, requestID)
	if !ok {
		return
	}

	appID, err := id.ParseAppID(chi.URLParam(r, "appID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	app, err := h.service.GetApp(ctx, appID, orgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toAppResponse(app))
}

func (h *Handler) HandleRotateKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	orgID, ok := h.callerOrg(w, ctx, requestID)
	if !ok {
		return
	}

	appID, err := id.ParseAppID(chi.URLParam(r, "appID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rawKey, err := h.service.RotateKey(ctx, appID, orgID)
	if err != nil {
		h.logger.ErrorContext(ctx, "rotate key failed", "error", err, "app_id", appID, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &RotateKeyResponse{APIKey: rawKey})
}

func (h *Handler) callerOrg(w http.ResponseWriter, ctx context.Context, requestID string) (id.OrgID, bool) {
	orgID, err := id.ParseOrgID(middleware.GetOrgID(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "missing org in auth context", "request_id", requestID)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.OrgID{}, false
	}
	return orgID, true
}

func toAppResponse(app *models.App) AppResponse {
	return AppResponse{
		ID:          app.ID.String(),
		OrgID:       app.OrgID.String(),
		Name:        app.Name,
		Description: app.Description,
		Environment: app.Environment,
		CreatedAt:   app.CreatedAt,
		UpdatedAt:   app.UpdatedAt,
	}
}
