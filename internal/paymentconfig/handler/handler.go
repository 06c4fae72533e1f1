package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	id "tabhq/pkg/domain"
	dErrors "tabhq/pkg/domain-errors"
	"tabhq/pkg/platform/httputil"

	"tabhq/internal/paymentconfig/models"
	"tabhq/internal/platform/middleware"
	"tabhq/internal/provider"
)

// AppGuard confirms the caller's org owns the app before any credential is
// touched.
type AppGuard interface {
	OwnsApp(ctx context.Context, appID id.AppID, orgID id.OrgID) error
}

// Service defines the credential operations the handler depends on.
type Service interface {
	Configure(ctx context.Context, appID id.AppID, rawName string, creds provider.Credentials) (*models.ProviderCredential, error)
	GetActive(ctx context.Context, appID id.AppID, rawName string) (*models.ProviderCredential, error)
	List(ctx context.Context, appID id.AppID) ([]*models.ProviderCredential, error)
	Remove(ctx context.Context, appID id.AppID, rawName string) error
}

type Handler struct {
	service Service
	guard   AppGuard
	logger  *slog.Logger
}

func New(service Service, guard AppGuard, logger *slog.Logger) *Handler {
	return &Handler{service: service, guard: guard, logger: logger}
}

// Register mounts credential routes. The router must already carry dashboard
// auth.
func (h *Handler) Register(r chi.Router) {
	r.Put("/apps/{appID}/providers/{provider}", h.HandleConfigure)
	r.Get("/apps/{appID}/providers/{provider}", h.HandleGet)
	r.Get("/apps/{appID}/providers", h.HandleList)
	r.Delete("/apps/{appID}/providers/{provider}", h.HandleRemove)
}

// ConfigureRequest carries the raw credential fields for one provider.
type ConfigureRequest struct {
	Credentials map[string]any `json:"credentials"`
}

func (r *ConfigureRequest) Validate() error {
	if len(r.Credentials) == 0 {
		return dErrors.New(dErrors.CodeValidation, "credentials are required")
	}
	return nil
}

// CredentialResponse is the public shape of a stored credential. Secret
// values never leave the service; only field names are listed.
type CredentialResponse struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	Fields    []string  `json:"fields"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (h *Handler) HandleConfigure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	appID, ok := h.guardedApp(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[ConfigureRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	cred, err := h.service.Configure(ctx, appID, chi.URLParam(r, "provider"), provider.Credentials(req.Credentials))
	if err != nil {
		h.logger.ErrorContext(ctx, "configure provider failed",
			"error", err, "app_id", appID, "provider", chi.URLParam(r, "provider"), "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(cred))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.guardedApp(w, r)
	if !ok {
		return
	}

	cred, err := h.service.GetActive(r.Context(), appID, chi.URLParam(r, "provider"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(cred))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.guardedApp(w, r)
	if !ok {
		return
	}

	creds, err := h.service.List(r.Context(), appID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]CredentialResponse, 0, len(creds))
	for _, cred := range creds {
		out = append(out, toCredentialResponse(cred))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.guardedApp(w, r)
	if !ok {
		return
	}

	if err := h.service.Remove(r.Context(), appID, chi.URLParam(r, "provider")); err != nil {
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) guardedApp(w http.ResponseWriter, r *http.Request) (id.AppID, bool) {
	ctx := r.Context()

	orgID, err := id.ParseOrgID(middleware.GetOrgID(ctx))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.AppID{}, false
	}

	appID, err := id.ParseAppID(chi.URLParam(r, "appID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.AppID{}, false
	}

	if err := h.guard.OwnsApp(ctx, appID, orgID); err != nil {
		httputil.WriteError(w, err)
		return id.AppID{}, false
	}
	return appID, true
}

func toCredentialResponse(cred *models.ProviderCredential) CredentialResponse {
	fields := make([]string, 0, len(cred.Credentials))
	for k := range cred.Credentials {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return CredentialResponse{
		ID:        cred.ID.String(),
		Provider:  cred.Provider.String(),
		Fields:    fields,
		Active:    cred.Active,
		CreatedAt: cred.CreatedAt,
		UpdatedAt: cred.UpdatedAt,
	}
}
