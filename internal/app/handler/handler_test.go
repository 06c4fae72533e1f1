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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "tabhq/pkg/domain"
	dErrors "tabhq/pkg/domain-errors"

	"tabhq/internal/app/models"
	"tabhq/internal/app/service"
	"tabhq/internal/platform/middleware"
)

type stubService struct {
	app     *models.App
	rawKey  string
	err     error
	gotOrg  id.OrgID
	gotApp  id.AppID
	created service.CreateAppInput
}

func (s *stubService) CreateApp(_ context.Context, in service.CreateAppInput) (*models.App, string, error) {
	s.created = in
	return s.app, s.rawKey, s.err
}

func (s *stubService) GetApp(_ context.Context, appID id.AppID, orgID id.OrgID) (*models.App, error) {
	s.gotApp, s.gotOrg = appID, orgID
	return s.app, s.err
}

func (s *stubService) RotateKey(_ context.Context, appID id.AppID, orgID id.OrgID) (string, error) {
	s.gotApp, s.gotOrg = appID, orgID
	return s.rawKey, s.err
}

type staticTokens struct{ orgID string }

func (v staticTokens) ValidateToken(_ string) (*middleware.TokenClaims, error) {
	return &middleware.TokenClaims{UserID: "user-1", OrgID: v.orgID}, nil
}

func newTestRouter(svc Service, orgID string) http.Handler {
	logger := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequireAuth(staticTokens{orgID: orgID}, logger))
	New(svc, logger).Register(r)
	return r
}

func TestHandleRotateKeyReturnsKeyOnce(t *testing.T) {
	orgID := id.OrgID(uuid.New())
	appID := id.AppID(uuid.New())
	svc := &stubService{rawKey: "tab_abcdef_" + strings.Repeat("0", 48) + "_deadbeef"}
	router := newTestRouter(svc, orgID.String())

	req := httptest.NewRequest(http.MethodPost, "/apps/"+appID.String()+"/keys/rotate", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp RotateKeyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, svc.rawKey, resp.APIKey)
	assert.Equal(t, appID, svc.gotApp)
	assert.Equal(t, orgID, svc.gotOrg)
}

func TestHandleRotateKeyBadAppID(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc, uuid.NewString())

	req := httptest.NewRequest(http.MethodPost, "/apps/not-a-uuid/keys/rotate", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateApp(t *testing.T) {
	orgID := id.OrgID(uuid.New())
	app := &models.App{ID: id.AppID(uuid.New()), OrgID: orgID, Name: "checkout"}
	svc := &stubService{app: app, rawKey: "tab_abcdef_" + strings.Repeat("1", 48) + "_cafebabe"}
	router := newTestRouter(svc, orgID.String())

	body := `{"name":"checkout","environment":"live"}`
	req := httptest.NewRequest(http.MethodPost, "/apps", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp CreateAppResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, app.ID.String(), resp.App.ID)
	assert.Equal(t, svc.rawKey, resp.APIKey)
	assert.Equal(t, orgID, svc.created.OrgID)
}

func TestHandleCreateAppValidation(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc, uuid.NewString())

	req := httptest.NewRequest(http.MethodPost, "/apps", strings.NewReader(`{"name":""}`))
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetAppNotFound(t *testing.T) {
	svc := &stubService{err: dErrors.New(dErrors.CodeNotFound, "app not found")}
	router := newTestRouter(svc, uuid.NewString())

	req := httptest.NewRequest(http.MethodGet, "/apps/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
