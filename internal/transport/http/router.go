// Package httptransport wires every HTTP surface of the platform onto one
// chi router: the bearer-token dashboard API, the API-key machine API, vendor
// webhooks, and health probes.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apphandler "tabhq/internal/app/handler"
	paymenthandler "tabhq/internal/payment/handler"
	confighandler "tabhq/internal/paymentconfig/handler"
	"tabhq/internal/platform/health"
	"tabhq/internal/platform/middleware"
	webhookhandler "tabhq/internal/webhook/handler"
)

// Deps carries the wired handlers and guards the router mounts.
type Deps struct {
	Apps          *apphandler.Handler
	Configs       *confighandler.Handler
	Payments      *paymenthandler.Handler
	Webhooks      *webhookhandler.Handler
	Health        *health.Handler
	Tokens        middleware.TokenValidator
	Keys          middleware.APIKeyValidator
	Logger        *slog.Logger
	RequestBudget time.Duration
}

// NewRouter assembles the full middleware stack and mounts every surface.
// Webhooks skip both auth middlewares: the signature check inside
// reconciliation is their authentication.
func NewRouter(d Deps) http.Handler {
	if d.RequestBudget <= 0 {
		d.RequestBudget = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Timeout(d.RequestBudget))

	d.Health.Register(r)

	// Vendor webhooks.
	d.Webhooks.Register(r)

	// Dashboard API, bearer-token authenticated.
	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAuth(d.Tokens, d.Logger))
		d.Apps.Register(r)
		d.Configs.Register(r)
		d.Payments.RegisterDashboard(r)
	})

	// Machine API, API-key authenticated.
	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAPIKey(d.Keys, d.Logger))
		d.Payments.RegisterMachine(r)
	})

	return r
}
