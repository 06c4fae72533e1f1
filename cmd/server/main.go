package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	apphandler "tabhq/internal/app/handler"
	appmetrics "tabhq/internal/app/metrics"
	appservice "tabhq/internal/app/service"
	appstore "tabhq/internal/app/store"
	confighandler "tabhq/internal/paymentconfig/handler"
	configmetrics "tabhq/internal/paymentconfig/metrics"
	configservice "tabhq/internal/paymentconfig/service"
	configstore "tabhq/internal/paymentconfig/store"
	paymenthandler "tabhq/internal/payment/handler"
	paymentmetrics "tabhq/internal/payment/metrics"
	paymentservice "tabhq/internal/payment/service"
	paymentstore "tabhq/internal/payment/store"
	"tabhq/internal/platform/config"
	"tabhq/internal/platform/database"
	"tabhq/internal/platform/health"
	"tabhq/internal/platform/httpserver"
	"tabhq/internal/platform/logger"
	"tabhq/internal/platform/tx"
	"tabhq/internal/provider/catalog"
	"tabhq/internal/provider/tracer"
	"tabhq/internal/token"
	httptransport "tabhq/internal/transport/http"
	webhookhandler "tabhq/internal/webhook/handler"
	webhookmetrics "tabhq/internal/webhook/metrics"
	webhookservice "tabhq/internal/webhook/service"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing payment gateway",
		"addr", cfg.Addr,
		"metrics_addr", cfg.MetricsAddr,
		"environment", cfg.Environment,
	)

	healthHandler := health.New(cfg.Environment)

	// Storage. Without DATABASE_URL the process runs on in-memory stores,
	// which is enough for local development against vendor sandboxes.
	var (
		apps     appservice.AppStore
		keys     appservice.KeyStore
		configs  configservice.Store
		payments paymentservice.Store
		runner   tx.Runner = tx.NoopRunner{}
	)
	if cfg.DatabaseURL != "" {
		dbCfg := database.DefaultConfig()
		dbCfg.URL = cfg.DatabaseURL
		pool, err := database.New(dbCfg)
		if err != nil {
			log.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		apps = appstore.NewPostgresApps(pool.DB())
		keys = appstore.NewPostgresKeys(pool.DB())
		configs = configstore.NewPostgres(pool.DB())
		payments = paymentstore.NewPostgres(pool.DB())
		runner = tx.NewSQLRunner(pool.DB())
		healthHandler.RegisterCheck("database", func() error {
			return pool.Health(context.Background())
		})
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		apps = appstore.NewInMemoryApps()
		keys = appstore.NewInMemoryKeys()
		configs = configstore.NewInMemory()
		payments = paymentstore.NewInMemory()
	}

	registry := catalog.Default()
	tr := tracer.NewOTel()

	appSvc := appservice.New(apps, keys, runner, cfg.APIKeySecret, appmetrics.New())
	configSvc := configservice.New(configs, registry, runner, configmetrics.New())
	paymentSvc := paymentservice.New(payments, configSvc, registry, tr, paymentmetrics.New(), log)
	notifier := webhookservice.NewNotifier(cfg.NotifyTimeout, tr, log)
	reconciler := webhookservice.NewReconciler(payments, configSvc, registry, notifier, tr, webhookmetrics.New(), log)

	tokens := token.NewValidator(cfg.JWTSigningKey)

	router := httptransport.NewRouter(httptransport.Deps{
		Apps:     apphandler.New(appSvc, log),
		Configs:  confighandler.New(configSvc, appSvc, log),
		Payments: paymenthandler.New(paymentSvc, appSvc, log),
		Webhooks: webhookhandler.New(reconciler, log),
		Health:   healthHandler,
		Tokens:   tokens,
		Keys:     &apiKeyValidator{apps: appSvc},
		Logger:   log,
	})

	apiSrv := httpserver.New(cfg.Addr, router)
	metricsSrv := httpserver.New(cfg.MetricsAddr, promhttp.Handler())

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting metrics server", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down servers gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := apiSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
