package config

import (
	"os"
	"time"
)

// Server captures process level configuration for the payment gateway.
type Server struct {
	Addr          string
	MetricsAddr   string
	DatabaseURL   string
	Environment   string
	JWTSigningKey string

	// APIKeySecret is the platform-wide HMAC secret used to checksum
	// issued API keys. Injected here so no package carries a hidden global.
	APIKeySecret string

	// NotifyTimeout bounds the best-effort tenant callback after webhook
	// reconciliation.
	NotifyTimeout time.Duration
}

const defaultNotifyTimeout = 5 * time.Second

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("TABHQ_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	metricsAddr := os.Getenv("TABHQ_METRICS_ADDR")
	if metricsAddr == "" {
		metricsAddr = ":9090"
	}
	env := os.Getenv("TABHQ_ENV")
	if env == "" {
		env = "development"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}
	apiKeySecret := os.Getenv("API_KEY_SECRET")
	if apiKeySecret == "" {
		apiKeySecret = "dev-api-key-secret-change-in-production"
	}

	notifyTimeout := defaultNotifyTimeout
	if raw := os.Getenv("NOTIFY_TIMEOUT"); raw != "" {
		if duration, err := time.ParseDuration(raw); err == nil {
			notifyTimeout = duration
		}
	}

	return Server{
		Addr:          addr,
		MetricsAddr:   metricsAddr,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Environment:   env,
		JWTSigningKey: jwtSigningKey,
		APIKeySecret:  apiKeySecret,
		NotifyTimeout: notifyTimeout,
	}
}
