// Package service manages the provider credentials an app has configured.
// Credentials are validated against the adapter before they are stored, so a
// typo'd secret fails at configuration time instead of at the first charge.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	id "tabhq/pkg/domain"
	dErrors "tabhq/pkg/domain-errors"

	"tabhq/internal/paymentconfig/metrics"
	"tabhq/internal/paymentconfig/models"
	"tabhq/internal/platform/tx"
	"tabhq/internal/provider"
	"tabhq/internal/sentinel"
)

// Store persists provider credentials.
type Store interface {
	Create(ctx context.Context, cred *models.ProviderCredential) error
	FindActive(ctx context.Context, appID id.AppID, name provider.Name) (*models.ProviderCredential, error)
	ListActiveByApp(ctx context.Context, appID id.AppID) ([]*models.ProviderCredential, error)
	DeactivateActive(ctx context.Context, appID id.AppID, name provider.Name) error
}

// Resolver looks up a payment adapter by provider name.
type Resolver interface {
	Resolve(name string) (provider.Adapter, error)
}

// Service manages per-app provider credentials.
type Service struct {
	store    Store
	registry Resolver
	runner   tx.Runner
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New creates the credential service.
func New(store Store, registry Resolver, runner tx.Runner, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		registry: registry,
		runner:   runner,
		metrics:  m,
		now:      time.Now,
	}
}

// Configure stores credentials for an app+provider pair, replacing any
// previous active set. The provider must be known and the credentials must
// satisfy the adapter's required fields.
func (s *Service) Configure(ctx context.Context, appID id.AppID, rawName string, creds provider.Credentials) (*models.ProviderCredential, error) {
	if appID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "app ID is required")
	}
	if len(creds) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "credentials are required")
	}

	adapter, err := s.registry.Resolve(rawName)
	if err != nil {
		return nil, err
	}
	if err := adapter.Init(creds); err != nil {
		return nil, err
	}

	name := provider.Normalize(rawName)
	now := s.now()
	cred := &models.ProviderCredential{
		ID:          id.CredentialID(uuid.New()),
		AppID:       appID,
		Provider:    name,
		Credentials: creds,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.DeactivateActive(ctx, appID, name); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "replace provider config")
		}
		if err := s.store.Create(ctx, cred); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "store provider config")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementConfigsSet(name.String())
	}
	return cred, nil
}

// GetActive retrieves the active credential for an app+provider pair.
func (s *Service) GetActive(ctx context.Context, appID id.AppID, rawName string) (*models.ProviderCredential, error) {
	name := provider.Normalize(rawName)
	cred, err := s.store.FindActive(ctx, appID, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.countLookup(name, "miss")
			return nil, dErrors.New(dErrors.CodeConfigNotFound, "no active configuration for provider "+name.String())
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find provider config")
	}
	s.countLookup(name, "hit")
	return cred, nil
}

// List retrieves all active credentials for an app.
func (s *Service) List(ctx context.Context, appID id.AppID) ([]*models.ProviderCredential, error) {
	creds, err := s.store.ListActiveByApp(ctx, appID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list provider configs")
	}
	return creds, nil
}

// Remove deactivates the app's credential for a provider. Payments through
// that provider fail with config_not_found afterwards.
func (s *Service) Remove(ctx context.Context, appID id.AppID, rawName string) error {
	name := provider.Normalize(rawName)
	if err := s.store.DeactivateActive(ctx, appID, name); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeConfigNotFound, "no active configuration for provider "+name.String())
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "remove provider config")
	}
	if s.metrics != nil {
		s.metrics.IncrementConfigsRemoved(name.String())
	}
	return nil
}

func (s *Service) countLookup(name provider.Name, outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementConfigLookup(name.String(), outcome)
	}
}
