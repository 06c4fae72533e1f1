package store

import (
	"context"
	"sync"

	id "tabhq/pkg/domain"

	"tabhq/internal/paymentconfig/models"
	"tabhq/internal/provider"
	"tabhq/internal/sentinel"
)

// InMemory stores provider credentials in memory for tests and the demo
// environment.
type InMemory struct {
	mu      sync.RWMutex
	records map[string]*models.ProviderCredential // by credential ID
}

// NewInMemory creates an in-memory credential store.
func NewInMemory() *InMemory {
	return &InMemory{records: make(map[string]*models.ProviderCredential)}
}

// Create persists a new credential record.
func (s *InMemory) Create(_ context.Context, cred *models.ProviderCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cred.Active {
		for _, existing := range s.records {
			if existing.Active && existing.AppID == cred.AppID && existing.Provider == cred.Provider {
				return sentinel.ErrAlreadyUsed
			}
		}
	}
	cp := clone(cred)
	s.records[cred.ID.String()] = cp
	return nil
}

// FindActive retrieves the active credential for an app+provider pair.
func (s *InMemory) FindActive(_ context.Context, appID id.AppID, name provider.Name) (*models.ProviderCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cred := range s.records {
		if cred.Active && cred.AppID == appID && cred.Provider == name {
			return clone(cred), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// ListActiveByApp retrieves all active credentials for an app.
func (s *InMemory) ListActiveByApp(_ context.Context, appID id.AppID) ([]*models.ProviderCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ProviderCredential
	for _, cred := range s.records {
		if cred.Active && cred.AppID == appID {
			out = append(out, clone(cred))
		}
	}
	return out, nil
}

// DeactivateActive flips off the active credential for an app+provider pair.
func (s *InMemory) DeactivateActive(_ context.Context, appID id.AppID, name provider.Name) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cred := range s.records {
		if cred.Active && cred.AppID == appID && cred.Provider == name {
			cred.Active = false
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func clone(cred *models.ProviderCredential) *models.ProviderCredential {
	cp := *cred
	cp.Credentials = make(provider.Credentials, len(cred.Credentials))
	for k, v := range cred.Credentials {
		cp.Credentials[k] = v
	}
	return &cp
}
