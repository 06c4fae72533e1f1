package store

import (
	"context"
	"sync"

	id "tabhq/pkg/domain"

	"tabhq/internal/app/models"
	"tabhq/internal/sentinel"
)

// ErrNotFound is returned when an app or key is not found.
var ErrNotFound = sentinel.ErrNotFound

// InMemoryApps stores tenant apps in memory for tests and the demo environment.
type InMemoryApps struct {
	mu   sync.RWMutex
	apps map[string]*models.App
}

// NewInMemoryApps creates an in-memory app store.
func NewInMemoryApps() *InMemoryApps {
	return &InMemoryApps{apps: make(map[string]*models.App)}
}

// Create persists a new app.
func (s *InMemoryApps) Create(_ context.Context, app *models.App) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.apps[app.ID.String()]; exists {
		return sentinel.ErrAlreadyUsed
	}
	cp := *app
	s.apps[app.ID.String()] = &cp
	return nil
}

// FindByID retrieves an app by its UUID.
func (s *InMemoryApps) FindByID(_ context.Context, appID id.AppID) (*models.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if app, ok := s.apps[appID.String()]; ok {
		cp := *app
		return &cp, nil
	}
	return nil, ErrNotFound
}

// Update persists changes to an existing app.
func (s *InMemoryApps) Update(_ context.Context, app *models.App) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[app.ID.String()]; !ok {
		return ErrNotFound
	}
	cp := *app
	s.apps[app.ID.String()] = &cp
	return nil
}

// InMemoryKeys stores API keys in memory.
type InMemoryKeys struct {
	mu   sync.RWMutex
	keys map[string]*models.APIKey // by key ID
}

// NewInMemoryKeys creates an in-memory API key store.
func NewInMemoryKeys() *InMemoryKeys {
	return &InMemoryKeys{keys: make(map[string]*models.APIKey)}
}

// Create persists a new key.
func (s *InMemoryKeys) Create(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *key
	s.keys[key.ID.String()] = &cp
	return nil
}

// Deactivate flips a key's active flag off.
func (s *InMemoryKeys) Deactivate(_ context.Context, keyID id.APIKeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[keyID.String()]
	if !ok {
		return ErrNotFound
	}
	key.Active = false
	return nil
}

// FindActiveByValue retrieves the active key matching the exact raw value.
func (s *InMemoryKeys) FindActiveByValue(_ context.Context, raw string) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range s.keys {
		if key.Active && key.Key == raw {
			cp := *key
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// FindActiveByApp retrieves the app's currently active key.
func (s *InMemoryKeys) FindActiveByApp(_ context.Context, appID id.AppID) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range s.keys {
		if key.Active && key.AppID == appID {
			cp := *key
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// CountActiveByApp counts active keys for an app. Used by tests to assert the
// at-most-one-active invariant.
func (s *InMemoryKeys) CountActiveByApp(_ context.Context, appID id.AppID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, key := range s.keys {
		if key.Active && key.AppID == appID {
			count++
		}
	}
	return count, nil
}
