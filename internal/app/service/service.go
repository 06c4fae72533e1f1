// Package service implements tenant app management and the API key lifecycle.
//
// A key string is self-describing: tab_<org prefix>_<random>_<checksum>. The
// checksum is an HMAC over the app, org, and random segment, so a stolen key
// cannot be re-bound to another tenant and a tampered key fails before any
// credential is touched.
package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	id "tabhq/pkg/domain"
	dErrors "tabhq/pkg/domain-errors"

	"tabhq/internal/app/metrics"
	"tabhq/internal/app/models"
	"tabhq/internal/platform/tx"
	"tabhq/internal/sentinel"
)

const (
	keyPrefix      = "tab"
	orgSegmentLen  = 6
	randSegmentLen = 48 // hex chars; 24 bytes of entropy
	sumSegmentLen  = 8  // hex chars; truncated HMAC-SHA256
)

// AppStore persists tenant apps.
type AppStore interface {
	Create(ctx context.Context, app *models.App) error
	FindByID(ctx context.Context, appID id.AppID) (*models.App, error)
	Update(ctx context.Context, app *models.App) error
}

// KeyStore persists API keys.
type KeyStore interface {
	Create(ctx context.Context, key *models.APIKey) error
	Deactivate(ctx context.Context, keyID id.APIKeyID) error
	FindActiveByValue(ctx context.Context, raw string) (*models.APIKey, error)
	FindActiveByApp(ctx context.Context, appID id.AppID) (*models.APIKey, error)
}

// Identity is the tenant resolved from a valid API key.
type Identity struct {
	AppID id.AppID
	OrgID id.OrgID
}

// Service manages apps and their API keys.
type Service struct {
	apps    AppStore
	keys    KeyStore
	runner  tx.Runner
	secret  []byte
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates the app service. secret signs API key checksums and must be
// stable across deployments or every issued key is invalidated.
func New(apps AppStore, keys KeyStore, runner tx.Runner, secret string, m *metrics.Metrics) *Service {
	return &Service{
		apps:    apps,
		keys:    keys,
		runner:  runner,
		secret:  []byte(secret),
		metrics: m,
		now:     time.Now,
	}
}

// CreateAppInput carries the fields for registering a new app.
type CreateAppInput struct {
	OrgID       id.OrgID
	Name        string
	Description string
	Environment string
}

// CreateApp registers an app and mints its first API key. The raw key is
// returned once and never stored in recoverable form elsewhere.
func (s *Service) CreateApp(ctx context.Context, in CreateAppInput) (*models.App, string, error) {
	if in.OrgID.IsNil() {
		return nil, "", dErrors.New(dErrors.CodeValidation, "organization ID is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, "", dErrors.New(dErrors.CodeValidation, "app name is required")
	}

	now := s.now()
	app := &models.App{
		ID:          id.AppID(uuid.New()),
		OrgID:       in.OrgID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Environment: in.Environment,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var rawKey string
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.apps.Create(ctx, app); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "create app")
		}
		key, raw, err := s.mintKey(app)
		if err != nil {
			return err
		}
		if err := s.keys.Create(ctx, key); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "store api key")
		}
		app.APIKeyID = key.ID
		if err := s.apps.Update(ctx, app); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "attach api key")
		}
		rawKey = raw
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return app, rawKey, nil
}

// GetApp retrieves an app, enforcing org ownership.
func (s *Service) GetApp(ctx context.Context, appID id.AppID, orgID id.OrgID) (*models.App, error) {
	app, err := s.apps.FindByID(ctx, appID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "app not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find app")
	}
	if app.OrgID != orgID {
		// Do not reveal cross-tenant existence.
		return nil, dErrors.New(dErrors.CodeNotFound, "app not found")
	}
	return app, nil
}

// OwnsApp reports whether the org owns the app, as an error so handlers can
// pass it straight through.
func (s *Service) OwnsApp(ctx context.Context, appID id.AppID, orgID id.OrgID) error {
	_, err := s.GetApp(ctx, appID, orgID)
	return err
}

// RotateKey replaces the app's active key. The old key dies and the new one
// is born in the same transaction, so no request window sees zero or two
// active keys.
func (s *Service) RotateKey(ctx context.Context, appID id.AppID, orgID id.OrgID) (string, error) {
	start := s.now()
	app, err := s.GetApp(ctx, appID, orgID)
	if err != nil {
		return "", err
	}

	var rawKey string
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if old, err := s.keys.FindActiveByApp(ctx, app.ID); err == nil {
			if err := s.keys.Deactivate(ctx, old.ID); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "deactivate old api key")
			}
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "find active api key")
		}

		key, raw, err := s.mintKey(app)
		if err != nil {
			return err
		}
		if err := s.keys.Create(ctx, key); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "store api key")
		}

		app.APIKeyID = key.ID
		app.UpdatedAt = s.now()
		if err := s.apps.Update(ctx, app); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "attach api key")
		}
		rawKey = raw
		return nil
	})
	if err != nil {
		return "", err
	}

	if s.metrics != nil {
		s.metrics.IncrementKeysRotated()
		s.metrics.ObserveRotationLatency(s.now().Sub(start).Seconds())
	}
	return rawKey, nil
}

// ValidateKey resolves the tenant identity behind a raw API key. Rejection
// reasons are deliberately indistinguishable to the caller.
func (s *Service) ValidateKey(ctx context.Context, raw string) (*Identity, error) {
	if !wellFormed(raw) {
		s.countValidation("malformed")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid API key")
	}

	key, err := s.keys.FindActiveByValue(ctx, raw)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.countValidation("unknown")
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid API key")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "look up api key")
	}

	app, err := s.apps.FindByID(ctx, key.AppID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find key owner")
	}

	// The stored value already matched byte for byte; recomputing the
	// checksum catches a key row bound to the wrong tenant.
	parts := strings.Split(raw, "_")
	want := s.checksum(app.ID, app.OrgID, parts[2])
	if subtle.ConstantTimeCompare([]byte(want), []byte(parts[3])) != 1 {
		s.countValidation("checksum_mismatch")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid API key")
	}

	s.countValidation("ok")
	return &Identity{AppID: app.ID, OrgID: app.OrgID}, nil
}

func (s *Service) mintKey(app *models.App) (*models.APIKey, string, error) {
	buf := make([]byte, randSegmentLen/2)
	if _, err := rand.Read(buf); err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "generate key entropy")
	}
	randomPart := hex.EncodeToString(buf)
	sum := s.checksum(app.ID, app.OrgID, randomPart)
	raw := fmt.Sprintf("%s_%s_%s_%s", keyPrefix, app.OrgID.String()[:orgSegmentLen], randomPart, sum)

	return &models.APIKey{
		ID:        id.APIKeyID(uuid.New()),
		AppID:     app.ID,
		Key:       raw,
		Active:    true,
		CreatedAt: s.now(),
	}, raw, nil
}

func (s *Service) checksum(appID id.AppID, orgID id.OrgID, randomPart string) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%s:%s", appID.String(), orgID.String(), randomPart)
	return hex.EncodeToString(mac.Sum(nil))[:sumSegmentLen]
}

// wellFormed rejects obviously broken keys before any store access.
func wellFormed(raw string) bool {
	parts := strings.Split(raw, "_")
	if len(parts) != 4 || parts[0] != keyPrefix {
		return false
	}
	if len(parts[1]) != orgSegmentLen {
		return false
	}
	if len(parts[2]) != randSegmentLen || !isHex(parts[2]) {
		return false
	}
	if len(parts[3]) != sumSegmentLen || !isHex(parts[3]) {
		return false
	}
	return true
}

func isHex(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil
}

func (s *Service) countValidation(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementKeyValidation(outcome)
	}
}
