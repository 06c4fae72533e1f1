package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	id "tabhq/pkg/domain"

	"tabhq/internal/paymentconfig/models"
	"tabhq/internal/platform/tx"
	"tabhq/internal/provider"
	"tabhq/internal/sentinel"
)

// Postgres persists provider credentials in PostgreSQL. The credentials blob
// is stored as JSONB; a partial unique index over (app_id, provider) WHERE
// active enforces the single-active rule at the database level.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed credential store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if dbtx, ok := tx.From(ctx); ok {
		return dbtx
	}
	return s.db
}

func (s *Postgres) Create(ctx context.Context, cred *models.ProviderCredential) error {
	if cred == nil {
		return fmt.Errorf("credential is required")
	}
	blob, err := json.Marshal(cred.Credentials)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	query := `
		INSERT INTO provider_configs (id, app_id, provider, credentials, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(cred.ID),
		uuid.UUID(cred.AppID),
		string(cred.Provider),
		blob,
		cred.Active,
		cred.CreatedAt,
		cred.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create provider config: %w", err)
	}
	return nil
}

func (s *Postgres) FindActive(ctx context.Context, appID id.AppID, name provider.Name) (*models.ProviderCredential, error) {
	query := `
		SELECT id, app_id, provider, credentials, active, created_at, updated_at
		FROM provider_configs
		WHERE app_id = $1 AND provider = $2 AND active = TRUE
	`
	cred, err := scanCredential(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(appID), string(name)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find provider config: %w", err)
	}
	return cred, nil
}

func (s *Postgres) ListActiveByApp(ctx context.Context, appID id.AppID) ([]*models.ProviderCredential, error) {
	query := `
		SELECT id, app_id, provider, credentials, active, created_at, updated_at
		FROM provider_configs
		WHERE app_id = $1 AND active = TRUE
		ORDER BY created_at
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(appID))
	if err != nil {
		return nil, fmt.Errorf("list provider configs: %w", err)
	}
	defer rows.Close()

	var creds []*models.ProviderCredential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan provider config: %w", err)
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provider configs: %w", err)
	}
	return creds, nil
}

func (s *Postgres) DeactivateActive(ctx context.Context, appID id.AppID, name provider.Name) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE provider_configs
		SET active = FALSE, updated_at = NOW()
		WHERE app_id = $1 AND provider = $2 AND active = TRUE
	`, uuid.UUID(appID), string(name))
	if err != nil {
		return fmt.Errorf("deactivate provider config: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate provider config rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCredential(row scannable) (*models.ProviderCredential, error) {
	var cred models.ProviderCredential
	var credID, appID uuid.UUID
	var name string
	var blob []byte
	if err := row.Scan(&credID, &appID, &name, &blob, &cred.Active, &cred.CreatedAt, &cred.UpdatedAt); err != nil {
		return nil, err
	}
	cred.ID = id.CredentialID(credID)
	cred.AppID = id.AppID(appID)
	cred.Provider = provider.Name(name)
	if err := json.Unmarshal(blob, &cred.Credentials); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return &cred, nil
}
