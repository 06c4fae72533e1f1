package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	id "tabhq/pkg/domain"

	"tabhq/internal/app/models"
	"tabhq/internal/platform/tx"
	"tabhq/internal/sentinel"
)

// PostgresApps persists tenant apps in PostgreSQL.
type PostgresApps struct {
	db *sql.DB
}

// NewPostgresApps constructs a PostgreSQL-backed app store.
func NewPostgresApps(db *sql.DB) *PostgresApps {
	return &PostgresApps{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func execer(ctx context.Context, db *sql.DB) dbExecutor {
	if dbtx, ok := tx.From(ctx); ok {
		return dbtx
	}
	return db
}

func (s *PostgresApps) Create(ctx context.Context, app *models.App) error {
	if app == nil {
		return fmt.Errorf("app is required")
	}
	query := `
		INSERT INTO apps (id, org_id, name, description, environment, api_key_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(app.ID),
		uuid.UUID(app.OrgID),
		app.Name,
		app.Description,
		app.Environment,
		nullableUUID(uuid.UUID(app.APIKeyID)),
		app.CreatedAt,
		app.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create app: %w", err)
	}
	return nil
}

func (s *PostgresApps) FindByID(ctx context.Context, appID id.AppID) (*models.App, error) {
	query := `
		SELECT id, org_id, name, description, environment, api_key_id, created_at, updated_at
		FROM apps
		WHERE id = $1
	`
	app, err := scanApp(execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(appID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find app: %w", err)
	}
	return app, nil
}

func (s *PostgresApps) Update(ctx context.Context, app *models.App) error {
	if app == nil {
		return fmt.Errorf("app is required")
	}
	query := `
		UPDATE apps
		SET name = $2, description = $3, environment = $4, api_key_id = $5, updated_at = $6
		WHERE id = $1
	`
	res, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(app.ID),
		app.Name,
		app.Description,
		app.Environment,
		nullableUUID(uuid.UUID(app.APIKeyID)),
		app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update app: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update app rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// PostgresKeys persists API keys in PostgreSQL.
type PostgresKeys struct {
	db *sql.DB
}

// NewPostgresKeys constructs a PostgreSQL-backed API key store.
func NewPostgresKeys(db *sql.DB) *PostgresKeys {
	return &PostgresKeys{db: db}
}

func (s *PostgresKeys) Create(ctx context.Context, key *models.APIKey) error {
	if key == nil {
		return fmt.Errorf("api key is required")
	}
	query := `
		INSERT INTO api_keys (id, app_id, key, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(key.ID),
		uuid.UUID(key.AppID),
		key.Key,
		key.Active,
		key.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresKeys) Deactivate(ctx context.Context, keyID id.APIKeyID) error {
	res, err := execer(ctx, s.db).ExecContext(ctx,
		`UPDATE api_keys SET active = FALSE WHERE id = $1`, uuid.UUID(keyID))
	if err != nil {
		return fmt.Errorf("deactivate api key: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate api key rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresKeys) FindActiveByValue(ctx context.Context, raw string) (*models.APIKey, error) {
	query := `
		SELECT id, app_id, key, active, created_at
		FROM api_keys
		WHERE key = $1 AND active = TRUE
	`
	key, err := scanKey(execer(ctx, s.db).QueryRowContext(ctx, query, raw))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find api key by value: %w", err)
	}
	return key, nil
}

func (s *PostgresKeys) FindActiveByApp(ctx context.Context, appID id.AppID) (*models.APIKey, error) {
	query := `
		SELECT id, app_id, key, active, created_at
		FROM api_keys
		WHERE app_id = $1 AND active = TRUE
	`
	key, err := scanKey(execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(appID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find active api key: %w", err)
	}
	return key, nil
}

func (s *PostgresKeys) CountActiveByApp(ctx context.Context, appID id.AppID) (int, error) {
	var count int
	err := execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM api_keys WHERE app_id = $1 AND active = TRUE`,
		uuid.UUID(appID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active api keys: %w", err)
	}
	return count, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanApp(row scannable) (*models.App, error) {
	var app models.App
	var appID, orgID uuid.UUID
	var apiKeyID uuid.NullUUID
	if err := row.Scan(&appID, &orgID, &app.Name, &app.Description, &app.Environment,
		&apiKeyID, &app.CreatedAt, &app.UpdatedAt); err != nil {
		return nil, err
	}
	app.ID = id.AppID(appID)
	app.OrgID = id.OrgID(orgID)
	if apiKeyID.Valid {
		app.APIKeyID = id.APIKeyID(apiKeyID.UUID)
	}
	return &app, nil
}

func scanKey(row scannable) (*models.APIKey, error) {
	var key models.APIKey
	var keyID, appID uuid.UUID
	if err := row.Scan(&keyID, &appID, &key.Key, &key.Active, &key.CreatedAt); err != nil {
		return nil, err
	}
	key.ID = id.APIKeyID(keyID)
	key.AppID = id.AppID(appID)
	return &key, nil
}

func nullableUUID(u uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: u, Valid: u != uuid.Nil}
}
