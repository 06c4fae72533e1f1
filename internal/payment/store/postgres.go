package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	id "tabhq/pkg/domain"

	"tabhq/internal/payment/models"
	"tabhq/internal/platform/tx"
	"tabhq/internal/provider"
	"tabhq/internal/sentinel"
)

// Postgres persists payments in PostgreSQL. Amounts are stored as NUMERIC
// and never pass through a float.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed payment store.
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

func (s *Postgres) Create(ctx context.Context, payment *models.Payment) error {
	if payment == nil {
		return fmt.Errorf("payment is required")
	}
	metadata, err := json.Marshal(payment.Metadata)
	if err != nil {
		return fmt.Errorf("encode payment metadata: %w", err)
	}
	query := `
		INSERT INTO payments (id, app_id, org_id, provider, vendor_txn_ref, amount, currency,
			status, metadata, redirect_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(payment.ID),
		uuid.UUID(payment.AppID),
		uuid.UUID(payment.OrgID),
		string(payment.Provider),
		payment.VendorTxnRef,
		payment.Amount.String(),
		payment.Currency,
		string(payment.Status),
		metadata,
		payment.RedirectURL,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

const paymentColumns = `id, app_id, org_id, provider, vendor_txn_ref, amount, currency,
	status, metadata, redirect_url, created_at, updated_at`

func (s *Postgres) FindByID(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	payment, err := scanPayment(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(paymentID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return payment, nil
}

func (s *Postgres) FindByVendorRef(ctx context.Context, name provider.Name, vendorTxnRef string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE provider = $1 AND vendor_txn_ref = $2`
	payment, err := scanPayment(s.execer(ctx).QueryRowContext(ctx, query, string(name), vendorTxnRef))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find payment by vendor ref: %w", err)
	}
	return payment, nil
}

func (s *Postgres) ListByApp(ctx context.Context, appID id.AppID) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE app_id = $1 ORDER BY created_at DESC`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(appID))
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return payments, nil
}

// TransitionStatus advances the payment only when the step is legal for its
// current status. The precondition rides in the WHERE clause, so concurrent
// or replayed deliveries race safely: exactly one wins, the rest see false.
func (s *Postgres) TransitionStatus(ctx context.Context, paymentID id.PaymentID, next provider.Status) (bool, error) {
	var from provider.Status
	switch next {
	case provider.StatusSuccess, provider.StatusFailed:
		from = provider.StatusPending
	case provider.StatusRefunded:
		from = provider.StatusSuccess
	default:
		return false, nil
	}

	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE payments
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, uuid.UUID(paymentID), string(next), string(from))
	if err != nil {
		return false, fmt.Errorf("transition payment status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition payment status rows: %w", err)
	}
	return rows > 0, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPayment(row scannable) (*models.Payment, error) {
	var payment models.Payment
	var paymentID, appID, orgID uuid.UUID
	var name, amount, status string
	var metadata []byte
	if err := row.Scan(&paymentID, &appID, &orgID, &name, &payment.VendorTxnRef, &amount,
		&payment.Currency, &status, &metadata, &payment.RedirectURL,
		&payment.CreatedAt, &payment.UpdatedAt); err != nil {
		return nil, err
	}
	payment.ID = id.PaymentID(paymentID)
	payment.AppID = id.AppID(appID)
	payment.OrgID = id.OrgID(orgID)
	payment.Provider = provider.Name(name)
	payment.Status = provider.Status(status)

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse payment amount: %w", err)
	}
	payment.Amount = parsed

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &payment.Metadata); err != nil {
			return nil, fmt.Errorf("decode payment metadata: %w", err)
		}
	}
	return &payment, nil
}
