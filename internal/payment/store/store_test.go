package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "tabhq/pkg/domain"

	"tabhq/internal/payment/models"
	"tabhq/internal/provider"
	"tabhq/internal/sentinel"
)

func pendingPayment(txRef string) *models.Payment {
	now := time.Now()
	return &models.Payment{
		ID:           id.PaymentID(uuid.New()),
		AppID:        id.AppID(uuid.New()),
		OrgID:        id.OrgID(uuid.New()),
		Provider:     provider.NameFlutterwave,
		VendorTxnRef: txRef,
		Amount:       decimal.NewFromInt(100),
		Currency:     "GHS",
		Status:       provider.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestInMemoryDuplicateVendorRef(t *testing.T) {
	st := NewInMemory()
	require.NoError(t, st.Create(context.Background(), pendingPayment("tx-1")))

	err := st.Create(context.Background(), pendingPayment("tx-1"))
	assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
}

func TestInMemoryTransitionRules(t *testing.T) {
	st := NewInMemory()
	payment := pendingPayment("tx-1")
	require.NoError(t, st.Create(context.Background(), payment))

	// PENDING -> REFUNDED is not a legal step.
	moved, err := st.TransitionStatus(context.Background(), payment.ID, provider.StatusRefunded)
	require.NoError(t, err)
	assert.False(t, moved)

	moved, err = st.TransitionStatus(context.Background(), payment.ID, provider.StatusSuccess)
	require.NoError(t, err)
	assert.True(t, moved)

	// Terminal: a late FAILED delivery must not undo SUCCESS.
	moved, err = st.TransitionStatus(context.Background(), payment.ID, provider.StatusFailed)
	require.NoError(t, err)
	assert.False(t, moved)

	// The explicit refund path is still open.
	moved, err = st.TransitionStatus(context.Background(), payment.ID, provider.StatusRefunded)
	require.NoError(t, err)
	assert.True(t, moved)

	stored, err := st.FindByID(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, provider.StatusRefunded, stored.Status)
}

func TestInMemoryTransitionUnknownPayment(t *testing.T) {
	st := NewInMemory()
	_, err := st.TransitionStatus(context.Background(), id.PaymentID(uuid.New()), provider.StatusSuccess)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresTransitionGuardsInSQL(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	paymentID := uuid.New()

	// The WHERE clause pins the expected current status.
	mock.ExpectExec(`UPDATE payments\s+SET status = \$2, updated_at = NOW\(\)\s+WHERE id = \$1 AND status = \$3`).
		WithArgs(paymentID, "SUCCESS", "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 1))

	moved, err := NewPostgres(db).TransitionStatus(context.Background(), id.PaymentID(paymentID), provider.StatusSuccess)
	require.NoError(t, err)
	assert.True(t, moved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTransitionLostRace(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	paymentID := uuid.New()
	mock.ExpectExec(`UPDATE payments`).
		WithArgs(paymentID, "FAILED", "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 0))

	moved, err := NewPostgres(db).TransitionStatus(context.Background(), id.PaymentID(paymentID), provider.StatusFailed)
	require.NoError(t, err)
	assert.False(t, moved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByVendorRef(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	paymentID := uuid.New()
	appID := uuid.New()
	orgID := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "app_id", "org_id", "provider", "vendor_txn_ref",
		"amount", "currency", "status", "metadata", "redirect_url", "created_at", "updated_at"}).
		AddRow(paymentID.String(), appID.String(), orgID.String(), "flutterwave", "tx-1",
			"149.99", "GHS", "PENDING", []byte(`{"orderId":"o-1"}`), "", now, now)

	mock.ExpectQuery(`(?s)SELECT .+ FROM payments WHERE provider = \$1 AND vendor_txn_ref = \$2`).
		WithArgs("flutterwave", "tx-1").
		WillReturnRows(rows)

	payment, err := NewPostgres(db).FindByVendorRef(context.Background(), provider.NameFlutterwave, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, id.PaymentID(paymentID), payment.ID)
	assert.True(t, decimal.RequireFromString("149.99").Equal(payment.Amount))
	assert.Equal(t, provider.StatusPending, payment.Status)
	assert.Equal(t, "o-1", payment.Metadata["orderId"])
	require.NoError(t, mock.ExpectationsWereMet())
}
