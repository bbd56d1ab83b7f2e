package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderDomain "github.com/allisson/orders/internal/order/domain"
)

// These tests pin down the SQL the repository emits, in particular the
// optimistic-lock predicate and the SKIP LOCKED retry sweep, which the
// live-database tests cannot observe directly.

var orderRowColumns = []string{
	"id", "status", "source_ref", "target_ref", "quantity", "retry_count", "max_retries",
	"last_error_type", "failure_reason", "failed_phase", "next_retry_at", "last_retry_at",
	"is_manually_failed", "operator_notes", "version", "created_at", "updated_at",
}

func newMockRepository(t *testing.T) (*PostgreSQLOrderRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	return NewPostgreSQLOrderRepository(db), mock
}

func mockOrder() *orderDomain.Order {
	now := time.Now().UTC()
	return &orderDomain.Order{
		ID:         uuid.Must(uuid.NewV7()),
		Status:     orderDomain.StatusPending,
		SourceRef:  "https://videos.example.com/v/abc123",
		TargetRef:  "campaign-42",
		Quantity:   5000,
		MaxRetries: 3,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func mockOrderRow(order *orderDomain.Order) *sqlmock.Rows {
	return sqlmock.NewRows(orderRowColumns).AddRow(
		order.ID,
		order.Status,
		order.SourceRef,
		order.TargetRef,
		order.Quantity,
		order.RetryCount,
		order.MaxRetries,
		order.LastErrorType,
		order.FailureReason,
		order.FailedPhase,
		order.NextRetryAt,
		order.LastRetryAt,
		order.IsManuallyFailed,
		order.OperatorNotes,
		order.Version,
		order.CreatedAt,
		order.UpdatedAt,
	)
}

func TestPostgreSQLOrderRepository_Update_OptimisticLock(t *testing.T) {
	t.Run("StaleVersionReturnsConcurrentModification", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		order := mockOrder()
		order.Version = 4

		// The write must be guarded by both the id and the version read.
		mock.ExpectExec(`(?s)UPDATE orders\s+SET .*version = version \+ 1.*WHERE id = \$15 AND version = \$16`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Update(context.Background(), order)
		assert.ErrorIs(t, err, orderDomain.ErrConcurrentModification)
		assert.Equal(t, int64(4), order.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SuccessAdvancesVersion", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		order := mockOrder()

		mock.ExpectExec(`(?s)UPDATE orders\s+SET .*WHERE id = \$15 AND version = \$16`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Update(context.Background(), order)
		assert.NoError(t, err)
		assert.Equal(t, int64(2), order.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgreSQLOrderRepository_ListDueForRetry_SQL(t *testing.T) {
	repo, mock := newMockRepository(t)

	now := time.Now().UTC()
	retryAt := now.Add(-time.Minute)
	due := mockOrder()
	due.Status = orderDomain.StatusHolding
	due.RetryCount = 1
	due.NextRetryAt = &retryAt

	// Due orders are holding, under the retry cap, not operator-pinned, and
	// locked with SKIP LOCKED so concurrent dispatchers skip claimed rows.
	mock.ExpectQuery(`(?s)SELECT .*FROM orders\s+WHERE status = \$1\s+AND is_manually_failed = FALSE\s+AND retry_count < max_retries\s+AND next_retry_at IS NOT NULL\s+AND next_retry_at <= \$2\s+ORDER BY next_retry_at ASC\s+LIMIT \$3\s+FOR UPDATE SKIP LOCKED`).
		WithArgs(orderDomain.StatusHolding, now, 50).
		WillReturnRows(mockOrderRow(due))

	orders, err := repo.ListDueForRetry(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, due.ID, orders[0].ID)
	assert.Equal(t, orderDomain.StatusHolding, orders[0].Status)
	require.NotNil(t, orders[0].NextRetryAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLOrderRepository_GetByID_NoRows(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`(?s)SELECT .*FROM orders\s+WHERE id = \$1\s+LIMIT 1`).
		WillReturnError(sql.ErrNoRows)

	order, err := repo.GetByID(context.Background(), uuid.Must(uuid.NewV7()))
	assert.Nil(t, order)
	assert.ErrorIs(t, err, orderDomain.ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
