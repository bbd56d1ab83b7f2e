// Package repository implements order persistence for PostgreSQL and MySQL.
// Order updates use optimistic locking on the version column so concurrent
// writers never silently overwrite each other.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/orders/internal/database"
	apperrors "github.com/allisson/orders/internal/errors"
	orderDomain "github.com/allisson/orders/internal/order/domain"
)

const orderColumns = `id, status, source_ref, target_ref, quantity, retry_count, max_retries,
	last_error_type, failure_reason, failed_phase, next_retry_at, last_retry_at,
	is_manually_failed, operator_notes, version, created_at, updated_at`

// PostgreSQLOrderRepository implements Order persistence for PostgreSQL.
type PostgreSQLOrderRepository struct {
	db *sql.DB
}

// NewPostgreSQLOrderRepository creates a new PostgreSQL Order repository instance.
func NewPostgreSQLOrderRepository(db *sql.DB) *PostgreSQLOrderRepository {
	return &PostgreSQLOrderRepository{db: db}
}

// Create inserts a new order into the PostgreSQL database.
func (p *PostgreSQLOrderRepository) Create(ctx context.Context, order *orderDomain.Order) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO orders (` + orderColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := querier.ExecContext(
		ctx,
		query,
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
	if err != nil {
		return apperrors.Wrap(err, "failed to create order")
	}

	return nil
}

// GetByID retrieves an order by its identifier.
func (p *PostgreSQLOrderRepository) GetByID(
	ctx context.Context,
	orderID uuid.UUID,
) (*orderDomain.Order, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + orderColumns + `
			  FROM orders
			  WHERE id = $1
			  LIMIT 1`

	var order orderDomain.Order
	err := querier.QueryRowContext(ctx, query, orderID).Scan(scanOrderFields(&order)...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, orderDomain.ErrOrderNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get order by id")
	}

	return &order, nil
}

// Update persists the order using optimistic locking. The write only lands
// when the stored version still matches order.Version; on success the
// in-memory version is advanced to match the row. A version mismatch or a
// missing row returns ErrConcurrentModification.
func (p *PostgreSQLOrderRepository) Update(ctx context.Context, order *orderDomain.Order) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE orders
			  SET status = $1, source_ref = $2, target_ref = $3, quantity = $4, retry_count = $5,
			      max_retries = $6, last_error_type = $7, failure_reason = $8, failed_phase = $9,
			      next_retry_at = $10, last_retry_at = $11, is_manually_failed = $12,
			      operator_notes = $13, version = version + 1, updated_at = $14
			  WHERE id = $15 AND version = $16`

	now := time.Now().UTC()
	result, err := querier.ExecContext(
		ctx,
		query,
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
		now,
		order.ID,
		order.Version,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update order")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get affected rows")
	}
	if affected == 0 {
		return orderDomain.ErrConcurrentModification
	}

	order.Version++
	order.UpdatedAt = now
	return nil
}

// ListDueForRetry retrieves holding orders whose scheduled retry time has
// arrived, oldest schedule first. Rows are locked with SKIP LOCKED so
// concurrent dispatchers never pick the same order twice.
func (p *PostgreSQLOrderRepository) ListDueForRetry(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*orderDomain.Order, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + orderColumns + `
			  FROM orders
			  WHERE status = $1
			    AND is_manually_failed = FALSE
			    AND retry_count < max_retries
			    AND next_retry_at IS NOT NULL
			    AND next_retry_at <= $2
			  ORDER BY next_retry_at ASC
			  LIMIT $3
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, orderDomain.StatusHolding, now, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list due retries")
	}
	defer func() {
		_ = rows.Close()
	}()

	return collectOrders(rows)
}

// ListDeadLetter retrieves dead-lettered orders (retries exhausted or
// manually failed) with pagination, newest first. A non-nil errorType
// narrows the listing to that failure classification.
func (p *PostgreSQLOrderRepository) ListDeadLetter(
	ctx context.Context,
	errorType *orderDomain.ErrorType,
	offset, limit int,
) ([]*orderDomain.Order, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + orderColumns + `
			  FROM orders
			  WHERE status = $1
			    AND (is_manually_failed = TRUE OR retry_count >= max_retries)
			    AND ($2::text IS NULL OR last_error_type = $2)
			  ORDER BY updated_at DESC
			  LIMIT $3 OFFSET $4`

	rows, err := querier.QueryContext(ctx, query, orderDomain.StatusHolding, errorType, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list dead letter orders")
	}
	defer func() {
		_ = rows.Close()
	}()

	return collectOrders(rows)
}

// CountDeadLetter counts dead-lettered orders, optionally narrowed by
// failure classification.
func (p *PostgreSQLOrderRepository) CountDeadLetter(
	ctx context.Context,
	errorType *orderDomain.ErrorType,
) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT COUNT(*)
			  FROM orders
			  WHERE status = $1
			    AND (is_manually_failed = TRUE OR retry_count >= max_retries)
			    AND ($2::text IS NULL OR last_error_type = $2)`

	var count int64
	if err := querier.QueryRowContext(ctx, query, orderDomain.StatusHolding, errorType).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count dead letter orders")
	}

	return count, nil
}

// CountDeadLetterByErrorType returns dead-letter counts grouped by failure
// classification.
func (p *PostgreSQLOrderRepository) CountDeadLetterByErrorType(
	ctx context.Context,
) (map[orderDomain.ErrorType]int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT COALESCE(last_error_type, ''), COUNT(*)
			  FROM orders
			  WHERE status = $1
			    AND (is_manually_failed = TRUE OR retry_count >= max_retries)
			  GROUP BY last_error_type`

	rows, err := querier.QueryContext(ctx, query, orderDomain.StatusHolding)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count dead letter orders by error type")
	}
	defer func() {
		_ = rows.Close()
	}()

	counts := make(map[orderDomain.ErrorType]int64)
	for rows.Next() {
		var errorType string
		var count int64
		if err := rows.Scan(&errorType, &count); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan dead letter count")
		}
		counts[orderDomain.ErrorType(errorType)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate dead letter counts")
	}

	return counts, nil
}

// ListDeadLetterBefore retrieves dead-lettered orders last touched before
// the cutoff, for the retention sweep. Rows are locked with SKIP LOCKED.
func (p *PostgreSQLOrderRepository) ListDeadLetterBefore(
	ctx context.Context,
	cutoff time.Time,
	limit int,
) ([]*orderDomain.Order, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + orderColumns + `
			  FROM orders
			  WHERE status = $1
			    AND (is_manually_failed = TRUE OR retry_count >= max_retries)
			    AND updated_at < $2
			  ORDER BY updated_at ASC
			  LIMIT $3
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, orderDomain.StatusHolding, cutoff, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list expired dead letter orders")
	}
	defer func() {
		_ = rows.Close()
	}()

	return collectOrders(rows)
}

// CountByStatus returns order counts grouped by status.
func (p *PostgreSQLOrderRepository) CountByStatus(
	ctx context.Context,
) (map[orderDomain.Status]int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT status, COUNT(*) FROM orders GROUP BY status`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count orders by status")
	}
	defer func() {
		_ = rows.Close()
	}()

	counts := make(map[orderDomain.Status]int64)
	for rows.Next() {
		var status orderDomain.Status
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan status count")
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate status counts")
	}

	return counts, nil
}

// CountScheduledRetries counts holding orders with a pending retry schedule.
func (p *PostgreSQLOrderRepository) CountScheduledRetries(ctx context.Context) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT COUNT(*)
			  FROM orders
			  WHERE status = $1
			    AND is_manually_failed = FALSE
			    AND retry_count < max_retries
			    AND next_retry_at IS NOT NULL`

	var count int64
	if err := querier.QueryRowContext(ctx, query, orderDomain.StatusHolding).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count scheduled retries")
	}

	return count, nil
}

// CountFailedSince counts orders whose most recent recorded failure falls
// inside the window starting at since.
func (p *PostgreSQLOrderRepository) CountFailedSince(
	ctx context.Context,
	since time.Time,
) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT COUNT(*)
			  FROM orders
			  WHERE last_error_type IS NOT NULL
			    AND updated_at >= $1`

	var count int64
	if err := querier.QueryRowContext(ctx, query, since).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count failed orders")
	}

	return count, nil
}

// scanOrderFields returns scan destinations matching orderColumns order.
func scanOrderFields(order *orderDomain.Order) []interface{} {
	return []interface{}{
		&order.ID,
		&order.Status,
		&order.SourceRef,
		&order.TargetRef,
		&order.Quantity,
		&order.RetryCount,
		&order.MaxRetries,
		&order.LastErrorType,
		&order.FailureReason,
		&order.FailedPhase,
		&order.NextRetryAt,
		&order.LastRetryAt,
		&order.IsManuallyFailed,
		&order.OperatorNotes,
		&order.Version,
		&order.CreatedAt,
		&order.UpdatedAt,
	}
}

// collectOrders drains rows into a slice of orders.
func collectOrders(rows *sql.Rows) ([]*orderDomain.Order, error) {
	orders := make([]*orderDomain.Order, 0)
	for rows.Next() {
		var order orderDomain.Order
		if err := rows.Scan(scanOrderFields(&order)...); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan order")
		}
		orders = append(orders, &order)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate orders")
	}

	return orders, nil
}
