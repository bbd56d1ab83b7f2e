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

// MySQLOrderRepository implements Order persistence for MySQL.
// UUIDs are stored as BINARY(16).
type MySQLOrderRepository struct {
	db *sql.DB
}

// NewMySQLOrderRepository creates a new MySQL Order repository instance.
func NewMySQLOrderRepository(db *sql.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db}
}

// Create inserts a new order into the MySQL database.
func (m *MySQLOrderRepository) Create(ctx context.Context, order *orderDomain.Order) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO orders (` + orderColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	// Convert UUID to bytes for MySQL BINARY(16)
	idBytes, err := order.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal order id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		idBytes,
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
func (m *MySQLOrderRepository) GetByID(
	ctx context.Context,
	orderID uuid.UUID,
) (*orderDomain.Order, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + orderColumns + `
			  FROM orders
			  WHERE id = ?
			  LIMIT 1`

	idBytes, err := orderID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal order id")
	}

	var order orderDomain.Order
	var scannedID []byte
	err = querier.QueryRowContext(ctx, query, idBytes).Scan(scanMySQLOrderFields(&order, &scannedID)...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, orderDomain.ErrOrderNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get order by id")
	}

	if err := order.ID.UnmarshalBinary(scannedID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal order id")
	}

	return &order, nil
}

// Update persists the order using optimistic locking on the version column.
// A version mismatch or a missing row returns ErrConcurrentModification.
func (m *MySQLOrderRepository) Update(ctx context.Context, order *orderDomain.Order) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE orders
			  SET status = ?, source_ref = ?, target_ref = ?, quantity = ?, retry_count = ?,
			      max_retries = ?, last_error_type = ?, failure_reason = ?, failed_phase = ?,
			      next_retry_at = ?, last_retry_at = ?, is_manually_failed = ?,
			      operator_notes = ?, version = version + 1, updated_at = ?
			  WHERE id = ? AND version = ?`

	idBytes, err := order.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal order id")
	}

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
		idBytes,
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
// arrived, oldest schedule first, locked with SKIP LOCKED.
func (m *MySQLOrderRepository) ListDueForRetry(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*orderDomain.Order, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + orderColumns + `
			  FROM orders
			  WHERE status = ?
			    AND is_manually_failed = FALSE
			    AND retry_count < max_retries
			    AND next_retry_at IS NOT NULL
			    AND next_retry_at <= ?
			  ORDER BY next_retry_at ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, orderDomain.StatusHolding, now, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list due retries")
	}
	defer func() {
		_ = rows.Close()
	}()

	return collectMySQLOrders(rows)
}

// ListDeadLetter retrieves dead-lettered orders with pagination, newest
// first, optionally narrowed by failure classification.
func (m *MySQLOrderRepository) ListDeadLetter(
	ctx context.Context,
	errorType *orderDomain.ErrorType,
	offset, limit int,
) ([]*orderDomain.Order, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + orderColumns + `
			  FROM orders
			  WHERE status = ?
			    AND (is_manually_failed = TRUE OR retry_count >= max_retries)
			    AND (? IS NULL OR last_error_type = ?)
			  ORDER BY updated_at DESC
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(
		ctx,
		query,
		orderDomain.StatusHolding,
		errorType,
		errorType,
		limit,
		offset,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list dead letter orders")
	}
	defer func() {
		_ = rows.Close()
	}()

	return collectMySQLOrders(rows)
}

// CountDeadLetter counts dead-lettered orders, optionally narrowed by
// failure classification.
func (m *MySQLOrderRepository) CountDeadLetter(
	ctx context.Context,
	errorType *orderDomain.ErrorType,
) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT COUNT(*)
			  FROM orders
			  WHERE status = ?
			    AND (is_manually_failed = TRUE OR retry_count >= max_retries)
			    AND (? IS NULL OR last_error_type = ?)`

	var count int64
	err := querier.QueryRowContext(ctx, query, orderDomain.StatusHolding, errorType, errorType).
		Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count dead letter orders")
	}

	return count, nil
}

// CountDeadLetterByErrorType returns dead-letter counts grouped by failure
// classification.
func (m *MySQLOrderRepository) CountDeadLetterByErrorType(
	ctx context.Context,
) (map[orderDomain.ErrorType]int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT COALESCE(last_error_type, ''), COUNT(*)
			  FROM orders
			  WHERE status = ?
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
// the cutoff, for the retention sweep.
func (m *MySQLOrderRepository) ListDeadLetterBefore(
	ctx context.Context,
	cutoff time.Time,
	limit int,
) ([]*orderDomain.Order, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + orderColumns + `
			  FROM orders
			  WHERE status = ?
			    AND (is_manually_failed = TRUE OR retry_count >= max_retries)
			    AND updated_at < ?
			  ORDER BY updated_at ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, orderDomain.StatusHolding, cutoff, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list expired dead letter orders")
	}
	defer func() {
		_ = rows.Close()
	}()

	return collectMySQLOrders(rows)
}

// CountByStatus returns order counts grouped by status.
func (m *MySQLOrderRepository) CountByStatus(
	ctx context.Context,
) (map[orderDomain.Status]int64, error) {
	querier := database.GetTx(ctx, m.db)

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
func (m *MySQLOrderRepository) CountScheduledRetries(ctx context.Context) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT COUNT(*)
			  FROM orders
			  WHERE status = ?
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
func (m *MySQLOrderRepository) CountFailedSince(
	ctx context.Context,
	since time.Time,
) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT COUNT(*)
			  FROM orders
			  WHERE last_error_type IS NOT NULL
			    AND updated_at >= ?`

	var count int64
	if err := querier.QueryRowContext(ctx, query, since).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count failed orders")
	}

	return count, nil
}

// scanMySQLOrderFields returns scan destinations matching orderColumns
// order, with the BINARY(16) id captured into idBytes.
func scanMySQLOrderFields(order *orderDomain.Order, idBytes *[]byte) []interface{} {
	return []interface{}{
		idBytes,
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

// collectMySQLOrders drains rows into a slice of orders, decoding
// BINARY(16) ids.
func collectMySQLOrders(rows *sql.Rows) ([]*orderDomain.Order, error) {
	orders := make([]*orderDomain.Order, 0)
	for rows.Next() {
		var order orderDomain.Order
		var idBytes []byte
		if err := rows.Scan(scanMySQLOrderFields(&order, &idBytes)...); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan order")
		}
		if err := order.ID.UnmarshalBinary(idBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal order id")
		}
		orders = append(orders, &order)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate orders")
	}

	return orders, nil
}
