package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/orders/internal/database"
	apperrors "github.com/allisson/orders/internal/errors"
	orderDomain "github.com/allisson/orders/internal/order/domain"
)

// MySQLTransitionRepository implements StateTransition persistence for
// MySQL. UUIDs are stored as BINARY(16).
type MySQLTransitionRepository struct {
	db *sql.DB
}

// NewMySQLTransitionRepository creates a new MySQL StateTransition repository.
func NewMySQLTransitionRepository(db *sql.DB) *MySQLTransitionRepository {
	return &MySQLTransitionRepository{db: db}
}

// Create inserts a new state transition audit record.
func (m *MySQLTransitionRepository) Create(
	ctx context.Context,
	transition *orderDomain.StateTransition,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO order_transitions (id, order_id, from_status, to_status, reason, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)`

	idBytes, err := transition.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal transition id")
	}

	orderIDBytes, err := transition.OrderID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal order id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		idBytes,
		orderIDBytes,
		transition.FromStatus,
		transition.ToStatus,
		transition.Reason,
		transition.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create state transition")
	}

	return nil
}

// ListByOrder retrieves the transition history of an order, oldest first.
func (m *MySQLTransitionRepository) ListByOrder(
	ctx context.Context,
	orderID uuid.UUID,
) ([]*orderDomain.StateTransition, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, order_id, from_status, to_status, reason, created_at
			  FROM order_transitions
			  WHERE order_id = ?
			  ORDER BY created_at ASC`

	orderIDBytes, err := orderID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal order id")
	}

	rows, err := querier.QueryContext(ctx, query, orderIDBytes)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list state transitions")
	}
	defer func() {
		_ = rows.Close()
	}()

	transitions := make([]*orderDomain.StateTransition, 0)
	for rows.Next() {
		var transition orderDomain.StateTransition
		var idBytes, scannedOrderID []byte
		err := rows.Scan(
			&idBytes,
			&scannedOrderID,
			&transition.FromStatus,
			&transition.ToStatus,
			&transition.Reason,
			&transition.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan state transition")
		}
		if err := transition.ID.UnmarshalBinary(idBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal transition id")
		}
		if err := transition.OrderID.UnmarshalBinary(scannedOrderID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal order id")
		}
		transitions = append(transitions, &transition)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate state transitions")
	}

	return transitions, nil
}
