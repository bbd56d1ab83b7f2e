package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/orders/internal/database"
	apperrors "github.com/allisson/orders/internal/errors"
	orderDomain "github.com/allisson/orders/internal/order/domain"
)

// PostgreSQLTransitionRepository implements StateTransition persistence for
// PostgreSQL. Transitions are append-only audit rows.
type PostgreSQLTransitionRepository struct {
	db *sql.DB
}

// NewPostgreSQLTransitionRepository creates a new PostgreSQL StateTransition repository.
func NewPostgreSQLTransitionRepository(db *sql.DB) *PostgreSQLTransitionRepository {
	return &PostgreSQLTransitionRepository{db: db}
}

// Create inserts a new state transition audit record.
func (p *PostgreSQLTransitionRepository) Create(
	ctx context.Context,
	transition *orderDomain.StateTransition,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO order_transitions (id, order_id, from_status, to_status, reason, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := querier.ExecContext(
		ctx,
		query,
		transition.ID,
		transition.OrderID,
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
func (p *PostgreSQLTransitionRepository) ListByOrder(
	ctx context.Context,
	orderID uuid.UUID,
) ([]*orderDomain.StateTransition, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, order_id, from_status, to_status, reason, created_at
			  FROM order_transitions
			  WHERE order_id = $1
			  ORDER BY created_at ASC`

	rows, err := querier.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list state transitions")
	}
	defer func() {
		_ = rows.Close()
	}()

	transitions := make([]*orderDomain.StateTransition, 0)
	for rows.Next() {
		var transition orderDomain.StateTransition
		err := rows.Scan(
			&transition.ID,
			&transition.OrderID,
			&transition.FromStatus,
			&transition.ToStatus,
			&transition.Reason,
			&transition.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan state transition")
		}
		transitions = append(transitions, &transition)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate state transitions")
	}

	return transitions, nil
}
