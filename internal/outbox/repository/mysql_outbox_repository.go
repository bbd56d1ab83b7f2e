package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/allisson/orders/internal/database"
	"github.com/allisson/orders/internal/outbox/domain"
)

// MySQLOutboxEventRepository handles outbox event persistence for MySQL
type MySQLOutboxEventRepository struct {
	db *sql.DB
}

// NewMySQLOutboxEventRepository creates a new MySQLOutboxEventRepository
func NewMySQLOutboxEventRepository(db *sql.DB) *MySQLOutboxEventRepository {
	return &MySQLOutboxEventRepository{
		db: db,
	}
}

// Create inserts a new outbox event
func (r *MySQLOutboxEventRepository) Create(ctx context.Context, event *domain.OutboxEvent) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO outbox_events (` + outboxColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(6), NOW(6))`

	// Convert UUIDs to bytes for MySQL BINARY(16)
	idBytes, err := event.ID.MarshalBinary()
	if err != nil {
		return err
	}

	aggregateIDBytes, err := event.AggregateID.MarshalBinary()
	if err != nil {
		return err
	}

	_, err = querier.ExecContext(ctx, query, idBytes, event.AggregateType, aggregateIDBytes,
		event.EventType, event.Topic, event.PartitionKey, event.Payload, event.Headers,
		event.Status, event.Retries, event.LastError, event.NextRetryAt, event.ProcessedAt)

	return err
}

// GetDueEvents retrieves pending events whose retry schedule has arrived,
// oldest first, locked with SKIP LOCKED.
func (r *MySQLOutboxEventRepository) GetDueEvents(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + outboxColumns + `
			  FROM outbox_events
			  WHERE status = ?
			    AND (next_retry_at IS NULL OR next_retry_at <= ?)
			  ORDER BY created_at ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, domain.OutboxEventStatusPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var events []*domain.OutboxEvent
	for rows.Next() {
		var event domain.OutboxEvent
		var idBytes, aggregateIDBytes []byte

		err := rows.Scan(&idBytes, &event.AggregateType, &aggregateIDBytes, &event.EventType,
			&event.Topic, &event.PartitionKey, &event.Payload, &event.Headers, &event.Status,
			&event.Retries, &event.LastError, &event.NextRetryAt, &event.ProcessedAt,
			&event.CreatedAt, &event.UpdatedAt)
		if err != nil {
			return nil, err
		}

		// Convert bytes back to UUIDs
		if err := event.ID.UnmarshalBinary(idBytes); err != nil {
			return nil, err
		}
		if err := event.AggregateID.UnmarshalBinary(aggregateIDBytes); err != nil {
			return nil, err
		}

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// Update updates an outbox event
func (r *MySQLOutboxEventRepository) Update(ctx context.Context, event *domain.OutboxEvent) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = ?, retries = ?, last_error = ?, next_retry_at = ?,
			      processed_at = ?, updated_at = NOW(6)
			  WHERE id = ?`

	// Convert UUID to bytes for MySQL BINARY(16)
	idBytes, err := event.ID.MarshalBinary()
	if err != nil {
		return err
	}

	_, err = querier.ExecContext(ctx, query, event.Status, event.Retries, event.LastError,
		event.NextRetryAt, event.ProcessedAt, idBytes)

	return err
}

// DeleteProcessedBefore removes processed events older than the cutoff and
// returns the number of deleted rows.
func (r *MySQLOutboxEventRepository) DeleteProcessedBefore(
	ctx context.Context,
	cutoff time.Time,
) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM outbox_events
			  WHERE status = ? AND processed_at < ?`

	result, err := querier.ExecContext(ctx, query, domain.OutboxEventStatusProcessed, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// Stats returns event counts per status.
func (r *MySQLOutboxEventRepository) Stats(ctx context.Context) (*domain.Stats, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT status, COUNT(*) FROM outbox_events GROUP BY status`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var stats domain.Stats
	for rows.Next() {
		var status domain.OutboxEventStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}

		switch status {
		case domain.OutboxEventStatusPending:
			stats.Pending = count
		case domain.OutboxEventStatusProcessed:
			stats.Processed = count
		case domain.OutboxEventStatusFailed:
			stats.Failed = count
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &stats, nil
}
