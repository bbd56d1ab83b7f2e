// Package repository provides data persistence implementations for outbox entities.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/allisson/orders/internal/database"
	"github.com/allisson/orders/internal/outbox/domain"
)

const outboxColumns = `id, aggregate_type, aggregate_id, event_type, topic, partition_key, payload,
	headers, status, retries, last_error, next_retry_at, processed_at, created_at, updated_at`

// PostgreSQLOutboxEventRepository handles outbox event persistence for PostgreSQL
type PostgreSQLOutboxEventRepository struct {
	db *sql.DB
}

// NewPostgreSQLOutboxEventRepository creates a new PostgreSQLOutboxEventRepository
func NewPostgreSQLOutboxEventRepository(db *sql.DB) *PostgreSQLOutboxEventRepository {
	return &PostgreSQLOutboxEventRepository{
		db: db,
	}
}

// Create inserts a new outbox event
func (r *PostgreSQLOutboxEventRepository) Create(ctx context.Context, event *domain.OutboxEvent) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO outbox_events (` + outboxColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())`

	_, err := querier.ExecContext(ctx, query, event.ID, event.AggregateType, event.AggregateID,
		event.EventType, event.Topic, event.PartitionKey, event.Payload, event.Headers,
		event.Status, event.Retries, event.LastError, event.NextRetryAt, event.ProcessedAt)

	return err
}

// GetDueEvents retrieves pending events whose retry schedule has arrived,
// oldest first, locked with SKIP LOCKED so concurrent sweeps never deliver
// the same event twice.
func (r *PostgreSQLOutboxEventRepository) GetDueEvents(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + outboxColumns + `
			  FROM outbox_events
			  WHERE status = $1
			    AND (next_retry_at IS NULL OR next_retry_at <= $2)
			  ORDER BY created_at ASC
			  LIMIT $3
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, domain.OutboxEventStatusPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var events []*domain.OutboxEvent
	for rows.Next() {
		var event domain.OutboxEvent

		err := rows.Scan(&event.ID, &event.AggregateType, &event.AggregateID, &event.EventType,
			&event.Topic, &event.PartitionKey, &event.Payload, &event.Headers, &event.Status,
			&event.Retries, &event.LastError, &event.NextRetryAt, &event.ProcessedAt,
			&event.CreatedAt, &event.UpdatedAt)
		if err != nil {
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
func (r *PostgreSQLOutboxEventRepository) Update(ctx context.Context, event *domain.OutboxEvent) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = $1, retries = $2, last_error = $3, next_retry_at = $4,
			      processed_at = $5, updated_at = NOW()
			  WHERE id = $6`

	_, err := querier.ExecContext(ctx, query, event.Status, event.Retries, event.LastError,
		event.NextRetryAt, event.ProcessedAt, event.ID)

	return err
}

// DeleteProcessedBefore removes processed events older than the cutoff and
// returns the number of deleted rows.
func (r *PostgreSQLOutboxEventRepository) DeleteProcessedBefore(
	ctx context.Context,
	cutoff time.Time,
) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM outbox_events
			  WHERE status = $1 AND processed_at < $2`

	result, err := querier.ExecContext(ctx, query, domain.OutboxEventStatusProcessed, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// Stats returns event counts per status.
func (r *PostgreSQLOutboxEventRepository) Stats(ctx context.Context) (*domain.Stats, error) {
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
