// Package domain defines the core outbox domain entities and types.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxEventStatus represents the status of an outbox event
type OutboxEventStatus string

const (
	OutboxEventStatusPending   OutboxEventStatus = "pending"
	OutboxEventStatusProcessed OutboxEventStatus = "processed"
	OutboxEventStatusFailed    OutboxEventStatus = "failed"
)

// Headers carries opaque key/value metadata the caller wants delivered
// with the event. Persisted as a JSON column; an empty set stores as NULL.
type Headers map[string]string

// Value implements driver.Valuer.
func (h Headers) Value() (driver.Value, error) {
	if len(h) == 0 {
		return nil, nil
	}
	return json.Marshal(h)
}

// Scan implements sql.Scanner.
func (h *Headers) Scan(src interface{}) error {
	if src == nil {
		*h = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, h)
	case string:
		return json.Unmarshal([]byte(v), h)
	default:
		return fmt.Errorf("unsupported headers source type %T", src)
	}
}

// OutboxEvent represents an event in the transactional outbox pattern.
// Events are written in the same transaction as the state change they
// describe and delivered to the message bus by a background sweep.
type OutboxEvent struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Topic         string
	PartitionKey  string
	Payload       string
	Headers       Headers
	Status        OutboxEventStatus
	Retries       int
	LastError     *string
	NextRetryAt   *time.Time
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOutboxEvent creates a pending event for the given aggregate. The
// headers are delivered to the bus alongside the payload and may be nil.
func NewOutboxEvent(aggregateType string, aggregateID uuid.UUID, eventType, topic, partitionKey, payload string, headers Headers) *OutboxEvent {
	now := time.Now().UTC()
	return &OutboxEvent{
		ID:            uuid.Must(uuid.NewV7()),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Topic:         topic,
		PartitionKey:  partitionKey,
		Payload:       payload,
		Headers:       headers,
		Status:        OutboxEventStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// DeliveryBackoff returns the delay before the next delivery attempt after
// the given number of failed attempts: 2^attempts minutes capped at an
// hour.
func DeliveryBackoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	minutes := int64(1) << uint(attempts)
	if minutes > 60 {
		minutes = 60
	}
	return time.Duration(minutes) * time.Minute
}

// Stats summarizes outbox delivery health.
type Stats struct {
	Pending   int64
	Processed int64
	Failed    int64
}
