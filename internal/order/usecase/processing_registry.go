package usecase

import (
	"sync"
	"time"

	"github.com/google/uuid"

	orderDomain "github.com/allisson/orders/internal/order/domain"
)

// ProcessingEntry is an in-memory record of an order currently being
// worked on by this instance.
type ProcessingEntry struct {
	OrderID   uuid.UUID
	Phase     orderDomain.Phase
	Details   string
	StartedAt time.Time
	UpdatedAt time.Time
}

// ProcessingRegistry tracks orders in flight on this instance. The stale
// sweep uses it to find orders whose worker died mid-pipeline without
// recording a failure.
type ProcessingRegistry struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*ProcessingEntry
	nowFn   func() time.Time
}

// NewProcessingRegistry creates an empty registry.
func NewProcessingRegistry() *ProcessingRegistry {
	return &ProcessingRegistry{
		entries: make(map[uuid.UUID]*ProcessingEntry),
		nowFn:   time.Now,
	}
}

// Register starts tracking an order. Registering an order that is already
// tracked resets its entry.
func (r *ProcessingRegistry) Register(orderID uuid.UUID, phase orderDomain.Phase) {
	now := r.nowFn().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[orderID] = &ProcessingEntry{
		OrderID:   orderID,
		Phase:     phase,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Touch records pipeline progress for a tracked order. Untracked orders
// are ignored.
func (r *ProcessingRegistry) Touch(orderID uuid.UUID, phase orderDomain.Phase, details string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[orderID]
	if !ok {
		return
	}
	entry.Phase = phase
	entry.Details = details
	entry.UpdatedAt = r.nowFn().UTC()
}

// Remove stops tracking an order.
func (r *ProcessingRegistry) Remove(orderID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, orderID)
}

// Snapshot returns a copy of all tracked entries.
func (r *ProcessingRegistry) Snapshot() []ProcessingEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ProcessingEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, *entry)
	}
	return out
}

// StaleBefore returns the ids of tracked orders with no progress since
// the cutoff.
func (r *ProcessingRegistry) StaleBefore(cutoff time.Time) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []uuid.UUID
	for id, entry := range r.entries {
		if entry.UpdatedAt.Before(cutoff) {
			out = append(out, id)
		}
	}
	return out
}

// Len returns the number of tracked orders.
func (r *ProcessingRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}
