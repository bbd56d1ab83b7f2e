// Package domain defines the core order entities, status machine and
// retry metadata used by the processing pipeline.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle status of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusActive     Status = "active"
	StatusHolding    Status = "holding"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether no automatic work remains for the status.
// CANCELLED has no outgoing edges at all; COMPLETED can only be reopened
// to HOLDING for investigation.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled
}

// Valid reports whether the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusActive, StatusHolding, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Phase identifies a stage of the processing pipeline. An order that fails
// records the phase it failed in so a retry can resume from the right place.
type Phase string

const (
	PhaseValidation         Phase = "validation"
	PhaseVideoAnalysis      Phase = "video_analysis"
	PhaseClipCreation       Phase = "clip_creation"
	PhaseCampaignAssignment Phase = "campaign_assignment"
	PhaseActivation         Phase = "activation"
	PhaseMonitoring         Phase = "monitoring"
	PhaseRetryExecution     Phase = "retry_execution"
)

// RestartsFromTop reports whether a retry of this phase restarts the whole
// pipeline instead of resuming in place. Early phases have no partial work
// worth preserving.
func (p Phase) RestartsFromTop() bool {
	return p == PhaseValidation || p == PhaseVideoAnalysis
}

// ErrorType classifies a recorded failure. The classification decides the
// retry policy: transient errors are retried with backoff, validation
// errors go straight to holding, concurrency conflicts are retried with a
// short delay, permanent errors are dead-lettered.
type ErrorType string

const (
	ErrorTypeTransient       ErrorType = "TRANSIENT"
	ErrorTypeValidation      ErrorType = "VALIDATION"
	ErrorTypeConcurrency     ErrorType = "CONCURRENCY"
	ErrorTypePermanent       ErrorType = "PERMANENT"
	ErrorTypeRetryProcessing ErrorType = "RETRY_PROCESSING_ERROR"
)

// Order is the durable record of a processing work item. Fields other than
// operator notes are mutated only through the state machine and the error
// recovery engine so the transition table stays authoritative.
type Order struct {
	ID               uuid.UUID
	Status           Status
	SourceRef        string
	TargetRef        string
	Quantity         int
	RetryCount       int
	MaxRetries       int
	LastErrorType    *ErrorType
	FailureReason    *string
	FailedPhase      *Phase
	NextRetryAt      *time.Time
	LastRetryAt      *time.Time
	IsManuallyFailed bool
	OperatorNotes    *string
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// InDeadLetter reports whether the order sits in the dead-letter queue:
// either an operator pinned it out of automatic retry or retries are
// exhausted.
func (o *Order) InDeadLetter() bool {
	return o.IsManuallyFailed || o.RetryCount >= o.MaxRetries
}

// RetryEligible reports whether the automatic retry path may still schedule
// work for the order.
func (o *Order) RetryEligible() bool {
	return o.RetryCount < o.MaxRetries &&
		!o.IsManuallyFailed &&
		o.Status != StatusCancelled
}

// validTransitions is the authoritative edge table of the order state
// machine. Any pair not listed here is rejected.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled, StatusHolding},
	StatusProcessing: {StatusActive, StatusHolding, StatusCancelled},
	StatusActive:     {StatusCompleted, StatusHolding, StatusCancelled},
	StatusHolding:    {StatusProcessing, StatusCancelled},
	StatusCompleted:  {StatusHolding},
	StatusCancelled:  {},
}

// CanTransition reports whether the edge from -> to exists in the
// transition table.
func CanTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable from the given status.
func AllowedTransitions(from Status) []Status {
	allowed := validTransitions[from]
	out := make([]Status, len(allowed))
	copy(out, allowed)
	return out
}

// StateTransition is an append-only audit record of a successful status
// change, written in the same transaction as the change itself.
type StateTransition struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	FromStatus Status
	ToStatus   Status
	Reason     string
	CreatedAt  time.Time
}
