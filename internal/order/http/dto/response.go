// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"time"

	"github.com/allisson/orders/internal/dlq"
	orderDomain "github.com/allisson/orders/internal/order/domain"
	orderUsecase "github.com/allisson/orders/internal/order/usecase"
	outboxDomain "github.com/allisson/orders/internal/outbox/domain"
)

// OrderResponse represents an order in API responses.
type OrderResponse struct {
	ID               string     `json:"id"`
	Status           string     `json:"status"`
	SourceRef        string     `json:"source_ref"`
	TargetRef        string     `json:"target_ref"`
	Quantity         int        `json:"quantity"`
	RetryCount       int        `json:"retry_count"`
	MaxRetries       int        `json:"max_retries"`
	LastErrorType    *string    `json:"last_error_type,omitempty"`
	FailureReason    *string    `json:"failure_reason,omitempty"`
	FailedPhase      *string    `json:"failed_phase,omitempty"`
	NextRetryAt      *time.Time `json:"next_retry_at,omitempty"`
	LastRetryAt      *time.Time `json:"last_retry_at,omitempty"`
	IsManuallyFailed bool       `json:"is_manually_failed"`
	OperatorNotes    *string    `json:"operator_notes,omitempty"`
	Version          int64      `json:"version"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// MapOrderToResponse converts a domain order to an API response.
func MapOrderToResponse(order *orderDomain.Order) OrderResponse {
	response := OrderResponse{
		ID:               order.ID.String(),
		Status:           string(order.Status),
		SourceRef:        order.SourceRef,
		TargetRef:        order.TargetRef,
		Quantity:         order.Quantity,
		RetryCount:       order.RetryCount,
		MaxRetries:       order.MaxRetries,
		FailureReason:    order.FailureReason,
		NextRetryAt:      order.NextRetryAt,
		LastRetryAt:      order.LastRetryAt,
		IsManuallyFailed: order.IsManuallyFailed,
		OperatorNotes:    order.OperatorNotes,
		Version:          order.Version,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}

	if order.LastErrorType != nil {
		errorType := string(*order.LastErrorType)
		response.LastErrorType = &errorType
	}

	if order.FailedPhase != nil {
		phase := string(*order.FailedPhase)
		response.FailedPhase = &phase
	}

	return response
}

// TransitionResponse represents one audit record of a status change.
type TransitionResponse struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"order_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// HistoryResponse represents the transition history of an order.
type HistoryResponse struct {
	Data []TransitionResponse `json:"data"`
}

// MapTransitionsToHistoryResponse converts audit records to an API response.
func MapTransitionsToHistoryResponse(transitions []*orderDomain.StateTransition) HistoryResponse {
	data := make([]TransitionResponse, 0, len(transitions))
	for _, transition := range transitions {
		data = append(data, TransitionResponse{
			ID:         transition.ID.String(),
			OrderID:    transition.OrderID.String(),
			FromStatus: string(transition.FromStatus),
			ToStatus:   string(transition.ToStatus),
			Reason:     transition.Reason,
			CreatedAt:  transition.CreatedAt,
		})
	}

	return HistoryResponse{Data: data}
}

// ProcessingEntryResponse represents one in-flight order.
type ProcessingEntryResponse struct {
	OrderID   string    `json:"order_id"`
	Phase     string    `json:"phase"`
	Details   string    `json:"details,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProcessingListResponse represents the set of in-flight orders.
type ProcessingListResponse struct {
	Data []ProcessingEntryResponse `json:"data"`
}

// MapProcessingEntriesToResponse converts registry entries to an API response.
func MapProcessingEntriesToResponse(entries []orderUsecase.ProcessingEntry) ProcessingListResponse {
	data := make([]ProcessingEntryResponse, 0, len(entries))
	for _, entry := range entries {
		data = append(data, ProcessingEntryResponse{
			OrderID:   entry.OrderID.String(),
			Phase:     string(entry.Phase),
			Details:   entry.Details,
			StartedAt: entry.StartedAt,
			UpdatedAt: entry.UpdatedAt,
		})
	}

	return ProcessingListResponse{Data: data}
}

// DeadLetterListResponse represents a page of dead-lettered orders.
type DeadLetterListResponse struct {
	Data   []OrderResponse `json:"data"`
	Total  int64           `json:"total"`
	Offset int             `json:"offset"`
	Limit  int             `json:"limit"`
}

// MapPageToDeadLetterListResponse converts a dead letter page to an API response.
func MapPageToDeadLetterListResponse(page *dlq.Page) DeadLetterListResponse {
	data := make([]OrderResponse, 0, len(page.Orders))
	for _, order := range page.Orders {
		data = append(data, MapOrderToResponse(order))
	}

	return DeadLetterListResponse{
		Data:   data,
		Total:  page.Total,
		Offset: page.Offset,
		Limit:  page.Limit,
	}
}

// DeadLetterStatsResponse represents the dead letter queue aggregates.
type DeadLetterStatsResponse struct {
	Total       int64            `json:"total"`
	ByErrorType map[string]int64 `json:"by_error_type"`
}

// MapStatsToDeadLetterStatsResponse converts dead letter stats to an API response.
func MapStatsToDeadLetterStatsResponse(stats *dlq.Stats) DeadLetterStatsResponse {
	byErrorType := make(map[string]int64, len(stats.ByErrorType))
	for errorType, count := range stats.ByErrorType {
		byErrorType[string(errorType)] = count
	}

	return DeadLetterStatsResponse{
		Total:       stats.Total,
		ByErrorType: byErrorType,
	}
}

// RecoveryStatsResponse represents the recovery engine aggregates.
type RecoveryStatsResponse struct {
	ByStatus              map[string]int64 `json:"by_status"`
	ScheduledRetries      int64            `json:"scheduled_retries"`
	DeadLetter            int64            `json:"dead_letter"`
	DeadLetterByErrorType map[string]int64 `json:"dead_letter_by_error_type"`
	FailedLast24h         int64            `json:"failed_last_24h"`
	FailedLast7d          int64            `json:"failed_last_7d"`
}

// MapStatsToRecoveryStatsResponse converts recovery stats to an API response.
func MapStatsToRecoveryStatsResponse(stats *orderUsecase.RecoveryStats) RecoveryStatsResponse {
	byStatus := make(map[string]int64, len(stats.ByStatus))
	for status, count := range stats.ByStatus {
		byStatus[string(status)] = count
	}

	byErrorType := make(map[string]int64, len(stats.DeadLetterByErrorType))
	for errorType, count := range stats.DeadLetterByErrorType {
		byErrorType[string(errorType)] = count
	}

	return RecoveryStatsResponse{
		ByStatus:              byStatus,
		ScheduledRetries:      stats.ScheduledRetries,
		DeadLetter:            stats.DeadLetter,
		DeadLetterByErrorType: byErrorType,
		FailedLast24h:         stats.FailedLast24h,
		FailedLast7d:          stats.FailedLast7d,
	}
}

// OutboxStatsResponse represents the outbox delivery aggregates.
type OutboxStatsResponse struct {
	Pending   int64 `json:"pending"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// MapStatsToOutboxStatsResponse converts outbox stats to an API response.
func MapStatsToOutboxStatsResponse(stats *outboxDomain.Stats) OutboxStatsResponse {
	return OutboxStatsResponse{
		Pending:   stats.Pending,
		Processed: stats.Processed,
		Failed:    stats.Failed,
	}
}
