// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	orderDomain "github.com/allisson/orders/internal/order/domain"
	appvalidation "github.com/allisson/orders/internal/validation"
)

// CreateOrderRequest contains the parameters for creating a new order.
type CreateOrderRequest struct {
	SourceRef  string `json:"source_ref" binding:"required"`
	TargetRef  string `json:"target_ref" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required"`
	MaxRetries int    `json:"max_retries"`
}

// Validate checks if the create order request is valid.
func (r *CreateOrderRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.SourceRef, validation.Required, appvalidation.NotBlank, appvalidation.NoWhitespace),
		validation.Field(&r.TargetRef, validation.Required, appvalidation.NotBlank, appvalidation.NoWhitespace),
		validation.Field(&r.Quantity, validation.Required, validation.Min(1)),
		validation.Field(&r.MaxRetries, validation.Min(0)),
	)
}

// TransitionOrderRequest contains the parameters for a manual status change.
type TransitionOrderRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// Validate checks if the transition request names a known status.
func (r *TransitionOrderRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Status,
			validation.Required,
			validation.By(func(value interface{}) error {
				s, _ := value.(string)
				if !orderDomain.Status(s).Valid() {
					return validation.NewError("validation_invalid_status", "must be a known order status")
				}
				return nil
			}),
		),
		validation.Field(&r.Reason, validation.Length(0, 500)),
	)
}

// ManualRetryRequest contains the parameters for an operator-driven retry.
type ManualRetryRequest struct {
	Notes      string `json:"notes"`
	ResetCount bool   `json:"reset_count"`
}

// Validate checks if the manual retry request is valid.
func (r *ManualRetryRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Notes, validation.Length(0, 1000)),
	)
}

// RequeueRequest contains the parameters for requeueing a dead-lettered order.
type RequeueRequest struct {
	Notes string `json:"notes"`
}

// Validate checks if the requeue request is valid.
func (r *RequeueRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Notes, validation.Length(0, 1000)),
	)
}

// PurgeRequest contains the parameters for purging a dead-lettered order.
type PurgeRequest struct {
	Reason string `json:"reason"`
}

// Validate checks if the purge request is valid.
func (r *PurgeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Reason, validation.Length(0, 500)),
	)
}
