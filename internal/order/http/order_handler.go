// Package http provides HTTP handlers for order lifecycle and recovery
// operations.
package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/orders/internal/httputil"
	orderDomain "github.com/allisson/orders/internal/order/domain"
	"github.com/allisson/orders/internal/order/http/dto"
	orderUsecase "github.com/allisson/orders/internal/order/usecase"
	customValidation "github.com/allisson/orders/internal/validation"
)

// OrderHandler handles HTTP requests for order lifecycle operations.
type OrderHandler struct {
	stateUseCase    orderUsecase.StateUseCase
	recoveryUseCase orderUsecase.RecoveryUseCase
	logger          *slog.Logger
}

// NewOrderHandler creates a new order handler with required dependencies.
func NewOrderHandler(
	stateUseCase orderUsecase.StateUseCase,
	recoveryUseCase orderUsecase.RecoveryUseCase,
	logger *slog.Logger,
) *OrderHandler {
	return &OrderHandler{
		stateUseCase:    stateUseCase,
		recoveryUseCase: recoveryUseCase,
		logger:          logger,
	}
}

// RegisterRoutes registers the order routes on the given router group.
func (h *OrderHandler) RegisterRoutes(router gin.IRouter) {
	orders := router.Group("/orders")
	orders.POST("", h.CreateHandler)
	orders.GET("/processing", h.ProcessingHandler)
	orders.GET("/:id", h.GetHandler)
	orders.GET("/:id/history", h.HistoryHandler)
	orders.POST("/:id/transition", h.TransitionHandler)
	orders.POST("/:id/retry", h.RetryHandler)
}

// CreateHandler creates a new order in PENDING status.
// POST /v1/orders
// Returns 201 Created with the order representation.
func (h *OrderHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateOrderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	order, err := h.stateUseCase.Create(c.Request.Context(), &orderUsecase.CreateOrderInput{
		SourceRef:  req.SourceRef,
		TargetRef:  req.TargetRef,
		Quantity:   req.Quantity,
		MaxRetries: req.MaxRetries,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapOrderToResponse(order))
}

// GetHandler retrieves an order by id.
// GET /v1/orders/:id
func (h *OrderHandler) GetHandler(c *gin.Context) {
	id, ok := h.parseOrderID(c)
	if !ok {
		return
	}

	order, err := h.stateUseCase.Get(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapOrderToResponse(order))
}

// HistoryHandler returns the status transition audit trail of an order.
// GET /v1/orders/:id/history
func (h *OrderHandler) HistoryHandler(c *gin.Context) {
	id, ok := h.parseOrderID(c)
	if !ok {
		return
	}

	transitions, err := h.stateUseCase.History(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapTransitionsToHistoryResponse(transitions))
}

// TransitionHandler applies a manual status change to an order.
// POST /v1/orders/:id/transition
// Rejected with 422 when the edge is not in the transition table.
func (h *OrderHandler) TransitionHandler(c *gin.Context) {
	id, ok := h.parseOrderID(c)
	if !ok {
		return
	}

	var req dto.TransitionOrderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	order, err := h.stateUseCase.Transition(
		c.Request.Context(),
		id,
		orderDomain.Status(req.Status),
		req.Reason,
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapOrderToResponse(order))
}

// RetryHandler schedules an operator-driven retry for a held order.
// POST /v1/orders/:id/retry
// Returns 422 when the order status does not allow a retry.
func (h *OrderHandler) RetryHandler(c *gin.Context) {
	id, ok := h.parseOrderID(c)
	if !ok {
		return
	}

	var req dto.ManualRetryRequest

	// Empty body means default options.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	order, err := h.recoveryUseCase.ManualRetry(c.Request.Context(), id, req.Notes, req.ResetCount)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapOrderToResponse(order))
}

// ProcessingHandler lists the orders currently tracked as in-flight.
// GET /v1/orders/processing
func (h *OrderHandler) ProcessingHandler(c *gin.Context) {
	entries := h.stateUseCase.ActiveProcessing()
	c.JSON(http.StatusOK, dto.MapProcessingEntriesToResponse(entries))
}

// parseOrderID extracts and validates the order id path parameter. It writes
// the error response itself when the id is malformed.
func (h *OrderHandler) parseOrderID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(
			c,
			fmt.Errorf("invalid order id: %w", err),
			h.logger,
		)
		return uuid.Nil, false
	}

	return id, true
}
