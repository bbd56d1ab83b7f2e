package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/orders/internal/dlq"
	"github.com/allisson/orders/internal/httputil"
	orderDomain "github.com/allisson/orders/internal/order/domain"
	"github.com/allisson/orders/internal/order/http/dto"
	orderUsecase "github.com/allisson/orders/internal/order/usecase"
	outboxUsecase "github.com/allisson/orders/internal/outbox/usecase"
	customValidation "github.com/allisson/orders/internal/validation"
)

// knownErrorTypes is the set of accepted error_type filter values.
var knownErrorTypes = map[orderDomain.ErrorType]bool{
	orderDomain.ErrorTypeTransient:       true,
	orderDomain.ErrorTypeValidation:      true,
	orderDomain.ErrorTypeConcurrency:     true,
	orderDomain.ErrorTypePermanent:       true,
	orderDomain.ErrorTypeRetryProcessing: true,
}

// RecoveryHandler handles HTTP requests for the dead letter queue and the
// recovery and outbox statistics endpoints.
type RecoveryHandler struct {
	dlqUseCase      dlq.UseCase
	recoveryUseCase orderUsecase.RecoveryUseCase
	outboxUseCase   outboxUsecase.UseCase
	logger          *slog.Logger
}

// NewRecoveryHandler creates a new recovery handler with required dependencies.
func NewRecoveryHandler(
	dlqUseCase dlq.UseCase,
	recoveryUseCase orderUsecase.RecoveryUseCase,
	outboxUseCase outboxUsecase.UseCase,
	logger *slog.Logger,
) *RecoveryHandler {
	return &RecoveryHandler{
		dlqUseCase:      dlqUseCase,
		recoveryUseCase: recoveryUseCase,
		outboxUseCase:   outboxUseCase,
		logger:          logger,
	}
}

// RegisterRoutes registers the dead letter and stats routes on the given
// router group.
func (h *RecoveryHandler) RegisterRoutes(router gin.IRouter) {
	deadLetter := router.Group("/dead-letter")
	deadLetter.GET("", h.ListDeadLetterHandler)
	deadLetter.GET("/stats", h.DeadLetterStatsHandler)
	deadLetter.POST("/:id/requeue", h.RequeueHandler)
	deadLetter.POST("/:id/purge", h.PurgeHandler)

	router.GET("/recovery/stats", h.RecoveryStatsHandler)
	router.GET("/outbox/stats", h.OutboxStatsHandler)
}

// ListDeadLetterHandler lists dead-lettered orders with pagination.
// GET /v1/dead-letter?error_type=TRANSIENT&offset=0&limit=50
func (h *RecoveryHandler) ListDeadLetterHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	var errorType *orderDomain.ErrorType
	if raw := c.Query("error_type"); raw != "" {
		candidate := orderDomain.ErrorType(raw)
		if !knownErrorTypes[candidate] {
			httputil.HandleValidationErrorGin(
				c,
				fmt.Errorf("unknown error_type %q", raw),
				h.logger,
			)
			return
		}
		errorType = &candidate
	}

	page, err := h.dlqUseCase.List(c.Request.Context(), errorType, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapPageToDeadLetterListResponse(page))
}

// DeadLetterStatsHandler returns the dead letter queue aggregates.
// GET /v1/dead-letter/stats
func (h *RecoveryHandler) DeadLetterStatsHandler(c *gin.Context) {
	stats, err := h.dlqUseCase.Stats(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapStatsToDeadLetterStatsResponse(stats))
}

// RequeueHandler puts a dead-lettered order back on the retry path.
// POST /v1/dead-letter/:id/requeue
// Returns 422 when the order is not in the dead letter queue.
func (h *RecoveryHandler) RequeueHandler(c *gin.Context) {
	id, ok := h.parseOrderID(c)
	if !ok {
		return
	}

	var req dto.RequeueRequest

	// Empty body means default options.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	order, err := h.dlqUseCase.Requeue(c.Request.Context(), id, req.Notes)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapOrderToResponse(order))
}

// PurgeHandler cancels a dead-lettered order.
// POST /v1/dead-letter/:id/purge
// Returns 422 when the order is not in the dead letter queue.
func (h *RecoveryHandler) PurgeHandler(c *gin.Context) {
	id, ok := h.parseOrderID(c)
	if !ok {
		return
	}

	var req dto.PurgeRequest

	// Empty body means default options.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	order, err := h.dlqUseCase.Purge(c.Request.Context(), id, req.Reason)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapOrderToResponse(order))
}

// RecoveryStatsHandler returns the recovery engine aggregates.
// GET /v1/recovery/stats
func (h *RecoveryHandler) RecoveryStatsHandler(c *gin.Context) {
	stats, err := h.recoveryUseCase.Stats(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapStatsToRecoveryStatsResponse(stats))
}

// OutboxStatsHandler returns the outbox delivery aggregates.
// GET /v1/outbox/stats
func (h *RecoveryHandler) OutboxStatsHandler(c *gin.Context) {
	stats, err := h.outboxUseCase.Stats(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapStatsToOutboxStatsResponse(stats))
}

func (h *RecoveryHandler) parseOrderID(c *gin.Context) (uuid.UUID, bool) {
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
