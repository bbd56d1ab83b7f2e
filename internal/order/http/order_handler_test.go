package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	orderDomain "github.com/allisson/orders/internal/order/domain"
	"github.com/allisson/orders/internal/order/http/dto"
	orderUsecase "github.com/allisson/orders/internal/order/usecase"
)

// setupOrderHandler creates an order handler with mocked dependencies.
func setupOrderHandler(t *testing.T) (*OrderHandler, *MockStateUseCase, *MockRecoveryUseCase) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	mockState := &MockStateUseCase{}
	mockRecovery := &MockRecoveryUseCase{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := NewOrderHandler(mockState, mockRecovery, logger)

	return handler, mockState, mockRecovery
}

// createTestContext builds a gin test context with an optional JSON body.
func createTestContext(method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	return c, w
}

func testOrder(status orderDomain.Status) *orderDomain.Order {
	now := time.Now().UTC()
	return &orderDomain.Order{
		ID:         uuid.Must(uuid.NewV7()),
		Status:     status,
		SourceRef:  "video-42",
		TargetRef:  "campaign-7",
		Quantity:   3,
		MaxRetries: 3,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestOrderHandler_CreateHandler(t *testing.T) {
	t.Run("Success_ValidRequest", func(t *testing.T) {
		handler, mockState, _ := setupOrderHandler(t)

		expectedOrder := testOrder(orderDomain.StatusPending)

		request := dto.CreateOrderRequest{
			SourceRef: "video-42",
			TargetRef: "campaign-7",
			Quantity:  3,
		}

		mockState.On("Create", mock.Anything, &orderUsecase.CreateOrderInput{
			SourceRef: "video-42",
			TargetRef: "campaign-7",
			Quantity:  3,
		}).Return(expectedOrder, nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/orders", request)

		handler.CreateHandler(c)

		assert.Equal(t, http.StatusCreated, w.Code)

		var response dto.OrderResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, expectedOrder.ID.String(), response.ID)
		assert.Equal(t, "pending", response.Status)
		mockState.AssertExpectations(t)
	})

	t.Run("ValidationError_MissingSourceRef", func(t *testing.T) {
		handler, mockState, _ := setupOrderHandler(t)

		request := dto.CreateOrderRequest{
			TargetRef: "campaign-7",
			Quantity:  3,
		}

		c, w := createTestContext(http.MethodPost, "/v1/orders", request)

		handler.CreateHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		mockState.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("ValidationError_ZeroQuantity", func(t *testing.T) {
		handler, mockState, _ := setupOrderHandler(t)

		request := dto.CreateOrderRequest{
			SourceRef: "video-42",
			TargetRef: "campaign-7",
			Quantity:  0,
		}

		c, w := createTestContext(http.MethodPost, "/v1/orders", request)

		handler.CreateHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		mockState.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("BadRequest_MalformedJSON", func(t *testing.T) {
		handler, _, _ := setupOrderHandler(t)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		req := httptest.NewRequest(http.MethodPost, "/v1/orders", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")
		c.Request = req

		handler.CreateHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestOrderHandler_GetHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, mockState, _ := setupOrderHandler(t)

		expectedOrder := testOrder(orderDomain.StatusActive)

		mockState.On("Get", mock.Anything, expectedOrder.ID).Return(expectedOrder, nil).Once()

		c, w := createTestContext(http.MethodGet, "/v1/orders/"+expectedOrder.ID.String(), nil)
		c.Params = gin.Params{{Key: "id", Value: expectedOrder.ID.String()}}

		handler.GetHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)

		var response dto.OrderResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, expectedOrder.ID.String(), response.ID)
		assert.Equal(t, "active", response.Status)
	})

	t.Run("NotFound", func(t *testing.T) {
		handler, mockState, _ := setupOrderHandler(t)

		orderID := uuid.Must(uuid.NewV7())

		mockState.On("Get", mock.Anything, orderID).Return(nil, orderDomain.ErrOrderNotFound).Once()

		c, w := createTestContext(http.MethodGet, "/v1/orders/"+orderID.String(), nil)
		c.Params = gin.Params{{Key: "id", Value: orderID.String()}}

		handler.GetHandler(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("InvalidID", func(t *testing.T) {
		handler, mockState, _ := setupOrderHandler(t)

		c, w := createTestContext(http.MethodGet, "/v1/orders/not-a-uuid", nil)
		c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}

		handler.GetHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		mockState.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})
}

func TestOrderHandler_HistoryHandler(t *testing.T) {
	handler, mockState, _ := setupOrderHandler(t)

	orderID := uuid.Must(uuid.NewV7())
	transitions := []*orderDomain.StateTransition{
		{
			ID:         uuid.Must(uuid.NewV7()),
			OrderID:    orderID,
			FromStatus: orderDomain.StatusPending,
			ToStatus:   orderDomain.StatusProcessing,
			Reason:     "processing started",
			CreatedAt:  time.Now().UTC(),
		},
	}

	mockState.On("History", mock.Anything, orderID).Return(transitions, nil).Once()

	c, w := createTestContext(http.MethodGet, "/v1/orders/"+orderID.String()+"/history", nil)
	c.Params = gin.Params{{Key: "id", Value: orderID.String()}}

	handler.HistoryHandler(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response dto.HistoryResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response.Data, 1)
	assert.Equal(t, "pending", response.Data[0].FromStatus)
	assert.Equal(t, "processing", response.Data[0].ToStatus)
}

func TestOrderHandler_TransitionHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, mockState, _ := setupOrderHandler(t)

		expectedOrder := testOrder(orderDomain.StatusCancelled)

		request := dto.TransitionOrderRequest{Status: "cancelled", Reason: "customer refund"}

		mockState.On(
			"Transition", mock.Anything, expectedOrder.ID, orderDomain.StatusCancelled, "customer refund",
		).Return(expectedOrder, nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/orders/"+expectedOrder.ID.String()+"/transition", request)
		c.Params = gin.Params{{Key: "id", Value: expectedOrder.ID.String()}}

		handler.TransitionHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)

		var response dto.OrderResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "cancelled", response.Status)
	})

	t.Run("ValidationError_UnknownStatus", func(t *testing.T) {
		handler, mockState, _ := setupOrderHandler(t)

		orderID := uuid.Must(uuid.NewV7())
		request := dto.TransitionOrderRequest{Status: "exploded"}

		c, w := createTestContext(http.MethodPost, "/v1/orders/"+orderID.String()+"/transition", request)
		c.Params = gin.Params{{Key: "id", Value: orderID.String()}}

		handler.TransitionHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		mockState.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("InvalidEdge_Returns422", func(t *testing.T) {
		handler, mockState, _ := setupOrderHandler(t)

		orderID := uuid.Must(uuid.NewV7())
		request := dto.TransitionOrderRequest{Status: "completed"}

		mockState.On(
			"Transition", mock.Anything, orderID, orderDomain.StatusCompleted, "",
		).Return(nil, orderDomain.ErrInvalidTransition).Once()

		c, w := createTestContext(http.MethodPost, "/v1/orders/"+orderID.String()+"/transition", request)
		c.Params = gin.Params{{Key: "id", Value: orderID.String()}}

		handler.TransitionHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("ConcurrentModification_Returns409", func(t *testing.T) {
		handler, mockState, _ := setupOrderHandler(t)

		orderID := uuid.Must(uuid.NewV7())
		request := dto.TransitionOrderRequest{Status: "holding", Reason: "manual hold"}

		mockState.On(
			"Transition", mock.Anything, orderID, orderDomain.StatusHolding, "manual hold",
		).Return(nil, orderDomain.ErrConcurrentModification).Once()

		c, w := createTestContext(http.MethodPost, "/v1/orders/"+orderID.String()+"/transition", request)
		c.Params = gin.Params{{Key: "id", Value: orderID.String()}}

		handler.TransitionHandler(c)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestOrderHandler_RetryHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, _, mockRecovery := setupOrderHandler(t)

		expectedOrder := testOrder(orderDomain.StatusHolding)
		nextRetryAt := time.Now().UTC().Add(time.Minute)
		expectedOrder.NextRetryAt = &nextRetryAt

		request := dto.ManualRetryRequest{Notes: "retrying after upstream fix", ResetCount: true}

		mockRecovery.On(
			"ManualRetry", mock.Anything, expectedOrder.ID, "retrying after upstream fix", true,
		).Return(expectedOrder, nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/orders/"+expectedOrder.ID.String()+"/retry", request)
		c.Params = gin.Params{{Key: "id", Value: expectedOrder.ID.String()}}

		handler.RetryHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)

		var response dto.OrderResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotNil(t, response.NextRetryAt)
	})

	t.Run("EmptyBody_UsesDefaults", func(t *testing.T) {
		handler, _, mockRecovery := setupOrderHandler(t)

		expectedOrder := testOrder(orderDomain.StatusHolding)

		mockRecovery.On(
			"ManualRetry", mock.Anything, expectedOrder.ID, "", false,
		).Return(expectedOrder, nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/orders/"+expectedOrder.ID.String()+"/retry", nil)
		c.Params = gin.Params{{Key: "id", Value: expectedOrder.ID.String()}}

		handler.RetryHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		mockRecovery.AssertExpectations(t)
	})

	t.Run("NotRetryable_Returns422", func(t *testing.T) {
		handler, _, mockRecovery := setupOrderHandler(t)

		orderID := uuid.Must(uuid.NewV7())

		mockRecovery.On(
			"ManualRetry", mock.Anything, orderID, "", false,
		).Return(nil, orderDomain.ErrNotRetryable).Once()

		c, w := createTestContext(http.MethodPost, "/v1/orders/"+orderID.String()+"/retry", nil)
		c.Params = gin.Params{{Key: "id", Value: orderID.String()}}

		handler.RetryHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestOrderHandler_ProcessingHandler(t *testing.T) {
	handler, mockState, _ := setupOrderHandler(t)

	now := time.Now().UTC()
	entries := []orderUsecase.ProcessingEntry{
		{
			OrderID:   uuid.Must(uuid.NewV7()),
			Phase:     orderDomain.PhaseVideoAnalysis,
			Details:   "analyzing source video",
			StartedAt: now,
			UpdatedAt: now,
		},
	}

	mockState.On("ActiveProcessing").Return(entries).Once()

	c, w := createTestContext(http.MethodGet, "/v1/orders/processing", nil)

	handler.ProcessingHandler(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response dto.ProcessingListResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response.Data, 1)
	assert.Equal(t, "video_analysis", response.Data[0].Phase)
}
