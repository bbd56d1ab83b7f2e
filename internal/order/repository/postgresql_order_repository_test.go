package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderDomain "github.com/allisson/orders/internal/order/domain"
	"github.com/allisson/orders/internal/testutil"
)

func TestNewPostgreSQLOrderRepository(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewPostgreSQLOrderRepository(db)
	assert.NotNil(t, repo)
	assert.IsType(t, &PostgreSQLOrderRepository{}, repo)
}

func TestPostgreSQLOrderRepository_Create(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOrderRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	order := &orderDomain.Order{
		ID:         uuid.Must(uuid.NewV7()),
		Status:     orderDomain.StatusPending,
		SourceRef:  "https://videos.example.com/v/abc123",
		TargetRef:  "campaign-42",
		Quantity:   5000,
		MaxRetries: 3,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := repo.Create(ctx, order)
	require.NoError(t, err)

	// Verify the order was created by reading it back
	readOrder, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)

	assert.Equal(t, order.ID, readOrder.ID)
	assert.Equal(t, orderDomain.StatusPending, readOrder.Status)
	assert.Equal(t, order.SourceRef, readOrder.SourceRef)
	assert.Equal(t, order.TargetRef, readOrder.TargetRef)
	assert.Equal(t, order.Quantity, readOrder.Quantity)
	assert.Equal(t, 0, readOrder.RetryCount)
	assert.Equal(t, 3, readOrder.MaxRetries)
	assert.Nil(t, readOrder.LastErrorType)
	assert.Nil(t, readOrder.NextRetryAt)
	assert.False(t, readOrder.IsManuallyFailed)
	assert.Equal(t, int64(1), readOrder.Version)
	assert.WithinDuration(t, now, readOrder.CreatedAt, time.Second)
}

func TestPostgreSQLOrderRepository_GetByID_NotFound(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOrderRepository(db)

	_, err := repo.GetByID(context.Background(), uuid.Must(uuid.NewV7()))
	assert.ErrorIs(t, err, orderDomain.ErrOrderNotFound)
}

func TestPostgreSQLOrderRepository_Update(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOrderRepository(db)
	ctx := context.Background()

	order := testutil.CreateTestOrder(t, db, "postgres", orderDomain.StatusPending)

	loaded, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)

	loaded.Status = orderDomain.StatusProcessing
	err = repo.Update(ctx, loaded)
	require.NoError(t, err)

	// Version is advanced in memory and in the database
	assert.Equal(t, int64(2), loaded.Version)

	readOrder, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderDomain.StatusProcessing, readOrder.Status)
	assert.Equal(t, int64(2), readOrder.Version)
}

func TestPostgreSQLOrderRepository_Update_ConcurrentModification(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOrderRepository(db)
	ctx := context.Background()

	order := testutil.CreateTestOrder(t, db, "postgres", orderDomain.StatusPending)

	// Two readers load the same version
	first, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)

	// First writer wins
	first.Status = orderDomain.StatusProcessing
	require.NoError(t, repo.Update(ctx, first))

	// Second writer loses with a conflict
	second.Status = orderDomain.StatusCancelled
	err = repo.Update(ctx, second)
	assert.ErrorIs(t, err, orderDomain.ErrConcurrentModification)

	// The second writer's state never landed
	readOrder, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderDomain.StatusProcessing, readOrder.Status)
}

func TestPostgreSQLOrderRepository_Update_MissingRow(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOrderRepository(db)

	order := &orderDomain.Order{
		ID:         uuid.Must(uuid.NewV7()),
		Status:     orderDomain.StatusPending,
		MaxRetries: 3,
		Version:    1,
	}

	err := repo.Update(context.Background(), order)
	assert.ErrorIs(t, err, orderDomain.ErrConcurrentModification)
}

func TestPostgreSQLOrderRepository_ListDueForRetry(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOrderRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	// Due for retry: holding, schedule in the past
	due := testutil.CreateTestOrder(t, db, "postgres", orderDomain.StatusHolding)
	dueOrder, err := repo.GetByID(ctx, due.ID)
	require.NoError(t, err)
	past := now.Add(-time.Minute)
	dueOrder.RetryCount = 1
	dueOrder.NextRetryAt = &past
	require.NoError(t, repo.Update(ctx, dueOrder))

	// Not yet due: schedule in the future
	future := testutil.CreateTestOrder(t, db, "postgres", orderDomain.StatusHolding)
	futureOrder, err := repo.GetByID(ctx, future.ID)
	require.NoError(t, err)
	later := now.Add(time.Hour)
	futureOrder.NextRetryAt = &later
	require.NoError(t, repo.Update(ctx, futureOrder))

	// Manually failed orders never show up
	pinned := testutil.CreateTestOrder(t, db, "postgres", orderDomain.StatusHolding)
	pinnedOrder, err := repo.GetByID(ctx, pinned.ID)
	require.NoError(t, err)
	pinnedOrder.IsManuallyFailed = true
	pinnedOrder.NextRetryAt = &past
	require.NoError(t, repo.Update(ctx, pinnedOrder))

	// Exhausted retry budget never shows up
	exhausted := testutil.CreateTestOrder(t, db, "postgres", orderDomain.StatusHolding)
	exhaustedOrder, err := repo.GetByID(ctx, exhausted.ID)
	require.NoError(t, err)
	exhaustedOrder.RetryCount = exhaustedOrder.MaxRetries
	exhaustedOrder.NextRetryAt = &past
	require.NoError(t, repo.Update(ctx, exhaustedOrder))

	orders, err := repo.ListDueForRetry(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, due.ID, orders[0].ID)
}

func TestPostgreSQLOrderRepository_ListDeadLetter(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOrderRepository(db)
	ctx := context.Background()

	// Dead-lettered by retry exhaustion with a transient failure
	exhausted := testutil.CreateTestOrder(t, db, "postgres", orderDomain.StatusHolding)
	exhaustedOrder, err := repo.GetByID(ctx, exhausted.ID)
	require.NoError(t, err)
	transient := orderDomain.ErrorTypeTransient
	exhaustedOrder.RetryCount = exhaustedOrder.MaxRetries
	exhaustedOrder.LastErrorType = &transient
	require.NoError(t, repo.Update(ctx, exhaustedOrder))

	// Dead-lettered by operator pin with a permanent failure
	pinned := testutil.CreateTestOrder(t, db, "postgres", orderDomain.StatusHolding)
	pinnedOrder, err := repo.GetByID(ctx, pinned.ID)
	require.NoError(t, err)
	permanent := orderDomain.ErrorTypePermanent
	pinnedOrder.IsManuallyFailed = true
	pinnedOrder.LastErrorType = &permanent
	require.NoError(t, repo.Update(ctx, pinnedOrder))

	// Holding but retry-eligible: not in the dead letter queue
	eligible := testutil.CreateTestOrder(t, db, "postgres", orderDomain.StatusHolding)
	eligibleOrder, err := repo.GetByID(ctx, eligible.ID)
	require.NoError(t, err)
	eligibleOrder.RetryCount = 1
	require.NoError(t, repo.Update(ctx, eligibleOrder))

	// Unfiltered listing contains both dead-lettered orders
	orders, err := repo.ListDeadLetter(ctx, nil, 0, 10)
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	// Filter narrows by error type
	orders, err = repo.ListDeadLetter(ctx, &permanent, 0, 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, pinned.ID, orders[0].ID)

	// Counts agree with listings
	count, err := repo.CountDeadLetter(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = repo.CountDeadLetter(ctx, &transient)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	byType, err := repo.CountDeadLetterByErrorType(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), byType[orderDomain.ErrorTypeTransient])
	assert.Equal(t, int64(1), byType[orderDomain.ErrorTypePermanent])
}

func TestPostgreSQLOrderRepository_ListDeadLetterBefore(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOrderRepository(db)
	ctx := context.Background()

	order := testutil.CreateTestOrder(t, db, "postgres", orderDomain.StatusHolding)
	loaded, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	loaded.IsManuallyFailed = true
	require.NoError(t, repo.Update(ctx, loaded))

	// Cutoff before the update finds nothing
	orders, err := repo.ListDeadLetterBefore(ctx, time.Now().UTC().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, orders)

	// Cutoff after the update finds the order
	orders, err = repo.ListDeadLetterBefore(ctx, time.Now().UTC().Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
}

func TestPostgreSQLOrderRepository_CountByStatus(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOrderRepository(db)
	ctx := context.Background()

	testutil.CreateTestOrder(t, db, "postgres", orderDomain.StatusPending)
	testutil.CreateTestOrder(t, db, "postgres", orderDomain.StatusPending)
	testutil.CreateTestOrder(t, db, "postgres", orderDomain.StatusActive)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[orderDomain.StatusPending])
	assert.Equal(t, int64(1), counts[orderDomain.StatusActive])
}

func TestPostgreSQLOrderRepository_CountScheduledRetries(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOrderRepository(db)
	ctx := context.Background()

	order := testutil.CreateTestOrder(t, db, "postgres", orderDomain.StatusHolding)
	loaded, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	at := time.Now().UTC().Add(time.Hour)
	loaded.RetryCount = 1
	loaded.NextRetryAt = &at
	require.NoError(t, repo.Update(ctx, loaded))

	// A second holding order without a schedule does not count
	testutil.CreateTestOrder(t, db, "postgres", orderDomain.StatusHolding)

	count, err := repo.CountScheduledRetries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestPostgreSQLOrderRepository_CountFailedSince(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOrderRepository(db)
	ctx := context.Background()

	order := testutil.CreateTestOrder(t, db, "postgres", orderDomain.StatusHolding)
	loaded, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	errorType := orderDomain.ErrorTypeTransient
	reason := "analysis provider timeout"
	loaded.RetryCount = 1
	loaded.LastErrorType = &errorType
	loaded.FailureReason = &reason
	require.NoError(t, repo.Update(ctx, loaded))

	// An order that never failed does not count
	testutil.CreateTestOrder(t, db, "postgres", orderDomain.StatusPending)

	count, err := repo.CountFailedSince(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = repo.CountFailedSince(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestPostgreSQLTransitionRepository(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLTransitionRepository(db)
	ctx := context.Background()

	order := testutil.CreateTestOrder(t, db, "postgres", orderDomain.StatusPending)

	first := &orderDomain.StateTransition{
		ID:         uuid.Must(uuid.NewV7()),
		OrderID:    order.ID,
		FromStatus: orderDomain.StatusPending,
		ToStatus:   orderDomain.StatusProcessing,
		Reason:     "processing started",
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, first))

	second := &orderDomain.StateTransition{
		ID:         uuid.Must(uuid.NewV7()),
		OrderID:    order.ID,
		FromStatus: orderDomain.StatusProcessing,
		ToStatus:   orderDomain.StatusActive,
		Reason:     "campaign assigned",
		CreatedAt:  time.Now().UTC().Add(time.Second),
	}
	require.NoError(t, repo.Create(ctx, second))

	transitions, err := repo.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, transitions, 2)

	// Oldest first
	assert.Equal(t, first.ID, transitions[0].ID)
	assert.Equal(t, orderDomain.StatusPending, transitions[0].FromStatus)
	assert.Equal(t, orderDomain.StatusProcessing, transitions[0].ToStatus)
	assert.Equal(t, "processing started", transitions[0].Reason)
	assert.Equal(t, second.ID, transitions[1].ID)

	// Unknown order has an empty history
	transitions, err = repo.ListByOrder(ctx, uuid.Must(uuid.NewV7()))
	require.NoError(t, err)
	assert.Empty(t, transitions)
}
