package compartment

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalabot/delivery-api/internal/model"
	"github.com/lalabot/delivery-api/internal/repository/docstore"
	"github.com/lalabot/delivery-api/internal/store/memory"
	apperrors "github.com/lalabot/delivery-api/pkg/errors"
)

func newTestService() *Service {
	return NewService(docstore.NewBoardRepository(memory.NewStore()), nil)
}

func TestTryAcquireFillsSlotsInOrder(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for want := 1; want <= model.CompartmentCount; want++ {
		slot, err := svc.TryAcquire(ctx, fmt.Sprintf("del_%d", want))
		require.NoError(t, err)
		assert.Equal(t, want, slot)
	}

	_, err := svc.TryAcquire(ctx, "del_overflow")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNoCompartmentAvailable))
}

func TestTryAcquireIdempotent(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first, err := svc.TryAcquire(ctx, "del_1")
	require.NoError(t, err)

	again, err := svc.TryAcquire(ctx, "del_1")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	board, err := svc.Board(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, board.Occupied())
}

func TestReleaseFreesSlotForReuse(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.TryAcquire(ctx, "del_1")
	require.NoError(t, err)
	slot2, err := svc.TryAcquire(ctx, "del_2")
	require.NoError(t, err)
	require.Equal(t, 2, slot2)

	require.NoError(t, svc.Release(ctx, "del_1"))

	// First-fit hands the freed low slot to the next delivery.
	slot, err := svc.TryAcquire(ctx, "del_3")
	require.NoError(t, err)
	assert.Equal(t, 1, slot)
}

func TestReleaseUnknownDeliveryIsNoop(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	// Missing board gets initialized empty.
	require.NoError(t, svc.Release(ctx, "del_ghost"))

	board, err := svc.Board(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, board.Occupied())

	// Releasing again against the existing board is still a no-op.
	require.NoError(t, svc.Release(ctx, "del_ghost"))
}

func TestStatusOf(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	slot, err := svc.TryAcquire(ctx, "del_1")
	require.NoError(t, err)

	got, err := svc.StatusOf(ctx, "del_1")
	require.NoError(t, err)
	assert.Equal(t, slot, got)

	got, err = svc.StatusOf(ctx, "del_other")
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestConcurrentAcquireNeverDoubleAssigns(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	const contenders = 10
	var wg sync.WaitGroup
	slots := make([]int, contenders)
	errs := make([]error, contenders)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			slots[i], errs[i] = svc.TryAcquire(ctx, fmt.Sprintf("del_%d", i))
		}(i)
	}
	wg.Wait()

	held := make(map[int]int)
	granted := 0
	for i := 0; i < contenders; i++ {
		if errs[i] != nil {
			ok := apperrors.IsCode(errs[i], apperrors.ErrNoCompartmentAvailable) ||
				apperrors.IsCode(errs[i], apperrors.ErrConflict)
			assert.True(t, ok, "unexpected error: %v", errs[i])
			continue
		}
		granted++
		held[slots[i]]++
	}

	assert.LessOrEqual(t, granted, model.CompartmentCount)
	for slot, count := range held {
		assert.Equal(t, 1, count, "slot %d assigned %d times", slot, count)
	}
}
