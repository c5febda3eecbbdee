package delivery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalabot/delivery-api/internal/model"
	"github.com/lalabot/delivery-api/internal/repository/docstore"
	"github.com/lalabot/delivery-api/internal/service/compartment"
	"github.com/lalabot/delivery-api/internal/store/memory"
	apperrors "github.com/lalabot/delivery-api/pkg/errors"
)

// fakeHistory is an in-memory stand-in for the Postgres archive with the
// same insert-only, idempotent contract.
type fakeHistory struct {
	mu   sync.Mutex
	rows map[string]*model.Delivery
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{rows: make(map[string]*model.Delivery)}
}

func (f *fakeHistory) Archive(_ context.Context, d *model.Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[d.ID]; ok {
		return nil
	}
	clone := *d
	f.rows[d.ID] = &clone
	return nil
}

func (f *fakeHistory) Get(_ context.Context, id string) (*model.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[id]
	if !ok {
		return nil, apperrors.NotFound("history record")
	}
	return d, nil
}

func (f *fakeHistory) List(_ context.Context) ([]*model.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Delivery{}
	for _, d := range f.rows {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeHistory) ListForUser(_ context.Context, userID string) ([]*model.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Delivery{}
	for _, d := range f.rows {
		if d.SenderID == userID || d.ReceiverID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

type fixture struct {
	svc          *Service
	compartments *compartment.Service
	history      *fakeHistory
	store        *memory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mem := memory.NewStore()
	deliveryRepo := docstore.NewDeliveryRepository(mem)
	boardRepo := docstore.NewBoardRepository(mem)
	notificationRepo := docstore.NewNotificationRepository(mem)
	userRepo := docstore.NewUserRepository(mem)
	history := newFakeHistory()
	compartments := compartment.NewService(boardRepo, nil)

	svc := NewService(deliveryRepo, history, notificationRepo, userRepo, compartments, nil, zerolog.Nop())

	// Each clock read advances one second so consecutive creations in a
	// test never share a delivery id.
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		base = base.Add(time.Second)
		return base
	}

	ctx := context.Background()
	for _, u := range []*model.User{
		{ID: "alice", Username: "alice", Email: "alice@example.edu"},
		{ID: "bob", Username: "bob", Email: "bob@example.edu"},
		{ID: "carol", Username: "carol", Email: "carol@example.edu"},
	} {
		require.NoError(t, userRepo.Create(ctx, u))
	}

	return &fixture{svc: svc, compartments: compartments, history: history, store: mem}
}

func createRequest() *model.CreateDeliveryRequest {
	return &model.CreateDeliveryRequest{
		ReceiverID:       "bob",
		PickupIndex:      0,
		DestinationIndex: 1,
		Category:         "documents",
		Message:          "contract drafts",
	}
}

func TestDestinationRoomNeverCollidesWithPickup(t *testing.T) {
	for pickup := 0; pickup < RoomCount; pickup++ {
		for dest := 0; dest < RoomCount-1; dest++ {
			room := DestinationRoom(pickup, dest)
			assert.GreaterOrEqual(t, room, 1)
			assert.LessOrEqual(t, room, RoomCount)
			assert.NotEqual(t, pickup+1, room,
				"pickup index %d, destination index %d resolved to the pickup room", pickup, dest)
		}
	}
}

func TestDestinationRoomRenumbering(t *testing.T) {
	// Pickup room 3 (index 2): the picker shows rooms 1, 2, 4.
	assert.Equal(t, 1, DestinationRoom(2, 0))
	assert.Equal(t, 2, DestinationRoom(2, 1))
	assert.Equal(t, 4, DestinationRoom(2, 2))

	// Pickup room 1 (index 0): every choice shifts past it.
	assert.Equal(t, 2, DestinationRoom(0, 0))
	assert.Equal(t, 3, DestinationRoom(0, 1))
	assert.Equal(t, 4, DestinationRoom(0, 2))
}

func TestCreateDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.Create(ctx, "alice", createRequest())
	require.NoError(t, err)

	assert.Equal(t, "alice", d.SenderID)
	assert.Equal(t, "bob", d.ReceiverID)
	assert.Equal(t, 1, d.PickupLocation)
	assert.Equal(t, 3, d.DestinationLocation)
	assert.Equal(t, 1, d.Compartment)
	assert.Equal(t, model.DeliveryStatusPending, d.Status)
	assert.Equal(t, model.StageProcessing, d.ProgressStage)
	assert.Len(t, d.VerificationCode, 4)

	// The receiver is notified with the pickup code.
	notes, err := docstore.NewNotificationRepository(f.store).ListForUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, d.ID, notes[0].DeliveryID)
	assert.Equal(t, d.VerificationCode, notes[0].VerificationCode)
	assert.Equal(t, d.DestinationLocation, notes[0].Destination)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		sender string
		mutate func(*model.CreateDeliveryRequest)
	}{
		{"missing sender", "", func(r *model.CreateDeliveryRequest) {}},
		{"self delivery", "bob", func(r *model.CreateDeliveryRequest) {}},
		{"missing receiver", "alice", func(r *model.CreateDeliveryRequest) { r.ReceiverID = "" }},
		{"missing category", "alice", func(r *model.CreateDeliveryRequest) { r.Category = "" }},
		{"pickup out of range", "alice", func(r *model.CreateDeliveryRequest) { r.PickupIndex = RoomCount }},
		{"destination out of range", "alice", func(r *model.CreateDeliveryRequest) { r.DestinationIndex = RoomCount - 1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := createRequest()
			tc.mutate(req)
			_, err := f.svc.Create(ctx, tc.sender, req)
			assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation), "got %v", err)
		})
	}
}

func TestCreateUnknownReceiver(t *testing.T) {
	f := newFixture(t)

	req := createRequest()
	req.ReceiverID = "nobody"
	_, err := f.svc.Create(context.Background(), "alice", req)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestCreateExhaustsCompartments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var last *model.Delivery
	for i := 0; i < model.CompartmentCount; i++ {
		d, err := f.svc.Create(ctx, "alice", createRequest())
		require.NoError(t, err)
		assert.Equal(t, i+1, d.Compartment)
		last = d
	}

	_, err := f.svc.Create(ctx, "alice", createRequest())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNoCompartmentAvailable))

	// Cancelling one delivery frees its slot for the next creation.
	_, err = f.svc.Cancel(ctx, last.ID, "alice")
	require.NoError(t, err)

	d, err := f.svc.Create(ctx, "alice", createRequest())
	require.NoError(t, err)
	assert.Equal(t, last.Compartment, d.Compartment)
}

func TestFullLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.Create(ctx, "alice", createRequest())
	require.NoError(t, err)

	// Only the sender can confirm the files.
	_, err = f.svc.ConfirmFilesPlaced(ctx, d.ID, "bob")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))

	d, err = f.svc.ConfirmFilesPlaced(ctx, d.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusInProgress, d.Status)

	// Confirming twice is rejected.
	_, err = f.svc.ConfirmFilesPlaced(ctx, d.ID, "alice")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))

	loc := 2
	d, err = f.svc.AdvanceProgress(ctx, d.ID, &model.AdvanceProgressRequest{Stage: model.StageApproaching, CurrentLocation: &loc})
	require.NoError(t, err)
	assert.Equal(t, 2, d.CurrentLocation)

	d, err = f.svc.AdvanceProgress(ctx, d.ID, &model.AdvanceProgressRequest{Stage: model.StageArrived})
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusArrived, d.Status)
	assert.True(t, d.ReadyForPickup)
	require.NotNil(t, d.ArrivedAt)

	// A wrong code fails without consuming the right one.
	_, err = f.svc.VerifyReceipt(ctx, d.ID, "0000")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMismatch))

	d, err = f.svc.VerifyReceipt(ctx, d.ID, d.VerificationCode)
	require.NoError(t, err)
	assert.True(t, d.FilesReceived)

	// Only the receiver can confirm receipt.
	_, err = f.svc.ConfirmReceipt(ctx, d.ID, "alice")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))

	d, err = f.svc.ConfirmReceipt(ctx, d.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusCompleted, d.Status)
	require.NotNil(t, d.CompletedAt)

	// The delivery left the active set, is archived, and freed its slot.
	_, err = f.svc.Get(ctx, d.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))

	archived, err := f.history.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusCompleted, archived.Status)

	slot, err := f.compartments.StatusOf(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, slot)
}

func TestConfirmReceiptRequiresVerifiedCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.Create(ctx, "alice", createRequest())
	require.NoError(t, err)

	_, err = f.svc.ConfirmReceipt(ctx, d.ID, "bob")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
}

func TestConfirmReceiptTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.Create(ctx, "alice", createRequest())
	require.NoError(t, err)
	_, err = f.svc.VerifyReceipt(ctx, d.ID, d.VerificationCode)
	require.NoError(t, err)
	_, err = f.svc.ConfirmReceipt(ctx, d.ID, "bob")
	require.NoError(t, err)

	// The archived delivery is gone from the active set.
	_, err = f.svc.ConfirmReceipt(ctx, d.ID, "bob")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestVerifyReceiptLockout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.Create(ctx, "alice", createRequest())
	require.NoError(t, err)

	for i := 0; i < maxVerifyAttempts-1; i++ {
		_, err = f.svc.VerifyReceipt(ctx, d.ID, "0000")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMismatch), "attempt %d: %v", i+1, err)
	}

	// The fifth consecutive mismatch locks verification.
	_, err = f.svc.VerifyReceipt(ctx, d.ID, "0000")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeLocked))

	// Even the correct code is refused while locked.
	_, err = f.svc.VerifyReceipt(ctx, d.ID, d.VerificationCode)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeLocked))
}

func TestCancelNotifiesReceiver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.Create(ctx, "alice", createRequest())
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, d.ID, "bob")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))

	cancelled, err := f.svc.Cancel(ctx, d.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusCancelled, cancelled.Status)

	notes, err := docstore.NewNotificationRepository(f.store).ListForUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, notes, 2)

	var sawCancellation bool
	for _, n := range notes {
		if n.Key == d.ID+"_cancelled" {
			sawCancellation = true
			assert.Empty(t, n.VerificationCode)
		}
	}
	assert.True(t, sawCancellation)

	// The slot is free and the record archived.
	slot, err := f.compartments.StatusOf(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, slot)
	_, err = f.history.Get(ctx, d.ID)
	require.NoError(t, err)
}

func TestCancelAfterPickupRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.Create(ctx, "alice", createRequest())
	require.NoError(t, err)
	_, err = f.svc.ConfirmFilesPlaced(ctx, d.ID, "alice")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, d.ID, "alice")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
}

func TestFeedSplitsByDirection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.Create(ctx, "alice", createRequest())
	require.NoError(t, err)

	req := createRequest()
	req.ReceiverID = "alice"
	in, err := f.svc.Create(ctx, "carol", req)
	require.NoError(t, err)

	req = createRequest()
	req.ReceiverID = "carol"
	_, err = f.svc.Create(ctx, "bob", req)
	require.NoError(t, err)

	feed, err := f.svc.Feed(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, feed.Outgoing, 1)
	require.Len(t, feed.Incoming, 1)
	assert.Equal(t, out.ID, feed.Outgoing[0].ID)
	assert.Equal(t, in.ID, feed.Incoming[0].ID)
}

func TestHistoryListsTerminalDeliveries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.Create(ctx, "alice", createRequest())
	require.NoError(t, err)
	_, err = f.svc.VerifyReceipt(ctx, d.ID, d.VerificationCode)
	require.NoError(t, err)
	_, err = f.svc.ConfirmReceipt(ctx, d.ID, "bob")
	require.NoError(t, err)

	for _, user := range []string{"alice", "bob"} {
		records, err := f.svc.History(ctx, user)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, d.ID, records[0].ID)
	}

	records, err := f.svc.History(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, records)
}
