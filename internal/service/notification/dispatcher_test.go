package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalabot/delivery-api/internal/model"
	"github.com/lalabot/delivery-api/internal/repository"
	"github.com/lalabot/delivery-api/internal/repository/docstore"
	"github.com/lalabot/delivery-api/internal/store/memory"
)

type recordingSink struct {
	mu     sync.Mutex
	alerts []*model.Alert
	fail   bool
}

func (s *recordingSink) Notify(_ context.Context, alert *model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

// failingMarkRead wraps a repository so MarkRead always errors while reads
// keep working.
type failingMarkRead struct {
	repository.NotificationRepository
}

func (f *failingMarkRead) MarkRead(context.Context, string, string) error {
	return errors.New("write refused")
}

func seedNotification(t *testing.T, repo repository.NotificationRepository, userID, key string) {
	t.Helper()
	err := repo.Create(context.Background(), userID, &model.Notification{
		Key:        key,
		DeliveryID: key,
		From:       "alice",
		Message:    "New delivery from alice",
		Timestamp:  time.Now().UTC(),
	})
	require.NoError(t, err)
}

func newTestDispatcher(repo repository.NotificationRepository, sink Sink, onReload func(ctx context.Context)) *Dispatcher {
	return NewDispatcher(repo, sink, onReload, DispatcherConfig{UserID: "bob"}, nil, zerolog.Nop())
}

func TestPollDispatchesUnreadOnce(t *testing.T) {
	repo := docstore.NewNotificationRepository(memory.NewStore())
	sink := &recordingSink{}
	d := newTestDispatcher(repo, sink, nil)
	ctx := context.Background()

	seedNotification(t, repo, "bob", "del_1")

	// Repeated polls of the same notification alert exactly once.
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Poll(ctx))
	}
	assert.Equal(t, 1, sink.count())
	assert.Equal(t, "bob", sink.alerts[0].UserID)
	assert.Equal(t, "del_1", sink.alerts[0].Notification.Key)

	// The remote copy was marked read.
	notes, err := repo.ListForUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.True(t, notes[0].Read)
}

func TestPollSkipsAlreadyRead(t *testing.T) {
	repo := docstore.NewNotificationRepository(memory.NewStore())
	sink := &recordingSink{}
	d := newTestDispatcher(repo, sink, nil)
	ctx := context.Background()

	seedNotification(t, repo, "bob", "del_1")
	require.NoError(t, repo.MarkRead(ctx, "bob", "del_1"))

	require.NoError(t, d.Poll(ctx))
	assert.Zero(t, sink.count())
}

func TestPollAlertsOnceEvenIfMarkReadFails(t *testing.T) {
	repo := docstore.NewNotificationRepository(memory.NewStore())
	sink := &recordingSink{}
	d := newTestDispatcher(&failingMarkRead{repo}, sink, nil)
	ctx := context.Background()

	seedNotification(t, repo, "bob", "del_1")

	// The notification stays unread remotely, but the session seen set
	// still suppresses duplicate alerts.
	for i := 0; i < 3; i++ {
		require.NoError(t, d.Poll(ctx))
	}
	assert.Equal(t, 1, sink.count())

	notes, err := repo.ListForUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.False(t, notes[0].Read)
}

func TestPollContinuesAfterSinkFailure(t *testing.T) {
	repo := docstore.NewNotificationRepository(memory.NewStore())
	sink := &recordingSink{fail: true}
	d := newTestDispatcher(repo, sink, nil)
	ctx := context.Background()

	seedNotification(t, repo, "bob", "del_1")

	// A failed dispatch is swallowed; the cycle itself succeeds.
	require.NoError(t, d.Poll(ctx))
	assert.Zero(t, sink.count())

	// The key was already marked seen, so recovery does not re-alert.
	sink.fail = false
	require.NoError(t, d.Poll(ctx))
	assert.Zero(t, sink.count())
}

func TestPollInvokesReloadOnNewAlerts(t *testing.T) {
	repo := docstore.NewNotificationRepository(memory.NewStore())
	sink := &recordingSink{}

	reloads := 0
	d := newTestDispatcher(repo, sink, func(context.Context) { reloads++ })
	ctx := context.Background()

	seedNotification(t, repo, "bob", "del_1")
	require.NoError(t, d.Poll(ctx))
	assert.Equal(t, 1, reloads)

	// No new notifications, no reload.
	require.NoError(t, d.Poll(ctx))
	assert.Equal(t, 1, reloads)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	repo := docstore.NewNotificationRepository(memory.NewStore())
	sink := &recordingSink{}
	d := NewDispatcher(repo, sink, nil, DispatcherConfig{
		UserID:       "bob",
		PollInterval: 5 * time.Millisecond,
	}, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()

	seedNotification(t, repo, "bob", "del_1")
	assert.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}
}
