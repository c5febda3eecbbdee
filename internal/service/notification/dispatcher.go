// Package notification polls the store for unread notifications and
// surfaces each one exactly once per session, then marks it read remotely.
// The sink abstraction keeps the dispatcher ignorant of the transport, so
// polling can be swapped for a push subscription without touching callers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/lalabot/delivery-api/internal/model"
	"github.com/lalabot/delivery-api/internal/repository"
	"github.com/lalabot/delivery-api/pkg/metrics"
)

// Sink receives each surfaced alert exactly once per dispatcher session.
type Sink interface {
	Notify(ctx context.Context, alert *model.Alert) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, alert *model.Alert) error

func (f SinkFunc) Notify(ctx context.Context, alert *model.Alert) error {
	return f(ctx, alert)
}

type DispatcherConfig struct {
	UserID       string
	PollInterval time.Duration
	CycleTimeout time.Duration
}

// Dispatcher runs the polling loop for one signed-in user.
type Dispatcher struct {
	notifications repository.NotificationRepository
	sink          Sink
	onReload      func(ctx context.Context)
	config        DispatcherConfig
	logger        zerolog.Logger
	metrics       *metrics.Metrics

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDispatcher(
	notifications repository.NotificationRepository,
	sink Sink,
	onReload func(ctx context.Context),
	config DispatcherConfig,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Dispatcher {
	if config.PollInterval <= 0 {
		config.PollInterval = 3 * time.Second
	}
	if config.CycleTimeout <= 0 {
		config.CycleTimeout = config.PollInterval
	}
	return &Dispatcher{
		notifications: notifications,
		sink:          sink,
		onReload:      onReload,
		config:        config,
		logger:        logger,
		metrics:       m,
		seen:          make(map[string]struct{}),
	}
}

// Start blocks until ctx is cancelled. Cycles never overlap: the next tick
// is not served until the previous cycle returns, and each cycle is bounded
// by CycleTimeout so one slow poll cannot stall the loop indefinitely.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	d.logger.Info().Str("user_id", d.config.UserID).Msg("starting notification dispatcher")

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("shutting down notification dispatcher")
			return
		case <-ticker.C:
			cycleCtx, cancel := context.WithTimeout(ctx, d.config.CycleTimeout)
			if err := d.Poll(cycleCtx); err != nil {
				d.logger.Error().Err(err).Msg("notification poll cycle failed")
			}
			cancel()
		}
	}
}

// Poll runs one cycle: fetch the user's notifications and dispatch every
// unread one not yet surfaced this session. A failure on one notification
// does not abort the rest of the cycle.
func (d *Dispatcher) Poll(ctx context.Context) error {
	var timer *prometheus.Timer
	if d.metrics != nil {
		timer = prometheus.NewTimer(d.metrics.PollCycleDuration)
		defer func() {
			timer.ObserveDuration()
			d.metrics.PollCycles.Inc()
		}()
	}

	notifications, err := d.notifications.ListForUser(ctx, d.config.UserID)
	if err != nil {
		return err
	}

	dispatched := false
	for _, n := range notifications {
		if n.Read || !d.markSeen(n.Key) {
			continue
		}
		if err := d.dispatch(ctx, n); err != nil {
			d.logger.Error().Err(err).
				Str("notification_key", n.Key).
				Msg("failed to dispatch notification")
			continue
		}
		dispatched = true
	}

	if dispatched && d.onReload != nil {
		d.onReload(ctx)
	}
	return nil
}

// markSeen records the key and reports whether it was new. The seen set is
// updated before any side effect so a slow remote write cannot cause the
// same notification to alert twice.
func (d *Dispatcher) markSeen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

func (d *Dispatcher) dispatch(ctx context.Context, n *model.Notification) error {
	alert := &model.Alert{
		UserID:       d.config.UserID,
		Notification: n,
		SurfacedAt:   time.Now().UTC(),
	}
	if err := d.sink.Notify(ctx, alert); err != nil {
		return err
	}
	if d.metrics != nil {
		d.metrics.AlertsDispatched.Inc()
	}

	// The alert already fired; a failed read-back write only means the
	// notification is re-fetched unread next session.
	if err := d.notifications.MarkRead(ctx, d.config.UserID, n.Key); err != nil {
		d.logger.Error().Err(err).
			Str("notification_key", n.Key).
			Msg("failed to mark notification read")
	}
	return nil
}
