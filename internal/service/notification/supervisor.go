package notification

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lalabot/delivery-api/internal/repository"
	"github.com/lalabot/delivery-api/pkg/metrics"
)

type SupervisorConfig struct {
	PollInterval time.Duration
	Refresh      time.Duration
}

// Supervisor keeps one running Dispatcher per registered user. New users are
// picked up on the next refresh; dispatchers stop when the supervisor's
// context is cancelled.
type Supervisor struct {
	users         repository.UserRepository
	notifications repository.NotificationRepository
	sink          Sink
	config        SupervisorConfig
	logger        zerolog.Logger
	metrics       *metrics.Metrics

	mu      sync.Mutex
	running map[string]struct{}
}

func NewSupervisor(
	users repository.UserRepository,
	notifications repository.NotificationRepository,
	sink Sink,
	config SupervisorConfig,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Supervisor {
	if config.Refresh <= 0 {
		config.Refresh = 30 * time.Second
	}
	return &Supervisor{
		users:         users,
		notifications: notifications,
		sink:          sink,
		config:        config,
		logger:        logger,
		metrics:       m,
		running:       make(map[string]struct{}),
	}
}

// Start blocks until ctx is cancelled.
func (s *Supervisor) Start(ctx context.Context) {
	s.refresh(ctx)

	ticker := time.NewTicker(s.config.Refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *Supervisor) refresh(ctx context.Context) {
	users, err := s.users.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users for dispatch")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		if _, ok := s.running[u.ID]; ok {
			continue
		}
		s.running[u.ID] = struct{}{}

		d := NewDispatcher(s.notifications, s.sink, nil, DispatcherConfig{
			UserID:       u.ID,
			PollInterval: s.config.PollInterval,
		}, s.metrics, s.logger.With().Str("user_id", u.ID).Logger())

		go d.Start(ctx)
	}
}
