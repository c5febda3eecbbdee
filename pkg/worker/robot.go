// Package worker drives delivery progress the way the on-robot controller
// does: confirmed deliveries advance one stage per trip segment until they
// arrive. In production the physical robot reports real progress; this
// driver stands in for it in deployments without one.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lalabot/delivery-api/internal/model"
	"github.com/lalabot/delivery-api/internal/repository"
	"github.com/lalabot/delivery-api/internal/service/delivery"
)

type RobotDriverConfig struct {
	PollInterval  time.Duration
	StageDuration time.Duration
}

type RobotDriver struct {
	deliveries repository.DeliveryRepository
	lifecycle  *delivery.Service
	config     RobotDriverConfig
	logger     *zap.SugaredLogger

	lastAdvance map[string]time.Time
}

func NewRobotDriver(
	deliveries repository.DeliveryRepository,
	lifecycle *delivery.Service,
	config RobotDriverConfig,
	logger *zap.SugaredLogger,
) *RobotDriver {
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}
	if config.StageDuration <= 0 {
		config.StageDuration = 15 * time.Second
	}
	return &RobotDriver{
		deliveries:  deliveries,
		lifecycle:   lifecycle,
		config:      config,
		logger:      logger,
		lastAdvance: make(map[string]time.Time),
	}
}

func (d *RobotDriver) Start(ctx context.Context) {
	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	d.logger.Infow("starting robot driver",
		"poll_interval", d.config.PollInterval,
		"stage_duration", d.config.StageDuration)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("shutting down robot driver")
			return
		case <-ticker.C:
			if err := d.tick(ctx); err != nil {
				d.logger.Errorw("robot driver cycle failed", "error", err)
			}
		}
	}
}

func (d *RobotDriver) tick(ctx context.Context) error {
	deliveries, err := d.deliveries.List(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	active := make(map[string]struct{}, len(deliveries))
	for _, dl := range deliveries {
		active[dl.ID] = struct{}{}
		if !dl.Active() || !dl.FilesConfirmed || dl.ProgressStage >= model.StageArrived {
			continue
		}

		last, ok := d.lastAdvance[dl.ID]
		if !ok {
			d.lastAdvance[dl.ID] = now
			continue
		}
		if now.Sub(last) < d.config.StageDuration {
			continue
		}

		next := dl.ProgressStage + 1
		if _, err := d.lifecycle.AdvanceProgress(ctx, dl.ID, &model.AdvanceProgressRequest{Stage: next}); err != nil {
			d.logger.Errorw("failed to advance delivery",
				"delivery_id", dl.ID, "stage", next, "error", err)
			continue
		}
		d.lastAdvance[dl.ID] = now
		d.logger.Infow("advanced delivery", "delivery_id", dl.ID, "stage", next)
	}

	// Forget deliveries that left the active set.
	for id := range d.lastAdvance {
		if _, ok := active[id]; !ok {
			delete(d.lastAdvance, id)
		}
	}
	return nil
}
