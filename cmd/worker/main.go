package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"github.com/lalabot/delivery-api/internal/config"
	"github.com/lalabot/delivery-api/internal/repository/docstore"
	"github.com/lalabot/delivery-api/internal/repository/postgres"
	compartmentService "github.com/lalabot/delivery-api/internal/service/compartment"
	deliveryService "github.com/lalabot/delivery-api/internal/service/delivery"
	redisStore "github.com/lalabot/delivery-api/internal/store/redis"
	"github.com/lalabot/delivery-api/pkg/logger"
	"github.com/lalabot/delivery-api/pkg/metrics"
	"github.com/lalabot/delivery-api/pkg/worker"
)

type workerConfig struct {
	RedisURL             string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	DBHost               string `envconfig:"DB_HOST" default:"localhost"`
	DBPort               int    `envconfig:"DB_PORT" default:"5432"`
	DBUser               string `envconfig:"DB_USER" default:"lalabot"`
	DBPassword           string `envconfig:"DB_PASSWORD" default:""`
	DBName               string `envconfig:"DB_NAME" default:"delivery"`
	DBSSLMode            string `envconfig:"DB_SSLMODE" default:"disable"`
	PollIntervalSeconds  int    `envconfig:"POLL_INTERVAL_SECONDS" default:"2"`
	StageDurationSeconds int    `envconfig:"STAGE_DURATION_SECONDS" default:"15"`
}

func main() {
	var cfg workerConfig
	if err := envconfig.Process("robot", &cfg); err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zapLogger.Sync()
	sugar := zapLogger.Sugar()

	docs, err := redisStore.NewStore(redisStore.Config{URL: cfg.RedisURL})
	if err != nil {
		sugar.Fatalw("failed to connect to document store", "error", err)
	}
	defer docs.Close()

	db, err := postgres.NewDB(config.DatabaseConfig{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Name:     cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		sugar.Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	m := metrics.NewMetrics("lalabot", "worker")

	deliveryRepo := docstore.NewDeliveryRepository(docs)
	boardRepo := docstore.NewBoardRepository(docs)
	notificationRepo := docstore.NewNotificationRepository(docs)
	userRepo := docstore.NewUserRepository(docs)
	historyRepo := postgres.NewHistoryRepository(db)

	compartmentSvc := compartmentService.NewService(boardRepo, m)
	deliverySvc := deliveryService.NewService(
		deliveryRepo, historyRepo, notificationRepo, userRepo, compartmentSvc, m,
		logger.New(nil).With().Str("component", "delivery").Logger(),
	)

	driver := worker.NewRobotDriver(deliveryRepo, deliverySvc, worker.RobotDriverConfig{
		PollInterval:  time.Duration(cfg.PollIntervalSeconds) * time.Second,
		StageDuration: time.Duration(cfg.StageDurationSeconds) * time.Second,
	}, sugar)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go driver.Start(ctx)
	sugar.Infow("robot driver started",
		"poll_interval_seconds", cfg.PollIntervalSeconds,
		"stage_duration_seconds", cfg.StageDurationSeconds)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sugar.Info("shutting down")
	cancel()
}
