package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/lalabot/delivery-api/internal/config"
	"github.com/lalabot/delivery-api/internal/email"
	adminHandler "github.com/lalabot/delivery-api/internal/handler/admin"
	authHandler "github.com/lalabot/delivery-api/internal/handler/auth"
	deliveryHandler "github.com/lalabot/delivery-api/internal/handler/delivery"
	healthHandler "github.com/lalabot/delivery-api/internal/handler/health"
	notificationHandler "github.com/lalabot/delivery-api/internal/handler/notification"
	userHandler "github.com/lalabot/delivery-api/internal/handler/user"
	"github.com/lalabot/delivery-api/internal/imagehost"
	"github.com/lalabot/delivery-api/internal/middleware"
	"github.com/lalabot/delivery-api/internal/model"
	"github.com/lalabot/delivery-api/internal/repository/docstore"
	"github.com/lalabot/delivery-api/internal/repository/postgres"
	"github.com/lalabot/delivery-api/internal/router"
	analyticsService "github.com/lalabot/delivery-api/internal/service/analytics"
	authService "github.com/lalabot/delivery-api/internal/service/auth"
	compartmentService "github.com/lalabot/delivery-api/internal/service/compartment"
	deliveryService "github.com/lalabot/delivery-api/internal/service/delivery"
	notificationService "github.com/lalabot/delivery-api/internal/service/notification"
	userService "github.com/lalabot/delivery-api/internal/service/user"
	redisStore "github.com/lalabot/delivery-api/internal/store/redis"
	jwtauth "github.com/lalabot/delivery-api/pkg/auth"
	"github.com/lalabot/delivery-api/pkg/logger"
	redisBroker "github.com/lalabot/delivery-api/pkg/messaging/redis"
	"github.com/lalabot/delivery-api/pkg/metrics"
	"github.com/lalabot/delivery-api/pkg/security"
)

func main() {
	log := logger.New(nil)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	m := metrics.NewMetrics("lalabot", "api")

	docs, err := redisStore.NewStore(redisStore.Config{
		URL:          cfg.Redis.URL,
		OpTimeout:    time.Duration(cfg.Redis.OpTimeoutSeconds) * time.Second,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		Metrics:      m,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to document store")
	}
	defer docs.Close()

	deliveryRepo := docstore.NewDeliveryRepository(docs)
	boardRepo := docstore.NewBoardRepository(docs)
	notificationRepo := docstore.NewNotificationRepository(docs)
	userRepo := docstore.NewUserRepository(docs)
	historyRepo := postgres.NewHistoryRepository(db)

	jwtSvc := jwtauth.NewJWTService(jwtauth.JWTConfig{
		Secret:             cfg.JWT.Secret,
		RefreshSecret:      cfg.JWT.RefreshSecret,
		ExpiryHours:        cfg.JWT.ExpiryHours,
		RefreshExpiryHours: cfg.JWT.RefreshExpiryHours,
	})
	hasher := security.NewBcryptHasher(0)
	emailSvc := email.NewSMTPService(email.Config{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	})
	uploader := imagehost.NewClient(imagehost.Config{
		Endpoint: cfg.ImageHost.Endpoint,
		APIKey:   cfg.ImageHost.APIKey,
		Timeout:  time.Duration(cfg.ImageHost.TimeoutSeconds) * time.Second,
	})

	compartmentSvc := compartmentService.NewService(boardRepo, m)
	deliverySvc := deliveryService.NewService(
		deliveryRepo, historyRepo, notificationRepo, userRepo, compartmentSvc, m,
		log.With().Str("component", "delivery").Logger(),
	)
	authSvc := authService.NewService(userRepo, jwtSvc, hasher, emailSvc,
		log.With().Str("component", "auth").Logger())
	userSvc := userService.NewService(userRepo, uploader)
	analyticsSvc := analyticsService.NewService(deliveryRepo, historyRepo, userRepo, compartmentSvc)

	broker, err := redisBroker.NewRedisBroker(redisBroker.Config{URL: cfg.Redis.URL}, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to message broker")
	}
	defer broker.Close()

	// Surfaced alerts go out on per-user pub/sub channels so push gateways
	// can fan them out to devices.
	alertSink := notificationService.SinkFunc(func(ctx context.Context, alert *model.Alert) error {
		return broker.Publish(ctx, "alerts:"+alert.UserID, alert)
	})

	supervisor := notificationService.NewSupervisor(
		userRepo, notificationRepo, alertSink,
		notificationService.SupervisorConfig{
			PollInterval: cfg.Dispatcher.PollInterval(),
			Refresh:      cfg.Dispatcher.Refresh(),
		},
		m, log.With().Str("component", "dispatcher").Logger(),
	)

	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()
	go supervisor.Start(dispatchCtx)

	authMw := middleware.NewAuthMiddleware(authSvc)

	r := router.NewRouter(
		authMw,
		healthHandler.NewHandler(db, docs),
		authHandler.NewHandler(authSvc),
		router.Config{
			RateLimit: rate.Limit(cfg.RateLimit.RPS),
			RateBurst: cfg.RateLimit.Burst,
			Timeout:   time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
			CORS:      middleware.DefaultCORSConfig(),
		},
		deliveryHandler.NewHandler(deliverySvc, compartmentSvc),
		notificationHandler.NewHandler(notificationRepo),
		userHandler.NewHandler(userSvc),
		adminHandler.NewHandler(analyticsSvc, cfg.Admin.Emails),
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")
	stopDispatch()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
