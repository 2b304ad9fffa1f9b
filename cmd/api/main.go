package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/estate-ops/internal/api/http"
	"github.com/spec-kit/estate-ops/internal/api/http/handlers"
	"github.com/spec-kit/estate-ops/internal/auth"
	"github.com/spec-kit/estate-ops/internal/config"
	"github.com/spec-kit/estate-ops/internal/directory"
	"github.com/spec-kit/estate-ops/internal/events"
	"github.com/spec-kit/estate-ops/internal/notify"
	"github.com/spec-kit/estate-ops/internal/observability"
	"github.com/spec-kit/estate-ops/internal/persistence"
	"github.com/spec-kit/estate-ops/internal/repository"
	"github.com/spec-kit/estate-ops/internal/service"
	"github.com/spec-kit/estate-ops/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	store := repository.NewStore(pg.PoolHandle())
	dir := directory.NewService(store.Staff(), store.Residents())
	metrics := observability.NewMetrics()

	dispatcher := events.NewInMemoryDispatcher(logger)
	auditLogger := service.NewAuditLogger()

	matcher := service.NewMatcherService(store)
	requests := service.NewRequestService(store, dir, auditLogger, dispatcher, logger)
	lifecycle := service.NewLifecycleService(store, dir, auditLogger, dispatcher, logger)
	assignments := service.NewAssignmentService(store, dir, matcher, auditLogger, dispatcher, logger, cfg.Assignment.MaxConcurrent)

	notifications := service.NewNotificationService(store, dir, logger)
	notifications.Register(dispatcher)

	streamPublisher := notify.NewRedisEventPublisher(redis.Client, cfg.Notification.EventChannel, logger)
	streamPublisher.Register(dispatcher)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	identity := service.NewIdentityService(store, tokens, cfg.Auth.BcryptCost, logger)
	authMiddleware := auth.NewAuthMiddleware(tokens, store.Residents(), store.Staff())

	emailSender := notify.NewLogEmailSender(cfg.Notification.EmailFrom, logger)
	smsSender := notify.NewLogSMSSender(logger)
	inbox := notify.NewRedisInboxWriter(redis.Client, cfg.Notification.InboxMaxLen)

	delivery := worker.NewDeliveryWorker(store, dir, emailSender, smsSender, inbox, logger, cfg.Delivery)
	escalation := worker.NewEscalationWorker(store, dispatcher, logger, cfg.Escalation)
	relay := worker.NewOutboxRelay(store, dispatcher, logger, cfg.Outbox)
	go delivery.Run(ctx)
	go escalation.Run(ctx)
	go relay.Run(ctx)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(identity),
		Requests:       handlers.NewRequestsHandler(requests, lifecycle, assignments),
		Staff:          handlers.NewStaffHandler(requests, dir),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
