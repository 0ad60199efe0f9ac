package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk/internal/api/http"
	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/notification"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/worker"
	"github.com/spec-kit/helpdesk/internal/workflow"
)

type queueBackend interface {
	notification.Queue
	notification.Consumer
}

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

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.App.Name, cfg.App.Version, cfg.Tracing, logger)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}

	dependencies := map[string]handlers.Pinger{}

	var (
		tickets repository.TicketRepository
		users   repository.UserRepository
	)
	if cfg.Postgres.DSN != "" {
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()

		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(pg.PoolHandle(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		tickets = repository.NewTicketRepository(pg.PoolHandle())
		users = repository.NewUserRepository(pg.PoolHandle())
		dependencies["postgres"] = pg
	} else {
		logger.Warn("POSTGRES_DSN not set, using in-memory storage")
		tickets = repository.NewMemoryStore()
		users = repository.NewMemoryUsers()
	}

	var queue queueBackend
	switch cfg.Notification.Backend {
	case config.NotificationBackendRedis:
		redis := persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		queue = notification.NewRedisQueue(redis.Client, cfg.Notification.RedisListKey, logger)
		dependencies["redis"] = redis
	case config.NotificationBackendRabbitMQ:
		rabbit, err := notification.NewRabbitQueue(cfg.Notification.RabbitURL, cfg.Notification.RabbitExchange, logger)
		if err != nil {
			logger.Fatal("failed to connect rabbitmq", zap.Error(err))
		}
		defer rabbit.Close() //nolint:errcheck
		queue = rabbit
	default:
		queue = notification.NewMemoryQueue(logger)
	}

	metrics := observability.NewMetrics()
	directory := auth.NewDirectory(users, cfg.Workflow.DirectoryCacheTTL(), logger)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	ticketService := service.NewTicketService(service.TicketDependencies{
		Engine:     workflow.NewEngine(),
		TicketRepo: tickets,
		Queue:      queue,
		Metrics:    metrics,
		Logger:     logger,
	})

	deliverer := notification.NewDeliverer(users, cfg.Notification, logger)
	worker.NewNotificationWorker(queue, deliverer, logger).Start(ctx)
	sweeper := worker.NewAttachmentSweeper(tickets, cfg.Workflow.PendingAttachmentMaxAgeHours, cfg.Workflow.SweepInterval(), logger)
	go sweeper.Run(ctx)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies, metrics),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Attachments:    handlers.NewAttachmentsHandler(ticketService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, directory),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
