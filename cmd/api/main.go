package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/visitflow/visitflow/internal/config"
	"github.com/visitflow/visitflow/internal/handler"
	"github.com/visitflow/visitflow/internal/infra/postgresql"
	"github.com/visitflow/visitflow/internal/infra/postgresql/migrations"
	infraredis "github.com/visitflow/visitflow/internal/infra/redis"
	"github.com/visitflow/visitflow/internal/observability"
	"github.com/visitflow/visitflow/internal/provider"
	"github.com/visitflow/visitflow/internal/queue"
	"github.com/visitflow/visitflow/internal/repository"
	"github.com/visitflow/visitflow/internal/service"
	"github.com/visitflow/visitflow/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	claims, err := infraredis.NewClaimLock(rdb, 0)
	if err != nil {
		logger.Fatal("claim lock initialization failed", zap.Error(err))
	}

	requestRepo := repository.NewGormRequestRepo(db)
	notificationRepo := repository.NewGormNotificationRepo(db)
	blacklistRepo := repository.NewGormBlacklistRepo(db)
	userRepo := repository.NewGormUserRepo(db)
	settingsRepo := repository.NewGormSettingsRepo(db)

	// RabbitMQ is optional: without a broker every dispatch falls back to
	// in-process processing.
	var publisher queue.Publisher
	var consumer queue.Consumer
	if cfg.RabbitMQURL != "" {
		mq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatal("rabbitmq initialization failed", zap.Error(err))
		}
		defer mq.Close()

		publisher = queue.NewRabbitMQPublisher(mq)
		consumer = queue.NewRabbitMQConsumer(mq, cfg.WorkerConcurrency, logger)
	} else {
		logger.Warn("RABBITMQ_URL not set, dispatch processing runs in-process")
	}

	metrics := observability.NewMetrics()

	env := provider.Env{
		SMTPHost:         cfg.SMTPHost,
		SMTPPort:         cfg.SMTPPort,
		SMTPUser:         cfg.SMTPUser,
		SMTPPassword:     cfg.SMTPPassword,
		EmailFrom:        cfg.EmailFrom,
		ResendAPIKey:     cfg.ResendAPIKey,
		SESRegion:        cfg.SESRegion,
		SNSRegion:        cfg.SNSRegion,
		SMSBaseURL:       cfg.SMSBaseURL,
		SMSAPIKey:        cfg.SMSAPIKey,
		TwilioAccountSID: cfg.TwilioAccountSID,
		TwilioAuthToken:  cfg.TwilioAuthToken,
		TwilioFrom:       cfg.TwilioFrom,
	}

	dispatcher, err := service.NewDispatchService(
		notificationRepo,
		settingsRepo,
		claims,
		publisher,
		consumer,
		env,
		cfg.WorkerConcurrency,
		logger,
	)
	if err != nil {
		logger.Fatal("dispatch service initialization failed", zap.Error(err))
	}
	dispatcher.SetMetrics(metrics)

	events, err := service.NewEventService(
		userRepo,
		notificationRepo,
		requestRepo,
		dispatcher,
		cfg.SecurityPhones(),
		logger,
	)
	if err != nil {
		logger.Fatal("event service initialization failed", zap.Error(err))
	}
	events.SetMetrics(metrics)

	workflow, err := service.NewWorkflowService(requestRepo, blacklistRepo, events, dispatcher, logger)
	if err != nil {
		logger.Fatal("workflow service initialization failed", zap.Error(err))
	}
	workflow.SetMetrics(metrics)

	scanner, err := service.NewReminderScanner(
		events,
		settingsRepo,
		time.Duration(cfg.ReminderScanInterval)*time.Second,
		logger,
	)
	if err != nil {
		logger.Fatal("reminder scanner initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterRequestRoutes(app, workflow, settingsRepo); err != nil {
		logger.Fatal("request routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterNotificationRoutes(app, notificationRepo); err != nil {
		logger.Fatal("notification routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterJobRoutes(app, dispatcher, events, settingsRepo, cfg.DispatchSecret); err != nil {
		logger.Fatal("job routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterPanicRoutes(app, events, settingsRepo); err != nil {
		logger.Fatal("panic routes registration failed", zap.Error(err))
	}

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("visitflow api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	if consumer != nil {
		g.Go(func() error {
			return dispatcher.Start(groupCtx)
		})
	}

	g.Go(func() error {
		return scanner.Start(groupCtx)
	})

	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Error("shutdown with error", zap.Error(err))
	}
}
