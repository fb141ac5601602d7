package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/nailsalon/admin-gate/internal/api/http"
	"github.com/nailsalon/admin-gate/internal/api/http/handlers"
	"github.com/nailsalon/admin-gate/internal/auth"
	"github.com/nailsalon/admin-gate/internal/config"
	"github.com/nailsalon/admin-gate/internal/enrollment"
	"github.com/nailsalon/admin-gate/internal/events"
	"github.com/nailsalon/admin-gate/internal/identity"
	"github.com/nailsalon/admin-gate/internal/notify"
	"github.com/nailsalon/admin-gate/internal/observability"
	"github.com/nailsalon/admin-gate/internal/persistence"
	"github.com/nailsalon/admin-gate/internal/policy"
	"github.com/nailsalon/admin-gate/internal/proxy"
	"github.com/nailsalon/admin-gate/internal/repository"
	"github.com/nailsalon/admin-gate/internal/service"
	"github.com/nailsalon/admin-gate/internal/worker"
)

func main() {
	issueKey := flag.String("issue-key", "", "print a project API key for role anon or service_role and exit")
	keyTTL := flag.Duration("key-ttl", 0, "lifetime of the issued key; zero never expires")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if *issueKey != "" {
		key, err := auth.NewTokenManager(cfg.Auth.JWTSecret).IssueKey(auth.ProjectRole(*issueKey), *keyTTL)
		if err != nil {
			log.Fatalf("failed to issue key: %v", err)
		}
		fmt.Println(key)
		return
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

	pool := pg.PoolHandle()
	if pool == nil {
		logger.Fatal("the admin proxy needs POSTGRES_DSN")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	allowlistRepo := repository.NewAllowlistRepository(pool)
	staffRepo := repository.NewStaffRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)
	accessLogRepo := repository.NewAccessLogRepository(pool)

	notificationService := service.NewNotificationService(dispatcher, logger,
		service.Channel{
			Sender:    notify.NewLineSender("", cfg.Notification.LineChannelToken),
			Recipient: cfg.Notification.LineManagerUserID,
		},
		service.Channel{
			Sender: notify.NewTwilioSender("", cfg.Notification.TwilioAccountSID,
				cfg.Notification.TwilioAuthToken, cfg.Notification.TwilioFromNumber),
			Recipient: cfg.Notification.TwilioManagerNumber,
		},
	)
	accessLogService := service.NewAccessLogService(dispatcher, accessLogRepo, settingsRepo, logger)
	worker.StartNotificationWorker(notificationService, accessLogService)

	gate := enrollment.NewGate(enrollment.Dependencies{
		Allowlist:  allowlistRepo,
		Managers:   staffRepo,
		Limiter:    enrollment.NewRedisLimiter(redis.Client, cfg.Enrollment.MaxAttempts, cfg.Enrollment.Window()),
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	adminProxy := proxy.New(proxy.Dependencies{
		Registry:   policy.Default(),
		Resolver:   identity.NewResolver(allowlistRepo, staffRepo, logger),
		Store:      repository.NewTableStore(pool),
		Bootstrap:  gate,
		Dispatcher: dispatcher,
		Recorder:   metrics,
		Logger:     logger,
	})

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	var apiKeys *auth.APIKeyMiddleware
	if cfg.Auth.JWTSecret != "" {
		apiKeys = auth.NewAPIKeyMiddleware(auth.NewTokenManager(cfg.Auth.JWTSecret), cfg.Auth.RequireAPIKey)
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Proxy:          handlers.NewProxyHandler(adminProxy, logger),
		AuthMiddleware: apiKeys,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
