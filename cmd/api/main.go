package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/facezhuk/internal/api/http"
	"github.com/spec-kit/facezhuk/internal/api/http/handlers"
	"github.com/spec-kit/facezhuk/internal/auth"
	"github.com/spec-kit/facezhuk/internal/auth/social"
	"github.com/spec-kit/facezhuk/internal/config"
	"github.com/spec-kit/facezhuk/internal/events"
	"github.com/spec-kit/facezhuk/internal/mail"
	"github.com/spec-kit/facezhuk/internal/observability"
	"github.com/spec-kit/facezhuk/internal/persistence"
	"github.com/spec-kit/facezhuk/internal/ratelimit"
	"github.com/spec-kit/facezhuk/internal/realtime"
	"github.com/spec-kit/facezhuk/internal/repository"
	"github.com/spec-kit/facezhuk/internal/repository/memory"
	"github.com/spec-kit/facezhuk/internal/service"
	"github.com/spec-kit/facezhuk/internal/worker"
)

const notificationQueueSize = 256

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger,
		zap.String("service", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", cfg.App.Version))
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	displayAppname(cfg.App.Name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	users, notificationStore := repositories(pg, logger)

	codec, err := auth.NewCodec(cfg.Auth.JWTSecret, cfg.Auth.JWTAlgorithm)
	if err != nil {
		logger.Fatal("failed to build token codec", zap.Error(err))
	}
	tokens := auth.NewTokenService(codec, cfg.Auth.AccessTTL(), cfg.Auth.RefreshTTL())

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Users:       users,
		Tokens:      tokens,
		Credentials: auth.NewCredentials(cfg.Auth.BcryptCost, cfg.Auth.TOTPIssuer),
		Social:      socialAdapters(cfg.Social, logger),
		Mailer:      mail.NewLogMailer(cfg.Notification.EmailFrom, logger),
		Metrics:     metrics,
		Logger:      logger,
	})

	registry := realtime.NewRegistry(tokens, logger,
		realtime.WithObserver(metrics),
		realtime.WithSendTimeout(cfg.Realtime.WriteTimeout()))
	gateway := realtime.NewGateway(registry, logger, cfg.Realtime.OriginPatterns, cfg.Realtime.WriteTimeout())

	notificationWorker := worker.NewNotificationWorker(events.NewInMemoryDispatcher(), notificationQueueSize, logger)
	notificationService := service.NewNotificationService(notificationWorker, notificationStore, users, registry, logger)
	workerDone := worker.StartNotificationWorker(ctx, notificationService, notificationWorker)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(redis.Client(), logger)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	deps := map[string]handlers.Pinger{}
	if pg.PoolHandle() != nil {
		deps["postgres"] = pg
	}
	if limiter != nil {
		deps["redis"] = redis
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Auth:           handlers.NewAuthHandler(authService, cfg.Auth.SecureCookies),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Limiter:        limiter,
		Metrics:        metrics.Handler(),
	})

	realtimeServer := &http.Server{
		Addr:              cfg.Realtime.Addr(cfg.App.Host),
		Handler:           gateway.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("realtime listening", zap.String("addr", realtimeServer.Addr))
		if err := realtimeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("realtime listen", zap.Error(err))
		}
	}()

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := realtimeServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("realtime shutdown", zap.Error(err))
	}
	_ = app.ShutdownWithContext(shutdownCtx)

	// Stores must stay open until accepted notifications are delivered.
	cancel()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("notification queue not drained before shutdown deadline")
	}
}

// repositories picks postgres-backed stores when a pool is available and
// falls back to process memory otherwise.
func repositories(pg *persistence.Postgres, logger *zap.Logger) (repository.UserRepository, repository.NotificationRepository) {
	if pool := pg.PoolHandle(); pool != nil {
		return repository.NewUserRepository(pool), repository.NewNotificationRepository(pool)
	}
	logger.Warn("using in-memory repositories; data is lost on restart")
	return memory.NewUsers(), memory.NewNotifications()
}

func socialAdapters(cfg config.SocialConfig, logger *zap.Logger) *social.Adapters {
	adapters := map[social.Provider]social.Adapter{}
	if cfg.Google.ClientID != "" {
		adapters[social.ProviderGoogle] = social.NewGoogle(cfg.Google)
	}
	if cfg.Facebook.ClientID != "" {
		adapters[social.ProviderFacebook] = social.NewFacebook(cfg.Facebook)
	}
	logger.Info("social providers configured", zap.Int("count", len(adapters)))
	return social.NewAdapters(adapters)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

func displayAppname(appname string) {
	figure.NewFigure(appname, "cybermedium", true).Print()
	fmt.Println()
}
