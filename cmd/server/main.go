package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/apiplatform/backend/internal/application/admission"
	appbilling "github.com/apiplatform/backend/internal/application/billing"
	appidentity "github.com/apiplatform/backend/internal/application/identity"
	"github.com/apiplatform/backend/internal/application/keys"
	"github.com/apiplatform/backend/internal/application/metering"
	"github.com/apiplatform/backend/internal/infrastructure/auth"
	"github.com/apiplatform/backend/internal/infrastructure/config"
	"github.com/apiplatform/backend/internal/infrastructure/logger"
	"github.com/apiplatform/backend/internal/infrastructure/persistence"
	"github.com/apiplatform/backend/internal/infrastructure/ratelimit"
	"github.com/apiplatform/backend/internal/infrastructure/scheduler"
	"github.com/apiplatform/backend/internal/infrastructure/telemetry"
	"github.com/apiplatform/backend/internal/interfaces/http/handler"
	"github.com/apiplatform/backend/internal/interfaces/http/router"
)

// version is set at build time via -ldflags
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("Starting API platform",
		zap.String("version", version),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port))

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	userRepo := persistence.NewGormUserRepository(db.DB)
	keyRepo := persistence.NewGormAPIKeyRepository(db.DB)
	planRepo := persistence.NewGormPlanRepository(db.DB)
	subscriptionRepo := persistence.NewGormSubscriptionRepository(db.DB)
	usageEventRepo := persistence.NewGormUsageEventRepository(db.DB)

	var limiter ratelimit.Limiter
	if cfg.Redis.Enabled {
		redisLimiter, err := ratelimit.NewRedisLimiter(cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		limiter = redisLimiter
		log.Info("Rate limiter backed by Redis", zap.String("addr", cfg.Redis.Addr()))
	} else {
		limiter = ratelimit.NewMemoryLimiter()
		log.Info("Rate limiter running in-process; per-minute windows are per instance")
	}

	metrics := telemetry.NewMetrics()

	jwtService := auth.NewJWTService(cfg.JWT)
	quotaService := appbilling.NewQuotaService(subscriptionRepo, planRepo, cfg.Quota, log.Named("quota").Logger)
	admissionService := admission.NewService(keyRepo, userRepo, quotaService, limiter, metrics, log.Named("admission").Logger)

	recorder := metering.NewRecorder(metering.RecorderConfig{
		BufferSize:    cfg.Metering.BufferSize,
		BatchSize:     cfg.Metering.BatchSize,
		FlushInterval: cfg.Metering.FlushInterval,
	}, usageEventRepo, log.Named("metering").Logger, metrics)
	recorder.Start()

	authService := appidentity.NewAuthService(userRepo, jwtService)
	userService := appidentity.NewUserService(userRepo, keyRepo, log.Named("users").Logger)
	keyService := keys.NewService(keyRepo)
	planService := appbilling.NewPlanService(planRepo)
	subscriptionService := appbilling.NewSubscriptionService(subscriptionRepo, planRepo)
	statsService := metering.NewStatsService(usageEventRepo)

	var sweeper *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sweeper, err = scheduler.New(cfg.Scheduler, subscriptionRepo, usageEventRepo, metrics, log.Named("scheduler").Logger)
		if err != nil {
			log.Fatal("Failed to build scheduler", zap.Error(err))
		}
		sweeper.Start()
	}

	engine := router.New(router.Handlers{
		Health:       handler.NewHealthHandler(db, version),
		Auth:         handler.NewAuthHandler(authService),
		APIKey:       handler.NewAPIKeyHandler(keyService),
		Plan:         handler.NewPlanHandler(planService),
		Subscription: handler.NewSubscriptionHandler(subscriptionService),
		Usage:        handler.NewUsageHandler(statsService),
		Admin:        handler.NewAdminHandler(userService, keyService),
		Service:      handler.NewServiceHandler(),
	}, router.Dependencies{
		Config:     cfg,
		Logger:     log.Logger,
		JWTService: jwtService,
		Admission:  admissionService,
		Recorder:   recorder,
		Metrics:    metrics,
	})

	server := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}
	if sweeper != nil {
		sweeper.Stop()
	}
	if err := recorder.Stop(ctx); err != nil {
		log.Error("Usage recorder drain incomplete", zap.Error(err))
	}

	log.Info("Server stopped")
}
