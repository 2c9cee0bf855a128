package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iliyamo/cms-backend/internal/auth"
	"github.com/iliyamo/cms-backend/internal/config"
	"github.com/iliyamo/cms-backend/internal/database"
	"github.com/iliyamo/cms-backend/internal/handler"
	"github.com/iliyamo/cms-backend/internal/metrics"
	"github.com/iliyamo/cms-backend/internal/middleware"
	"github.com/iliyamo/cms-backend/internal/oauth"
	"github.com/iliyamo/cms-backend/internal/queue"
	"github.com/iliyamo/cms-backend/internal/repository"
	"github.com/iliyamo/cms-backend/internal/router"
	"github.com/iliyamo/cms-backend/internal/service"
)

func main() {
	_ = godotenv.Load() // a missing .env is fine; real deployments use the environment
	cfg := config.Load()
	logger := newLogger(cfg.IsProduction())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Error("database open failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = database.Migrate(migrateCtx, db)
	cancel()
	if err != nil {
		logger.Error("database migrate failed", "err", err)
		os.Exit(1)
	}

	authMetrics := metrics.NewAuth(prometheus.DefaultRegisterer)
	deps := auth.Deps{
		Users:    repository.NewUserRepo(db),
		Roles:    repository.NewRoleRepo(db),
		Profiles: repository.NewProfileRepo(db),
		Tokens:   repository.NewTokenRepo(db),
		Metrics:  authMetrics,
		Logger:   logger,
	}
	if cfg.GoogleClientID != "" {
		deps.Identity = oauth.NewGoogleVerifier(cfg.GoogleClientID)
	}
	if cfg.RabbitURL != "" {
		pub := service.NewAMQPPublisher(cfg.RabbitURL, logger)
		defer pub.Close()
		deps.Events = pub
		if cfg.AuditConsumerEnabled {
			consumer := &queue.AuditConsumer{URL: cfg.RabbitURL, Dir: cfg.AuditLogDir, Log: logger}
			go consumer.Run(ctx)
		}
	}
	if cfg.BypassEnabled && cfg.IsProduction() {
		logger.Warn("AUTH_BYPASS_ENABLED ignored in production")
	}
	svc := auth.NewService(auth.Config{
		Secret:     cfg.JWTSecret,
		Production: cfg.IsProduction(),
		Bypass: auth.BypassConfig{
			Enabled:  cfg.BypassEnabled,
			Sentinel: cfg.BypassSentinel,
			Password: cfg.BypassPassword,
		},
		AdminEmails:        cfg.AdminEmails,
		RevokeChainOnReuse: cfg.RevokeChainOnReuse,
	}, deps)

	var guards router.Guards
	redisCfg := config.LoadRedisConfig()
	if rdb, err := config.NewRedisClient(ctx, redisCfg); err == nil {
		defer rdb.Close()
		guards.RateLimit = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger)
		guards.Cache = middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	} else {
		logger.Warn("redis unavailable; rate limiting and caching disabled", "redis", redisCfg.String(), "err", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(requestLogger(logger))
	router.RegisterRoutes(e, db, metrics.Handler(prometheus.DefaultGatherer))
	authHandler := handler.NewAuthHandler(svc, cfg.IsProduction(), logger)
	authHandler.Metrics = authMetrics
	router.RegisterAuth(e, authHandler, cfg.JWTSecret, guards)

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
}

// newLogger returns a JSON logger in production and a text logger with
// debug level elsewhere.
func newLogger(production bool) *slog.Logger {
	if production {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			level := slog.LevelInfo
			if v.Error != nil {
				level = slog.LevelError
				attrs = append(attrs, slog.String("err", v.Error.Error()))
			}
			logger.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}
