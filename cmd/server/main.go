package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/hookline/hookline/config"
	"github.com/hookline/hookline/internal/health"
	"github.com/hookline/hookline/internal/infrastructure/postgres"
	ctxlog "github.com/hookline/hookline/internal/log"
	"github.com/hookline/hookline/internal/metrics"
	"github.com/hookline/hookline/internal/notify"
	"github.com/hookline/hookline/internal/scheduler"
	httptransport "github.com/hookline/hookline/internal/transport/http"
	"github.com/hookline/hookline/internal/transport/http/handler"
	"github.com/hookline/hookline/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	scheduleRepo := postgres.NewScheduleRepository(pool)
	logRepo := postgres.NewExecutionLogRepository(pool)

	broadcaster := notify.NewBroadcaster(logger)

	engine := scheduler.NewService(scheduleRepo, logRepo, broadcaster, logger, scheduler.RetryPolicy{
		MaxRetries: cfg.WebhookRetryMax,
		Delay:      cfg.WebhookRetryDelay(),
	})

	scheduleUsecase := usecase.NewScheduleUsecase(scheduleRepo, engine)
	logUsecase := usecase.NewExecutionLogUsecase(logRepo)

	scheduleHandler := handler.NewScheduleHandler(scheduleUsecase, logger)
	logHandler := handler.NewExecutionLogHandler(logUsecase, logger)
	eventsHandler := handler.NewEventsHandler(broadcaster, logger)

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	// Re-arm everything that was live before the last shutdown.
	if err := engine.InitializeFromStore(ctx); err != nil {
		stop()
		log.Fatalf("scheduler init: %v", err)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, scheduleHandler, logHandler, eventsHandler, []byte(cfg.JWTSecret)),
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", "error", err)
		}
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
