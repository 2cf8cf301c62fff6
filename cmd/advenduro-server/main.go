package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/neadvenduro/advenduro/internal/api"
	"github.com/neadvenduro/advenduro/internal/config"
	"github.com/neadvenduro/advenduro/internal/database"
	"github.com/neadvenduro/advenduro/internal/logging"
	"github.com/neadvenduro/advenduro/internal/notify"
	"github.com/neadvenduro/advenduro/internal/ratelimit"
	"github.com/neadvenduro/advenduro/internal/realtime"
	"github.com/neadvenduro/advenduro/internal/storage"
)

const nameCheckWindow = time.Minute

// main is the entry point for the registration backend.
func main() {
	// --- 1. Load Configuration ---
	// A .env file is convenient during development; in production the values
	// come from the real environment.
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, using environment variables from the system")
	}

	cfg, err := config.New()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load application configuration")
	}

	flush, err := logging.Setup(cfg.Environment, cfg.LogLevel, cfg.SentryDSN)
	if err != nil {
		logrus.WithError(err).Warn("sentry initialization failed, continuing without error reporting")
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 2. Database ---
	if cfg.DbDriver == database.DriverSQLite {
		if err := os.MkdirAll(cfg.DataPath, 0755); err != nil {
			logrus.WithError(err).WithField("path", cfg.DataPath).Fatal("failed to create data directory")
		}
	}
	dbService, err := database.NewService(cfg.DbDriver, cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize database service")
	}
	defer dbService.Close()

	if err := dbService.InitSchema(ctx); err != nil {
		logrus.WithError(err).Fatal("failed to initialize database schema")
	}
	logrus.WithField("driver", cfg.DbDriver).Info("database schema verified")

	// --- 3. Optional integrations ---
	var presigner api.Presigner
	p, err := storage.New(ctx, storage.OptionsFromConfig(cfg))
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		logrus.Warn("S3_BUCKET not set, file uploads are disabled")
	case err != nil:
		logrus.WithError(err).Fatal("failed to initialize object storage")
	default:
		presigner = p
	}

	var limiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		rl, err := ratelimit.NewRedisLimiter(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "ratelimit:check", cfg.RateLimitNameChecks, nameCheckWindow)
		if err != nil {
			logrus.WithError(err).Warn("redis unavailable, falling back to in-process rate limiting")
		} else {
			defer rl.Close()
			limiter = rl
		}
	}
	if limiter == nil {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitNameChecks, nameCheckWindow)
	}

	var telegram *notify.Telegram
	if cfg.TelegramBotToken != "" && cfg.TelegramAdminChatID != 0 {
		telegram, err = notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramAdminChatID)
		if err != nil {
			logrus.WithError(err).Warn("telegram alerts disabled")
			telegram = nil
		}
	}

	broker := realtime.NewBroker()
	hub := notify.NewHub(broker, telegram)

	// --- 4. API Server and Routes ---
	serverAPI := api.NewServer(cfg, dbService, presigner, broker, hub, limiter)
	router := chi.NewRouter()
	serverAPI.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Open SSE streams end when the signal context is cancelled.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logrus.WithField("addr", cfg.ServerAddr).Info("advenduro server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("graceful shutdown failed")
	}
	hub.Wait()
}
