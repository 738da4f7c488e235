package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CandyToyBox/AllowanceApp/internal/amqp"
	"github.com/CandyToyBox/AllowanceApp/internal/config"
	"github.com/CandyToyBox/AllowanceApp/internal/database"
	"github.com/CandyToyBox/AllowanceApp/internal/events"
	"github.com/CandyToyBox/AllowanceApp/internal/logging"
	"github.com/CandyToyBox/AllowanceApp/internal/metrics"
	"github.com/CandyToyBox/AllowanceApp/internal/server"
	"github.com/CandyToyBox/AllowanceApp/internal/upload"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	storage, err := uploadStorage(cfg)
	if err != nil {
		return err
	}

	var publishers []events.Publisher
	if cfg.AMQP.URL != "" {
		pub, err := amqp.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange, logger.With("component", "amqp"))
		if err != nil {
			return err
		}
		defer pub.Close()
		publishers = append(publishers, pub)
		logger.Info("publishing events", "exchange", cfg.AMQP.Exchange)
	}

	srv := server.New(db, server.Options{
		Uploads:        storage,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		Publishers:     publishers,
		Metrics:        metrics.New(),
		SessionTTL:     cfg.Session.TTL.Duration,
		LoginLimit:     cfg.RateLimit.LoginAttempts,
		LoginWindow:    cfg.RateLimit.LoginWindow.Duration,
		OriginPatterns: cfg.WebSocket.OriginPatterns,
	}, logger)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Session.CleanupSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, limits, err := srv.Cleanup(ctx)
		if err != nil {
			logger.Error("session cleanup", "error", err, "rate_limits", limits)
			return
		}
		logger.Debug("cleanup", "sessions", n, "rate_limits", limits)
	}); err != nil {
		return fmt.Errorf("schedule cleanup %q: %w", cfg.Session.CleanupSchedule, err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("allowance server listening", "addr", httpServer.Addr, "db", cfg.Database.Driver, "uploads", cfg.Upload.Backend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		scheduler.Start()
		<-ctx.Done()
		<-scheduler.Stop().Done()

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func uploadStorage(cfg *config.Config) (upload.Storage, error) {
	if cfg.Upload.Backend == "s3" {
		return upload.NewS3(upload.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PublicURL: cfg.S3.PublicURL,
			Prefix:    cfg.S3.Prefix,
		}), nil
	}
	local, err := upload.NewLocal(cfg.Upload.Dir)
	if err != nil {
		return nil, err
	}
	return local, nil
}
