package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"telnyx-webhooks/internal/common/logging"
	"telnyx-webhooks/internal/config"
	"telnyx-webhooks/internal/server"
)

// Run is the main entry point for the webhook receiver
func Run() error {
	// Load environment variables
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("Failed to load configuration", err)
		return err
	}

	if _, err := logging.InitGlobalLogger(cfg.LogLevel, cfg.LogJSON); err != nil {
		return err
	}
	defer logging.MustSync()

	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	logging.Debug("Configuration loaded",
		logging.Int64("tolerance_seconds", cfg.ToleranceSeconds),
		logging.Int64("max_body_bytes", cfg.MaxBodyBytes),
		logging.Bool("replay_enabled", cfg.ReplayEnabled),
		logging.String("replay_backend", cfg.ReplayBackend),
	)

	if cfg.PublicKey == "" {
		logging.Warn("TELNYX_PUBLIC_KEY is not set; every delivery will be rejected")
	}

	app, err := New(cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}
	defer app.Cleanup()

	srv := server.New(app.Handler(), server.Config{
		Port:    cfg.Port,
		TLSCert: cfg.TLSCert,
		TLSKey:  cfg.TLSKey,
	}, app.Logger)
	if err := srv.Start(); err != nil {
		logging.Error("Server failed to start", err)
		return err
	}

	logging.Info("Webhook receiver started",
		logging.String("port", cfg.Port),
		logging.String("path", cfg.WebhookPath),
	)

	// Wait for interrupt signal or a fatal serve error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-srv.Errors():
		if err != nil {
			logging.Error("Server stopped unexpectedly", err)
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", err)
		return err
	}

	logging.Info("Server exited")
	return nil
}
