// Package app wires configuration, verification, replay protection, metrics
// and event dispatch into a runnable webhook receiver.
package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"telnyx-webhooks/internal/common/logging"
	"telnyx-webhooks/internal/config"
	"telnyx-webhooks/internal/metrics"
	"telnyx-webhooks/internal/redis"
	"telnyx-webhooks/internal/replay"
	"telnyx-webhooks/internal/signature"
	"telnyx-webhooks/internal/webhook"
)

// App holds all the application dependencies
type App struct {
	Config      *config.Config
	Verifier    *signature.Verifier
	Guard       *replay.Guard
	Registry    *prometheus.Registry
	Metrics     *metrics.Recorder
	Dispatcher  *webhook.Dispatcher
	RedisClient *redis.Client
	Logger      logging.Logger
}

// New creates a new application instance with all dependencies. The
// configuration must already be validated.
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.WithFields(logging.String("component", "app")),
	}

	app.Verifier = signature.NewVerifier(cfg.Signature(),
		signature.WithLogger(logging.WithFields(logging.String("component", "signature"))),
	)

	if err := app.initializeMetrics(); err != nil {
		return nil, err
	}

	if err := app.initializeReplay(); err != nil {
		app.Cleanup()
		return nil, err
	}

	app.Dispatcher = webhook.NewDispatcher(app.Logger)
	app.Dispatcher.Fallback(app.logEvent)

	return app, nil
}

func (app *App) initializeMetrics() error {
	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	recorder, err := metrics.NewRecorder(app.Registry)
	if err != nil {
		return err
	}
	app.Metrics = recorder
	return nil
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}
