package app

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"telnyx-webhooks/internal/common/logging"
	"telnyx-webhooks/internal/metrics"
	"telnyx-webhooks/internal/middleware"
	"telnyx-webhooks/internal/webhook"
)

// Handler builds the HTTP routes:
//
//	POST {WEBHOOK_PATH}  verified webhook deliveries
//	GET  /health         liveness and redis health
//	GET  /metrics        Prometheus metrics
func (app *App) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.RequestID, middleware.Logging(app.Logger))

	verified := middleware.VerifyWebhook(middleware.VerifyOptions{
		Verifier: app.Verifier,
		Guard:    app.Guard,
		Metrics:  app.Metrics,
		Logger:   app.Logger,
	})
	webhooks := middleware.CaptureRawBody(app.Config.MaxBodyBytes)(verified(app.Dispatcher))
	router.Handle(app.Config.WebhookPath, webhooks).Methods(http.MethodPost)

	router.HandleFunc("/health", app.healthCheck).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler(app.Registry)).Methods(http.MethodGet)

	return router
}

func (app *App) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	result := map[string]interface{}{
		"status": "healthy",
		"replay": app.Guard != nil,
	}

	if app.RedisClient != nil {
		if err := app.RedisClient.Health(); err != nil {
			status = http.StatusServiceUnavailable
			result["status"] = "unhealthy"
			result["redis"] = err.Error()
		} else {
			result["redis"] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(result)
}

// logEvent is the default handler: it records the delivery and accepts it
func (app *App) logEvent(ctx context.Context, event *webhook.Event) error {
	app.Logger.WithContext(ctx).Info("Webhook event received",
		logging.String("event_type", event.EventType),
		logging.String("event_id", event.ID),
		logging.Any("occurred_at", event.OccurredAt),
		logging.Int("bytes", len(event.Raw)),
	)
	return nil
}
