package webhook

import (
	"context"
	"io"
	"net/http"
	"sync"

	"telnyx-webhooks/internal/common/errors"
	"telnyx-webhooks/internal/common/logging"
	"telnyx-webhooks/internal/signature"
)

// HandlerFunc processes one verified event
type HandlerFunc func(ctx context.Context, event *Event) error

// Dispatcher routes verified webhook bodies to handlers by event type. It is
// safe to register handlers while serving.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	fallback HandlerFunc
	logger   logging.Logger
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher(logger logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// On registers h for eventType, replacing any earlier handler
func (d *Dispatcher) On(eventType string, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = h
}

// Fallback registers a handler for event types without their own handler
func (d *Dispatcher) Fallback(h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallback = h
}

// EventTypes returns the registered event types
func (d *Dispatcher) EventTypes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	types := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, t)
	}
	return types
}

func (d *Dispatcher) handler(eventType string) HandlerFunc {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if h, ok := d.handlers[eventType]; ok {
		return h
	}
	return d.fallback
}

// Dispatch runs the handler for event. Events nobody handles are logged and
// dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, event *Event) error {
	h := d.handler(event.EventType)
	if h == nil {
		d.logger.WithContext(ctx).Info("No handler for webhook event",
			logging.String("event_type", event.EventType),
			logging.String("event_id", event.ID),
		)
		return nil
	}

	if err := h(ctx, event); err != nil {
		return errors.InternalError("webhook handler failed", err).
			WithContext("event_type", event.EventType)
	}
	return nil
}

// ServeHTTP decodes the captured body and dispatches it. It must run behind
// signature verification; the body is read from the request context when
// present and from r.Body otherwise.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := d.logger.WithContext(r.Context())

	body, ok := signature.RawBodyFromContext(r.Context())
	if !ok {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			writeStatus(w, http.StatusBadRequest, "unreadable body")
			return
		}
	}

	event, err := ParseEvent(body)
	if err != nil {
		log.Warn("Malformed webhook body", logging.Err(err))
		writeStatus(w, http.StatusBadRequest, "malformed event")
		return
	}

	if err := d.Dispatch(r.Context(), event); err != nil {
		log.Error("Webhook handler failed", err,
			logging.String("event_type", event.EventType),
			logging.String("event_id", event.ID),
		)
		writeStatus(w, errors.HTTPStatus(err), "handler failed")
		return
	}

	log.Debug("Webhook event dispatched",
		logging.String("event_type", event.EventType),
		logging.String("event_id", event.ID),
	)
	w.WriteHeader(http.StatusOK)
}

func writeStatus(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, `{"error":"`+message+`"}`)
}
