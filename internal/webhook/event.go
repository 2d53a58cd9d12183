// Package webhook decodes verified webhook bodies and routes them to
// handlers by event type.
package webhook

import (
	"encoding/json"
	"time"

	"telnyx-webhooks/internal/common/errors"
)

// Event is a decoded webhook delivery. Payload holds the event-specific
// object untouched so handlers can decode it into their own types.
type Event struct {
	ID         string          `json:"id,omitempty"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at,omitempty"`
	RecordType string          `json:"record_type,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Raw        []byte          `json:"-"`
}

// envelope covers both delivery shapes: the v2 form nests the event under
// "data", the flat form carries event_type at the top level.
type envelope struct {
	Data      json.RawMessage `json:"data"`
	EventType string          `json:"event_type"`
	ID        string          `json:"id"`
}

type eventData struct {
	ID         string          `json:"id"`
	EventType  string          `json:"event_type"`
	OccurredAt string          `json:"occurred_at"`
	RecordType string          `json:"record_type"`
	Payload    json.RawMessage `json:"payload"`
}

// ParseEvent decodes a webhook body. The body must be a JSON object with an
// event type in either supported shape.
func ParseEvent(body []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, invalid("webhook body is not a JSON object", err)
	}

	event := &Event{Raw: body}

	if env.EventType != "" {
		event.ID = env.ID
		event.EventType = env.EventType
		event.Payload = env.Data
		return event, nil
	}

	if len(env.Data) == 0 {
		return nil, invalid("webhook body has no event_type", nil)
	}

	var data eventData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, invalid("webhook data is not a JSON object", err)
	}
	if data.EventType == "" {
		return nil, invalid("webhook body has no event_type", nil)
	}

	event.ID = data.ID
	event.EventType = data.EventType
	event.RecordType = data.RecordType
	event.Payload = data.Payload

	if data.OccurredAt != "" {
		occurred, err := time.Parse(time.RFC3339Nano, data.OccurredAt)
		if err != nil {
			return nil, invalid("webhook occurred_at is not RFC 3339", err)
		}
		event.OccurredAt = occurred
	}

	return event, nil
}

// Decode unmarshals the event payload into v
func (e *Event) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return invalid("webhook event has no payload", nil)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return invalid("failed to decode webhook payload", err)
	}
	return nil
}

func invalid(msg string, cause error) error {
	err := errors.ValidationError(msg)
	err.Cause = cause
	return err
}
