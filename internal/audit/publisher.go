package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Store is the append-only persistence contract; defined here so the
// publisher does not import its own store implementations.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// StreamSink fans events out to an external stream (Kafka). Optional; the
// store remains the source of truth.
type StreamSink interface {
	Publish(ctx context.Context, key string, value []byte)
}

// Publisher captures structured audit events. Appends are synchronous and
// fail-closed: if the trail cannot be written, the calling operation must
// fail. Stream fan-out is asynchronous and best-effort.
type Publisher struct {
	store  Store
	stream StreamSink
	logger *slog.Logger
}

func NewPublisher(store Store, stream StreamSink, logger *slog.Logger) *Publisher {
	return &Publisher{store: store, stream: stream, logger: logger}
}

// Emit persists an audit event, stamping ID and timestamp when absent.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := p.store.Append(ctx, event); err != nil {
		return err
	}

	if p.stream != nil {
		payload, err := json.Marshal(streamPayload(event))
		if err != nil {
			p.logger.ErrorContext(ctx, "audit stream encode failed",
				"action", event.Action,
				"error", err,
			)
			return nil
		}
		p.stream.Publish(ctx, event.TargetDocID, payload)
	}
	return nil
}

type streamEvent struct {
	ID          string         `json:"id"`
	Action      string         `json:"action"`
	ActorID     string         `json:"actor_id"`
	Role        string         `json:"role,omitempty"`
	TargetDocID string         `json:"target_doc_id,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	Timestamp   string         `json:"timestamp"`
}

func streamPayload(event Event) streamEvent {
	return streamEvent{
		ID:          event.ID.String(),
		Action:      string(event.Action),
		ActorID:     event.ActorID,
		Role:        event.Role,
		TargetDocID: event.TargetDocID,
		Details:     event.Details,
		Timestamp:   event.Timestamp.Format(time.RFC3339Nano),
	}
}
