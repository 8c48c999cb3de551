package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigil/internal/audit"
	"sigil/internal/audit/store"
)

type failingStore struct {
	err error
}

func (f failingStore) Append(context.Context, audit.Event) error { return f.err }

type captureSink struct {
	keys     []string
	payloads [][]byte
}

func (c *captureSink) Publish(_ context.Context, key string, value []byte) {
	c.keys = append(c.keys, key)
	c.payloads = append(c.payloads, value)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEmit(t *testing.T) {
	ctx := context.Background()

	t.Run("stamps id and timestamp and appends", func(t *testing.T) {
		trail := store.NewMemoryStore()
		publisher := audit.NewPublisher(trail, nil, discardLogger())

		err := publisher.Emit(ctx, audit.Event{
			Action:      audit.ActionDocumentIssued,
			ActorID:     "issuer-1",
			TargetDocID: "doc-2024-001",
		})
		require.NoError(t, err)

		events := trail.All()
		require.Len(t, events, 1)
		assert.NotEqual(t, uuid.Nil, events[0].ID)
		assert.False(t, events[0].Timestamp.IsZero())
		assert.Equal(t, audit.ActionDocumentIssued, events[0].Action)
	})

	t.Run("store failure fails the emit", func(t *testing.T) {
		storeErr := errors.New("trail unavailable")
		publisher := audit.NewPublisher(failingStore{err: storeErr}, nil, discardLogger())

		err := publisher.Emit(ctx, audit.Event{Action: audit.ActionDocumentVerified})
		require.ErrorIs(t, err, storeErr)
	})

	t.Run("fans out to the stream after the store write", func(t *testing.T) {
		trail := store.NewMemoryStore()
		sink := &captureSink{}
		publisher := audit.NewPublisher(trail, sink, discardLogger())

		err := publisher.Emit(ctx, audit.Event{
			Action:      audit.ActionDocumentRevoked,
			ActorID:     "admin-1",
			Role:        "admin",
			TargetDocID: "doc-2024-002",
			Details:     map[string]any{"reason": "issued in error"},
		})
		require.NoError(t, err)

		require.Len(t, sink.payloads, 1)
		assert.Equal(t, "doc-2024-002", sink.keys[0])

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(sink.payloads[0], &decoded))
		assert.Equal(t, "document_revoked", decoded["action"])
		assert.Equal(t, "admin-1", decoded["actor_id"])
	})

	t.Run("store failure skips the stream", func(t *testing.T) {
		sink := &captureSink{}
		publisher := audit.NewPublisher(failingStore{err: errors.New("down")}, sink, discardLogger())

		_ = publisher.Emit(ctx, audit.Event{Action: audit.ActionDocumentIssued})
		assert.Empty(t, sink.payloads)
	})
}
