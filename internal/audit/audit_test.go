package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/pkg/requestcontext"
)

func TestPublisherEnrichesFromContext(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store)

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithRequestID(ctx, "req-1")
	ctx = requestcontext.WithClientMetadata(ctx, "10.0.0.1", "Mozilla/5.0", "Firefox 120 on Linux")

	require.NoError(t, pub.Emit(ctx, Event{Action: ActionWalletConnected, Address: "0xab"}))

	events, err := store.ListByAddress(ctx, "0xAB")
	require.NoError(t, err)
	require.Len(t, events, 1)
	e := events[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, now, e.Timestamp)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, "Firefox 120 on Linux", e.ClientLabel)
}

func TestPublisherKeepsExplicitFields(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store)
	ts := time.Unix(100, 0)

	require.NoError(t, pub.Emit(context.Background(), Event{ID: "fixed", Action: ActionProfileCreated, Timestamp: ts}))

	all, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "fixed", all[0].ID)
	assert.Equal(t, ts, all[0].Timestamp)
}

type failingStore struct{ calls int }

func (f *failingStore) Append(context.Context, Event) error {
	f.calls++
	return errors.New("broker down")
}

func TestWorker(t *testing.T) {
	t.Run("delivers queued events and flushes on shutdown", func(t *testing.T) {
		sink := NewInMemoryStore()
		w := NewWorker(sink, WithQueueSize(8))
		ctx, cancel := context.WithCancel(context.Background())

		require.NoError(t, w.Append(ctx, Event{Action: ActionWalletConnected}))
		require.NoError(t, w.Append(ctx, Event{Action: ActionWalletDisconnected}))

		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		require.Eventually(t, func() bool { return len(sink.Actions()) == 2 }, time.Second, 5*time.Millisecond)
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
		assert.Equal(t, []Action{ActionWalletConnected, ActionWalletDisconnected}, sink.Actions())
	})

	t.Run("full queue drops without blocking", func(t *testing.T) {
		w := NewWorker(NewInMemoryStore(), WithQueueSize(1))
		ctx := context.Background()

		require.NoError(t, w.Append(ctx, Event{Action: ActionWalletConnected}))
		require.NoError(t, w.Append(ctx, Event{Action: ActionWalletConnected}))
		assert.Equal(t, int64(1), w.Dropped())
	})

	t.Run("sink failures do not stop the loop", func(t *testing.T) {
		sink := &failingStore{}
		w := NewWorker(sink, WithQueueSize(4))
		ctx, cancel := context.WithCancel(context.Background())
		_ = w.Append(ctx, Event{Action: ActionAccountSwitched})
		_ = w.Append(ctx, Event{Action: ActionAccountSwitched})
		cancel()

		assert.ErrorIs(t, w.Run(ctx), context.Canceled)
		assert.Equal(t, 2, sink.calls)
	})
}
