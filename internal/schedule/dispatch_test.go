package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/voxline/internal/engine"
	"github.com/keshon/voxline/pkg/retrylimit"
)

type recordingDispatcher struct {
	ch chan engine.DispatchRequest
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, req engine.DispatchRequest) error {
	d.ch <- req
	return nil
}

// countingDispatcher fails every send with err and counts attempts.
type countingDispatcher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (d *countingDispatcher) Dispatch(ctx context.Context, req engine.DispatchRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.err
}

func (d *countingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func TestPoolDelivers(t *testing.T) {
	d := &recordingDispatcher{ch: make(chan engine.DispatchRequest, 8)}
	pool := NewPool(d, 2, 1000, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Run(ctx)

	req := engine.DispatchRequest{VoiceLineID: "theresia_poke_01", SessionID: "chan-1"}
	require.NoError(t, pool.Enqueue(req, time.Second))

	select {
	case got := <-d.ch:
		assert.Equal(t, req, got)
	case <-time.After(2 * time.Second):
		t.Fatal("delivery never reached the dispatcher")
	}
}

func TestPoolFailedDeliveryNotRetried(t *testing.T) {
	d := &countingDispatcher{err: errors.New("gateway unreachable")}
	pool := NewPool(d, 1, 1000, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Run(ctx)

	req := engine.DispatchRequest{VoiceLineID: "a", SessionID: "chan-1"}
	require.NoError(t, pool.Enqueue(req, time.Second))

	require.Eventually(t, func() bool { return d.count() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, d.count(), "a failed delivery is dropped, never replayed")
	assert.Less(t, pool.limiter.CurrentLimit(), 1000.0, "transport failure backs off the send rate")
}

func TestPoolFatalFailureKeepsSendRate(t *testing.T) {
	d := &countingDispatcher{err: retrylimit.Fatal(errors.New("clip missing"))}
	pool := NewPool(d, 1, 8, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Run(ctx)

	req := engine.DispatchRequest{VoiceLineID: "a", SessionID: "chan-1"}
	require.NoError(t, pool.Enqueue(req, time.Second))

	// A bad request says nothing about transport health; the rate stays put.
	require.Eventually(t, func() bool { return d.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 8.0, pool.limiter.CurrentLimit())
}

func TestPoolEnqueueFullQueue(t *testing.T) {
	// No Run: jobs pile up until the buffer rejects.
	pool := NewPool(&recordingDispatcher{ch: make(chan engine.DispatchRequest)}, 1, 1, zerolog.Nop())

	req := engine.DispatchRequest{VoiceLineID: "a", SessionID: "chan-1"}
	for i := 0; i < queueSize; i++ {
		require.NoError(t, pool.Enqueue(req, time.Second))
	}
	assert.ErrorIs(t, pool.Enqueue(req, time.Second), ErrQueueFull)
}
