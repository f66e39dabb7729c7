package jobmgr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartStopWait(t *testing.T) {
	m := NewManager(context.Background(), nil)

	started := make(chan struct{})
	require.NoError(t, m.Start("loop", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	<-started

	assert.Equal(t, []string{"loop"}, m.List())
	assert.Error(t, m.Start("loop", func(ctx context.Context) error { return nil }))

	require.NoError(t, m.Stop("loop"))
	m.Wait()
	assert.Empty(t, m.List())
}

func TestParentCancelStopsJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(ctx, nil)

	done := make(chan struct{})
	require.NoError(t, m.Start("watch", func(ctx context.Context) error {
		<-ctx.Done()
		close(done)
		return nil
	}))

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not stop on parent cancel")
	}
	m.Wait()
}

func TestReporterSeesLifecycle(t *testing.T) {
	events := make(chan string, 4)
	m := NewManager(context.Background(), func(msg string) { events <- msg })

	require.NoError(t, m.Start("once", func(ctx context.Context) error { return nil }))
	m.Wait()

	assert.Equal(t, "running:once", <-events)
	assert.Equal(t, "done:once", <-events)
}
