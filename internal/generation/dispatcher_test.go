package generation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherBoundsConcurrency(t *testing.T) {
	d := NewDispatcher(2, zerolog.Nop())
	defer d.Close()

	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	release := make(chan struct{})

	for i := 0; i < 5; i++ {
		ok := d.Submit(string(rune('a'+i)), func(ctx context.Context) {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()
			<-release
			mu.Lock()
			running--
			mu.Unlock()
		})
		require.True(t, ok)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return running == 2
	}, 2*time.Second, 5*time.Millisecond)

	close(release)
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, peak)
	assert.Equal(t, 0, running)
}

func TestDispatcherCancelJobInterruptsTask(t *testing.T) {
	d := NewDispatcher(1, zerolog.Nop())
	defer d.Close()

	started := make(chan struct{})
	done := make(chan error, 1)
	ok := d.Submit("job-1", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		done <- ctx.Err()
	})
	require.True(t, ok)
	<-started

	assert.True(t, d.CancelJob("job-1"))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("task did not observe cancellation")
	}
}

func TestDispatcherCancelUnknownJob(t *testing.T) {
	d := NewDispatcher(1, zerolog.Nop())
	defer d.Close()

	assert.False(t, d.CancelJob("nope"))
}

func TestDispatcherCancelledBeforeStartStillRunsTask(t *testing.T) {
	d := NewDispatcher(1, zerolog.Nop())
	defer d.Close()

	hold := make(chan struct{})
	require.True(t, d.Submit("hog", func(ctx context.Context) { <-hold }))

	observed := make(chan error, 1)
	require.True(t, d.Submit("queued", func(ctx context.Context) {
		observed <- ctx.Err()
	}))

	// Cancel while the job is still waiting on the pool slot. The task must
	// still run so it can persist the cancelled outcome.
	require.True(t, d.CancelJob("queued"))

	select {
	case err := <-observed:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("queued task never ran")
	}
	close(hold)
}

func TestDispatcherCloseRejectsNewWork(t *testing.T) {
	d := NewDispatcher(1, zerolog.Nop())
	d.Close()

	assert.False(t, d.Submit("late", func(ctx context.Context) {
		t.Error("task must not run after close")
	}))
}

func TestDispatcherCloseWaitsForInflight(t *testing.T) {
	d := NewDispatcher(1, zerolog.Nop())

	finished := false
	release := make(chan struct{})
	require.True(t, d.Submit("job-1", func(ctx context.Context) {
		<-release
		finished = true
	}))

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	d.Close()
	assert.True(t, finished)
}
