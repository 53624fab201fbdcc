package generation

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"storygen/internal/infra"
)

// Dispatcher runs background generation tasks on a bounded pool. Each job
// gets its own cancellable context so a cancellation request can interrupt
// the in-flight provider call. The HTTP layer only submits and returns.
type Dispatcher struct {
	sem    *semaphore.Weighted
	logger infra.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

func NewDispatcher(concurrency int, logger infra.Logger) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		sem:     semaphore.NewWeighted(int64(concurrency)),
		logger:  logger,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Submit schedules task for jobID and returns immediately. The task runs
// under a context detached from the caller's request so that sending the
// HTTP response does not tear down the generation.
func (d *Dispatcher) Submit(jobID string, task func(ctx context.Context)) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancels[jobID] = cancel
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer func() {
			cancel()
			d.mu.Lock()
			delete(d.cancels, jobID)
			d.mu.Unlock()
		}()
		if err := d.sem.Acquire(ctx, 1); err != nil {
			d.logger.Warn().Err(err).Str("job_id", jobID).Msg("dispatcher: job cancelled before start")
			task(ctx)
			return
		}
		defer d.sem.Release(1)
		task(ctx)
	}()
	return true
}

// CancelJob cancels the in-flight context for jobID. Best effort: the task
// may already have finished, in which case this is a no-op.
func (d *Dispatcher) CancelJob(jobID string) bool {
	d.mu.Lock()
	cancel, ok := d.cancels[jobID]
	d.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Close stops accepting submissions and waits for in-flight tasks.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
