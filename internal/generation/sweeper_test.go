package generation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storygen/internal/domain"
)

func newTestSweeper(p *testPipeline) *Sweeper {
	return NewSweeper(p.repo, p.manager, p.orchestrator, 5*time.Minute, 30*time.Minute, time.Minute, zerolog.Nop())
}

func seedAged(p *testPipeline, status domain.JobStatus, age time.Duration) string {
	stamp := time.Now().UTC().Add(-age)
	job := domain.Job{
		ID:        uuid.NewString(),
		UserID:    "user-1",
		Prompt:    "a fox",
		Status:    status,
		CreatedAt: stamp,
		UpdatedAt: stamp,
	}
	p.repo.seed(job)
	return job.ID
}

func TestSweepClaimsOrphanedPending(t *testing.T) {
	p := newTestPipeline(t)
	s := newTestSweeper(p)
	jobID := seedAged(p, domain.JobStatusPending, time.Hour)

	s.Sweep(context.Background())

	job, err := p.repo.GetByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, 1, p.generator.callCount())
}

func TestSweepLeavesFreshPendingAlone(t *testing.T) {
	p := newTestPipeline(t)
	s := newTestSweeper(p)
	jobID := seedAged(p, domain.JobStatusPending, time.Minute)

	s.Sweep(context.Background())

	job, err := p.repo.GetByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, 0, p.generator.callCount())
}

func TestSweepFailsStaleProcessing(t *testing.T) {
	p := newTestPipeline(t)
	s := newTestSweeper(p)
	staleID := seedAged(p, domain.JobStatusProcessing, time.Hour)
	freshID := seedAged(p, domain.JobStatusProcessing, time.Minute)

	s.Sweep(context.Background())

	stale, err := p.repo.GetByID(context.Background(), staleID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stale.Status)
	assert.Equal(t, "generation timed out", stale.ErrorMessage)

	fresh, err := p.repo.GetByID(context.Background(), freshID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, fresh.Status)
}

func TestSweepIgnoresTerminalJobs(t *testing.T) {
	p := newTestPipeline(t)
	s := newTestSweeper(p)
	doneID := seedAged(p, domain.JobStatusCompleted, 2*time.Hour)
	cancelledID := seedAged(p, domain.JobStatusCancelled, 2*time.Hour)

	s.Sweep(context.Background())

	done, err := p.repo.GetByID(context.Background(), doneID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, done.Status)

	cancelled, err := p.repo.GetByID(context.Background(), cancelledID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, cancelled.Status)
	assert.Equal(t, 0, p.generator.callCount())
}

func TestSweeperRunStopsOnContextCancel(t *testing.T) {
	p := newTestPipeline(t)
	s := NewSweeper(p.repo, p.manager, p.orchestrator, time.Minute, time.Minute, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
