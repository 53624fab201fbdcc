package generation

import (
	"context"
	"errors"
	"time"

	"storygen/internal/domain"
	"storygen/internal/infra"
)

// Sweeper reconciles jobs the fire-and-forget dispatch model can strand:
// pending jobs orphaned by process teardown before their task ran, and
// processing jobs whose generation never came back. It runs in the worker
// binary on an interval.
type Sweeper struct {
	repo         domain.JobRepository
	manager      *Manager
	orchestrator *Orchestrator
	logger       infra.Logger

	claimAfter time.Duration
	staleAfter time.Duration
	interval   time.Duration
}

func NewSweeper(
	repo domain.JobRepository,
	manager *Manager,
	orchestrator *Orchestrator,
	claimAfter, staleAfter, interval time.Duration,
	logger infra.Logger,
) *Sweeper {
	return &Sweeper{
		repo:         repo,
		manager:      manager,
		orchestrator: orchestrator,
		logger:       logger,
		claimAfter:   claimAfter,
		staleAfter:   staleAfter,
		interval:     interval,
	}
}

// Run loops until ctx is done, sweeping on the configured interval.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one reconciliation pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	s.claimOrphanedPending(ctx)
	s.failStaleProcessing(ctx)
}

// claimOrphanedPending picks up pending jobs older than the claim deadline
// and runs them. The pending->processing swap inside Run doubles as the
// claim, so two sweepers cannot execute the same job.
func (s *Sweeper) claimOrphanedPending(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.claimAfter)
	jobs, err := s.repo.ListByStatusOlderThan(ctx, domain.JobStatusPending, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("sweeper: list orphaned pending jobs")
		return
	}
	for i := range jobs {
		job := jobs[i]
		s.logger.Info().Str("job_id", job.ID).Msg("sweeper: claiming orphaned job")
		s.orchestrator.Run(ctx, &job)
		if ctx.Err() != nil {
			return
		}
	}
}

// failStaleProcessing marks processing jobs past the stale deadline as
// failed. There is no hard timeout on an in-flight provider call, so this is
// the only way a wedged job ever reaches a terminal state.
func (s *Sweeper) failStaleProcessing(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.staleAfter)
	jobs, err := s.repo.ListByStatusOlderThan(ctx, domain.JobStatusProcessing, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("sweeper: list stale processing jobs")
		return
	}
	for _, job := range jobs {
		if _, err := s.manager.Transition(ctx, job.ID, domain.JobStatusFailed, TransitionFields{Error: "generation timed out"}); err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				continue
			}
			s.logger.Error().Err(err).Str("job_id", job.ID).Msg("sweeper: failed to fail stale job")
			continue
		}
		s.logger.Warn().Str("job_id", job.ID).Msg("sweeper: stale processing job marked failed")
	}
}
