package domain

import (
	"context"
	"time"
)

// StatusUpdate carries the fields persisted alongside a status transition.
// Nil fields are left untouched in the store.
type StatusUpdate struct {
	Status      JobStatus
	Progress    *int
	Result      *GenerationResult
	Error       *string
	CompletedAt *time.Time
}

// JobRepository defines persistence for job entities.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	ListByUser(ctx context.Context, userID string) ([]Job, error)
	// ListByStoryAndSlide returns the user's jobs for a story, optionally
	// narrowed to one slide. No ordering is guaranteed.
	ListByStoryAndSlide(ctx context.Context, userID, storyID string, slideNumber *int) ([]Job, error)
	// UpdateStatus applies update iff the job's current status is in
	// expected (compare-and-swap). When no row matches it returns
	// ErrNotFound; callers distinguish "absent" from "illegal transition"
	// with a follow-up read.
	UpdateStatus(ctx context.Context, jobID string, expected []JobStatus, update StatusUpdate) (*Job, error)
	// ListByStatusOlderThan returns jobs in status whose updated_at is
	// before cutoff. Used by the reconciliation sweep.
	ListByStatusOlderThan(ctx context.Context, status JobStatus, cutoff time.Time) ([]Job, error)
}
