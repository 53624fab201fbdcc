package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"storygen/internal/domain"
	"storygen/internal/infra"
)

// allowedFrom maps a target status to the statuses a job may leave from.
// Terminal states have no exits.
var allowedFrom = map[domain.JobStatus][]domain.JobStatus{
	domain.JobStatusProcessing: {domain.JobStatusPending},
	domain.JobStatusCompleted:  {domain.JobStatusProcessing},
	domain.JobStatusFailed:     {domain.JobStatusPending, domain.JobStatusProcessing},
	domain.JobStatusCancelled:  {domain.JobStatusPending, domain.JobStatusProcessing},
}

// CreateSpec describes a new job prior to id assignment.
type CreateSpec struct {
	UserID      string
	StoryID     *string
	SlideNumber *int
	Prompt      string
	Options     domain.GenerateOptions
}

// TransitionFields carries the optional payload of a status transition.
type TransitionFields struct {
	Progress *int
	Result   *domain.GenerationResult
	Error    string
}

// Manager owns the job lifecycle: creation, legal status transitions and
// ownership-scoped reads. Transitions are serialized per job id in-process
// and guarded by a compare-and-swap in the store, so concurrent transitions
// on the same job cannot interleave.
type Manager struct {
	repo   domain.JobRepository
	logger infra.Logger
	locks  keyedMutex
}

func NewManager(repo domain.JobRepository, logger infra.Logger) *Manager {
	return &Manager{repo: repo, logger: logger}
}

// Create allocates an id and persists a pending job with zero progress.
func (m *Manager) Create(ctx context.Context, spec CreateSpec) (*domain.Job, error) {
	now := time.Now().UTC()
	job := &domain.Job{
		ID:          uuid.NewString(),
		UserID:      spec.UserID,
		StoryID:     spec.StoryID,
		SlideNumber: spec.SlideNumber,
		Prompt:      spec.Prompt,
		Options:     spec.Options,
		Status:      domain.JobStatusPending,
		Progress:    0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	m.logger.Info().Str("job_id", job.ID).Str("user_id", job.UserID).Msg("job created")
	return job, nil
}

// Transition moves the job into next, persisting the payload fields. Illegal
// transitions return domain.ErrInvalidTransition; unknown ids return
// domain.ErrNotFound. CompletedAt is set exactly when next is terminal.
func (m *Manager) Transition(ctx context.Context, jobID string, next domain.JobStatus, fields TransitionFields) (*domain.Job, error) {
	expected, ok := allowedFrom[next]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a valid target status", domain.ErrInvalidTransition, next)
	}
	if fields.Result != nil && fields.Error != "" {
		return nil, fmt.Errorf("%w: result and error are mutually exclusive", domain.ErrInvalidTransition)
	}
	if fields.Result != nil && next != domain.JobStatusCompleted {
		return nil, fmt.Errorf("%w: result requires completed status", domain.ErrInvalidTransition)
	}
	if fields.Error != "" && next != domain.JobStatusFailed && next != domain.JobStatusCancelled {
		return nil, fmt.Errorf("%w: error message requires failed or cancelled status", domain.ErrInvalidTransition)
	}
	if fields.Progress != nil && (*fields.Progress < 0 || *fields.Progress > 100) {
		return nil, fmt.Errorf("%w: progress %d out of range", domain.ErrInvalidTransition, *fields.Progress)
	}

	unlock := m.locks.lock(jobID)
	defer unlock()

	update := domain.StatusUpdate{
		Status:   next,
		Progress: fields.Progress,
		Result:   fields.Result,
	}
	if fields.Error != "" {
		update.Error = &fields.Error
	}
	if next.Terminal() {
		now := time.Now().UTC()
		update.CompletedAt = &now
		if update.Progress == nil && next == domain.JobStatusCompleted {
			full := 100
			update.Progress = &full
		}
	}

	job, err := m.repo.UpdateStatus(ctx, jobID, expected, update)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Swap failed: either the job is gone or it is in a state the
			// transition does not permit. A follow-up read disambiguates.
			if cur, getErr := m.repo.GetByID(ctx, jobID); getErr == nil {
				return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, cur.Status, next)
			}
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("transition job: %w", err)
	}
	m.logger.Info().Str("job_id", jobID).Str("status", string(next)).Msg("job transitioned")
	return job, nil
}

// Get returns the job without ownership scoping. Intended for internal
// components; the API surface must use GetForUser.
func (m *Manager) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	return m.repo.GetByID(ctx, jobID)
}

// GetForUser returns the job iff it is owned by userID. A job owned by
// another user surfaces as ErrUnauthorized, never as ErrNotFound.
func (m *Manager) GetForUser(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	job, err := m.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, domain.ErrUnauthorized
	}
	return job, nil
}

// ListByUser returns all jobs owned by userID, most recent first.
func (m *Manager) ListByUser(ctx context.Context, userID string) ([]domain.Job, error) {
	return m.repo.ListByUser(ctx, userID)
}

// ListByStoryAndSlide returns the user's jobs for a story; slideNumber nil
// means every slide. No ordering is guaranteed.
func (m *Manager) ListByStoryAndSlide(ctx context.Context, userID, storyID string, slideNumber *int) ([]domain.Job, error) {
	return m.repo.ListByStoryAndSlide(ctx, userID, storyID, slideNumber)
}

// keyedMutex serializes work per string key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*lockEntry)
	}
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
