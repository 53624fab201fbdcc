package generation

import (
	"context"
	"errors"
	"sync"
	"time"

	"storygen/internal/domain"
)

// memRepo is an in-memory domain.JobRepository with the same
// compare-and-swap semantics as the PostgreSQL implementation.
type memRepo struct {
	mu       sync.Mutex
	jobs     map[string]*domain.Job
	listErr  error
	failNext error
}

func newMemRepo() *memRepo {
	return &memRepo{jobs: make(map[string]*domain.Job)}
}

func (r *memRepo) Create(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *memRepo) ListByUser(ctx context.Context, userID string) ([]domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []domain.Job
	for _, job := range r.jobs {
		if job.UserID == userID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (r *memRepo) ListByStoryAndSlide(ctx context.Context, userID, storyID string, slideNumber *int) ([]domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []domain.Job
	for _, job := range r.jobs {
		if job.UserID != userID || job.StoryID == nil || *job.StoryID != storyID {
			continue
		}
		if slideNumber != nil && (job.SlideNumber == nil || *job.SlideNumber != *slideNumber) {
			continue
		}
		out = append(out, *job)
	}
	return out, nil
}

func (r *memRepo) UpdateStatus(ctx context.Context, jobID string, expected []domain.JobStatus, update domain.StatusUpdate) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	allowed := false
	for _, s := range expected {
		if job.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, domain.ErrNotFound
	}
	job.Status = update.Status
	if update.Progress != nil {
		job.Progress = *update.Progress
	}
	if update.Result != nil {
		job.Result = update.Result
	}
	if update.Error != nil {
		job.ErrorMessage = *update.Error
	}
	if update.CompletedAt != nil {
		job.CompletedAt = update.CompletedAt
	}
	job.UpdatedAt = time.Now().UTC()
	cp := *job
	return &cp, nil
}

func (r *memRepo) ListByStatusOlderThan(ctx context.Context, status domain.JobStatus, cutoff time.Time) ([]domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Job
	for _, job := range r.jobs {
		if job.Status == status && job.UpdatedAt.Before(cutoff) {
			out = append(out, *job)
		}
	}
	return out, nil
}

// seed inserts a prebuilt job.
func (r *memRepo) seed(job domain.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := job
	r.jobs[job.ID] = &cp
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

var errStoreDown = errors.New("store unavailable")

var _ domain.JobRepository = (*memRepo)(nil)
