package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storygen/internal/domain"
)

const jobColumns = `id, user_id, story_id, slide_number, prompt, options, status, progress, result, error_message, created_at, updated_at, completed_at`

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	optionsJSON, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	query := `
INSERT INTO generation_jobs (id, user_id, story_id, slide_number, prompt, options, status, progress, error_message, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		job.UserID,
		job.StoryID,
		job.SlideNumber,
		job.Prompt,
		optionsJSON,
		job.Status,
		job.Progress,
		job.ErrorMessage,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1;`
	row := r.pool.QueryRow(ctx, query, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListByUser returns every job owned by userID.
func (r *JobRepositoryPG) ListByUser(ctx context.Context, userID string) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE user_id = $1 ORDER BY created_at DESC;`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListByStoryAndSlide returns the user's jobs for a story, optionally
// narrowed to one slide number.
func (r *JobRepositoryPG) ListByStoryAndSlide(ctx context.Context, userID, storyID string, slideNumber *int) ([]domain.Job, error) {
	query := `
SELECT ` + jobColumns + `
FROM generation_jobs
WHERE user_id = $1 AND story_id = $2 AND ($3::int IS NULL OR slide_number = $3);
`
	rows, err := r.pool.Query(ctx, query, userID, storyID, slideNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

// UpdateStatus applies the transition iff the current status is one of
// expected. Zero rows affected surfaces as domain.ErrNotFound.
func (r *JobRepositoryPG) UpdateStatus(ctx context.Context, jobID string, expected []domain.JobStatus, update domain.StatusUpdate) (*domain.Job, error) {
	var resultJSON []byte
	if update.Result != nil {
		b, err := json.Marshal(update.Result)
		if err != nil {
			return nil, fmt.Errorf("marshal result: %w", err)
		}
		resultJSON = b
	}
	from := make([]string, len(expected))
	for i, s := range expected {
		from[i] = string(s)
	}
	query := `
UPDATE generation_jobs
SET status = $3,
    progress = COALESCE($4, progress),
    result = COALESCE($5, result),
    error_message = COALESCE($6, error_message),
    completed_at = COALESCE($7, completed_at),
    updated_at = NOW()
WHERE id = $1 AND status = ANY($2)
RETURNING ` + jobColumns + `;
`
	row := r.pool.QueryRow(ctx, query,
		jobID,
		from,
		update.Status,
		update.Progress,
		nullableBytes(resultJSON),
		update.Error,
		update.CompletedAt,
	)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListByStatusOlderThan returns jobs stuck in status since before cutoff.
func (r *JobRepositoryPG) ListByStatusOlderThan(ctx context.Context, status domain.JobStatus, cutoff time.Time) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE status = $1 AND updated_at < $2 ORDER BY updated_at ASC;`
	rows, err := r.pool.Query(ctx, query, status, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var optionsJSON, resultJSON []byte
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.StoryID,
		&job.SlideNumber,
		&job.Prompt,
		&optionsJSON,
		&job.Status,
		&job.Progress,
		&resultJSON,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	); err != nil {
		return nil, err
	}
	if len(optionsJSON) > 0 {
		if err := json.Unmarshal(optionsJSON, &job.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
	}
	if len(resultJSON) > 0 {
		var result domain.GenerationResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		job.Result = &result
	}
	return &job, nil
}

func collectJobs(rows pgx.Rows) ([]domain.Job, error) {
	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
