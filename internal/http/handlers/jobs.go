package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"storygen/internal/domain"
	"storygen/internal/generation"
)

type createJobRequest struct {
	Prompt            string                 `json:"prompt"`
	Options           domain.GenerateOptions `json:"options"`
	StoryID           *string                `json:"story_id,omitempty"`
	SlideNumber       *int                   `json:"slide_number,omitempty"`
	UseReferenceImage bool                   `json:"use_reference_image,omitempty"`
}

type jobCreatedResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type jobRecord struct {
	ID           string                   `json:"id"`
	UserID       string                   `json:"user_id"`
	StoryID      *string                  `json:"story_id,omitempty"`
	SlideNumber  *int                     `json:"slide_number,omitempty"`
	Prompt       string                   `json:"prompt"`
	Options      domain.GenerateOptions   `json:"options"`
	Status       string                   `json:"status"`
	Progress     int                      `json:"progress"`
	Result       *domain.GenerationResult `json:"result,omitempty"`
	ErrorMessage string                   `json:"error,omitempty"`
	CreatedAt    int64                    `json:"created_at"`
	UpdatedAt    int64                    `json:"updated_at"`
	CompletedAt  *int64                   `json:"completed_at,omitempty"`
}

func toJobRecord(job *domain.Job) jobRecord {
	rec := jobRecord{
		ID:           job.ID,
		UserID:       job.UserID,
		StoryID:      job.StoryID,
		SlideNumber:  job.SlideNumber,
		Prompt:       job.Prompt,
		Options:      job.Options,
		Status:       string(job.Status),
		Progress:     job.Progress,
		Result:       job.Result,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt.UnixMilli(),
		UpdatedAt:    job.UpdatedAt.UnixMilli(),
	}
	if job.CompletedAt != nil {
		ms := job.CompletedAt.UnixMilli()
		rec.CompletedAt = &ms
	}
	return rec
}

func (a *App) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidPrompt):
		a.error(w, http.StatusUnprocessableEntity, "invalid_prompt", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusForbidden, "forbidden", "job belongs to another user")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		a.error(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrProviderFailure):
		a.error(w, http.StatusBadGateway, "provider_failure", err.Error())
	default:
		a.error(w, http.StatusInternalServerError, "internal", "unexpected error")
	}
}

// JobsCreate enqueues a background generation and returns the job id
// immediately. Prompt rejections never create a job record.
func (a *App) JobsCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	job, err := a.Orchestrator.GenerateAsync(r.Context(), generation.Request{
		UserID:            userID,
		Prompt:            req.Prompt,
		Options:           req.Options,
		StoryID:           req.StoryID,
		SlideNumber:       req.SlideNumber,
		UseReferenceImage: req.UseReferenceImage,
	})
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, jobCreatedResponse{JobID: job.ID, Status: string(job.Status)})
}

// ImagesGenerate runs in synchronous mode: the caller blocks for the result
// and nothing is persisted.
func (a *App) ImagesGenerate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	result, err := a.Orchestrator.Generate(r.Context(), generation.Request{
		UserID:            userID,
		Prompt:            req.Prompt,
		Options:           req.Options,
		StoryID:           req.StoryID,
		SlideNumber:       req.SlideNumber,
		UseReferenceImage: req.UseReferenceImage,
	})
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.json(w, http.StatusOK, result)
}

// JobsGet returns the full job record for polling callers.
func (a *App) JobsGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	job, err := a.Manager.GetForUser(r.Context(), jobID, userID)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.json(w, http.StatusOK, toJobRecord(job))
}

// JobsList returns every job owned by the caller.
func (a *App) JobsList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobs, err := a.Manager.ListByUser(r.Context(), userID)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": toJobRecords(jobs)})
}

// JobsCancel stops a pending or processing job and returns the
// post-cancellation record.
func (a *App) JobsCancel(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	job, err := a.Orchestrator.Cancel(r.Context(), jobID, userID)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.json(w, http.StatusOK, toJobRecord(job))
}

// StoryJobsList returns the caller's jobs for one story, optionally filtered
// with ?slide=N. No ordering is guaranteed; callers sort.
func (a *App) StoryJobsList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	storyID := chi.URLParam(r, "story_id")
	if storyID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "story_id required")
		return
	}
	var slide *int
	if raw := r.URL.Query().Get("slide"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			a.error(w, http.StatusBadRequest, "bad_request", "slide must be a positive integer")
			return
		}
		slide = &n
	}
	jobs, err := a.Manager.ListByStoryAndSlide(r.Context(), userID, storyID, slide)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": toJobRecords(jobs)})
}

func toJobRecords(jobs []domain.Job) []jobRecord {
	items := make([]jobRecord, 0, len(jobs))
	for i := range jobs {
		items = append(items, toJobRecord(&jobs[i]))
	}
	return items
}
