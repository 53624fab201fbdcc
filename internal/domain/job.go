package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether no further transitions are permitted from s.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// CancelledByUserMessage is recorded on jobs stopped via the cancellation API.
const CancelledByUserMessage = "cancelled by user"

// Job encapsulates the lifecycle of one image generation.
type Job struct {
	ID           string
	UserID       string
	StoryID      *string
	SlideNumber  *int
	Prompt       string
	Options      GenerateOptions
	Status       JobStatus
	Progress     int
	Result       *GenerationResult
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// HasUsableImage reports whether the job carries a result another generation
// could condition on.
func (j *Job) HasUsableImage() bool {
	if j == nil || j.Result == nil {
		return false
	}
	return j.Result.URL != "" || j.Result.StorageKey != "" || len(j.Result.Data) > 0
}

// GenerationResult is the terminal payload of a completed job.
type GenerationResult struct {
	URL           string `json:"url,omitempty"`
	StorageKey    string `json:"storage_key,omitempty"`
	Data          []byte `json:"data,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
	Size          string `json:"size,omitempty"`
	Format        string `json:"format,omitempty"`
	Model         string `json:"model,omitempty"`
	CreatedAt     int64  `json:"created_at,omitempty"`
}
