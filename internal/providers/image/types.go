package image

import (
	"context"

	"storygen/internal/domain"
)

// SourceImage describes a prior asset passed to the provider as an
// additional conditioning input.
type SourceImage struct {
	JobID      string
	StorageKey string
	URL        string
	MIME       string
	Data       []byte
}

// GenerateRequest describes a normalized request passed to any image provider.
// Options must already be normalized; auto values are never dispatched.
type GenerateRequest struct {
	Prompt         string
	Options        domain.GenerateOptions
	ReferenceImage *SourceImage
	RequestID      string
}

// Result represents a generated image.
type Result struct {
	URL           string
	Data          []byte
	Format        string
	Size          string
	RevisedPrompt string
	Model         string
}

// Generator is the contract implemented by all image providers.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Result, error)
}
