package generation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"storygen/internal/domain"
	"storygen/internal/infra"
)

// Reference points at the predecessor image a new generation should be
// conditioned on. Image fields may all be empty when only a completed job
// record without a confirmed image was found.
type Reference struct {
	JobID      string
	URL        string
	StorageKey string
	Data       []byte
	MIME       string
}

// HasImage reports whether the reference carries something a provider can
// actually consume.
func (r *Reference) HasImage() bool {
	return r != nil && (r.URL != "" || r.StorageKey != "" || len(r.Data) > 0)
}

// Resolver reconstructs the slide N-1 -> slide N relationship at query time.
// There is no foreign key between slide jobs; retries and failures leave a
// history the resolver has to pick through.
type Resolver struct {
	repo   domain.JobRepository
	logger infra.Logger
}

func NewResolver(repo domain.JobRepository, logger infra.Logger) *Resolver {
	return &Resolver{repo: repo, logger: logger}
}

// Resolve returns the best available reference for generating slideNumber of
// storyID, or nil when the generation should proceed unconditioned. Slide 1
// never has a predecessor and never queries the store.
func (r *Resolver) Resolve(ctx context.Context, userID, storyID string, slideNumber int) (*Reference, error) {
	if slideNumber <= 1 {
		return nil, nil
	}
	prev := slideNumber - 1
	jobs, err := r.repo.ListByStoryAndSlide(ctx, userID, storyID, &prev)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list predecessor jobs: %w", err)
	}
	chosen := selectReference(jobs)
	if chosen == nil {
		r.logger.Debug().
			Str("story_id", storyID).
			Int("slide_number", slideNumber).
			Int("candidates", len(jobs)).
			Msg("resolver: no usable predecessor")
		return nil, nil
	}
	ref := &Reference{JobID: chosen.ID}
	if chosen.Result != nil {
		ref.URL = chosen.Result.URL
		ref.StorageKey = chosen.Result.StorageKey
		ref.Data = chosen.Result.Data
		ref.MIME = mimeFromFormat(chosen.Result.Format)
	}
	return ref, nil
}

// selectReference applies the tiered fallback over a predecessor job history:
//
//   (a) a completed job with a usable image result, most recent first;
//   (b) any job with a usable image result regardless of status, tolerating
//       store-update lag between "generation finished" and "record updated";
//   (c) the most recent completed job even without a confirmed image, which
//       the caller may attempt to refresh.
//
// A failed or cancelled retry therefore never shadows an earlier success for
// the same slide. Returns nil when no tier matches.
func selectReference(jobs []domain.Job) *domain.Job {
	if len(jobs) == 0 {
		return nil
	}
	sorted := make([]domain.Job, len(jobs))
	copy(sorted, jobs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	for i := range sorted {
		if sorted[i].Status == domain.JobStatusCompleted && sorted[i].HasUsableImage() {
			return &sorted[i]
		}
	}
	for i := range sorted {
		if sorted[i].HasUsableImage() {
			return &sorted[i]
		}
	}
	for i := range sorted {
		if sorted[i].Status == domain.JobStatusCompleted {
			return &sorted[i]
		}
	}
	return nil
}

func mimeFromFormat(format string) string {
	switch format {
	case "", domain.FormatPNG:
		return "image/png"
	case domain.FormatJPEG:
		return "image/jpeg"
	case domain.FormatWebP:
		return "image/webp"
	default:
		if len(format) > 6 && format[:6] == "image/" {
			return format
		}
		return "image/" + format
	}
}
