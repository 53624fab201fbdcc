package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"storygen/internal/domain"
	"storygen/pkg/zip"
)

// StoryArchive bundles the story's completed slide images into a zip
// download. Slides with multiple attempts contribute their best image only,
// picked the same way chaining does (completed first, then most recent).
func (a *App) StoryArchive(w http.ResponseWriter, r *http.Request) {
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
	jobs, err := a.Manager.ListByStoryAndSlide(r.Context(), userID, storyID, nil)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}

	bySlide := make(map[int][]domain.Job)
	for _, job := range jobs {
		if job.Status != domain.JobStatusCompleted || !job.HasUsableImage() {
			continue
		}
		slide := 0
		if job.SlideNumber != nil {
			slide = *job.SlideNumber
		}
		bySlide[slide] = append(bySlide[slide], job)
	}
	if len(bySlide) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no completed images for story")
		return
	}

	slides := make([]int, 0, len(bySlide))
	for slide := range bySlide {
		slides = append(slides, slide)
	}
	sort.Ints(slides)

	var assets []zip.Asset
	for _, slide := range slides {
		attempts := bySlide[slide]
		sort.Slice(attempts, func(i, j int) bool {
			return attempts[i].CreatedAt.After(attempts[j].CreatedAt)
		})
		// Newest attempt first; an attempt whose bytes cannot be loaded
		// falls back to the next one instead of dropping the slide.
		for i := range attempts {
			job := attempts[i]
			data := a.loadResultData(r, &job)
			if len(data) == 0 {
				continue
			}
			assets = append(assets, zip.Asset{
				Filename: fmt.Sprintf("slide-%02d-%s.%s", slide, job.ID, extensionFor(job.Result.Format)),
				MIME:     job.Result.Format,
				Data:     data,
			})
			break
		}
	}
	if len(assets) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no stored images for story")
		return
	}

	archive := zip.ArchiveAssets(assets)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=story-%s.zip", storyID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func (a *App) loadResultData(r *http.Request, job *domain.Job) []byte {
	if job.Result == nil {
		return nil
	}
	if len(job.Result.Data) > 0 {
		return job.Result.Data
	}
	if job.Result.StorageKey == "" || a.Store == nil {
		return nil
	}
	data, err := a.Store.Read(r.Context(), job.Result.StorageKey)
	if err != nil {
		a.Logger.Warn().Err(err).Str("job_id", job.ID).Msg("archive: missing stored image")
		return nil
	}
	return data
}

func extensionFor(format string) string {
	switch {
	case strings.Contains(format, "jpeg"), strings.Contains(format, "jpg"):
		return "jpg"
	case strings.Contains(format, "webp"):
		return "webp"
	default:
		return "png"
	}
}
