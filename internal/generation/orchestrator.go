package generation

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"storygen/internal/domain"
	"storygen/internal/infra"
	"storygen/internal/providers/image"
	"storygen/internal/storage"
)

// Request is the single entry-point payload for "generate an image".
type Request struct {
	UserID            string
	Prompt            string
	Options           domain.GenerateOptions
	StoryID           *string
	SlideNumber       *int
	UseReferenceImage bool
}

// Orchestrator accepts generation requests, decides between synchronous and
// background execution, resolves consistency references, invokes the
// provider and drives the job manager through its transitions.
type Orchestrator struct {
	manager      *Manager
	resolver     *Resolver
	generator    image.Generator
	dispatcher   *Dispatcher
	store        *storage.FileStore
	assetBaseURL string
	logger       infra.Logger
}

func NewOrchestrator(
	manager *Manager,
	resolver *Resolver,
	generator image.Generator,
	dispatcher *Dispatcher,
	store *storage.FileStore,
	assetBaseURL string,
	logger infra.Logger,
) *Orchestrator {
	return &Orchestrator{
		manager:      manager,
		resolver:     resolver,
		generator:    generator,
		dispatcher:   dispatcher,
		store:        store,
		assetBaseURL: strings.TrimRight(assetBaseURL, "/"),
		logger:       logger,
	}
}

func (o *Orchestrator) validate(req Request) error {
	if strings.TrimSpace(req.UserID) == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidPrompt)
	}
	if err := ValidatePrompt(req.Prompt); err != nil {
		return err
	}
	if err := req.Options.Validate(); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidPrompt, err)
	}
	if req.SlideNumber != nil && *req.SlideNumber < 1 {
		return fmt.Errorf("%w: slide number must be >= 1", domain.ErrInvalidPrompt)
	}
	return nil
}

// Generate runs in synchronous mode: the caller blocks until the provider
// returns and no job record is persisted.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*domain.GenerationResult, error) {
	if err := o.validate(req); err != nil {
		return nil, err
	}
	provReq := o.buildProviderRequest(ctx, req, uuid.NewString())
	result, err := o.generator.Generate(ctx, provReq)
	if err != nil {
		return nil, err
	}
	return o.finalizeResult(ctx, "", result)
}

// GenerateAsync validates the request, persists a pending job and submits
// the generation to the dispatcher. The job id is returned immediately; a
// rejected prompt never creates a job record.
func (o *Orchestrator) GenerateAsync(ctx context.Context, req Request) (*domain.Job, error) {
	if err := o.validate(req); err != nil {
		return nil, err
	}
	job, err := o.manager.Create(ctx, CreateSpec{
		UserID:      req.UserID,
		StoryID:     req.StoryID,
		SlideNumber: req.SlideNumber,
		Prompt:      req.Prompt,
		Options:     req.Options,
	})
	if err != nil {
		return nil, err
	}
	if !o.dispatcher.Submit(job.ID, func(taskCtx context.Context) {
		o.Run(taskCtx, job)
	}) {
		msg := "service is shutting down"
		if failed, terr := o.manager.Transition(ctx, job.ID, domain.JobStatusFailed, TransitionFields{Error: msg}); terr == nil {
			return failed, nil
		}
		return job, nil
	}
	return job, nil
}

// Run executes one generation for an already-persisted job. It is invoked by
// the dispatcher and by the reconciliation worker when it picks up orphaned
// jobs. ctx is the job's cancellable context; persistence of terminal
// transitions deliberately survives its cancellation.
func (o *Orchestrator) Run(ctx context.Context, job *domain.Job) {
	persistCtx := context.WithoutCancel(ctx)

	progress := 10
	if _, err := o.manager.Transition(persistCtx, job.ID, domain.JobStatusProcessing, TransitionFields{Progress: &progress}); err != nil {
		// Most likely cancelled before start or claimed elsewhere.
		o.logger.Warn().Err(err).Str("job_id", job.ID).Msg("orchestrator: job not in a runnable state")
		return
	}

	req := Request{
		UserID:            job.UserID,
		Prompt:            job.Prompt,
		Options:           job.Options,
		StoryID:           job.StoryID,
		SlideNumber:       job.SlideNumber,
		UseReferenceImage: true,
	}
	provReq := o.buildProviderRequest(ctx, req, job.ID)

	result, err := o.generator.Generate(ctx, provReq)
	if err != nil {
		o.recordFailure(persistCtx, job.ID, err)
		return
	}

	final, err := o.finalizeResult(persistCtx, job.ID, result)
	if err != nil {
		o.recordFailure(persistCtx, job.ID, err)
		return
	}
	if _, err := o.manager.Transition(persistCtx, job.ID, domain.JobStatusCompleted, TransitionFields{Result: final}); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// Lost the race against a cancellation; the cancelled state wins.
			o.logger.Info().Str("job_id", job.ID).Msg("orchestrator: result discarded after cancellation")
			return
		}
		// A terminal transition that cannot be persisted has no recovery
		// path; surface it loudly instead of masking.
		o.logger.Error().Err(err).Str("job_id", job.ID).Msg("orchestrator: failed to persist completed result")
	}
}

func (o *Orchestrator) recordFailure(ctx context.Context, jobID string, cause error) {
	msg := cause.Error()
	if errors.Is(cause, context.Canceled) {
		msg = domain.CancelledByUserMessage
	}
	if _, err := o.manager.Transition(ctx, jobID, domain.JobStatusFailed, TransitionFields{Error: msg}); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// Already cancelled; nothing to record.
			return
		}
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("orchestrator: failed to persist failure")
	}
}

// buildProviderRequest normalizes options and, when the caller opted in,
// resolves the predecessor image and rewrites the prompt with the
// consistency clause. Resolution is best effort: errors and empty results
// degrade to unconditioned generation.
func (o *Orchestrator) buildProviderRequest(ctx context.Context, req Request, requestID string) image.GenerateRequest {
	out := image.GenerateRequest{
		Prompt:    strings.TrimSpace(req.Prompt),
		Options:   req.Options.Normalize(),
		RequestID: requestID,
	}
	if !req.UseReferenceImage || req.StoryID == nil || req.SlideNumber == nil {
		return out
	}
	ref, err := o.resolver.Resolve(ctx, req.UserID, *req.StoryID, *req.SlideNumber)
	if err != nil {
		o.logger.Warn().Err(err).Str("story_id", *req.StoryID).Msg("orchestrator: reference resolution failed, continuing without")
		return out
	}
	o.loadReferenceData(ctx, ref)
	if !ref.HasImage() {
		return out
	}
	out.Prompt = withConsistencyClause(out.Prompt)
	out.ReferenceImage = &image.SourceImage{
		JobID:      ref.JobID,
		URL:        ref.URL,
		StorageKey: ref.StorageKey,
		Data:       ref.Data,
		MIME:       ref.MIME,
	}
	return out
}

// loadReferenceData backfills image bytes from the file store when the
// predecessor result only recorded a storage key.
func (o *Orchestrator) loadReferenceData(ctx context.Context, ref *Reference) {
	if ref == nil || len(ref.Data) > 0 || ref.StorageKey == "" || o.store == nil {
		return
	}
	data, err := o.store.Read(ctx, ref.StorageKey)
	if err != nil {
		o.logger.Warn().Err(err).Str("storage_key", ref.StorageKey).Msg("orchestrator: could not load reference bytes")
		return
	}
	ref.Data = data
}

// finalizeResult persists inline image bytes through the file store so job
// records reference stored assets instead of carrying megabytes of JSONB.
func (o *Orchestrator) finalizeResult(ctx context.Context, jobID string, res *image.Result) (*domain.GenerationResult, error) {
	out := &domain.GenerationResult{
		URL:           res.URL,
		Data:          res.Data,
		RevisedPrompt: res.RevisedPrompt,
		Size:          res.Size,
		Format:        res.Format,
		Model:         res.Model,
		CreatedAt:     time.Now().Unix(),
	}
	if o.store == nil || len(res.Data) == 0 {
		return out, nil
	}
	key := assetKey(jobID, res.Format)
	storedKey, err := o.store.Write(ctx, key, res.Data)
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}
	out.StorageKey = storedKey
	out.Data = nil
	if out.URL == "" && o.assetBaseURL != "" {
		out.URL = o.assetBaseURL + "/" + storedKey
	}
	return out, nil
}

// Cancel stops a pending or processing job owned by userID. The local record
// transitions to cancelled unconditionally; interrupting the in-flight
// provider call is best effort and its outcome does not change the record.
func (o *Orchestrator) Cancel(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	job, err := o.manager.GetForUser(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return nil, fmt.Errorf("%w: job is already %s", domain.ErrInvalidTransition, job.Status)
	}
	cancelled, err := o.manager.Transition(ctx, jobID, domain.JobStatusCancelled, TransitionFields{Error: domain.CancelledByUserMessage})
	if err != nil {
		return nil, err
	}
	o.dispatcher.CancelJob(jobID)
	o.logger.Info().Str("job_id", jobID).Str("user_id", userID).Msg("job cancelled")
	return cancelled, nil
}

func assetKey(jobID, format string) string {
	ext := "png"
	switch format {
	case "image/jpeg", domain.FormatJPEG:
		ext = "jpg"
	case "image/webp", domain.FormatWebP:
		ext = "webp"
	}
	if jobID == "" {
		jobID = uuid.NewString()
	}
	return path.Join("generated", jobID+"."+ext)
}
