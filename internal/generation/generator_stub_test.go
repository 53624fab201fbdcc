package generation

import (
	"context"
	"sync"

	"storygen/internal/providers/image"
)

// fakeGenerator records the last provider request and returns a canned
// result or error. When block is set, Generate waits for the channel to
// close or the context to be cancelled.
type fakeGenerator struct {
	mu      sync.Mutex
	lastReq *image.GenerateRequest
	calls   int

	result *image.Result
	err    error
	block  chan struct{}
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{
		result: &image.Result{
			URL:    "https://img.example/out.png",
			Format: "image/png",
			Size:   "1024x1024",
			Model:  "gemini-2.5-flash",
		},
	}
}

func (f *fakeGenerator) Generate(ctx context.Context, req image.GenerateRequest) (*image.Result, error) {
	f.mu.Lock()
	cp := req
	f.lastReq = &cp
	f.calls++
	block := f.block
	err := f.err
	result := f.result
	f.mu.Unlock()

	if block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-block:
		}
	}
	if err != nil {
		return nil, err
	}
	out := *result
	return &out, nil
}

func (f *fakeGenerator) last() *image.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var _ image.Generator = (*fakeGenerator)(nil)
