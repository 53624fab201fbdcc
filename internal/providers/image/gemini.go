package image

import (
	"context"
	"fmt"

	"storygen/internal/providers/genai"
)

// GeminiGenerator adapts the genai client to the Generator contract.
type GeminiGenerator struct {
	client *genai.Client
}

func NewGeminiGenerator(client *genai.Client) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	imgReq := genai.ImageRequest{
		Prompt:      req.Prompt,
		Size:        req.Options.Size,
		Quality:     req.Options.Quality,
		Format:      req.Options.Format,
		Compression: req.Options.Compression,
		Background:  req.Options.Background,
		RequestID:   req.RequestID,
	}
	if ref := req.ReferenceImage; ref != nil {
		imgReq.ReferenceMIME = ref.MIME
		imgReq.ReferenceData = ref.Data
		imgReq.ReferenceURL = ref.URL
	}
	asset, err := g.client.GenerateImage(ctx, imgReq)
	if err != nil {
		return nil, err
	}
	size := req.Options.Size
	if asset.Width > 0 && asset.Height > 0 {
		size = fmt.Sprintf("%dx%d", asset.Width, asset.Height)
	}
	return &Result{
		URL:           asset.URL,
		Data:          asset.Data,
		Format:        asset.Format,
		Size:          size,
		RevisedPrompt: asset.RevisedPrompt,
		Model:         g.client.Model(),
	}, nil
}

var _ Generator = (*GeminiGenerator)(nil)
