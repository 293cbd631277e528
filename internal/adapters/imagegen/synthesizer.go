// Package imagegen adapts an OpenAI-compatible image model to the
// core.ImageSynthesizer port, persisting generated bytes to the blob store.
package imagegen

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/echofeed/voicepipe/internal/core"
	apperrors "github.com/echofeed/voicepipe/internal/errors"
)

// Options configures the image synthesizer.
type Options struct {
	APIKey  string
	BaseURL string // optional override for OpenAI-compatible endpoints
	Model   string // defaults to dall-e-3
	Size    string // defaults to 1024x1024
	Blobs   core.BlobStore
	Logger  *slog.Logger

	// client overrides the constructed OpenAI client in tests.
	client *openai.Client
}

// Synthesizer renders images and stores them durably.
type Synthesizer struct {
	client *openai.Client
	model  string
	size   string
	blobs  core.BlobStore
	logger *slog.Logger
}

// NewSynthesizer constructs an image synthesizer.
func NewSynthesizer(opts Options) (*Synthesizer, error) {
	if opts.Blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	imageModel := opts.Model
	if imageModel == "" {
		imageModel = openai.CreateImageModelDallE3
	}
	size := opts.Size
	if size == "" {
		size = openai.CreateImageSize1024x1024
	}

	client := opts.client
	if client == nil {
		cfg := openai.DefaultConfig(opts.APIKey)
		if opts.BaseURL != "" {
			cfg.BaseURL = opts.BaseURL
		}
		client = openai.NewClientWithConfig(cfg)
	}

	return &Synthesizer{
		client: client,
		model:  imageModel,
		size:   size,
		blobs:  opts.Blobs,
		logger: logger,
	}, nil
}

// NewSynthesizerWithClient constructs a synthesizer around an existing client,
// keeping test wiring out of the production constructor.
func NewSynthesizerWithClient(client *openai.Client, blobs core.BlobStore, logger *slog.Logger) (*Synthesizer, error) {
	return NewSynthesizer(Options{Blobs: blobs, Logger: logger, client: client})
}

// Generate renders one image for the prompt and style variant and returns a
// durable URL. The seed is accepted per the engine contract but the OpenAI
// image API offers no seed parameter, so it only disambiguates the storage key.
func (s *Synthesizer) Generate(ctx context.Context, prompt, style string, seed int64) (string, error) {
	if prompt == "" {
		return "", apperrors.Validation("image prompt is empty")
	}

	fullPrompt := prompt
	if style != "" {
		fullPrompt = prompt + ", " + style
	}

	resp, err := s.client.CreateImage(ctx, openai.ImageRequest{
		Model:          s.model,
		Prompt:         fullPrompt,
		N:              1,
		Size:           s.size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", apperrors.Wrap(ctx.Err(), apperrors.ErrCodeCanceled, "image generation canceled")
		}
		return "", apperrors.Wrap(err, apperrors.ErrCodeUpstreamFailure, "image generation request")
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", apperrors.UpstreamFailure("image generation returned no data")
	}

	raw, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeUpstreamFailure, "decode image payload")
	}

	key := fmt.Sprintf("images/%s-%d.png", core.ImageKey(prompt, style)[:16], seed)
	url, err := s.blobs.Put(ctx, key, raw, "image/png")
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeUpstreamFailure, "store generated image")
	}
	return url, nil
}

var _ core.ImageSynthesizer = (*Synthesizer)(nil)
