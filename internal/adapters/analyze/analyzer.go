// Package analyze adapts an OpenAI-compatible chat model to the
// core.ContentAnalyzer port and derives the normalized recording context
// consumed alongside the transcript.
package analyze

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/echofeed/voicepipe/internal/core"
	"github.com/echofeed/voicepipe/internal/domain/model"
	apperrors "github.com/echofeed/voicepipe/internal/errors"
)

const systemPrompt = `You classify the mood of short voice-note transcripts.
Respond with a single JSON object and nothing else:
{"mood": "<one word>", "confidence": <0..1>, "scores": {"positive": <0..1>, "negative": <0..1>, "neutral": <0..1>}, "image_prompt": "<one-sentence scene description for an image generator>"}`

// Options configures the content analyzer.
type Options struct {
	APIKey  string
	BaseURL string // optional override for OpenAI-compatible endpoints
	Model   string // defaults to gpt-4o-mini
	Logger  *slog.Logger

	// client overrides the constructed OpenAI client in tests.
	client *openai.Client
}

// Analyzer classifies transcripts into a mood plus an image prompt.
type Analyzer struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewAnalyzer constructs a content analyzer.
func NewAnalyzer(opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	chatModel := opts.Model
	if chatModel == "" {
		chatModel = openai.GPT4oMini
	}

	client := opts.client
	if client == nil {
		cfg := openai.DefaultConfig(opts.APIKey)
		if opts.BaseURL != "" {
			cfg.BaseURL = opts.BaseURL
		}
		client = openai.NewClientWithConfig(cfg)
	}

	return &Analyzer{client: client, model: chatModel, logger: logger}
}

// NewAnalyzerWithClient constructs an analyzer around an existing client,
// keeping test wiring out of the production constructor.
func NewAnalyzerWithClient(client *openai.Client, chatModel string, logger *slog.Logger) *Analyzer {
	return NewAnalyzer(Options{Model: chatModel, Logger: logger, client: client})
}

type analysisPayload struct {
	Mood        string             `json:"mood"`
	Confidence  float64            `json:"confidence"`
	Scores      map[string]float64 `json:"scores"`
	ImagePrompt string             `json:"image_prompt"`
}

// Analyze calls the chat model with the transcript and context description.
// A transport or API failure is an upstream failure; malformed model output
// degrades to a neutral default rather than failing the pipeline.
func (a *Analyzer) Analyze(ctx context.Context, transcript, contextDescription string) (*model.Analysis, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, apperrors.Validation("transcript is empty")
	}

	userPrompt := "Transcript:\n" + transcript
	if contextDescription != "" {
		userPrompt += "\n\nRecording context: " + contextDescription
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(ctx.Err(), apperrors.ErrCodeCanceled, "analysis canceled")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUpstreamFailure, "content analysis request")
	}
	if len(resp.Choices) == 0 {
		a.logger.WarnContext(ctx, "analyzer returned no choices, using neutral default")
		return neutralAnalysis(contextDescription), nil
	}

	return a.decode(ctx, resp.Choices[0].Message.Content, contextDescription), nil
}

func (a *Analyzer) decode(ctx context.Context, content, contextDescription string) *model.Analysis {
	var payload analysisPayload
	if err := json.Unmarshal([]byte(extractJSON(content)), &payload); err != nil {
		a.logger.WarnContext(ctx, "malformed analyzer output, using neutral default", "error", err)
		return neutralAnalysis(contextDescription)
	}
	if payload.Mood == "" {
		a.logger.WarnContext(ctx, "analyzer output missing mood, using neutral default")
		return neutralAnalysis(contextDescription)
	}

	sentiment := model.Sentiment{
		Mood:       strings.ToLower(payload.Mood),
		Confidence: clamp01(payload.Confidence),
		Scores:     normalizeScores(payload.Scores),
	}
	prompt := strings.TrimSpace(payload.ImagePrompt)
	if prompt == "" {
		prompt = fallbackPrompt(contextDescription)
	}
	return &model.Analysis{Sentiment: sentiment, ImagePrompt: prompt}
}

func neutralAnalysis(contextDescription string) *model.Analysis {
	return &model.Analysis{
		Sentiment:   model.NeutralSentiment(),
		ImagePrompt: fallbackPrompt(contextDescription),
	}
}

func fallbackPrompt(contextDescription string) string {
	if contextDescription == "" {
		return "a calm abstract composition in soft colors"
	}
	return "a calm abstract composition evoking " + contextDescription
}

// extractJSON strips markdown code fences some models wrap around JSON output.
func extractJSON(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// normalizeScores keeps only the fixed categories and fills gaps with zeros.
func normalizeScores(scores map[string]float64) map[string]float64 {
	out := map[string]float64{"positive": 0, "negative": 0, "neutral": 0}
	for k := range out {
		if v, ok := scores[k]; ok {
			out[k] = clamp01(v)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var _ core.ContentAnalyzer = (*Analyzer)(nil)
