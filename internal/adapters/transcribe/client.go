// Package transcribe adapts a remote asynchronous speech-to-text API to the
// core.TranscriptionEngine port. The remote API accepts a start request,
// returns a job id, and is polled until the transcript is ready.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/echofeed/voicepipe/internal/core"
	"github.com/echofeed/voicepipe/internal/domain/model"
	apperrors "github.com/echofeed/voicepipe/internal/errors"
)

const maxErrorBodyBytes = 2 * 1024 // keep remote error payloads out of logs past this

// Remote job states reported by the transcription API.
const (
	remoteStatusQueued     = "queued"
	remoteStatusProcessing = "processing"
	remoteStatusCompleted  = "completed"
	remoteStatusError      = "error"
)

// Options configures the transcription client.
type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *slog.Logger

	// PollInterval is the fixed delay between status polls; defaults to 2s.
	PollInterval time.Duration
	// MaxPollAttempts bounds the poll loop; exceeding it is a fatal timeout,
	// not an indefinite wait. Defaults to 150 (5 minutes at the default interval).
	MaxPollAttempts int
}

// Client drives one remote transcription job per Transcribe call.
type Client struct {
	baseURL      string
	apiKey       string
	http         *http.Client
	logger       *slog.Logger
	pollInterval time.Duration
	maxAttempts  int
}

// NewClient constructs a transcription client.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("transcription base URL is required")
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	attempts := opts.MaxPollAttempts
	if attempts <= 0 {
		attempts = 150
	}

	return &Client{
		baseURL:      opts.BaseURL,
		apiKey:       opts.APIKey,
		http:         hc,
		logger:       logger,
		pollInterval: interval,
		maxAttempts:  attempts,
	}, nil
}

type startRequest struct {
	AudioURL     string `json:"audio_url"`
	LanguageCode string `json:"language_code,omitempty"`
}

type transcriptResponse struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	Progress   int     `json:"progress"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error"`
}

// Transcribe starts a remote transcription job and polls it to completion
// with a fixed interval and a bounded attempt count. Fractional progress in
// [0,1] is reported through the optional callback as polls arrive.
func (c *Client) Transcribe(
	ctx context.Context,
	audioRef, language string,
	progress func(fraction float64),
) (*model.Transcript, error) {
	if audioRef == "" {
		return nil, apperrors.Validation("audio ref is required")
	}

	remoteID, err := c.start(ctx, audioRef, language)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, apperrors.Wrap(ctx.Err(), apperrors.ErrCodeCanceled, "transcription canceled")
		case <-ticker.C:
		}

		resp, err := c.poll(ctx, remoteID)
		if err != nil {
			return nil, err
		}

		switch resp.Status {
		case remoteStatusCompleted:
			if progress != nil {
				progress(1)
			}
			return &model.Transcript{Text: resp.Text, Confidence: resp.Confidence}, nil
		case remoteStatusError:
			return nil, apperrors.UpstreamFailuref("transcription failed: %s", resp.Error)
		case remoteStatusQueued, remoteStatusProcessing:
			if progress != nil {
				progress(clampFraction(float64(resp.Progress) / 100))
			}
		default:
			c.logger.WarnContext(ctx, "unknown transcription status", "remote_id", remoteID, "status", resp.Status)
		}
	}

	return nil, apperrors.UpstreamTimeoutf(
		"transcription did not complete within %d polls at %v", c.maxAttempts, c.pollInterval)
}

func (c *Client) start(ctx context.Context, audioRef, language string) (string, error) {
	body, err := json.Marshal(startRequest{AudioURL: audioRef, LanguageCode: language})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode start request")
	}

	var resp transcriptResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/v1/transcripts", body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", apperrors.UpstreamFailure("transcription start returned no job id")
	}
	return resp.ID, nil
}

func (c *Client) poll(ctx context.Context, remoteID string) (*transcriptResponse, error) {
	var resp transcriptResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/v1/transcripts/"+remoteID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, bytesReader(body))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "build request")
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return apperrors.Wrap(ctx.Err(), apperrors.ErrCodeCanceled, "transcription canceled")
		}
		return apperrors.Wrap(err, apperrors.ErrCodeUpstreamFailure, "transcription request")
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close transcription response body", "error", cerr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return apperrors.UpstreamFailuref("transcription API status %d: %s", resp.StatusCode, string(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeUpstreamFailure, "decode transcription response")
	}
	return nil
}

// bytesReader returns an io.Reader for b, or nil if b is empty.
func bytesReader(b []byte) io.Reader {
	if len(b) == 0 {
		return nil
	}
	return bytes.NewReader(b)
}

func clampFraction(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

var _ core.TranscriptionEngine = (*Client)(nil)
