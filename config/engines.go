package config

import (
	"strings"
	"time"
)

// TranscriptionConfig contains the asynchronous speech-to-text engine configuration.
type TranscriptionConfig struct {
	// BaseURL is the root of the transcription API.
	BaseURL string `env:"BASE_URL" envDefault:"https://api.transcription.local"`

	// APIKey authenticates requests to the transcription API.
	APIKey string `env:"API_KEY"`

	// PollInterval is the delay between status polls for an in-flight transcript.
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`

	// MaxPollAttempts bounds the poll loop; exceeding it fails the job with
	// an upstream timeout.
	MaxPollAttempts int `env:"MAX_POLL_ATTEMPTS" envDefault:"150"`
}

// Sanitize applies guardrails to transcription configuration values.
func (t *TranscriptionConfig) Sanitize() {
	t.BaseURL = strings.TrimRight(strings.TrimSpace(t.BaseURL), "/")
	if t.PollInterval < 100*time.Millisecond {
		t.PollInterval = 100 * time.Millisecond
	}
	if t.MaxPollAttempts < 1 {
		t.MaxPollAttempts = 1
	}
}

// OpenAIConfig contains configuration for the mood analyzer and image synthesizer.
type OpenAIConfig struct {
	// APIKey authenticates requests to the OpenAI-compatible API.
	APIKey string `env:"API_KEY"`

	// BaseURL overrides the API endpoint; empty uses the library default.
	// Useful for proxies and compatible self-hosted backends.
	BaseURL string `env:"BASE_URL"`

	// ChatModel is the model used for mood classification.
	ChatModel string `env:"CHAT_MODEL" envDefault:"gpt-4o-mini"`

	// ImageModel is the model used for mood image synthesis.
	ImageModel string `env:"IMAGE_MODEL" envDefault:"dall-e-3"`

	// ImageSize is the requested image resolution.
	ImageSize string `env:"IMAGE_SIZE" envDefault:"1024x1024"`
}

// Sanitize applies guardrails to OpenAI configuration values.
func (o *OpenAIConfig) Sanitize() {
	o.BaseURL = strings.TrimSpace(o.BaseURL)
	if strings.TrimSpace(o.ChatModel) == "" {
		o.ChatModel = "gpt-4o-mini"
	}
	if strings.TrimSpace(o.ImageModel) == "" {
		o.ImageModel = "dall-e-3"
	}
	if strings.TrimSpace(o.ImageSize) == "" {
		o.ImageSize = "1024x1024"
	}
}

// BlobConfig contains the S3-compatible blob store configuration where
// generated images are persisted.
type BlobConfig struct {
	Endpoint  string `env:"ENDPOINT"   envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET"     envDefault:"voicepipe-images"`
	UseSSL    bool   `env:"USE_SSL"    envDefault:"false"`

	// PublicBaseURL is prepended to object keys to form the durable image
	// references handed to clients.
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:9000/voicepipe-images"`
}

// Sanitize applies guardrails to blob store configuration values.
func (b *BlobConfig) Sanitize() {
	b.Endpoint = strings.TrimSpace(b.Endpoint)
	b.Bucket = strings.TrimSpace(b.Bucket)
	b.PublicBaseURL = strings.TrimRight(strings.TrimSpace(b.PublicBaseURL), "/")
}
