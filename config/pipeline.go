package config

import (
	"strings"
	"time"
)

// PipelineConfig contains pipeline orchestrator and runner configuration.
type PipelineConfig struct {
	// ImageStyles is a comma-delimited list of style variants requested per
	// job. Order matters: the first successful variant in this order becomes
	// the canonical mood image.
	ImageStyles string `env:"PIPELINE_IMAGE_STYLES" envDefault:"vivid,natural,abstract"`

	// TranscribeTimeout bounds the transcription stage.
	TranscribeTimeout time.Duration `env:"PIPELINE_TRANSCRIBE_TIMEOUT" envDefault:"5m"`

	// AnalyzeTimeout bounds the mood analysis stage.
	AnalyzeTimeout time.Duration `env:"PIPELINE_ANALYZE_TIMEOUT" envDefault:"1m"`

	// GenerateTimeout bounds the image synthesis stage.
	GenerateTimeout time.Duration `env:"PIPELINE_GENERATE_TIMEOUT" envDefault:"2m"`

	// OverallTimeout bounds a whole pipeline run.
	OverallTimeout time.Duration `env:"PIPELINE_OVERALL_TIMEOUT" envDefault:"10m"`

	// RunnerConcurrency is the number of pipeline runner worker goroutines.
	RunnerConcurrency int `env:"PIPELINE_RUNNER_CONCURRENCY" envDefault:"4"`

	// DequeueWait bounds each blocking dequeue from the submission queue.
	DequeueWait time.Duration `env:"PIPELINE_DEQUEUE_WAIT" envDefault:"5s"`

	// EventBufferSize is the completion event buffer; events beyond it are dropped.
	EventBufferSize int `env:"PIPELINE_EVENT_BUFFER_SIZE" envDefault:"256"`
}

// Styles returns the parsed, trimmed style list in submission order.
func (p *PipelineConfig) Styles() []string {
	var out []string
	for _, s := range strings.Split(p.ImageStyles, ",") {
		if v := strings.TrimSpace(s); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Sanitize applies guardrails to pipeline configuration values.
func (p *PipelineConfig) Sanitize() {
	if len(p.Styles()) == 0 {
		p.ImageStyles = "vivid,natural,abstract"
	}
	if p.TranscribeTimeout < time.Second {
		p.TranscribeTimeout = time.Second
	}
	if p.AnalyzeTimeout < time.Second {
		p.AnalyzeTimeout = time.Second
	}
	if p.GenerateTimeout < time.Second {
		p.GenerateTimeout = time.Second
	}
	if p.OverallTimeout < p.TranscribeTimeout {
		p.OverallTimeout = p.TranscribeTimeout + p.AnalyzeTimeout + p.GenerateTimeout
	}
	if p.RunnerConcurrency < 1 {
		p.RunnerConcurrency = 1
	}
	if p.DequeueWait < time.Second {
		p.DequeueWait = time.Second
	}
	if p.EventBufferSize < 1 {
		p.EventBufferSize = 1
	}
}
