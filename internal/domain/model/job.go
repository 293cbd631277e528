// Package model defines the core data types for the voicepipe processing pipeline.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Stage represents a phase of the voice-processing state machine.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type Stage string

const (
	// StageUploaded indicates a job has been accepted but processing has not started.
	StageUploaded Stage = "uploaded"
	// StageTranscribing indicates transcription and context analysis are in flight.
	StageTranscribing Stage = "transcribing"
	// StageAnalyzing indicates the content analyzer is classifying the transcript.
	StageAnalyzing Stage = "analyzing"
	// StageGenerating indicates mood image synthesis is in flight.
	StageGenerating Stage = "generating"
	// StageComplete is the successful terminal stage.
	StageComplete Stage = "complete"
	// StageError is the failed terminal stage.
	StageError Stage = "error"
)

// stageRank orders stages for transition checks. Terminal stages share the
// highest rank because no stage follows them.
var stageRank = map[Stage]int{
	StageUploaded:     0,
	StageTranscribing: 1,
	StageAnalyzing:    2,
	StageGenerating:   3,
	StageComplete:     4,
	StageError:        4,
}

// UnmarshalText implements encoding.TextUnmarshaler for Stage to allow env/JSON parsing.
func (s *Stage) UnmarshalText(text []byte) error {
	v := Stage(strings.ToLower(strings.TrimSpace(string(text))))
	if v.Valid() {
		*s = v
		return nil
	}
	return fmt.Errorf("invalid Stage: %q", string(text))
}

// Valid returns true if the Stage is one of the defined pipeline stages.
func (s Stage) Valid() bool {
	_, ok := stageRank[s]
	return ok
}

// Terminal returns true for the two terminal stages.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError
}

// Before reports whether s is strictly earlier than other in the pipeline order.
func (s Stage) Before(other Stage) bool {
	return stageRank[s] < stageRank[other]
}

// ErrorKind categorizes a pipeline failure.
type ErrorKind string

const (
	// ErrorKindValidation indicates bad job input; resubmitting unchanged input cannot succeed.
	ErrorKindValidation ErrorKind = "validation"
	// ErrorKindUpstreamTimeout indicates a bounded wait on an external engine was exceeded.
	ErrorKindUpstreamTimeout ErrorKind = "upstream_timeout"
	// ErrorKindUpstreamFailure indicates an external engine returned an explicit failure.
	ErrorKindUpstreamFailure ErrorKind = "upstream_failure"
	// ErrorKindGenerationFailed indicates every parallel image request failed.
	ErrorKindGenerationFailed ErrorKind = "generation_failed"
	// ErrorKindInternal indicates an unexpected internal fault.
	ErrorKindInternal ErrorKind = "internal"
)

// JobMetadata carries the immutable context captured alongside the audio.
// All fields are inputs to the content analyzer; none depend on the transcript.
type JobMetadata struct {
	DurationMs int64      `json:"duration_ms"`
	Format     string     `json:"format"`
	Language   string     `json:"language,omitempty"`
	Location   string     `json:"location,omitempty"`
	Weather    string     `json:"weather,omitempty"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
}

// VoiceProcessingJob is the pipeline's input. It is created at submission time
// and never mutated afterwards.
type VoiceProcessingJob struct {
	JobID              string      `json:"job_id"`
	OwnerID            string      `json:"owner_id"`
	AudioRef           string      `json:"audio_ref"`
	ContentFingerprint string      `json:"content_fingerprint"`
	Metadata           JobMetadata `json:"metadata"`
	// SubscriberHandle is an opaque reference to a live client; empty for
	// poll-only clients.
	SubscriberHandle string    `json:"subscriber_handle,omitempty"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// Validate checks the fields the pipeline cannot proceed without. Violations
// are terminal and not retryable.
func (j *VoiceProcessingJob) Validate() error {
	if j.AudioRef == "" {
		return errors.New("audio ref is required")
	}
	if j.ContentFingerprint == "" {
		return errors.New("content fingerprint is required")
	}
	if j.OwnerID == "" {
		return errors.New("owner id is required")
	}
	if j.Metadata.DurationMs < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// Sentiment is the mood classification produced by the content analyzer.
type Sentiment struct {
	Mood       string             `json:"mood"`
	Confidence float64            `json:"confidence"`
	// Scores is a small fixed distribution over positive/negative/neutral.
	Scores map[string]float64 `json:"scores,omitempty"`
}

// NeutralSentiment is the degraded default used when the analyzer output is
// unusable; the pipeline never fails on malformed classifier output alone.
func NeutralSentiment() Sentiment {
	return Sentiment{
		Mood:       "neutral",
		Confidence: 0,
		Scores:     map[string]float64{"positive": 0, "negative": 0, "neutral": 1},
	}
}

// Analysis is the content analyzer's full output: the sentiment plus the
// natural-language prompt fed to the image synthesizer.
type Analysis struct {
	Sentiment   Sentiment `json:"sentiment"`
	ImagePrompt string    `json:"image_prompt"`
}

// Transcript is the transcription engine's output.
type Transcript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// ProcessingResult is populated on the COMPLETE status.
type ProcessingResult struct {
	Transcript string    `json:"transcript"`
	Sentiment  Sentiment `json:"sentiment"`
	// ImageRef is the canonical image chosen by the deterministic tie-break.
	ImageRef string `json:"image_ref"`
	// ImageRefs lists every successfully generated variant, submission order.
	ImageRefs []string `json:"image_refs,omitempty"`
}

// ProcessingError is populated on the ERROR status.
type ProcessingError struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
}

// ProcessingStatus is a job's evolving public state. It is owned exclusively
// by the orchestrator while the job is active and persisted with a bounded TTL.
type ProcessingStatus struct {
	JobID    string `json:"job_id"`
	Stage    Stage  `json:"stage"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
	// EstimatedRemainingMs is advisory only and may be absent.
	EstimatedRemainingMs *int64            `json:"estimated_remaining_ms,omitempty"`
	Result               *ProcessingResult `json:"result,omitempty"`
	Error                *ProcessingError  `json:"error,omitempty"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// Validate enforces the terminal-stage invariant: exactly one of result/error
// is populated, and only in the matching terminal stage.
func (s *ProcessingStatus) Validate() error {
	if s.JobID == "" {
		return errors.New("job id is required")
	}
	if !s.Stage.Valid() {
		return fmt.Errorf("invalid stage: %q", s.Stage)
	}
	if s.Progress < 0 || s.Progress > 100 {
		return fmt.Errorf("progress out of range: %d", s.Progress)
	}
	switch s.Stage {
	case StageComplete:
		if s.Result == nil || s.Error != nil {
			return errors.New("complete status must carry a result and no error")
		}
	case StageError:
		if s.Error == nil || s.Result != nil {
			return errors.New("error status must carry an error and no result")
		}
	default:
		if s.Result != nil || s.Error != nil {
			return errors.New("non-terminal status must not carry a result or error")
		}
	}
	return nil
}

// CachedResult is the value memoized per content fingerprint. Immutable once
// written; a duplicate write for the same fingerprint is a harmless overwrite
// with identical content.
type CachedResult struct {
	Transcript string    `json:"transcript"`
	Sentiment  Sentiment `json:"sentiment"`
	ImageRef   string    `json:"image_ref"`
}

// CompletionEvent is emitted once per successfully processed job for
// downstream consumers such as the persistence layer.
type CompletionEvent struct {
	JobID       string       `json:"job_id"`
	OwnerID     string       `json:"owner_id"`
	Result      CachedResult `json:"result"`
	CompletedAt time.Time    `json:"completed_at"`
}
