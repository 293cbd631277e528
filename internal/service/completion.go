package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/echofeed/voicepipe/internal/domain/model"
)

// ErrEventDropped is returned by ChannelPublisher.Publish when the buffer is
// full. Callers treat it as advisory; a dropped event never fails the job.
var ErrEventDropped = errors.New("completion event dropped: buffer full")

// ChannelPublisher is a non-blocking in-process CompletionPublisher backed by
// a buffered channel. Downstream consumers (feed builders, digest workers)
// drain Events; slow consumers lose events rather than stalling the pipeline.
type ChannelPublisher struct {
	events chan model.CompletionEvent
	logger *slog.Logger
}

// NewChannelPublisher constructs a ChannelPublisher with the given buffer
// size. A non-positive size falls back to a small default.
func NewChannelPublisher(size int, logger *slog.Logger) *ChannelPublisher {
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = slog.Default().With("component", "completion_publisher")
	}
	return &ChannelPublisher{
		events: make(chan model.CompletionEvent, size),
		logger: logger,
	}
}

// Publish enqueues the event without blocking. When the buffer is full the
// event is dropped and ErrEventDropped returned.
func (p *ChannelPublisher) Publish(ctx context.Context, event model.CompletionEvent) error {
	select {
	case p.events <- event:
		return nil
	default:
		p.logger.WarnContext(ctx, "completion event dropped", "job_id", event.JobID)
		return ErrEventDropped
	}
}

// Events exposes the consumer side of the buffer.
func (p *ChannelPublisher) Events() <-chan model.CompletionEvent {
	return p.events
}
