package metrics

import (
	"strconv"
	"time"

	obserrors "github.com/echofeed/voicepipe/internal/observability/errors"
	"github.com/echofeed/voicepipe/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultCacheHit = "cache_hit"
)

// StageMetric captures details about a pipeline stage event for metric emission.
type StageMetric struct {
	Stage    string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitStageLifecycle emits standardised pipeline stage metrics.
func EmitStageLifecycle(sink statsd.Sink, in StageMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"stage":  in.Stage,
		"result": in.Result,
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("pipeline.stage", 1, tags)

	if in.Duration > 0 {
		sink.Timing("pipeline.stage.duration", in.Duration, CloneTags(tags))
	}
}

// StatusMetric captures a single published status transition.
type StatusMetric struct {
	Stage    string
	Progress int
}

// EmitStatusTransition counts status publications and gauges overall progress.
func EmitStatusTransition(sink statsd.Sink, in StatusMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"stage":    in.Stage,
		"progress": strconv.Itoa(in.Progress),
	}
	sink.Count("status.transition", 1, map[string]string{"stage": in.Stage})
	sink.Gauge("status.progress", float64(in.Progress), CloneTags(tags))
}

// CloneTags creates a shallow copy of a tag map, filtering out empty maps.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
