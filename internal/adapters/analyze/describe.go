package analyze

import (
	"fmt"
	"strings"
	"time"

	"github.com/echofeed/voicepipe/internal/domain/model"
)

// DescribeContext derives a normalized, human-readable description of the
// recording circumstances from job metadata. It is deterministic, has no
// dependency on the transcript, and never fails: missing fields are skipped.
func DescribeContext(md model.JobMetadata) string {
	var parts []string

	if md.Location != "" {
		parts = append(parts, "recorded in "+md.Location)
	}
	if md.Weather != "" {
		parts = append(parts, md.Weather+" weather")
	}
	if md.RecordedAt != nil {
		parts = append(parts, "in the "+timeOfDay(*md.RecordedAt))
	}
	if md.DurationMs > 0 {
		parts = append(parts, fmt.Sprintf("a %s note", durationBucket(md.DurationMs)))
	}

	return strings.Join(parts, ", ")
}

func timeOfDay(t time.Time) string {
	switch h := t.Hour(); {
	case h < 6:
		return "night"
	case h < 12:
		return "morning"
	case h < 18:
		return "afternoon"
	default:
		return "evening"
	}
}

func durationBucket(ms int64) string {
	switch {
	case ms < 15_000:
		return "brief"
	case ms < 60_000:
		return "short"
	case ms < 180_000:
		return "medium-length"
	default:
		return "long"
	}
}
