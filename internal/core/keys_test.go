package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalysisKey(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t,
			AnalysisKey("a walk in the park", "sunny morning"),
			AnalysisKey("a walk in the park", "sunny morning"))
	})

	t.Run("sensitive to each field", func(t *testing.T) {
		base := AnalysisKey("a walk in the park", "sunny morning")
		assert.NotEqual(t, base, AnalysisKey("a walk in the park", "rainy morning"))
		assert.NotEqual(t, base, AnalysisKey("a run in the park", "sunny morning"))
	})

	t.Run("field boundaries do not collide", func(t *testing.T) {
		assert.NotEqual(t, AnalysisKey("ab", "c"), AnalysisKey("a", "bc"))
		assert.NotEqual(t, AnalysisKey("", "abc"), AnalysisKey("abc", ""))
	})
}

func TestImageKey(t *testing.T) {
	t.Run("style variants get distinct keys", func(t *testing.T) {
		assert.NotEqual(t, ImageKey("golden field", "vivid"), ImageKey("golden field", "natural"))
	})

	t.Run("independent of analysis namespace", func(t *testing.T) {
		assert.NotEqual(t, ImageKey("x", "y"), AnalysisKey("x", "y"))
	})

	t.Run("hex encoded sha256", func(t *testing.T) {
		assert.Len(t, ImageKey("p", "s"), 64)
	})
}
