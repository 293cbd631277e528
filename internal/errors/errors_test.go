package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsAndPredicates(t *testing.T) {
	tests := []struct {
		name      string
		err       *AppError
		code      ErrorCode
		predicate func(error) bool
	}{
		{"validation", Validation("bad input"), ErrCodeValidation, IsValidation},
		{"upstream timeout", UpstreamTimeoutf("poll %d exhausted", 150), ErrCodeUpstreamTimeout, IsUpstreamTimeout},
		{"upstream failure", UpstreamFailure("engine said no"), ErrCodeUpstreamFailure, IsUpstreamFailure},
		{"generation failed", GenerationFailed("all variants failed"), ErrCodeGenerationFailed, IsGenerationFailed},
		{"internal", Internalf("oops %s", "here"), ErrCodeInternal, IsInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, tc.err.Code)
			assert.True(t, tc.predicate(tc.err))
			assert.Equal(t, tc.code, GetCode(tc.err))
		})
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, ErrCodeUpstreamFailure, "call engine")

	require.NotNil(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "call engine")
	assert.Contains(t, err.Error(), "connection refused")

	t.Run("nil cause yields nil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, ErrCodeInternal, "noop"))
		assert.Nil(t, Wrapf(nil, ErrCodeInternal, "noop %d", 1))
	})
}

func TestGetCodeThroughWrapping(t *testing.T) {
	inner := UpstreamTimeout("transcript poll exhausted")
	outer := fmt.Errorf("stage failed: %w", inner)

	assert.Equal(t, ErrCodeUpstreamTimeout, GetCode(outer))
	assert.True(t, IsUpstreamTimeout(outer))

	t.Run("uncoded errors default to internal", func(t *testing.T) {
		assert.Equal(t, ErrCodeInternal, GetCode(errors.New("plain")))
	})
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(Validation("bad fingerprint")))
	assert.True(t, Retryable(UpstreamTimeout("slow")))
	assert.True(t, Retryable(UpstreamFailure("down")))
	assert.True(t, Retryable(GenerationFailed("no image")))
	assert.True(t, Retryable(errors.New("plain")), "uncoded errors are treated as transient")
}
