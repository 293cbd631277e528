package imagegen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/echofeed/voicepipe/internal/errors"
)

// fakeBlobStore records Put calls and returns a URL derived from the key.
type fakeBlobStore struct {
	mu     sync.Mutex
	keys   []string
	data   [][]byte
	putErr error
}

func (b *fakeBlobStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.putErr != nil {
		return "", b.putErr
	}
	b.keys = append(b.keys, key)
	b.data = append(b.data, data)
	return "http://blobs.local/" + key, nil
}

func (b *fakeBlobStore) Health(context.Context) error { return nil }

// newImageServer serves a canned b64 image response, capturing the prompt.
func newImageServer(t *testing.T, payload []byte, gotPrompt *string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if gotPrompt != nil {
			*gotPrompt = req.Prompt
		}

		resp := map[string]any{
			"created": 1,
			"data": []map[string]any{
				{"b64_json": base64.StdEncoding.EncodeToString(payload)},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestSynthesizer(t *testing.T, baseURL string, blobs *fakeBlobStore) *Synthesizer {
	t.Helper()
	s, err := NewSynthesizer(Options{
		APIKey:  "test-key",
		BaseURL: baseURL + "/v1",
		Blobs:   blobs,
	})
	require.NoError(t, err)
	return s
}

func TestSynthesizerGenerate(t *testing.T) {
	imageBytes := []byte("fake-png-bytes")

	t.Run("renders, stores, and returns a durable URL", func(t *testing.T) {
		var gotPrompt string
		srv := newImageServer(t, imageBytes, &gotPrompt)
		blobs := &fakeBlobStore{}
		s := newTestSynthesizer(t, srv.URL, blobs)

		url, err := s.Generate(context.Background(), "a sunlit meadow", "vivid", 0)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, "http://blobs.local/images/"), url)
		assert.Equal(t, "a sunlit meadow, vivid", gotPrompt)

		require.Len(t, blobs.data, 1)
		assert.Equal(t, imageBytes, blobs.data[0])
	})

	t.Run("distinct styles store under distinct keys", func(t *testing.T) {
		srv := newImageServer(t, imageBytes, nil)
		blobs := &fakeBlobStore{}
		s := newTestSynthesizer(t, srv.URL, blobs)

		_, err := s.Generate(context.Background(), "a sunlit meadow", "vivid", 0)
		require.NoError(t, err)
		_, err = s.Generate(context.Background(), "a sunlit meadow", "abstract", 1)
		require.NoError(t, err)

		require.Len(t, blobs.keys, 2)
		assert.NotEqual(t, blobs.keys[0], blobs.keys[1])
	})

	t.Run("empty prompt is a validation error", func(t *testing.T) {
		srv := newImageServer(t, imageBytes, nil)
		s := newTestSynthesizer(t, srv.URL, &fakeBlobStore{})

		_, err := s.Generate(context.Background(), "", "vivid", 0)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("API failure is an upstream failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error": {"message": "content policy"}}`, http.StatusBadRequest)
		}))
		t.Cleanup(srv.Close)
		s := newTestSynthesizer(t, srv.URL, &fakeBlobStore{})

		_, err := s.Generate(context.Background(), "a sunlit meadow", "vivid", 0)
		require.Error(t, err)
		assert.True(t, apperrors.IsUpstreamFailure(err))
	})

	t.Run("blob store failure is an upstream failure", func(t *testing.T) {
		srv := newImageServer(t, imageBytes, nil)
		blobs := &fakeBlobStore{putErr: assert.AnError}
		s := newTestSynthesizer(t, srv.URL, blobs)

		_, err := s.Generate(context.Background(), "a sunlit meadow", "vivid", 0)
		require.Error(t, err)
		assert.True(t, apperrors.IsUpstreamFailure(err))
	})

	t.Run("blob store is required", func(t *testing.T) {
		_, err := NewSynthesizer(Options{})
		require.Error(t, err)
	})
}
