package knowledge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"briefdoc/internal/config"
	"briefdoc/internal/retry"
)

func ollamaServer(t *testing.T, requests *atomic.Int32, check func(ollamaEmbedRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if check != nil {
			check(req)
		}
		resp := ollamaEmbedResponse{}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{0.1, 0.2, 0.3})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	var requests atomic.Int32
	srv := ollamaServer(t, &requests, func(req ollamaEmbedRequest) {
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.True(t, req.Truncate)
		assert.Zero(t, req.Dimensions)
	})

	em := NewOllamaEmbedder(config.EmbeddingConfig{Model: "nomic-embed-text", BaseURL: srv.URL + "/"}, retry.DefaultPolicy())
	vecs, err := em.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, 3, em.Dimension())
	assert.EqualValues(t, 1, requests.Load())
}

func TestOllamaEmbedder_ConfiguredBatches(t *testing.T) {
	var requests atomic.Int32
	srv := ollamaServer(t, &requests, func(req ollamaEmbedRequest) {
		assert.LessOrEqual(t, len(req.Input), 2)
		assert.Equal(t, 3, req.Dimensions)
	})

	em := NewOllamaEmbedder(config.EmbeddingConfig{
		Model:      "m",
		BaseURL:    srv.URL + "/api/embed",
		Dimension:  3,
		BatchSize:  2,
		BatchDelay: time.Millisecond,
	}, retry.DefaultPolicy())
	vecs, err := em.Embed(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	assert.Len(t, vecs, 5)
	assert.EqualValues(t, 3, requests.Load())
}

func TestOllamaEmbedder_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[1,2]]}`))
	}))
	defer srv.Close()

	em := NewOllamaEmbedder(config.EmbeddingConfig{Model: "m", Dimension: 2, BaseURL: srv.URL}, retry.DefaultPolicy())
	_, err := em.Embed(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestOllamaEmbedder_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"embeddings":[[1,0]]}`))
	}))
	defer srv.Close()

	policy := retry.Policy{Attempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	em := NewOllamaEmbedder(config.EmbeddingConfig{Model: "m", BaseURL: srv.URL}, policy)
	vecs, err := em.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}}, vecs)
	assert.EqualValues(t, 2, calls.Load())
}

func TestOllamaEmbedder_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	policy := retry.Policy{Attempts: 3, InitialInterval: time.Millisecond}
	em := NewOllamaEmbedder(config.EmbeddingConfig{Model: "missing", BaseURL: srv.URL}, policy)
	_, err := em.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.EqualValues(t, 1, calls.Load())
}

func TestNewEmbedder(t *testing.T) {
	_, err := NewEmbedder(context.Background(), config.EmbeddingConfig{Provider: "cohere"}, retry.DefaultPolicy())
	assert.Error(t, err)

	em, err := NewEmbedder(context.Background(), config.EmbeddingConfig{Provider: " Ollama ", Model: "m", Dimension: 8}, retry.DefaultPolicy())
	require.NoError(t, err)
	ollama, ok := em.(*OllamaEmbedder)
	require.True(t, ok)
	assert.Equal(t, "http://127.0.0.1:11434/api/embed", ollama.endpoint)
	assert.Equal(t, ollamaBatchSize, ollama.batches.size)
	assert.Equal(t, 8, em.Dimension())

	em, err = NewEmbedder(context.Background(), config.EmbeddingConfig{Provider: "openai", Model: "text-embedding-3-small", BatchSize: 16}, retry.DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, 16, em.(*OpenAIEmbedder).batches.size)
}

func TestBatcher_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := batcher{size: 1, delay: time.Hour}
	calls := 0
	_, err := b.run(ctx, []string{"a", "b"}, func(context.Context, []string) ([][]float32, error) {
		calls++
		cancel()
		return [][]float32{{1}}, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
