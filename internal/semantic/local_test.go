package semantic

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
)

// stubEmbedder maps known texts to fixed 3-dimensional vectors so
// similarity ordering is fully controlled by the test.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func (s *stubEmbedder) Dimensions() int { return 3 }

func newTestLocal(t *testing.T) *LocalSearcher {
	t.Helper()
	return NewLocalSearcher(&stubEmbedder{vectors: map[string][]float32{
		"casa com piscina": {1, 0, 0},
		"piscina aquecida": {0.9, 0.1, 0},
		"terreno vazio":    {0, 1, 0},
		"piscina":          {1, 0, 0},
	}})
}

// --- TS01: similarity ordering ---

func TestLocalSearcher_RanksBySimilarity(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, s.IndexText(ctx, "pool", "casa com piscina", nil))
	require.NoError(t, s.IndexText(ctx, "heated", "piscina aquecida", nil))
	require.NoError(t, s.IndexText(ctx, "land", "terreno vazio", nil))

	results, err := s.Search(ctx, "piscina", 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "pool", results[0].ChunkID)
	assert.Equal(t, "heated", results[1].ChunkID)
	assert.Equal(t, "land", results[2].ChunkID)
	assert.Equal(t, 1, results[0].Rank)
	assert.Greater(t, results[0].Score, results[2].Score)
}

func TestLocalSearcher_TopKLimits(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, s.IndexText(ctx, "pool", "casa com piscina", nil))
	require.NoError(t, s.IndexText(ctx, "heated", "piscina aquecida", nil))

	results, err := s.Search(ctx, "piscina", 1, nil)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

// --- TS02: edge cases and mutation ---

func TestLocalSearcher_EmptyIndexAndEmptyQuery(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	results, err := s.Search(ctx, "piscina", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, s.IndexText(ctx, "pool", "casa com piscina", nil))

	results, err = s.Search(ctx, "", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = s.Search(ctx, "piscina", 0, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLocalSearcher_RemoveHidesChunk(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, s.IndexText(ctx, "pool", "casa com piscina", nil))
	require.NoError(t, s.IndexText(ctx, "land", "terreno vazio", nil))
	s.Remove("pool")

	results, err := s.Search(ctx, "piscina", 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "land", results[0].ChunkID)
	assert.Equal(t, 1, s.Size())
}

func TestLocalSearcher_ReindexReplacesVector(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, s.IndexText(ctx, "x", "terreno vazio", nil))
	require.NoError(t, s.IndexText(ctx, "x", "casa com piscina", nil))

	results, err := s.Search(ctx, "piscina", 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, 1, s.Size())
}

func TestLocalSearcher_MetadataFilters(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, s.IndexText(ctx, "pool", "casa com piscina",
		map[string]string{"bairro": "centro"}))
	require.NoError(t, s.IndexText(ctx, "heated", "piscina aquecida",
		map[string]string{"bairro": "santa monica"}))

	results, err := s.Search(ctx, "piscina", 5, map[string]string{"bairro": "centro"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "pool", results[0].ChunkID)
}

func TestLocalSearcher_DimensionMismatch(t *testing.T) {
	s := newTestLocal(t)

	err := s.IndexVector("bad", []float32{1, 0}, nil)
	require.Error(t, err)
}

// --- TS03: Ollama embedder ---

func TestOllamaEmbedder_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{
			Embeddings: [][]float32{{0.1, 0.2, 0.3}},
		})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Model: "nomic-embed-text", Dimensions: 3})
	vec, err := e.Embed(context.Background(), "casa com piscina")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, e.Dimensions())
}

func TestOllamaEmbedder_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{
			Embeddings: [][]float32{{0.1, 0.2}},
		})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Model: "m", Dimensions: 3})
	_, err := e.Embed(context.Background(), "casa")
	require.Error(t, err)
}

func TestOllamaEmbedder_ServerDownIsUnavailable(t *testing.T) {
	e := NewOllamaEmbedder(OllamaConfig{BaseURL: "http://127.0.0.1:1", Model: "m"})
	e.retry.InitialDelay = time.Millisecond
	_, err := e.Embed(context.Background(), "casa")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOllamaEmbedder_RetriesWhileUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{
			Embeddings: [][]float32{{0.1, 0.2, 0.3}},
		})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Model: "m", Dimensions: 3})
	e.retry.InitialDelay = time.Millisecond

	vec, err := e.Embed(context.Background(), "casa")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOllamaEmbedder_NoRetryOnBadResponse(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{
			Embeddings: [][]float32{{0.1, 0.2}},
		})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Model: "m", Dimensions: 3})
	e.retry.InitialDelay = time.Millisecond

	_, err := e.Embed(context.Background(), "casa")
	require.Error(t, err)
	// A dimension mismatch will not improve on a resend.
	assert.Equal(t, int32(1), calls.Load())
}
