package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fama-labs/searchcore/internal/errors"
)

// OllamaConfig configures the local embedding backend.
type OllamaConfig struct {
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// OllamaEmbedder produces embeddings via a local Ollama server's
// /api/embed endpoint.
type OllamaEmbedder struct {
	cfg    OllamaConfig
	client *http.Client
	retry  errors.RetryConfig
}

// NewOllamaEmbedder builds an embedder for the given backend. No
// network call happens here; availability surfaces on first Embed.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	retry := errors.DefaultRetryConfig()
	// Only a flaky backend deserves another attempt; a timed-out call
	// already spent the caller's budget and malformed responses will
	// not improve on a resend.
	retry.RetryIf = func(err error) bool {
		return stderrors.Is(err, ErrUnavailable)
	}
	return &OllamaEmbedder{
		cfg: cfg,
		// Context deadlines control per-call timeouts.
		client: &http.Client{Transport: &http.Transport{
			MaxIdleConns:        4,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		}},
		retry: retry,
	}
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns the embedding vector for text, retrying with backoff
// while the backend is unavailable.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	return errors.RetryWithResult(ctx, e.retry, func() ([]float32, error) {
		return e.embedOnce(ctx, text)
	})
}

func (e *OllamaEmbedder) embedOnce(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.cfg.Model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embed request: %w", err)
	}

	url := e.cfg.BaseURL + "/api/embed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ErrUnavailable
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrUnavailable
	}

	var decoded ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	if len(decoded.Embeddings) == 0 {
		return nil, fmt.Errorf("embed response contained no vectors")
	}
	vec := decoded.Embeddings[0]
	if e.cfg.Dimensions > 0 && len(vec) != e.cfg.Dimensions {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d",
			e.cfg.Dimensions, len(vec))
	}
	return vec, nil
}

// Dimensions returns the configured embedding dimensionality.
func (e *OllamaEmbedder) Dimensions() int {
	return e.cfg.Dimensions
}
