package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteConfig configures the HTTP semantic-search client.
type RemoteConfig struct {
	// BaseURL is the collaborator endpoint, e.g. "http://localhost:8091".
	BaseURL string

	// Timeout bounds a single search call when the caller's context
	// carries no earlier deadline.
	Timeout time.Duration
}

// RemoteSearcher calls an external semantic-search service over HTTP.
// Timeouts are enforced through the request context, not the client,
// so a caller deadline always wins.
type RemoteSearcher struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewRemoteSearcher builds a client for the collaborator at cfg.BaseURL.
func NewRemoteSearcher(cfg RemoteConfig) *RemoteSearcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	// No http.Client.Timeout: it would override per-request context
	// deadlines set by the orchestrator.
	return &RemoteSearcher{
		baseURL: cfg.BaseURL,
		timeout: timeout,
		client:  &http.Client{Transport: transport},
	}
}

type remoteSearchRequest struct {
	Query   string            `json:"query"`
	TopK    int               `json:"top_k"`
	Filters map[string]string `json:"filters,omitempty"`
}

type remoteSearchResponse struct {
	Results []Result `json:"results"`
}

// Search posts the query to the collaborator and decodes its ranked
// results. Transport failures map to ErrUnavailable, deadline
// expiration to ErrTimeout.
func (s *RemoteSearcher) Search(ctx context.Context, query string, topK int, filters map[string]string) ([]Result, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	body, err := json.Marshal(remoteSearchRequest{Query: query, TopK: topK, Filters: filters})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	url := s.baseURL + "/v1/search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ErrUnavailable
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, ErrUnavailable
	}

	var decoded remoteSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, ErrUnavailable
	}

	results := decoded.Results
	if len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}
