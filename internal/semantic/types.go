// Package semantic provides the semantic-search collaborator: the
// Searcher contract the orchestrator fans out to, a remote HTTP client
// implementation, and a local HNSW-backed implementation for
// deployments that embed on-box.
package semantic

import (
	"context"

	"github.com/fama-labs/searchcore/internal/errors"
)

// Collaborator failure sentinels. Callers distinguish them with
// errors.Is; the orchestrator maps both to degraded mode rather than
// failing the retrieval.
var (
	ErrUnavailable = errors.New(errors.ErrCodeCollaboratorUnavailable,
		"semantic collaborator unavailable", nil)
	ErrTimeout = errors.New(errors.ErrCodeCollaboratorTimeout,
		"semantic collaborator timed out", nil)
)

// Result is one ranked match from the semantic engine. Scores are
// engine-local similarities, not comparable to literal scores without
// fusion-time normalization.
type Result struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

// Searcher is the semantic-search collaborator contract. Filters are
// exact-match metadata constraints; implementations that cannot filter
// may ignore them and let fusion-side filtering compensate.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, filters map[string]string) ([]Result, error)
}

// Embedder turns text into a dense vector. Implemented by the Ollama
// client; swappable in tests.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}
