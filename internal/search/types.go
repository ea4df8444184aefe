// Package search contains the retrieval core: query intent analysis,
// result fusion and the hybrid orchestrator that fans out to the
// literal engine and the semantic collaborator.
package search

import (
	"github.com/fama-labs/searchcore/internal/lexical"
)

// Source identifies which engine produced a result.
type Source string

const (
	SourceLiteral  Source = "literal"
	SourceSemantic Source = "semantic"
)

// Mode selects the retrieval path.
type Mode string

const (
	ModeLiteralOnly  Mode = "literal_only"
	ModeSemanticOnly Mode = "semantic_only"
	ModeHybrid       Mode = "hybrid"
)

// Strategy selects the fusion algorithm.
type Strategy string

const (
	StrategyRRF      Strategy = "rrf"
	StrategyWeighted Strategy = "weighted"
)

// IntentCategory is the analyzer's classification of a query.
type IntentCategory string

const (
	IntentPrice         IntentCategory = "price"
	IntentLocation      IntentCategory = "location"
	IntentSpecification IntentCategory = "specification"
	IntentConceptual    IntentCategory = "conceptual"
)

// Weights balances the two engines' contributions during fusion. A
// valid pair sums to 1.0.
type Weights struct {
	Literal  float64 `json:"literal"`
	Semantic float64 `json:"semantic"`
}

// SourceResult is one engine-local ranked result, the fusion engine's
// input. Scores are not comparable across sources without
// normalization; ranks are 1-based within the source list.
type SourceResult struct {
	ChunkID    string         `json:"chunk_id"`
	Score      float64        `json:"score"`
	Rank       int            `json:"rank"`
	Source     Source         `json:"source"`
	Highlights []lexical.Span `json:"highlights,omitempty"`
}

// FusedResult is one entry of the final merged ranking. Alongside the
// fused score it keeps each engine's own rank and raw score for the
// chunk; a rank of 0 means that engine did not surface it.
type FusedResult struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
	// Sources lists which engines surfaced this chunk.
	Sources       []Source       `json:"sources"`
	LiteralRank   int            `json:"literal_rank,omitempty"`
	LiteralScore  float64        `json:"literal_score,omitempty"`
	SemanticRank  int            `json:"semantic_rank,omitempty"`
	SemanticScore float64        `json:"semantic_score,omitempty"`
	Highlights    []lexical.Span `json:"highlights,omitempty"`
}

// Request is a single retrieval call.
type Request struct {
	Query string
	// TopK bounds the result list; 0 means the configured default.
	TopK int
	Mode Mode
	// Strategy overrides the configured fusion strategy when set.
	Strategy Strategy
	// Weights overrides analyzer-derived weights unless auto_weights
	// is on. Nil defers to the analyzer (or configured defaults).
	Weights *Weights
	// Filter restricts results by chunk metadata.
	Filter *lexical.Filter
	// Highlights requests matched-span computation on literal results.
	Highlights bool
}

// Response is the outcome of a retrieval: a ranked list, the degraded
// flag raised when the semantic collaborator was unusable, and the
// intent the analyzer assigned to the query.
type Response struct {
	Results  []FusedResult  `json:"results"`
	Degraded bool           `json:"degraded"`
	Intent   IntentCategory `json:"intent_category"`
}
