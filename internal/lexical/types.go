// Package lexical implements the literal search engine: an in-memory
// inverted index over normalized chunk text with IDF-weighted scoring,
// term proximity boosting and deterministic ordering.
package lexical

// Span is a byte range in a chunk's raw text, used for highlighting
// matched terms. End is exclusive.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Result is one ranked match from the literal engine.
type Result struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
	// Rank is the 1-based position within this engine's result list.
	Rank       int    `json:"rank"`
	Highlights []Span `json:"highlights,omitempty"`
}

// MatchKind selects how a filter clause compares metadata values.
type MatchKind int

const (
	// MatchEquals requires the metadata value to equal the clause value.
	MatchEquals MatchKind = iota
	// MatchContains requires the metadata value to contain the clause
	// value as a substring.
	MatchContains
)

// FilterClause restricts results to chunks whose metadata satisfies the
// comparison. Clauses in a Filter are ANDed together.
type FilterClause struct {
	Key   string
	Value string
	Kind  MatchKind
}

// Filter is a conjunction of metadata clauses. A nil or empty filter
// matches every chunk.
type Filter struct {
	Clauses []FilterClause
}
