package search

import (
	"sort"

	"github.com/fama-labs/searchcore/internal/lexical"
)

// Fuser merges the literal and semantic result lists into one ranking.
// Both strategies share the same deterministic tie-break chain: fused
// score descending, then presence in both lists beats presence in one,
// then chunk ID ascending.
type Fuser struct {
	// rrfK is the constant k in weight/(k+rank).
	rrfK int
}

// NewFuser builds a fuser with the given RRF constant.
func NewFuser(rrfK int) *Fuser {
	if rrfK <= 0 {
		rrfK = 60
	}
	return &Fuser{rrfK: rrfK}
}

// fusedEntry accumulates per-chunk state while merging the two lists.
type fusedEntry struct {
	score         float64
	sources       []Source
	literalRank   int
	literalScore  float64
	semanticRank  int
	semanticScore float64
	highlights    []lexical.Span
}

// Fuse merges the two lists under the given strategy and weights and
// returns the global top-k. Truncation happens only after fusion, so a
// chunk mid-ranked in both lists can outrank a chunk that is high in
// just one. An empty list on either side simply contributes nothing.
func (f *Fuser) Fuse(strategy Strategy, literal, semantic []SourceResult, w Weights, topK int) []FusedResult {
	if topK <= 0 {
		return nil
	}

	entries := make(map[string]*fusedEntry)
	add := func(r SourceResult, contribution float64) {
		e, ok := entries[r.ChunkID]
		if !ok {
			e = &fusedEntry{}
			entries[r.ChunkID] = e
		}
		e.score += contribution
		e.sources = append(e.sources, r.Source)
		switch r.Source {
		case SourceLiteral:
			e.literalRank, e.literalScore = r.Rank, r.Score
		case SourceSemantic:
			e.semanticRank, e.semanticScore = r.Rank, r.Score
		}
		if len(r.Highlights) > 0 {
			e.highlights = r.Highlights
		}
	}

	switch strategy {
	case StrategyWeighted:
		lo, hi := scoreBounds(literal)
		for _, r := range literal {
			add(r, w.Literal*normalizeScore(r.Score, lo, hi))
		}
		lo, hi = scoreBounds(semantic)
		for _, r := range semantic {
			add(r, w.Semantic*normalizeScore(r.Score, lo, hi))
		}
	default: // StrategyRRF
		for _, r := range literal {
			add(r, w.Literal/float64(f.rrfK+r.Rank))
		}
		for _, r := range semantic {
			add(r, w.Semantic/float64(f.rrfK+r.Rank))
		}
	}

	results := make([]FusedResult, 0, len(entries))
	for chunkID, e := range entries {
		results = append(results, FusedResult{
			ChunkID:       chunkID,
			Score:         e.score,
			Sources:       e.sources,
			LiteralRank:   e.literalRank,
			LiteralScore:  e.literalScore,
			SemanticRank:  e.semanticRank,
			SemanticScore: e.semanticScore,
			Highlights:    e.highlights,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		si, sj := len(results[i].Sources), len(results[j].Sources)
		if si != sj {
			return si > sj
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// scoreBounds returns the min and max score of a source list.
func scoreBounds(list []SourceResult) (lo, hi float64) {
	if len(list) == 0 {
		return 0, 0
	}
	lo, hi = list[0].Score, list[0].Score
	for _, r := range list[1:] {
		if r.Score < lo {
			lo = r.Score
		}
		if r.Score > hi {
			hi = r.Score
		}
	}
	return lo, hi
}

// normalizeScore maps a score onto [0,1] within its list's bounds. A
// list with a single score level normalizes to 1.0 so presence still
// counts.
func normalizeScore(score, lo, hi float64) float64 {
	if hi == lo {
		return 1.0
	}
	return (score - lo) / (hi - lo)
}
