package lexical

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/fama-labs/searchcore/internal/errors"
	"github.com/fama-labs/searchcore/internal/normalize"
)

// proximityBoost scales the bonus awarded when multiple distinct query
// terms occur close together in a chunk.
const proximityBoost = 0.5

// termHit records where one normalized term occurs inside one chunk.
type termHit struct {
	positions []int  // token positions, ascending
	spans     []Span // byte spans in the raw text, same order
}

// docEntry is the per-chunk state needed for scoring and tie-breaks.
type docEntry struct {
	normLen  int // length of the normalized text, for tie-breaking
	metadata map[string]string
}

// Engine is the literal search engine. Index mutations take the write
// lock; searches share the read lock, so the read path scales with
// concurrent retrieval requests.
type Engine struct {
	mu       sync.RWMutex
	pipeline *normalize.Pipeline
	postings map[string]map[string]*termHit // term -> chunkID -> occurrences
	docs     map[string]*docEntry
}

// NewEngine builds an empty engine using the given normalization
// pipeline. The pipeline must be the same one used at ingestion time or
// query terms will not line up with indexed terms.
func NewEngine(pipeline *normalize.Pipeline) *Engine {
	return &Engine{
		pipeline: pipeline,
		postings: make(map[string]map[string]*termHit),
		docs:     make(map[string]*docEntry),
	}
}

// Index adds or replaces a chunk in the inverted index. The raw text is
// tokenized through the shared pipeline; token spans are retained so
// searches can highlight matches in the original text.
func (e *Engine) Index(chunkID, rawText string, metadata map[string]string) error {
	tokens, err := e.pipeline.Tokens(rawText)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.removeLocked(chunkID)

	normLen := 0
	for i, tok := range tokens {
		if i > 0 {
			normLen++ // joining space
		}
		normLen += len(tok.Term)
		byChunk, ok := e.postings[tok.Term]
		if !ok {
			byChunk = make(map[string]*termHit)
			e.postings[tok.Term] = byChunk
		}
		hit, ok := byChunk[chunkID]
		if !ok {
			hit = &termHit{}
			byChunk[chunkID] = hit
		}
		hit.positions = append(hit.positions, tok.Pos)
		hit.spans = append(hit.spans, Span{Start: tok.Start, End: tok.End})
	}

	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	e.docs[chunkID] = &docEntry{normLen: normLen, metadata: meta}
	return nil
}

// Remove deletes a chunk from the index. Unknown IDs are ignored.
func (e *Engine) Remove(chunkID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeLocked(chunkID)
}

func (e *Engine) removeLocked(chunkID string) {
	if _, ok := e.docs[chunkID]; !ok {
		return
	}
	delete(e.docs, chunkID)
	for term, byChunk := range e.postings {
		delete(byChunk, chunkID)
		if len(byChunk) == 0 {
			delete(e.postings, term)
		}
	}
}

// Suggestion is an indexed term offered as a completion for a partial
// query, with the number of chunks it appears in.
type Suggestion struct {
	Term        string `json:"term"`
	Occurrences int    `json:"occurrences"`
}

// Suggest returns up to limit vocabulary terms that extend the last
// word of partial, most frequent first with ties broken alphabetically.
// The vocabulary is normalized, so suggestions are stems; callers
// typically feed them back into Search rather than display them raw.
func (e *Engine) Suggest(partial string, limit int) []Suggestion {
	if limit <= 0 {
		return nil
	}
	words := strings.Fields(partial)
	if len(words) == 0 {
		return nil
	}
	prefix, err := normalize.Fold(words[len(words)-1])
	if err != nil || len(prefix) < 2 {
		return nil
	}

	e.mu.RLock()
	var matches []Suggestion
	for term, byChunk := range e.postings {
		if len(term) <= 2 || term == prefix || !strings.HasPrefix(term, prefix) {
			continue
		}
		matches = append(matches, Suggestion{Term: term, Occurrences: len(byChunk)})
	}
	e.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Occurrences != matches[j].Occurrences {
			return matches[i].Occurrences > matches[j].Occurrences
		}
		return matches[i].Term < matches[j].Term
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Size returns the number of indexed chunks.
func (e *Engine) Size() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.docs)
}

// SearchOptions controls a single search call.
type SearchOptions struct {
	TopK       int
	Filter     *Filter
	Highlights bool
}

// Search returns up to opts.TopK chunks matching at least one query
// term, in strictly descending score order. Ties break by shorter
// normalized text, then by chunk ID ascending. An empty or stop-word
// only query returns an empty list without error; a malformed filter
// is surfaced as ERR_402.
func (e *Engine) Search(query string, opts SearchOptions) ([]Result, error) {
	if err := validateFilter(opts.Filter); err != nil {
		return nil, err
	}
	if opts.TopK <= 0 {
		return nil, nil
	}

	terms, err := e.queryTerms(query)
	if err != nil || len(terms) == 0 {
		// Malformed query text degrades to "no matches"; only filter
		// errors surface to the caller.
		return nil, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	type candidate struct {
		score   float64
		normLen int
		matched map[string]*termHit
	}
	candidates := make(map[string]*candidate)

	totalDocs := len(e.docs)
	for _, term := range terms {
		byChunk, ok := e.postings[term]
		if !ok {
			continue
		}
		idf := inverseDocFreq(totalDocs, len(byChunk))
		for chunkID, hit := range byChunk {
			doc := e.docs[chunkID]
			if doc == nil || !matchesFilter(doc.metadata, opts.Filter) {
				continue
			}
			cand, ok := candidates[chunkID]
			if !ok {
				cand = &candidate{normLen: doc.normLen, matched: make(map[string]*termHit)}
				candidates[chunkID] = cand
			}
			tf := float64(len(hit.positions))
			cand.score += idf * (1 + math.Log(1+tf))
			cand.matched[term] = hit
		}
	}

	results := make([]Result, 0, len(candidates))
	for chunkID, cand := range candidates {
		if len(cand.matched) > 1 {
			cand.score += proximityBonus(cand.matched)
		}
		r := Result{ChunkID: chunkID, Score: cand.score}
		if opts.Highlights {
			r.Highlights = collectSpans(cand.matched)
		}
		results = append(results, r)
	}

	normLenOf := func(id string) int {
		if c := candidates[id]; c != nil {
			return c.normLen
		}
		return 0
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		li, lj := normLenOf(results[i].ChunkID), normLenOf(results[j].ChunkID)
		if li != lj {
			return li < lj
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

// queryTerms normalizes the query and deduplicates its terms, keeping
// first-seen order.
func (e *Engine) queryTerms(query string) ([]string, error) {
	tokens, err := e.pipeline.Tokens(query)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(tokens))
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, dup := seen[tok.Term]; dup {
			continue
		}
		seen[tok.Term] = struct{}{}
		terms = append(terms, tok.Term)
	}
	return terms, nil
}

// inverseDocFreq is a smoothed IDF: rare terms score high, terms in
// every chunk approach zero but never go negative.
func inverseDocFreq(totalDocs, docFreq int) float64 {
	if totalDocs == 0 || docFreq == 0 {
		return 0
	}
	n := float64(totalDocs)
	df := float64(docFreq)
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// proximityBonus rewards chunks where distinct query terms occur near
// each other: the bonus grows with the number of distinct matched terms
// and shrinks with the minimal token distance between any two of them.
func proximityBonus(matched map[string]*termHit) float64 {
	minDist := math.MaxInt
	hits := make([]*termHit, 0, len(matched))
	for _, h := range matched {
		hits = append(hits, h)
	}
	for i := 0; i < len(hits); i++ {
		for j := i + 1; j < len(hits); j++ {
			if d := minPositionGap(hits[i].positions, hits[j].positions); d < minDist {
				minDist = d
			}
		}
	}
	if minDist == math.MaxInt || minDist == 0 {
		return 0
	}
	return proximityBoost * float64(len(matched)-1) / float64(minDist)
}

// minPositionGap returns the smallest absolute distance between any
// position in a and any position in b. Both slices are ascending, so a
// two-pointer sweep suffices.
func minPositionGap(a, b []int) int {
	best := math.MaxInt
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		d := a[i] - b[j]
		if d < 0 {
			d = -d
		}
		if d < best {
			best = d
		}
		if a[i] < b[j] {
			i++
		} else {
			j++
		}
	}
	return best
}

// collectSpans merges the raw-text spans of every matched term into one
// ascending, deduplicated list.
func collectSpans(matched map[string]*termHit) []Span {
	var spans []Span
	for _, hit := range matched {
		spans = append(spans, hit.spans...)
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})
	out := spans[:0]
	for _, s := range spans {
		if len(out) > 0 && out[len(out)-1] == s {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Validate checks the filter's structural soundness without running a
// search. Callers that route filters to other engines use it to reject
// malformed predicates up front.
func (f *Filter) Validate() error {
	return validateFilter(f)
}

func validateFilter(f *Filter) error {
	if f == nil {
		return nil
	}
	for _, c := range f.Clauses {
		if strings.TrimSpace(c.Key) == "" {
			return errors.InvalidFilterError("filter clause has an empty metadata key")
		}
		if c.Kind != MatchEquals && c.Kind != MatchContains {
			return errors.InvalidFilterError("filter clause has an unknown match kind")
		}
	}
	return nil
}

func matchesFilter(metadata map[string]string, f *Filter) bool {
	if f == nil {
		return true
	}
	for _, c := range f.Clauses {
		v, ok := metadata[c.Key]
		if !ok {
			return false
		}
		switch c.Kind {
		case MatchEquals:
			if v != c.Value {
				return false
			}
		case MatchContains:
			if !strings.Contains(v, c.Value) {
				return false
			}
		}
	}
	return true
}
