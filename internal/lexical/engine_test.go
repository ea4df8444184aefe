package lexical

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/fama-labs/searchcore/internal/errors"
	"github.com/fama-labs/searchcore/internal/normalize"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(normalize.Default())
}

func mustIndex(t *testing.T, e *Engine, id, text string, meta map[string]string) {
	t.Helper()
	require.NoError(t, e.Index(id, text, meta))
}

func chunkIDs(results []Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ChunkID
	}
	return ids
}

// --- TS01: matching semantics ---

func TestSearch_ORSemantics(t *testing.T) {
	e := newTestEngine(t)
	mustIndex(t, e, "a", "casa com piscina", nil)
	mustIndex(t, e, "b", "apartamento no centro", nil)
	mustIndex(t, e, "c", "terreno vazio", nil)

	results, err := e.Search("piscina apartamento", SearchOptions{TopK: 10})
	require.NoError(t, err)

	// A chunk matches if it contains at least one query term.
	assert.ElementsMatch(t, []string{"a", "b"}, chunkIDs(results))
}

func TestSearch_QueryNormalizedLikeDocuments(t *testing.T) {
	e := newTestEngine(t)
	mustIndex(t, e, "a", "Casa em Uberlândia com 3 quartos", nil)

	// Unaccented, differently-cased, pluralized query still matches.
	results, err := e.Search("QUARTO uberlandia", SearchOptions{TopK: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ChunkID)
}

func TestSearch_RanksAssignedSequentially(t *testing.T) {
	e := newTestEngine(t)
	mustIndex(t, e, "a", "casa com piscina e jardim", nil)
	mustIndex(t, e, "b", "casa simples", nil)

	results, err := e.Search("casa piscina jardim", SearchOptions{TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 2, results[1].Rank)
}

// --- TS02: scoring ---

func TestSearch_MoreMatchedTermsScoreHigher(t *testing.T) {
	e := newTestEngine(t)
	mustIndex(t, e, "both", "casa com piscina", nil)
	mustIndex(t, e, "one", "casa térrea", nil)

	results, err := e.Search("casa piscina", SearchOptions{TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "both", results[0].ChunkID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearch_RarerTermsWeighMore(t *testing.T) {
	e := newTestEngine(t)
	// "casa" appears in three chunks, "piscina" in only one.
	mustIndex(t, e, "common-1", "casa no bairro", nil)
	mustIndex(t, e, "common-2", "casa reformada", nil)
	mustIndex(t, e, "rare", "piscina aquecida", nil)
	mustIndex(t, e, "filler", "casa antiga", nil)

	results, err := e.Search("casa piscina", SearchOptions{TopK: 10})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "rare", results[0].ChunkID)
}

func TestSearch_ProximityBoostsAdjacentTerms(t *testing.T) {
	e := newTestEngine(t)
	mustIndex(t, e, "near", "casa com piscina", nil)
	mustIndex(t, e, "far", "casa grande bonita lote amplo jardim piscina", nil)

	results, err := e.Search("casa piscina", SearchOptions{TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "near", results[0].ChunkID)
}

// --- TS03: deterministic ordering ---

func TestSearch_TieBreakShorterTextThenChunkID(t *testing.T) {
	e := newTestEngine(t)
	mustIndex(t, e, "b-long", "piscina aquecida coberta", nil)
	mustIndex(t, e, "c-short", "piscina", nil)
	mustIndex(t, e, "a-short", "piscina", nil)

	results, err := e.Search("piscina", SearchOptions{TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Equal scores: shorter normalized text wins, then chunk ID ascending.
	assert.Equal(t, []string{"a-short", "c-short", "b-long"}, chunkIDs(results))
}

func TestSearch_Deterministic(t *testing.T) {
	e := newTestEngine(t)
	for i := 0; i < 20; i++ {
		mustIndex(t, e, fmt.Sprintf("chunk-%02d", i), "casa com piscina no centro", nil)
	}

	first, err := e.Search("casa centro", SearchOptions{TopK: 10})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := e.Search("casa centro", SearchOptions{TopK: 10})
		require.NoError(t, err)
		assert.Equal(t, chunkIDs(first), chunkIDs(again))
	}
}

// --- TS04: edge cases ---

func TestSearch_EmptyQuery(t *testing.T) {
	e := newTestEngine(t)
	mustIndex(t, e, "a", "casa com piscina", nil)

	results, err := e.Search("", SearchOptions{TopK: 10})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_StopWordOnlyQuery(t *testing.T) {
	e := newTestEngine(t)
	mustIndex(t, e, "a", "casa com piscina", nil)

	results, err := e.Search("de para com a", SearchOptions{TopK: 10})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_TopKZero(t *testing.T) {
	e := newTestEngine(t)
	mustIndex(t, e, "a", "casa com piscina", nil)

	results, err := e.Search("casa", SearchOptions{TopK: 0})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_TopKTruncates(t *testing.T) {
	e := newTestEngine(t)
	for i := 0; i < 5; i++ {
		mustIndex(t, e, fmt.Sprintf("chunk-%d", i), "casa", nil)
	}

	results, err := e.Search("casa", SearchOptions{TopK: 3})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSearch_MalformedQueryTreatedAsNoMatches(t *testing.T) {
	e := newTestEngine(t)
	mustIndex(t, e, "a", "casa", nil)

	results, err := e.Search("casa \xff\xfe", SearchOptions{TopK: 10})
	require.NoError(t, err)
	assert.Empty(t, results)
}

// --- TS05: metadata filters ---

func TestSearch_FilterEquals(t *testing.T) {
	e := newTestEngine(t)
	mustIndex(t, e, "a", "casa com piscina", map[string]string{"bairro": "centro"})
	mustIndex(t, e, "b", "casa com piscina", map[string]string{"bairro": "santa monica"})

	filter := &Filter{Clauses: []FilterClause{{Key: "bairro", Value: "centro", Kind: MatchEquals}}}
	results, err := e.Search("piscina", SearchOptions{TopK: 10, Filter: filter})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, chunkIDs(results))
}

func TestSearch_FilterContains(t *testing.T) {
	e := newTestEngine(t)
	mustIndex(t, e, "a", "casa com piscina", map[string]string{"bairro": "santa monica"})
	mustIndex(t, e, "b", "casa com piscina", map[string]string{"bairro": "centro"})

	filter := &Filter{Clauses: []FilterClause{{Key: "bairro", Value: "monica", Kind: MatchContains}}}
	results, err := e.Search("piscina", SearchOptions{TopK: 10, Filter: filter})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, chunkIDs(results))
}

func TestSearch_FilterMissingKeyExcludes(t *testing.T) {
	e := newTestEngine(t)
	mustIndex(t, e, "a", "casa com piscina", nil)

	filter := &Filter{Clauses: []FilterClause{{Key: "bairro", Value: "centro", Kind: MatchEquals}}}
	results, err := e.Search("piscina", SearchOptions{TopK: 10, Filter: filter})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_MalformedFilterSurfaced(t *testing.T) {
	e := newTestEngine(t)
	mustIndex(t, e, "a", "casa", nil)

	filter := &Filter{Clauses: []FilterClause{{Key: "  ", Value: "centro", Kind: MatchEquals}}}
	_, err := e.Search("casa", SearchOptions{TopK: 10, Filter: filter})
	require.Error(t, err)
	assert.Equal(t, coreerrors.ErrCodeInvalidFilter, coreerrors.GetCode(err))
}

// --- TS06: highlighting ---

func TestSearch_HighlightSpansReferenceRawText(t *testing.T) {
	e := newTestEngine(t)
	raw := "Casa com piscina"
	mustIndex(t, e, "a", raw, nil)

	results, err := e.Search("piscina casa", SearchOptions{TopK: 10, Highlights: true})
	require.NoError(t, err)
	require.Len(t, results, 1)

	var matched []string
	for _, span := range results[0].Highlights {
		matched = append(matched, raw[span.Start:span.End])
	}
	assert.Equal(t, []string{"Casa", "piscina"}, matched)
}

func TestSearch_NoHighlightsUnlessRequested(t *testing.T) {
	e := newTestEngine(t)
	mustIndex(t, e, "a", "casa com piscina", nil)

	results, err := e.Search("casa", SearchOptions{TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Highlights)
}

// --- TS07: index mutation ---

func TestIndex_ReplacesPreviousContent(t *testing.T) {
	e := newTestEngine(t)
	mustIndex(t, e, "a", "casa com piscina", nil)
	mustIndex(t, e, "a", "terreno vazio", nil)

	results, err := e.Search("piscina", SearchOptions{TopK: 10})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = e.Search("terreno", SearchOptions{TopK: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, chunkIDs(results))
	assert.Equal(t, 1, e.Size())
}

func TestRemove(t *testing.T) {
	e := newTestEngine(t)
	mustIndex(t, e, "a", "casa com piscina", nil)

	e.Remove("a")
	e.Remove("a") // second removal is a no-op

	results, err := e.Search("casa", SearchOptions{TopK: 10})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, e.Size())
}

// --- TS08: suggestions ---

// stemOf runs a single word through the default pipeline so assertions
// track the real vocabulary instead of hard-coded stems.
func stemOf(t *testing.T, word string) string {
	t.Helper()
	tokens, err := normalize.Default().Tokens(word)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	return tokens[0].Term
}

func TestSuggest_CompletesPrefixByFrequency(t *testing.T) {
	e := newTestEngine(t)
	mustIndex(t, e, "a", "casa com piscina aquecida", nil)
	mustIndex(t, e, "b", "apartamento com piscina", nil)
	mustIndex(t, e, "c", "pista de cooper", nil)

	got := e.Suggest("pisc", 5)
	require.Len(t, got, 1)
	assert.Equal(t, stemOf(t, "piscina"), got[0].Term)
	assert.Equal(t, 2, got[0].Occurrences)

	got = e.Suggest("pis", 5)
	require.Len(t, got, 2)
	assert.Equal(t, stemOf(t, "piscina"), got[0].Term)
	assert.Equal(t, stemOf(t, "pista"), got[1].Term)
	assert.Equal(t, 1, got[1].Occurrences)
}

func TestSuggest_FoldsAccentedPartial(t *testing.T) {
	e := newTestEngine(t)
	mustIndex(t, e, "a", "unidade única no condomínio", nil)

	got := e.Suggest("ÚNI", 5)
	require.NotEmpty(t, got)
	terms := make([]string, len(got))
	for i, s := range got {
		terms[i] = s.Term
	}
	assert.Contains(t, terms, stemOf(t, "única"))
}

func TestSuggest_UsesLastWordOfPartialQuery(t *testing.T) {
	e := newTestEngine(t)
	mustIndex(t, e, "a", "casa com piscina", nil)
	mustIndex(t, e, "b", "terreno plano", nil)

	got := e.Suggest("casa com pisc", 5)
	require.Len(t, got, 1)
	assert.Equal(t, stemOf(t, "piscina"), got[0].Term)
}

func TestSuggest_ExcludesExactVocabularyTerm(t *testing.T) {
	e := newTestEngine(t)
	mustIndex(t, e, "a", "casa com piscina", nil)

	stem := stemOf(t, "piscina")
	for _, s := range e.Suggest(stem, 5) {
		assert.NotEqual(t, stem, s.Term)
	}
}

func TestSuggest_RespectsLimit(t *testing.T) {
	e := newTestEngine(t)
	mustIndex(t, e, "a", "piscina piso pista pintura", nil)

	got := e.Suggest("pi", 2)
	assert.Len(t, got, 2)
}

func TestSuggest_ShortOrEmptyPartialReturnsNothing(t *testing.T) {
	e := newTestEngine(t)
	mustIndex(t, e, "a", "casa com piscina", nil)

	assert.Nil(t, e.Suggest("", 5))
	assert.Nil(t, e.Suggest("p", 5))
	assert.Nil(t, e.Suggest("piscina", 0))
}
