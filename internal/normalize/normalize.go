// Package normalize implements the deterministic text normalization
// pipeline shared by ingestion and query processing. Both sides must run
// the exact same transformation or lexical matching silently degrades,
// so the pipeline is a pure function of its input: lowercase, diacritic
// folding, tokenization, stop word removal and Portuguese stemming.
package normalize

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/snowballstem"
	"github.com/blevesearch/snowballstem/portuguese"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/fama-labs/searchcore/internal/errors"
)

// Token is a single normalized term with its byte span in the original
// raw text. Spans always reference the raw input, never the normalized
// form, so callers can build highlights without re-deriving offsets.
type Token struct {
	// Term is the normalized form: lowercased, diacritics folded,
	// stemmed. Numeric tokens are kept verbatim.
	Term string

	// Start and End delimit the token in the raw input, in bytes.
	// End is exclusive.
	Start int
	End   int

	// Pos is the ordinal position of the token among the surviving
	// tokens (after stop word removal), used for proximity scoring.
	Pos int
}

// minAlphaTokenLen drops single-letter fragments such as the "r" left
// over from "R$". Numeric tokens are exempt: "3 quartos" must keep the 3.
const minAlphaTokenLen = 2

// Pipeline normalizes raw text into matchable terms. It is safe for
// concurrent use; all state is immutable after construction.
type Pipeline struct {
	stopWords map[string]struct{}
}

// New builds a pipeline with the given stop word list. Stop words are
// folded through the same lowercase/diacritic transform as input text,
// so callers may pass accented forms ("não", "até") freely.
func New(stopWords []string) *Pipeline {
	p := &Pipeline{stopWords: make(map[string]struct{}, len(stopWords))}
	for _, w := range stopWords {
		folded, err := foldText(strings.ToLower(w))
		if err != nil {
			continue
		}
		p.stopWords[folded] = struct{}{}
	}
	return p
}

// Default returns a pipeline configured with the Brazilian Portuguese
// stop word list.
func Default() *Pipeline {
	return New(portugueseStopWords)
}

// Tokens runs the full pipeline over raw and returns the surviving
// tokens in document order. Returns ERR_502 when raw is not valid UTF-8.
func (p *Pipeline) Tokens(raw string) ([]Token, error) {
	if !utf8.ValidString(raw) {
		return nil, errors.New(errors.ErrCodeNormalizationFailed,
			"input text is not valid UTF-8", nil)
	}

	var tokens []Token
	pos := 0
	i := 0
	for i < len(raw) {
		r, size := utf8.DecodeRuneInString(raw[i:])
		if !isTokenRune(r) {
			i += size
			continue
		}
		start := i
		numeric := true
		for i < len(raw) {
			r, size = utf8.DecodeRuneInString(raw[i:])
			if !isTokenRune(r) {
				break
			}
			if !unicode.IsDigit(r) {
				numeric = false
			}
			i += size
		}
		term, err := p.normalizeWord(raw[start:i], numeric)
		if err != nil {
			return nil, err
		}
		if term == "" {
			continue
		}
		tokens = append(tokens, Token{Term: term, Start: start, End: i, Pos: pos})
		pos++
	}
	return tokens, nil
}

// Text returns the canonical normalized form of raw: the surviving
// terms joined by single spaces. This is what gets persisted alongside
// the raw text and what the inverted index is built from.
func (p *Pipeline) Text(raw string) (string, error) {
	tokens, err := p.Tokens(raw)
	if err != nil {
		return "", err
	}
	if len(tokens) == 0 {
		return "", nil
	}
	var b strings.Builder
	for i, t := range tokens {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t.Term)
	}
	return b.String(), nil
}

// normalizeWord lowercases, folds and stems a single word run. Returns
// the empty string when the word is filtered out (stop word or too
// short).
func (p *Pipeline) normalizeWord(word string, numeric bool) (string, error) {
	if numeric {
		return word, nil
	}
	folded, err := foldText(strings.ToLower(word))
	if err != nil {
		return "", errors.New(errors.ErrCodeNormalizationFailed,
			fmt.Sprintf("diacritic folding failed for %q", word), err)
	}
	if utf8.RuneCountInString(folded) < minAlphaTokenLen {
		return "", nil
	}
	if _, stop := p.stopWords[folded]; stop {
		return "", nil
	}
	return stemPortuguese(folded), nil
}

// Fold lowercases text and strips its diacritics without stemming.
// Useful for prefix matching, where a stem of a partial word would
// distort the prefix.
func Fold(text string) (string, error) {
	return foldText(strings.ToLower(text))
}

// foldText strips combining marks via NFD decomposition. "Uberlândia"
// becomes "uberlandia" so queries typed without accents still match.
func foldText(s string) (string, error) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return "", err
	}
	return out, nil
}

// stemPortuguese applies the snowball Portuguese stemmer. Folding
// happens before stemming so that accented and unaccented spellings of
// the same word reduce to the same term; the stemmer tolerates the
// missing diacritics.
func stemPortuguese(word string) string {
	env := snowballstem.NewEnv(word)
	portuguese.Stem(env)
	return env.Current()
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
