package search

import (
	"math"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fama-labs/searchcore/internal/config"
	"github.com/fama-labs/searchcore/internal/errors"
)

// intentRule is one entry of the ordered classification table. Rules
// run top to bottom; the first match wins.
type intentRule struct {
	intent  IntentCategory
	pattern *regexp.Regexp
}

// defaultRules is the Brazilian real-estate rule table, evaluated in
// priority order: price beats location beats specification; anything
// unmatched is conceptual.
var defaultRules = []intentRule{
	{
		intent: IntentPrice,
		pattern: regexp.MustCompile(
			`(?i)r\$|\breais\b|\b\d+\s*(mil|milh[aã]o|milh[oõ]es)\b|\bvalor\b|\bpre[cç]o\b|\bcusto\b`),
	},
	{
		intent: IntentLocation,
		pattern: regexp.MustCompile(
			`(?i)\b(rua|avenida|av|bairro|centro|uberl[aâ]ndia|mg|setor|quadra|lote)\b`),
	},
	{
		intent: IntentSpecification,
		pattern: regexp.MustCompile(
			`(?i)\b\d+\s*(quartos?|su[ií]tes?|vagas?|m2|metros?)\b|m²|\b[aá]rea\s+constru[ií]da\b`),
	},
}

// QueryProfile is the analyzer's verdict for one query.
type QueryProfile struct {
	Intent  IntentCategory `json:"intent_category"`
	Weights Weights        `json:"weights"`
}

// Analyzer classifies queries into intent categories and derives
// fusion weights from the configured weight table. Classification is a
// pure function of (query, config); the LRU cache only memoizes it.
type Analyzer struct {
	rules       []intentRule
	weights     map[IntentCategory]Weights
	autoWeights bool
	cache       *lru.Cache[string, QueryProfile]
}

// NewAnalyzer builds an analyzer from the validated search config.
func NewAnalyzer(cfg config.SearchConfig) (*Analyzer, error) {
	cache, err := lru.New[string, QueryProfile](cfg.AnalyzerCacheSize)
	if err != nil {
		return nil, errors.ConfigError("failed to create analyzer cache", err)
	}

	weights := make(map[IntentCategory]Weights, len(cfg.IntentWeights))
	for intent, w := range cfg.IntentWeights {
		weights[IntentCategory(intent)] = Weights{Literal: w.Literal, Semantic: w.Semantic}
	}

	return &Analyzer{
		rules:       defaultRules,
		weights:     weights,
		autoWeights: cfg.AutoWeights,
		cache:       cache,
	}, nil
}

// Classify maps a query to its intent category and table weights.
func (a *Analyzer) Classify(query string) QueryProfile {
	key := strings.TrimSpace(strings.ToLower(query))
	if cached, ok := a.cache.Get(key); ok {
		return cached
	}

	intent := IntentConceptual
	for _, rule := range a.rules {
		if rule.pattern.MatchString(key) {
			intent = rule.intent
			break
		}
	}

	profile := QueryProfile{Intent: intent, Weights: a.weights[intent]}
	a.cache.Add(key, profile)
	return profile
}

// Profile resolves the effective weights for a retrieval: the rule
// table wins when auto_weights is on; otherwise caller weights are used
// verbatim, normalized proportionally when they do not sum to 1.0. A
// caller pair that sums to zero cannot be normalized and is rejected.
func (a *Analyzer) Profile(query string, caller *Weights) (QueryProfile, error) {
	profile := a.Classify(query)
	if a.autoWeights || caller == nil {
		return profile, nil
	}

	normalized, err := normalizeWeights(*caller)
	if err != nil {
		return QueryProfile{}, err
	}
	profile.Weights = normalized
	return profile, nil
}

func normalizeWeights(w Weights) (Weights, error) {
	if w.Literal < 0 || w.Semantic < 0 {
		return Weights{}, errors.New(errors.ErrCodeWeightsInvalid,
			"weights must not be negative", nil)
	}
	sum := w.Literal + w.Semantic
	if sum <= 0 {
		return Weights{}, errors.New(errors.ErrCodeWeightsInvalid,
			"weights must have a positive sum", nil)
	}
	if math.Abs(sum-1.0) <= 1e-6 {
		return w, nil
	}
	return Weights{Literal: w.Literal / sum, Semantic: w.Semantic / sum}, nil
}
