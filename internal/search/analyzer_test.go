package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fama-labs/searchcore/internal/config"
	coreerrors "github.com/fama-labs/searchcore/internal/errors"
)

func newTestAnalyzer(t *testing.T, autoWeights bool) *Analyzer {
	t.Helper()
	cfg := config.Default().Search
	cfg.AutoWeights = autoWeights
	a, err := NewAnalyzer(cfg)
	require.NoError(t, err)
	return a
}

// --- TS01: intent classification ---

func TestClassify_IntentCategories(t *testing.T) {
	a := newTestAnalyzer(t, true)

	cases := []struct {
		name  string
		query string
		want  IntentCategory
	}{
		{"currency symbol", "apartamento 3 quartos R$ 350.000", IntentPrice},
		{"thousand idiom", "casas por até 500 mil", IntentPrice},
		{"price noun", "qual o valor do aluguel", IntentPrice},
		{"street", "imóvel na rua das Flores", IntentLocation},
		{"neighborhood", "apartamento no bairro Santa Mônica", IntentLocation},
		{"city", "casas em Uberlândia", IntentLocation},
		{"room count", "apartamento 3 quartos", IntentSpecification},
		{"lot word beats area unit", "lote com 300 m2", IntentLocation},
		{"suites", "cobertura 2 suítes", IntentSpecification},
		{"conceptual default", "casa tranquila para família grande", IntentConceptual},
		{"investment", "bom investimento para alugar", IntentConceptual},
		{"empty", "", IntentConceptual},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			profile := a.Classify(tc.query)
			assert.Equal(t, tc.want, profile.Intent)
		})
	}
}

func TestClassify_PriceBeatsSpecification(t *testing.T) {
	a := newTestAnalyzer(t, true)

	// Matches both the price and the specification patterns; the rule
	// order gives price priority.
	profile := a.Classify("apartamento 3 quartos R$ 350.000")
	assert.Equal(t, IntentPrice, profile.Intent)
}

func TestClassify_WeightsFollowTable(t *testing.T) {
	a := newTestAnalyzer(t, true)

	price := a.Classify("apartamento R$ 350.000")
	assert.GreaterOrEqual(t, price.Weights.Literal, 0.6)

	conceptual := a.Classify("casa tranquila para família grande")
	assert.GreaterOrEqual(t, conceptual.Weights.Semantic, 0.6)
}

func TestClassify_CacheReturnsSameProfile(t *testing.T) {
	a := newTestAnalyzer(t, true)

	first := a.Classify("casas em Uberlândia")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, a.Classify("casas em Uberlândia"))
	}
	// Case and surrounding whitespace do not change the verdict.
	assert.Equal(t, first, a.Classify("  CASAS EM UBERLÂNDIA  "))
}

// --- TS02: weight resolution ---

func TestProfile_AutoWeightsOverridesCaller(t *testing.T) {
	a := newTestAnalyzer(t, true)

	caller := &Weights{Literal: 0.9, Semantic: 0.1}
	profile, err := a.Profile("casa tranquila para família grande", caller)
	require.NoError(t, err)

	// Rule table wins: conceptual skews semantic.
	assert.Equal(t, IntentConceptual, profile.Intent)
	assert.GreaterOrEqual(t, profile.Weights.Semantic, 0.6)
}

func TestProfile_CallerWeightsUsedVerbatim(t *testing.T) {
	a := newTestAnalyzer(t, false)

	caller := &Weights{Literal: 0.9, Semantic: 0.1}
	profile, err := a.Profile("casa tranquila para família grande", caller)
	require.NoError(t, err)
	assert.Equal(t, Weights{Literal: 0.9, Semantic: 0.1}, profile.Weights)
}

func TestProfile_CallerWeightsNormalizedProportionally(t *testing.T) {
	a := newTestAnalyzer(t, false)

	caller := &Weights{Literal: 3, Semantic: 1}
	profile, err := a.Profile("casa com piscina", caller)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, profile.Weights.Literal, 1e-9)
	assert.InDelta(t, 0.25, profile.Weights.Semantic, 1e-9)
}

func TestProfile_NilCallerFallsBackToTable(t *testing.T) {
	a := newTestAnalyzer(t, false)

	profile, err := a.Profile("apartamento R$ 350.000", nil)
	require.NoError(t, err)
	assert.Equal(t, IntentPrice, profile.Intent)
	assert.GreaterOrEqual(t, profile.Weights.Literal, 0.6)
}

func TestProfile_UnnormalizableWeightsRejected(t *testing.T) {
	a := newTestAnalyzer(t, false)

	cases := []Weights{
		{Literal: 0, Semantic: 0},
		{Literal: -0.5, Semantic: 1.5},
	}
	for _, w := range cases {
		w := w
		_, err := a.Profile("casa", &w)
		require.Error(t, err)
		assert.Equal(t, coreerrors.ErrCodeWeightsInvalid, coreerrors.GetCode(err))
	}
}
