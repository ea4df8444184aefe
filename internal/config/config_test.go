package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/fama-labs/searchcore/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// --- TS01: defaults and file layering ---

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, StrategyRRF, cfg.Search.Strategy)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.True(t, cfg.Search.AutoWeights)
	assert.Equal(t, 0.70, cfg.Search.IntentWeights[IntentPrice].Literal)
	assert.Equal(t, 0.80, cfg.Search.IntentWeights[IntentConceptual].Semantic)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
search:
  strategy: weighted
  rrf_constant: 30
  default_top_k: 5
semantic:
  mode: remote
  endpoint: http://semantic.internal:9000
  timeout: 750ms
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, StrategyWeighted, cfg.Search.Strategy)
	assert.Equal(t, 30, cfg.Search.RRFConstant)
	assert.Equal(t, 5, cfg.Search.DefaultTopK)
	assert.Equal(t, "http://semantic.internal:9000", cfg.Semantic.Endpoint)
	assert.Equal(t, 750*time.Millisecond, cfg.Semantic.Timeout.Std())

	// Untouched sections keep their defaults.
	assert.Equal(t, 100, cfg.Search.MaxTopK)
	assert.Equal(t, 4, cfg.Reindex.Workers)
}

func TestLoad_MalformedYAMLIsFatal(t *testing.T) {
	path := writeConfig(t, "search: [not a map")

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, coreerrors.IsFatal(err))
	assert.Equal(t, coreerrors.ErrCodeConfigInvalid, coreerrors.GetCode(err))
}

// --- TS02: validation ---

func TestValidate_WeightTable(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(*Config)
		wantCode string
	}{
		{
			name:     "weights not summing to one",
			mutate:   func(c *Config) { c.Search.IntentWeights[IntentPrice] = Weights{Literal: 0.7, Semantic: 0.7} },
			wantCode: coreerrors.ErrCodeWeightsInvalid,
		},
		{
			name:     "negative weight",
			mutate:   func(c *Config) { c.Search.DefaultWeights = Weights{Literal: -0.2, Semantic: 1.2} },
			wantCode: coreerrors.ErrCodeWeightsInvalid,
		},
		{
			name:     "missing intent category",
			mutate:   func(c *Config) { delete(c.Search.IntentWeights, IntentConceptual) },
			wantCode: coreerrors.ErrCodeWeightsInvalid,
		},
		{
			name:     "unknown strategy",
			mutate:   func(c *Config) { c.Search.Strategy = "hybrid-magic" },
			wantCode: coreerrors.ErrCodeConfigInvalid,
		},
		{
			name:     "zero rrf constant",
			mutate:   func(c *Config) { c.Search.RRFConstant = 0 },
			wantCode: coreerrors.ErrCodeConfigInvalid,
		},
		{
			name:     "max below default top k",
			mutate:   func(c *Config) { c.Search.MaxTopK = 5 },
			wantCode: coreerrors.ErrCodeConfigInvalid,
		},
		{
			name:     "remote mode without endpoint",
			mutate:   func(c *Config) { c.Semantic.Endpoint = "" },
			wantCode: coreerrors.ErrCodeConfigInvalid,
		},
		{
			name: "local mode without model",
			mutate: func(c *Config) {
				c.Semantic.Mode = "local"
				c.Semantic.Ollama.Model = ""
			},
			wantCode: coreerrors.ErrCodeConfigInvalid,
		},
		{
			name:     "unknown semantic mode",
			mutate:   func(c *Config) { c.Semantic.Mode = "astral" },
			wantCode: coreerrors.ErrCodeConfigInvalid,
		},
		{
			name:     "zero reindex workers",
			mutate:   func(c *Config) { c.Reindex.Workers = 0 },
			wantCode: coreerrors.ErrCodeConfigInvalid,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, tc.wantCode, coreerrors.GetCode(err))
			assert.True(t, coreerrors.IsFatal(err))
		})
	}
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate_WeightSumTolerance(t *testing.T) {
	cfg := Default()
	cfg.Search.DefaultWeights = Weights{Literal: 0.1 + 0.2, Semantic: 0.7}
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SEARCHCORE_STORE_PATH", "/tmp/env-chunks.db")
	t.Setenv("SEARCHCORE_STRATEGY", StrategyWeighted)
	t.Setenv("SEARCHCORE_RRF_CONSTANT", "25")
	t.Setenv("SEARCHCORE_SEMANTIC_MODE", "off")
	t.Setenv("SEARCHCORE_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env-chunks.db", cfg.Store.Path)
	assert.Equal(t, StrategyWeighted, cfg.Search.Strategy)
	assert.Equal(t, 25, cfg.Search.RRFConstant)
	assert.Equal(t, "off", cfg.Semantic.Mode)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverrideIgnoresGarbageInt(t *testing.T) {
	t.Setenv("SEARCHCORE_RRF_CONSTANT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
}
