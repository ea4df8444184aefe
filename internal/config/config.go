// Package config loads and validates the searchcore configuration.
// Validation is fatal at startup: a malformed weight table or fusion
// constant must never reach request time.
package config

import (
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fama-labs/searchcore/internal/errors"
	"github.com/fama-labs/searchcore/internal/logging"
)

// Fusion strategy names accepted in SearchConfig.Strategy.
const (
	StrategyRRF      = "rrf"
	StrategyWeighted = "weighted"
)

// Intent category keys for the weight table.
const (
	IntentPrice         = "price"
	IntentLocation      = "location"
	IntentSpecification = "specification"
	IntentConceptual    = "conceptual"
)

// weightSumTolerance absorbs float rounding when checking that a weight
// pair sums to 1.0.
const weightSumTolerance = 1e-6

// Config is the complete searchcore configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" json:"store"`
	Search   SearchConfig   `yaml:"search" json:"search"`
	Semantic SemanticConfig `yaml:"semantic" json:"semantic"`
	Reindex  ReindexConfig  `yaml:"reindex" json:"reindex"`
	Logging  logging.Config `yaml:"logging" json:"logging"`
}

// StoreConfig locates the chunk database.
type StoreConfig struct {
	// Path is the SQLite database file for chunk storage.
	Path string `yaml:"path" json:"path"`
}

// Weights is a literal/semantic weight pair. The pair must sum to 1.0.
type Weights struct {
	Literal  float64 `yaml:"literal" json:"literal"`
	Semantic float64 `yaml:"semantic" json:"semantic"`
}

// SearchConfig configures ranking fusion and the query analyzer.
type SearchConfig struct {
	// Strategy selects the default fusion strategy: "rrf" or "weighted".
	Strategy string `yaml:"strategy" json:"strategy"`

	// RRFConstant is the k in weight/(k+rank). Standard practice is 60.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// DefaultTopK applies when a caller requests no explicit top_k.
	DefaultTopK int `yaml:"default_top_k" json:"default_top_k"`

	// MaxTopK caps any caller-requested top_k.
	MaxTopK int `yaml:"max_top_k" json:"max_top_k"`

	// AutoWeights lets the query analyzer's rule table override
	// caller-supplied weights.
	AutoWeights bool `yaml:"auto_weights" json:"auto_weights"`

	// DefaultWeights applies when the analyzer is bypassed and the
	// caller supplies no weights.
	DefaultWeights Weights `yaml:"default_weights" json:"default_weights"`

	// IntentWeights is the analyzer's weight table, keyed by intent
	// category ("price", "location", "specification", "conceptual").
	IntentWeights map[string]Weights `yaml:"intent_weights" json:"intent_weights"`

	// AnalyzerCacheSize bounds the query classification LRU cache.
	AnalyzerCacheSize int `yaml:"analyzer_cache_size" json:"analyzer_cache_size"`
}

// SemanticConfig configures the semantic-search collaborator.
type SemanticConfig struct {
	// Mode selects the collaborator: "remote" (HTTP service), "local"
	// (in-process HNSW over an Ollama embedder) or "off".
	Mode string `yaml:"mode" json:"mode"`

	// Endpoint is the remote collaborator base URL (remote mode).
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// Timeout bounds each semantic sub-call within a retrieval.
	Timeout Duration `yaml:"timeout" json:"timeout"`

	// Ollama configures the local embedding backend (local mode).
	Ollama OllamaConfig `yaml:"ollama" json:"ollama"`
}

// OllamaConfig configures the local embedding backend.
type OllamaConfig struct {
	BaseURL    string `yaml:"base_url" json:"base_url"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
}

// ReindexConfig tunes the batch reindex worker pool.
type ReindexConfig struct {
	Workers int `yaml:"workers" json:"workers"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Store: StoreConfig{Path: "searchcore.db"},
		Search: SearchConfig{
			Strategy:       StrategyRRF,
			RRFConstant:    60,
			DefaultTopK:    10,
			MaxTopK:        100,
			AutoWeights:    true,
			DefaultWeights: Weights{Literal: 0.4, Semantic: 0.6},
			IntentWeights: map[string]Weights{
				IntentPrice:         {Literal: 0.70, Semantic: 0.30},
				IntentLocation:      {Literal: 0.60, Semantic: 0.40},
				IntentSpecification: {Literal: 0.65, Semantic: 0.35},
				IntentConceptual:    {Literal: 0.20, Semantic: 0.80},
			},
			AnalyzerCacheSize: 1024,
		},
		Semantic: SemanticConfig{
			Mode:     "remote",
			Endpoint: "http://localhost:8091",
			Timeout:  Duration(2 * time.Second),
			Ollama: OllamaConfig{
				BaseURL:    "http://localhost:11434",
				Model:      "nomic-embed-text",
				Dimensions: 768,
			},
		},
		Reindex: ReindexConfig{Workers: 4},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads the YAML file at path, layers it over defaults and
// validates the result. A missing file yields validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, errors.ConfigError("failed to read config file", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.ConfigError("failed to parse config file", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies SEARCHCORE_* environment variable overrides
// on top of the file layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SEARCHCORE_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("SEARCHCORE_STRATEGY"); v != "" {
		c.Search.Strategy = v
	}
	if v := os.Getenv("SEARCHCORE_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("SEARCHCORE_SEMANTIC_MODE"); v != "" {
		c.Semantic.Mode = v
	}
	if v := os.Getenv("SEARCHCORE_SEMANTIC_ENDPOINT"); v != "" {
		c.Semantic.Endpoint = v
	}
	if v := os.Getenv("SEARCHCORE_OLLAMA_HOST"); v != "" {
		c.Semantic.Ollama.BaseURL = v
	}
	if v := os.Getenv("SEARCHCORE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// YAML renders the configuration for inspection.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks structural invariants. Any failure is fatal.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return errors.ConfigError("store.path must not be empty", nil)
	}

	s := &c.Search
	if s.Strategy != StrategyRRF && s.Strategy != StrategyWeighted {
		return errors.ConfigError("search.strategy must be \"rrf\" or \"weighted\"", nil)
	}
	if s.RRFConstant <= 0 {
		return errors.ConfigError("search.rrf_constant must be positive", nil)
	}
	if s.DefaultTopK <= 0 {
		return errors.ConfigError("search.default_top_k must be positive", nil)
	}
	if s.MaxTopK < s.DefaultTopK {
		return errors.ConfigError("search.max_top_k must be >= search.default_top_k", nil)
	}
	if s.AnalyzerCacheSize <= 0 {
		return errors.ConfigError("search.analyzer_cache_size must be positive", nil)
	}

	if err := validateWeights("search.default_weights", s.DefaultWeights); err != nil {
		return err
	}
	for _, intent := range []string{IntentPrice, IntentLocation, IntentSpecification, IntentConceptual} {
		w, ok := s.IntentWeights[intent]
		if !ok {
			return errors.New(errors.ErrCodeWeightsInvalid,
				"search.intent_weights is missing an intent category", nil).
				WithDetail("intent", intent)
		}
		if err := validateWeights("search.intent_weights."+intent, w); err != nil {
			return err
		}
	}

	switch c.Semantic.Mode {
	case "remote":
		if c.Semantic.Endpoint == "" {
			return errors.ConfigError("semantic.endpoint is required in remote mode", nil)
		}
	case "local":
		if c.Semantic.Ollama.Model == "" {
			return errors.ConfigError("semantic.ollama.model is required in local mode", nil)
		}
		if c.Semantic.Ollama.Dimensions <= 0 {
			return errors.ConfigError("semantic.ollama.dimensions must be positive", nil)
		}
	case "off":
	default:
		return errors.ConfigError("semantic.mode must be \"remote\", \"local\" or \"off\"", nil)
	}
	if c.Semantic.Timeout <= 0 {
		return errors.ConfigError("semantic.timeout must be positive", nil)
	}

	if c.Reindex.Workers <= 0 {
		return errors.ConfigError("reindex.workers must be positive", nil)
	}
	return nil
}

func validateWeights(field string, w Weights) error {
	if w.Literal < 0 || w.Semantic < 0 {
		return errors.New(errors.ErrCodeWeightsInvalid,
			field+" must not contain negative weights", nil)
	}
	if math.Abs(w.Literal+w.Semantic-1.0) > weightSumTolerance {
		return errors.New(errors.ErrCodeWeightsInvalid,
			field+" must sum to 1.0", nil)
	}
	return nil
}
