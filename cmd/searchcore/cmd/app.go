package cmd

import (
	"context"
	"log/slog"

	"github.com/fama-labs/searchcore/internal/config"
	"github.com/fama-labs/searchcore/internal/index"
	"github.com/fama-labs/searchcore/internal/lexical"
	"github.com/fama-labs/searchcore/internal/logging"
	"github.com/fama-labs/searchcore/internal/normalize"
	"github.com/fama-labs/searchcore/internal/search"
	"github.com/fama-labs/searchcore/internal/semantic"
	"github.com/fama-labs/searchcore/internal/store"
	"github.com/fama-labs/searchcore/internal/telemetry"
)

// app holds the wired retrieval core for one CLI invocation.
type app struct {
	cfg          *config.Config
	chunks       *store.SQLiteStore
	synchronizer *index.Synchronizer
	orchestrator *search.Orchestrator
	metrics      *telemetry.RetrievalMetrics
	logger       *slog.Logger
}

// openApp loads configuration, sets up logging and wires the store,
// the lexical engine, the synchronizer and the orchestrator. The
// returned cleanup closes the store and the log file.
func openApp(ctx context.Context) (*app, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if debugMode {
		cfg.Logging.Level = "debug"
	}

	logger, logCleanup, err := logging.Setup(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	chunks, err := store.OpenSQLite(cfg.Store.Path)
	if err != nil {
		logCleanup()
		return nil, nil, err
	}
	cleanup := func() {
		_ = chunks.Close()
		logCleanup()
	}

	pipeline := normalize.Default()
	engine := lexical.NewEngine(pipeline)
	searcher := newSearcher(cfg)

	syncOpts := []index.Option{
		index.WithReindexWorkers(cfg.Reindex.Workers),
		index.WithLogger(logger),
	}
	// The in-process semantic index has no store of its own; feed it
	// from the same write path as the lexical engine.
	if vectors, ok := searcher.(index.VectorIndexer); ok {
		syncOpts = append(syncOpts, index.WithVectorIndexer(vectors))
	}
	synchronizer := index.NewSynchronizer(chunks, pipeline, engine, syncOpts...)
	if err := synchronizer.Bootstrap(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}

	metrics := telemetry.NewRetrievalMetrics()
	orchestrator, err := search.NewOrchestrator(cfg.Search, engine, searcher,
		search.WithLogger(logger),
		search.WithMetrics(metrics),
		search.WithSemanticTimeout(cfg.Semantic.Timeout.Std()))
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return &app{
		cfg:          cfg,
		chunks:       chunks,
		synchronizer: synchronizer,
		orchestrator: orchestrator,
		metrics:      metrics,
		logger:       logger,
	}, cleanup, nil
}

// newSearcher builds the semantic collaborator selected by config, or
// nil when semantic search is off.
func newSearcher(cfg *config.Config) semantic.Searcher {
	switch cfg.Semantic.Mode {
	case "remote":
		return semantic.NewRemoteSearcher(semantic.RemoteConfig{
			BaseURL: cfg.Semantic.Endpoint,
			Timeout: cfg.Semantic.Timeout.Std(),
		})
	case "local":
		embedder := semantic.NewOllamaEmbedder(semantic.OllamaConfig{
			BaseURL:    cfg.Semantic.Ollama.BaseURL,
			Model:      cfg.Semantic.Ollama.Model,
			Dimensions: cfg.Semantic.Ollama.Dimensions,
			Timeout:    cfg.Semantic.Timeout.Std(),
		})
		return semantic.NewLocalSearcher(embedder)
	default:
		return nil
	}
}
