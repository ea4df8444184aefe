package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fama-labs/searchcore/internal/config"
	"github.com/fama-labs/searchcore/internal/errors"
	"github.com/fama-labs/searchcore/internal/lexical"
	"github.com/fama-labs/searchcore/internal/semantic"
	"github.com/fama-labs/searchcore/internal/telemetry"
)

// Orchestrator is the retrieval entry point. It fans out to the local
// literal engine and the semantic collaborator, fuses their rankings
// and degrades to literal-only when the collaborator misbehaves.
type Orchestrator struct {
	engine   *lexical.Engine
	searcher semantic.Searcher
	analyzer *Analyzer
	fuser    *Fuser
	breaker  *errors.CircuitBreaker
	logger   *slog.Logger
	metrics  *telemetry.RetrievalMetrics

	strategy        Strategy
	defaultWeights  Weights
	defaultTopK     int
	maxTopK         int
	semanticTimeout time.Duration
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics attaches a retrieval metrics collector. Every completed
// Retrieve is recorded; failed requests are not.
func WithMetrics(m *telemetry.RetrievalMetrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithSemanticTimeout overrides the per-request semantic sub-call
// timeout.
func WithSemanticTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.semanticTimeout = d
		}
	}
}

// NewOrchestrator wires the retrieval core together. searcher may be
// nil when semantic search is disabled; hybrid requests then behave as
// degraded literal-only retrievals.
func NewOrchestrator(cfg config.SearchConfig, engine *lexical.Engine, searcher semantic.Searcher, opts ...OrchestratorOption) (*Orchestrator, error) {
	analyzer, err := NewAnalyzer(cfg)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		engine:          engine,
		searcher:        searcher,
		analyzer:        analyzer,
		fuser:           NewFuser(cfg.RRFConstant),
		breaker:         errors.NewCircuitBreaker("semantic-collaborator"),
		logger:          slog.Default(),
		strategy:        Strategy(cfg.Strategy),
		defaultWeights:  Weights{Literal: cfg.DefaultWeights.Literal, Semantic: cfg.DefaultWeights.Semantic},
		defaultTopK:     cfg.DefaultTopK,
		maxTopK:         cfg.MaxTopK,
		semanticTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Retrieve executes one retrieval request. It never fails because of the
// semantic collaborator: collaborator trouble surfaces as Degraded=true
// over a literal-only ranking. Only malformed requests and
// configuration problems produce errors.
func (o *Orchestrator) Retrieve(ctx context.Context, req Request) (*Response, error) {
	if req.TopK < 0 {
		return nil, errors.New(errors.ErrCodeInvalidTopK, "top_k must not be negative", nil)
	}
	if err := req.Filter.Validate(); err != nil {
		return nil, err
	}

	topK := req.TopK
	if topK == 0 {
		topK = o.defaultTopK
	}
	if topK > o.maxTopK {
		topK = o.maxTopK
	}

	profile, err := o.analyzer.Profile(req.Query, req.Weights)
	if err != nil {
		return nil, err
	}

	// An empty query is not an error; it simply has no matches.
	if strings.TrimSpace(req.Query) == "" {
		return &Response{Results: []FusedResult{}, Degraded: false, Intent: profile.Intent}, nil
	}

	start := time.Now()

	var resp *Response
	mode := req.Mode
	switch mode {
	case ModeLiteralOnly:
		resp, err = o.retrieveLiteral(req, topK, profile)
	case ModeSemanticOnly:
		resp, err = o.retrieveSemantic(ctx, req, topK, profile)
	case ModeHybrid, "":
		mode = ModeHybrid
		resp, err = o.retrieveHybrid(ctx, req, topK, profile)
	default:
		return nil, errors.InvalidQueryError("unknown retrieval mode: " + string(req.Mode))
	}
	if err != nil {
		return nil, err
	}

	if o.metrics != nil {
		o.metrics.Record(telemetry.RetrievalEvent{
			Query:       req.Query,
			Mode:        string(mode),
			Intent:      string(resp.Intent),
			ResultCount: len(resp.Results),
			Degraded:    resp.Degraded,
			Latency:     time.Since(start),
		})
	}
	return resp, nil
}

func (o *Orchestrator) retrieveLiteral(req Request, topK int, profile QueryProfile) (*Response, error) {
	results, err := o.searchLiteral(req, topK)
	if err != nil {
		return nil, err
	}
	return &Response{Results: passthrough(results), Intent: profile.Intent}, nil
}

func (o *Orchestrator) retrieveSemantic(ctx context.Context, req Request, topK int, profile QueryProfile) (*Response, error) {
	results, err := o.searchSemantic(ctx, req, topK)
	if err != nil {
		// Collaborator failure is never a hard retrieval failure.
		o.logger.Warn("semantic-only retrieval degraded", "error", err)
		return &Response{Results: []FusedResult{}, Degraded: true, Intent: profile.Intent}, nil
	}
	return &Response{Results: passthrough(results), Intent: profile.Intent}, nil
}

func (o *Orchestrator) retrieveHybrid(ctx context.Context, req Request, topK int, profile QueryProfile) (*Response, error) {
	var (
		literalResults  []SourceResult
		semanticResults []SourceResult
		semanticErr     error
	)

	// Fan out; both engines query with the caller's top_k, fusion
	// re-truncates globally afterwards.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		literalResults, err = o.searchLiteral(req, topK)
		return err
	})
	g.Go(func() error {
		semanticResults, semanticErr = o.searchSemantic(gctx, req, topK)
		// Collaborator errors stay local so they cannot cancel the
		// literal search.
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	degraded := false
	if semanticErr != nil {
		degraded = true
		semanticResults = nil
		o.logger.Warn("hybrid retrieval degraded to literal-only",
			"error", semanticErr,
			"breaker_state", o.breaker.State().String())
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = o.strategy
	}

	fused := o.fuser.Fuse(strategy, literalResults, semanticResults, profile.Weights, topK)
	return &Response{Results: fused, Degraded: degraded, Intent: profile.Intent}, nil
}

func (o *Orchestrator) searchLiteral(req Request, topK int) ([]SourceResult, error) {
	results, err := o.engine.Search(req.Query, lexical.SearchOptions{
		TopK:       topK,
		Filter:     req.Filter,
		Highlights: req.Highlights,
	})
	if err != nil {
		return nil, err
	}
	converted := make([]SourceResult, len(results))
	for i, r := range results {
		converted[i] = SourceResult{
			ChunkID:    r.ChunkID,
			Score:      r.Score,
			Rank:       r.Rank,
			Source:     SourceLiteral,
			Highlights: r.Highlights,
		}
	}
	return converted, nil
}

// searchSemantic calls the collaborator under its own child timeout and
// behind the circuit breaker, so a flapping collaborator is skipped
// quickly instead of eating the timeout on every request.
func (o *Orchestrator) searchSemantic(ctx context.Context, req Request, topK int) ([]SourceResult, error) {
	if o.searcher == nil {
		return nil, semantic.ErrUnavailable
	}

	callCtx, cancel := context.WithTimeout(ctx, o.semanticTimeout)
	defer cancel()

	results, err := errors.CircuitExecuteWithResult(o.breaker,
		func() ([]semantic.Result, error) {
			return o.searcher.Search(callCtx, req.Query, topK, equalityFilters(req.Filter))
		},
		func() ([]semantic.Result, error) {
			return nil, semantic.ErrUnavailable
		})
	if err != nil {
		if callCtx.Err() != nil && ctx.Err() == nil {
			return nil, semantic.ErrTimeout
		}
		return nil, err
	}

	converted := make([]SourceResult, len(results))
	for i, r := range results {
		converted[i] = SourceResult{
			ChunkID: r.ChunkID,
			Score:   r.Score,
			Rank:    r.Rank,
			Source:  SourceSemantic,
		}
	}
	return converted, nil
}

// equalityFilters projects the exact-match clauses of a filter into the
// collaborator's filter map. Containment clauses cannot be expressed
// remotely; the literal side still enforces them.
func equalityFilters(f *lexical.Filter) map[string]string {
	if f == nil {
		return nil
	}
	out := make(map[string]string)
	for _, c := range f.Clauses {
		if c.Kind == lexical.MatchEquals {
			out[c.Key] = c.Value
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// passthrough converts a single-engine ranking into the fused result
// shape without re-scoring.
func passthrough(results []SourceResult) []FusedResult {
	out := make([]FusedResult, len(results))
	for i, r := range results {
		out[i] = FusedResult{
			ChunkID:    r.ChunkID,
			Score:      r.Score,
			Rank:       r.Rank,
			Sources:    []Source{r.Source},
			Highlights: r.Highlights,
		}
		switch r.Source {
		case SourceLiteral:
			out[i].LiteralRank, out[i].LiteralScore = r.Rank, r.Score
		case SourceSemantic:
			out[i].SemanticRank, out[i].SemanticScore = r.Rank, r.Score
		}
	}
	return out
}
