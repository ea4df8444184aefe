package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fama-labs/searchcore/internal/errors"
	"github.com/fama-labs/searchcore/internal/lexical"
	"github.com/fama-labs/searchcore/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	topK           int
	mode           string
	strategy       string
	literalWeight  float64
	semanticWeight float64
	filters        []string // key=value (equals)
	contains       []string // key=value (containment)
	highlights     bool
	format         string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a hybrid retrieval query",
		Long: `Run a retrieval query against the ingested chunks.

Examples:
  searchcore search "apartamento 3 quartos R$ 350.000"
  searchcore search "casa tranquila para família" --mode hybrid --strategy rrf
  searchcore search "casa com piscina" --mode literal_only --highlights
  searchcore search "lote no setor norte" --filter bairro=centro --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "n", 0, "Maximum number of results (0 uses the configured default)")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "hybrid", "Retrieval mode: literal_only, semantic_only, hybrid")
	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "Fusion strategy override: rrf, weighted")
	cmd.Flags().Float64Var(&opts.literalWeight, "literal-weight", -1, "Literal weight (with --semantic-weight; ignored when auto weights are on)")
	cmd.Flags().Float64Var(&opts.semanticWeight, "semantic-weight", -1, "Semantic weight (with --literal-weight; ignored when auto weights are on)")
	cmd.Flags().StringSliceVar(&opts.filters, "filter", nil, "Metadata equals filter, key=value (repeatable)")
	cmd.Flags().StringSliceVar(&opts.contains, "filter-contains", nil, "Metadata containment filter, key=value (repeatable)")
	cmd.Flags().BoolVar(&opts.highlights, "highlights", false, "Include matched spans in raw text")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	app, cleanup, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	req := search.Request{
		Query:      query,
		TopK:       opts.topK,
		Mode:       search.Mode(opts.mode),
		Strategy:   search.Strategy(opts.strategy),
		Highlights: opts.highlights,
	}

	if opts.literalWeight >= 0 || opts.semanticWeight >= 0 {
		req.Weights = &search.Weights{Literal: opts.literalWeight, Semantic: opts.semanticWeight}
	}

	filter, err := parseFilters(opts.filters, opts.contains)
	if err != nil {
		return err
	}
	req.Filter = filter

	resp, err := app.orchestrator.Retrieve(ctx, req)
	if err != nil {
		return err
	}
	snap := app.metrics.Snapshot()
	app.logger.Debug("retrieval complete",
		"intent", resp.Intent,
		"degraded", resp.Degraded,
		"results", len(resp.Results),
		"latency_buckets", snap.LatencyDistribution)

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	return printSearchText(cmd, query, resp)
}

func parseFilters(equals, contains []string) (*lexical.Filter, error) {
	if len(equals) == 0 && len(contains) == 0 {
		return nil, nil
	}
	filter := &lexical.Filter{}
	appendClauses := func(pairs []string, kind lexical.MatchKind) error {
		for _, pair := range pairs {
			key, value, found := strings.Cut(pair, "=")
			if !found {
				return errors.InvalidFilterError("filter must be key=value: " + pair)
			}
			filter.Clauses = append(filter.Clauses, lexical.FilterClause{
				Key:   strings.TrimSpace(key),
				Value: value,
				Kind:  kind,
			})
		}
		return nil
	}
	if err := appendClauses(equals, lexical.MatchEquals); err != nil {
		return nil, err
	}
	if err := appendClauses(contains, lexical.MatchContains); err != nil {
		return nil, err
	}
	return filter, nil
}

func printSearchText(cmd *cobra.Command, query string, resp *search.Response) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Query: %s\n", query)
	fmt.Fprintf(out, "Intent: %s\n", resp.Intent)
	if resp.Degraded {
		fmt.Fprintln(out, "Degraded: semantic collaborator unavailable, literal-only ranking")
	}
	if len(resp.Results) == 0 {
		fmt.Fprintln(out, "No results.")
		return nil
	}

	for _, r := range resp.Results {
		sources := make([]string, len(r.Sources))
		for i, s := range r.Sources {
			sources[i] = string(s)
		}
		fmt.Fprintf(out, "%3d. %-24s score=%.6f sources=%s\n",
			r.Rank, r.ChunkID, r.Score, strings.Join(sources, "+"))
		for _, span := range r.Highlights {
			fmt.Fprintf(out, "     match at bytes [%d:%d]\n", span.Start, span.End)
		}
	}
	return nil
}
