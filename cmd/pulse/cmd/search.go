package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/UncleTupelo/pulse/internal/search"
)

type searchOptions struct {
	topK         int
	sortBy       string
	unitKinds    []string
	fileTypes    []string
	tags         []string
	matchAllTags bool
	since        string
	until        string
	minRelevance float64
	withFacets   bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search indexed content",
		Long: `Semantic search over indexed content. An empty query with filters
runs a pure metadata scan.

Examples:
  pulse search "quarterly revenue targets"
  pulse search "retry logic" --file-type go --top-k 5
  pulse search --tag finance --tag q3 --match-all
  pulse search "deployment" --sort date --facets`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "n", 0, "Maximum results (default from config)")
	cmd.Flags().StringVar(&opts.sortBy, "sort", search.SortRelevance, "Sort order: relevance, date, importance")
	cmd.Flags().StringSliceVar(&opts.unitKinds, "kind", nil, "Filter by unit kind (repeatable)")
	cmd.Flags().StringSliceVar(&opts.fileTypes, "file-type", nil, "Filter by file extension (repeatable)")
	cmd.Flags().StringSliceVarP(&opts.tags, "tag", "t", nil, "Filter by tag (repeatable)")
	cmd.Flags().BoolVar(&opts.matchAllTags, "match-all", false, "Require every tag instead of any")
	cmd.Flags().StringVar(&opts.since, "since", "", "Only content created on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.until, "until", "", "Only content created on or before this date (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&opts.minRelevance, "min-relevance", 0, "Drop results scoring below this threshold")
	cmd.Flags().BoolVar(&opts.withFacets, "facets", false, "Include facet counts with results")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	engineOpts, err := buildEngineOptions(a, opts)
	if err != nil {
		return err
	}

	resp, err := a.engine.Search(ctx, query, engineOpts)
	if err != nil {
		return err
	}
	a.printer.SearchResponse(resp)
	return nil
}

func buildEngineOptions(a *app, opts searchOptions) (search.Options, error) {
	engineOpts := search.Options{
		TopK:         opts.topK,
		SortBy:       opts.sortBy,
		UnitKinds:    opts.unitKinds,
		FileTypes:    opts.fileTypes,
		Tags:         opts.tags,
		MatchAllTags: opts.matchAllTags,
		MinRelevance: opts.minRelevance,
		WithFacets:   opts.withFacets,
	}
	if engineOpts.TopK <= 0 {
		engineOpts.TopK = a.engine.DefaultTopK()
	}
	if opts.since != "" {
		t, err := time.Parse("2006-01-02", opts.since)
		if err != nil {
			return search.Options{}, err
		}
		engineOpts.CreatedFrom = t
	}
	if opts.until != "" {
		t, err := time.Parse("2006-01-02", opts.until)
		if err != nil {
			return search.Options{}, err
		}
		// Inclusive of the named day.
		engineOpts.CreatedTo = t.Add(24*time.Hour - time.Nanosecond)
	}
	return engineOpts, nil
}
