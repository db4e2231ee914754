package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

type searchOptions struct {
	index       string
	limit       int
	asJSON      bool
	filter      map[string]string
	maxDistance float32
}

func newSearchCommand(a *app) *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search an index",
		Long: `Embeds the query with the same fusion used for content and returns the
nearest indexed chunks. Smaller distances are closer matches.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, a, opts, args[0])
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.index, "index", "i", "", "index to search")
	f.IntVarP(&opts.limit, "limit", "n", domain.DefaultQueryLimit, "maximum number of results")
	f.BoolVar(&opts.asJSON, "json", false, "output results as JSON")
	f.StringToStringVar(&opts.filter, "filter", nil, "metadata key=value pairs every result must match")
	f.Float32Var(&opts.maxDistance, "max-distance", 0, "drop results further than this distance")
	cmd.MarkFlagRequired("index") //nolint:errcheck
	return cmd
}

func runSearch(cmd *cobra.Command, a *app, opts *searchOptions, query string) error {
	ctx := cmd.Context()
	svc, err := a.services(ctx)
	if err != nil {
		return err
	}

	resp, err := svc.search.Search(ctx, domain.Query{
		Index:       opts.index,
		Text:        query,
		Limit:       opts.limit,
		Filter:      opts.filter,
		MaxDistance: opts.maxDistance,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if opts.asJSON {
		return outputSearchJSON(cmd, resp)
	}
	outputSearchTable(cmd, resp)
	return nil
}

func outputSearchJSON(cmd *cobra.Command, resp *domain.SearchResponse) error {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, resp *domain.SearchResponse) {
	if len(resp.Results) == 0 {
		cmd.Println("No results found.")
		return
	}

	if resp.QueryDegraded {
		cmd.Println("Note: no oracle is configured; matching on structure only.")
		cmd.Println()
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, r := range resp.Results {
		// Format: [N] ID (distance)
		cmd.Printf("  [%d] %s (%.4f)\n", i+1, r.ID, r.Distance)
		if path := r.Metadata["path"]; path != "" {
			cmd.Printf("      File: %s\n", path)
		}
		if r.Snippet != "" {
			cmd.Printf("      %s\n", oneLine(r.Snippet, 100))
		}
		cmd.Println()
	}
}

// oneLine collapses whitespace and truncates to n runes.
func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
