package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/search"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/server/executor"
)

func newSearchCmd(e *env) *cobra.Command {
	var (
		limit       int
		options     []string
		hitsAtATime int
		maxTime     time.Duration
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index",
		Long: `Runs a query and prints the best hits as "score<TAB>uri", best first.

Bare words are joined with AND unless --options spaceMeansOR is given.
AND, OR and NOT (or a leading -) combine terms, "quoted words" match a
phrase, and word* matches a prefix. --options findSimilar treats the
query as example text.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := search.ParseOptions(options...)
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			if hitsAtATime == 0 {
				hitsAtATime = e.cfg.Search.HitsAtATime
			}
			if maxTime == 0 {
				maxTime = e.cfg.Search.MaximumTime
			}
			return e.withIndex(cmd.Context(), func(ix *indexer.Indexer) error {
				result, err := executor.New(ix, hitsAtATime, maxTime).Execute(cmd.Context(), query, opts, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(result)
				}
				for _, r := range result.Results {
					fmt.Fprintf(out, "%.4f\t%s\n", r.Score, r.URI)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d hits\n", len(result.Results), result.TotalHits)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum hits to print")
	cmd.Flags().StringSliceVar(&options, "options", nil, "search options: ranked, unranked, spaceMeansOR, findSimilar")
	cmd.Flags().IntVar(&hitsAtATime, "hits-at-a-time", 0, "batch size (default from config)")
	cmd.Flags().DurationVar(&maxTime, "max-time", 0, "time budget per batch (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}
