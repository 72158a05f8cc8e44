package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer"
)

func newCompactCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Reclaim the space of removed documents",
		Long: `Rewrites the index without removed documents and resets the
uncompacted-document count. Other users of the index file are locked
out while it runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withIndex(cmd.Context(), func(ix *indexer.Indexer) error {
				before, err := ix.Stats()
				if err != nil {
					return err
				}
				if err := ix.Compact(cmd.Context()); err != nil {
					return err
				}
				after, err := ix.Stats()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "compacted: %d tombstones dropped, %d -> %d bytes\n",
					before.Tombstones, before.StorageBytes, after.StorageBytes)
				return nil
			})
		},
	}
}

func newStatsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print index statistics as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withIndex(cmd.Context(), func(ix *indexer.Indexer) error {
				stats, err := ix.Stats()
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			})
		},
	}
}
