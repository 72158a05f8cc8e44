package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer"
)

func newCreateCmd(e *env) *cobra.Command {
	var overwrite bool
	var indexType string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an empty index",
		Long: `Creates an empty index at the configured path using the analysis
properties, index type and codec from the config. An existing index is
only replaced with --overwrite.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if e.cfg.Index.Path == "" {
				return errors.New("no index path: set --index or index.path in the config")
			}
			if indexType != "" {
				e.cfg.Index.Type = indexType
			}
			ctx := cmd.Context()
			deps := bootstrap.New(e.cfg)
			defer func() { err = errors.Join(err, deps.Close()) }()

			opts, err := deps.IndexerOptions(ctx, nil)
			if err != nil {
				return err
			}
			ix, err := indexer.Create(ctx, e.cfg.Index.Path, opts, overwrite)
			if err != nil {
				return err
			}
			if err := ix.Close(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s index at %s\n", opts.IndexType, e.cfg.Index.Path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing index")
	cmd.Flags().StringVar(&indexType, "type", "", "index type: inverted or forward (overrides config)")
	return cmd
}

func newDestroyCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy",
		Short: "Delete the index file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if e.cfg.Index.Path == "" {
				return errors.New("no index path: set --index or index.path in the config")
			}
			if err := indexer.Destroy(e.cfg.Index.Path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "destroyed %s\n", e.cfg.Index.Path)
			return nil
		},
	}
}
