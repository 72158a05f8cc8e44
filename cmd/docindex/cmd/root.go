// Package cmd provides the docindex CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/logger"
)

// publisher is a Kafka producer as seen by enqueue.
type publisher interface {
	kafka.Publisher
	Close() error
}

// env carries the global flags and the loaded config to every command.
type env struct {
	configPath string
	indexPath  string
	logLevel   string
	cfg        *config.Config

	newPublisher func(cfg config.KafkaConfig, topic string) publisher
}

func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd creates the root command for the docindex CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&env{
		newPublisher: func(cfg config.KafkaConfig, topic string) publisher {
			return kafka.NewProducer(cfg, topic)
		},
	})
}

func newRootCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docindex",
		Short: "Build and query full-text document indexes",
		Long: `docindex manages a file-backed full-text index keyed by document URIs.

Settings come from the config file (--config) with DI_* environment
overrides; --index overrides the index path from the config.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(e.configPath)
			if err != nil {
				return err
			}
			if e.indexPath != "" {
				cfg.Index.Path = e.indexPath
			}
			if e.logLevel != "" {
				cfg.Logging.Level = e.logLevel
			}
			logger.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, "text")
			e.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&e.configPath, "config", "", "path to config file")
	cmd.PersistentFlags().StringVarP(&e.indexPath, "index", "i", "", "index file path (overrides config)")
	cmd.PersistentFlags().StringVar(&e.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	cmd.AddCommand(
		newCreateCmd(e),
		newDestroyCmd(e),
		newIndexCmd(e),
		newRemoveCmd(e),
		newPropsCmd(e),
		newSearchCmd(e),
		newCompactCmd(e),
		newStatsCmd(e),
		newEnqueueCmd(e),
		newLoadtestCmd(e),
	)
	return cmd
}

// withIndex opens the existing index, runs fn, and closes everything,
// reporting the first error.
func (e *env) withIndex(ctx context.Context, fn func(ix *indexer.Indexer) error) (err error) {
	if e.cfg.Index.Path == "" {
		return errors.New("no index path: set --index or index.path in the config")
	}
	deps := bootstrap.New(e.cfg)
	defer func() { err = errors.Join(err, deps.Close()) }()

	opts, err := deps.IndexerOptions(ctx, nil)
	if err != nil {
		return err
	}
	ix, err := indexer.Open(ctx, e.cfg.Index.Path, opts)
	if err != nil {
		return fmt.Errorf("no usable index at %s: %w", e.cfg.Index.Path, err)
	}
	defer func() { err = errors.Join(err, ix.Close(ctx)) }()
	return fn(ix)
}
