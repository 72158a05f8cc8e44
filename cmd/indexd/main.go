package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/fragmentation"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/ingest"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/server/cache"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/server/executor"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/server/handler"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/server/maintenance"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/middleware"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("indexd failed", "error", err)
		os.Exit(1)
	}
	slog.Info("indexd stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting indexd",
		"port", cfg.Server.Port,
		"index_path", cfg.Index.Path,
		"preserver", cfg.Fragmentation.Preserver,
	)

	m := metrics.New(nil)
	deps := bootstrap.New(cfg)
	defer func() {
		if err := deps.Close(); err != nil {
			slog.Error("closing connections", "error", err)
		}
	}()

	opts, err := deps.IndexerOptions(ctx, m)
	if err != nil {
		return err
	}
	ix, err := deps.OpenIndex(ctx, opts)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer func() {
		if err := ix.Close(context.Background()); err != nil {
			slog.Error("closing index", "error", err)
		}
	}()

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		client, err := deps.Redis(ctx)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			queryCache = cache.New(client, cfg.Redis.CacheTTL, ix.Epoch, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var notifier *ingest.Notifier
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		notifier = ingest.NewNotifier(producer, 0)
		notifier.Start(ctx)
		defer notifier.Close()
	}
	applier := ingest.NewApplier(ix, notifier, m)

	compactor := maintenance.NewCompactor(ix, fragmentation.Policy{
		MinUncompacted: cfg.Fragmentation.MinUncompacted,
		MaxRatio:       cfg.Fragmentation.MaxUncompactedRate,
	})

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		stats, err := ix.Stats()
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents, %d pending records", stats.Documents, stats.PendingRecords),
		}
	})
	deps.RegisterChecks(checker)
	if queryCache != nil {
		checker.Register("search-cache", health.DegradedCheck(queryCache.Check))
	}

	h := handler.New(
		ix,
		applier,
		executor.New(ix, cfg.Search.HitsAtATime, cfg.Search.MaximumTime),
		queryCache,
		compactor,
		handler.Config{DefaultLimit: cfg.Search.DefaultLimit, MaxResults: cfg.Search.MaxResults},
		m,
	)
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("indexd listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return shutdownMetrics(shutdownCtx)
		})
	}
	g.Go(func() error { return maintenance.RunFlushLoop(gctx, ix, cfg.Index.FlushInterval) })
	g.Go(func() error { return compactor.Run(gctx, cfg.Fragmentation.CompactInterval) })
	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, applier.KafkaHandler())
		g.Go(func() error {
			defer consumer.Close()
			return consumer.Start(gctx)
		})
		slog.Info("kafka ingest enabled",
			"topic", cfg.Kafka.Topics.DocumentIngest,
			"completion_topic", cfg.Kafka.Topics.IndexComplete,
		)
	}

	return g.Wait()
}
