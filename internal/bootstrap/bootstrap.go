// Package bootstrap turns a loaded Config into a ready indexer and the
// external connections it needs. It is shared by indexd and the CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/fragmentation"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docindex/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/resilience"
)

// Deps opens external connections on first use and closes them together.
type Deps struct {
	cfg     *config.Config
	retry   resilience.RetryConfig
	redis   *pkgredis.Client
	pg      *postgres.Client
	checks  map[string]health.Check
	closers []func() error
	logger  *slog.Logger
}

func New(cfg *config.Config) *Deps {
	return &Deps{
		cfg:    cfg,
		retry:  resilience.RetryConfig{MaxAttempts: 5},
		checks: make(map[string]health.Check),
		logger: slog.Default().With("component", "bootstrap"),
	}
}

// Redis connects to Redis, retrying with backoff.
func (d *Deps) Redis(ctx context.Context) (*pkgredis.Client, error) {
	if d.redis != nil {
		return d.redis, nil
	}
	client, err := resilience.RetryValue(ctx, "redis-connect", d.retry, func() (*pkgredis.Client, error) {
		return pkgredis.NewClient(d.cfg.Redis)
	})
	if err != nil {
		return nil, err
	}
	d.redis = client
	d.closers = append(d.closers, client.Close)
	d.checks["redis"] = health.PingCheck(client.Ping)
	d.logger.Info("redis connected", "addr", d.cfg.Redis.Addr)
	return client, nil
}

// Postgres connects to PostgreSQL, retrying with backoff.
func (d *Deps) Postgres(ctx context.Context) (*postgres.Client, error) {
	if d.pg != nil {
		return d.pg, nil
	}
	client, err := resilience.RetryValue(ctx, "postgres-connect", d.retry, func() (*postgres.Client, error) {
		return postgres.New(d.cfg.Postgres)
	})
	if err != nil {
		return nil, err
	}
	d.pg = client
	d.closers = append(d.closers, client.Close)
	d.checks["postgres"] = health.PingCheck(client.Ping)
	d.logger.Info("postgres connected", "host", d.cfg.Postgres.Host, "database", d.cfg.Postgres.Database)
	return client, nil
}

// Preserver builds the configured fragmentation preserver. An empty kind
// returns nil, which disables tracking.
func (d *Deps) Preserver(ctx context.Context) (fragmentation.Preserver, error) {
	fc := d.cfg.Fragmentation
	switch fc.Preserver {
	case "":
		return nil, nil
	case "memory":
		return fragmentation.NewMemory(), nil
	case "file":
		return fragmentation.NewFile(fc.FilePath), nil
	case "redis":
		client, err := d.Redis(ctx)
		if err != nil {
			return nil, err
		}
		return fragmentation.NewRedis(client, fc.Name), nil
	case "postgres":
		db, err := d.Postgres(ctx)
		if err != nil {
			return nil, err
		}
		return fragmentation.NewPostgres(ctx, db, fc.Name)
	case "sqlite":
		s, err := fragmentation.OpenSQLite(ctx, fc.SQLitePath, fc.Name)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, s.Close)
		d.checks["sqlite"] = health.PingCheck(s.Ping)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown fragmentation preserver %q", fc.Preserver)
	}
}

// IndexerOptions builds facade options from the config.
func (d *Deps) IndexerOptions(ctx context.Context, m *metrics.Metrics) (indexer.Options, error) {
	typ, err := index.ParseType(d.cfg.Index.Type)
	if err != nil {
		return indexer.Options{}, err
	}
	codec, err := storage.ParseCodec(d.cfg.Index.Codec)
	if err != nil {
		return indexer.Options{}, err
	}
	autoflush, err := indexer.ParseAutoflush(d.cfg.Index.Autoflush)
	if err != nil {
		return indexer.Options{}, err
	}
	preserver, err := d.Preserver(ctx)
	if err != nil {
		return indexer.Options{}, fmt.Errorf("fragmentation preserver: %w", err)
	}
	analysis := d.cfg.Analysis
	return indexer.Options{
		IndexType: typ,
		Autoflush: autoflush,
		Analysis:  &analysis,
		Preserver: preserver,
		Codec:     codec,
		Metrics:   m,
	}, nil
}

// OpenIndex opens the configured index. An empty path gives an in-memory
// index; a missing file, or any file when overwrite is set, is created.
func (d *Deps) OpenIndex(ctx context.Context, opts indexer.Options) (*indexer.Indexer, error) {
	ic := d.cfg.Index
	if ic.Path == "" {
		return indexer.NewInMemory(ctx, opts)
	}
	if ic.Overwrite {
		return indexer.Create(ctx, ic.Path, opts, true)
	}
	if _, err := os.Stat(ic.Path); errors.Is(err, fs.ErrNotExist) {
		d.logger.Info("creating index", "path", ic.Path, "type", opts.IndexType)
		return indexer.Create(ctx, ic.Path, opts, false)
	}
	return indexer.Open(ctx, ic.Path, opts)
}

// RegisterChecks adds a check for every connection opened so far.
func (d *Deps) RegisterChecks(checker *health.Checker) {
	for name, check := range d.checks {
		checker.Register(name, check)
	}
}

// Close closes every connection in reverse opening order.
func (d *Deps) Close() error {
	var errs []error
	for _, closeFn := range slices.Backward(d.closers) {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
