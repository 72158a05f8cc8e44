package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/ingest"
)

var loadVocabulary = []string{
	"inverted", "index", "posting", "document", "search", "query",
	"ranking", "fragment", "compact", "snapshot", "stemming", "token",
	"cursor", "batch", "score", "flush", "journal", "segment",
	"analysis", "property", "phrase", "prefix", "boolean", "merge",
}

type loadConfig struct {
	baseURL     string
	concurrency int
	duration    time.Duration
	seed        int
	writeRatio  float64
	limit       int
}

// loadStats collects per-request outcomes from all workers.
type loadStats struct {
	searches atomic.Int64
	writes   atomic.Int64
	errors   atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func newLoadStats() *loadStats {
	return &loadStats{latencies: make([]time.Duration, 0, 4096), codes: make(map[int]int64)}
}

func (s *loadStats) record(write bool, d time.Duration, code int, err error) {
	if write {
		s.writes.Add(1)
	} else {
		s.searches.Add(1)
	}
	if err != nil || code < 200 || code >= 300 {
		s.errors.Add(1)
	}
	if err != nil {
		return
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.codes[code]++
	s.mu.Unlock()
}

func (s *loadStats) total() int64 { return s.searches.Load() + s.writes.Load() }

func newLoadtestCmd(e *env) *cobra.Command {
	cfg := loadConfig{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive a running indexd with a mixed search and indexing workload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.concurrency < 1 {
				return errors.New("--concurrency must be at least 1")
			}
			if cfg.writeRatio < 0 || cfg.writeRatio > 1 {
				return errors.New("--write-ratio must be between 0 and 1")
			}
			cfg.baseURL = strings.TrimRight(cfg.baseURL, "/")
			return runLoadTest(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.baseURL, "url", "http://localhost:8080", "base URL of indexd")
	cmd.Flags().IntVarP(&cfg.concurrency, "concurrency", "c", 10, "concurrent workers")
	cmd.Flags().DurationVarP(&cfg.duration, "duration", "d", 30*time.Second, "test duration")
	cmd.Flags().IntVar(&cfg.seed, "seed", 100, "documents to index before the timed run")
	cmd.Flags().Float64Var(&cfg.writeRatio, "write-ratio", 0.1, "fraction of timed requests that index a document")
	cmd.Flags().IntVar(&cfg.limit, "limit", 10, "result limit for each search")
	return cmd
}

func runLoadTest(ctx context.Context, out io.Writer, cfg loadConfig) error {
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.concurrency * 2,
			MaxIdleConnsPerHost: cfg.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	fmt.Fprintf(out, "target %s, %d workers, %s, seeding %d documents\n",
		cfg.baseURL, cfg.concurrency, cfg.duration, cfg.seed)
	for i := range cfg.seed {
		code, err := loadDocument(ctx, client, cfg.baseURL, i, rand.New(rand.NewPCG(uint64(i), 0)))
		if err != nil {
			return fmt.Errorf("seeding document %d: %w", i, err)
		}
		if code != http.StatusOK {
			return fmt.Errorf("seeding document %d: status %d", i, code)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.duration)
	defer cancel()

	stats := newLoadStats()
	var next atomic.Int64
	next.Store(int64(cfg.seed))
	g, gctx := errgroup.WithContext(runCtx)
	for w := range cfg.concurrency {
		rng := rand.New(rand.NewPCG(uint64(w)+1<<32, 1))
		g.Go(func() error {
			for gctx.Err() == nil {
				write := rng.Float64() < cfg.writeRatio
				start := time.Now()
				var code int
				var err error
				if write {
					code, err = loadDocument(gctx, client, cfg.baseURL, int(next.Add(1)), rng)
				} else {
					code, err = loadSearch(gctx, client, cfg.baseURL, randomQuery(rng), cfg.limit)
				}
				if gctx.Err() != nil {
					return nil
				}
				stats.record(write, time.Since(start), code, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	printLoadReport(out, stats, cfg.duration)
	if stats.total() == 0 {
		return errors.New("no requests completed; is indexd running?")
	}
	return nil
}

func loadDocument(ctx context.Context, client *http.Client, base string, n int, rng *rand.Rand) (int, error) {
	words := make([]string, 20+rng.IntN(40))
	for i := range words {
		words[i] = loadVocabulary[rng.IntN(len(loadVocabulary))]
	}
	body, err := json.Marshal(ingest.Message{
		Op:   ingest.OpIndex,
		URI:  fmt.Sprintf("loadtest://doc/%d", n),
		Text: strings.Join(words, " "),
	})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/v1/documents", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	return roundTrip(client, req)
}

func loadSearch(ctx context.Context, client *http.Client, base, query string, limit int) (int, error) {
	u := fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d", base, url.QueryEscape(query), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	return roundTrip(client, req)
}

func roundTrip(client *http.Client, req *http.Request) (int, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func randomQuery(rng *rand.Rand) string {
	a := loadVocabulary[rng.IntN(len(loadVocabulary))]
	b := loadVocabulary[rng.IntN(len(loadVocabulary))]
	switch rng.IntN(3) {
	case 0:
		return a
	case 1:
		return a + " " + b
	default:
		return a[:3] + "*"
	}
}

func printLoadReport(out io.Writer, stats *loadStats, duration time.Duration) {
	total := stats.total()
	fmt.Fprintf(out, "requests  %d (%d searches, %d writes)\n", total, stats.searches.Load(), stats.writes.Load())
	fmt.Fprintf(out, "errors    %d\n", stats.errors.Load())
	if total > 0 {
		fmt.Fprintf(out, "rps       %.2f\n", float64(total)/duration.Seconds())
	}

	stats.mu.Lock()
	latencies := slices.Clone(stats.latencies)
	codes := maps.Clone(stats.codes)
	stats.mu.Unlock()

	if len(latencies) > 0 {
		slices.Sort(latencies)
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Fprintf(out, "latency   min %s avg %s p50 %s p95 %s p99 %s max %s\n",
			latencies[0], sum/time.Duration(len(latencies)),
			percentile(latencies, 50), percentile(latencies, 95), percentile(latencies, 99),
			latencies[len(latencies)-1])
	}
	for _, code := range slices.Sorted(maps.Keys(codes)) {
		fmt.Fprintf(out, "status    %d: %d\n", code, codes[code])
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
