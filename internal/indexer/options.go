package indexer

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/fragmentation"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/docid"
	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/metrics"
)

// Autoflush selects when pending mutations are written to storage without
// an explicit Flush.
type Autoflush int

const (
	AutoflushNone Autoflush = iota
	AutoflushBeforeEachSearch
	AutoflushAfterEachMutation
)

func (a Autoflush) String() string {
	switch a {
	case AutoflushBeforeEachSearch:
		return "beforeEachSearch"
	case AutoflushAfterEachMutation:
		return "afterEachMutation"
	default:
		return "none"
	}
}

func ParseAutoflush(s string) (Autoflush, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return AutoflushNone, nil
	case "beforeeachsearch", "before_each_search":
		return AutoflushBeforeEachSearch, nil
	case "aftereachmutation", "after_each_mutation":
		return AutoflushAfterEachMutation, nil
	default:
		return 0, fmt.Errorf("unknown autoflush %q: %w", s, apperrors.ErrInvalidInput)
	}
}

type Options struct {
	IndexType index.Type
	Autoflush Autoflush
	// Analysis applies to newly created indexes; nil means the defaults.
	// Opened indexes keep the properties they were created with.
	Analysis *analysis.Properties
	// Preserver enables fragmentation tracking.
	Preserver fragmentation.Preserver
	// Resolver maps hit URLs back to object identifiers. Without one every
	// hit carries its URL as a docid.URI.
	Resolver docid.Resolver
	Codec    storage.Codec
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

func (o Options) indexOptions() index.Options {
	props := analysis.DefaultProperties()
	if o.Analysis != nil {
		props = *o.Analysis
	}
	return index.Options{Type: o.IndexType, Analysis: props}
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger.With("component", "indexer")
	}
	return slog.Default().With("component", "indexer")
}
