package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/docid"
	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/metrics"
)

// Mutator is the write side of the indexer facade.
type Mutator interface {
	IndexDocument(id docid.ObjectID, text string) error
	RemoveDocument(id docid.ObjectID) error
	SetDocumentProperties(id docid.ObjectID, props map[string]any) error
}

// Applier validates messages and applies them to the index.
type Applier struct {
	index    Mutator
	notifier *Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewApplier creates an Applier. notifier and m may be nil.
func NewApplier(index Mutator, notifier *Notifier, m *metrics.Metrics) *Applier {
	return &Applier{
		index:    index,
		notifier: notifier,
		metrics:  m,
		logger:   slog.Default().With("component", "ingest"),
	}
}

// Apply validates msg and performs it. Validation failures are returned as
// *ValidationError wrapped with ErrInvalidInput. source names the channel
// the message came from and is carried into the completion event.
func (a *Applier) Apply(ctx context.Context, source string, msg Message) (err error) {
	defer func() {
		a.metrics.ObserveIngest(string(msg.Op), err)
		a.track(source, msg, err)
	}()

	if verr := Validate(&msg); verr != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, verr)
	}
	id := docid.URI(msg.URI)
	switch msg.Op {
	case OpIndex:
		err = a.index.IndexDocument(id, msg.Text)
	case OpRemove:
		err = a.index.RemoveDocument(id)
	case OpProperties:
		err = a.index.SetDocumentProperties(id, msg.Properties)
	}
	if err != nil {
		logger.FromContext(ctx).Error("ingest message failed",
			"op", msg.Op,
			"uri", msg.URI,
			"source", source,
			"error", err,
		)
		return err
	}
	logger.FromContext(ctx).Debug("ingest message applied", "op", msg.Op, "uri", msg.URI, "source", source)
	return nil
}

// KafkaHandler adapts Apply to the consumer loop. Messages that can never
// succeed are reported as kafka.ErrMalformed so the consumer commits past
// them; other failures are retried by the consumer and never committed.
func (a *Applier) KafkaHandler() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		msg, err := kafka.DecodeJSON[Message](value)
		if err != nil {
			a.metrics.ObserveIngest("unknown", err)
			return err
		}
		if msg.URI == "" && len(key) > 0 {
			msg.URI = string(key)
		}
		if err := a.Apply(ctx, "kafka", msg); err != nil {
			if permanent(err) {
				return fmt.Errorf("%w: %w", kafka.ErrMalformed, err)
			}
			return err
		}
		return nil
	}
}

func permanent(err error) bool {
	return errors.Is(err, apperrors.ErrInvalidInput) ||
		errors.Is(err, apperrors.ErrInvalidDocumentID) ||
		errors.Is(err, apperrors.ErrDocumentNotFound)
}

func (a *Applier) track(source string, msg Message, err error) {
	if a.notifier == nil {
		return
	}
	event := Event{
		Op:        msg.Op,
		URI:       msg.URI,
		Status:    StatusApplied,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		event.Status = StatusFailed
		event.Error = err.Error()
	}
	a.notifier.Track(event)
}
