package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/logger"
)

func TestSpanTree(t *testing.T) {
	ctx := logger.WithRequestID(context.Background(), "req-1")
	ctx, root := Start(ctx, "search")
	root.SetAttr("query", "foo")

	_, child := Start(ctx, "execute")
	child.SetAttr("batches", 1)
	child.SetAttr("batches", 3)
	child.End()
	root.End()

	assert.Same(t, root, FromContext(ctx))
	assert.Equal(t, "req-1", root.TraceID)
	assert.Equal(t, "req-1", child.TraceID)
	require.Len(t, root.Children(), 1)
	assert.Same(t, child, root.Children()[0])

	v, ok := child.Attr("batches")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	_, ok = root.Attr("missing")
	assert.False(t, ok)
}

func TestLogWritesEverySpanAtDebug(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, root := Start(context.Background(), "search")
	_, child := Start(ctx, "cache.get")
	child.SetAttr("hit", false)
	child.End()
	root.End()
	root.Log(ctx, log)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "search", first["span"])
	assert.Equal(t, 0.0, first["depth"])
	assert.Equal(t, "cache.get", second["span"])
	assert.Equal(t, 1.0, second["depth"])
	assert.Equal(t, false, second["hit"])
}

func TestLogSkippedAboveDebug(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, root := Start(context.Background(), "search")
	root.End()
	root.Log(ctx, log)
	assert.Empty(t, buf.String())
}

func TestNilSpan(t *testing.T) {
	var s *Span
	s.End()
	s.SetAttr("k", "v")
	s.Log(context.Background(), slog.Default())
	assert.Nil(t, FromContext(context.Background()))
}
