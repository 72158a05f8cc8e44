package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 256, cfg.Search.HitsAtATime)
	assert.Equal(t, 5*time.Second, cfg.Search.MaximumTime)
	assert.Equal(t, analysis.DefaultProperties(), cfg.Analysis)
	assert.Equal(t, "file", cfg.Fragmentation.Preserver)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
index:
  path: /var/lib/docindex/notes.didx
  codec: lz4
  autoflush: afterEachMutation
analysis:
  minTermLength: 3
  stemming: snowball
  language: fr
search:
  hitsAtATime: 64
  maximumTime: 250ms
fragmentation:
  preserver: sqlite
`), 0o644))
	t.Setenv("DI_SERVER_PORT", "9100")
	t.Setenv("DI_KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "/var/lib/docindex/notes.didx", cfg.Index.Path)
	assert.Equal(t, "lz4", cfg.Index.Codec)
	assert.Equal(t, "afterEachMutation", cfg.Index.Autoflush)
	assert.Equal(t, 3, cfg.Analysis.MinTermLength)
	assert.Equal(t, analysis.StemSnowball, cfg.Analysis.Stemming)
	assert.True(t, cfg.Analysis.FoldCase, "unset fields keep defaults")
	assert.Equal(t, 64, cfg.Search.HitsAtATime)
	assert.Equal(t, 250*time.Millisecond, cfg.Search.MaximumTime)
	assert.Equal(t, "sqlite", cfg.Fragmentation.Preserver)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fragmentation:\n  preserver: etcd\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  stemming: porter9\n"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	cfg := Default()
	assert.Equal(t,
		"host=localhost port=5432 user=docindex password=localdev dbname=docindex sslmode=disable",
		cfg.Postgres.DSN(),
	)
}
