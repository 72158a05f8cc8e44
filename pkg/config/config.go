// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Index, Analysis, Search, Fragmentation, Postgres, Redis,
// Kafka, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analysis"
)

// Config is the top-level application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Index         IndexConfig         `yaml:"index"`
	Analysis      analysis.Properties `yaml:"analysis"`
	Search        SearchConfig        `yaml:"search"`
	Fragmentation FragmentationConfig `yaml:"fragmentation"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Redis         RedisConfig         `yaml:"redis"`
	Logging       LoggingConfig       `yaml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// IndexConfig selects where and how the index is stored. An empty Path
// keeps the index in memory.
type IndexConfig struct {
	Path          string        `yaml:"path"`
	Type          string        `yaml:"type"`
	Codec         string        `yaml:"codec"`
	Autoflush     string        `yaml:"autoflush"`
	FlushInterval time.Duration `yaml:"flushInterval"`
	Overwrite     bool          `yaml:"overwrite"`
}

// SearchConfig controls search batching and result limits.
type SearchConfig struct {
	HitsAtATime  int           `yaml:"hitsAtATime"`
	MaximumTime  time.Duration `yaml:"maximumTime"`
	DefaultLimit int           `yaml:"defaultLimit"`
	MaxResults   int           `yaml:"maxResults"`
}

// FragmentationConfig selects the fragmentation-state preserver and the
// automatic compaction policy. Preserver is one of "", "memory", "file",
// "redis", "postgres", or "sqlite"; empty disables tracking.
type FragmentationConfig struct {
	Preserver          string        `yaml:"preserver"`
	Name               string        `yaml:"name"`
	FilePath           string        `yaml:"filePath"`
	SQLitePath         string        `yaml:"sqlitePath"`
	CompactInterval    time.Duration `yaml:"compactInterval"`
	MinUncompacted     int           `yaml:"minUncompacted"`
	MaxUncompactedRate float64       `yaml:"maxUncompactedRatio"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentIngest string `yaml:"documentIngest"`
	IndexComplete  string `yaml:"indexComplete"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with defaults for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Index: IndexConfig{
			Path:          "data/docindex.didx",
			Type:          "inverted",
			Codec:         "zstd",
			Autoflush:     "none",
			FlushInterval: 5 * time.Second,
		},
		Analysis: analysis.DefaultProperties(),
		Search: SearchConfig{
			HitsAtATime:  256,
			MaximumTime:  5 * time.Second,
			DefaultLimit: 10,
			MaxResults:   100,
		},
		Fragmentation: FragmentationConfig{
			Preserver:          "file",
			Name:               "docindex",
			FilePath:           "data/fragmentation.yaml",
			SQLitePath:         "data/fragmentation.db",
			CompactInterval:    time.Minute,
			MinUncompacted:     100,
			MaxUncompactedRate: 0.2,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "docindex",
			User:            "docindex",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "docindex-group",
			Topics: KafkaTopics{
				DocumentIngest: "document-ingest",
				IndexComplete:  "index.complete",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate checks cross-field constraints that defaults cannot guarantee.
func (c *Config) Validate() error {
	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	switch c.Fragmentation.Preserver {
	case "", "memory", "file", "redis", "postgres", "sqlite":
	default:
		return fmt.Errorf("fragmentation: unknown preserver %q", c.Fragmentation.Preserver)
	}
	if c.Search.DefaultLimit > c.Search.MaxResults && c.Search.MaxResults > 0 {
		return fmt.Errorf("search: defaultLimit %d exceeds maxResults %d", c.Search.DefaultLimit, c.Search.MaxResults)
	}
	return nil
}

// applyEnvOverrides reads DI_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DI_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DI_INDEX_PATH"); v != "" {
		cfg.Index.Path = v
	}
	if v := os.Getenv("DI_INDEX_CODEC"); v != "" {
		cfg.Index.Codec = v
	}
	if v := os.Getenv("DI_INDEX_AUTOFLUSH"); v != "" {
		cfg.Index.Autoflush = v
	}
	if v := os.Getenv("DI_FRAGMENTATION_PRESERVER"); v != "" {
		cfg.Fragmentation.Preserver = v
	}
	if v := os.Getenv("DI_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("DI_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("DI_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("DI_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("DI_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("DI_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("DI_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("DI_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("DI_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("DI_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DI_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("DI_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DI_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
