// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Server, Model, Builder, Redis, Kafka, Postgres, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Model    ModelConfig    `yaml:"model"`
	Builder  BuilderConfig  `yaml:"builder"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Postgres PostgresConfig `yaml:"postgres"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// ModelConfig holds the paths of the frozen artifacts the inference service
// loads once at startup, plus inference tuning knobs.
type ModelConfig struct {
	VocabularyFile string `yaml:"vocabularyFile"`
	CorpusFile     string `yaml:"corpusFile"`
	TopicModelFile string `yaml:"topicModelFile"`
	// SimilarityFile is optional; when set, the service also answers
	// nearest-document queries over the topic-space corpus.
	SimilarityFile string `yaml:"similarityFile"`
	DocmapFile     string `yaml:"docmapFile"`
	// TopWords is the number of characteristic words attached per topic in
	// inference responses.
	TopWords int `yaml:"topWords"`
	// PruneEpsilon drops inferred topics whose weight falls below it.
	PruneEpsilon float64 `yaml:"pruneEpsilon"`
}

// BuilderConfig controls the offline corpus-to-model pipeline.
type BuilderConfig struct {
	// Vocabulary filtering, applied in order: document frequency < NoBelow,
	// then document frequency > NoAbove x total docs, then top KeepN.
	NoBelow int     `yaml:"noBelow"`
	NoAbove float64 `yaml:"noAbove"`
	KeepN   int     `yaml:"keepN"`

	NumTopics int   `yaml:"numTopics"`
	Passes    int   `yaml:"passes"`
	ChunkSize int   `yaml:"chunkSize"`
	Seed      int64 `yaml:"seed"`

	MinTokenLen int  `yaml:"minTokenLen"`
	Stemming    bool `yaml:"stemming"`
	// BuildSimilarity enables the optional topic-space similarity corpus.
	BuildSimilarity bool `yaml:"buildSimilarity"`
}

// RedisConfig holds Redis connection and response-cache parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// PostgresConfig holds PostgreSQL connection parameters for the analytics
// snapshot store.
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
	SnapshotEvery   time.Duration `yaml:"snapshotEvery"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
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

// Load reads a YAML config file (if provided) and applies environment
// variable overrides. It returns a Config populated with defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with defaults for local development. The
// builder thresholds match the original Wikipedia pipeline: drop terms in
// fewer than 20 documents or in more than 10% of all documents, keep the
// 100000 most frequent survivors, and train 1000 topics in 5 passes over
// 10000-document chunks.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            4711,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Model: ModelConfig{
			TopWords:     10,
			PruneEpsilon: 0.01,
		},
		Builder: BuilderConfig{
			NoBelow:     20,
			NoAbove:     0.1,
			KeepN:       100000,
			NumTopics:   1000,
			Passes:      5,
			ChunkSize:   10000,
			Seed:        42,
			MinTokenLen: 2,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "topic-platform-group",
			Topics: KafkaTopics{
				AnalyticsEvents: "topic-analytics-events",
			},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "topicplatform",
			User:            "topicplatform",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			SnapshotEvery:   time.Minute,
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

// applyEnvOverrides reads TP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TP_MODEL_VOCABULARY_FILE"); v != "" {
		cfg.Model.VocabularyFile = v
	}
	if v := os.Getenv("TP_MODEL_CORPUS_FILE"); v != "" {
		cfg.Model.CorpusFile = v
	}
	if v := os.Getenv("TP_MODEL_TOPIC_MODEL_FILE"); v != "" {
		cfg.Model.TopicModelFile = v
	}
	if v := os.Getenv("TP_MODEL_SIMILARITY_FILE"); v != "" {
		cfg.Model.SimilarityFile = v
	}
	if v := os.Getenv("TP_MODEL_DOCMAP_FILE"); v != "" {
		cfg.Model.DocmapFile = v
	}
	if v := os.Getenv("TP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("TP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("TP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("TP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("TP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("TP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("TP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("TP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("TP_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}

// ValidateServing checks that the artifact paths required by the inference
// service are set and point at existing files.
func (c *Config) ValidateServing() error {
	required := map[string]string{
		"model.vocabularyFile": c.Model.VocabularyFile,
		"model.corpusFile":     c.Model.CorpusFile,
		"model.topicModelFile": c.Model.TopicModelFile,
	}
	for name, path := range required {
		if path == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
