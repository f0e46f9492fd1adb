package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4711 {
		t.Errorf("Server.Port = %d, want 4711", cfg.Server.Port)
	}
	if cfg.Builder.NoBelow != 20 || cfg.Builder.NoAbove != 0.1 || cfg.Builder.KeepN != 100000 {
		t.Errorf("builder thresholds = %d/%g/%d, want 20/0.1/100000",
			cfg.Builder.NoBelow, cfg.Builder.NoAbove, cfg.Builder.KeepN)
	}
	if cfg.Builder.NumTopics != 1000 || cfg.Builder.Passes != 5 || cfg.Builder.ChunkSize != 10000 {
		t.Errorf("builder training = %d/%d/%d, want 1000/5/10000",
			cfg.Builder.NumTopics, cfg.Builder.Passes, cfg.Builder.ChunkSize)
	}
	if cfg.Builder.Seed != 42 {
		t.Errorf("Builder.Seed = %d, want 42", cfg.Builder.Seed)
	}
	if cfg.Model.TopWords != 10 || cfg.Model.PruneEpsilon != 0.01 {
		t.Errorf("model knobs = %d/%g, want 10/0.01", cfg.Model.TopWords, cfg.Model.PruneEpsilon)
	}
	if cfg.Redis.CacheTTL != 60*time.Second {
		t.Errorf("Redis.CacheTTL = %v, want 60s", cfg.Redis.CacheTTL)
	}
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "localhost:9092" {
		t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: 8080
model:
  vocabularyFile: /data/wiki_wordids.txt.gz
  topWords: 5
builder:
  numTopics: 200
  stemming: true
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Model.VocabularyFile != "/data/wiki_wordids.txt.gz" || cfg.Model.TopWords != 5 {
		t.Errorf("model = %q/%d", cfg.Model.VocabularyFile, cfg.Model.TopWords)
	}
	if cfg.Builder.NumTopics != 200 || !cfg.Builder.Stemming {
		t.Errorf("builder = %d/%v", cfg.Builder.NumTopics, cfg.Builder.Stemming)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	// Untouched sections keep their defaults.
	if cfg.Builder.Passes != 5 {
		t.Errorf("Builder.Passes = %d, want default 5", cfg.Builder.Passes)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [not a mapping"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TP_SERVER_PORT", "9999")
	t.Setenv("TP_MODEL_VOCABULARY_FILE", "/override/vocab.gz")
	t.Setenv("TP_KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("TP_LOGGING_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Model.VocabularyFile != "/override/vocab.gz" {
		t.Errorf("Model.VocabularyFile = %q", cfg.Model.VocabularyFile)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "broker2:9092" {
		t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestEnvOverrideBadPortIgnored(t *testing.T) {
	t.Setenv("TP_SERVER_PORT", "not-a-number")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4711 {
		t.Errorf("Server.Port = %d, want default 4711", cfg.Server.Port)
	}
}

func TestValidateServing(t *testing.T) {
	dir := t.TempDir()
	touch := func(name string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatalf("touch %s: %v", name, err)
		}
		return path
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.ValidateServing(); err == nil {
		t.Error("expected error when no artifact paths are set")
	}

	cfg.Model.VocabularyFile = touch("vocab.gz")
	cfg.Model.CorpusFile = touch("bow.vec")
	if err := cfg.ValidateServing(); err == nil || !strings.Contains(err.Error(), "topicModelFile") {
		t.Errorf("expected topicModelFile error, got %v", err)
	}

	cfg.Model.TopicModelFile = filepath.Join(dir, "missing.model")
	if err := cfg.ValidateServing(); err == nil {
		t.Error("expected error for nonexistent topic model file")
	}

	cfg.Model.TopicModelFile = touch("lda.model")
	if err := cfg.ValidateServing(); err != nil {
		t.Errorf("ValidateServing: %v", err)
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{
		Host: "db.internal", Port: 5433, Database: "topics",
		User: "svc", Password: "secret", SSLMode: "require",
	}
	want := "host=db.internal port=5433 user=svc password=secret dbname=topics sslmode=require"
	if got := p.DSN(); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}
