package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when no explicit path is given.
const DefaultPath = "config.yaml"

// Config holds the savora configuration shared by ingest, searcher and qdrantctl.
type Config struct {
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PipelineConfig holds batch ingestion settings.
type PipelineConfig struct {
	InputPath    string `yaml:"input_path"`
	ProgressPath string `yaml:"progress_path"`
	ChunkSize    int    `yaml:"chunk_size"`
}

// EmbeddingConfig holds embedding backend settings.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // tei, openai
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	BatchSize int    `yaml:"batch_size"`
	CachePath string `yaml:"cache_path"` // empty disables the on-disk cache
}

// QdrantConfig holds vector store connection and retry settings.
type QdrantConfig struct {
	Host              string `yaml:"host"`
	GRPCPort          int    `yaml:"grpc_port"`
	HTTPPort          int    `yaml:"http_port"`
	Collection        string `yaml:"collection"`
	VectorSize        uint64 `yaml:"vector_size"`
	UploadBatchSize   int    `yaml:"upload_batch_size"`
	TimeoutSec        int    `yaml:"timeout_sec"`
	MaxRetries        int    `yaml:"max_retries"`
	RetryDelaySec     int    `yaml:"retry_delay_sec"`
	InitialBackoffSec int    `yaml:"initial_backoff_sec"`
	MaxBackoffSec     int    `yaml:"max_backoff_sec"`
	SubBatchPauseMS   int    `yaml:"sub_batch_pause_ms"`
}

// LifecycleConfig holds the local Qdrant container settings.
type LifecycleConfig struct {
	Container       string `yaml:"container"`
	Image           string `yaml:"image"`
	StorageDir      string `yaml:"storage_dir"`
	ReadyTimeoutSec int    `yaml:"ready_timeout_sec"`
}

// MetricsConfig holds the metrics listener settings.
type MetricsConfig struct {
	Port int `yaml:"port"` // 0 disables the listener
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Load reads configuration from a YAML file. An empty path means DefaultPath,
// and a missing DefaultPath yields the built-in defaults; an explicit path
// must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			cfg := &Config{}
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Substitute env variables of the form ${VAR} and ${VAR:-default}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Pipeline.InputPath == "" {
		c.Pipeline.InputPath = "rag_documents.json"
	}
	if c.Pipeline.ProgressPath == "" {
		c.Pipeline.ProgressPath = "embedding_progress.json"
	}
	if c.Pipeline.ChunkSize <= 0 {
		c.Pipeline.ChunkSize = 10000
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "tei"
	}
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = "http://localhost:8080"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "BAAI/bge-base-en-v1.5"
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 32
	}
	if c.Qdrant.Host == "" {
		c.Qdrant.Host = "localhost"
	}
	if c.Qdrant.GRPCPort <= 0 {
		c.Qdrant.GRPCPort = 6334
	}
	if c.Qdrant.HTTPPort <= 0 {
		c.Qdrant.HTTPPort = 6333
	}
	if c.Qdrant.Collection == "" {
		c.Qdrant.Collection = "recipe_embeddings"
	}
	if c.Qdrant.VectorSize == 0 {
		c.Qdrant.VectorSize = 768
	}
	if c.Qdrant.UploadBatchSize <= 0 {
		c.Qdrant.UploadBatchSize = 1000
	}
	if c.Qdrant.TimeoutSec <= 0 {
		c.Qdrant.TimeoutSec = 60
	}
	if c.Qdrant.MaxRetries <= 0 {
		c.Qdrant.MaxRetries = 5
	}
	if c.Qdrant.RetryDelaySec <= 0 {
		c.Qdrant.RetryDelaySec = 2
	}
	if c.Qdrant.InitialBackoffSec <= 0 {
		c.Qdrant.InitialBackoffSec = 3
	}
	if c.Qdrant.MaxBackoffSec <= 0 {
		c.Qdrant.MaxBackoffSec = 30
	}
	if c.Qdrant.SubBatchPauseMS <= 0 {
		c.Qdrant.SubBatchPauseMS = 500
	}
	if c.Lifecycle.Container == "" {
		c.Lifecycle.Container = "qdrant_local"
	}
	if c.Lifecycle.Image == "" {
		c.Lifecycle.Image = "qdrant/qdrant:latest"
	}
	if c.Lifecycle.StorageDir == "" {
		c.Lifecycle.StorageDir = "qdrant_storage"
	}
	if c.Lifecycle.ReadyTimeoutSec <= 0 {
		c.Lifecycle.ReadyTimeoutSec = 30
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "tei", "openai":
		// ok
	default:
		return fmt.Errorf("embedding.provider must be \"tei\" or \"openai\", got %q", c.Embedding.Provider)
	}
	if c.Qdrant.GRPCPort > 65535 {
		return fmt.Errorf("qdrant.grpc_port must be between 1 and 65535, got %d", c.Qdrant.GRPCPort)
	}
	if c.Qdrant.HTTPPort > 65535 {
		return fmt.Errorf("qdrant.http_port must be between 1 and 65535, got %d", c.Qdrant.HTTPPort)
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 0 and 65535, got %d", c.Metrics.Port)
	}
	if c.Qdrant.MaxBackoffSec < c.Qdrant.InitialBackoffSec {
		return fmt.Errorf("qdrant.max_backoff_sec must be >= qdrant.initial_backoff_sec, got %d < %d",
			c.Qdrant.MaxBackoffSec, c.Qdrant.InitialBackoffSec)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// ok
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
