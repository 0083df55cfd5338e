package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the precis API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Completion CompletionConfig `yaml:"completion"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Summary    SummaryConfig    `yaml:"summary"`
	Auth       AuthConfig       `yaml:"auth"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the embedding store connection settings.
// Leaving addrs empty disables the index: the pipeline then skips the
// indexing and retrieval stages entirely.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// CompletionConfig holds completion provider settings.
type CompletionConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// FetchConfig holds page fetch limits.
type FetchConfig struct {
	TimeoutSec int   `yaml:"timeout_sec"`
	MaxBytes   int64 `yaml:"max_bytes"`
}

// SummaryConfig holds pipeline tuning knobs.
type SummaryConfig struct {
	DirectInputLimit   int    `yaml:"direct_input_limit"`
	MapChunkSize       int    `yaml:"map_chunk_size"`
	RetrievalChunkSize int    `yaml:"retrieval_chunk_size"`
	TopK               int    `yaml:"top_k"`
	MaxExcerpts        int    `yaml:"max_excerpts"`
	Query              string `yaml:"query"`
	FallbackLanguage   string `yaml:"fallback_language"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 64
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Completion.Model == "" {
		c.Completion.Model = "gpt-4o-mini"
	}
	if c.Completion.TimeoutSec <= 0 {
		c.Completion.TimeoutSec = 120
	}
	if c.Fetch.TimeoutSec <= 0 {
		c.Fetch.TimeoutSec = 12
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = 15 * 1024 * 1024
	}
	if c.Summary.DirectInputLimit <= 0 {
		c.Summary.DirectInputLimit = 12000
	}
	if c.Summary.MapChunkSize <= 0 {
		c.Summary.MapChunkSize = 4000
	}
	if c.Summary.RetrievalChunkSize <= 0 {
		c.Summary.RetrievalChunkSize = 1200
	}
	if c.Summary.TopK <= 0 {
		c.Summary.TopK = 8
	}
	if c.Summary.MaxExcerpts <= 0 {
		c.Summary.MaxExcerpts = 6
	}
	if c.Summary.Query == "" {
		c.Summary.Query = "RESUME"
	}
	if c.Summary.FallbackLanguage == "" {
		c.Summary.FallbackLanguage = "fr"
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "precis:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Embedding.APIKey == "" && len(c.Database.Addrs) > 0 {
		return fmt.Errorf("embedding.api_key is required when database.addrs is set")
	}
	if c.Completion.APIKey == "" {
		return fmt.Errorf("completion.api_key is required")
	}
	if c.Summary.TopK > 64 {
		return fmt.Errorf("summary.top_k must be at most 64, got %d", c.Summary.TopK)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
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
