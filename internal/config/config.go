package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config holds the relevo API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Provider ProviderConfig `yaml:"provider"`
	Ranking  RankingConfig  `yaml:"ranking"`
	Cache    CacheConfig    `yaml:"cache"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
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
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// ProviderConfig holds the OpenAI-compatible provider settings shared by the
// embedding and chat completion transports.
type ProviderConfig struct {
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	Name                string `yaml:"name"` // label for logs and metrics
	EmbeddingModel      string `yaml:"embedding_model"`
	EmbeddingDimensions int    `yaml:"embedding_dimensions"`
	ChatModel           string `yaml:"chat_model"`
	MaxInputChars       int    `yaml:"max_input_chars"`
	RetryAttempts       int    `yaml:"retry_attempts"`
	RetryBackoffMs      int    `yaml:"retry_backoff_ms"`
	TimeoutSec          int    `yaml:"timeout_sec"`
}

// RankingConfig selects the similarity ranking path.
type RankingConfig struct {
	Driver              string `yaml:"driver"` // process (default) or store
	DefaultTopK         int    `yaml:"default_top_k"`
	BackfillConcurrency int    `yaml:"backfill_concurrency"`
}

// CacheConfig holds the transient query-vector cache settings.
type CacheConfig struct {
	QueryCapacity int `yaml:"query_capacity"`
}

// CatalogConfig holds catalog storage settings.
type CatalogConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
	IndexName string `yaml:"index_name"`
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
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Provider.Name == "" {
		c.Provider.Name = "openai"
	}
	if c.Provider.MaxInputChars <= 0 {
		c.Provider.MaxInputChars = 8000
	}
	if c.Provider.RetryAttempts <= 0 {
		c.Provider.RetryAttempts = 3
	}
	if c.Provider.RetryBackoffMs <= 0 {
		c.Provider.RetryBackoffMs = 200
	}
	if c.Provider.TimeoutSec <= 0 {
		c.Provider.TimeoutSec = 30
	}
	if c.Ranking.Driver == "" {
		c.Ranking.Driver = "process"
	}
	if c.Ranking.DefaultTopK <= 0 {
		c.Ranking.DefaultTopK = 3
	}
	if c.Ranking.BackfillConcurrency <= 0 {
		c.Ranking.BackfillConcurrency = 4
	}
	if c.Cache.QueryCapacity <= 0 {
		c.Cache.QueryCapacity = 512
	}
	if c.Catalog.KeyPrefix == "" {
		c.Catalog.KeyPrefix = "relevo:"
	}
	if c.Catalog.IndexName == "" {
		c.Catalog.IndexName = "relevo_catalog_idx"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Provider.EmbeddingModel == "" {
		return fmt.Errorf("provider.embedding_model is required")
	}
	if c.Provider.ChatModel == "" {
		return fmt.Errorf("provider.chat_model is required")
	}
	switch c.Ranking.Driver {
	case "process", "store":
		// ok
	default:
		return fmt.Errorf(`ranking.driver must be "process" or "store", got %q`, c.Ranking.Driver)
	}
	if c.Ranking.Driver == "store" && c.Provider.EmbeddingDimensions <= 0 {
		return fmt.Errorf("provider.embedding_dimensions is required when ranking.driver is \"store\"")
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} placeholders with environment variable values.
// Unset variables expand to an empty string.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
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

	// 3. Fallback to ./config/<env>.yaml; Load will report the read error.
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
