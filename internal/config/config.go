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

// Config holds the DocSage configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Index      IndexConfig      `yaml:"index"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	ChatLog    ChatLogConfig    `yaml:"chatlog"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Auth       AuthConfig       `yaml:"auth"`
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
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxUploadMB     int `yaml:"max_upload_mb"`
	SessionIdleMin  int `yaml:"session_idle_min"` // minutes before an unused session is closed
}

// DatabaseConfig holds Redis/Valkey connection settings.
// The store backs the vector index (redis/valkey backends), the embedding cache and budget counters.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether a Redis/Valkey store is configured.
func (d DatabaseConfig) Enabled() bool { return len(d.Addrs) > 0 }

// Index backends.
const (
	BackendRedis   = "redis"
	BackendValkey  = "valkey"
	BackendQdrant  = "qdrant"
	BackendChromem = "chromem"
)

// IndexConfig describes the vector index and its backend.
type IndexConfig struct {
	Backend         string        `yaml:"backend"` // redis, valkey, qdrant, chromem (default: database.driver)
	Name            string        `yaml:"name"`
	Dimensions      int           `yaml:"dimensions"`
	Metric          string        `yaml:"metric"`
	HNSWM           int           `yaml:"hnsw_m"`
	HNSWEFConstruct int           `yaml:"hnsw_ef_construction"`
	Qdrant          QdrantConfig  `yaml:"qdrant"`
	Chromem         ChromemConfig `yaml:"chromem"`
}

// QdrantConfig holds Qdrant gRPC connection settings.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	UseTLS     bool   `yaml:"use_tls"`
	APIKey     string `yaml:"api_key"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// ChromemConfig holds embedded index settings. Empty Path keeps the index in memory.
type ChromemConfig struct {
	Path     string `yaml:"path"`
	Compress bool   `yaml:"compress"`
}

// PipelineConfig holds ingestion and retrieval limits.
type PipelineConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	MaxTopK      int `yaml:"max_top_k"`
	MaxBatchSize int `yaml:"max_batch_size"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Providers   map[string]ProviderConfig   `yaml:"providers"`
	Vectorizers map[string]VectorizerConfig `yaml:"vectorizers"`
	CacheTTLSec int                         `yaml:"cache_ttl_sec"` // 0 = never expire
}

// Vectorizer returns the configured vectorizer (the lexically first one when several exist).
func (e EmbeddingConfig) Vectorizer() (string, VectorizerConfig) {
	var (
		name string
		vc   VectorizerConfig
	)
	for n, v := range e.Vectorizers {
		if name == "" || n < name {
			name, vc = n, v
		}
	}
	return name, vc
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// ProviderConfig holds OpenAI-compatible provider settings.
// The provider named "fake" needs no credentials and runs fully offline.
type ProviderConfig struct {
	APIKey  string       `yaml:"api_key"`
	BaseURL string       `yaml:"base_url"`
	Budget  BudgetConfig `yaml:"budget"`
}

// VectorizerConfig holds vectorizer settings.
type VectorizerConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// GenerationConfig holds chat model settings. Provider refers to embedding.providers.
type GenerationConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Chat log drivers.
const (
	ChatLogSQLite   = "sqlite"
	ChatLogPostgres = "postgres"
	ChatLogNone     = "none"
)

// ChatLogConfig selects the persistent chat log store.
type ChatLogConfig struct {
	Driver string `yaml:"driver"` // sqlite (default), postgres, none
	DSN    string `yaml:"dsn"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads, expands, defaults and validates the YAML file at path.
func LoadFile(configPath string) (Config, error) {
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
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 32
	}
	if c.HTTP.SessionIdleMin <= 0 {
		c.HTTP.SessionIdleMin = 60
	}
	if c.Database.Driver == "" {
		c.Database.Driver = BackendValkey
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Index.Backend == "" {
		c.Index.Backend = c.Database.Driver
	}
	if c.Index.Name == "" {
		c.Index.Name = "docsage-index"
	}
	if c.Index.Dimensions <= 0 {
		c.Index.Dimensions = 1536
	}
	if c.Index.Metric == "" {
		c.Index.Metric = "cosine"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Index.Qdrant.Port <= 0 {
		c.Index.Qdrant.Port = 6334
	}
	if c.Index.Qdrant.TimeoutSec <= 0 {
		c.Index.Qdrant.TimeoutSec = 30
	}
	if c.Pipeline.ChunkSize <= 0 {
		c.Pipeline.ChunkSize = 500
	}
	if c.Pipeline.MaxTopK <= 0 {
		c.Pipeline.MaxTopK = 50
	}
	if c.Pipeline.MaxBatchSize <= 0 {
		c.Pipeline.MaxBatchSize = 20
	}
	if c.Generation.Model == "" {
		c.Generation.Model = "gpt-3.5-turbo"
	}
	if c.ChatLog.Driver == "" {
		c.ChatLog.Driver = ChatLogSQLite
	}
	if c.ChatLog.Driver == ChatLogSQLite && c.ChatLog.DSN == "" {
		c.ChatLog.DSN = "data/chat.db"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case BackendRedis, BackendValkey:
	default:
		return fmt.Errorf("database.driver must be \"redis\" or \"valkey\", got %q", c.Database.Driver)
	}
	switch c.Index.Backend {
	case BackendRedis, BackendValkey:
		if !c.Database.Enabled() {
			return fmt.Errorf("database.addrs is required for index backend %q", c.Index.Backend)
		}
	case BackendQdrant:
		if c.Index.Qdrant.Host == "" {
			return fmt.Errorf("index.qdrant.host is required for index backend %q", c.Index.Backend)
		}
	case BackendChromem:
	default:
		return fmt.Errorf("index.backend must be one of redis, valkey, qdrant, chromem, got %q", c.Index.Backend)
	}
	if c.Index.Metric != "cosine" {
		return fmt.Errorf("index.metric must be \"cosine\", got %q", c.Index.Metric)
	}
	for name, p := range c.Embedding.Providers {
		switch p.Budget.Action {
		case "", "warn", "reject":
			// ok
		default:
			return fmt.Errorf(
				"embedding.providers.%s.budget.action must be \"warn\" or \"reject\", got %q",
				name, p.Budget.Action,
			)
		}
	}
	if len(c.Embedding.Vectorizers) == 0 {
		return fmt.Errorf("embedding.vectorizers: at least one vectorizer is required")
	}
	_, vc := c.Embedding.Vectorizer()
	if _, ok := c.Embedding.Providers[vc.Provider]; !ok {
		return fmt.Errorf("embedding vectorizer refers to unknown provider %q", vc.Provider)
	}
	if vc.Dimensions > 0 && vc.Dimensions != c.Index.Dimensions {
		return fmt.Errorf("vectorizer dimensions %d differ from index.dimensions %d", vc.Dimensions, c.Index.Dimensions)
	}
	if _, ok := c.Embedding.Providers[c.Generation.Provider]; !ok {
		return fmt.Errorf("generation.provider refers to unknown provider %q", c.Generation.Provider)
	}
	switch c.ChatLog.Driver {
	case ChatLogSQLite, ChatLogPostgres:
		if c.ChatLog.DSN == "" {
			return fmt.Errorf("chatlog.dsn is required for driver %q", c.ChatLog.Driver)
		}
	case ChatLogNone:
	default:
		return fmt.Errorf("chatlog.driver must be one of sqlite, postgres, none, got %q", c.ChatLog.Driver)
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
