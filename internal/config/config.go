// Package config loads the server configuration from a YAML file, an
// optional .env file and environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

// Knowledge backends
const (
	BackendFilesystem = "filesystem"
	BackendPostgres   = "postgres"
	BackendSQLite     = "sqlite"
)

// Lock backends; empty means rebuilds are only gated in-process
const (
	LockNone     = ""
	LockRedis    = "redis"
	LockPostgres = "postgres"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid config")

// Config is the root configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chat      ChatConfig      `yaml:"chat"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Lock      LockConfig      `yaml:"lock"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

type KnowledgeConfig struct {
	Backend     string   `yaml:"backend"`
	Dir         string   `yaml:"dir"`
	Extensions  []string `yaml:"extensions"`
	MaxFileSize int64    `yaml:"max_file_size"`
	SQLitePath  string   `yaml:"sqlite_path"`
}

type EmbeddingConfig struct {
	Provider       string        `yaml:"provider"`
	Model          string        `yaml:"model"`
	APIKey         string        `yaml:"api_key"`
	BaseURL        string        `yaml:"base_url"`
	BatchSize      int           `yaml:"batch_size"`
	QueryCacheSize int           `yaml:"query_cache_size"`
	QueryCacheTTL  time.Duration `yaml:"query_cache_ttl"`
}

type ChatConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type RetrievalConfig struct {
	ChunkSize       int           `yaml:"chunk_size"`
	TopK            int           `yaml:"top_k"`
	MaxContextChars int           `yaml:"max_context_chars"` // 0 = unbounded
	RefreshInterval time.Duration `yaml:"refresh_interval"`  // 0 = off
}

type LockConfig struct {
	Backend   string        `yaml:"backend"`
	TTL       time.Duration `yaml:"ttl"`
	Wait      time.Duration `yaml:"wait"`
	Poll      time.Duration `yaml:"poll"`
	KeyPrefix string        `yaml:"key_prefix"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			AllowedOrigins: []string{"*"},
			MaxBodyBytes:   1 << 20,
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Knowledge: KnowledgeConfig{
			Backend:     BackendFilesystem,
			Dir:         "./knowledge",
			Extensions:  []string{".md", ".markdown", ".txt"},
			MaxFileSize: 1 << 20,
			SQLitePath:  "./data/knowledge.db",
		},
		Embedding: EmbeddingConfig{
			Provider:      string(domain.AIProviderOpenAI),
			Model:         domain.DefaultEmbeddingModel,
			QueryCacheTTL: 10 * time.Minute,
		},
		Chat: ChatConfig{
			Provider:    string(domain.AIProviderOpenAI),
			Model:       domain.DefaultChatModel,
			Temperature: domain.DefaultTemperature,
			MaxTokens:   domain.DefaultMaxTokens,
		},
		Retrieval: RetrievalConfig{
			ChunkSize: 800,
			TopK:      domain.DefaultTopK,
		},
		Lock: LockConfig{
			TTL:  2 * time.Minute,
			Wait: 30 * time.Second,
			Poll: 500 * time.Millisecond,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then .env, then environment variables. The result is
// validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// .env never overrides variables already set in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables
func (c *Config) applyEnv() {
	c.Server.Host = getEnv("HOST", c.Server.Host)
	c.Server.Port = getEnvInt("PORT", c.Server.Port)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.Knowledge.Backend = getEnv("KNOWLEDGE_BACKEND", c.Knowledge.Backend)
	c.Knowledge.Dir = getEnv("KNOWLEDGE_DIR", c.Knowledge.Dir)
	c.Knowledge.SQLitePath = getEnv("SQLITE_PATH", c.Knowledge.SQLitePath)

	// OPENAI_API_KEY and OPENAI_BASE_URL serve both services unless a
	// service-specific variable is set
	apiKey := os.Getenv("OPENAI_API_KEY")
	baseURL := os.Getenv("OPENAI_BASE_URL")

	c.Embedding.Provider = getEnv("EMBEDDING_PROVIDER", c.Embedding.Provider)
	c.Embedding.Model = getEnv("EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.APIKey = getEnv("EMBEDDING_API_KEY", firstNonEmpty(apiKey, c.Embedding.APIKey))
	c.Embedding.BaseURL = getEnv("EMBEDDING_BASE_URL", firstNonEmpty(baseURL, c.Embedding.BaseURL))
	c.Embedding.BatchSize = getEnvInt("EMBEDDING_BATCH_SIZE", c.Embedding.BatchSize)

	c.Chat.Provider = getEnv("CHAT_PROVIDER", c.Chat.Provider)
	c.Chat.Model = getEnv("OPENAI_MODEL", c.Chat.Model)
	c.Chat.APIKey = firstNonEmpty(apiKey, c.Chat.APIKey)
	c.Chat.BaseURL = firstNonEmpty(baseURL, c.Chat.BaseURL)

	c.Retrieval.ChunkSize = getEnvInt("CHUNK_SIZE", c.Retrieval.ChunkSize)
	c.Retrieval.TopK = getEnvInt("TOP_K", c.Retrieval.TopK)
	c.Retrieval.RefreshInterval = getEnvDuration("REFRESH_INTERVAL", c.Retrieval.RefreshInterval)

	c.Lock.Backend = getEnv("LOCK_BACKEND", c.Lock.Backend)
	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
}

// Validate rejects configurations the server cannot run with
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		invalid("server.port %d out of range", c.Server.Port)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		invalid("log.level: %v", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		invalid("log.format must be text or json, got %q", c.Log.Format)
	}

	switch c.Knowledge.Backend {
	case BackendFilesystem:
		if c.Knowledge.Dir == "" {
			invalid("knowledge.dir is required for the filesystem backend")
		}
	case BackendPostgres:
		if c.Database.URL == "" {
			invalid("database.url is required for the postgres backend")
		}
	case BackendSQLite:
		if c.Knowledge.SQLitePath == "" {
			invalid("knowledge.sqlite_path is required for the sqlite backend")
		}
	default:
		invalid("unknown knowledge.backend %q", c.Knowledge.Backend)
	}

	if p := domain.AIProvider(c.Embedding.Provider); p != "" && !p.IsValid() {
		invalid("embedding.provider: %v %q", domain.ErrInvalidProvider, p)
	}
	if p := domain.AIProvider(c.Chat.Provider); p != "" && !p.IsValid() {
		invalid("chat.provider: %v %q", domain.ErrInvalidProvider, p)
	}
	if c.Embedding.BatchSize < 0 {
		invalid("embedding.batch_size must not be negative")
	}
	if c.Embedding.QueryCacheSize < 0 {
		invalid("embedding.query_cache_size must not be negative")
	}

	if c.Retrieval.ChunkSize <= 0 {
		invalid("retrieval.chunk_size must be positive, got %d", c.Retrieval.ChunkSize)
	}
	if c.Retrieval.TopK < 0 {
		invalid("retrieval.top_k must not be negative")
	}
	if c.Retrieval.MaxContextChars < 0 {
		invalid("retrieval.max_context_chars must not be negative")
	}
	if c.Retrieval.RefreshInterval < 0 {
		invalid("retrieval.refresh_interval must not be negative")
	}

	switch c.Lock.Backend {
	case LockNone:
	case LockRedis:
		if c.Redis.URL == "" {
			invalid("redis.url is required for the redis lock")
		}
	case LockPostgres:
		if c.Database.URL == "" {
			invalid("database.url is required for the postgres lock")
		}
	default:
		invalid("unknown lock.backend %q", c.Lock.Backend)
	}

	return errors.Join(errs...)
}

// AISettings converts the embedding and chat sections to domain settings
func (c *Config) AISettings() *domain.AISettings {
	return &domain.AISettings{
		Embedding: domain.EmbeddingSettings{
			Provider:  domain.AIProvider(c.Embedding.Provider),
			Model:     c.Embedding.Model,
			APIKey:    c.Embedding.APIKey,
			BaseURL:   c.Embedding.BaseURL,
			BatchSize: c.Embedding.BatchSize,
		},
		LLM: domain.LLMSettings{
			Provider:    domain.AIProvider(c.Chat.Provider),
			Model:       c.Chat.Model,
			APIKey:      c.Chat.APIKey,
			BaseURL:     c.Chat.BaseURL,
			Temperature: c.Chat.Temperature,
			MaxTokens:   c.Chat.MaxTokens,
		},
		UpdatedAt: time.Now(),
	}
}

// NewLogger builds a slog logger writing to w in the configured format
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return level, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
