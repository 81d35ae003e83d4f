// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type AdminConfig struct {
	APIKey     string        `yaml:"api_key"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"` // empty selects the in-memory stores
}

type RedisConfig struct {
	URL      string `yaml:"url"` // empty selects the in-process hub
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AIConfig struct {
	OpenAIKey       string `yaml:"openai_key"`
	GeminiKey       string `yaml:"gemini_key"`
	DefaultModel    string `yaml:"default_model"`
	EmbedProvider   string `yaml:"embed_provider"` // openai|gemini|local
	EmbedModel      string `yaml:"embed_model"`
	EmbedDimension  int    `yaml:"embed_dimension"`
	ConcurrentLimit int    `yaml:"concurrent_limit"` // max concurrent provider calls
}

type RetrievalConfig struct {
	MaxChars            int `yaml:"max_chars"`
	Overlap             int `yaml:"overlap"`
	TopK                int `yaml:"top_k"`
	MaxChunksPerSession int `yaml:"max_chunks_per_session"`
	PromptTokenBudget   int `yaml:"prompt_token_budget"`
}

type QueueConfig struct {
	Workers      int           `yaml:"workers"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
	BackoffBase  time.Duration `yaml:"backoff_base"`
	BackoffMax   time.Duration `yaml:"backoff_max"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
}

type StreamConfig struct {
	PollInterval      time.Duration `yaml:"poll_interval"`
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`
}

type AnalysisConfig struct {
	Dimensions []string `yaml:"dimensions"`
	Critical   []string `yaml:"critical"`
}

type NotifyConfig struct {
	TelegramToken string `yaml:"telegram_token"`
	ChatID        int64  `yaml:"chat_id"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AI        AIConfig        `yaml:"ai"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Queue     QueueConfig     `yaml:"queue"`
	Stream    StreamConfig    `yaml:"stream"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Notify    NotifyConfig    `yaml:"notify"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	// Minimal validation
	if cfg.HTTP.Port <= 0 {
		return nil, errors.New("http.port is required")
	}
	if cfg.Retrieval.Overlap >= cfg.Retrieval.MaxChars {
		return nil, errors.New("retrieval.overlap must be smaller than retrieval.max_chars")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
	if cfg.AI.EmbedModel == "" {
		cfg.AI.EmbedModel = "text-embedding-3-small"
	}
	if cfg.AI.EmbedDimension <= 0 {
		cfg.AI.EmbedDimension = 256
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 8
	}
	if cfg.Retrieval.MaxChars <= 0 {
		cfg.Retrieval.MaxChars = 1100
	}
	if cfg.Retrieval.Overlap <= 0 {
		cfg.Retrieval.Overlap = 180
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.MaxChunksPerSession <= 0 {
		cfg.Retrieval.MaxChunksPerSession = 2000
	}
	if cfg.Retrieval.PromptTokenBudget <= 0 {
		cfg.Retrieval.PromptTokenBudget = 6000
	}
	if cfg.Queue.Workers <= 0 {
		cfg.Queue.Workers = 4
	}
	if cfg.Queue.PollInterval <= 0 {
		cfg.Queue.PollInterval = 500 * time.Millisecond
	}
	if cfg.Queue.MaxAttempts <= 0 {
		cfg.Queue.MaxAttempts = 3
	}
	if cfg.Queue.BackoffBase <= 0 {
		cfg.Queue.BackoffBase = 2 * time.Second
	}
	if cfg.Queue.BackoffMax <= 0 {
		cfg.Queue.BackoffMax = time.Minute
	}
	if cfg.Queue.LockTTL <= 0 {
		cfg.Queue.LockTTL = 10 * time.Minute
	}
	if cfg.Stream.PollInterval <= 0 {
		cfg.Stream.PollInterval = 2500 * time.Millisecond
	}
	if cfg.Stream.KeepaliveInterval <= 0 {
		cfg.Stream.KeepaliveInterval = 12 * time.Second
	}
	if len(cfg.Analysis.Dimensions) == 0 {
		cfg.Analysis.Dimensions = []string{
			"market", "team", "traction", "product",
			"financials", "competition", "risks",
		}
	}
	if len(cfg.Analysis.Critical) == 0 {
		cfg.Analysis.Critical = []string{"market", "team", "traction"}
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
}
