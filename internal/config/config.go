// Package config loads promptpad settings from an optional .env file and the
// environment. Command-line flags are layered on top by the binary.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"promptpad/internal/host"
)

// Prefix is prepended to every environment variable name.
const Prefix = "PROMPTPAD"

const (
	BackendOllama = "ollama"
	BackendArk    = "ark"
	BackendMock   = "mock"
	BackendNone   = "none"
)

// Config holds all application configuration.
type Config struct {
	Backend string `envconfig:"BACKEND" default:"ollama"`

	OllamaURL   string `envconfig:"OLLAMA_URL" default:"http://127.0.0.1:11434"`
	OllamaModel string `envconfig:"OLLAMA_MODEL" default:"llama3.2:3b"`

	ArkAPIKey    string `envconfig:"ARK_API_KEY"`
	ArkAccessKey string `envconfig:"ARK_ACCESS_KEY"`
	ArkSecretKey string `envconfig:"ARK_SECRET_KEY"`
	ArkModel     string `envconfig:"ARK_MODEL"`
	ArkBaseURL   string `envconfig:"ARK_BASE_URL" default:"https://ark.cn-beijing.volces.com/api/v3"`
	ArkRegion    string `envconfig:"ARK_REGION" default:"cn-beijing"`

	MockTier  string        `envconfig:"MOCK_TIER" default:"readily"`
	MockDelay time.Duration `envconfig:"MOCK_DELAY" default:"800ms"`

	SystemPrompt string `envconfig:"SYSTEM_PROMPT" default:"You are a helpful AI assistant integrated into a terminal application."`
	EagerSession bool   `envconfig:"EAGER_SESSION" default:"false"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE"`
	LogDev   bool   `envconfig:"LOG_DEV" default:"false"`

	MetricsAddr string `envconfig:"METRICS_ADDR"`
	AltScreen   bool   `envconfig:"ALT_SCREEN" default:"true"`
}

// Load reads envFile (".env" when empty) if it exists, then decodes the
// environment. A missing env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize lowercases enumerations and rejects unknown values.
func (c *Config) Normalize() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case BackendOllama, BackendArk, BackendMock, BackendNone:
	default:
		return fmt.Errorf("unknown backend %q (want ollama|ark|mock|none)", c.Backend)
	}
	tier, err := host.ParseTier(c.MockTier)
	if err != nil {
		return fmt.Errorf("mock tier: %w", err)
	}
	c.MockTier = string(tier)
	if c.MockDelay < 0 {
		c.MockDelay = 0
	}
	c.SystemPrompt = strings.TrimSpace(c.SystemPrompt)
	return nil
}
