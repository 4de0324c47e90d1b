package models

import (
	"os"
	"time"

	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Configuration
//
// All deployment configuration comes from PLANROOM_* environment variables
// so the binary carries no environment-specific state. Sensible defaults
// cover local development; Validate catches misconfiguration at startup
// rather than mid-request.
// ============================================================================

// Config holds the runtime configuration for the hub and the embedded
// sync layer.
type Config struct {
	Address  string        // Listen address for the hub (PLANROOM_ADDRESS)
	DBPath   string        // DuckDB database path (PLANROOM_DB_PATH)
	HubURL   string        // Base URL clients sync against (PLANROOM_HUB_URL)
	Debounce time.Duration // Field debounce window (PLANROOM_SYNC_DEBOUNCE)

	// Selah AI proxy upstream. The endpoint is any OpenAI-compatible
	// chat-completions API; with no API key the proxy serves fallback
	// replies instead of erroring.
	OpenAIAPIKey  string // PLANROOM_OPENAI_API_KEY
	OpenAIBaseURL string // PLANROOM_OPENAI_BASE_URL
	OpenAIModel   string // PLANROOM_OPENAI_MODEL
}

// Defaults used when the corresponding variable is unset.
const (
	DefaultAddress       = ":8000"
	DefaultDBPath        = "./data/planroom.ddb"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o"
)

// LoadConfig reads configuration from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Address:       envOr("PLANROOM_ADDRESS", DefaultAddress),
		DBPath:        envOr("PLANROOM_DB_PATH", DefaultDBPath),
		HubURL:        os.Getenv("PLANROOM_HUB_URL"),
		Debounce:      DefaultDebounce,
		OpenAIAPIKey:  os.Getenv("PLANROOM_OPENAI_API_KEY"),
		OpenAIBaseURL: envOr("PLANROOM_OPENAI_BASE_URL", DefaultOpenAIBaseURL),
		OpenAIModel:   envOr("PLANROOM_OPENAI_MODEL", DefaultOpenAIModel),
	}

	if debounceStr := os.Getenv("PLANROOM_SYNC_DEBOUNCE"); debounceStr != "" {
		debounce, err := time.ParseDuration(debounceStr)
		if err != nil {
			return nil, serr.Wrap(err, "invalid PLANROOM_SYNC_DEBOUNCE value, expected duration like '400ms'")
		}
		cfg.Debounce = debounce
	}

	return cfg, nil
}

// Validate checks the loaded configuration for values that would fail at
// runtime.
func (c *Config) Validate() error {
	if c.Address == "" {
		return serr.New("PLANROOM_ADDRESS must not be empty")
	}
	if c.DBPath == "" {
		return serr.New("PLANROOM_DB_PATH must not be empty")
	}
	if c.Debounce <= 0 {
		return serr.New("PLANROOM_SYNC_DEBOUNCE must be positive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
