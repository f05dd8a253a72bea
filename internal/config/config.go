package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultProvider      = "gemini"
	DefaultModel         = "gemini-2.0-flash-exp"
	DefaultServerAddress = ":8090"
	DefaultUploadDir     = "./data/uploads"
	DefaultMaxUploadMB   = 200
	DefaultPollInterval  = time.Second
	DefaultTempFileTTL   = 30 * time.Minute
	DefaultCleanInterval = 5 * time.Minute
	DefaultSearchResults = 3
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Analysis    AnalysisConfig            `json:"analysis"`
	Logging     LoggingConfig             `json:"logging"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type BasicConfig struct {
	ServerAddress         string `json:"server_address"`
	UploadDir             string `json:"upload_dir"`
	MaxUploadMB           int64  `json:"max_upload_mb"`
	TempFileTTL           int    `json:"temp_file_ttl"`       // minutes
	TempCleanInterval     int    `json:"temp_clean_interval"` // minutes
	MaxConcurrentAnalyses int    `json:"max_concurrent_analyses"`
}

// AnalysisConfig controls the remote polling loop. Zero ceilings mean unbounded.
type AnalysisConfig struct {
	Provider        string       `json:"provider"`
	PollIntervalMS  int          `json:"poll_interval_ms"`
	MaxPollAttempts int          `json:"max_poll_attempts"`
	MaxPollSeconds  int          `json:"max_poll_seconds"`
	WebSearch       *bool        `json:"web_search"`
	Search          SearchConfig `json:"search"`
}

// SearchConfig feeds the web_search tool. Google Custom Search is used only
// when both the key and the engine id are known; DuckDuckGo needs neither.
type SearchConfig struct {
	GoogleAPIKey   string `json:"google_api_key"`
	GoogleEngineID string `json:"google_engine_id"`
	MaxResults     int    `json:"max_results"`
}

type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing default config file is not an error; defaults and environment
// overrides are applied either way.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	var cfg Config
	file, err := os.Open(absPath)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		if cfg.BasicConfig.UploadDir != "" && !filepath.IsAbs(cfg.BasicConfig.UploadDir) {
			cfg.BasicConfig.UploadDir = filepath.Join(filepath.Dir(absPath), cfg.BasicConfig.UploadDir)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = DefaultServerAddress
	}
	if c.BasicConfig.UploadDir == "" {
		c.BasicConfig.UploadDir = DefaultUploadDir
	}
	if c.BasicConfig.MaxUploadMB <= 0 {
		c.BasicConfig.MaxUploadMB = DefaultMaxUploadMB
	}
	if c.BasicConfig.MaxConcurrentAnalyses <= 0 {
		c.BasicConfig.MaxConcurrentAnalyses = 1
	}
	if c.Analysis.Provider == "" {
		c.Analysis.Provider = DefaultProvider
	}
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	prov := c.Providers[c.Analysis.Provider]
	if prov.Model == "" {
		prov.Model = DefaultModel
	}
	c.Providers[c.Analysis.Provider] = prov
	if c.Analysis.Search.MaxResults <= 0 {
		c.Analysis.Search.MaxResults = DefaultSearchResults
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// applyEnv lets the environment (and a loaded .env file) override secrets, the
// search credentials and the listen address.
func (c *Config) applyEnv() {
	prov := c.Providers[c.Analysis.Provider]
	for _, key := range []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			prov.APIKey = v
			break
		}
	}
	c.Providers[c.Analysis.Provider] = prov

	search := &c.Analysis.Search
	if v := strings.TrimSpace(os.Getenv("GOOGLE_SEARCH_API_KEY")); v != "" {
		search.GoogleAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_SEARCH_ENGINE_ID")); v != "" {
		search.GoogleEngineID = v
	}
	// The Gemini key usually works for Custom Search too.
	if search.GoogleAPIKey == "" {
		search.GoogleAPIKey = prov.APIKey
	}

	if addr := strings.TrimSpace(os.Getenv("VIDGENIUS_ADDR")); addr != "" {
		c.BasicConfig.ServerAddress = addr
	}
}

func (c *Config) validate() error {
	if c.Analysis.PollIntervalMS < 0 {
		return fmt.Errorf("poll_interval_ms must not be negative")
	}
	if c.Analysis.MaxPollAttempts < 0 || c.Analysis.MaxPollSeconds < 0 {
		return fmt.Errorf("poll ceilings must not be negative")
	}
	return nil
}

// Provider returns the configuration of the provider used for analysis.
func (c *Config) Provider() ProviderConfig {
	return c.Providers[c.Analysis.Provider]
}

func (c *Config) MaxUploadBytes() int64 {
	return c.BasicConfig.MaxUploadMB << 20
}

func (c *Config) TempFileTTL() time.Duration {
	if c.BasicConfig.TempFileTTL <= 0 {
		return DefaultTempFileTTL
	}
	return time.Duration(c.BasicConfig.TempFileTTL) * time.Minute
}

func (c *Config) TempCleanInterval() time.Duration {
	if c.BasicConfig.TempCleanInterval <= 0 {
		return DefaultCleanInterval
	}
	return time.Duration(c.BasicConfig.TempCleanInterval) * time.Minute
}

func (c *Config) PollInterval() time.Duration {
	if c.Analysis.PollIntervalMS <= 0 {
		return DefaultPollInterval
	}
	return time.Duration(c.Analysis.PollIntervalMS) * time.Millisecond
}

func (c *Config) MaxPollDuration() time.Duration {
	return time.Duration(c.Analysis.MaxPollSeconds) * time.Second
}

// WebSearchEnabled defaults to true when unset.
func (c *Config) WebSearchEnabled() bool {
	return c.Analysis.WebSearch == nil || *c.Analysis.WebSearch
}
