// Package config provides configuration loading for gatherd.
//
// Configuration is read from a YAML file and overridden by GATHERD_*
// environment variables, with hardcoded defaults below both.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the complete gatherd configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Cache      CacheConfig      `koanf:"cache"`
	Gather     GatherConfig     `koanf:"gather"`
	Collectors CollectorsConfig `koanf:"collectors"`
	Finalizer  FinalizerConfig  `koanf:"finalizer"`
	Redact     RedactConfig     `koanf:"redact"`
	Watch      WatchConfig      `koanf:"watch"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export configuration.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
	Endpoint    string `koanf:"endpoint"`
	Protocol    string `koanf:"protocol"`
	Insecure    bool   `koanf:"insecure"`
	// TLSSkipVerify disables certificate verification for internal CAs.
	TLSSkipVerify bool    `koanf:"tls_skip_verify"`
	SampleRate    float64 `koanf:"sample_rate"`
}

// CacheConfig holds result cache configuration.
type CacheConfig struct {
	TTL        Duration `koanf:"ttl"`
	MaxEntries int      `koanf:"max_entries"`
}

// GatherConfig bounds a gathering run.
type GatherConfig struct {
	GlobalTimeout Duration `koanf:"global_timeout"`
	MaxConcurrent int      `koanf:"max_concurrent"`
	BudgetUnits   int      `koanf:"budget_units"`
}

// CollectorsConfig holds per-collector enablement and settings.
type CollectorsConfig struct {
	Git         GitConfig         `koanf:"git"`
	GitHub      GitHubConfig      `koanf:"github"`
	History     HistoryConfig     `koanf:"history"`
	Diagnostics DiagnosticsConfig `koanf:"diagnostics"`
	Web         WebConfig         `koanf:"web"`
	ToolRec     ToolRecConfig     `koanf:"toolrec"`
}

// GitConfig configures the repository state collector.
type GitConfig struct {
	Enabled    bool `koanf:"enabled"`
	Required   bool `koanf:"required"`
	MaxCommits int  `koanf:"max_commits"`
}

// GitHubConfig configures the open-issues collector.
type GitHubConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Required  bool   `koanf:"required"`
	Token     Secret `koanf:"token"`
	BaseURL   string `koanf:"base_url"`
	MaxIssues int    `koanf:"max_issues"`
}

// HistoryConfig configures the session history collector and recorder.
type HistoryConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Required bool   `koanf:"required"`
	Path     string `koanf:"path"`
	// Collection names the vector collection inside the store.
	Collection string `koanf:"collection"`
	Compress   bool   `koanf:"compress"`
	TopK       int    `koanf:"top_k"`
	// Record controls whether finished aggregates are written back.
	Record           bool   `koanf:"record"`
	EmbeddingBaseURL string `koanf:"embedding_base_url"`
	EmbeddingAPIKey  Secret `koanf:"embedding_api_key"`
	EmbeddingModel   string `koanf:"embedding_model"`
}

// DiagnosticsConfig configures the diagnostics feed collector.
type DiagnosticsConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Required   bool   `koanf:"required"`
	URL        string `koanf:"url"`
	Subject    string `koanf:"subject"`
	MaxEntries int    `koanf:"max_entries"`
}

// WebConfig configures the web search collector.
type WebConfig struct {
	Enabled       bool     `koanf:"enabled"`
	Required      bool     `koanf:"required"`
	Endpoint      string   `koanf:"endpoint"`
	APIKey        Secret   `koanf:"api_key"`
	MaxResults    int      `koanf:"max_results"`
	Timeout       Duration `koanf:"timeout"`
	RatePerSecond float64  `koanf:"rate_per_second"`
	Burst         int      `koanf:"burst"`
}

// ToolRecConfig configures the tooling recommendation collector.
type ToolRecConfig struct {
	Enabled  bool `koanf:"enabled"`
	Required bool `koanf:"required"`
}

// FinalizerConfig configures LLM summarization of the aggregate.
type FinalizerConfig struct {
	Enabled   bool     `koanf:"enabled"`
	APIKey    Secret   `koanf:"api_key"`
	BaseURL   string   `koanf:"base_url"`
	Model     string   `koanf:"model"`
	MaxTokens int      `koanf:"max_tokens"`
	Timeout   Duration `koanf:"timeout"`
}

// RedactConfig configures secret scrubbing.
type RedactConfig struct {
	// DeepScan runs the full gitleaks ruleset over final aggregates in
	// addition to the always-on reason redaction.
	DeepScan bool `koanf:"deep_scan"`
	// AllowlistPath points at a user-level allowlist TOML file. Workspace
	// allowlists are discovered per request.
	AllowlistPath string `koanf:"allowlist_path"`
}

// WatchConfig configures filesystem-driven cache invalidation.
type WatchConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Debounce Duration `koanf:"debounce"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8091
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "gatherd"
	}
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = Duration(5 * time.Minute)
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 128
	}

	if cfg.Gather.GlobalTimeout == 0 {
		cfg.Gather.GlobalTimeout = Duration(30 * time.Second)
	}
	if cfg.Gather.MaxConcurrent == 0 {
		cfg.Gather.MaxConcurrent = 8
	}
	if cfg.Gather.BudgetUnits == 0 {
		cfg.Gather.BudgetUnits = 2000
	}

	applyCollectorDefaults(&cfg.Collectors)

	if cfg.Finalizer.BaseURL == "" {
		cfg.Finalizer.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Finalizer.Model == "" {
		cfg.Finalizer.Model = "claude-3-5-sonnet-20241022"
	}
	if cfg.Finalizer.MaxTokens == 0 {
		cfg.Finalizer.MaxTokens = 2048
	}
	if cfg.Finalizer.Timeout == 0 {
		cfg.Finalizer.Timeout = Duration(60 * time.Second)
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = Duration(500 * time.Millisecond)
	}
}

func applyCollectorDefaults(c *CollectorsConfig) {
	if c.Git.MaxCommits == 0 {
		c.Git.MaxCommits = 5
	}
	if c.GitHub.MaxIssues == 0 {
		c.GitHub.MaxIssues = 10
	}
	if c.History.Collection == "" {
		c.History.Collection = "gatherd_history"
	}
	if c.History.TopK == 0 {
		c.History.TopK = 3
	}
	if c.History.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.History.Path = filepath.Join(home, ".config", "gatherd", "history")
		}
	}
	if c.Diagnostics.URL == "" {
		c.Diagnostics.URL = "nats://127.0.0.1:4222"
	}
	if c.Diagnostics.Subject == "" {
		c.Diagnostics.Subject = "diagnostics.recent"
	}
	if c.Diagnostics.MaxEntries == 0 {
		c.Diagnostics.MaxEntries = 20
	}
	if c.Web.MaxResults == 0 {
		c.Web.MaxResults = 5
	}
	if c.Web.Timeout == 0 {
		c.Web.Timeout = Duration(10 * time.Second)
	}
	if c.Web.RatePerSecond == 0 {
		c.Web.RatePerSecond = 2
	}
	if c.Web.Burst == 0 {
		c.Web.Burst = 4
	}
}

// Default returns the configuration gatherd runs with when no file and no
// environment overrides are present: the git and toolrec collectors enabled,
// git required, everything needing external credentials disabled.
func Default() *Config {
	cfg := &Config{}
	cfg.Collectors.Git.Enabled = true
	cfg.Collectors.Git.Required = true
	cfg.Collectors.ToolRec.Enabled = true
	cfg.Collectors.History.Record = true
	cfg.Redact.DeepScan = true
	cfg.Watch.Enabled = true
	applyDefaults(cfg)
	return cfg
}

// Validate checks the configuration for contradictions. It is called by
// Load; call it directly only on hand-built configs.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.ServiceName == "" {
			return errors.New("service name required when telemetry is enabled")
		}
		switch c.Telemetry.Protocol {
		case "grpc", "http/protobuf":
		default:
			return fmt.Errorf("invalid telemetry protocol: %q (grpc or http/protobuf)", c.Telemetry.Protocol)
		}
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry sample rate must be in [0,1], got %g", c.Telemetry.SampleRate)
	}

	if c.Cache.TTL.Duration() <= 0 {
		return errors.New("cache ttl must be positive")
	}
	if c.Cache.MaxEntries < 0 {
		return errors.New("cache max_entries cannot be negative")
	}

	if c.Gather.GlobalTimeout.Duration() <= 0 {
		return errors.New("gather global_timeout must be positive")
	}
	if c.Gather.MaxConcurrent < 1 {
		return errors.New("gather max_concurrent must be at least 1")
	}
	if c.Gather.BudgetUnits < 1 {
		return errors.New("gather budget_units must be at least 1")
	}

	if err := c.validateCollectors(); err != nil {
		return err
	}

	if c.Finalizer.Enabled && !c.Finalizer.APIKey.IsSet() {
		return errors.New("finalizer requires an api_key when enabled")
	}

	if c.Watch.Enabled && c.Watch.Debounce.Duration() <= 0 {
		return errors.New("watch debounce must be positive")
	}

	return nil
}

func (c *Config) validateCollectors() error {
	// A collector whose absence fails every request cannot be disabled.
	for id, cc := range map[string]struct{ enabled, required bool }{
		"git":         {c.Collectors.Git.Enabled, c.Collectors.Git.Required},
		"github":      {c.Collectors.GitHub.Enabled, c.Collectors.GitHub.Required},
		"history":     {c.Collectors.History.Enabled, c.Collectors.History.Required},
		"diagnostics": {c.Collectors.Diagnostics.Enabled, c.Collectors.Diagnostics.Required},
		"web":         {c.Collectors.Web.Enabled, c.Collectors.Web.Required},
		"toolrec":     {c.Collectors.ToolRec.Enabled, c.Collectors.ToolRec.Required},
	} {
		if cc.required && !cc.enabled {
			return fmt.Errorf("collector %s is required but disabled", id)
		}
	}

	if c.Collectors.GitHub.Enabled && !c.Collectors.GitHub.Token.IsSet() {
		return errors.New("github collector requires a token when enabled")
	}
	if c.Collectors.Web.Enabled && c.Collectors.Web.Endpoint == "" {
		return errors.New("web collector requires an endpoint when enabled")
	}
	if c.Collectors.Web.Enabled && !strings.HasPrefix(c.Collectors.Web.Endpoint, "http") {
		return fmt.Errorf("web collector endpoint must be an http(s) URL, got %q", c.Collectors.Web.Endpoint)
	}
	if c.Collectors.History.Enabled && c.Collectors.History.Path == "" {
		return errors.New("history collector requires a path when enabled")
	}
	if c.Collectors.History.Enabled && c.Collectors.History.EmbeddingBaseURL == "" {
		return errors.New("history collector requires embedding_base_url when enabled")
	}
	if c.Collectors.Diagnostics.Enabled && c.Collectors.Diagnostics.URL == "" {
		return errors.New("diagnostics collector requires a url when enabled")
	}
	return nil
}

// EnabledCollectors returns the enablement map consumed by the orchestrator.
func (c *Config) EnabledCollectors() map[string]bool {
	return map[string]bool{
		"git":           c.Collectors.Git.Enabled,
		"github-issues": c.Collectors.GitHub.Enabled,
		"history":       c.Collectors.History.Enabled,
		"diagnostics":   c.Collectors.Diagnostics.Enabled,
		"web":           c.Collectors.Web.Enabled,
		"toolrec":       c.Collectors.ToolRec.Enabled,
	}
}
