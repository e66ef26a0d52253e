package config

import (
	"strings"
	"testing"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() must validate cleanly, got: %v", err)
	}

	if !cfg.Collectors.Git.Enabled || !cfg.Collectors.Git.Required {
		t.Error("git collector must be enabled and required by default")
	}
	if !cfg.Collectors.ToolRec.Enabled {
		t.Error("toolrec collector must be enabled by default")
	}
	if cfg.Collectors.GitHub.Enabled || cfg.Collectors.Web.Enabled {
		t.Error("credentialed collectors must be disabled by default")
	}
	if !cfg.Redact.DeepScan {
		t.Error("deep scan must be on by default")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "default is valid",
			mutate: func(*Config) {},
		},
		{
			name:    "port too large",
			mutate:  func(c *Config) { c.Server.Port = 99999 },
			wantErr: "invalid server port",
		},
		{
			name:    "port zero",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "invalid log format",
		},
		{
			name: "telemetry bad protocol",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Protocol = "thrift"
			},
			wantErr: "invalid telemetry protocol",
		},
		{
			name:    "sample rate out of range",
			mutate:  func(c *Config) { c.Telemetry.SampleRate = 1.5 },
			wantErr: "sample rate",
		},
		{
			name:    "zero cache ttl",
			mutate:  func(c *Config) { c.Cache.TTL = 0 },
			wantErr: "cache ttl",
		},
		{
			name:    "zero global timeout",
			mutate:  func(c *Config) { c.Gather.GlobalTimeout = 0 },
			wantErr: "global_timeout",
		},
		{
			name:    "zero max concurrent",
			mutate:  func(c *Config) { c.Gather.MaxConcurrent = 0 },
			wantErr: "max_concurrent",
		},
		{
			name: "required but disabled",
			mutate: func(c *Config) {
				c.Collectors.Web.Enabled = false
				c.Collectors.Web.Required = true
			},
			wantErr: "required but disabled",
		},
		{
			name: "github without token",
			mutate: func(c *Config) {
				c.Collectors.GitHub.Enabled = true
				c.Collectors.GitHub.Token = ""
			},
			wantErr: "github collector requires a token",
		},
		{
			name: "web without endpoint",
			mutate: func(c *Config) {
				c.Collectors.Web.Enabled = true
				c.Collectors.Web.Endpoint = ""
			},
			wantErr: "web collector requires an endpoint",
		},
		{
			name: "web endpoint not http",
			mutate: func(c *Config) {
				c.Collectors.Web.Enabled = true
				c.Collectors.Web.Endpoint = "ftp://search.internal"
			},
			wantErr: "http(s) URL",
		},
		{
			name: "history without embedding url",
			mutate: func(c *Config) {
				c.Collectors.History.Enabled = true
				c.Collectors.History.EmbeddingBaseURL = ""
			},
			wantErr: "embedding_base_url",
		},
		{
			name: "finalizer without key",
			mutate: func(c *Config) {
				c.Finalizer.Enabled = true
				c.Finalizer.APIKey = ""
			},
			wantErr: "finalizer requires an api_key",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()

			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestEnabledCollectors(t *testing.T) {
	cfg := Default()
	cfg.Collectors.Web.Enabled = true
	cfg.Collectors.Web.Endpoint = "https://search.internal"

	enabled := cfg.EnabledCollectors()

	if !enabled["git"] {
		t.Error("git must be enabled")
	}
	if !enabled["toolrec"] {
		t.Error("toolrec must be enabled")
	}
	if !enabled["web"] {
		t.Error("web must be enabled after opting in")
	}
	if enabled["github-issues"] || enabled["history"] || enabled["diagnostics"] {
		t.Error("collectors not opted into must stay disabled")
	}
	if len(enabled) != 6 {
		t.Errorf("enablement map has %d entries, want 6", len(enabled))
	}
}

func TestServerConfig_Addr(t *testing.T) {
	s := ServerConfig{Host: "0.0.0.0", Port: 8091}
	if got := s.Addr(); got != "0.0.0.0:8091" {
		t.Errorf("Addr() = %q, want 0.0.0.0:8091", got)
	}
}
