package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	envPrefix = "GATHERD_"
)

// Load reads configuration from a YAML file, then overrides with GATHERD_*
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (GATHERD_SERVER_HTTP_PORT, GATHERD_CACHE_TTL, ...)
//  2. YAML config file (~/.config/gatherd/config.yaml by default)
//  3. Hardcoded defaults
//
// The config file must live under ~/.config/gatherd/ or /etc/gatherd/, be no
// larger than 1MB, and carry 0600 or 0400 permissions. A missing file is not
// an error; defaults plus environment overrides apply.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "gatherd", "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		// Validate permissions and size through the open descriptor so
		// the checked file is the file that gets read.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("opening config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	// Unmarshal over Default() so keys absent from the file and environment
	// keep the default enablement instead of zeroing it.
	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyDefaults(cfg)
	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envTransform maps GATHERD_* environment variables onto config keys.
//
//	GATHERD_SERVER_HTTP_PORT            -> server.http_port
//	GATHERD_GATHER_GLOBAL_TIMEOUT       -> gather.global_timeout
//	GATHERD_COLLECTORS_GITHUB_MAX_ISSUES -> collectors.github.max_issues
//
// The first underscore separates the section; under collectors the second
// underscore separates the collector name. Remaining underscores belong to
// the field name.
func envTransform(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))

	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	section, rest := parts[0], parts[1]

	if section == "collectors" {
		sub := strings.SplitN(rest, "_", 2)
		if len(sub) == 2 {
			return section + "." + sub[0] + "." + sub[1]
		}
	}
	return section + "." + rest
}

// EnsureConfigDir creates the gatherd config directory with 0700 permissions
// if it does not exist.
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}
	configDir := filepath.Join(home, ".config", "gatherd")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory %s: %w", configDir, err)
	}
	return nil
}

// validateConfigPath checks the path is inside an allowed directory. Runs
// even when the file does not exist.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	// Follow symlinks so a link cannot escape the allowed directories.
	// Nonexistent paths keep the absolute form.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "gatherd"),
		"/etc/gatherd",
	}
	for _, dir := range allowedDirs {
		if strings.HasPrefix(resolvedPath, dir+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/gatherd/ or /etc/gatherd/")
}

// validateConfigFileProperties checks permissions and size on the FileInfo
// of an already-opened descriptor.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// expandPaths rewrites leading ~/ segments in user-supplied paths.
func expandPaths(cfg *Config) {
	cfg.Collectors.History.Path = expandHome(cfg.Collectors.History.Path)
	cfg.Redact.AllowlistPath = expandHome(cfg.Redact.AllowlistPath)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
