package redact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
)

// ErrInvalidAllowlist marks an allowlist file that exists but cannot be used.
var ErrInvalidAllowlist = errors.New("invalid allowlist")

// Allowlist suppresses deep-scan findings by path or content pattern.
type Allowlist struct {
	Paths   []string
	Regexes []string
}

// LoadAllowlists merges the workspace's .gitleaks.toml with a user-level
// allowlist file. Missing files are skipped; malformed files are errors.
func LoadAllowlists(workspaceDir, userPath string) (*Allowlist, error) {
	merged := &Allowlist{}

	if workspaceDir != "" {
		if err := mergeAllowlistFile(merged, filepath.Join(workspaceDir, ".gitleaks.toml")); err != nil {
			return nil, err
		}
	}
	if userPath != "" {
		if err := mergeAllowlistFile(merged, userPath); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

func mergeAllowlistFile(into *Allowlist, path string) error {
	loaded, err := loadAllowlistTOML(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	into.Paths = append(into.Paths, loaded.Paths...)
	into.Regexes = append(into.Regexes, loaded.Regexes...)
	return nil
}

func loadAllowlistTOML(path string) (*Allowlist, error) {
	var parsed struct {
		Allowlist struct {
			Paths   []string `toml:"paths"`
			Regexes []string `toml:"regexes"`
		} `toml:"allowlist"`
	}

	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if _, err := toml.DecodeFile(path, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAllowlist, path, err)
	}

	for _, pattern := range append(parsed.Allowlist.Paths, parsed.Allowlist.Regexes...) {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: pattern %q in %s: %v", ErrInvalidAllowlist, pattern, path, err)
		}
	}

	return &Allowlist{Paths: parsed.Allowlist.Paths, Regexes: parsed.Allowlist.Regexes}, nil
}
