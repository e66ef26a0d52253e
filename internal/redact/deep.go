package redact

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// DeepScanner runs the gitleaks default ruleset over assembled payloads.
// It is slower and far broader than the rule redactor, so it runs once per
// aggregate rather than on every string.
type DeepScanner struct {
	detector *detect.Detector
}

// NewDeepScanner builds a scanner with gitleaks defaults plus an optional
// allowlist.
func NewDeepScanner(allow *Allowlist) (*DeepScanner, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("building secret detector: %w", err)
	}
	if allow != nil {
		applyAllowlist(&detector.Config, allow)
	}
	return &DeepScanner{detector: detector}, nil
}

// Scrub replaces every detected secret with [REDACTED:rule-id] and reports
// how many were found.
func (s *DeepScanner) Scrub(content string) (string, int) {
	findings := s.detector.DetectString(content)
	if len(findings) == 0 {
		return content, 0
	}

	// Replace within lines, back to front, so columns stay valid.
	sorted := make([]findingPos, 0, len(findings))
	for _, f := range findings {
		sorted = append(sorted, findingPos{
			ruleID: f.RuleID,
			line:   f.StartLine,
			start:  f.StartColumn,
			end:    f.EndColumn,
			secret: f.Secret,
		})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].line != sorted[j].line {
			return sorted[i].line > sorted[j].line
		}
		return sorted[i].start > sorted[j].start
	})

	lines := strings.Split(content, "\n")
	for _, f := range sorted {
		idx := f.line - 1
		if idx < 0 || idx >= len(lines) {
			continue
		}
		marker := "[REDACTED:" + f.ruleID + "]"
		line := lines[idx]
		// Column bounds from the detector are occasionally off by the
		// surrounding match; fall back to substring replacement.
		if f.start >= 1 && f.end <= len(line) && strings.Contains(line[f.start-1:f.end], f.secret) {
			lines[idx] = line[:f.start-1] + strings.Replace(line[f.start-1:f.end], f.secret, marker, 1) + line[f.end:]
		} else if f.secret != "" {
			lines[idx] = strings.Replace(line, f.secret, marker, 1)
		}
	}
	return strings.Join(lines, "\n"), len(findings)
}

type findingPos struct {
	ruleID string
	line   int
	start  int
	end    int
	secret string
}

// applyAllowlist merges allow patterns into the gitleaks config.
func applyAllowlist(cfg *gitleaksConfig.Config, allow *Allowlist) {
	entry := &gitleaksConfig.Allowlist{Description: "gatherd allowlist"}
	for _, pattern := range allow.Paths {
		// Patterns were validated at load time.
		entry.Paths = append(entry.Paths, (*gitleaksRegexp.Regexp)(regexp.MustCompile(pattern)))
	}
	for _, pattern := range allow.Regexes {
		entry.Regexes = append(entry.Regexes, (*gitleaksRegexp.Regexp)(regexp.MustCompile(pattern)))
	}
	cfg.Allowlists = append(cfg.Allowlists, entry)
}
