// Package redact keeps credentials out of everything this service emits.
// A fast rule-based redactor covers failure reasons and outbound prompts;
// a gitleaks-backed deep scanner covers assembled payloads before they are
// cached or returned.
package redact

import (
	"fmt"
	"regexp"
	"sort"
)

// Redactor rewrites content so that no raw credential survives in it.
type Redactor interface {
	Redact(content string) string
}

// Rule is one detection pattern. Keywords, when present, gate the pattern:
// the rule only runs against content containing at least one keyword.
type Rule struct {
	ID       string
	Pattern  string
	Keywords []string
}

// Finding locates one rule match inside scanned content.
type Finding struct {
	RuleID string
	Start  int
	End    int
}

type compiledRule struct {
	id       string
	pattern  *regexp.Regexp
	keywords []*regexp.Regexp
}

// RuleRedactor applies an ordered rule list, merging overlapping matches
// into a single [REDACTED:rule-id] marker.
type RuleRedactor struct {
	rules []compiledRule
	allow []*regexp.Regexp
}

// NewRuleRedactor compiles rules and allow patterns. Matches covered by an
// allow pattern are left untouched.
func NewRuleRedactor(rules []Rule, allowPatterns []string) (*RuleRedactor, error) {
	r := &RuleRedactor{rules: make([]compiledRule, 0, len(rules))}
	for _, rule := range rules {
		if rule.ID == "" || rule.Pattern == "" {
			return nil, fmt.Errorf("redact rule requires id and pattern")
		}
		pattern, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("redact rule %s: %w", rule.ID, err)
		}
		compiled := compiledRule{id: rule.ID, pattern: pattern}
		for _, kw := range rule.Keywords {
			compiled.keywords = append(compiled.keywords, regexp.MustCompile("(?i)"+regexp.QuoteMeta(kw)))
		}
		r.rules = append(r.rules, compiled)
	}
	for i, pattern := range allowPatterns {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("redact allow pattern %d: %w", i, err)
		}
		r.allow = append(r.allow, compiled)
	}
	return r, nil
}

// Default returns a redactor loaded with the built-in rules.
func Default() *RuleRedactor {
	r, err := NewRuleRedactor(DefaultRules(), nil)
	if err != nil {
		panic(err)
	}
	return r
}

// Scan reports every non-allowed rule match in content.
func (r *RuleRedactor) Scan(content string) []Finding {
	var findings []Finding
	for _, rule := range r.rules {
		if !r.keywordsPresent(rule, content) {
			continue
		}
		for _, m := range rule.pattern.FindAllStringIndex(content, -1) {
			if r.isAllowed(content[m[0]:m[1]]) {
				continue
			}
			findings = append(findings, Finding{RuleID: rule.id, Start: m[0], End: m[1]})
		}
	}
	sort.Slice(findings, func(i, j int) bool { return findings[i].Start < findings[j].Start })
	return findings
}

// Redact replaces every match with [REDACTED:rule-id]. Overlapping matches
// collapse into one marker carrying the earliest rule's ID.
func (r *RuleRedactor) Redact(content string) string {
	findings := r.Scan(content)
	if len(findings) == 0 {
		return content
	}

	merged := mergeFindings(findings)

	// Replace back to front so indices stay valid.
	out := content
	for i := len(merged) - 1; i >= 0; i-- {
		f := merged[i]
		out = out[:f.Start] + "[REDACTED:" + f.RuleID + "]" + out[f.End:]
	}
	return out
}

func (r *RuleRedactor) keywordsPresent(rule compiledRule, content string) bool {
	if len(rule.keywords) == 0 {
		return true
	}
	for _, kw := range rule.keywords {
		if kw.MatchString(content) {
			return true
		}
	}
	return false
}

func (r *RuleRedactor) isAllowed(match string) bool {
	for _, pattern := range r.allow {
		if pattern.MatchString(match) {
			return true
		}
	}
	return false
}

// mergeFindings collapses overlapping or adjacent findings, keeping the
// first rule ID of each merged span. Input must be sorted by Start.
func mergeFindings(findings []Finding) []Finding {
	merged := []Finding{findings[0]}
	for _, f := range findings[1:] {
		last := &merged[len(merged)-1]
		if f.Start <= last.End {
			if f.End > last.End {
				last.End = f.End
			}
			continue
		}
		merged = append(merged, f)
	}
	return merged
}

// Noop passes content through unchanged, for deployments that opt out.
type Noop struct{}

// Redact implements Redactor.
func (Noop) Redact(content string) string { return content }

var (
	_ Redactor = (*RuleRedactor)(nil)
	_ Redactor = Noop{}
)
