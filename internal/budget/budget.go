// Package budget bounds the aggregate payload to a fixed size. Sizes are
// measured in units of roughly four characters, a cheap stand-in for token
// counts. When a payload exceeds its budget, lines carrying failure and
// change indicators survive truncation ahead of everything else.
package budget

import (
	"regexp"
	"strings"
)

// UnitChars is the character-per-unit divisor of the size heuristic.
const UnitChars = 4

// Marker terminates any compacted payload that lost content.
const Marker = "[...context truncated to fit budget...]"

// priorityPattern marks lines that must survive truncation: failure
// indicators and version-control change indicators.
var priorityPattern = regexp.MustCompile(
	`(?i)\b(error|errors|fail|failed|failing|failure|fatal|panic|warn|warning|timeout|timed out|modified|added|deleted|renamed|conflict|conflicts)\b`,
)

// Section is one collector's contribution, assembled in priority order.
type Section struct {
	Name string
	Text string
}

// Estimate returns the size of s in units, rounding up.
func Estimate(s string) int {
	return (len(s) + UnitChars - 1) / UnitChars
}

// Render joins sections verbatim, each under a "## name" header. Sections
// with empty text are skipped.
func Render(sections []Section) string {
	var parts []string
	for _, s := range sections {
		if s.Text == "" {
			continue
		}
		if s.Name != "" {
			parts = append(parts, "## "+s.Name+"\n"+s.Text)
		} else {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Compact renders sections and enforces the budget. Within budget the
// rendered text returns verbatim. Over budget, lines matching the priority
// pattern are kept first in their original relative order, then remaining
// lines fill what is left, and Marker is appended. The result never
// estimates above units except for Marker's own overhead at pathologically
// small budgets.
func Compact(sections []Section, units int) string {
	text := Render(sections)
	if units <= 0 || Estimate(text) <= units {
		return text
	}

	// Reserve room for the marker and its preceding newline.
	charBudget := units*UnitChars - len(Marker) - 1
	if charBudget < 0 {
		charBudget = 0
	}

	lines := strings.Split(text, "\n")
	var priority, remainder []string
	for _, ln := range lines {
		if priorityPattern.MatchString(ln) {
			priority = append(priority, ln)
		} else {
			remainder = append(remainder, ln)
		}
	}

	var b strings.Builder
	used := 0
	appendLine := func(ln string) bool {
		need := len(ln)
		if b.Len() > 0 {
			need++
		}
		if used+need > charBudget {
			return false
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(ln)
		used += need
		return true
	}

	allPriorityFit := true
	for _, ln := range priority {
		if !appendLine(ln) {
			allPriorityFit = false
			break
		}
	}
	// Remainder lines only fill budget left over after every priority
	// line fit; a truncated priority set never yields its space.
	if allPriorityFit {
		for _, ln := range remainder {
			if !appendLine(ln) {
				break
			}
		}
	}

	if b.Len() > 0 {
		b.WriteByte('\n')
	}
	b.WriteString(Marker)
	return b.String()
}

// Truncated reports whether text lost content during compaction.
func Truncated(text string) bool {
	return strings.HasSuffix(text, Marker)
}
