package collector

import (
	"context"
	"strings"

	"github.com/fyrsmithlabs/gatherd/internal/query"
)

// recommendation pairs trigger keywords with a suggested tool invocation.
type recommendation struct {
	keywords []string
	text     string
}

// catalog is scanned in order so output stays deterministic for a given
// query. Keywords match against the normalized query text.
var catalog = []recommendation{
	{
		keywords: []string{"test", "failing", "flaky"},
		text:     "run the test suite with `go test ./...` and re-run failures with -run and -count=1",
	},
	{
		keywords: []string{"race", "deadlock", "concurrent"},
		text:     "run with the race detector enabled: `go test -race ./...`",
	},
	{
		keywords: []string{"benchmark", "slow", "performance", "profile"},
		text:     "capture a profile with `go test -bench . -cpuprofile cpu.out` and inspect it with pprof",
	},
	{
		keywords: []string{"lint", "vet", "style"},
		text:     "run static analysis with `go vet ./...` and the repository linter config",
	},
	{
		keywords: []string{"dependency", "module", "upgrade", "vulnerability"},
		text:     "audit module versions with `go list -m -u all` and `govulncheck ./...`",
	},
	{
		keywords: []string{"merge", "rebase", "conflict"},
		text:     "inspect conflicting hunks with `git diff --diff-filter=U` before resolving",
	},
	{
		keywords: []string{"log", "trace", "debug"},
		text:     "raise the log level via configuration and correlate entries by request id",
	},
}

// ToolRecommender suggests developer tooling keyed on query terms. It is
// fully local and never fails.
type ToolRecommender struct{}

// NewToolRecommender returns the static catalog-backed recommender.
func NewToolRecommender() *ToolRecommender { return &ToolRecommender{} }

// ID implements Collector.
func (c *ToolRecommender) ID() string { return "toolrec" }

// Collect matches catalog keywords against the normalized query and emits
// one line per matched recommendation. No matches yields empty text.
func (c *ToolRecommender) Collect(_ context.Context, q query.Query) (string, error) {
	normalized := q.Normalized()
	if normalized == "" {
		return "", nil
	}

	words := make(map[string]struct{})
	for _, w := range strings.Fields(normalized) {
		words[strings.Trim(w, ".,:;!?")] = struct{}{}
	}

	var lines []string
	for _, rec := range catalog {
		for _, kw := range rec.keywords {
			if _, ok := words[kw]; ok {
				lines = append(lines, "- "+rec.text)
				break
			}
		}
	}
	if len(lines) == 0 {
		return "", nil
	}
	return "suggested tooling:\n" + strings.Join(lines, "\n"), nil
}
