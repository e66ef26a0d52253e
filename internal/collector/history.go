package collector

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/gatherd/internal/history"
	"github.com/fyrsmithlabs/gatherd/internal/query"
)

const (
	defaultHistoryMatches = 3
	historyExcerptChars   = 240
)

// Searcher retrieves prior aggregates by similarity.
type Searcher interface {
	Similar(ctx context.Context, text string, k int) ([]history.Match, error)
}

// HistoryCollector surfaces excerpts of similar prior session aggregates.
type HistoryCollector struct {
	store Searcher
	k     int
}

// NewHistoryCollector wraps a history searcher. k caps returned matches
// and defaults to 3.
func NewHistoryCollector(store Searcher, k int) *HistoryCollector {
	if k <= 0 {
		k = defaultHistoryMatches
	}
	return &HistoryCollector{store: store, k: k}
}

// ID implements Collector.
func (c *HistoryCollector) ID() string { return "history" }

// Collect searches prior aggregates with the raw query text. An empty
// store yields empty text.
func (c *HistoryCollector) Collect(ctx context.Context, q query.Query) (string, error) {
	matches, err := c.store.Similar(ctx, q.RawText, c.k)
	if err != nil {
		return "", fmt.Errorf("searching session history: %w", err)
	}
	if len(matches) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("similar prior sessions:\n")
	for _, m := range matches {
		fmt.Fprintf(&b, "- [%.2f] %s\n", m.Score, excerpt(m.Content))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// excerpt flattens content to one line and truncates it.
func excerpt(content string) string {
	flat := strings.Join(strings.Fields(content), " ")
	if len(flat) <= historyExcerptChars {
		return flat
	}
	return flat[:historyExcerptChars] + "..."
}
