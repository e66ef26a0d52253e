package collector_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/gatherd/internal/collector"
	"github.com/fyrsmithlabs/gatherd/internal/history"
	"github.com/fyrsmithlabs/gatherd/internal/query"
)

type fakeSearcher struct {
	matches []history.Match
	err     error
	gotText string
	gotK    int
}

func (f *fakeSearcher) Similar(_ context.Context, text string, k int) ([]history.Match, error) {
	f.gotText = text
	f.gotK = k
	return f.matches, f.err
}

func TestHistoryCollector_Collect(t *testing.T) {
	store := &fakeSearcher{matches: []history.Match{
		{ID: "req-1", Content: "resolved a flaky cache test by pinning the clock", Score: 0.91},
		{ID: "req-2", Content: "migrated eviction to oldest-first", Score: 0.74},
	}}
	c := collector.NewHistoryCollector(store, 3)
	assert.Equal(t, "history", c.ID())

	text, err := c.Collect(context.Background(), query.New("flaky cache test", "/w"))
	require.NoError(t, err)

	assert.Equal(t, "flaky cache test", store.gotText, "raw text drives the similarity search")
	assert.Equal(t, 3, store.gotK)
	assert.Contains(t, text, "similar prior sessions:")
	assert.Contains(t, text, "[0.91] resolved a flaky cache test")
	assert.Contains(t, text, "[0.74] migrated eviction")
}

func TestHistoryCollector_TruncatesLongContent(t *testing.T) {
	long := strings.Repeat("word ", 200)
	store := &fakeSearcher{matches: []history.Match{{ID: "req-1", Content: long, Score: 0.5}}}
	c := collector.NewHistoryCollector(store, 1)

	text, err := c.Collect(context.Background(), query.New("q", "/w"))
	require.NoError(t, err)
	assert.Contains(t, text, "...")
	assert.Less(t, len(text), len(long))
}

func TestHistoryCollector_EmptyStore(t *testing.T) {
	c := collector.NewHistoryCollector(&fakeSearcher{}, 3)

	text, err := c.Collect(context.Background(), query.New("q", "/w"))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestHistoryCollector_SearchError(t *testing.T) {
	store := &fakeSearcher{err: errors.New("store corrupted")}
	c := collector.NewHistoryCollector(store, 3)

	_, err := c.Collect(context.Background(), query.New("q", "/w"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session history")
}

func TestHistoryCollector_DefaultK(t *testing.T) {
	store := &fakeSearcher{}
	c := collector.NewHistoryCollector(store, 0)

	_, err := c.Collect(context.Background(), query.New("q", "/w"))
	require.NoError(t, err)
	assert.Equal(t, 3, store.gotK)
}
