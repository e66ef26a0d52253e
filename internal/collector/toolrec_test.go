package collector_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/gatherd/internal/collector"
	"github.com/fyrsmithlabs/gatherd/internal/query"
)

func TestToolRecommender_MatchesKeywords(t *testing.T) {
	c := collector.NewToolRecommender()
	assert.Equal(t, "toolrec", c.ID())

	text, err := c.Collect(context.Background(), query.New("why is this test failing?", "/w"))
	require.NoError(t, err)
	assert.Contains(t, text, "suggested tooling:")
	assert.Contains(t, text, "go test ./...")
}

func TestToolRecommender_OneLinePerRecommendation(t *testing.T) {
	c := collector.NewToolRecommender()

	// "test" and "failing" both trigger the same catalog entry.
	text, err := c.Collect(context.Background(), query.New("the test keeps failing", "/w"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(text, "go test ./..."))
}

func TestToolRecommender_MultipleMatches(t *testing.T) {
	c := collector.NewToolRecommender()

	text, err := c.Collect(context.Background(), query.New("flaky test with a data race", "/w"))
	require.NoError(t, err)
	assert.Contains(t, text, "go test ./...")
	assert.Contains(t, text, "-race")
}

func TestToolRecommender_PunctuationStripped(t *testing.T) {
	c := collector.NewToolRecommender()

	text, err := c.Collect(context.Background(), query.New("investigate the deadlock, please", "/w"))
	require.NoError(t, err)
	assert.Contains(t, text, "race detector")
}

func TestToolRecommender_NoMatches(t *testing.T) {
	c := collector.NewToolRecommender()

	text, err := c.Collect(context.Background(), query.New("summarize the roadmap", "/w"))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestToolRecommender_EmptyQuery(t *testing.T) {
	c := collector.NewToolRecommender()

	text, err := c.Collect(context.Background(), query.New("   ", "/w"))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestToolRecommender_Deterministic(t *testing.T) {
	c := collector.NewToolRecommender()
	q := query.New("slow benchmark and lint warnings", "/w")

	first, err := c.Collect(context.Background(), q)
	require.NoError(t, err)
	second, err := c.Collect(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
