package collector

import (
	"context"

	"github.com/fyrsmithlabs/gatherd/internal/query"
	"github.com/fyrsmithlabs/gatherd/internal/repostate"
)

// GitCollector reports the working tree state of the query's workspace:
// branch, revision, origin, dirty counts, and recent commit subjects.
type GitCollector struct {
	repo *repostate.Service
}

// NewGitCollector wraps a repository snapshot service.
func NewGitCollector(repo *repostate.Service) *GitCollector {
	return &GitCollector{repo: repo}
}

// ID implements Collector.
func (c *GitCollector) ID() string { return "git" }

// Collect snapshots the workspace repository. A directory outside any
// repository yields empty text, not an error.
func (c *GitCollector) Collect(ctx context.Context, q query.Query) (string, error) {
	state, err := c.repo.Snapshot(ctx, q.WorkingDir)
	if err != nil {
		return "", err
	}
	return state.Summary(), nil
}
