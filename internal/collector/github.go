package collector

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/fyrsmithlabs/gatherd/internal/query"
	"github.com/fyrsmithlabs/gatherd/internal/repostate"
)

const defaultMaxIssues = 10

// IssuesConfig configures the GitHub issues collector.
type IssuesConfig struct {
	// Token authenticates against the GitHub API.
	Token string

	// BaseURL overrides the API endpoint, for GitHub Enterprise or tests.
	BaseURL string

	// MaxIssues caps the issues reported. Defaults to 10.
	MaxIssues int
}

// IssuesCollector lists open issues for the workspace's origin repository.
type IssuesCollector struct {
	cfg    IssuesConfig
	client *github.Client
	repo   *repostate.Service
}

// NewIssuesCollector builds an authenticated GitHub client. The token is
// mandatory; unauthenticated requests hit prohibitive rate limits.
func NewIssuesCollector(ctx context.Context, cfg IssuesConfig, repo *repostate.Service) (*IssuesCollector, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("github issues collector requires a token")
	}
	if cfg.MaxIssues <= 0 {
		cfg.MaxIssues = defaultMaxIssues
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))

	if cfg.BaseURL != "" {
		// go-github rejects base URLs without a trailing slash.
		if !strings.HasSuffix(cfg.BaseURL, "/") {
			cfg.BaseURL += "/"
		}
		base, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("github base URL: %w", err)
		}
		client.BaseURL = base
	}

	return &IssuesCollector{cfg: cfg, client: client, repo: repo}, nil
}

// ID implements Collector.
func (c *IssuesCollector) ID() string { return "github-issues" }

// Collect resolves the workspace origin to owner/repo and lists open
// issues, most recently updated first. Workspaces without a GitHub origin
// yield empty text.
func (c *IssuesCollector) Collect(ctx context.Context, q query.Query) (string, error) {
	state, err := c.repo.Snapshot(ctx, q.WorkingDir)
	if err != nil {
		return "", err
	}
	owner, repo, ok := state.OwnerRepo()
	if !ok {
		return "", nil
	}

	opts := &github.IssueListByRepoOptions{
		State:       "open",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: c.cfg.MaxIssues},
	}
	issues, _, err := c.client.Issues.ListByRepo(ctx, owner, repo, opts)
	if err != nil {
		return "", fmt.Errorf("listing issues for %s/%s: %w", owner, repo, err)
	}

	var b strings.Builder
	count := 0
	for _, issue := range issues {
		// The issues API interleaves pull requests.
		if issue.IsPullRequest() {
			continue
		}
		if count >= c.cfg.MaxIssues {
			break
		}
		fmt.Fprintf(&b, "- #%d %s", issue.GetNumber(), issue.GetTitle())
		if labels := issueLabels(issue); labels != "" {
			fmt.Fprintf(&b, " [%s]", labels)
		}
		b.WriteString("\n")
		count++
	}
	if count == 0 {
		return "", nil
	}
	return fmt.Sprintf("open issues in %s/%s:\n%s", owner, repo, strings.TrimRight(b.String(), "\n")), nil
}

func issueLabels(issue *github.Issue) string {
	if len(issue.Labels) == 0 {
		return ""
	}
	names := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		names = append(names, l.GetName())
	}
	return strings.Join(names, ", ")
}
