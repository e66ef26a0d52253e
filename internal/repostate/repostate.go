// Package repostate reads a cheap snapshot of a workspace's git state. The
// snapshot serves two purposes: its fingerprint keys the aggregate cache, and
// its summary is the repository collector's section text.
package repostate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
)

// State is a read-only snapshot of a workspace's repository.
type State struct {
	// Branch is the current branch short name; empty when detached or
	// outside a repository.
	Branch string

	// Revision is the full HEAD hash; empty outside a repository.
	Revision string

	// Origin is "owner/repo" parsed from the origin remote, when present.
	Origin string

	// Dirty counts worktree files that differ from HEAD (including
	// untracked).
	Dirty int

	// RecentSubjects holds the newest commit subjects, newest first.
	RecentSubjects []string
}

// Service reads repository snapshots.
type Service struct {
	logger     *zap.Logger
	maxCommits int
}

// NewService creates a snapshot reader. maxCommits bounds how many recent
// commit subjects a snapshot carries.
func NewService(logger *zap.Logger, maxCommits int) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxCommits <= 0 {
		maxCommits = 5
	}
	return &Service{logger: logger, maxCommits: maxCommits}
}

// Snapshot reads the current state of the repository containing dir. A dir
// outside any repository yields a zero State and no error; the pipeline
// treats such workspaces as fingerprint "none".
func (s *Service) Snapshot(ctx context.Context, dir string) (*State, error) {
	st := &State{}
	if dir == "" {
		return st, nil
	}

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		// Not a repository is a normal condition, not a failure.
		s.logger.Debug("no repository at workspace", zap.String("dir", dir))
		return st, nil
	}

	head, err := repo.Head()
	if err != nil {
		// Empty repository or detached state without commits.
		return st, nil
	}
	st.Revision = head.Hash().String()
	if head.Name().IsBranch() {
		st.Branch = head.Name().Short()
	}

	if remote, err := repo.Remote("origin"); err == nil {
		urls := remote.Config().URLs
		if len(urls) > 0 {
			st.Origin = parseOrigin(urls[0])
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if wt, err := repo.Worktree(); err == nil {
		if status, err := wt.Status(); err == nil {
			for _, fs := range status {
				if fs.Worktree != git.Unmodified || fs.Staging != git.Unmodified {
					st.Dirty++
				}
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err == nil {
		defer iter.Close()
		for i := 0; i < s.maxCommits; i++ {
			c, err := iter.Next()
			if err != nil {
				break
			}
			st.RecentSubjects = append(st.RecentSubjects, commitSubject(c))
		}
	}

	return st, nil
}

// Fingerprint returns the cheap external-state digest used in cache keys:
// "branch@revision", or "none" outside a repository. Uncommitted edits are
// deliberately not captured; cached aggregates may be stale for them until
// the TTL or a watcher purge.
func (st *State) Fingerprint() string {
	if st == nil || st.Revision == "" {
		return "none"
	}
	branch := st.Branch
	if branch == "" {
		branch = "detached"
	}
	return branch + "@" + st.Revision
}

// ShortRevision returns the abbreviated HEAD hash.
func (st *State) ShortRevision() string {
	if len(st.Revision) < 8 {
		return st.Revision
	}
	return st.Revision[:8]
}

// Summary renders the snapshot as the repository section text.
func (st *State) Summary() string {
	if st.Revision == "" {
		return ""
	}
	var b strings.Builder
	branch := st.Branch
	if branch == "" {
		branch = "(detached)"
	}
	fmt.Fprintf(&b, "branch %s at %s", branch, st.ShortRevision())
	if st.Origin != "" {
		fmt.Fprintf(&b, " (origin %s)", st.Origin)
	}
	b.WriteByte('\n')
	if st.Dirty > 0 {
		fmt.Fprintf(&b, "%d modified or untracked files in worktree\n", st.Dirty)
	} else {
		b.WriteString("worktree clean\n")
	}
	for _, subj := range st.RecentSubjects {
		fmt.Fprintf(&b, "commit: %s\n", subj)
	}
	return strings.TrimRight(b.String(), "\n")
}

// OwnerRepo splits Origin into its owner and repository parts.
func (st *State) OwnerRepo() (owner, repo string, ok bool) {
	if st == nil || st.Origin == "" {
		return "", "", false
	}
	parts := strings.SplitN(st.Origin, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

var (
	sshOriginPattern   = regexp.MustCompile(`git@[^:]+:([^/]+)/([^/]+?)(\.git)?$`)
	httpsOriginPattern = regexp.MustCompile(`https?://[^/]+/([^/]+)/([^/]+?)(\.git)?$`)
)

// parseOrigin extracts "owner/repo" from SSH or HTTPS remote URLs.
func parseOrigin(url string) string {
	for _, p := range []*regexp.Regexp{sshOriginPattern, httpsOriginPattern} {
		if m := p.FindStringSubmatch(url); len(m) > 2 {
			return m[1] + "/" + m[2]
		}
	}
	return ""
}

// commitSubject returns the first line of a commit message.
func commitSubject(c *object.Commit) string {
	subject := c.Message
	if i := strings.IndexByte(subject, '\n'); i >= 0 {
		subject = subject[:i]
	}
	return strings.TrimSpace(subject)
}
