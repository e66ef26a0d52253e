package repostate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initRepo creates a repository with one commit and an origin remote.
func initRepo(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	_, err = repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{"https://github.com/fyrsmithlabs/gatherd.git"},
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)

	hash, err := wt.Commit("add readme", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com"},
	})
	require.NoError(t, err)

	return dir, hash.String()
}

func TestSnapshot_Repository(t *testing.T) {
	dir, hash := initRepo(t)
	svc := NewService(nil, 5)

	st, err := svc.Snapshot(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, hash, st.Revision)
	assert.Equal(t, "master", st.Branch)
	assert.Equal(t, "fyrsmithlabs/gatherd", st.Origin)
	assert.Equal(t, []string{"add readme"}, st.RecentSubjects)
	assert.Equal(t, 0, st.Dirty)
}

func TestSnapshot_DirtyWorktree(t *testing.T) {
	dir, _ := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0644))

	svc := NewService(nil, 5)
	st, err := svc.Snapshot(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Dirty)
}

func TestSnapshot_NotARepository(t *testing.T) {
	svc := NewService(nil, 5)

	st, err := svc.Snapshot(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "", st.Revision)
	assert.Equal(t, "none", st.Fingerprint())
	assert.Equal(t, "", st.Summary())
}

func TestSnapshot_EmptyDir(t *testing.T) {
	svc := NewService(nil, 5)
	st, err := svc.Snapshot(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "none", st.Fingerprint())
}

func TestFingerprint(t *testing.T) {
	st := &State{Branch: "main", Revision: "abcdef1234567890"}
	assert.Equal(t, "main@abcdef1234567890", st.Fingerprint())

	detached := &State{Revision: "abcdef1234567890"}
	assert.Equal(t, "detached@abcdef1234567890", detached.Fingerprint())
}

func TestSummary(t *testing.T) {
	st := &State{
		Branch:         "main",
		Revision:       "abcdef1234567890",
		Origin:         "fyrsmithlabs/gatherd",
		Dirty:          2,
		RecentSubjects: []string{"fix cache sweep", "add watcher"},
	}
	s := st.Summary()
	assert.Contains(t, s, "branch main at abcdef12")
	assert.Contains(t, s, "origin fyrsmithlabs/gatherd")
	assert.Contains(t, s, "2 modified or untracked files")
	assert.Contains(t, s, "commit: fix cache sweep")
}

func TestOwnerRepo(t *testing.T) {
	st := &State{Origin: "fyrsmithlabs/gatherd"}
	owner, repo, ok := st.OwnerRepo()
	require.True(t, ok)
	assert.Equal(t, "fyrsmithlabs", owner)
	assert.Equal(t, "gatherd", repo)

	_, _, ok = (&State{}).OwnerRepo()
	assert.False(t, ok)
}

func TestParseOrigin(t *testing.T) {
	assert.Equal(t, "user/repo", parseOrigin("git@github.com:user/repo.git"))
	assert.Equal(t, "user/repo", parseOrigin("https://github.com/user/repo.git"))
	assert.Equal(t, "user/repo", parseOrigin("https://github.com/user/repo"))
	assert.Equal(t, "", parseOrigin("not-a-url"))
}
