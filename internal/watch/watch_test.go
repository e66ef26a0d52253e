package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gatherd/internal/watch"
)

// fakeGitWorkspace lays out a directory that looks like a git checkout
// without invoking git.
func fakeGitWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	gitDir := filepath.Join(dir, ".git")
	require.NoError(t, os.MkdirAll(filepath.Join(gitDir, "logs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte("ref: refs/heads/main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "logs", "HEAD"), []byte(""), 0o644))
	return dir
}

func newTestWatcher(t *testing.T, debounce time.Duration) (*watch.Watcher, chan string) {
	t.Helper()
	purged := make(chan string, 16)
	w, err := watch.New(watch.Config{Debounce: debounce}, func(ws string) int {
		purged <- ws
		return 1
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(w.Stop)
	return w, purged
}

func TestNew_RequiresPurgeFunc(t *testing.T) {
	_, err := watch.New(watch.Config{}, nil, zap.NewNop())
	assert.ErrorContains(t, err, "purge function")
}

func TestAdd_RejectsNonRepo(t *testing.T) {
	w, _ := newTestWatcher(t, 50*time.Millisecond)
	err := w.Add(t.TempDir())
	assert.ErrorIs(t, err, watch.ErrNotGitRepo)
}

func TestAdd_ResolvesWorktreeLink(t *testing.T) {
	main := fakeGitWorkspace(t)
	mainGit := filepath.Join(main, ".git")

	worktree := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(worktree, ".git"),
		[]byte("gitdir: "+mainGit+"\n"), 0o644))

	w, _ := newTestWatcher(t, 50*time.Millisecond)
	assert.NoError(t, w.Add(worktree))
}

func TestAdd_RejectsMalformedWorktreeLink(t *testing.T) {
	worktree := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(worktree, ".git"), []byte("not a gitdir line"), 0o644))

	w, _ := newTestWatcher(t, 50*time.Millisecond)
	err := w.Add(worktree)
	assert.ErrorIs(t, err, watch.ErrNotGitRepo)
}

func TestWatcher_PurgesOnHeadChange(t *testing.T) {
	ws := fakeGitWorkspace(t)
	w, purged := newTestWatcher(t, 50*time.Millisecond)
	require.NoError(t, w.Add(ws))
	w.Start(context.Background())

	// Allow the event loop to come up before the write.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(
		filepath.Join(ws, ".git", "HEAD"),
		[]byte("ref: refs/heads/feature\n"), 0o644))

	select {
	case got := <-purged:
		assert.Equal(t, ws, got)
	case <-time.After(3 * time.Second):
		t.Fatal("expected a purge after HEAD changed")
	}
}

func TestWatcher_PurgesOnNewCommit(t *testing.T) {
	ws := fakeGitWorkspace(t)
	w, purged := newTestWatcher(t, 50*time.Millisecond)
	require.NoError(t, w.Add(ws))
	w.Start(context.Background())

	time.Sleep(50 * time.Millisecond)
	reflog := "0000000000000000000000000000000000000000 a1b2c3d committer <c@x> 0 +0000\tcommit: change\n"
	require.NoError(t, os.WriteFile(
		filepath.Join(ws, ".git", "logs", "HEAD"), []byte(reflog), 0o644))

	select {
	case got := <-purged:
		assert.Equal(t, ws, got)
	case <-time.After(3 * time.Second):
		t.Fatal("expected a purge after the reflog grew")
	}
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	ws := fakeGitWorkspace(t)
	w, purged := newTestWatcher(t, 100*time.Millisecond)
	require.NoError(t, w.Add(ws))
	w.Start(context.Background())

	time.Sleep(50 * time.Millisecond)
	head := filepath.Join(ws, ".git", "HEAD")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(head, []byte("ref: refs/heads/main\n"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-purged:
	case <-time.After(3 * time.Second):
		t.Fatal("expected one purge for the burst")
	}

	select {
	case <-purged:
		t.Fatal("a burst of writes must collapse into a single purge")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	ws := fakeGitWorkspace(t)
	w, purged := newTestWatcher(t, 50*time.Millisecond)
	require.NoError(t, w.Add(ws))
	w.Start(context.Background())

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(
		filepath.Join(ws, ".git", "FETCH_HEAD"), []byte("abc\n"), 0o644))

	select {
	case <-purged:
		t.Fatal("FETCH_HEAD churn must not purge the cache")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_StopCancelsPendingPurge(t *testing.T) {
	ws := fakeGitWorkspace(t)
	w, purged := newTestWatcher(t, 200*time.Millisecond)
	require.NoError(t, w.Add(ws))
	w.Start(context.Background())

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(
		filepath.Join(ws, ".git", "HEAD"),
		[]byte("ref: refs/heads/other\n"), 0o644))

	// Stop before the debounce window elapses.
	time.Sleep(50 * time.Millisecond)
	w.Stop()

	select {
	case <-purged:
		t.Fatal("a stopped watcher must not purge")
	case <-time.After(400 * time.Millisecond):
	}
}

func TestAdd_AfterStop(t *testing.T) {
	ws := fakeGitWorkspace(t)
	w, _ := newTestWatcher(t, 50*time.Millisecond)
	w.Stop()
	assert.ErrorIs(t, w.Add(ws), watch.ErrStopped)
}
