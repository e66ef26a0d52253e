// Package watch invalidates cached aggregates when the repository state under
// a workspace changes before the cache TTL elapses. It monitors the git HEAD
// and reflog of each registered workspace and purges that workspace's cache
// entries once the change settles.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var (
	// ErrNotGitRepo indicates the workspace has no git directory to watch.
	ErrNotGitRepo = errors.New("not a git repository")

	// ErrStopped indicates the watcher was already stopped.
	ErrStopped = errors.New("watcher stopped")
)

const defaultDebounce = 500 * time.Millisecond

// PurgeFunc removes all cached entries for a workspace and returns how many
// were removed.
type PurgeFunc func(workspace string) int

// Config tunes the watcher.
type Config struct {
	// Debounce is how long a workspace must stay quiet after a git change
	// before its cache entries are purged. Checkouts and rebases touch
	// HEAD several times in quick succession; one purge covers the burst.
	// Defaults to 500ms.
	Debounce time.Duration
}

// Watcher monitors the git state of registered workspaces. One watcher serves
// any number of workspaces. Safe for concurrent use.
type Watcher struct {
	debounce time.Duration
	purge    PurgeFunc
	logger   *zap.Logger
	fsw      *fsnotify.Watcher

	mu     sync.Mutex
	byDir  map[string]string      // watched directory -> workspace
	timers map[string]*time.Timer // workspace -> pending purge

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a watcher that calls purge for each settled workspace change.
func New(cfg Config, purge PurgeFunc, logger *zap.Logger) (*Watcher, error) {
	if purge == nil {
		return nil, fmt.Errorf("watcher requires a purge function")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem watcher: %w", err)
	}

	return &Watcher{
		debounce: cfg.Debounce,
		purge:    purge,
		logger:   logger,
		fsw:      fsw,
		byDir:    make(map[string]string),
		timers:   make(map[string]*time.Timer),
		stop:     make(chan struct{}),
	}, nil
}

// Add registers a workspace for invalidation. The git directory is resolved
// through worktree indirection, and both it and its logs subdirectory are
// watched. Directories rather than files are watched because git replaces
// HEAD atomically, which would silently drop a file-level watch.
func (w *Watcher) Add(workspace string) error {
	select {
	case <-w.stop:
		return ErrStopped
	default:
	}

	gitDir, err := resolveGitDir(workspace)
	if err != nil {
		return err
	}

	dirs := []string{gitDir}
	logsDir := filepath.Join(gitDir, "logs")
	if info, err := os.Stat(logsDir); err == nil && info.IsDir() {
		dirs = append(dirs, logsDir)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, dir := range dirs {
		if _, ok := w.byDir[dir]; ok {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		w.byDir[dir] = workspace
	}

	w.logger.Debug("watching workspace",
		zap.String("workspace", workspace),
		zap.String("git_dir", gitDir))
	return nil
}

// Start runs the event loop until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop shuts the watcher down and cancels pending purges.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		_ = w.fsw.Close()

		w.mu.Lock()
		defer w.mu.Unlock()
		for ws, t := range w.timers {
			t.Stop()
			delete(w.timers, ws)
		}
	})
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			w.Stop()
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Base(event.Name) != "HEAD" {
				continue
			}
			w.schedule(event.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watcher error", zap.Error(err))
		}
	}
}

// schedule arms (or re-arms) the debounce timer for the workspace owning the
// changed path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	workspace, ok := w.byDir[filepath.Dir(path)]
	if !ok {
		return
	}

	if t, ok := w.timers[workspace]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[workspace] = time.AfterFunc(w.debounce, func() {
		w.fire(workspace)
	})
}

func (w *Watcher) fire(workspace string) {
	w.mu.Lock()
	delete(w.timers, workspace)
	w.mu.Unlock()

	select {
	case <-w.stop:
		return
	default:
	}

	purged := w.purge(workspace)
	w.logger.Info("repository state changed, purged cached aggregates",
		zap.String("workspace", workspace),
		zap.Int("purged", purged))
}

// resolveGitDir locates the git directory for a workspace. A .git directory
// is used as-is; a .git file (linked worktree) is dereferenced.
func resolveGitDir(workspace string) (string, error) {
	gitPath := filepath.Join(workspace, ".git")

	info, err := os.Stat(gitPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotGitRepo, workspace)
		}
		return "", fmt.Errorf("stat %s: %w", gitPath, err)
	}

	if info.IsDir() {
		return gitPath, nil
	}

	content, err := os.ReadFile(gitPath)
	if err != nil {
		return "", fmt.Errorf("reading worktree link: %w", err)
	}

	line := strings.TrimSpace(string(content))
	if !strings.HasPrefix(line, "gitdir:") {
		return "", fmt.Errorf("%w: malformed .git file in %s", ErrNotGitRepo, workspace)
	}

	dir := strings.TrimSpace(strings.TrimPrefix(line, "gitdir:"))
	if dir == "" {
		return "", fmt.Errorf("%w: empty gitdir in %s", ErrNotGitRepo, workspace)
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(workspace, dir)
	}
	return dir, nil
}
