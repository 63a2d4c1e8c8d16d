// Package watch implements a live file-modification observer: an optional
// diagnostic the worktree and stacked strategies can attach during a run to
// catch two concurrently running tasks touching the same relative path
// before either commits. internal/scope's validator only sees a task's
// final diff at commit time; this package sees it the moment it happens.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/arittr/chopstack/internal/clog"
	"github.com/arittr/chopstack/internal/vcs"
)

// FileConflict reports a relative path touched by more than one task's
// worktree while the run is still in flight.
type FileConflict struct {
	RelativePath string
	TaskIDs      []string
	LastModified time.Time
}

// Watcher observes every registered task's worktree and recalculates
// cross-task conflicts as filesystem events arrive.
type Watcher struct {
	watcher *fsnotify.Watcher

	worktrees map[string]string // task id -> worktree path

	modifications map[string]map[string]time.Time // relative path -> task id -> last seen

	conflicts []FileConflict

	onConflict func([]FileConflict)

	ignorePaths []string

	logger *clog.Logger

	mu     sync.RWMutex
	stopCh chan struct{}
}

// New creates a Watcher. Call Start to begin processing events and Stop to
// release the underlying fsnotify watcher.
func New(logger *clog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: failed to create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = clog.NopLogger()
	}
	return &Watcher{
		watcher:       fw,
		worktrees:     make(map[string]string),
		modifications: make(map[string]map[string]time.Time),
		ignorePaths:   []string{".git", ".chopstack", "node_modules", ".DS_Store"},
		logger:        logger,
		stopCh:        make(chan struct{}),
	}, nil
}

// OnConflict registers a callback invoked with the full current conflict
// set whenever a new conflict is detected.
func (w *Watcher) OnConflict(cb func([]FileConflict)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onConflict = cb
}

// AddTask starts watching a task's worktree. Subdirectories are added
// asynchronously so registering a task never blocks task dispatch on a
// full directory walk.
func (w *Watcher) AddTask(taskID, worktreePath string) error {
	info, err := os.Stat(worktreePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("watch: worktree path does not exist: %q", worktreePath)
		}
		return fmt.Errorf("watch: cannot access worktree path %q: %w", worktreePath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch: worktree path is not a directory: %q", worktreePath)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.worktrees[taskID] = worktreePath
	if err := w.watcher.Add(worktreePath); err != nil {
		return err
	}

	w.logger.Info("task registered for conflict watching", "task_id", taskID, "path", worktreePath)

	go func() {
		if err := w.watchDirRecursive(worktreePath); err != nil {
			w.logger.Debug("failed to watch subdirectories", "task_id", taskID, "path", worktreePath, "error", err.Error())
		}
	}()

	return nil
}

func (w *Watcher) watchDirRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		base := filepath.Base(path)
		for _, ignore := range w.ignorePaths {
			if base == ignore {
				return filepath.SkipDir
			}
		}

		if info.IsDir() && path != root && vcs.IsSubmoduleDir(path) {
			w.logger.Debug("skipping submodule directory", "path", path)
			return filepath.SkipDir
		}

		if info.IsDir() {
			_ = w.watcher.Add(path)
		}
		return nil
	})
}

// RemoveTask stops watching a task's worktree and drops its recorded
// modifications, recalculating conflicts afterward.
func (w *Watcher) RemoveTask(taskID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	worktreePath, ok := w.worktrees[taskID]
	if !ok {
		return
	}
	_ = w.watcher.Remove(worktreePath)
	delete(w.worktrees, taskID)

	for relPath, tasks := range w.modifications {
		delete(tasks, taskID)
		if len(tasks) == 0 {
			delete(w.modifications, relPath)
		}
	}
	w.recalculateConflicts()
}

// Start begins processing filesystem events in the background.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop terminates the watcher and releases its fsnotify resources.
func (w *Watcher) Stop() {
	close(w.stopCh)
	_ = w.watcher.Close()
}

func (w *Watcher) loop() {
	debounce := time.NewTimer(0)
	<-debounce.C

	pending := make(map[string]fsnotify.Event)
	var pendingMu sync.Mutex

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.logger.Debug("file watch event received", "path", event.Name, "operation", event.Op.String())

			pendingMu.Lock()
			pending[event.Name] = event
			pendingMu.Unlock()
			debounce.Reset(50 * time.Millisecond)

		case <-debounce.C:
			pendingMu.Lock()
			events := pending
			pending = make(map[string]fsnotify.Event)
			pendingMu.Unlock()

			for _, event := range events {
				w.handleEvent(event)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Debug("file watcher error", "error", err.Error())
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	path := event.Name
	for _, ignore := range w.ignorePaths {
		if strings.Contains(path, string(filepath.Separator)+ignore+string(filepath.Separator)) ||
			strings.HasSuffix(path, string(filepath.Separator)+ignore) ||
			filepath.Base(path) == ignore {
			return
		}
	}
	if isInsideSubmodule(path) {
		return
	}

	var matchedTaskID, relativePath string
	for taskID, worktreePath := range w.worktrees {
		if strings.HasPrefix(path, worktreePath) {
			matchedTaskID = taskID
			relativePath, _ = filepath.Rel(worktreePath, path)
			break
		}
	}
	if matchedTaskID == "" {
		return
	}

	if w.modifications[relativePath] == nil {
		w.modifications[relativePath] = make(map[string]time.Time)
	}
	w.modifications[relativePath][matchedTaskID] = time.Now()

	w.logger.Debug("file modification tracked", "file_path", relativePath, "task_id", matchedTaskID)
	w.recalculateConflicts()
}

func (w *Watcher) recalculateConflicts() {
	conflicts := make([]FileConflict, 0)

	for relPath, tasks := range w.modifications {
		if len(tasks) <= 1 {
			continue
		}
		var taskIDs []string
		var lastMod time.Time
		for id, modTime := range tasks {
			taskIDs = append(taskIDs, id)
			if modTime.After(lastMod) {
				lastMod = modTime
			}
		}
		conflicts = append(conflicts, FileConflict{RelativePath: relPath, TaskIDs: taskIDs, LastModified: lastMod})
		w.logger.Info("file conflict detected", "file_path", relPath, "task_ids", taskIDs)
	}

	if len(conflicts) > 0 {
		w.logger.Warn("potential conflicts between concurrent tasks", "conflict_count", len(conflicts))
	}

	w.conflicts = conflicts
	if w.onConflict != nil && len(conflicts) > 0 {
		w.onConflict(conflicts)
	}
}

// Conflicts returns a snapshot of the currently detected conflicts.
func (w *Watcher) Conflicts() []FileConflict {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]FileConflict, len(w.conflicts))
	copy(out, w.conflicts)
	return out
}

// HasConflicts reports whether any conflict is currently active.
func (w *Watcher) HasConflicts() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.conflicts) > 0
}

func isInsideSubmodule(path string) bool {
	dir := filepath.Dir(path)
	for {
		gitPath := filepath.Join(dir, ".git")
		info, err := os.Stat(gitPath)
		if err == nil {
			if info.Mode().IsRegular() {
				return vcs.IsSubmoduleDir(dir)
			}
			return false
		}
		if !os.IsNotExist(err) {
			return false
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}
