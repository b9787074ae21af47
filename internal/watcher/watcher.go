// Package watcher keeps an index in sync with directories using fsnotify with per-path debouncing.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hyperjump/ragkit/internal/models"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Callback handles a changed or removed file.
type Callback func(ctx context.Context, path string) error

// Stats counts callback outcomes since Start.
type Stats struct {
	Indexed int64 `json:"indexed"`
	Removed int64 `json:"removed"`
	Failed  int64 `json:"failed"`
}

// Watcher watches directories and invokes callbacks on file changes.
type Watcher struct {
	roots      []string
	extensions []string
	recursive  bool
	onIndex    Callback
	onRemove   Callback
	debounce   time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	ctx     context.Context
	pending map[string]*time.Timer
	done    chan struct{}
	stopped sync.Once

	indexed atomic.Int64
	removed atomic.Int64
	failed  atomic.Int64
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for watcher events.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce overrides the quiet period before a changed file is re-indexed.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher over roots. extensions filter which files trigger callbacks
// (empty matches all). Either callback may be nil.
func NewWatcher(roots, extensions []string, recursive bool, onIndex, onRemove Callback, opts ...Option) *Watcher {
	w := &Watcher{
		extensions: extensions,
		recursive:  recursive,
		onIndex:    onIndex,
		onRemove:   onRemove,
		debounce:   defaultDebounce,
		logger:     zap.NewNop(),
		pending:    make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
	for _, r := range roots {
		if abs, err := filepath.Abs(r); err == nil {
			r = abs
		}
		w.roots = append(w.roots, filepath.Clean(r))
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. Every root must be an existing directory. Events are handled until
// ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil {
		return nil
	}
	select {
	case <-w.done:
		return errors.New("watcher already stopped")
	default:
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	for _, root := range w.roots {
		if err := w.addTree(fsw, root); err != nil {
			_ = fsw.Close()
			return err
		}
	}
	w.fsw = fsw
	w.ctx = ctx
	w.logger.Info("watcher started",
		zap.Strings("roots", w.roots),
		zap.Strings("extensions", w.extensions),
		zap.Bool("recursive", w.recursive))
	go w.run(ctx, fsw)
	return nil
}

// addTree registers dir, and its sub-directories when recursive, with fsw.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: watch root %s", models.ErrNotFound, dir)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: watch root %s is not a directory", models.ErrValidation, dir)
	}
	if !w.recursive {
		return fsw.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.underRoot(path) || isHidden(filepath.Base(path)) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))

	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			if ev.Has(fsnotify.Create) {
				w.handleNewDirectory(path)
			}
			return
		}
		if matchExtension(path, w.extensions) {
			w.schedule(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		// a rename reports the old name; the new name arrives as Create
		w.cancel(path)
		if matchExtension(path, w.extensions) {
			w.dispatch(w.onRemove, path, &w.removed)
		}
	}
}

// handleNewDirectory watches a directory created or moved under a root and indexes its files.
func (w *Watcher) handleNewDirectory(dir string) {
	w.mu.Lock()
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	if w.recursive {
		if err := w.addTree(fsw, dir); err != nil {
			w.logger.Warn("watcher failed to add directory", zap.String("path", dir), zap.Error(err))
		}
	}
	w.syncDirectory(dir)
}

func (w *Watcher) underRoot(path string) bool {
	for _, root := range w.roots {
		if inDir(root, path) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// schedule runs onIndex for path once no further event for it arrives within the debounce window.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.dispatch(w.onIndex, path, &w.indexed)
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) dispatch(cb Callback, path string, counter *atomic.Int64) {
	if cb == nil {
		return
	}
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cb(ctx, path); err != nil {
		w.failed.Add(1)
		w.logger.Warn("watcher callback failed", zap.String("path", path), zap.Error(err))
		return
	}
	counter.Add(1)
}

func (w *Watcher) syncDirectory(root string) {
	w.logger.Debug("watcher syncing directory", zap.String("root", root))
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("watcher sync skipped path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			if path != root && (isHidden(d.Name()) || !w.recursive) {
				return filepath.SkipDir
			}
			return nil
		}
		if matchExtension(path, w.extensions) {
			w.dispatch(w.onIndex, path, &w.indexed)
		}
		return nil
	})
}

// SyncExisting runs onIndex for every matching file already present under the roots.
// Call it after Start to catch up on files that changed while nothing was watching.
func (w *Watcher) SyncExisting() {
	for _, root := range w.roots {
		w.syncDirectory(root)
	}
}

// Directories returns the watched root directories.
func (w *Watcher) Directories() []string {
	return append([]string(nil), w.roots...)
}

// Stats returns callback counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Indexed: w.indexed.Load(),
		Removed: w.removed.Load(),
		Failed:  w.failed.Load(),
	}
}

// Stop stops the watcher and releases resources. Pending debounced callbacks are dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.mu.Unlock()
	w.stopped.Do(func() { close(w.done) })
	w.logger.Info("watcher stopped")
}
