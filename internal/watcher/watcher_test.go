package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/ragkit/internal/models"
)

const testDebounce = 50 * time.Millisecond

type recorder struct {
	mu      sync.Mutex
	indexed []string
	removed []string
}

func (r *recorder) index(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, path)
	return nil
}

func (r *recorder) remove(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, path)
	return nil
}

func (r *recorder) snapshot() (indexed, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.indexed...), append([]string(nil), r.removed...)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func containsSuffix(paths []string, suffix string) bool {
	for _, p := range paths {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

func startWatcher(t *testing.T, roots []string, exts []string, rec *recorder) *Watcher {
	t.Helper()
	w := NewWatcher(roots, exts, true, rec.index, rec.remove, WithDebounce(testDebounce))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		w.Stop()
		cancel()
	})
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	return w
}

func TestWatcher_IndexesChangedFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := mkdirAll(sub); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	w := startWatcher(t, []string{dir}, []string{".txt"}, rec)

	if err := writeFile(filepath.Join(sub, "f.txt"), "hello"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(sub, "f.bin"), "skip"); err != nil {
		t.Fatal(err)
	}
	ok := waitFor(t, func() bool {
		indexed, _ := rec.snapshot()
		return containsSuffix(indexed, "f.txt")
	})
	if !ok {
		t.Fatal("expected f.txt to be indexed")
	}
	time.Sleep(2 * testDebounce)
	indexed, _ := rec.snapshot()
	if containsSuffix(indexed, "f.bin") {
		t.Errorf("f.bin should be filtered out, got %v", indexed)
	}
	if w.Stats().Indexed < 1 {
		t.Errorf("stats: %+v", w.Stats())
	}
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher([]string{dir}, nil, true, rec.index, nil, WithDebounce(300*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "burst.txt")
	for i := 0; i < 5; i++ {
		if err := writeFile(path, strings.Repeat("x", i+1)); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(700 * time.Millisecond)
	indexed, _ := rec.snapshot()
	if len(indexed) != 1 {
		t.Errorf("expected a single debounced callback, got %d: %v", len(indexed), indexed)
	}
}

func TestWatcher_RemoveCallsOnRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	if err := writeFile(path, "bye"); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	startWatcher(t, []string{dir}, []string{".txt"}, rec)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	ok := waitFor(t, func() bool {
		_, removed := rec.snapshot()
		return containsSuffix(removed, "gone.txt")
	})
	if !ok {
		t.Error("expected onRemove for gone.txt")
	}
}

func TestWatcher_NewDirectoryIsWatchedAndSynced(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, []string{dir}, []string{".txt", ".md"}, rec)

	nested := filepath.Join(dir, "level1", "level2")
	if err := mkdirAll(nested); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "deep.txt"), "deep content"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "ignore.xyz"), "skip"); err != nil {
		t.Fatal(err)
	}
	ok := waitFor(t, func() bool {
		indexed, _ := rec.snapshot()
		return containsSuffix(indexed, "deep.txt")
	})
	if !ok {
		t.Fatal("expected deep.txt to be indexed")
	}
	indexed, _ := rec.snapshot()
	if containsSuffix(indexed, "ignore.xyz") {
		t.Errorf("ignore.xyz should not be indexed, got %v", indexed)
	}
}

func TestWatcher_SyncExisting(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"a.txt":         "hello",
		"ignore.xyz":    "x",
		".hidden/b.txt": "secret",
		"nested/c.txt":  "nested",
	} {
		p := filepath.Join(dir, name)
		if err := mkdirAll(filepath.Dir(p)); err != nil {
			t.Fatal(err)
		}
		if err := writeFile(p, content); err != nil {
			t.Fatal(err)
		}
	}

	rec := &recorder{}
	w := NewWatcher([]string{dir}, []string{".txt"}, true, rec.index, nil)
	w.SyncExisting()

	indexed, _ := rec.snapshot()
	if len(indexed) != 2 || !containsSuffix(indexed, "a.txt") || !containsSuffix(indexed, "c.txt") {
		t.Errorf("expected a.txt and nested/c.txt, got %v", indexed)
	}
}

func TestWatcher_CallbackErrorsAreCounted(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "a.txt"), "x"); err != nil {
		t.Fatal(err)
	}
	fail := func(context.Context, string) error { return errors.New("index failed") }
	w := NewWatcher([]string{dir}, nil, true, fail, nil)
	w.SyncExisting()
	if got := w.Stats(); got.Failed != 1 || got.Indexed != 0 {
		t.Errorf("stats: %+v", got)
	}
}

func TestWatcher_StartErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	w := NewWatcher([]string{missing}, nil, true, nil, nil)
	if err := w.Start(context.Background()); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing root: got %v", err)
	}

	file := filepath.Join(t.TempDir(), "file.txt")
	if err := writeFile(file, "x"); err != nil {
		t.Fatal(err)
	}
	w = NewWatcher([]string{file}, nil, true, nil, nil)
	if err := w.Start(context.Background()); !errors.Is(err, models.ErrValidation) {
		t.Errorf("file root: got %v", err)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := NewWatcher([]string{t.TempDir()}, nil, false, nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
	if err := w.Start(context.Background()); err == nil {
		t.Error("restarting a stopped watcher should fail")
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.txt", []string{".txt"}, true},
		{"/a/b.TXT", []string{".txt"}, true},
		{"/a/b.md", []string{"md"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		got := matchExtension(tt.path, tt.extensions)
		if got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func mkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
