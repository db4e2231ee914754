package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/boltindex/internal/logger"
)

// DefaultDebounce is how long the watcher waits for events to settle.
const DefaultDebounce = 500 * time.Millisecond

// ChangeKind says what happened to a file.
type ChangeKind string

// Change kinds.
const (
	// ChangeUpsert means the file was created or written.
	ChangeUpsert ChangeKind = "upsert"

	// ChangeRemove means the file was removed or renamed away.
	ChangeRemove ChangeKind = "remove"
)

// Change is a settled change to one file.
type Change struct {
	Kind ChangeKind
	Path string
}

// Watcher reports file changes under a directory tree in debounced batches.
type Watcher struct {
	loader   *Loader
	debounce time.Duration
}

// NewWatcher creates a watcher that applies the loader's filters.
func NewWatcher(loader *Loader, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{loader: loader, debounce: debounce}
}

// Watch starts watching root and every non-hidden directory below it.
// Batches are sorted by path; the last event for a path wins. The channel
// closes when ctx ends.
func (w *Watcher) Watch(ctx context.Context, root string) (<-chan []Change, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.addTree(fsw, root); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	out := make(chan []Change)
	go w.loop(ctx, fsw, out)
	return out, nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, out chan<- []Change) {
	defer close(out)
	defer fsw.Close()

	pending := make(map[string]ChangeKind)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			for _, c := range w.handle(fsw, event) {
				pending[c.Path] = c.Kind
			}
			if len(pending) > 0 {
				timer.Reset(w.debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("watch error: %v", err)

		case <-timer.C:
			batch := drain(pending)
			if len(batch) == 0 {
				continue
			}
			select {
			case out <- batch:
			case <-ctx.Done():
				return
			}
		}
	}
}

// handle turns one fsnotify event into changes. A new directory is watched
// and its existing files reported.
func (w *Watcher) handle(fsw *fsnotify.Watcher, event fsnotify.Event) []Change {
	if !w.loader.hidden && isHidden(filepath.Base(event.Name)) {
		return nil
	}

	change, isDir, ok := classify(event)
	if !ok {
		return nil
	}
	if isDir {
		if err := w.addTree(fsw, event.Name); err != nil {
			logger.Warn("watch %s: %v", event.Name, err)
			return nil
		}
		return w.scan(event.Name)
	}
	if change.Kind == ChangeUpsert && !w.loader.Accepts(change.Path) {
		return nil
	}
	return []Change{change}
}

// classify maps an event to a change. Chmod is ignored. isDir is set when a
// directory was created.
func classify(event fsnotify.Event) (change Change, isDir bool, ok bool) {
	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		return Change{Kind: ChangeRemove, Path: event.Name}, false, true
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil {
			// Gone again before we looked.
			return Change{Kind: ChangeRemove, Path: event.Name}, false, true
		}
		if info.IsDir() {
			return Change{}, event.Has(fsnotify.Create), event.Has(fsnotify.Create)
		}
		return Change{Kind: ChangeUpsert, Path: event.Name}, false, true
	default:
		return Change{}, false, false
	}
}

// addTree watches dir and its non-hidden subdirectories.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && !w.loader.hidden && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// scan reports the accepted files already inside a new directory.
func (w *Watcher) scan(dir string) []Change {
	var changes []Change
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && !w.loader.hidden && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && w.loader.Accepts(path) {
			changes = append(changes, Change{Kind: ChangeUpsert, Path: path})
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("scan %s: %v", dir, err)
	}
	return changes
}

func drain(pending map[string]ChangeKind) []Change {
	batch := make([]Change, 0, len(pending))
	for path, kind := range pending {
		batch = append(batch, Change{Kind: kind, Path: path})
		delete(pending, path)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	return batch
}
