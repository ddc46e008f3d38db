// Package watch re-runs a build when the descriptor or its local inputs change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/pkgbuilder/internal/logfields"
)

// DefaultDebounce coalesces bursts of writes, such as an editor's save sequence.
const DefaultDebounce = 500 * time.Millisecond

// Watcher monitors a fixed set of files. Directories containing them are watched, which
// survives editors that replace files by rename.
type Watcher struct {
	files    map[string]struct{}
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// New watches files. A debounce of zero uses DefaultDebounce.
func New(files []string, debounce time.Duration) (*Watcher, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{files: map[string]struct{}{}, debounce: debounce, watcher: fw}
	dirs := map[string]struct{}{}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("failed to resolve %s: %w", f, err)
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}
	return w, nil
}

func (w *Watcher) tracked(ev fsnotify.Event) bool {
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	_, ok := w.files[abs]
	return ok
}

// Run calls onChange after each debounced burst of changes until ctx is done. onChange runs
// on the calling goroutine, so builds never overlap.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context)) error {
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.tracked(ev) {
				continue
			}
			if ev.Has(fsnotify.Remove) {
				slog.Warn("Watched file removed", logfields.File(ev.Name))
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				slog.Debug("Change detected", logfields.File(ev.Name), logfields.Operation(ev.Op.String()))
				fire = time.After(w.debounce)
			}
		case <-fire:
			fire = nil
			onChange(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("File watcher error", logfields.Error(err))
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
