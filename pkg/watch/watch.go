// Package watch reports changes to the references of a store as they
// happen on disk.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/odvcencio/refstore/pkg/lockfile"
	"github.com/odvcencio/refstore/pkg/refname"
	"github.com/odvcencio/refstore/pkg/refs"
	"github.com/odvcencio/refstore/pkg/snapshot"
)

// DefaultSettle is how long the watcher waits after the last filesystem
// event before rescanning.
const DefaultSettle = 25 * time.Millisecond

// Change describes one reference whose value differs between two scans.
// Old is empty for a created reference and New is empty for a deleted one.
type Change struct {
	Name refname.FullName
	Old  string
	New  string
}

func (c Change) String() string {
	switch {
	case c.Old == "":
		return fmt.Sprintf("created %s %s", c.Name, c.New)
	case c.New == "":
		return fmt.Sprintf("deleted %s %s", c.Name, c.Old)
	default:
		return fmt.Sprintf("updated %s %s -> %s", c.Name, c.Old, c.New)
	}
}

// Watcher watches the loose reference tree and packed table of a store.
type Watcher struct {
	store  *refs.Store
	fsw    *fsnotify.Watcher
	logger *slog.Logger
	settle time.Duration
	state  map[refname.FullName]string
}

// New starts watching store and records its current references as the
// baseline for the first reported changes.
func New(store *refs.Store, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	w := &Watcher{store: store, fsw: fsw, logger: logger, settle: DefaultSettle}
	if err := fsw.Add(store.Base()); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", store.Base(), err)
	}
	if err := w.addTree(filepath.Join(store.Base(), "refs")); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	state, err := w.scan()
	if err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w.state = state
	return w, nil
}

// addTree watches dir and every directory below it. A missing dir is
// ignored; it is picked up when created.
func (w *Watcher) addTree(dir string) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (w *Watcher) scan() (map[refname.FullName]string, error) {
	entries, err := snapshot.Collect(w.store)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	out := make(map[refname.FullName]string, len(entries))
	for _, e := range entries {
		out[e.Name] = e.Target.String()
	}
	return out, nil
}

// rescan reads the store again and returns what changed since the last scan,
// sorted by name.
func (w *Watcher) rescan() ([]Change, error) {
	next, err := w.scan()
	if err != nil {
		return nil, err
	}
	var changes []Change
	for name, v := range next {
		if old := w.state[name]; old != v {
			changes = append(changes, Change{Name: name, Old: old, New: v})
		}
	}
	for name, old := range w.state {
		if _, ok := next[name]; !ok {
			changes = append(changes, Change{Name: name, Old: old})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Name < changes[j].Name })
	w.state = next
	return changes, nil
}

// Run delivers batches of changes to fn until ctx is done or the watcher is
// closed. Events are coalesced until the tree has been quiet for the settle
// interval. Unreadable intermediate states are logged and skipped.
func (w *Watcher) Run(ctx context.Context, fn func([]Change)) error {
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.WarnContext(ctx, "watch new directory", "dir", event.Name, "err", err)
					}
				}
			}
			if strings.HasSuffix(event.Name, lockfile.Suffix) {
				continue
			}
			pending = time.After(w.settle)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.WarnContext(ctx, "error watching refs", "err", err)
		case <-pending:
			pending = nil
			changes, err := w.rescan()
			if err != nil {
				w.logger.WarnContext(ctx, "rescan refs", "err", err)
				continue
			}
			if len(changes) > 0 {
				w.logger.DebugContext(ctx, "refs changed", "count", len(changes))
				fn(changes)
			}
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
