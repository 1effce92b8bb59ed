package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/odvcencio/refstore/pkg/lockfile"
	"github.com/odvcencio/refstore/pkg/object"
	"github.com/odvcencio/refstore/pkg/refs"
	"github.com/odvcencio/refstore/pkg/refs/packed"
)

var (
	hashA = object.Hash(strings.Repeat("a", 64))
	hashB = object.Hash(strings.Repeat("b", 64))
)

func startWatcher(t *testing.T, store *refs.Store) <-chan []Change {
	t.Helper()
	w, err := New(store, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan []Change, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, func(c []Change) { ch <- c })
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Close()
	})
	return ch
}

func waitFor(t *testing.T, ch <-chan []Change, name string) Change {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case batch := <-ch:
			for _, c := range batch {
				if string(c.Name) == name {
					return c
				}
			}
		case <-deadline:
			t.Fatalf("no change reported for %s", name)
		}
	}
}

func TestWatchReportsLooseChanges(t *testing.T) {
	base := t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, "refs", "heads"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	store := refs.New(base)
	ch := startWatcher(t, store)

	peeled := refs.Target{Kind: refs.Peeled, ID: hashA}
	if err := store.WriteLoose("refs/heads/topic/one", peeled, lockfile.FailImmediately()); err != nil {
		t.Fatalf("WriteLoose: %v", err)
	}
	c := waitFor(t, ch, "refs/heads/topic/one")
	if c.Old != "" || c.New != string(hashA) {
		t.Fatalf("change = %+v, want creation at %s", c, hashA)
	}

	if err := os.Remove(filepath.Join(base, "refs", "heads", "topic", "one")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	c = waitFor(t, ch, "refs/heads/topic/one")
	if c.New != "" || !strings.HasPrefix(c.String(), "deleted ") {
		t.Fatalf("change = %v, want deletion", c)
	}
}

func TestWatchReportsPackedChanges(t *testing.T) {
	base := t.TempDir()
	store := refs.New(base)
	ch := startWatcher(t, store)

	tx, err := store.PackedTransaction(lockfile.FailImmediately())
	if err != nil {
		t.Fatalf("PackedTransaction: %v", err)
	}
	if err := tx.Prepare([]packed.Edit{{Name: "refs/tags/v1", Change: packed.Update{New: hashB}}}); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if _, _, err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	c := waitFor(t, ch, "refs/tags/v1")
	if c.New != string(hashB) {
		t.Fatalf("change = %+v, want %s", c, hashB)
	}
}

func TestChangeString(t *testing.T) {
	c := Change{Name: "refs/heads/main", Old: string(hashA), New: string(hashB)}
	if got := c.String(); got != "updated refs/heads/main "+string(hashA)+" -> "+string(hashB) {
		t.Fatalf("String() = %q", got)
	}
}
