package packed

import (
	"errors"
	"fmt"
	"sort"

	"github.com/odvcencio/refstore/pkg/lockfile"
	"github.com/odvcencio/refstore/pkg/refname"
)

// Transaction rewrites a packed table under an exclusive lock.
//
// It moves through Begin -> Prepare -> Commit. Prepare may find that no
// edit has any effect, in which case the lock is released right away and
// Commit returns the unchanged Buffer.
type Transaction struct {
	buffer *Buffer
	lock   *lockfile.File

	prepared   bool
	edits      []Edit
	prepareErr error
	done       bool

	commitLock func(*lockfile.File) error
}

// ErrStale is returned by Begin when the table on disk no longer holds what
// the buffer was read from.
var ErrStale = errors.New("packed table changed since it was read")

func newTransaction(b *Buffer, lock *lockfile.File) *Transaction {
	return &Transaction{
		buffer:     b,
		lock:       lock,
		commitLock: (*lockfile.File).Commit,
	}
}

// Begin locks the buffer's backing file and starts a transaction against
// this snapshot. Once the lock is held the file is read again; if another
// writer replaced it after b was read, the lock is released and ErrStale
// is returned.
func (b *Buffer) Begin(mode lockfile.Fail) (*Transaction, error) {
	lock, err := lockfile.Acquire(b.path, mode)
	if err != nil {
		return nil, fmt.Errorf("begin packed transaction: %w", err)
	}
	current, err := Open(b.path)
	if err != nil {
		lock.Close()
		return nil, fmt.Errorf("begin packed transaction: %w", err)
	}
	if !b.sameEntries(current) {
		lock.Close()
		return nil, fmt.Errorf("begin packed transaction: %w: %s", ErrStale, b.path)
	}
	return newTransaction(b, lock), nil
}

// BeginAt locks the table at path and reads it while the lock is held, so
// the transaction always starts from the latest committed table. A missing
// file starts an empty one.
func BeginAt(path string, mode lockfile.Fail) (*Transaction, error) {
	lock, err := lockfile.Acquire(path, mode)
	if err != nil {
		return nil, fmt.Errorf("begin packed transaction: %w", err)
	}
	buf, err := Open(path)
	if err != nil {
		lock.Close()
		return nil, fmt.Errorf("begin packed transaction: %w", err)
	}
	if buf == nil {
		buf = Empty(path)
	}
	return newTransaction(buf, lock), nil
}

func (b *Buffer) sameEntries(other *Buffer) bool {
	var theirs []Entry
	if other != nil {
		theirs = other.entries
	}
	if len(b.entries) != len(theirs) {
		return false
	}
	for i := range b.entries {
		if b.entries[i] != theirs[i] {
			return false
		}
	}
	return true
}

// Buffer returns the snapshot the transaction was started from.
func (t *Transaction) Buffer() *Buffer { return t.buffer }

// Prepare validates edits against the snapshot. Deletions of references
// that are not in the table are dropped. It must be called exactly once.
func (t *Transaction) Prepare(edits []Edit) error {
	if t.prepared {
		panic("packed: Prepare called more than once")
	}
	if t.done {
		panic("packed: Prepare called after Rollback")
	}
	t.prepared = true

	if err := t.prepare(edits); err != nil {
		t.prepareErr = err
		if t.lock != nil {
			t.lock.Close()
			t.lock = nil
		}
		return err
	}
	return nil
}

func (t *Transaction) prepare(edits []Edit) error {
	seen := make(map[refname.FullName]struct{}, len(edits))
	kept := make([]Edit, 0, len(edits))
	for _, e := range edits {
		if err := validateEdit(e); err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		if _, dup := seen[e.Name]; dup {
			return fmt.Errorf("prepare: %w: %s", ErrDuplicateEdit, e.Name)
		}
		seen[e.Name] = struct{}{}

		if _, isDelete := e.Change.(Delete); isDelete {
			if _, ok := t.buffer.Find(e.Name); !ok {
				continue
			}
		}
		kept = append(kept, e)
	}

	if len(kept) == 0 {
		t.edits = kept
		err := t.lock.Close()
		t.lock = nil
		if err != nil {
			return fmt.Errorf("prepare: close unused lock: %w", err)
		}
		return nil
	}

	for _, e := range kept {
		cur, exists := t.buffer.Find(e.Name)
		want := e.Change.expected()
		if !want.satisfiedBy(cur.Target, exists) {
			return &ConflictError{Name: e.Name, Expected: want, Actual: cur.Target}
		}
	}
	t.edits = kept
	return nil
}

// Commit writes the edited table and atomically replaces the backing file.
// It returns the edits that were applied and a Buffer reflecting them.
func (t *Transaction) Commit() ([]Edit, *Buffer, error) {
	if !t.prepared {
		panic("packed: Commit called before Prepare")
	}
	if t.done {
		panic("packed: Commit called more than once")
	}
	t.done = true
	if t.prepareErr != nil {
		return nil, nil, fmt.Errorf("commit: prepare failed: %w", t.prepareErr)
	}
	if len(t.edits) == 0 {
		return t.edits, t.buffer, nil
	}

	entries := apply(t.buffer.entries, t.edits)
	lock := t.lock
	t.lock = nil
	if _, err := lock.Write(encode(entries)); err != nil {
		lock.Close()
		return nil, nil, fmt.Errorf("commit: write %s: %w", lock.Path(), err)
	}
	if err := t.commitLock(lock); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return t.edits, &Buffer{path: t.buffer.path, entries: entries}, nil
}

// Rollback releases the lock if it is still held. It is safe to call after
// Commit or more than once.
func (t *Transaction) Rollback() error {
	t.done = true
	if t.lock == nil {
		return nil
	}
	err := t.lock.Close()
	t.lock = nil
	return err
}

// apply merges edits into the sorted entries and returns a new sorted slice.
func apply(entries []Entry, edits []Edit) []Entry {
	sortedEdits := make([]Edit, len(edits))
	copy(sortedEdits, edits)
	sort.Slice(sortedEdits, func(i, j int) bool { return sortedEdits[i].Name < sortedEdits[j].Name })

	out := make([]Entry, 0, len(entries)+len(edits))
	i := 0
	for _, e := range sortedEdits {
		for i < len(entries) && entries[i].Name < e.Name {
			out = append(out, entries[i])
			i++
		}
		if i < len(entries) && entries[i].Name == e.Name {
			i++
		}
		if u, ok := e.Change.(Update); ok {
			out = append(out, Entry{Name: e.Name, Target: u.New, Peeled: u.Peeled})
		}
	}
	return append(out, entries[i:]...)
}
