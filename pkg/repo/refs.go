package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/odvcencio/refstore/pkg/lockfile"
	"github.com/odvcencio/refstore/pkg/object"
	"github.com/odvcencio/refstore/pkg/refname"
	"github.com/odvcencio/refstore/pkg/refs"
	"github.com/odvcencio/refstore/pkg/refs/packed"
)

var (
	ErrRefCASMismatch                  = errors.New("ref compare-and-swap mismatch")
	ErrRefUpdatedButReflogAppendFailed = errors.New("ref updated but reflog append failed")
	ErrSymbolicRef                     = errors.New("reference is symbolic")
)

// RefUpdateReflogError indicates the ref file update succeeded, but appending
// the corresponding reflog entry failed.
type RefUpdateReflogError struct {
	Ref     string
	OldHash object.Hash
	NewHash object.Hash
	Err     error
}

func (e *RefUpdateReflogError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf(
		"update ref %q: %s (old=%s new=%s): %v",
		e.Ref,
		ErrRefUpdatedButReflogAppendFailed,
		e.OldHash,
		e.NewHash,
		e.Err,
	)
}

func (e *RefUpdateReflogError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *RefUpdateReflogError) Is(target error) bool {
	return target == ErrRefUpdatedButReflogAppendFailed
}

// ResolveRef resolves a possibly abbreviated ref name to an object hash,
// following symbolic refs. Lookup order is that of refs.Store.Find, with
// the packed table consulted after loose files.
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	buf, err := r.Refs.Packed()
	if err != nil {
		return "", fmt.Errorf("resolve ref %q: %w", name, err)
	}
	ref, err := r.Refs.FindExisting(name, buf)
	if err != nil {
		return "", fmt.Errorf("resolve ref %q: %w", name, err)
	}
	final, err := r.Refs.Follow(ref, buf)
	if err != nil {
		return "", fmt.Errorf("resolve ref %q: %w", name, err)
	}
	return final.Target.ID, nil
}

// UpdateRef writes a hash to the named ref. Parent directories are created
// as needed.
func (r *Repo) UpdateRef(name string, h object.Hash) error {
	return r.UpdateRefCAS(name, h)
}

// UpdateRefCAS writes a hash to the named loose ref using lockfile + rename
// atomic semantics. If expectedOld is provided, the update only succeeds
// when the current hash, loose or packed, matches it; an empty expectedOld
// requires the ref to be absent.
//
// Reflog append happens after the ref rename; if reflog append fails, the ref
// update remains committed and a RefUpdateReflogError is returned.
func (r *Repo) UpdateRefCAS(name string, h object.Hash, expectedOld ...object.Hash) error {
	if len(expectedOld) > 1 {
		return fmt.Errorf("update ref %q: expected at most one old hash", name)
	}
	full, err := refname.ParseFull(name)
	if err != nil {
		return fmt.Errorf("update ref: %w", err)
	}
	if err := r.checkHash(h); err != nil {
		return fmt.Errorf("update ref %q: %w", name, err)
	}
	if len(expectedOld) == 1 && expectedOld[0] != "" {
		if err := r.checkHash(expectedOld[0]); err != nil {
			return fmt.Errorf("update ref %q: expected old: %w", name, err)
		}
	}

	refPath := filepath.Join(r.GotDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return fmt.Errorf("update ref %q: mkdir: %w", name, err)
	}

	lock, err := lockfile.Acquire(refPath, r.LockMode())
	if err != nil {
		return fmt.Errorf("update ref %q: lock: %w", name, err)
	}

	oldHash, err := r.currentHash(full)
	if err != nil {
		lock.Close()
		return fmt.Errorf("update ref %q: read old hash: %w", name, err)
	}
	if len(expectedOld) == 1 && oldHash != expectedOld[0] {
		lock.Close()
		return fmt.Errorf(
			"update ref %q: %w (expected %s, found %s)",
			name,
			ErrRefCASMismatch,
			expectedOld[0],
			oldHash,
		)
	}

	if _, err := lock.Write(refs.Encode(refs.Target{Kind: refs.Peeled, ID: h})); err != nil {
		lock.Close()
		return fmt.Errorf("update ref %q: write: %w", name, err)
	}
	if err := lock.Commit(); err != nil {
		return fmt.Errorf("update ref %q: %w", name, err)
	}
	r.logger.Debug("updated ref", "ref", name, "old", oldHash, "new", h)

	if err := r.appendReflog(name, oldHash, h, "update"); err != nil {
		return &RefUpdateReflogError{
			Ref:     name,
			OldHash: oldHash,
			NewHash: h,
			Err:     err,
		}
	}
	return nil
}

// DeleteRef removes a ref from both the packed table and its loose file.
// If expectedOld is provided the current hash must match it.
func (r *Repo) DeleteRef(name string, expectedOld ...object.Hash) error {
	if len(expectedOld) > 1 {
		return fmt.Errorf("delete ref %q: expected at most one old hash", name)
	}
	full, err := refname.ParseFull(name)
	if err != nil {
		return fmt.Errorf("delete ref: %w", err)
	}

	refPath := filepath.Join(r.GotDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return fmt.Errorf("delete ref %q: mkdir: %w", name, err)
	}
	lock, err := lockfile.Acquire(refPath, r.LockMode())
	if err != nil {
		return fmt.Errorf("delete ref %q: lock: %w", name, err)
	}
	defer lock.Close()

	oldHash, err := r.currentHash(full)
	if err != nil {
		return fmt.Errorf("delete ref %q: %w", name, err)
	}
	if oldHash == "" {
		return fmt.Errorf("delete ref %q: %w", name, refs.ErrNotFound)
	}
	if len(expectedOld) == 1 && oldHash != expectedOld[0] {
		return fmt.Errorf(
			"delete ref %q: %w (expected %s, found %s)",
			name,
			ErrRefCASMismatch,
			expectedOld[0],
			oldHash,
		)
	}

	tx, err := r.Refs.PackedTransaction(r.LockMode())
	if err != nil {
		return fmt.Errorf("delete ref %q: %w", name, err)
	}
	defer tx.Rollback()
	if err := tx.Prepare([]packed.Edit{{Name: full, Change: packed.Delete{}}}); err != nil {
		return fmt.Errorf("delete ref %q: %w", name, err)
	}
	if _, _, err := tx.Commit(); err != nil {
		return fmt.Errorf("delete ref %q: %w", name, err)
	}

	if err := os.Remove(refPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete ref %q: %w", name, err)
	}
	if err := os.Remove(r.reflogPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete ref %q: remove reflog: %w", name, err)
	}
	r.logger.Info("deleted ref", "ref", name, "old", oldHash)
	return nil
}

// currentHash returns the id full points at, checking the loose file and
// then the packed table. It returns "" if the ref does not exist.
func (r *Repo) currentHash(full refname.FullName) (object.Hash, error) {
	buf, err := r.Refs.Packed()
	if err != nil {
		return "", err
	}
	ref, ok, err := r.Refs.Find(string(full), buf)
	if err != nil {
		return "", err
	}
	if !ok || ref.Name != full {
		return "", nil
	}
	if ref.Target.Kind == refs.Symbolic {
		return "", fmt.Errorf("%w: %s -> %s", ErrSymbolicRef, full, ref.Target.Name)
	}
	return ref.Target.ID, nil
}

// ListRefs lists references whose full names start with prefix, e.g.
// "refs/heads/". Loose refs shadow packed ones.
func (r *Repo) ListRefs(prefix string) ([]refs.Reference, error) {
	buf, err := r.Refs.Packed()
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	out, err := r.Refs.Iter(prefix, buf)
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return out, nil
}
