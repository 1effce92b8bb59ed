package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/refstore/pkg/object"
	"github.com/odvcencio/refstore/pkg/refname"
	"github.com/odvcencio/refstore/pkg/refs"
)

// CreateBranch creates a new branch pointing at the given target hash.
// Returns an error if the branch already exists, loose or packed.
func (r *Repo) CreateBranch(name string, target object.Hash) error {
	refName := refname.PrefixHeads + name
	if err := r.UpdateRefCAS(refName, target, ""); err != nil {
		if errors.Is(err, ErrRefCASMismatch) {
			return fmt.Errorf("create branch: branch %q already exists", name)
		}
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	return nil
}

// DeleteBranch removes refs/heads/<name>. Returns an error if the branch is
// the current branch or does not exist.
func (r *Repo) DeleteBranch(name string) error {
	current, err := r.CurrentBranch()
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if current == name {
		return fmt.Errorf("delete branch: cannot delete current branch %q", name)
	}

	if err := r.DeleteRef(refname.PrefixHeads + name); err != nil {
		if errors.Is(err, refs.ErrNotFound) {
			return fmt.Errorf("delete branch: branch %q does not exist", name)
		}
		return fmt.Errorf("delete branch %q: %w", name, err)
	}
	return nil
}

// ListBranches returns the branch names sorted alphabetically.
func (r *Repo) ListBranches() ([]string, error) {
	heads, err := r.ListRefs(refname.PrefixHeads)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	names := make([]string, 0, len(heads))
	for _, ref := range heads {
		names = append(names, strings.TrimPrefix(string(ref.Name), refname.PrefixHeads))
	}
	return names, nil
}
