package snapshot

import (
	"fmt"
	"io"

	"github.com/odvcencio/refstore/pkg/lockfile"
	"github.com/odvcencio/refstore/pkg/refname"
	"github.com/odvcencio/refstore/pkg/refs"
	"github.com/odvcencio/refstore/pkg/refs/packed"
)

// Result reports what Import did.
type Result struct {
	Packed int // references written to the packed table
	Loose  int // symbolic or special references written as loose files
	// Shadowed lists imported names whose value is hidden by a loose file
	// holding something else.
	Shadowed []refname.FullName
}

// Import reads a snapshot from r and applies it to store. Object ids land in
// the packed table through one transaction; symbolic references and special
// names such as HEAD are written as loose files. Unless WithForce is given,
// a packed reference with a different value, or a loose file for one of the
// symbolic or special names holding something else, aborts the import
// before anything is written.
func Import(r io.Reader, store *refs.Store, mode lockfile.Fail, opts ...Option) (*Result, error) {
	o := newOptions(opts)
	entries, err := Read(r, o.trusted)
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	res, err := Apply(store, entries, mode, o.force)
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	o.logger.Info("imported refs", "packed", res.Packed, "loose", res.Loose, "shadowed", len(res.Shadowed))
	return res, nil
}

// Apply writes entries to store as Import does.
func Apply(store *refs.Store, entries []Entry, mode lockfile.Fail, force bool) (*Result, error) {
	var edits []packed.Edit
	var loose []Entry
	for _, e := range entries {
		if e.Target.Kind == refs.Symbolic || refname.IsSpecial(string(e.Name)) {
			loose = append(loose, e)
			continue
		}
		expected := packed.ExistingMustMatch(e.Target.ID)
		if force {
			expected = packed.Any()
		}
		edits = append(edits, packed.Edit{
			Name:   e.Name,
			Change: packed.Update{New: e.Target.ID, Peeled: e.Peeled, Expected: expected},
		})
	}

	if !force {
		for _, e := range loose {
			cur, ok, err := store.LooseTarget(e.Name)
			if err != nil {
				return nil, err
			}
			if ok && cur != e.Target {
				return nil, fmt.Errorf("%w: %s (expected absent or %s, found %s)", packed.ErrConflict, e.Name, e.Target, cur)
			}
		}
	}

	tx, err := store.PackedTransaction(mode)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := tx.Prepare(edits); err != nil {
		return nil, err
	}
	applied, buf, err := tx.Commit()
	if err != nil {
		return nil, err
	}

	res := &Result{Packed: len(applied)}
	for _, e := range loose {
		if err := store.WriteLoose(e.Name, e.Target, mode); err != nil {
			return res, err
		}
		res.Loose++
	}

	for _, edit := range edits {
		ref, ok, err := store.Find(string(edit.Name), buf)
		if err != nil {
			return res, err
		}
		want := edit.Change.(packed.Update).New
		if !ok || ref.Target.Kind != refs.Peeled || ref.Target.ID != want {
			res.Shadowed = append(res.Shadowed, edit.Name)
		}
	}
	return res, nil
}
