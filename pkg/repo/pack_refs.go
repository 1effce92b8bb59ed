package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/odvcencio/refstore/pkg/lockfile"
	"github.com/odvcencio/refstore/pkg/refs"
	"github.com/odvcencio/refstore/pkg/refs/packed"
)

// PackSummary reports what PackRefs did.
type PackSummary struct {
	Packed int // loose refs written to the packed table
	Pruned int // loose files removed afterwards
}

// PackRefs moves every loose, non-symbolic ref under refs/ into the packed
// table in one transaction, then removes the loose files that still hold
// the packed value. Refs whose packed row already matches are left as they
// are, so a recorded peeled id survives.
func (r *Repo) PackRefs() (*PackSummary, error) {
	loose, err := r.Refs.Loose(refsPrefix)
	if err != nil {
		return nil, fmt.Errorf("pack refs: %w", err)
	}

	tx, err := r.Refs.PackedTransaction(r.LockMode())
	if err != nil {
		return nil, fmt.Errorf("pack refs: %w", err)
	}
	defer tx.Rollback()

	snapshot := tx.Buffer()
	var edits []packed.Edit
	for _, ref := range loose {
		if ref.Target.Kind != refs.Peeled {
			continue
		}
		if e, ok := snapshot.Find(ref.Name); ok && e.Target == ref.Target.ID {
			continue
		}
		edits = append(edits, packed.Edit{Name: ref.Name, Change: packed.Update{New: ref.Target.ID}})
	}

	if err := tx.Prepare(edits); err != nil {
		return nil, fmt.Errorf("pack refs: %w", err)
	}
	applied, _, err := tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("pack refs: %w", err)
	}

	summary := &PackSummary{Packed: len(applied)}
	for _, ref := range loose {
		if ref.Target.Kind != refs.Peeled {
			continue
		}
		pruned, err := r.pruneLoose(ref)
		if err != nil {
			return summary, fmt.Errorf("pack refs: %w", err)
		}
		if pruned {
			summary.Pruned++
		}
	}
	r.logger.Info("packed refs", "packed", summary.Packed, "pruned", summary.Pruned)
	return summary, nil
}

const refsPrefix = "refs/"

// pruneLoose removes the loose file for ref if it still holds the value that
// was packed.
func (r *Repo) pruneLoose(ref refs.Reference) (bool, error) {
	refPath := filepath.Join(r.GotDir, filepath.FromSlash(string(ref.Name)))
	lock, err := lockfile.Acquire(refPath, r.LockMode())
	if err != nil {
		return false, err
	}
	defer lock.Close()

	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	current, err := refs.Decode(data)
	if err != nil || current != ref.Target {
		return false, nil
	}
	if err := os.Remove(refPath); err != nil {
		return false, err
	}
	return true, nil
}
