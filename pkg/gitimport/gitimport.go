// Package gitimport copies the references of an existing git repository
// into a reference store.
package gitimport

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-git/go-billy/v5/osfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/odvcencio/refstore/pkg/lockfile"
	"github.com/odvcencio/refstore/pkg/object"
	"github.com/odvcencio/refstore/pkg/refname"
	"github.com/odvcencio/refstore/pkg/refs"
	"github.com/odvcencio/refstore/pkg/snapshot"
)

// Open opens the git repository containing path, searching parent
// directories for .git like git itself does.
func Open(path string) (*gogit.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open git repository %q: %w", path, err)
	}
	return repo, nil
}

// OpenGitDir opens a git directory directly, such as a bare repository or
// the .git directory of a work tree.
func OpenGitDir(gitDir string) (*gogit.Repository, error) {
	st := filesystem.NewStorage(osfs.New(gitDir), cache.NewObjectLRUDefault())
	repo, err := gogit.Open(st, nil)
	if err != nil {
		return nil, fmt.Errorf("open git directory %q: %w", gitDir, err)
	}
	return repo, nil
}

// Entries lists every reference of repo. Annotated tags carry the id of the
// object they point at as their peeled id. References whose names this
// store would reject are skipped and returned separately.
func Entries(repo *gogit.Repository) ([]snapshot.Entry, []string, error) {
	iter, err := repo.References()
	if err != nil {
		return nil, nil, fmt.Errorf("list git references: %w", err)
	}
	defer iter.Close()

	var out []snapshot.Entry
	var skipped []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name, err := refname.ParseFull(ref.Name().String())
		if err != nil {
			skipped = append(skipped, ref.Name().String())
			return nil
		}
		e := snapshot.Entry{Name: name}
		switch ref.Type() {
		case plumbing.SymbolicReference:
			to, err := refname.ParseFull(ref.Target().String())
			if err != nil {
				skipped = append(skipped, ref.Name().String())
				return nil
			}
			e.Target = refs.Target{Kind: refs.Symbolic, Name: to}
		case plumbing.HashReference:
			id, err := object.ParseHash(ref.Hash().String())
			if err != nil {
				return fmt.Errorf("reference %s: %w", ref.Name(), err)
			}
			e.Target = refs.Target{Kind: refs.Peeled, ID: id}
			if peeled, ok, err := peel(repo, ref.Hash()); err != nil {
				return fmt.Errorf("reference %s: %w", ref.Name(), err)
			} else if ok {
				e.Peeled = peeled
			}
		default:
			skipped = append(skipped, ref.Name().String())
			return nil
		}
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("list git references: %w", err)
	}
	return out, skipped, nil
}

// peel follows annotated tags starting at h down to the first object that
// is not a tag. It reports false if h is not an annotated tag.
func peel(repo *gogit.Repository, h plumbing.Hash) (object.Hash, bool, error) {
	target, tagged := h, false
	for depth := 0; depth < maxTagDepth; depth++ {
		tag, err := repo.TagObject(target)
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			break
		}
		if err != nil {
			return "", false, err
		}
		target, tagged = tag.Target, true
	}
	if !tagged {
		return "", false, nil
	}
	id, err := object.ParseHash(target.String())
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

const maxTagDepth = 16

// Result reports what Import did.
type Result struct {
	snapshot.Result
	Skipped []string // git references with names the store rejects
}

// Import copies every reference of repo into store. Object ids go to the
// packed table in one transaction; HEAD and symbolic references are written
// as loose files.
func Import(repo *gogit.Repository, store *refs.Store, mode lockfile.Fail, force bool, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, skipped, err := Entries(repo)
	if err != nil {
		return nil, fmt.Errorf("import git: %w", err)
	}
	applied, err := snapshot.Apply(store, entries, mode, force)
	if err != nil {
		return nil, fmt.Errorf("import git: %w", err)
	}
	for _, name := range skipped {
		logger.Warn("skipped git reference", "ref", name)
	}
	logger.Info("imported git refs", "packed", applied.Packed, "loose", applied.Loose, "skipped", len(skipped))
	return &Result{Result: *applied, Skipped: skipped}, nil
}
