package repo

import (
	"errors"
	"fmt"

	"github.com/odvcencio/refstore/pkg/object"
	"github.com/odvcencio/refstore/pkg/refname"
	"github.com/odvcencio/refstore/pkg/refs"
)

// HeadKind describes what HEAD currently points at.
type HeadKind int

const (
	// HeadSymbolic: HEAD names an existing reference. The common case.
	HeadSymbolic HeadKind = iota + 1
	// HeadUnborn: HEAD names a reference that does not exist yet, as in a
	// freshly initialized repository.
	HeadUnborn
	// HeadDetached: HEAD holds an object id directly.
	HeadDetached
)

func (k HeadKind) String() string {
	switch k {
	case HeadSymbolic:
		return "symbolic"
	case HeadUnborn:
		return "unborn"
	case HeadDetached:
		return "detached"
	default:
		return "unknown"
	}
}

// Head is the resolved state of HEAD. Referent is set unless detached;
// Target is set unless unborn. Peeled is the packed table's peeled id for
// the final reference, if one was recorded.
type Head struct {
	Kind     HeadKind
	Referent refname.FullName
	Target   object.Hash
	Peeled   object.Hash
}

// ReferentName returns the reference HEAD points to, or false if detached.
func (h Head) ReferentName() (refname.FullName, bool) {
	if h.Kind == HeadDetached {
		return "", false
	}
	return h.Referent, true
}

func (h Head) IsDetached() bool { return h.Kind == HeadDetached }

// ID returns the id HEAD resolves to, preferring the peeled id. Unborn heads
// have none.
func (h Head) ID() (object.Hash, bool) {
	if h.Kind == HeadUnborn {
		return "", false
	}
	if h.Peeled != "" {
		return h.Peeled, true
	}
	return h.Target, true
}

// Head reads .got/HEAD and classifies it.
func (r *Repo) Head() (Head, error) {
	buf, err := r.Refs.Packed()
	if err != nil {
		return Head{}, fmt.Errorf("head: %w", err)
	}
	head, err := r.Refs.FindExisting("HEAD", buf)
	if err != nil {
		return Head{}, fmt.Errorf("head: %w", err)
	}
	if head.Target.Kind == refs.Peeled {
		return Head{Kind: HeadDetached, Target: head.Target.ID}, nil
	}

	final, err := r.Refs.Follow(head, buf)
	if errors.Is(err, refs.ErrNotFound) {
		return Head{Kind: HeadUnborn, Referent: head.Target.Name}, nil
	}
	if err != nil {
		return Head{}, fmt.Errorf("head: %w", err)
	}
	return Head{
		Kind:     HeadSymbolic,
		Referent: head.Target.Name,
		Target:   final.Target.ID,
		Peeled:   final.Peeled,
	}, nil
}

// SetHead points HEAD at the given full reference name.
func (r *Repo) SetHead(name string) error {
	full, err := refname.ParseFull(name)
	if err != nil {
		return fmt.Errorf("set head: %w", err)
	}
	target := refs.Target{Kind: refs.Symbolic, Name: full}
	if err := r.Refs.WriteLoose("HEAD", target, r.LockMode()); err != nil {
		return fmt.Errorf("set head: %w", err)
	}
	return nil
}

// DetachHead points HEAD directly at h.
func (r *Repo) DetachHead(h object.Hash) error {
	if err := r.checkHash(h); err != nil {
		return fmt.Errorf("detach head: %w", err)
	}
	if err := r.Refs.WriteLoose("HEAD", refs.Target{Kind: refs.Peeled, ID: h}, r.LockMode()); err != nil {
		return fmt.Errorf("detach head: %w", err)
	}
	return nil
}

// CurrentBranch returns the branch name if HEAD is attached to a branch
// (e.g. "ref: refs/heads/main" → "main"), including an unborn one. If HEAD
// is detached it returns "".
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}
	name, ok := head.ReferentName()
	if !ok || name.Category() != refname.CategoryLocalBranch {
		return "", nil
	}
	return name.Short(), nil
}
