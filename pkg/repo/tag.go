package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/refstore/pkg/object"
	"github.com/odvcencio/refstore/pkg/refname"
	"github.com/odvcencio/refstore/pkg/refs"
)

// CreateTag creates or updates a lightweight tag ref under refs/tags/.
func (r *Repo) CreateTag(name string, target object.Hash, force bool) error {
	name = strings.TrimSpace(name)
	if err := validateTagName(name); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}

	refName := refname.PrefixTags + name
	var err error
	if force {
		err = r.UpdateRef(refName, target)
	} else {
		err = r.UpdateRefCAS(refName, target, "")
	}
	if errors.Is(err, ErrRefCASMismatch) {
		return fmt.Errorf("create tag: tag %q already exists", name)
	}
	if err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

// DeleteTag removes a tag ref from refs/tags/, loose or packed.
func (r *Repo) DeleteTag(name string) error {
	name = strings.TrimSpace(name)
	if err := validateTagName(name); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if err := r.DeleteRef(refname.PrefixTags + name); err != nil {
		if errors.Is(err, refs.ErrNotFound) {
			return fmt.Errorf("delete tag: tag %q does not exist", name)
		}
		return fmt.Errorf("delete tag: %w", err)
	}
	return nil
}

// ResolveTag returns the id the tag points at. When the packed table
// recorded a peeled id for the tag, that id is returned instead.
func (r *Repo) ResolveTag(name string) (object.Hash, error) {
	name = strings.TrimSpace(name)
	if err := validateTagName(name); err != nil {
		return "", fmt.Errorf("resolve tag: %w", err)
	}
	buf, err := r.Refs.Packed()
	if err != nil {
		return "", fmt.Errorf("resolve tag %q: %w", name, err)
	}
	ref, err := r.Refs.FindExisting(refname.PrefixTags+name, buf)
	if err != nil {
		return "", fmt.Errorf("resolve tag %q: %w", name, err)
	}
	ref, err = r.Refs.Follow(ref, buf)
	if err != nil {
		return "", fmt.Errorf("resolve tag %q: %w", name, err)
	}
	if ref.Peeled != "" {
		return ref.Peeled, nil
	}
	return ref.Target.ID, nil
}

// ListTags returns every tag sorted by name, including the peeled id when
// the packed table recorded one.
func (r *Repo) ListTags() ([]refs.Reference, error) {
	tags, err := r.ListRefs(refname.PrefixTags)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

func validateTagName(name string) error {
	if name == "" {
		return fmt.Errorf("tag name is required")
	}
	if _, err := refname.ParseFull(refname.PrefixTags + name); err != nil {
		return err
	}
	return nil
}
