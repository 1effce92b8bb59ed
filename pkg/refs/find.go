package refs

import (
	"errors"
	"fmt"
	"path"

	"github.com/odvcencio/refstore/pkg/refname"
	"github.com/odvcencio/refstore/pkg/refs/packed"
)

var ErrNotFound = errors.New("reference not found")

// NotFoundError is returned by FindExisting when no candidate matched.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("the reference partially named %q could not be found", e.Name)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// transform decides how a candidate path is built from a partial name.
type transform int

const (
	// transformNone uses the partial name as is.
	transformNone transform = iota
	// transformEnforceRefsPrefix places the candidate beneath refs/.
	transformEnforceRefsPrefix
)

// searchPrefixes is the precedence list of directories below refs/.
var searchPrefixes = []string{"", "tags", "heads", "remotes"}

// candidate builds the path to try for partial below prefix. It reports
// false when the combination cannot name a reference.
func (t transform) candidate(prefix string, partial refname.PartialName) (string, bool) {
	switch t {
	case transformNone:
		return path.Join(prefix, string(partial)), true
	case transformEnforceRefsPrefix:
		if partial.IsQualified() {
			// Already below refs/; inserting a prefix would leave refs/.
			return string(partial), prefix == ""
		}
		return path.Join("refs", prefix, string(partial)), true
	}
	panic(fmt.Sprintf("refs: unknown transform %d", t))
}

// allowsPacked reports whether candidates built this way may be looked up
// in the packed table.
func (t transform) allowsPacked() bool {
	return t == transformEnforceRefsPrefix
}

// Find resolves a partial name. If buf is non-nil the search also consults
// the packed table. A name that matches nothing yields ok == false and no
// error.
//
// Candidates are tried in this order, the first hit wins:
//  1. the bare name, loose only, if it is a one-level uppercase name like HEAD
//  2. refs/<name>, refs/tags/<name>, refs/heads/<name>, refs/remotes/<name>,
//     each loose first and then packed
//  3. refs/remotes/<name>/HEAD, loose only
func (s *Store) Find(partial string, buf *packed.Buffer) (Reference, bool, error) {
	name, err := refname.ParsePartial(partial)
	if err != nil {
		return Reference{}, false, fmt.Errorf("find %q: %w", partial, err)
	}
	return s.find(name, buf)
}

// FindExisting is like Find but reports a missing reference as a
// NotFoundError carrying the requested name.
func (s *Store) FindExisting(partial string, buf *packed.Buffer) (Reference, error) {
	ref, ok, err := s.Find(partial, buf)
	if err != nil {
		return Reference{}, err
	}
	if !ok {
		return Reference{}, &NotFoundError{Name: partial}
	}
	return ref, nil
}

func (s *Store) find(name refname.PartialName, buf *packed.Buffer) (Reference, bool, error) {
	if refname.IsSpecial(string(name)) {
		ref, ok, err := s.findInner("", name, nil, transformNone)
		if err != nil || ok {
			return ref, ok, err
		}
	}

	for _, prefix := range searchPrefixes {
		ref, ok, err := s.findInner(prefix, name, buf, transformEnforceRefsPrefix)
		if err != nil || ok {
			return ref, ok, err
		}
	}

	if name.IsQualified() {
		return Reference{}, false, nil
	}
	return s.findInner("remotes", refname.PartialName(path.Join(string(name), "HEAD")), nil, transformEnforceRefsPrefix)
}

func (s *Store) findInner(prefix string, partial refname.PartialName, buf *packed.Buffer, t transform) (Reference, bool, error) {
	rel, ok := t.candidate(prefix, partial)
	if !ok {
		return Reference{}, false, nil
	}

	data, err := s.readLoose(rel)
	if err != nil {
		return Reference{}, false, fmt.Errorf("find %q: read %s: %w", partial, rel, err)
	}
	if data == nil {
		if buf == nil || !t.allowsPacked() {
			return Reference{}, false, nil
		}
		full, err := refname.ParseFull(rel)
		if err != nil {
			return Reference{}, false, fmt.Errorf("find %q: packed lookup: %w", partial, err)
		}
		e, found := buf.Find(full)
		if !found {
			return Reference{}, false, nil
		}
		s.logger.Debug("found packed reference", "name", full, "partial", partial)
		return fromPacked(e), true, nil
	}

	target, err := Decode(data)
	if err != nil {
		return Reference{}, false, &DecodeError{Path: s.referencePath(rel), Content: string(data), Err: err}
	}
	full, err := refname.ParseFull(rel)
	if err != nil {
		return Reference{}, false, fmt.Errorf("find %q: %w", partial, err)
	}
	s.logger.Debug("found loose reference", "name", full, "partial", partial)
	return Reference{Name: full, Target: target}, true, nil
}
