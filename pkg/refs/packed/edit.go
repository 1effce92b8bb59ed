package packed

import (
	"errors"
	"fmt"

	"github.com/odvcencio/refstore/pkg/object"
	"github.com/odvcencio/refstore/pkg/refname"
)

var (
	ErrConflict      = errors.New("reference precondition failed")
	ErrDuplicateEdit = errors.New("reference edited more than once")
)

// Edit is a requested change to a single reference.
type Edit struct {
	Name   refname.FullName
	Change Change
}

// Change is either an Update or a Delete.
type Change interface {
	expected() PreviousValue
}

// Update points Name at New. Peeled optionally records the id New peels to.
type Update struct {
	New      object.Hash
	Peeled   object.Hash
	Expected PreviousValue
}

// Delete removes Name.
type Delete struct {
	Expected PreviousValue
}

func (u Update) expected() PreviousValue { return u.Expected }
func (d Delete) expected() PreviousValue { return d.Expected }

type previousKind int

const (
	previousAny previousKind = iota
	previousMustExist
	previousMustNotExist
	previousMustExistAndMatch
	previousExistingMustMatch
)

// PreviousValue is the state a reference must be in for an edit to apply.
// The zero value accepts any state.
type PreviousValue struct {
	kind previousKind
	hash object.Hash
}

func Any() PreviousValue          { return PreviousValue{} }
func MustExist() PreviousValue    { return PreviousValue{kind: previousMustExist} }
func MustNotExist() PreviousValue { return PreviousValue{kind: previousMustNotExist} }

// MustExistAndMatch requires the reference to exist and point at h.
func MustExistAndMatch(h object.Hash) PreviousValue {
	return PreviousValue{kind: previousMustExistAndMatch, hash: h}
}

// ExistingMustMatch requires the reference to point at h if it exists.
func ExistingMustMatch(h object.Hash) PreviousValue {
	return PreviousValue{kind: previousExistingMustMatch, hash: h}
}

func (p PreviousValue) String() string {
	switch p.kind {
	case previousMustExist:
		return "must exist"
	case previousMustNotExist:
		return "must not exist"
	case previousMustExistAndMatch:
		return "must be " + string(p.hash)
	case previousExistingMustMatch:
		return "must be absent or " + string(p.hash)
	default:
		return "any"
	}
}

func (p PreviousValue) satisfiedBy(current object.Hash, exists bool) bool {
	switch p.kind {
	case previousMustExist:
		return exists
	case previousMustNotExist:
		return !exists
	case previousMustExistAndMatch:
		return exists && current == p.hash
	case previousExistingMustMatch:
		return !exists || current == p.hash
	default:
		return true
	}
}

// ConflictError reports an edit whose precondition did not hold against the
// packed snapshot. Actual is empty when the reference was absent.
type ConflictError struct {
	Name     refname.FullName
	Expected PreviousValue
	Actual   object.Hash
}

func (e *ConflictError) Error() string {
	actual := string(e.Actual)
	if actual == "" {
		actual = "absent"
	}
	return fmt.Sprintf("%s: %s (expected %s, found %s)", ErrConflict, e.Name, e.Expected, actual)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func validateEdit(e Edit) error {
	if _, err := refname.ParseFull(string(e.Name)); err != nil {
		return err
	}
	switch c := e.Change.(type) {
	case Update:
		if _, err := object.ParseHash(string(c.New)); err != nil {
			return fmt.Errorf("edit %s: %w", e.Name, err)
		}
		if c.Peeled != "" {
			if _, err := object.ParseHash(string(c.Peeled)); err != nil {
				return fmt.Errorf("edit %s: peeled: %w", e.Name, err)
			}
		}
	case Delete:
	default:
		return fmt.Errorf("edit %s: unsupported change %T", e.Name, e.Change)
	}
	return nil
}
