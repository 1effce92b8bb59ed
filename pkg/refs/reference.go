package refs

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/odvcencio/refstore/pkg/object"
	"github.com/odvcencio/refstore/pkg/refname"
	"github.com/odvcencio/refstore/pkg/refs/packed"
)

const symbolicPrefix = "ref: "

var ErrMalformed = errors.New("malformed reference content")

// TargetKind tells whether a reference points at an object or at another
// reference.
type TargetKind int

const (
	Peeled TargetKind = iota + 1
	Symbolic
)

func (k TargetKind) String() string {
	switch k {
	case Peeled:
		return "peeled"
	case Symbolic:
		return "symbolic"
	default:
		return "unknown"
	}
}

// Target is what a reference points to. ID is set for Peeled targets and
// Name for Symbolic ones.
type Target struct {
	Kind TargetKind
	ID   object.Hash
	Name refname.FullName
}

func (t Target) String() string {
	if t.Kind == Symbolic {
		return symbolicPrefix + string(t.Name)
	}
	return string(t.ID)
}

// Reference is the result of a lookup. It is built fresh from what was read
// and is never cached by the store. Peeled holds the fully peeled id when
// the packed table recorded one.
type Reference struct {
	Name   refname.FullName
	Target Target
	Peeled object.Hash
}

// DecodeError reports loose reference content that is neither an object id
// nor a symbolic redirect.
type DecodeError struct {
	Path    string
	Content string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("reference at %q could not be decoded: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode classifies the raw bytes of a loose reference file.
func Decode(data []byte) (Target, error) {
	content := bytes.TrimRight(data, "\r\n")
	if rest, ok := bytes.CutPrefix(content, []byte(symbolicPrefix)); ok {
		name, err := refname.ParseFull(string(bytes.TrimSpace(rest)))
		if err != nil {
			return Target{}, fmt.Errorf("%w: symbolic target: %w", ErrMalformed, err)
		}
		return Target{Kind: Symbolic, Name: name}, nil
	}
	id, err := object.ParseHash(string(bytes.TrimSpace(content)))
	if err != nil {
		return Target{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return Target{Kind: Peeled, ID: id}, nil
}

// Encode returns the loose file content for t.
func Encode(t Target) []byte {
	return []byte(t.String() + "\n")
}

func fromPacked(e packed.Entry) Reference {
	return Reference{
		Name:   e.Name,
		Target: Target{Kind: Peeled, ID: e.Target},
		Peeled: e.Peeled,
	}
}
