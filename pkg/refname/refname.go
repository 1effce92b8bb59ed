// Package refname validates reference names using git's check-ref-format
// rules and distinguishes fully qualified names from user-supplied partial
// ones.
package refname

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalid = errors.New("invalid reference name")

// Error describes why a name was rejected.
type Error struct {
	Name   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrInvalid, e.Name, e.Reason)
}

func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

// FullName is a validated reference path such as "refs/heads/main" or "HEAD".
type FullName string

// PartialName is a validated, possibly abbreviated name such as "main" or
// "origin/main".
type PartialName string

const (
	PrefixHeads   = "refs/heads/"
	PrefixTags    = "refs/tags/"
	PrefixRemotes = "refs/remotes/"
	PrefixRefs    = "refs/"
)

// ParseFull validates s as a full reference name. One-level names are only
// accepted when they consist of uppercase letters and underscores.
func ParseFull(s string) (FullName, error) {
	if err := check(s); err != nil {
		return "", err
	}
	if !strings.Contains(s, "/") && !IsSpecial(s) {
		return "", &Error{Name: s, Reason: "one-level names must be all uppercase"}
	}
	return FullName(s), nil
}

// MustFull is like ParseFull but panics on invalid input. Intended for
// constants.
func MustFull(s string) FullName {
	n, err := ParseFull(s)
	if err != nil {
		panic(err)
	}
	return n
}

// ParsePartial validates s as a partial reference name.
func ParsePartial(s string) (PartialName, error) {
	if err := check(s); err != nil {
		return "", err
	}
	return PartialName(s), nil
}

// IsSpecial reports whether s is a single component made only of uppercase
// ASCII letters and underscores, like HEAD or FETCH_HEAD.
func IsSpecial(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && c != '_' {
			return false
		}
	}
	return true
}

func check(s string) error {
	if s == "" {
		return &Error{Name: s, Reason: "empty"}
	}
	if s == "@" {
		return &Error{Name: s, Reason: "a lone @ is reserved"}
	}
	if strings.HasPrefix(s, "/") || strings.HasSuffix(s, "/") {
		return &Error{Name: s, Reason: "leading or trailing slash"}
	}
	if strings.HasSuffix(s, ".") {
		return &Error{Name: s, Reason: "trailing dot"}
	}
	if strings.Contains(s, "..") {
		return &Error{Name: s, Reason: "contains .."}
	}
	if strings.Contains(s, "@{") {
		return &Error{Name: s, Reason: "contains @{"}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c == 0x7f {
			return &Error{Name: s, Reason: "contains a control character"}
		}
		switch c {
		case ' ', '~', '^', ':', '?', '*', '[', '\\':
			return &Error{Name: s, Reason: fmt.Sprintf("contains %q", c)}
		}
	}
	for _, comp := range strings.Split(s, "/") {
		switch {
		case comp == "":
			return &Error{Name: s, Reason: "empty path component"}
		case strings.HasPrefix(comp, "."):
			return &Error{Name: s, Reason: "component starts with a dot"}
		case strings.HasSuffix(comp, ".lock"):
			return &Error{Name: s, Reason: "component ends with .lock"}
		}
	}
	return nil
}

func (n FullName) String() string { return string(n) }

func (p PartialName) String() string { return string(p) }

// IsQualified reports whether the partial name already starts with refs/.
func (p PartialName) IsQualified() bool {
	return strings.HasPrefix(string(p), PrefixRefs)
}

// Short strips the well-known category prefix, e.g. "refs/heads/main" -> "main".
func (n FullName) Short() string {
	s := string(n)
	for _, prefix := range []string{PrefixHeads, PrefixTags, PrefixRemotes, PrefixRefs} {
		if strings.HasPrefix(s, prefix) {
			return strings.TrimPrefix(s, prefix)
		}
	}
	return s
}

// Category names the group a reference belongs to.
type Category int

const (
	CategoryOther Category = iota
	CategoryLocalBranch
	CategoryTag
	CategoryRemoteBranch
	CategoryPseudo
)

func (c Category) String() string {
	switch c {
	case CategoryLocalBranch:
		return "branch"
	case CategoryTag:
		return "tag"
	case CategoryRemoteBranch:
		return "remote"
	case CategoryPseudo:
		return "pseudo"
	default:
		return "other"
	}
}

func (n FullName) Category() Category {
	s := string(n)
	switch {
	case strings.HasPrefix(s, PrefixHeads):
		return CategoryLocalBranch
	case strings.HasPrefix(s, PrefixTags):
		return CategoryTag
	case strings.HasPrefix(s, PrefixRemotes):
		return CategoryRemoteBranch
	case IsSpecial(s):
		return CategoryPseudo
	default:
		return CategoryOther
	}
}
