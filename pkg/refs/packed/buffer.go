// Package packed implements the packed reference table: a single sorted,
// line-oriented file holding many references, and the locked transaction
// used to rewrite it.
package packed

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/odvcencio/refstore/pkg/object"
	"github.com/odvcencio/refstore/pkg/refname"
)

// Header is written at the top of every table this package produces.
const Header = "# pack-refs with: peeled fully-peeled sorted \n"

const headerPrefix = "# pack-refs with:"

var ErrNotFound = errors.New("packed reference not found")

// ParseError reports a malformed line in a packed table.
type ParseError struct {
	Path   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse packed refs %q line %d: %s", e.Path, e.Line, e.Reason)
}

// Entry is one row of the table. Peeled is empty unless the reference is
// an annotated tag whose peeled id was recorded.
type Entry struct {
	Name   refname.FullName
	Target object.Hash
	Peeled object.Hash
}

// Buffer is an immutable, sorted snapshot of a packed table.
type Buffer struct {
	path    string
	entries []Entry
}

// Open reads and parses the table at path. A missing file yields a nil
// Buffer and no error.
func Open(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open packed refs: %w", err)
	}
	return FromBytes(path, data)
}

// Empty returns a Buffer with no entries that will be written to path.
func Empty(path string) *Buffer {
	return &Buffer{path: path}
}

// FromBytes parses data as a packed table backed by path.
func FromBytes(path string, data []byte) (*Buffer, error) {
	entries, err := parse(path, data)
	if err != nil {
		return nil, err
	}
	return &Buffer{path: path, entries: entries}, nil
}

func parse(path string, data []byte) ([]Entry, error) {
	var entries []Entry
	sorted := false
	lineNo := 0
	for len(data) > 0 {
		lineNo++
		var line []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			line, data = data, nil
		}
		if len(line) == 0 {
			return nil, &ParseError{Path: path, Line: lineNo, Reason: "empty line"}
		}

		switch line[0] {
		case '#':
			if lineNo != 1 || !bytes.HasPrefix(line, []byte(headerPrefix)) {
				return nil, &ParseError{Path: path, Line: lineNo, Reason: "unexpected comment"}
			}
			traits := " " + strings.TrimPrefix(string(line), headerPrefix) + " "
			sorted = strings.Contains(traits, " sorted ")
		case '^':
			if len(entries) == 0 || entries[len(entries)-1].Peeled != "" {
				return nil, &ParseError{Path: path, Line: lineNo, Reason: "peeled line without a reference"}
			}
			peeled, err := object.ParseHash(string(line[1:]))
			if err != nil {
				return nil, &ParseError{Path: path, Line: lineNo, Reason: err.Error()}
			}
			entries[len(entries)-1].Peeled = peeled
		default:
			hexID, name, ok := strings.Cut(string(line), " ")
			if !ok {
				return nil, &ParseError{Path: path, Line: lineNo, Reason: "missing space between id and name"}
			}
			target, err := object.ParseHash(hexID)
			if err != nil {
				return nil, &ParseError{Path: path, Line: lineNo, Reason: err.Error()}
			}
			full, err := refname.ParseFull(name)
			if err != nil {
				return nil, &ParseError{Path: path, Line: lineNo, Reason: err.Error()}
			}
			entries = append(entries, Entry{Name: full, Target: target})
		}
	}

	if !sorted {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	}
	for i := 1; i < len(entries); i++ {
		switch {
		case entries[i-1].Name == entries[i].Name:
			return nil, &ParseError{Path: path, Reason: fmt.Sprintf("duplicate reference %q", entries[i].Name)}
		case entries[i-1].Name > entries[i].Name:
			return nil, &ParseError{Path: path, Reason: fmt.Sprintf("reference %q out of order", entries[i].Name)}
		}
	}
	return entries, nil
}

// Path returns the file the table was read from and will be written to.
func (b *Buffer) Path() string { return b.path }

// Len returns the number of entries.
func (b *Buffer) Len() int { return len(b.entries) }

// Entries returns a copy of all entries in name order.
func (b *Buffer) Entries() []Entry {
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

func (b *Buffer) search(name refname.FullName) (int, bool) {
	i := sort.Search(len(b.entries), func(i int) bool { return b.entries[i].Name >= name })
	return i, i < len(b.entries) && b.entries[i].Name == name
}

// Find looks up the entry whose name equals name exactly.
func (b *Buffer) Find(name refname.FullName) (Entry, bool) {
	i, ok := b.search(name)
	if !ok {
		return Entry{}, false
	}
	return b.entries[i], true
}

// FindExisting is like Find but reports a missing entry as ErrNotFound.
func (b *Buffer) FindExisting(name refname.FullName) (Entry, error) {
	e, ok := b.Find(name)
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e, nil
}

// Iter returns the entries whose names start with prefix, in name order.
func (b *Buffer) Iter(prefix string) []Entry {
	start := sort.Search(len(b.entries), func(i int) bool { return string(b.entries[i].Name) >= prefix })
	var out []Entry
	for _, e := range b.entries[start:] {
		if !strings.HasPrefix(string(e.Name), prefix) {
			break
		}
		out = append(out, e)
	}
	return out
}

// encode serializes entries, which must already be sorted, in the format
// understood by parse.
func encode(entries []Entry) []byte {
	var buf bytes.Buffer
	buf.WriteString(Header)
	for _, e := range entries {
		buf.WriteString(string(e.Target))
		buf.WriteByte(' ')
		buf.WriteString(string(e.Name))
		buf.WriteByte('\n')
		if e.Peeled != "" {
			buf.WriteByte('^')
			buf.WriteString(string(e.Peeled))
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}
