// Package refs resolves reference names against a directory of loose
// reference files and an optional packed table.
//
// Lookups never cache: every call reads the files again, and callers that
// pass a packed Buffer are responsible for its freshness.
package refs

import (
	"log/slog"
	"path/filepath"

	"github.com/odvcencio/refstore/pkg/lockfile"
	"github.com/odvcencio/refstore/pkg/refs/packed"
)

// DefaultPackedName is the file name of the packed table inside the base
// directory.
const DefaultPackedName = "packed-refs"

// Store reads references rooted at a base directory. Independent stores
// over different directories share no state.
type Store struct {
	base       string
	packedName string
	logger     *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPackedName overrides the packed table's file name.
func WithPackedName(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.packedName = name
		}
	}
}

// New returns a Store rooted at base.
func New(base string, opts ...Option) *Store {
	s := &Store{
		base:       base,
		packedName: DefaultPackedName,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Base returns the directory references are resolved against.
func (s *Store) Base() string { return s.base }

// PackedPath returns the path of the packed table.
func (s *Store) PackedPath() string {
	return filepath.Join(s.base, s.packedName)
}

// Packed reads the store's packed table. It returns nil if there is none.
func (s *Store) Packed() (*packed.Buffer, error) {
	return packed.Open(s.PackedPath())
}

// PackedTransaction locks the packed table, reads it under the lock, or
// starts from an empty one, and begins a transaction against it.
func (s *Store) PackedTransaction(mode lockfile.Fail) (*packed.Transaction, error) {
	return packed.BeginAt(s.PackedPath(), mode)
}
