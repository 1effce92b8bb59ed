package refs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/refstore/pkg/lockfile"
	"github.com/odvcencio/refstore/pkg/refname"
	"github.com/odvcencio/refstore/pkg/refs/packed"
)

const maxSymbolicDepth = 5

var ErrSymbolicDepth = errors.New("symbolic reference chain too deep")

// Loose lists loose references under refs/ whose full names start with
// prefix, sorted by name.
func (s *Store) Loose(prefix string) ([]Reference, error) {
	root := s.referencePath("refs")
	var out []Reference
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), lockfile.Suffix) {
			return nil
		}
		rel, err := filepath.Rel(s.base, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !strings.HasPrefix(rel, prefix) {
			return nil
		}
		name, err := refname.ParseFull(rel)
		if err != nil {
			s.logger.Debug("skipping file with invalid reference name", "path", p)
			return nil
		}
		data, err := s.readLoose(rel)
		if err != nil {
			return err
		}
		if data == nil {
			return nil
		}
		target, err := Decode(data)
		if err != nil {
			return &DecodeError{Path: p, Content: string(data), Err: err}
		}
		out = append(out, Reference{Name: name, Target: target})
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("list loose refs: %w", err)
	}
	return out, nil
}

// Iter lists every reference whose full name starts with prefix, merging
// loose files with buf. A loose reference shadows a packed one of the same
// name.
func (s *Store) Iter(prefix string, buf *packed.Buffer) ([]Reference, error) {
	loose, err := s.Loose(prefix)
	if err != nil {
		return nil, err
	}
	seen := make(map[refname.FullName]struct{}, len(loose))
	out := make([]Reference, 0, len(loose))
	for _, r := range loose {
		seen[r.Name] = struct{}{}
		out = append(out, r)
	}
	if buf != nil {
		for _, e := range buf.Iter(prefix) {
			if _, shadowed := seen[e.Name]; shadowed {
				continue
			}
			out = append(out, fromPacked(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Follow resolves symbolic references starting at ref until a peeled one is
// reached. A dangling symbolic reference yields a NotFoundError naming the
// missing target.
func (s *Store) Follow(ref Reference, buf *packed.Buffer) (Reference, error) {
	for depth := 0; ref.Target.Kind == Symbolic; depth++ {
		if depth >= maxSymbolicDepth {
			return Reference{}, fmt.Errorf("follow %s: %w", ref.Name, ErrSymbolicDepth)
		}
		next, ok, err := s.find(refname.PartialName(ref.Target.Name), buf)
		if err != nil {
			return Reference{}, fmt.Errorf("follow %s: %w", ref.Name, err)
		}
		if !ok {
			return Reference{}, &NotFoundError{Name: string(ref.Target.Name)}
		}
		ref = next
	}
	return ref, nil
}

// WriteLoose writes t as the loose reference name under a lock, creating
// parent directories as needed.
func (s *Store) WriteLoose(name refname.FullName, t Target, mode lockfile.Fail) error {
	p := s.referencePath(string(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("write ref %s: mkdir: %w", name, err)
	}
	lock, err := lockfile.Acquire(p, mode)
	if err != nil {
		return fmt.Errorf("write ref %s: %w", name, err)
	}
	if _, err := lock.Write(Encode(t)); err != nil {
		lock.Close()
		return fmt.Errorf("write ref %s: %w", name, err)
	}
	if err := lock.Commit(); err != nil {
		return fmt.Errorf("write ref %s: %w", name, err)
	}
	return nil
}
