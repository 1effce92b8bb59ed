package refs

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/odvcencio/refstore/pkg/refname"
)

// referencePath maps a slash-separated reference path to its file.
func (s *Store) referencePath(rel string) string {
	return filepath.Join(s.base, filepath.FromSlash(rel))
}

// readLoose returns the raw content of the loose reference at rel, or nil
// if there is no such file. A directory in its place counts as absent, as
// does a permission error on Windows.
func (s *Store) readLoose(rel string) ([]byte, error) {
	path := s.referencePath(rel)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if runtime.GOOS == "windows" && errors.Is(err, fs.ErrPermission) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
			return nil, nil
		}
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// LooseTarget reads and decodes the loose file for name. ok is false when
// there is no such file.
func (s *Store) LooseTarget(name refname.FullName) (Target, bool, error) {
	data, err := s.readLoose(string(name))
	if err != nil {
		return Target{}, false, err
	}
	if data == nil {
		return Target{}, false, nil
	}
	t, err := Decode(data)
	if err != nil {
		return Target{}, false, &DecodeError{Path: s.referencePath(string(name)), Content: string(data), Err: err}
	}
	return t, true, nil
}
