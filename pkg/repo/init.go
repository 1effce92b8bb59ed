package repo

import (
	"fmt"
	"os"
	"path/filepath"
)

const defaultBranch = "refs/heads/main"

// Init creates a new repository at path. It creates the .got/ directory
// structure: HEAD, config.toml, refs/heads/, refs/tags/ and logs/. Returns
// an error if a .got/ directory already exists.
func Init(path string, opts ...Option) (*Repo, error) {
	o := newOptions(opts)
	gotDir := filepath.Join(path, ".got")

	// Fail if .got/ already exists.
	if _, err := os.Stat(gotDir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", gotDir)
	}

	dirs := []string{
		filepath.Join(gotDir, "refs", "heads"),
		filepath.Join(gotDir, "refs", "tags"),
		filepath.Join(gotDir, "logs", "refs", "heads"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	headPath := filepath.Join(gotDir, "HEAD")
	if err := os.WriteFile(headPath, []byte("ref: "+defaultBranch+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	cfg := DefaultConfig(o.kind)
	if err := writeConfig(gotDir, cfg); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	o.logger.Info("initialized repository", "path", gotDir, "hash", cfg.Core.Hash)
	return newRepo(path, gotDir, cfg, o), nil
}

// Open searches upward from path for a .got/ directory and opens the
// repository. Returns an error if no .got/ directory is found.
func Open(path string, opts ...Option) (*Repo, error) {
	o := newOptions(opts)
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		gotDir := filepath.Join(cur, ".got")
		info, err := os.Stat(gotDir)
		if err == nil && info.IsDir() {
			cfg, err := readConfig(gotDir)
			if err != nil {
				return nil, fmt.Errorf("open: %w", err)
			}
			return newRepo(cur, gotDir, cfg, o), nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open: not a repository (or any parent up to /)")
		}
		cur = parent
	}
}
