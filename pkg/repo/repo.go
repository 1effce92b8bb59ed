package repo

import (
	"fmt"
	"log/slog"

	"github.com/odvcencio/refstore/pkg/lockfile"
	"github.com/odvcencio/refstore/pkg/object"
	"github.com/odvcencio/refstore/pkg/refs"
)

// Repo represents an opened repository.
type Repo struct {
	RootDir string      // working directory root
	GotDir  string      // .got/ directory
	Refs    *refs.Store // loose + packed reference store rooted at GotDir
	Config  *Config

	logger *slog.Logger
}

// Option configures Init and Open.
type Option func(*options)

type options struct {
	logger *slog.Logger
	kind   object.Kind
}

// WithLogger sets the logger used by the repository and its reference store.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHashKind selects the object id kind recorded by Init.
func WithHashKind(k object.Kind) Option {
	return func(o *options) { o.kind = k }
}

func newOptions(opts []Option) *options {
	o := &options{logger: slog.Default(), kind: object.SHA256}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

func newRepo(root, gotDir string, cfg *Config, o *options) *Repo {
	return &Repo{
		RootDir: root,
		GotDir:  gotDir,
		Refs:    refs.New(gotDir, refs.WithLogger(o.logger)),
		Config:  cfg,
		logger:  o.logger,
	}
}

// LockMode returns the acquisition policy configured for ref locks.
func (r *Repo) LockMode() lockfile.Fail {
	return lockfile.FailAfter(r.Config.LockTimeout())
}

// HashKind returns the configured object id kind.
func (r *Repo) HashKind() object.Kind {
	return r.Config.HashKind()
}

// checkHash validates h as an object id of the repository's configured kind.
func (r *Repo) checkHash(h object.Hash) error {
	if _, err := object.ParseHash(string(h)); err != nil {
		return err
	}
	if want := r.HashKind(); h.Kind() != want {
		return fmt.Errorf("%w: %s is a %s id, repository uses %s", object.ErrInvalidHash, h, h.Kind(), want)
	}
	return nil
}
