// Package snapshot exports every reference of a store into a single
// zstd-compressed, checksummed stream and imports such a stream back.
//
// The uncompressed stream is line oriented:
//
//	# refstore snapshot v1
//	<oid> <full-name>
//	^<peeled-oid>
//	ref:<target-full-name> <full-name>
//	# blake2b-256 <hex checksum of every preceding byte>
//	# sshsig-v1:<format>:<base64 public key>:<base64 signature>
//
// The signature line is optional and signs the checksum line.
package snapshot

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/ssh"

	"github.com/odvcencio/refstore/pkg/object"
	"github.com/odvcencio/refstore/pkg/refname"
	"github.com/odvcencio/refstore/pkg/refs"
)

const (
	header          = "# refstore snapshot v1"
	checksumPrefix  = "# blake2b-256 "
	signaturePrefix = "# sshsig-v1:"
	symbolicMarker  = "ref:"

	// maxSnapshotSize bounds the decompressed stream accepted by Import.
	maxSnapshotSize = 256 << 20
)

var (
	ErrChecksum  = errors.New("snapshot checksum mismatch")
	ErrSignature = errors.New("snapshot signature invalid")
	ErrUnsigned  = errors.New("snapshot is not signed")
	ErrFormat    = errors.New("malformed snapshot")
)

// Entry is one reference carried by a snapshot.
type Entry struct {
	Name   refname.FullName
	Target refs.Target
	Peeled object.Hash
}

// Option configures Export and Import.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	signer  ssh.Signer
	trusted ssh.PublicKey
	force   bool
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSigner makes Export sign the checksum with s.
func WithSigner(s ssh.Signer) Option {
	return func(o *options) { o.signer = s }
}

// WithTrustedKey makes Import require a signature made by key.
func WithTrustedKey(key ssh.PublicKey) Option {
	return func(o *options) { o.trusted = key }
}

// WithForce makes Import overwrite references that already exist with a
// different value instead of failing.
func WithForce(force bool) Option {
	return func(o *options) { o.force = force }
}

func newOptions(opts []Option) *options {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Collect gathers HEAD, if present, and every reference under refs/ from
// store, loose values shadowing packed ones.
func Collect(store *refs.Store) ([]Entry, error) {
	buf, err := store.Packed()
	if err != nil {
		return nil, fmt.Errorf("collect refs: %w", err)
	}
	var out []Entry
	head, ok, err := store.Find("HEAD", buf)
	if err != nil {
		return nil, fmt.Errorf("collect refs: %w", err)
	}
	if ok {
		out = append(out, Entry{Name: head.Name, Target: head.Target, Peeled: head.Peeled})
	}
	all, err := store.Iter(refname.PrefixRefs, buf)
	if err != nil {
		return nil, fmt.Errorf("collect refs: %w", err)
	}
	for _, r := range all {
		out = append(out, Entry{Name: r.Name, Target: r.Target, Peeled: r.Peeled})
	}
	return out, nil
}

// Export writes every reference of store to w as a compressed snapshot and
// returns the number of references written.
func Export(w io.Writer, store *refs.Store, opts ...Option) (int, error) {
	o := newOptions(opts)
	entries, err := Collect(store)
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	if err := writeEntries(enc, entries, o.signer); err != nil {
		enc.Close()
		return 0, fmt.Errorf("export: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	o.logger.Info("exported refs", "count", len(entries), "signed", o.signer != nil)
	return len(entries), nil
}

func writeEntries(w io.Writer, entries []Entry, signer ssh.Signer) error {
	sum, err := blake2b.New256(nil)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(io.MultiWriter(w, sum))
	fmt.Fprintln(bw, header)
	for _, e := range entries {
		switch e.Target.Kind {
		case refs.Symbolic:
			fmt.Fprintf(bw, "%s%s %s\n", symbolicMarker, e.Target.Name, e.Name)
		default:
			fmt.Fprintf(bw, "%s %s\n", e.Target.ID, e.Name)
		}
		if e.Peeled != "" {
			fmt.Fprintf(bw, "^%s\n", e.Peeled)
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	checksum := checksumPrefix + hex.EncodeToString(sum.Sum(nil))
	if _, err := io.WriteString(w, checksum+"\n"); err != nil {
		return err
	}
	if signer == nil {
		return nil
	}
	sig, err := sign(signer, []byte(checksum))
	if err != nil {
		return fmt.Errorf("sign snapshot: %w", err)
	}
	_, err = io.WriteString(w, sig+"\n")
	return err
}

// Read decompresses and verifies a snapshot without applying it. If
// trusted is non-nil the snapshot must carry a valid signature by that key.
func Read(r io.Reader, trusted ssh.PublicKey) ([]Entry, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	defer dec.Close()

	data, err := io.ReadAll(io.LimitReader(dec, maxSnapshotSize+1))
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(data) > maxSnapshotSize {
		return nil, fmt.Errorf("read snapshot: %w: larger than %d bytes", ErrFormat, maxSnapshotSize)
	}
	entries, err := decode(data, trusted)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return entries, nil
}

func decode(data []byte, trusted ssh.PublicKey) ([]Entry, error) {
	text := string(data)
	idx := strings.LastIndex(text, "\n"+checksumPrefix)
	if idx < 0 {
		return nil, fmt.Errorf("%w: missing checksum", ErrFormat)
	}
	body, trailer := text[:idx+1], text[idx+1:]

	lines := strings.Split(strings.TrimSuffix(trailer, "\n"), "\n")
	checksum := lines[0]
	want := checksumPrefix + hex.EncodeToString(sumOf([]byte(body)))
	if checksum != want {
		return nil, ErrChecksum
	}
	switch {
	case len(lines) == 2:
		if err := verify(lines[1], []byte(checksum), trusted); err != nil {
			return nil, err
		}
	case len(lines) > 2:
		return nil, fmt.Errorf("%w: trailing data after checksum", ErrFormat)
	case trusted != nil:
		return nil, ErrUnsigned
	}
	return parseBody(body)
}

func sumOf(data []byte) []byte {
	s := blake2b.Sum256(data)
	return s[:]
}

func parseBody(body string) ([]Entry, error) {
	lines := strings.Split(strings.TrimSuffix(body, "\n"), "\n")
	if len(lines) == 0 || lines[0] != header {
		return nil, fmt.Errorf("%w: missing header", ErrFormat)
	}
	var out []Entry
	for i, line := range lines[1:] {
		lineNo := i + 2
		if peeled, ok := strings.CutPrefix(line, "^"); ok {
			if len(out) == 0 || out[len(out)-1].Peeled != "" {
				return nil, fmt.Errorf("%w: line %d: peeled id without reference", ErrFormat, lineNo)
			}
			id, err := object.ParseHash(peeled)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %w", ErrFormat, lineNo, err)
			}
			out[len(out)-1].Peeled = id
			continue
		}
		target, name, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("%w: line %d: expected target and name", ErrFormat, lineNo)
		}
		full, err := refname.ParseFull(name)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrFormat, lineNo, err)
		}
		e := Entry{Name: full}
		if rest, ok := strings.CutPrefix(target, symbolicMarker); ok {
			to, err := refname.ParseFull(rest)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %w", ErrFormat, lineNo, err)
			}
			e.Target = refs.Target{Kind: refs.Symbolic, Name: to}
		} else {
			id, err := object.ParseHash(target)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %w", ErrFormat, lineNo, err)
			}
			e.Target = refs.Target{Kind: refs.Peeled, ID: id}
		}
		out = append(out, e)
	}
	return out, nil
}
