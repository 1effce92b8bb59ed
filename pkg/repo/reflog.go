package repo

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/refstore/pkg/object"
	"github.com/odvcencio/refstore/pkg/refname"
)

// ReflogEntry is one recorded change to a reference. A created ref has
// the null id of the repository's hash kind as OldHash, a deleted one as
// NewHash.
type ReflogEntry struct {
	Ref       string
	OldHash   object.Hash
	NewHash   object.Hash
	Timestamp int64 // unix seconds
	Reason    string
}

// Each log line is "<old> <new> <unix-seconds> <reason>".
func formatReflogLine(oldHash, newHash object.Hash, when time.Time, reason string) string {
	return fmt.Sprintf("%s %s %d %s\n", oldHash, newHash, when.Unix(), reason)
}

func parseReflogLine(ref, line string) (ReflogEntry, bool) {
	oldHex, rest, ok := strings.Cut(line, " ")
	if !ok {
		return ReflogEntry{}, false
	}
	newHex, rest, ok := strings.Cut(rest, " ")
	if !ok {
		return ReflogEntry{}, false
	}
	stamp, reason, ok := strings.Cut(rest, " ")
	if !ok {
		return ReflogEntry{}, false
	}
	ts, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return ReflogEntry{}, false
	}
	return ReflogEntry{
		Ref:       ref,
		OldHash:   object.Hash(oldHex),
		NewHash:   object.Hash(newHex),
		Timestamp: ts,
		Reason:    reason,
	}, true
}

// reflogPath maps a full ref name, or HEAD, to its log below logs/.
func (r *Repo) reflogPath(ref string) string {
	return filepath.Join(r.GotDir, "logs", filepath.FromSlash(ref))
}

// appendReflog records one update of ref. Empty ids are logged as the null
// id so creations and deletions stay parseable.
func (r *Repo) appendReflog(ref string, oldHash, newHash object.Hash, reason string) error {
	if ref = strings.TrimSpace(ref); ref == "" {
		return nil
	}
	if strings.TrimSpace(reason) == "" {
		reason = "update"
	}
	null := object.NullHash(r.HashKind())
	if oldHash == "" {
		oldHash = null
	}
	if newHash == "" {
		newHash = null
	}

	logPath := r.reflogPath(ref)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("append reflog %s: %w", ref, err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("append reflog %s: %w", ref, err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatReflogLine(oldHash, newHash, time.Now(), reason)); err != nil {
		return fmt.Errorf("append reflog %s: %w", ref, err)
	}
	return nil
}

// ReadReflog returns the newest-first log of updates to ref. A limit of 0
// returns every entry.
func (r *Repo) ReadReflog(ref string, limit int) ([]ReflogEntry, error) {
	refName, err := r.resolveReflogRefName(ref)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(r.reflogPath(refName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	defer f.Close()

	var entries []ReflogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// Lines torn by a crash mid-append are skipped.
		if e, ok := parseReflogLine(refName, line); ok {
			entries = append(entries, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// resolveReflogRefName maps "", "HEAD" and partial names to the full name
// whose log should be read.
func (r *Repo) resolveReflogRefName(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == "HEAD" {
		head, err := r.Head()
		if err == nil {
			if name, ok := head.ReferentName(); ok {
				return string(name), nil
			}
		}
		return "HEAD", nil
	}

	buf, err := r.Refs.Packed()
	if err != nil {
		return "", fmt.Errorf("read reflog: %w", err)
	}
	found, ok, err := r.Refs.Find(ref, buf)
	if err != nil {
		return "", fmt.Errorf("read reflog: %w", err)
	}
	if ok {
		return string(found.Name), nil
	}
	if strings.HasPrefix(ref, refname.PrefixRefs) {
		return ref, nil
	}
	return refname.PrefixHeads + ref, nil
}
