package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/odvcencio/refstore/pkg/object"
)

func TestUpdateRef_WritesReflog(t *testing.T) {
	r := initRepo(t)

	if err := r.UpdateRef("refs/heads/main", hashA); err != nil {
		t.Fatalf("UpdateRef(first): %v", err)
	}
	if err := r.UpdateRef("refs/heads/main", hashB); err != nil {
		t.Fatalf("UpdateRef(second): %v", err)
	}

	entries, err := r.ReadReflog("HEAD", 10)
	if err != nil {
		t.Fatalf("ReadReflog(HEAD): %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}

	latest := entries[0]
	if latest.Ref != "refs/heads/main" {
		t.Fatalf("latest.Ref = %q, want refs/heads/main", latest.Ref)
	}
	if latest.OldHash != hashA || latest.NewHash != hashB {
		t.Fatalf("latest = %s -> %s, want %s -> %s", latest.OldHash, latest.NewHash, hashA, hashB)
	}

	first := entries[1]
	if first.OldHash != object.NullHash(object.SHA256) {
		t.Fatalf("first.OldHash = %s, want null hash", first.OldHash)
	}
	if first.Timestamp == 0 || first.Reason != "update" {
		t.Fatalf("first = %+v, want timestamp and reason", first)
	}
}

func TestReadReflog_RespectsLimit(t *testing.T) {
	r := initRepo(t)

	for _, h := range []object.Hash{hashA, hashB, hashC} {
		if err := r.UpdateRef("refs/heads/main", h); err != nil {
			t.Fatalf("UpdateRef(%s): %v", h, err)
		}
	}

	entries, err := r.ReadReflog("main", 2)
	if err != nil {
		t.Fatalf("ReadReflog(main): %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].NewHash != hashC {
		t.Fatalf("entries[0].NewHash = %s, want %s", entries[0].NewHash, hashC)
	}
}

func TestReadReflog_MissingIsEmpty(t *testing.T) {
	r := initRepo(t)

	entries, err := r.ReadReflog("refs/heads/nothing", 0)
	if err != nil {
		t.Fatalf("ReadReflog: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %v, want none", entries)
	}
}

func TestReadReflog_SHA1NullHash(t *testing.T) {
	r, err := Init(t.TempDir(), WithHashKind(object.SHA1))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	id := object.Hash("0123456789abcdef0123456789abcdef01234567")
	if err := r.UpdateRef("refs/heads/main", id); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}

	entries, err := r.ReadReflog("", 0)
	if err != nil {
		t.Fatalf("ReadReflog: %v", err)
	}
	if len(entries) != 1 || entries[0].OldHash != object.NullHash(object.SHA1) {
		t.Fatalf("entries = %+v, want one entry from the sha1 null hash", entries)
	}
}

func TestReadReflog_SkipsTornLinesAndKeepsReasonSpaces(t *testing.T) {
	r := initRepo(t)
	null := object.NullHash(object.SHA256)
	content := string(null) + " " + string(hashA) + " 1700000000 branch: created from main\n" +
		string(hashA) + " " + string(hashB) + " 17000\n" +
		string(hashA) + " " + string(hashB) + " 1700000100 update\n"
	logPath := filepath.Join(r.GotDir, "logs", "refs", "heads", "main")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(logPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	entries, err := r.ReadReflog("refs/heads/main", 0)
	if err != nil {
		t.Fatalf("ReadReflog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v, want 2", entries)
	}
	if entries[0].NewHash != hashB || entries[0].Timestamp != 1700000100 {
		t.Fatalf("newest entry = %+v", entries[0])
	}
	if entries[1].Reason != "branch: created from main" || entries[1].OldHash != null {
		t.Fatalf("oldest entry = %+v", entries[1])
	}
}
