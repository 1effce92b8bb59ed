package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/odvcencio/refstore/pkg/object"
	"github.com/odvcencio/refstore/pkg/refs"
)

func TestUpdateRefCAS_ConcurrentSingleWinner(t *testing.T) {
	r := initRepo(t)

	if err := r.UpdateRef("refs/heads/main", hashA); err != nil {
		t.Fatalf("UpdateRef(base): %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)

	successCh := make(chan object.Hash, workers)
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		i := i
		go func() {
			defer wg.Done()
			next := object.Hash(fmt.Sprintf("%064x", i+1))
			err := r.UpdateRefCAS("refs/heads/main", next, hashA)
			if err != nil {
				errCh <- err
				return
			}
			successCh <- next
		}()
	}

	wg.Wait()
	close(successCh)
	close(errCh)

	var winner object.Hash
	successes := 0
	for h := range successCh {
		successes++
		winner = h
	}
	if successes != 1 {
		t.Fatalf("successful CAS updates = %d, want 1", successes)
	}

	casMismatches := 0
	for err := range errCh {
		if errors.Is(err, ErrRefCASMismatch) {
			casMismatches++
			continue
		}
		t.Fatalf("unexpected error type: %v", err)
	}
	if casMismatches != workers-1 {
		t.Fatalf("CAS mismatches = %d, want %d", casMismatches, workers-1)
	}

	got, err := r.ResolveRef("refs/heads/main")
	if err != nil {
		t.Fatalf("ResolveRef(main): %v", err)
	}
	if got != winner {
		t.Fatalf("refs/heads/main = %s, want winner %s", got, winner)
	}
}

func TestUpdateRefCAS_CleansLockOnMismatch(t *testing.T) {
	r := initRepo(t)

	if err := r.UpdateRef("refs/heads/main", hashB); err != nil {
		t.Fatalf("UpdateRef(current): %v", err)
	}

	err := r.UpdateRefCAS("refs/heads/main", hashC, hashA)
	if !errors.Is(err, ErrRefCASMismatch) {
		t.Fatalf("expected CAS mismatch, got: %v", err)
	}

	lockPath := filepath.Join(r.GotDir, "refs", "heads", "main.lock")
	if _, statErr := os.Stat(lockPath); !os.IsNotExist(statErr) {
		t.Fatalf("expected no lingering lockfile at %q, stat err=%v", lockPath, statErr)
	}
}

func TestUpdateRefCAS_SeesPackedValue(t *testing.T) {
	r := initRepo(t)
	if err := r.UpdateRef("refs/heads/feature", hashA); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}
	if _, err := r.PackRefs(); err != nil {
		t.Fatalf("PackRefs: %v", err)
	}

	if err := r.UpdateRefCAS("refs/heads/feature", hashB, ""); !errors.Is(err, ErrRefCASMismatch) {
		t.Fatalf("create over packed ref: expected CAS mismatch, got %v", err)
	}
	if err := r.UpdateRefCAS("refs/heads/feature", hashB, hashA); err != nil {
		t.Fatalf("UpdateRefCAS(packed old): %v", err)
	}
	got, err := r.ResolveRef("feature")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if got != hashB {
		t.Fatalf("feature = %s, want %s", got, hashB)
	}
}

func TestUpdateRefCAS_RejectsBadInput(t *testing.T) {
	r := initRepo(t)

	if err := r.UpdateRef("refs/heads/bad..name", hashA); err == nil {
		t.Fatal("UpdateRef with invalid name should fail")
	}
	if err := r.UpdateRef("refs/heads/main", object.Hash("not-a-hash")); err == nil {
		t.Fatal("UpdateRef with invalid hash should fail")
	}
	if err := r.UpdateRefCAS("refs/heads/main", hashA, hashB, hashC); err == nil {
		t.Fatal("UpdateRefCAS with two expected hashes should fail")
	}
}

func TestUpdateRefCAS_ReflogFailureKeepsRef(t *testing.T) {
	r := initRepo(t)

	// A file where the logs directory should be makes the reflog append fail.
	logsDir := filepath.Join(r.GotDir, "logs", "refs", "heads", "topic")
	if err := os.MkdirAll(filepath.Dir(logsDir), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(logsDir, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	err := r.UpdateRef("refs/heads/topic/one", hashA)
	if !errors.Is(err, ErrRefUpdatedButReflogAppendFailed) {
		t.Fatalf("expected reflog append failure, got %v", err)
	}
	var rerr *RefUpdateReflogError
	if !errors.As(err, &rerr) || rerr.NewHash != hashA {
		t.Fatalf("expected RefUpdateReflogError for %s, got %#v", hashA, err)
	}

	got, err := r.ResolveRef("refs/heads/topic/one")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if got != hashA {
		t.Fatalf("topic/one = %s, want %s", got, hashA)
	}
}

func TestDeleteRef_LooseAndPacked(t *testing.T) {
	r := initRepo(t)
	if err := r.UpdateRef("refs/tags/v1", hashA); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}
	if _, err := r.PackRefs(); err != nil {
		t.Fatalf("PackRefs: %v", err)
	}
	// Loose value shadows the packed one until both are removed.
	if err := r.UpdateRef("refs/tags/v1", hashB); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}

	if err := r.DeleteRef("refs/tags/v1", hashA); !errors.Is(err, ErrRefCASMismatch) {
		t.Fatalf("DeleteRef(stale old): expected CAS mismatch, got %v", err)
	}
	if err := r.DeleteRef("refs/tags/v1", hashB); err != nil {
		t.Fatalf("DeleteRef: %v", err)
	}

	if _, err := r.ResolveRef("refs/tags/v1"); !errors.Is(err, refs.ErrNotFound) {
		t.Fatalf("ResolveRef after delete: expected not found, got %v", err)
	}
	buf, err := r.Refs.Packed()
	if err != nil {
		t.Fatalf("Packed: %v", err)
	}
	if _, ok := buf.Find("refs/tags/v1"); ok {
		t.Fatal("packed table still contains refs/tags/v1")
	}
	if err := r.DeleteRef("refs/tags/v1"); !errors.Is(err, refs.ErrNotFound) {
		t.Fatalf("second DeleteRef: expected not found, got %v", err)
	}
}

func TestDeleteRef_RejectsSymbolic(t *testing.T) {
	r := initRepo(t)
	if err := r.UpdateRef("refs/heads/main", hashA); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}
	target := refs.Target{Kind: refs.Symbolic, Name: "refs/heads/main"}
	if err := r.Refs.WriteLoose("refs/heads/alias", target, r.LockMode()); err != nil {
		t.Fatalf("WriteLoose: %v", err)
	}
	if err := r.DeleteRef("refs/heads/alias"); !errors.Is(err, ErrSymbolicRef) {
		t.Fatalf("DeleteRef(symbolic): expected ErrSymbolicRef, got %v", err)
	}
}

func TestDeleteRef_ConcurrentPackedDeletesAllStick(t *testing.T) {
	r := initRepo(t)

	const workers = 8
	for i := 0; i < workers; i++ {
		if err := r.UpdateRef(fmt.Sprintf("refs/heads/b%d", i), hashA); err != nil {
			t.Fatalf("UpdateRef(b%d): %v", i, err)
		}
	}
	if _, err := r.PackRefs(); err != nil {
		t.Fatalf("PackRefs: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		i := i
		go func() {
			defer wg.Done()
			if err := r.DeleteRef(fmt.Sprintf("refs/heads/b%d", i), hashA); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("DeleteRef: %v", err)
	}

	buf, err := r.Refs.Packed()
	if err != nil {
		t.Fatalf("Packed: %v", err)
	}
	if left := buf.Iter("refs/heads/"); len(left) != 0 {
		t.Fatalf("packed branches after concurrent deletes = %v, want none", left)
	}
}

func TestUpdateRef_RejectsOtherHashKind(t *testing.T) {
	r := initRepo(t)
	sha1ID := object.Hash(strings.Repeat("a", 40))

	if err := r.UpdateRef("refs/heads/main", sha1ID); !errors.Is(err, object.ErrInvalidHash) {
		t.Fatalf("UpdateRef(sha1 id in sha256 repo): expected ErrInvalidHash, got %v", err)
	}
	if err := r.CreateBranch("topic", sha1ID); !errors.Is(err, object.ErrInvalidHash) {
		t.Fatalf("CreateBranch(sha1 id): expected ErrInvalidHash, got %v", err)
	}
	if err := r.CreateTag("v1", sha1ID, false); !errors.Is(err, object.ErrInvalidHash) {
		t.Fatalf("CreateTag(sha1 id): expected ErrInvalidHash, got %v", err)
	}
	if err := r.DetachHead(sha1ID); !errors.Is(err, object.ErrInvalidHash) {
		t.Fatalf("DetachHead(sha1 id): expected ErrInvalidHash, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(r.GotDir, "refs", "heads", "main")); !os.IsNotExist(err) {
		t.Fatalf("refs/heads/main written for rejected id, stat err=%v", err)
	}

	legacy, err := Init(t.TempDir(), WithHashKind(object.SHA1))
	if err != nil {
		t.Fatalf("Init(sha1): %v", err)
	}
	if err := legacy.UpdateRef("refs/heads/main", hashA); !errors.Is(err, object.ErrInvalidHash) {
		t.Fatalf("UpdateRef(sha256 id in sha1 repo): expected ErrInvalidHash, got %v", err)
	}
	if err := legacy.UpdateRef("refs/heads/main", sha1ID); err != nil {
		t.Fatalf("UpdateRef(sha1 id in sha1 repo): %v", err)
	}
}
