package refs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/odvcencio/refstore/pkg/lockfile"
)

func TestIter_MergesLooseAndPacked(t *testing.T) {
	base := t.TempDir()
	writeLoose(t, base, "refs/heads/main", string(hashA)+"\n")
	writeLoose(t, base, "refs/heads/topic", string(hashA)+"\n")
	writeLoose(t, base, "refs/heads/ignored.lock", string(hashA)+"\n")
	s := New(base)
	buf := packedBuffer(t, base,
		string(hashB)+" refs/heads/main",
		string(hashB)+" refs/heads/old",
		string(hashB)+" refs/tags/v1",
	)

	all, err := s.Iter("refs/heads/", buf)
	if err != nil {
		t.Fatalf("Iter: %v", err)
	}
	var names []string
	for _, r := range all {
		names = append(names, string(r.Name))
	}
	want := []string{"refs/heads/main", "refs/heads/old", "refs/heads/topic"}
	if len(names) != len(want) {
		t.Fatalf("Iter names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Iter names = %v, want %v", names, want)
		}
	}
	if all[0].Target.ID != hashA {
		t.Fatalf("refs/heads/main = %s, want loose %s", all[0].Target.ID, hashA)
	}

	everything, err := s.Iter("", buf)
	if err != nil {
		t.Fatalf("Iter(all): %v", err)
	}
	if len(everything) != 4 {
		t.Fatalf("Iter(all) len = %d, want 4", len(everything))
	}
}

func TestLoose_MissingRefsDir(t *testing.T) {
	refs, err := New(t.TempDir()).Loose("")
	if err != nil {
		t.Fatalf("Loose: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("Loose = %+v, want empty", refs)
	}
}

func TestFollow_SymbolicChain(t *testing.T) {
	base := t.TempDir()
	writeLoose(t, base, "HEAD", "ref: refs/heads/main\n")
	writeLoose(t, base, "refs/heads/main", "ref: refs/heads/real\n")
	s := New(base)
	buf := packedBuffer(t, base, string(hashB)+" refs/heads/real")

	head := mustFind(t, s, "HEAD", buf)
	final, err := s.Follow(head, buf)
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if final.Name != "refs/heads/real" || final.Target.ID != hashB {
		t.Fatalf("Follow(HEAD) = %+v", final)
	}
}

func TestFollow_DanglingAndLoop(t *testing.T) {
	base := t.TempDir()
	writeLoose(t, base, "HEAD", "ref: refs/heads/unborn\n")
	writeLoose(t, base, "refs/heads/a", "ref: refs/heads/b\n")
	writeLoose(t, base, "refs/heads/b", "ref: refs/heads/a\n")
	s := New(base)

	head := mustFind(t, s, "HEAD", nil)
	if _, err := s.Follow(head, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Follow(dangling) err = %v, want ErrNotFound", err)
	}

	a := mustFind(t, s, "a", nil)
	if _, err := s.Follow(a, nil); !errors.Is(err, ErrSymbolicDepth) {
		t.Fatalf("Follow(loop) err = %v, want ErrSymbolicDepth", err)
	}
}

func TestWriteLoose_RoundTrip(t *testing.T) {
	base := t.TempDir()
	s := New(base)

	if err := s.WriteLoose("refs/heads/feature/x", Target{Kind: Peeled, ID: hashC}, lockfile.FailImmediately()); err != nil {
		t.Fatalf("WriteLoose: %v", err)
	}
	if err := s.WriteLoose("HEAD", Target{Kind: Symbolic, Name: "refs/heads/feature/x"}, lockfile.FailImmediately()); err != nil {
		t.Fatalf("WriteLoose(HEAD): %v", err)
	}

	data, err := os.ReadFile(filepath.Join(base, "HEAD"))
	if err != nil {
		t.Fatalf("read HEAD: %v", err)
	}
	if string(data) != "ref: refs/heads/feature/x\n" {
		t.Fatalf("HEAD = %q", data)
	}
	head := mustFind(t, s, "HEAD", nil)
	final, err := s.Follow(head, nil)
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if final.Target.ID != hashC {
		t.Fatalf("HEAD resolves to %s, want %s", final.Target.ID, hashC)
	}
}

func TestDecode(t *testing.T) {
	cases := []struct {
		in   string
		want Target
	}{
		{string(hashA) + "\n", Target{Kind: Peeled, ID: hashA}},
		{string(hashC), Target{Kind: Peeled, ID: hashC}},
		{"ref: refs/heads/main\n", Target{Kind: Symbolic, Name: "refs/heads/main"}},
		{"ref: HEAD\r\n", Target{Kind: Symbolic, Name: "HEAD"}},
	}
	for _, tc := range cases {
		got, err := Decode([]byte(tc.in))
		if err != nil {
			t.Fatalf("Decode(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("Decode(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
		if tc.in == string(hashA)+"\n" && string(Encode(got)) != tc.in {
			t.Fatalf("Encode(%+v) = %q", got, Encode(got))
		}
	}

	for _, bad := range []string{"", "\n", "ref: ", "ref: main", "zzzz", string(hashA) + " extra"} {
		if _, err := Decode([]byte(bad)); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Decode(%q) err = %v, want ErrMalformed", bad, err)
		}
	}
}
