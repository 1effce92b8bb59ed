package object

import (
	"errors"
	"strings"
	"testing"
)

func TestHashObject_MatchesGit(t *testing.T) {
	// `git hash-object` of an empty blob.
	got := HashObject(SHA1, TypeBlob, nil)
	if got != "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391" {
		t.Fatalf("HashObject(sha1, empty blob) = %s", got)
	}
	got = HashObject(SHA256, TypeBlob, nil)
	if got != "473a0f4c3be8a93681a267e3b1e9a7dcda1185436fe141f7749120a303721813" {
		t.Fatalf("HashObject(sha256, empty blob) = %s", got)
	}
}

func TestParseHash(t *testing.T) {
	valid := []string{
		strings.Repeat("a", 40),
		strings.Repeat("0123456789abcdef", 4),
	}
	for _, s := range valid {
		h, err := ParseHash(s)
		if err != nil {
			t.Fatalf("ParseHash(%q): %v", s, err)
		}
		if string(h) != s {
			t.Fatalf("ParseHash(%q) = %q", s, h)
		}
	}

	invalid := []string{
		"",
		"abc",
		strings.Repeat("A", 40),
		strings.Repeat("g", 64),
		strings.Repeat("a", 41),
	}
	for _, s := range invalid {
		if _, err := ParseHash(s); !errors.Is(err, ErrInvalidHash) {
			t.Fatalf("ParseHash(%q) err = %v, want ErrInvalidHash", s, err)
		}
	}
}

func TestHashKindAndZero(t *testing.T) {
	if k := NullHash(SHA1).Kind(); k != SHA1 {
		t.Fatalf("NullHash(SHA1).Kind() = %v", k)
	}
	if k := NullHash(SHA256).Kind(); k != SHA256 {
		t.Fatalf("NullHash(SHA256).Kind() = %v", k)
	}
	if !NullHash(SHA256).IsZero() || !Hash("").IsZero() {
		t.Fatal("expected null hashes to be zero")
	}
	if HashBytes([]byte("x")).IsZero() {
		t.Fatal("HashBytes result should not be zero")
	}
	if k, err := ParseKind("SHA1"); err != nil || k != SHA1 {
		t.Fatalf("ParseKind(SHA1) = %v, %v", k, err)
	}
	if _, err := ParseKind("md5"); err == nil {
		t.Fatal("ParseKind(md5) should fail")
	}
}
