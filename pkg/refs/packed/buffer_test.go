package packed

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/odvcencio/refstore/pkg/object"
	"github.com/odvcencio/refstore/pkg/refname"
)

var (
	hashA = object.Hash(strings.Repeat("a", 40))
	hashB = object.Hash(strings.Repeat("b", 40))
	hashC = object.Hash(strings.Repeat("c", 64))
	hashD = object.Hash(strings.Repeat("d", 40))
)

func writeTable(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "packed-refs")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write packed-refs: %v", err)
	}
	return path
}

func TestOpen_MissingFile(t *testing.T) {
	buf, err := Open(filepath.Join(t.TempDir(), "packed-refs"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if buf != nil {
		t.Fatalf("Open(missing) = %v, want nil", buf)
	}
}

func TestOpen_ParsesHeaderAndPeeled(t *testing.T) {
	path := writeTable(t, Header+
		string(hashA)+" refs/heads/main\n"+
		string(hashB)+" refs/tags/v1\n"+
		"^"+string(hashD)+"\n"+
		string(hashC)+" refs/tags/v2\n")

	buf, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if buf.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", buf.Len())
	}
	if buf.Path() != path {
		t.Fatalf("Path() = %q, want %q", buf.Path(), path)
	}

	e, ok := buf.Find("refs/tags/v1")
	if !ok {
		t.Fatal("Find(refs/tags/v1) not found")
	}
	if e.Target != hashB || e.Peeled != hashD {
		t.Fatalf("refs/tags/v1 = %+v", e)
	}
	if _, ok := buf.Find("refs/tags/v"); ok {
		t.Fatal("Find must not match a prefix")
	}
	if _, err := buf.FindExisting("refs/heads/nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindExisting(missing) err = %v, want ErrNotFound", err)
	}
}

func TestOpen_SortsUnsortedTable(t *testing.T) {
	path := writeTable(t, "# pack-refs with: peeled \n"+
		string(hashB)+" refs/tags/v1\n"+
		string(hashA)+" refs/heads/main\n")

	buf, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	entries := buf.Entries()
	if entries[0].Name != "refs/heads/main" || entries[1].Name != "refs/tags/v1" {
		t.Fatalf("entries not sorted: %+v", entries)
	}
	if _, ok := buf.Find("refs/heads/main"); !ok {
		t.Fatal("Find(refs/heads/main) after sort failed")
	}
}

func TestOpen_RejectsMalformedTables(t *testing.T) {
	cases := map[string]string{
		"unsorted but declared sorted": Header + string(hashB) + " refs/tags/v1\n" + string(hashA) + " refs/heads/main\n",
		"duplicate":                    string(hashA) + " refs/heads/main\n" + string(hashB) + " refs/heads/main\n",
		"bad hash":                     "xyz refs/heads/main\n",
		"missing name":                 string(hashA) + "\n",
		"bad name":                     string(hashA) + " refs/heads/a..b\n",
		"orphan peeled":                "^" + string(hashA) + "\n",
		"double peeled":                string(hashA) + " refs/tags/v1\n^" + string(hashB) + "\n^" + string(hashB) + "\n",
		"comment after first line":     string(hashA) + " refs/heads/main\n# note\n",
		"empty line":                   string(hashA) + " refs/heads/main\n\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Open(writeTable(t, content))
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Open err = %v, want ParseError", err)
			}
		})
	}
}

func TestOpen_AcceptsMissingTrailingNewline(t *testing.T) {
	buf, err := FromBytes("packed-refs", []byte(string(hashA)+" refs/heads/main"))
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if _, ok := buf.Find("refs/heads/main"); !ok {
		t.Fatal("entry without trailing newline not found")
	}
}

func TestIter_Prefix(t *testing.T) {
	buf, err := FromBytes("packed-refs", []byte(Header+
		string(hashA)+" refs/heads/a\n"+
		string(hashA)+" refs/heads/b\n"+
		string(hashB)+" refs/remotes/origin/main\n"+
		string(hashB)+" refs/tags/v1\n"))
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}

	heads := buf.Iter("refs/heads/")
	if len(heads) != 2 || heads[0].Name != "refs/heads/a" || heads[1].Name != "refs/heads/b" {
		t.Fatalf("Iter(refs/heads/) = %+v", heads)
	}
	if all := buf.Iter(""); len(all) != 4 {
		t.Fatalf("Iter(\"\") len = %d, want 4", len(all))
	}
	if none := buf.Iter("refs/notes/"); len(none) != 0 {
		t.Fatalf("Iter(refs/notes/) = %+v, want empty", none)
	}
}

func TestEncode_RoundTripsThroughParse(t *testing.T) {
	entries := []Entry{
		{Name: refname.FullName("refs/heads/main"), Target: hashA},
		{Name: refname.FullName("refs/tags/v1"), Target: hashB, Peeled: hashD},
	}
	data := encode(entries)
	if !strings.HasPrefix(string(data), Header) {
		t.Fatalf("encoded table missing header: %q", data)
	}
	buf, err := FromBytes("packed-refs", data)
	if err != nil {
		t.Fatalf("FromBytes(encode): %v", err)
	}
	got := buf.Entries()
	if len(got) != 2 || got[1] != entries[1] {
		t.Fatalf("entries = %+v, want %+v", got, entries)
	}
}
