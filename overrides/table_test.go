package overrides

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sample = `# PTR overrides for the lab subnets
#
1.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.1.0.0.0.8.b.d.0.1.0.0.2.ip6.arpa. = gw.example.com.

somehost.ip6.arpa. = custom.example.com.
  spaced.key  =  spaced.value.
not-an-entry
also=not-an-entry
`

func TestParse(t *testing.T) {
	tbl := Parse(strings.NewReader(sample))
	if tbl.Len() != 3 {
		t.Fatal("Expected 3 entries, got", tbl.Len())
	}

	v, ok := tbl.Lookup("1.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.1.0.0.0.8.b.d.0.1.0.0.2.ip6.arpa.")
	if !ok || v != "gw.example.com." {
		t.Error("Exact key lookup failed", v, ok)
	}

	v, ok = tbl.Lookup("www.somehost.ip6.arpa.")
	if !ok || v != "custom.example.com." {
		t.Error("Substring key lookup failed", v, ok)
	}

	v, ok = tbl.Lookup("has spaced.key inside")
	if !ok || v != "spaced.value." {
		t.Error("Whitespace trimming failed", v, ok)
	}

	if _, ok = tbl.Lookup("nothing.relevant."); ok {
		t.Error("Lookup matched a name it shouldn't have")
	}
	if _, ok = tbl.Lookup("also"); ok {
		t.Error("Lines without ' = ' should have been skipped")
	}
}

// The key must occur inside the queried name, never the reverse.
func TestLookupDirection(t *testing.T) {
	tbl := Parse(strings.NewReader("somehost.ip6.arpa. = custom.example.com.\n"))
	if _, ok := tbl.Lookup("host.ip6.arpa."); ok {
		t.Error("qName-inside-key matched; the rule is key-inside-qName")
	}
	if v, ok := tbl.Lookup("a.somehost.ip6.arpa."); !ok || v != "custom.example.com." {
		t.Error("key-inside-qName should have matched", v, ok)
	}
}

// First entry in file order wins when multiple keys match the queried name.
func TestLookupFirstMatchWins(t *testing.T) {
	tbl := Parse(strings.NewReader("b.c. = first.\na.b.c. = second.\n"))
	v, ok := tbl.Lookup("a.b.c.")
	if !ok || v != "first." {
		t.Error("First match in load order should win, got", v, ok)
	}
}

// A later duplicate key replaces the value but keeps the original position.
func TestParseDuplicateKeys(t *testing.T) {
	tbl := Parse(strings.NewReader("k1. = old.\nk2. = other.\nk1. = new.\n"))
	if tbl.Len() != 2 {
		t.Fatal("Duplicate should not add an entry, got", tbl.Len())
	}
	if v, _ := tbl.Lookup("k1."); v != "new." {
		t.Error("Duplicate should have replaced value, got", v)
	}
}

func TestParseIdempotent(t *testing.T) {
	a := Parse(strings.NewReader(sample))
	b := Parse(strings.NewReader(sample))
	if a.Len() != b.Len() {
		t.Fatal("Reparse changed entry count", a.Len(), b.Len())
	}
	for ix := range a.entries {
		if a.entries[ix] != b.entries[ix] {
			t.Error(ix, "Reparse changed entry", a.entries[ix], b.entries[ix])
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ptr6d.overrides")
	if err := os.WriteFile(path, []byte(sample), 0644); err != nil {
		t.Fatal("Setup failed", err)
	}

	tbl, err := Load(path)
	if err != nil {
		t.Fatal("Load failed", err)
	}
	if tbl.Len() != 3 {
		t.Error("Expected 3 entries, got", tbl.Len())
	}

	_, err = Load(filepath.Join(dir, "no-such-file"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Error("Missing file should wrap ErrUnavailable, got", err)
	}
}
