/*

Package overrides loads the operator-maintained override file which pins specific
reverse names to hand-chosen PTR values rather than the synthesized default.

The file is deliberately re-read on every query rather than cached. That trades a small
amount of latency for the ability to edit the file live without restarting or signaling
the daemon, which is the whole point of the file. The file is expected to be small.

File format: UTF-8 text, one "key = value" entry per line. Blank lines and lines
starting with '#' are ignored. Whitespace around key and value is trimmed. A duplicate
key later in the file replaces the earlier value but keeps the original position.

*/
package overrides

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrUnavailable indicates the override file could not be opened. Callers treat this as
// "no overrides" rather than a query failure, so an operator fumbling a rename degrades
// service to synthesized names instead of taking it down.
var ErrUnavailable = errors.New("override file unavailable")

const separator = " = "

type entry struct {
	key, value string
}

// Table is an ordered list of override entries as loaded from one file. A Table is
// never mutated after Load returns so it can be shared freely, tho in practice each
// query loads its own.
type Table struct {
	entries []entry
}

// Load reads and parses the override file at path. An unopenable file returns an error
// wrapping ErrUnavailable. Parsing itself cannot fail: lines that aren't entries are
// skipped.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err.Error())
	}
	defer f.Close()

	return Parse(f), nil
}

// Parse builds a Table from the supplied reader. Split off from Load for the benefit of
// tests and any future non-file source.
func Parse(rdr io.Reader) *Table {
	t := &Table{}
	position := make(map[string]int) // Key to entries index, for duplicate replacement

	scanner := bufio.NewScanner(rdr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, found := strings.Cut(line, separator)
		if !found {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if len(k) == 0 {
			continue
		}
		if ix, ok := position[k]; ok { // Duplicate keeps its original position
			t.entries[ix].value = v
			continue
		}
		position[k] = len(t.entries)
		t.entries = append(t.entries, entry{key: k, value: v})
	}

	return t
}

// Lookup scans the entries in load order and returns the value of the first entry whose
// key occurs as a substring of qName. A substring rather than an exact match is
// intentional, if a little surprising: it lets one entry cover a family of names. The
// flip side is that a short key can match far more than intended and only file order
// disambiguates, so this behavior is pinned down by tests and must not be "improved"
// into an exact match.
func (t *Table) Lookup(qName string) (string, bool) {
	for _, e := range t.entries {
		if strings.Contains(qName, e.key) {
			return e.value, true
		}
	}

	return "", false
}

// Len returns the number of entries loaded.
func (t *Table) Len() int {
	return len(t.entries)
}
