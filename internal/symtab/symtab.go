// Package symtab implements the C3 SymbolTable: a hierarchical
// name -> value store with a current-context cursor, and the two-table
// (symbols / symbol_guesses) discipline of §4.3.
package symtab

import (
	"hash/fnv"
	"sort"

	"github.com/dchest/siphash"
	"github.com/xyproto/customasm/internal/eval"
)

// Context is the cursor updated by the parser as lexical scopes open
// and close. Scopes holds the enclosing scope names, outermost first.
type Context struct {
	Scopes []string
}

// Push returns a new Context with name appended as the innermost scope.
// Context values are treated as immutable snapshots (captured into
// Invocation.Context per spec.md §3), so Push never mutates c.
func (c Context) Push(name string) Context {
	scopes := make([]string, len(c.Scopes)+1)
	copy(scopes, c.Scopes)
	scopes[len(c.Scopes)] = name
	return Context{Scopes: scopes}
}

// Symbol is a fully-qualified name path, the hierarchy level used to
// resolve it, and its value.
type Symbol struct {
	Path           []string
	HierarchyLevel int
	Value          eval.Value
}

type entry struct {
	path  []string
	value Symbol
}

// Table is a hierarchical name -> Symbol store, bucketed by an FNV hash
// of the qualified path (grounded on the teacher's hashmap.go bucket
// chaining), with exact-match verification on collision.
type Table struct {
	buckets map[uint64][]*entry
}

// New returns an empty Table.
func New() *Table {
	return &Table{buckets: make(map[uint64][]*entry)}
}

func hashPath(path []string) uint64 {
	h := fnv.New64a()
	for i, s := range path {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(s))
	}
	return h.Sum64()
}

func pathEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Qualify combines a cursor and hierarchy_level with a relative path to
// produce the fully qualified name, per §4.3's lookup contract.
func Qualify(cursor Context, hierarchyLevel int, path []string) []string {
	n := hierarchyLevel
	if n > len(cursor.Scopes) {
		n = len(cursor.Scopes)
	}
	if n < 0 {
		n = 0
	}
	full := make([]string, 0, n+len(path))
	full = append(full, cursor.Scopes[:n]...)
	full = append(full, path...)
	return full
}

// Declare inserts or overwrites the symbol at the qualified path formed
// from cursor/hierarchyLevel/path.
func (t *Table) Declare(cursor Context, hierarchyLevel int, path []string, value eval.Value) {
	full := Qualify(cursor, hierarchyLevel, path)
	key := hashPath(full)
	for _, e := range t.buckets[key] {
		if pathEqual(e.path, full) {
			e.value = Symbol{Path: full, HierarchyLevel: hierarchyLevel, Value: value}
			return
		}
	}
	t.buckets[key] = append(t.buckets[key], &entry{
		path:  full,
		value: Symbol{Path: full, HierarchyLevel: hierarchyLevel, Value: value},
	})
}

// Get resolves cursor/hierarchyLevel/path to a Symbol, per the lookup
// contract of §4.3.
func (t *Table) Get(cursor Context, hierarchyLevel int, path []string) (Symbol, bool) {
	full := Qualify(cursor, hierarchyLevel, path)
	key := hashPath(full)
	for _, e := range t.buckets[key] {
		if pathEqual(e.path, full) {
			return e.value, true
		}
	}
	return Symbol{}, false
}

// fingerprintKey0/Key1 are a fixed, process-wide siphash key: the
// fingerprint only needs to be stable within one run (to compare one
// pass's guess table against the next), not across processes or
// resistant to adversarial input.
const fingerprintKey0, fingerprintKey1 = 0x636173746f6d6173, 0x6d5f7376746c6f67

// Fingerprint returns a siphash digest of every symbol currently in the
// table, order-independent, so internal/driver can cheaply tell whether
// a pass's guess table is byte-for-byte identical to the previous one
// (see SPEC_FULL.md's siphash entry under Domain Stack).
func (t *Table) Fingerprint() uint64 {
	paths := make([]string, 0, len(t.buckets))
	byPath := make(map[string]*entry)
	for _, bucket := range t.buckets {
		for _, e := range bucket {
			key := joinPath(e.path)
			paths = append(paths, key)
			byPath[key] = e
		}
	}
	sort.Strings(paths)
	var acc uint64
	for _, p := range paths {
		e := byPath[p]
		buf := []byte(p + "\x00" + e.value.Value.String())
		acc ^= siphash.Hash(fingerprintKey0, fingerprintKey1, buf)
	}
	return acc
}

func joinPath(path []string) string {
	out := ""
	for i, s := range path {
		if i > 0 {
			out += "\x1f"
		}
		out += s
	}
	return out
}
