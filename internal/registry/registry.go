// Package registry enumerates the fixed set of stage kinds a pipeline
// may use: their canonical names, aliases, and streaming role.
package registry

import "fmt"

// Role classifies how a stage kind behaves inside a plan, driving both
// compile-time placement rules (internal/plan) and the runtime shape of
// the stage itself.
type Role int

const (
	// RoleProducer stages only emit quads; exactly one must lead a plan.
	RoleProducer Role = iota
	// RoleTransformer stages read an upstream stream and emit a new one.
	RoleTransformer
	// RoleSink stages only read; they cannot appear except last.
	RoleSink
	// RoleSinkOrTransformer stages decide their concrete role at
	// construction time (query, depending on its SPARQL form).
	RoleSinkOrTransformer
)

func (r Role) String() string {
	switch r {
	case RoleProducer:
		return "producer"
	case RoleTransformer:
		return "transformer"
	case RoleSink:
		return "sink"
	case RoleSinkOrTransformer:
		return "sink-or-transformer"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Entry describes one stage kind as it appears in the registry table.
type Entry struct {
	// Canonical is the full stage name, e.g. "parse".
	Canonical string
	// Aliases are the short forms that resolve to Canonical, e.g. "p".
	Aliases []string
	Role    Role
}

// table is the fixed stage registry. Every required alias from the
// spec's stage-registry section must resolve through this map:
// p, s, f, ma, me, q, r, c14n, c, a, n, Z.
var table = []Entry{
	{Canonical: "parse", Aliases: []string{"p"}, Role: RoleProducer},
	{Canonical: "serialize", Aliases: []string{"s"}, Role: RoleTransformer},
	{Canonical: "filter", Aliases: []string{"f"}, Role: RoleTransformer},
	{Canonical: "map", Aliases: []string{"ma"}, Role: RoleTransformer},
	{Canonical: "merge", Aliases: []string{"me"}, Role: RoleTransformer},
	{Canonical: "query", Aliases: []string{"q"}, Role: RoleSinkOrTransformer},
	{Canonical: "relativize", Aliases: []string{"r"}, Role: RoleTransformer},
	{Canonical: "absolutize", Aliases: []string{"a"}, Role: RoleTransformer},
	{Canonical: "canonicalize", Aliases: []string{"c14n", "c"}, Role: RoleSink},
	{Canonical: "null", Aliases: []string{"n", "Z"}, Role: RoleSink},
}

// byName indexes both canonical names and aliases to their Entry,
// built once at package init so Resolve is O(1).
var byName map[string]*Entry

func init() {
	byName = make(map[string]*Entry, len(table)*2)
	for i := range table {
		e := &table[i]
		if _, dup := byName[e.Canonical]; dup {
			panic("registry: duplicate canonical name " + e.Canonical)
		}
		byName[e.Canonical] = e
		for _, alias := range e.Aliases {
			if existing, dup := byName[alias]; dup {
				panic(fmt.Sprintf("registry: alias %q ambiguous between %q and %q", alias, existing.Canonical, e.Canonical))
			}
			byName[alias] = e
		}
	}
}

// Resolve looks up a stage name or alias, returning its registry entry.
// Ambiguity is impossible by construction (checked at init), matching
// the spec's "ambiguity must be a hard error, never silent" rule by
// moving the check as early as possible.
func Resolve(name string) (*Entry, bool) {
	e, ok := byName[name]
	return e, ok
}

// Canonical returns the canonical stage name for name (itself or its
// alias target), or "" if name is not a known stage kind.
func Canonical(name string) string {
	if e, ok := Resolve(name); ok {
		return e.Canonical
	}
	return ""
}

// All returns every registered entry, in registry-table order.
func All() []Entry {
	out := make([]Entry, len(table))
	copy(out, table)
	return out
}
