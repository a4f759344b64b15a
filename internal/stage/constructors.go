package stage

import (
	"github.com/jmylchreest/sop/internal/jsonld"
	"github.com/jmylchreest/sop/internal/plan"
)

// Constructors returns the full plan.Constructor table, keyed by
// canonical stage name, for every stage kind the registry defines.
// loader is threaded into the parse stage alone (4.I).
func Constructors(loader jsonld.Composite) map[string]plan.Constructor {
	return map[string]plan.Constructor{
		"parse":        NewParseConstructor(loader),
		"serialize":    NewSerializeConstructor(),
		"filter":       NewFilterConstructor(),
		"map":          NewMapConstructor(),
		"merge":        NewMergeConstructor(),
		"query":        NewQueryConstructor(),
		"relativize":   NewRelativizeConstructor(),
		"absolutize":   NewAbsolutizeConstructor(),
		"canonicalize": NewCanonicalizeConstructor(),
		"null":         NewNullConstructor(),
	}
}
