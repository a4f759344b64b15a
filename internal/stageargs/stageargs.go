// Package stageargs turns one pipeline shard (the stage name/alias plus
// its own argv tail, per 4.E) into a plan.Spec: it extracts "-m <glob>…
// m-" sentinel spans before handing the rest to a per-stage
// github.com/spf13/pflag.FlagSet, then folds the parsed flags and
// positionals into the immutable Spec the plan and stage constructors
// consume.
package stageargs

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/jmylchreest/sop/internal/argv"
	"github.com/jmylchreest/sop/internal/plan"
	"github.com/jmylchreest/sop/internal/registry"
)

// stringFlag declares one single-valued flag a stage shard may carry.
type stringFlag struct {
	name      string
	shorthand string
}

// boolFlag declares one zero-arity switch a stage shard may carry.
type boolFlag struct {
	name      string
	shorthand string
}

// schema is the per-canonical-stage-name flag declaration used to build
// that stage's pflag.FlagSet. Multi-value sentinel flags (only "-m" on
// parse) are handled separately, before pflag ever sees the shard.
var schema = map[string]struct {
	strings []stringFlag
	bools   []boolFlag
}{
	"parse": {
		strings: []stringFlag{{"format", "f"}, {"base", ""}},
	},
	"serialize": {
		strings: []stringFlag{{"format", "f"}, {"output", "o"}},
	},
	"filter": {},
	"map": {
		strings: []stringFlag{{"s", "s"}, {"p", "p"}, {"o", "o"}, {"g", "g"}},
	},
	"merge": {
		bools: []boolFlag{{"drop", ""}},
	},
	"relativize": {
		strings: []stringFlag{{"base", ""}},
	},
	"absolutize": {
		strings: []stringFlag{{"base", ""}},
	},
	"query": {},
	"canonicalize": {
		strings: []stringFlag{{"output", "o"}},
	},
	"null": {},
}

// parseSentinelFlag, parseSentinelTerminator name the one multi-value
// sentinel-terminated flag the spec defines (4.E): parse's "-m <glob>…
// m-".
const (
	parseSentinelFlag       = "-m"
	parseSentinelTerminator = "m-"
)

// Parse turns one pipeline shard ([stageNameOrAlias, ...rest]) into a
// plan.Spec, resolving its alias to a canonical kind along the way.
func Parse(shard []string) (plan.Spec, error) {
	if len(shard) == 0 {
		return plan.Spec{}, &argv.UsageError{Message: "empty stage shard"}
	}
	entry, ok := registry.Resolve(shard[0])
	if !ok {
		return plan.Spec{}, &argv.UsageError{Message: fmt.Sprintf("unknown stage %q", shard[0])}
	}
	kind := entry.Canonical
	rest := shard[1:]

	options := make(map[string][]string)

	if kind == "parse" {
		globs, remaining, err := argv.ExtractSentinel(rest, parseSentinelFlag, parseSentinelTerminator)
		if err != nil {
			return plan.Spec{}, err
		}
		if globs != nil {
			options["m"] = globs
		}
		rest = remaining
	}

	sc := schema[kind]
	fs := pflag.NewFlagSet(kind, pflag.ContinueOnError)
	fs.SetOutput(discardWriter{})

	stringVals := make(map[string]*string, len(sc.strings))
	for _, f := range sc.strings {
		var v string
		if f.shorthand != "" {
			fs.StringVarP(&v, f.name, f.shorthand, "", "")
		} else {
			fs.StringVar(&v, f.name, "", "")
		}
		stringVals[f.name] = &v
	}
	boolVals := make(map[string]*bool, len(sc.bools))
	for _, f := range sc.bools {
		var v bool
		if f.shorthand != "" {
			fs.BoolVarP(&v, f.name, f.shorthand, false, "")
		} else {
			fs.BoolVar(&v, f.name, false, "")
		}
		boolVals[f.name] = &v
	}

	if err := fs.Parse(rest); err != nil {
		return plan.Spec{}, &argv.UsageError{Message: fmt.Sprintf("%s: %v", kind, err)}
	}

	for name, v := range stringVals {
		if fs.Changed(name) {
			options[name] = []string{*v}
		}
	}
	for name, v := range boolVals {
		if *v {
			options[name] = []string{""}
		}
	}

	return plan.Spec{Kind: kind, Options: options, Positional: fs.Args()}, nil
}

// discardWriter swallows pflag's own usage/error output; stageargs
// reports failures as UsageError instead.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
