package stage

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmylchreest/sop/internal/argv"
	"github.com/jmylchreest/sop/internal/expression"
	"github.com/jmylchreest/sop/internal/plan"
	"github.com/jmylchreest/sop/internal/registry"
	"github.com/jmylchreest/sop/internal/stream"
	"github.com/jmylchreest/sop/internal/term"
)

// QueryError reports a failure in the delegate SPARQL engine, per 7.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string { return fmt.Sprintf("query: %v", e.Err) }
func (e *QueryError) Unwrap() error { return e.Err }

// queryForm is the SPARQL query form, which decides query's role at
// construction time per 4.D's sink-or-transformer duality: ASK and
// SELECT only ever produce a non-quad result (a boolean line, a result
// table) and so are sinks; CONSTRUCT and DESCRIBE produce a quad stream
// and so are transformers.
type queryForm int

const (
	formAsk queryForm = iota
	formSelect
	formConstruct
	formDescribe
)

// patternSlot is one position of the query's single supported triple
// pattern: either a variable (bound to whatever term occupies that
// quad position) or a fixed term the position must match exactly. This
// is deliberately scoped down from full SPARQL: one basic graph pattern
// of exactly one triple, no joins, no property paths, no OPTIONAL/UNION
// — the spec names full SPARQL 1.1 compliance a non-goal (§1) and
// delegates the real engine entirely (§1, §4.D); this in-repo engine
// exists only to give the query stage something concrete to wrap.
type patternSlot struct {
	isVar    bool
	varName  string
	constant term.Term
}

func (p patternSlot) matches(t term.Term) bool {
	return p.isVar || p.constant.Equal(t)
}

// Query is the sink-or-transformer stage delegating to the (here,
// minimal in-repo) SPARQL engine. Non-streaming query forms buffer the
// whole input, per 5.
type Query struct {
	form     queryForm
	selectAll bool
	selectVars []string
	pattern  [3]patternSlot // subject, predicate, object
	template [3]patternSlot // CONSTRUCT only
	describe patternSlot    // DESCRIBE only
	filter   expression.Node
}

// NewQueryConstructor returns the plan.Constructor for "query".
func NewQueryConstructor() plan.Constructor {
	return func(spec plan.Spec) (plan.Built, error) {
		if len(spec.Positional) != 1 {
			return nil, &argv.UsageError{Message: fmt.Sprintf("query: expected exactly one query-string argument, got %d", len(spec.Positional))}
		}
		q, err := parseSPARQL(spec.Positional[0])
		if err != nil {
			return nil, &QueryError{Err: err}
		}
		return q, nil
	}
}

func (q *Query) Name() string { return "query" }

func (q *Query) Role() registry.Role {
	switch q.form {
	case formConstruct, formDescribe:
		return registry.RoleTransformer
	default:
		return registry.RoleSink
	}
}

// Wrap implements CONSTRUCT/DESCRIBE: the whole input is buffered (5),
// matched against the pattern and optional FILTER, and the resulting
// quads (built from the CONSTRUCT template, or the matched triple
// itself for DESCRIBE) replay as a new stream. Per the source's open
// question on base-IRI inheritance, the result stream inherits the
// input stream's base IRI (9).
func (q *Query) Wrap(ctx context.Context, upstream stream.Stream) stream.Stream {
	hdr := upstream.Header()
	quads, err := stream.Collect(upstream)
	if err != nil {
		return stream.FromError(&QueryError{Err: err})
	}
	eval := expression.NewEvaluator()

	var out []term.Quad
	for _, cand := range quads {
		if !q.matchPattern(cand, eval) {
			continue
		}
		if q.form == formConstruct {
			out = append(out, term.Quad{
				Subject:   q.resolveTemplateSlot(q.template[0], cand),
				Predicate: q.resolveTemplateSlot(q.template[1], cand),
				Object:    q.resolveTemplateSlot(q.template[2], cand),
				Graph:     term.DefaultGraph(),
			})
		} else {
			out = append(out, term.Quad{Subject: cand.Subject, Predicate: cand.Predicate, Object: cand.Object, Graph: term.DefaultGraph()})
		}
	}
	return stream.FromSlice(out, stream.Header{Base: hdr.Base})
}

func (q *Query) resolveTemplateSlot(slot patternSlot, cand term.Quad) term.Term {
	if !slot.isVar {
		return slot.constant
	}
	switch slot.varName {
	case "s":
		return cand.Subject
	case "p":
		return cand.Predicate
	case "o":
		return cand.Object
	case "g":
		return cand.Graph
	default:
		return cand.Subject
	}
}

// matchPattern reports whether cand satisfies the query's triple
// pattern and, if present, its FILTER expression (evaluated with the
// same ?s/?p/?o/?g binding convention filter uses, per 4.C).
func (q *Query) matchPattern(cand term.Quad, eval *expression.Evaluator) bool {
	if q.form == formDescribe {
		if !q.describe.matches(cand.Subject) {
			return false
		}
	} else {
		if !q.pattern[0].matches(cand.Subject) || !q.pattern[1].matches(cand.Predicate) || !q.pattern[2].matches(cand.Object) {
			return false
		}
	}
	if q.filter == nil {
		return true
	}
	return eval.EvalBoolean(q.filter, expression.Binding{Quad: cand})
}

// Drain implements ASK/SELECT: ASK prints a single "true"/"false" line;
// SELECT prints a tab-separated result table with a header row.
func (q *Query) Drain(ctx context.Context, upstream stream.Stream) error {
	quads, err := stream.Collect(upstream)
	if err != nil {
		return err
	}
	eval := expression.NewEvaluator()

	if q.form == formAsk {
		matched := false
		for _, cand := range quads {
			if q.matchPattern(cand, eval) {
				matched = true
				break
			}
		}
		fmt.Println(strconv.FormatBool(matched))
		return nil
	}

	vars := q.selectVars
	if q.selectAll {
		vars = []string{"s", "p", "o"}
	}
	fmt.Println(strings.Join(prefixVars(vars), "\t"))
	for _, cand := range quads {
		if !q.matchPattern(cand, eval) {
			continue
		}
		row := make([]string, len(vars))
		for i, v := range vars {
			row[i] = (patternSlot{isVar: true, varName: v}).resolveDisplay(cand)
		}
		fmt.Println(strings.Join(row, "\t"))
	}
	return nil
}

func (p patternSlot) resolveDisplay(cand term.Quad) string {
	switch p.varName {
	case "s":
		return cand.Subject.String()
	case "p":
		return cand.Predicate.String()
	case "o":
		return cand.Object.String()
	case "g":
		return cand.Graph.String()
	default:
		return ""
	}
}

func prefixVars(vars []string) []string {
	out := make([]string, len(vars))
	for i, v := range vars {
		out[i] = "?" + v
	}
	return out
}
