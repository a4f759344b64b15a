package stage

import (
	"context"
	"fmt"

	"github.com/jmylchreest/sop/internal/argv"
	"github.com/jmylchreest/sop/internal/expression"
	"github.com/jmylchreest/sop/internal/plan"
	"github.com/jmylchreest/sop/internal/registry"
	"github.com/jmylchreest/sop/internal/stream"
)

// Filter is the transformer stage that keeps a quad iff its predicate
// expression evaluates to effective-boolean true (4.C, 4.G).
type Filter struct {
	expr expression.Node
}

// NewFilterConstructor returns the plan.Constructor for "filter". The
// expression is parsed once here, per 9's "parse once at stage
// construction" guidance.
func NewFilterConstructor() plan.Constructor {
	return func(spec plan.Spec) (plan.Built, error) {
		if len(spec.Positional) != 1 {
			return nil, &argv.UsageError{Message: fmt.Sprintf("filter: expected exactly one expression argument, got %d", len(spec.Positional))}
		}
		node, err := expression.Parse(spec.Positional[0])
		if err != nil {
			return nil, &ExpressionError{Err: err}
		}
		return &Filter{expr: node}, nil
	}
}

func (f *Filter) Name() string        { return "filter" }
func (f *Filter) Role() registry.Role { return registry.RoleTransformer }

func (f *Filter) Wrap(ctx context.Context, upstream stream.Stream) stream.Stream {
	return &filterStream{filter: f, upstream: upstream, eval: expression.NewEvaluator()}
}

type filterStream struct {
	filter   *Filter
	upstream stream.Stream
	eval     *expression.Evaluator
}

func (s *filterStream) Next() stream.Result {
	for {
		res := s.upstream.Next()
		if res.Err != nil || res.Eof {
			return res
		}
		binding := expression.Binding{Quad: res.Quad, Generalized: s.upstream.Header().Generalized}
		if s.eval.EvalBoolean(s.filter.expr, binding) {
			return res
		}
	}
}

func (s *filterStream) Header() stream.Header { return s.upstream.Header() }
func (s *filterStream) Close() error          { return s.upstream.Close() }

// ExpressionError reports an expression grammar or evaluation failure
// escaping coalesce, per 7.
type ExpressionError struct {
	Err error
}

func (e *ExpressionError) Error() string { return fmt.Sprintf("expression: %v", e.Err) }
func (e *ExpressionError) Unwrap() error { return e.Err }
