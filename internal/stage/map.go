package stage

import (
	"context"
	"fmt"

	"github.com/jmylchreest/sop/internal/expression"
	"github.com/jmylchreest/sop/internal/plan"
	"github.com/jmylchreest/sop/internal/registry"
	"github.com/jmylchreest/sop/internal/stream"
	"github.com/jmylchreest/sop/internal/term"
)

// Map is the transformer stage that substitutes one or more quad
// positions with the result of an expression, per 4.G. Unspecified
// positions pass through unchanged.
type Map struct {
	subject, predicate, object, graph expression.Node
}

// NewMapConstructor returns the plan.Constructor for "map".
func NewMapConstructor() plan.Constructor {
	return func(spec plan.Spec) (plan.Built, error) {
		m := &Map{}
		var err error
		if v, ok := spec.Option("s"); ok {
			if m.subject, err = expression.Parse(v); err != nil {
				return nil, &ExpressionError{Err: err}
			}
		}
		if v, ok := spec.Option("p"); ok {
			if m.predicate, err = expression.Parse(v); err != nil {
				return nil, &ExpressionError{Err: err}
			}
		}
		if v, ok := spec.Option("o"); ok {
			if m.object, err = expression.Parse(v); err != nil {
				return nil, &ExpressionError{Err: err}
			}
		}
		if v, ok := spec.Option("g"); ok {
			if m.graph, err = expression.Parse(v); err != nil {
				return nil, &ExpressionError{Err: err}
			}
		}
		return m, nil
	}
}

func (m *Map) Name() string        { return "map" }
func (m *Map) Role() registry.Role { return registry.RoleTransformer }

func (m *Map) Wrap(ctx context.Context, upstream stream.Stream) stream.Stream {
	return &mapStream{m: m, upstream: upstream, eval: expression.NewEvaluator()}
}

type mapStream struct {
	m           *Map
	upstream    stream.Stream
	eval        *expression.Evaluator
	generalized bool
}

func (s *mapStream) Next() stream.Result {
	res := s.upstream.Next()
	if res.Err != nil || res.Eof {
		return res
	}
	binding := expression.Binding{Quad: res.Quad, Generalized: s.upstream.Header().Generalized}

	q := res.Quad
	if s.m.subject != nil {
		t, err := s.evalPosition(s.m.subject, binding)
		if err != nil {
			return stream.Result{Err: &ExpressionError{Err: fmt.Errorf("map -s: %w", err)}}
		}
		q.Subject = t
	}
	if s.m.predicate != nil {
		t, err := s.evalPosition(s.m.predicate, binding)
		if err != nil {
			return stream.Result{Err: &ExpressionError{Err: fmt.Errorf("map -p: %w", err)}}
		}
		q.Predicate = t
	}
	if s.m.object != nil {
		t, err := s.evalPosition(s.m.object, binding)
		if err != nil {
			return stream.Result{Err: &ExpressionError{Err: fmt.Errorf("map -o: %w", err)}}
		}
		q.Object = t
	}
	if s.m.graph != nil {
		t, err := s.evalPosition(s.m.graph, binding)
		if err != nil {
			return stream.Result{Err: &ExpressionError{Err: fmt.Errorf("map -g: %w", err)}}
		}
		q.Graph = t
	}

	if q.Subject.IsLiteral() || q.Predicate.IsLiteral() || q.Predicate.IsBlank() {
		s.generalized = true
	}
	return stream.Result{Quad: q}
}

// evalPosition evaluates node and coerces the result into a term
// suitable for a quad position. Unbound and error values are stage-level
// failures here (4.C): the user must wrap a fallible substitution in
// coalesce() themselves if a pass-through default is wanted.
func (s *mapStream) evalPosition(node expression.Node, b expression.Binding) (term.Term, error) {
	v := s.eval.Eval(node, b)
	switch v.Kind {
	case expression.ValTerm:
		return v.Term, nil
	case expression.ValUnbound:
		return term.Term{}, fmt.Errorf("substitution is unbound")
	default:
		return term.Term{}, v.Err
	}
}

func (s *mapStream) Header() stream.Header {
	h := s.upstream.Header()
	h.Generalized = h.Generalized || s.generalized
	return h
}

func (s *mapStream) Close() error { return s.upstream.Close() }
