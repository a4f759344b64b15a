package stage

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jmylchreest/sop/internal/argv"
	"github.com/jmylchreest/sop/internal/plan"
	"github.com/jmylchreest/sop/internal/registry"
	"github.com/jmylchreest/sop/internal/stream"
	"github.com/jmylchreest/sop/internal/term"
)

// Absolutize is the inverse of Relativize: every IRI (which may only
// validly appear relative in an already-relative stream) is resolved
// against --base per RFC 3986 §5.3 (4.G).
type Absolutize struct {
	base *url.URL
}

// NewAbsolutizeConstructor returns the plan.Constructor for "absolutize".
func NewAbsolutizeConstructor() plan.Constructor {
	return func(spec plan.Spec) (plan.Built, error) {
		b, ok := spec.Option("base")
		if !ok || b == "" {
			return nil, &argv.UsageError{Message: "absolutize: --base is required"}
		}
		base, err := url.Parse(b)
		if err != nil {
			return nil, &argv.UsageError{Message: fmt.Sprintf("absolutize: invalid --base: %v", err)}
		}
		return &Absolutize{base: base}, nil
	}
}

func (a *Absolutize) Name() string        { return "absolutize" }
func (a *Absolutize) Role() registry.Role { return registry.RoleTransformer }

func (a *Absolutize) Wrap(ctx context.Context, upstream stream.Stream) stream.Stream {
	return &absolutizeStream{a: a, upstream: upstream}
}

type absolutizeStream struct {
	a        *Absolutize
	upstream stream.Stream
}

func (s *absolutizeStream) Next() stream.Result {
	res := s.upstream.Next()
	if res.Err != nil || res.Eof {
		return res
	}
	q := res.Quad
	q.Subject = s.rewrite(q.Subject)
	q.Predicate = s.rewrite(q.Predicate)
	q.Object = s.rewrite(q.Object)
	q.Graph = s.rewrite(q.Graph)
	return stream.Result{Quad: q}
}

func (s *absolutizeStream) rewrite(t term.Term) term.Term {
	if !t.IsIRI() {
		return t
	}
	ref, err := url.Parse(t.Value())
	if err != nil {
		return t
	}
	return term.IRI(s.a.base.ResolveReference(ref).String())
}

func (s *absolutizeStream) Header() stream.Header { return s.upstream.Header() }
func (s *absolutizeStream) Close() error          { return s.upstream.Close() }
