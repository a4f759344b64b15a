package stage

import (
	"context"

	"github.com/jmylchreest/sop/internal/plan"
	"github.com/jmylchreest/sop/internal/registry"
	"github.com/jmylchreest/sop/internal/stream"
	"github.com/jmylchreest/sop/internal/term"
)

// Merge is the transformer stage that rewrites every quad's graph to the
// default graph, per 4.G. Without --drop it re-emits both the original
// and the rewritten quad; with --drop only the rewrite survives and the
// stream becomes default-graph only.
type Merge struct {
	drop bool
}

// NewMergeConstructor returns the plan.Constructor for "merge".
func NewMergeConstructor() plan.Constructor {
	return func(spec plan.Spec) (plan.Built, error) {
		_, drop := spec.Option("drop")
		return &Merge{drop: drop}, nil
	}
}

func (m *Merge) Name() string        { return "merge" }
func (m *Merge) Role() registry.Role { return registry.RoleTransformer }

func (m *Merge) Wrap(ctx context.Context, upstream stream.Stream) stream.Stream {
	return &mergeStream{merge: m, upstream: upstream}
}

type mergeStream struct {
	merge    *Merge
	upstream stream.Stream
	// pending holds the rewritten default-graph copy queued for emission
	// right after its original, when not dropping.
	pending *term.Quad
}

func (s *mergeStream) Next() stream.Result {
	if s.pending != nil {
		q := *s.pending
		s.pending = nil
		return stream.Result{Quad: q}
	}
	res := s.upstream.Next()
	if res.Err != nil || res.Eof {
		return res
	}
	rewritten := res.Quad
	rewritten.Graph = term.DefaultGraph()

	if s.merge.drop {
		return stream.Result{Quad: rewritten}
	}
	s.pending = &rewritten
	return res
}

func (s *mergeStream) Header() stream.Header { return s.upstream.Header() }

func (s *mergeStream) Close() error { return s.upstream.Close() }
