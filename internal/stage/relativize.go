package stage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jmylchreest/sop/internal/argv"
	"github.com/jmylchreest/sop/internal/plan"
	"github.com/jmylchreest/sop/internal/registry"
	"github.com/jmylchreest/sop/internal/stream"
	"github.com/jmylchreest/sop/internal/term"
)

// Relativize is the transformer stage that rewrites every IRI to its
// shortest relative form against --base, per RFC 3986 §5.3, but only
// when the relative form re-resolves to the original IRI; otherwise the
// IRI passes through unchanged (4.G).
type Relativize struct {
	base *url.URL
}

// NewRelativizeConstructor returns the plan.Constructor for "relativize".
func NewRelativizeConstructor() plan.Constructor {
	return func(spec plan.Spec) (plan.Built, error) {
		b, ok := spec.Option("base")
		if !ok || b == "" {
			return nil, &argv.UsageError{Message: "relativize: --base is required"}
		}
		base, err := url.Parse(b)
		if err != nil {
			return nil, &argv.UsageError{Message: fmt.Sprintf("relativize: invalid --base: %v", err)}
		}
		return &Relativize{base: base}, nil
	}
}

func (r *Relativize) Name() string        { return "relativize" }
func (r *Relativize) Role() registry.Role { return registry.RoleTransformer }

func (r *Relativize) Wrap(ctx context.Context, upstream stream.Stream) stream.Stream {
	return &relativizeStream{r: r, upstream: upstream}
}

type relativizeStream struct {
	r        *Relativize
	upstream stream.Stream
}

func (s *relativizeStream) Next() stream.Result {
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

func (s *relativizeStream) rewrite(t term.Term) term.Term {
	if !t.IsIRI() {
		return t
	}
	if rel, ok := relativizeIRI(s.r.base, t.Value()); ok {
		return term.IRI(rel)
	}
	return t
}

func (s *relativizeStream) Header() stream.Header { return s.upstream.Header() }
func (s *relativizeStream) Close() error          { return s.upstream.Close() }

// relativizeIRI computes the shortest IRI reference that, resolved
// against base per RFC 3986 §5.3, reproduces target exactly. It returns
// ok=false when no relative form round-trips (different scheme/authority,
// or a malformed target), in which case the caller must leave the IRI
// untouched.
func relativizeIRI(base *url.URL, target string) (string, bool) {
	t, err := url.Parse(target)
	if err != nil {
		return "", false
	}
	if t.Scheme != base.Scheme || t.Host != base.Host || t.User.String() != base.User.String() {
		return "", false
	}

	rel := &url.URL{Path: relativizePath(base.Path, t.Path), RawQuery: t.RawQuery, Fragment: t.Fragment}
	candidate := rel.String()
	if candidate == "" {
		candidate = "."
	}

	// An absolute-path reference ("/x/y") replaces the dot-segment form
	// when it is shorter and also round-trips.
	if strings.HasPrefix(t.Path, "/") && !strings.HasPrefix(t.Path, "//") {
		absRef := &url.URL{Path: t.Path, RawQuery: t.RawQuery, Fragment: t.Fragment}
		if s := absRef.String(); len(s) < len(candidate) && base.ResolveReference(absRef).String() == t.String() {
			return s, true
		}
	}

	resolved := base.ResolveReference(rel)
	if resolved.String() != t.String() {
		return "", false
	}
	return candidate, true
}

// relativizePath implements RFC 3986's merge (§5.3) in reverse: basePath
// is treated as a directory (its final segment, if any, is not part of
// the path the reference resolves against), and the result is a
// dot-segment path from that directory to targetPath.
func relativizePath(basePath, targetPath string) string {
	baseDir := basePath
	if i := strings.LastIndexByte(baseDir, '/'); i >= 0 {
		baseDir = baseDir[:i+1]
	} else {
		baseDir = ""
	}

	baseSegs := splitSegments(baseDir)
	targetSegs := splitSegments(targetPath)

	common := 0
	for common < len(baseSegs)-1 && common < len(targetSegs)-1 && baseSegs[common] == targetSegs[common] {
		common++
	}

	ups := (len(baseSegs) - 1) - common
	var parts []string
	for i := 0; i < ups; i++ {
		parts = append(parts, "..")
	}
	parts = append(parts, targetSegs[common:]...)
	return strings.Join(parts, "/")
}

// splitSegments splits a URL path into its '/'-delimited segments,
// keeping a trailing empty segment for a trailing slash so directory
// paths compare correctly.
func splitSegments(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
