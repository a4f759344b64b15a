package stage

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/geoknoesis/rdf-go/rdf"
	"github.com/jmylchreest/sop/internal/argv"
	"github.com/jmylchreest/sop/internal/format"
	"github.com/jmylchreest/sop/internal/plan"
	"github.com/jmylchreest/sop/internal/registry"
	"github.com/jmylchreest/sop/internal/stream"
	"github.com/jmylchreest/sop/internal/term"
)

// SerializeError reports a quad the target syntax cannot represent, per 7.
type SerializeError struct {
	Format format.Format
	Err    error
}

func (e *SerializeError) Error() string {
	return fmt.Sprintf("serialize %s: %v", e.Format, e.Err)
}

func (e *SerializeError) Unwrap() error { return e.Err }

// Serialize is the transformer stage that writes each quad to a wire
// format as it arrives and re-emits it downstream (4.D, 4.G). An empty
// format string defers the format choice to the first pull, once the
// upstream Header is observable: N-Quads if the Header is marked
// generalized or the first quad is in a named graph, Turtle otherwise
// (4.F). Only the first quad is inspected; if it is in the default
// graph, later named-graph quads are dropped with a warning under Turtle.
type Serialize struct {
	explicitFormat string
	output         string
}

// NewSerializeConstructor returns the plan.Constructor for "serialize".
func NewSerializeConstructor() plan.Constructor {
	return func(spec plan.Spec) (plan.Built, error) {
		f, _ := spec.Option("format")
		out, _ := spec.Option("output")
		return &Serialize{explicitFormat: f, output: out}, nil
	}
}

func (s *Serialize) Name() string        { return "serialize" }
func (s *Serialize) Role() registry.Role { return registry.RoleTransformer }

func (s *Serialize) Wrap(ctx context.Context, upstream stream.Stream) stream.Stream {
	return &serializeStream{stage: s, upstream: upstream}
}

// serializeStream lazily resolves the output format and writer on the
// first pull (so it can consult the upstream's Header, only stable once
// a quad or EOF has been observed), then writes-and-re-emits each quad.
type serializeStream struct {
	stage    *Serialize
	upstream stream.Stream

	started bool
	failed  error
	w       io.WriteCloser
	ownsW   bool
	writer  interface {
		Write(term.Quad) error
		Close() error
	}
	fmt format.Format
}

func (s *serializeStream) Next() stream.Result {
	if s.failed != nil {
		return stream.Result{Err: s.failed}
	}
	res := s.upstream.Next()
	if !s.started {
		if err := s.start(res); err != nil {
			s.failed = err
			return stream.Result{Err: err}
		}
	}
	if res.Err != nil {
		s.writer.Close()
		return res
	}
	if res.Eof {
		if err := s.writer.Close(); err != nil {
			s.failed = err
			return stream.Result{Err: err}
		}
		return res
	}
	if err := s.writeOne(res.Quad); err != nil {
		s.failed = err
		return stream.Result{Err: err}
	}
	return res
}

func (s *serializeStream) start(first stream.Result) error {
	s.started = true
	hdr := s.upstream.Header()

	f := s.fmt
	if s.stage.explicitFormat != "" {
		resolved, ok := format.Lookup(s.stage.explicitFormat)
		if !ok {
			return &argv.UsageError{Message: fmt.Sprintf("serialize: unknown format %q", s.stage.explicitFormat)}
		}
		f = resolved
	} else {
		multiGraph := hdr.Generalized || (!first.Eof && first.Err == nil && !first.Quad.Graph.IsDefaultGraph())
		if multiGraph {
			f = format.NQuads
		} else {
			f = format.Turtle
		}
	}
	s.fmt = f

	var w io.WriteCloser
	if s.stage.output != "" {
		file, err := os.Create(s.stage.output)
		if err != nil {
			return &SerializeError{Format: f, Err: err}
		}
		w = file
		s.ownsW = true
	} else {
		w = nopWriteCloser{os.Stdout}
	}
	s.w = w

	wf, ok := wireFormat(wireFormatToken(f))
	if !ok {
		return &SerializeError{Format: f, Err: fmt.Errorf("no wire encoder for %s", f)}
	}
	enc, err := newRDFQuadWriter(w, wf)
	if err != nil {
		return &SerializeError{Format: f, Err: err}
	}
	s.writer = enc
	return nil
}

func (s *serializeStream) writeOne(q term.Quad) error {
	// The underlying wire Statement always types its predicate as a plain
	// IRI (rdf-go's rdf.Statement.P), so a blank or literal predicate
	// cannot be written to any format, JSON-LD included.
	if q.Predicate.IsLiteral() || q.Predicate.IsBlank() {
		return &SerializeError{Format: s.fmt, Err: fmt.Errorf("generalized predicate cannot be represented in %s", s.fmt)}
	}
	if !s.fmt.IsGeneralizedCapable() && q.Subject.IsLiteral() {
		return &SerializeError{Format: s.fmt, Err: fmt.Errorf("generalized quad cannot be represented in %s", s.fmt)}
	}
	if !q.Graph.IsDefaultGraph() && !s.fmt.IsMultiGraph() {
		fmt.Fprintf(os.Stderr, "sop: serialize: dropping quad in named graph <%s>: %s cannot represent named graphs\n", q.Graph.Value(), s.fmt)
		return nil
	}
	return s.writer.Write(q)
}

func (s *serializeStream) Header() stream.Header { return s.upstream.Header() }

func (s *serializeStream) Close() error {
	if s.ownsW && s.w != nil {
		s.w.Close()
	}
	return s.upstream.Close()
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// rdfQuadWriter adapts an rdf.Writer (which wants a Statement) to take
// this module's term.Quad, flushing after every write so output is
// visible incrementally as the stage re-emits (4.G: "writes... and
// re-emits it on its output stream").
type rdfQuadWriter struct {
	w rdf.Writer
}

func newRDFQuadWriter(w io.Writer, f rdf.Format) (*rdfQuadWriter, error) {
	writer, err := rdf.NewWriter(w, f)
	if err != nil {
		return nil, err
	}
	return &rdfQuadWriter{w: writer}, nil
}

func (r *rdfQuadWriter) Write(q term.Quad) error {
	stmt, err := toWireStatement(q)
	if err != nil {
		return err
	}
	if err := r.w.Write(stmt); err != nil {
		return err
	}
	return r.w.Flush()
}

func (r *rdfQuadWriter) Close() error { return r.w.Close() }
