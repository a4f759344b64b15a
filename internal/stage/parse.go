package stage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/geoknoesis/rdf-go/rdf"
	"github.com/google/uuid"
	"golang.org/x/net/http2"

	"github.com/jmylchreest/sop/internal/argv"
	"github.com/jmylchreest/sop/internal/format"
	"github.com/jmylchreest/sop/internal/globmatch"
	"github.com/jmylchreest/sop/internal/jsonld"
	"github.com/jmylchreest/sop/internal/plan"
	"github.com/jmylchreest/sop/internal/registry"
	"github.com/jmylchreest/sop/internal/stream"
	"github.com/jmylchreest/sop/internal/term"
)

// sourceHTTPClient fetches remote sources (4.G's URL sources), negotiating
// HTTP/2 over TLS via x/net/http2 where the server supports it while
// keeping net/http's ordinary cleartext HTTP/1.1 path for plain "http://"
// sources.
var sourceHTTPClient = newSourceHTTPClient()

func newSourceHTTPClient() *http.Client {
	transport := &http.Transport{}
	if err := http2.ConfigureTransport(transport); err != nil {
		return &http.Client{Transport: transport}
	}
	return &http.Client{Transport: transport}
}

// ParseError reports a failure decoding one source, per 4.G.
type ParseError struct {
	Source string
	Offset int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse is the producer stage: it resolves a list of file/URL sources
// (expanded from -m glob patterns and positional arguments) and
// concatenates their decoded quad streams in argument order.
type Parse struct {
	sources    []string
	format     string
	base       string
	composite  jsonld.Composite
}

// NewParseConstructor returns the plan.Constructor for "parse". loader
// is the shared JSON-LD context loader composition (4.I), wired once at
// startup from the CLI's --jsonld-* flags.
func NewParseConstructor(loader jsonld.Composite) plan.Constructor {
	return func(spec plan.Spec) (plan.Built, error) {
		globs := spec.OptionValues("m")
		var sources []string
		for _, g := range globs {
			matches, err := globmatch.Expand(g)
			if err != nil {
				return nil, &argv.UsageError{Message: err.Error()}
			}
			sources = append(sources, matches...)
		}
		sources = append(sources, spec.Positional...)
		if len(sources) == 0 {
			// No -m globs and no positional sources: read stdin (6).
			sources = []string{"-"}
		}
		explicitFormat, _ := spec.Option("format")
		base, _ := spec.Option("base")
		return &Parse{sources: sources, format: explicitFormat, base: base, composite: loader}, nil
	}
}

func (p *Parse) Name() string         { return "parse" }
func (p *Parse) Role() registry.Role  { return registry.RoleProducer }

func (p *Parse) Produce(ctx context.Context) stream.Stream {
	streams := make([]stream.Stream, 0, len(p.sources))
	// Blank node labels are only scoped within a single source (4.A).
	// Concatenating more than one source needs a per-source prefix so
	// that two files coincidentally both using "_:b0" don't get merged
	// into the same node; a lone source is left untouched so a
	// single-file round trip never perturbs its labels.
	multi := len(p.sources) > 1
	for _, src := range p.sources {
		var prefix string
		if multi {
			prefix = uuid.New().String()[:8] + "-"
		}
		streams = append(streams, p.produceOne(ctx, src, prefix))
	}
	return stream.Concat(streams)
}

func (p *Parse) produceOne(ctx context.Context, src, blankPrefix string) stream.Stream {
	body, contentType, base, closeFn, err := openSource(ctx, src)
	if err != nil {
		return stream.FromError(&ParseError{Source: src, Err: err})
	}
	if p.base != "" {
		base = p.base
	}

	explicit := p.format
	f, err := format.Resolve(explicit, contentType, src)
	if err != nil {
		closeFn()
		return stream.FromError(&ParseError{Source: src, Err: err})
	}

	if f == format.JSONLD {
		quads, generalized, err := decodeJSONLD(body, base, p.composite)
		closeFn()
		if err != nil {
			return stream.FromError(&ParseError{Source: src, Err: err})
		}
		if blankPrefix != "" {
			for i, q := range quads {
				quads[i] = rewriteBlankQuad(q, blankPrefix)
			}
		}
		return stream.FromSlice(quads, stream.Header{Generalized: generalized, Base: base})
	}

	wf, ok := wireFormat(wireFormatToken(f))
	if !ok {
		closeFn()
		return stream.FromError(&ParseError{Source: src, Err: fmt.Errorf("no wire decoder for %s", f)})
	}
	reader, err := rdf.NewReader(body, wf)
	if err != nil {
		closeFn()
		return stream.FromError(&ParseError{Source: src, Err: err})
	}
	return &decodedStream{src: src, base: base, reader: reader, closeExtra: closeFn, blankPrefix: blankPrefix}
}

// openSource opens a file path or http(s) URL, returning its body, the
// HTTP Content-Type (empty for files), a default base IRI, and a close
// function releasing any underlying resource.
func openSource(ctx context.Context, src string) (io.Reader, string, string, func(), error) {
	if src == "-" {
		// Stdin has no extension and no Content-Type to resolve a
		// format from, so the caller must supply --format explicitly.
		return os.Stdin, "", "", func() {}, nil
	}
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, "", "", func() {}, err
		}
		resp, err := sourceHTTPClient.Do(req)
		if err != nil {
			return nil, "", "", func() {}, err
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, "", "", func() {}, fmt.Errorf("fetching %s: HTTP %d", src, resp.StatusCode)
		}
		return resp.Body, resp.Header.Get("Content-Type"), src, func() { resp.Body.Close() }, nil
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, "", "", func() {}, err
	}
	abs, err := filepath.Abs(src)
	if err != nil {
		abs = src
	}
	base := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	return f, "", base, func() { f.Close() }, nil
}

// wireFormatToken maps this module's format.Format to the token
// rdf.ParseFormat expects.
func wireFormatToken(f format.Format) string {
	switch f {
	case format.NTriples:
		return "ntriples"
	case format.NQuads:
		return "nquads"
	case format.Turtle:
		return "turtle"
	case format.TriG:
		return "trig"
	case format.RDFXML:
		return "rdfxml"
	case format.JSONLD:
		return "jsonld"
	default:
		return ""
	}
}

// decodedStream adapts an rdf.Reader into a stream.Stream, tracking
// whether any decoded statement fell outside the strict RDF position
// restrictions (generalized quads, per 4.A's "sticky" flag).
type decodedStream struct {
	src         string
	base        string
	reader      rdf.Reader
	closeExtra  func()
	generalized bool
	closed      bool
	blankPrefix string
}

func (d *decodedStream) Next() stream.Result {
	stmt, err := d.reader.Next()
	if err == io.EOF {
		return stream.Result{Eof: true}
	}
	if err != nil {
		return stream.Result{Err: &ParseError{Source: d.src, Err: err}}
	}
	q, err := fromWireStatement(stmt)
	if err != nil {
		return stream.Result{Err: &ParseError{Source: d.src, Err: err}}
	}
	if q.Subject.IsLiteral() || q.Predicate.IsLiteral() || q.Predicate.IsBlank() {
		d.generalized = true
	}
	q = rewriteBlankQuad(q, d.blankPrefix)
	return stream.Result{Quad: q}
}

func (d *decodedStream) Header() stream.Header {
	return stream.Header{Generalized: d.generalized, Base: d.base}
}

func (d *decodedStream) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	err := d.reader.Close()
	d.closeExtra()
	return err
}

// decodeJSONLD expands and flattens a JSON-LD document to quads through
// jsonld.ToQuads (rdf-go's JSON-LD processor), resolving remote @context
// references through the composite loader wired from 4.I.
func decodeJSONLD(r io.Reader, base string, loader jsonld.Composite) ([]term.Quad, bool, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, false, err
	}
	quads, generalized, err := jsonld.ToQuads(buf.Bytes(), base, loader)
	if err != nil {
		return nil, false, err
	}
	return quads, generalized, nil
}
