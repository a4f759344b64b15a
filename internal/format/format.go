// Package format resolves a concrete RDF syntax from an explicit CLI
// override, an HTTP Content-Type, or a file extension, in that order.
package format

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies a concrete RDF wire syntax.
type Format int

const (
	NTriples Format = iota
	NQuads
	Turtle
	TriG
	RDFXML
	JSONLD
)

func (f Format) String() string {
	switch f {
	case NTriples:
		return "N-Triples"
	case NQuads:
		return "N-Quads"
	case Turtle:
		return "Turtle"
	case TriG:
		return "TriG"
	case RDFXML:
		return "RDF/XML"
	case JSONLD:
		return "JSON-LD"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// IsMultiGraph reports whether f can natively represent more than the
// default graph, used by the serialize stage's graph-drop warning.
func (f Format) IsMultiGraph() bool {
	switch f {
	case NQuads, TriG, JSONLD:
		return true
	default:
		return false
	}
}

// IsGeneralizedCapable reports whether f's grammar allows terms outside
// the strict RDF 1.1 position restrictions (e.g. a blank node or
// literal predicate), used by the serialize stage's hard-error rule for
// a generalized stream targeting a standard-RDF syntax.
func (f Format) IsGeneralizedCapable() bool {
	return f == JSONLD
}

// aliases maps every recognized CLI/Content-Type/extension token,
// lowercased, to its Format. Matching is case-insensitive throughout.
var aliases = map[string]Format{
	"nt":                         NTriples,
	"ntriples":                   NTriples,
	"n-triples":                  NTriples,
	"application/n-triples":      NTriples,
	"nq":                         NQuads,
	"nquads":                     NQuads,
	"n-quads":                    NQuads,
	"application/n-quads":        NQuads,
	"ttl":                        Turtle,
	"turtle":                     Turtle,
	"text/turtle":                Turtle,
	"trig":                       TriG,
	"application/trig":           TriG,
	"rdf":                        RDFXML,
	"rdfxml":                     RDFXML,
	"rdf+xml":                    RDFXML,
	"application/rdf+xml":        RDFXML,
	"jsonld":                     JSONLD,
	"json-ld":                    JSONLD,
	"application/ld+json":        JSONLD,
	"application/ld+json; q=0.9": JSONLD,
}

// errUnresolved is wrapped into the returned error when no resolution
// source yields a format.
var errUnresolved = fmt.Errorf("could not resolve an RDF format")

// Lookup resolves a single alias token (CLI flag value, Content-Type,
// or extension, without its leading dot) to a Format.
func Lookup(token string) (Format, bool) {
	f, ok := aliases[strings.ToLower(strings.TrimSpace(token))]
	return f, ok
}

// Resolve implements the dispatch order from 4.H: explicit flag value,
// then an HTTP Content-Type (only meaningful for HTTP sources), then
// the source's file extension. sourceName may be a file path or URL;
// contentType is empty unless the source was fetched over HTTP.
func Resolve(explicit, contentType, sourceName string) (Format, error) {
	if explicit != "" {
		if f, ok := Lookup(explicit); ok {
			return f, nil
		}
		return 0, fmt.Errorf("unknown format %q", explicit)
	}
	if contentType != "" {
		ct := contentType
		if i := strings.IndexByte(ct, ';'); i >= 0 {
			ct = ct[:i]
		}
		if f, ok := Lookup(strings.TrimSpace(ct)); ok {
			return f, nil
		}
	}
	if ext := strings.TrimPrefix(filepath.Ext(sourceName), "."); ext != "" {
		if f, ok := Lookup(ext); ok {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: no --format, Content-Type, or recognized extension for %q", errUnresolved, sourceName)
}
