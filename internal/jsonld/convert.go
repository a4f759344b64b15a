package jsonld

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/geoknoesis/rdf-go/rdf"
	"github.com/jmylchreest/sop/internal/term"
)

// rdfLoaderAdapter adapts this package's Composite (an ld.DocumentLoader)
// to the context-aware rdf.DocumentLoader interface rdf-go's own JSON-LD
// processor expects.
type rdfLoaderAdapter struct {
	inner Composite
}

func (a rdfLoaderAdapter) LoadDocument(_ context.Context, iri string) (rdf.RemoteDocument, error) {
	doc, err := a.inner.LoadDocument(iri)
	if err != nil {
		return rdf.RemoteDocument{}, err
	}
	return rdf.RemoteDocument{DocumentURL: doc.DocumentURL, Document: doc.Document, ContextURL: doc.ContextURL}, nil
}

// ToQuads expands and flattens a JSON-LD document (raw bytes) to quads,
// resolving remote @context references through loader per 4.I. The
// second return value reports whether any decoded quad fell outside the
// strict RDF position restrictions, so the caller can mark its stream
// generalized (4.A).
func ToQuads(data []byte, base string, loader Composite) ([]term.Quad, bool, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, fmt.Errorf("jsonld: invalid JSON document: %w", err)
	}

	proc := rdf.NewJSONLDProcessor()
	wireQuads, err := proc.ToRDF(context.Background(), doc, rdf.JSONLDOptions{
		BaseIRI:               base,
		DocumentLoader:        rdfLoaderAdapter{inner: loader},
		ProduceGeneralizedRdf: true,
	})
	if err != nil {
		return nil, false, fmt.Errorf("jsonld: expanding to RDF: %w", err)
	}

	quads := make([]term.Quad, 0, len(wireQuads))
	generalized := false
	for _, wq := range wireQuads {
		q, err := fromWireQuad(wq)
		if err != nil {
			return nil, false, fmt.Errorf("jsonld: %w", err)
		}
		if q.Subject.IsLiteral() || q.Predicate.IsLiteral() || q.Predicate.IsBlank() {
			generalized = true
		}
		quads = append(quads, q)
	}
	return quads, generalized, nil
}

// fromWireQuad converts a decoded rdf.Quad into this module's term.Quad.
// It mirrors internal/stage's fromWireStatement but is kept local to
// avoid a jsonld<->stage import cycle (stage imports jsonld, not the
// other way around).
func fromWireQuad(q rdf.Quad) (term.Quad, error) {
	s, err := fromWireTerm(q.S)
	if err != nil {
		return term.Quad{}, err
	}
	p, err := fromWireTerm(q.P)
	if err != nil {
		return term.Quad{}, err
	}
	o, err := fromWireTerm(q.O)
	if err != nil {
		return term.Quad{}, err
	}
	g, err := fromWireTerm(q.G)
	if err != nil {
		return term.Quad{}, err
	}
	return term.Quad{Subject: s, Predicate: p, Object: o, Graph: g}, nil
}

func fromWireTerm(t rdf.Term) (term.Term, error) {
	if t == nil {
		return term.DefaultGraph(), nil
	}
	switch v := t.(type) {
	case rdf.IRI:
		return term.IRI(v.Value), nil
	case rdf.BlankNode:
		return term.Blank(v.ID), nil
	case rdf.Literal:
		switch {
		case v.Lang != "":
			return term.LangLiteral(v.Lexical, v.Lang), nil
		case v.Datatype.Value != "":
			return term.TypedLiteral(v.Lexical, v.Datatype.Value), nil
		default:
			return term.TypedLiteral(v.Lexical, term.XSDString), nil
		}
	default:
		return term.Term{}, fmt.Errorf("unrecognized JSON-LD wire term %T", t)
	}
}
