// Package stage implements the concrete pipeline stages: parse,
// serialize, filter, map, merge, query, relativize, absolutize,
// canonicalize and null. Each constructor returns a value satisfying
// one or more of plan.Producer/Transformer/Sink, built from the
// stage's parsed Spec.
package stage

import (
	"fmt"

	"github.com/geoknoesis/rdf-go/rdf"
	"github.com/jmylchreest/sop/internal/term"
)

// fromWireTerm converts a decoded github.com/geoknoesis/rdf-go term into
// this module's own term.Term, which every downstream component
// (expression, stream, stages) operates on.
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
	case rdf.TripleTerm:
		s, err := fromWireTerm(v.S)
		if err != nil {
			return term.Term{}, err
		}
		o, err := fromWireTerm(v.O)
		if err != nil {
			return term.Term{}, err
		}
		return term.TripleTerm(term.Triple{Subject: s, Predicate: term.IRI(v.P.Value), Object: o}), nil
	default:
		return term.Term{}, fmt.Errorf("stage: unrecognized wire term type %T", t)
	}
}

// fromWireStatement converts a decoded rdf.Statement into a term.Quad,
// the Header's Generalized flag recording whether any component fell
// outside the strict RDF 1.1 position restrictions (handled by the
// caller, since that requires looking across the whole source).
func fromWireStatement(s rdf.Statement) (term.Quad, error) {
	subj, err := fromWireTerm(s.S)
	if err != nil {
		return term.Quad{}, err
	}
	pred, err := fromWireTerm(s.P)
	if err != nil {
		return term.Quad{}, err
	}
	obj, err := fromWireTerm(s.O)
	if err != nil {
		return term.Quad{}, err
	}
	graph, err := fromWireTerm(s.G)
	if err != nil {
		return term.Quad{}, err
	}
	return term.Quad{Subject: subj, Predicate: pred, Object: obj, Graph: graph}, nil
}

// toWireTerm converts this module's term.Term back to a
// github.com/geoknoesis/rdf-go term for encoding.
func toWireTerm(t term.Term) (rdf.Term, error) {
	switch t.Kind() {
	case term.KindIRI:
		return rdf.IRI{Value: t.Value()}, nil
	case term.KindBlank:
		return rdf.BlankNode{ID: t.Value()}, nil
	case term.KindVariable:
		return nil, fmt.Errorf("stage: cannot serialize an unbound variable ?%s", t.Value())
	case term.KindDefaultGraph:
		return nil, nil
	case term.KindLiteral:
		lit := rdf.Literal{Lexical: t.Value()}
		if t.HasLang() {
			lit.Lang = t.Lang()
		} else if dt := t.Datatype(); dt != term.XSDString {
			lit.Datatype = rdf.IRI{Value: dt}
		}
		return lit, nil
	case term.KindTripleTerm:
		tr := t.Triple()
		s, err := toWireTerm(tr.Subject)
		if err != nil {
			return nil, err
		}
		o, err := toWireTerm(tr.Object)
		if err != nil {
			return nil, err
		}
		return rdf.TripleTerm{S: s, P: rdf.IRI{Value: tr.Predicate.Value()}, O: o}, nil
	default:
		return nil, fmt.Errorf("stage: unrecognized term kind %v", t.Kind())
	}
}

// toWireStatement converts a term.Quad into an rdf.Statement ready for
// an rdf.Writer. The graph field is left nil for the default graph.
func toWireStatement(q term.Quad) (rdf.Statement, error) {
	s, err := toWireTerm(q.Subject)
	if err != nil {
		return rdf.Statement{}, err
	}
	p, err := toWireTerm(q.Predicate)
	if err != nil {
		return rdf.Statement{}, err
	}
	o, err := toWireTerm(q.Object)
	if err != nil {
		return rdf.Statement{}, err
	}
	var g rdf.Term
	if !q.Graph.IsDefaultGraph() {
		g, err = toWireTerm(q.Graph)
		if err != nil {
			return rdf.Statement{}, err
		}
	}
	p2, ok := p.(rdf.IRI)
	if !ok {
		return rdf.Statement{}, fmt.Errorf("stage: predicate must be an IRI, got %T", p)
	}
	return rdf.Statement{S: s, P: p2, O: o, G: g}, nil
}

// wireFormat looks up the rdf-go Format used by rdf.NewReader/rdf.NewWriter
// for a format token such as the ones wireFormatToken returns.
func wireFormat(tok string) (rdf.Format, bool) {
	return rdf.ParseFormat(tok)
}

// rewriteBlankQuad prefixes every blank node label in q with prefix, so
// that concatenating several parse sources into one stream cannot
// accidentally merge two sources' blank nodes that happen to share a
// label (4.A: "across streams blank identity is not preserved").
// A zero-value prefix is a no-op, used for the common single-source case
// so round-tripping a single file never perturbs its blank labels.
func rewriteBlankQuad(q term.Quad, prefix string) term.Quad {
	if prefix == "" {
		return q
	}
	return term.Quad{
		Subject:   rewriteBlankTerm(q.Subject, prefix),
		Predicate: q.Predicate,
		Object:    rewriteBlankTerm(q.Object, prefix),
		Graph:     rewriteBlankTerm(q.Graph, prefix),
	}
}

func rewriteBlankTerm(t term.Term, prefix string) term.Term {
	switch t.Kind() {
	case term.KindBlank:
		return term.Blank(prefix + t.Value())
	case term.KindTripleTerm:
		tr := t.Triple()
		return term.TripleTerm(term.Triple{
			Subject:   rewriteBlankTerm(tr.Subject, prefix),
			Predicate: tr.Predicate,
			Object:    rewriteBlankTerm(tr.Object, prefix),
		})
	default:
		return t
	}
}
