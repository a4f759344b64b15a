// Package term defines the abstract RDF term and quad shapes that travel
// across every stage boundary in a sop pipeline.
package term

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Kind identifies the concrete shape of a Term.
type Kind int

// Term kinds.
const (
	// KindIRI is an absolute (or, transiently while relativized, relative) IRI.
	KindIRI Kind = iota
	// KindBlank is a blank node, identified by a label local to one stream.
	KindBlank
	// KindLiteral is a lexical form with an optional language tag or datatype.
	KindLiteral
	// KindVariable is a SPARQL-style variable; it only appears inside
	// expression ASTs, never on the wire between stages.
	KindVariable
	// KindTripleTerm is a nested (RDF-star) triple used as a term.
	KindTripleTerm
	// KindDefaultGraph is the distinguished marker for the unnamed graph.
	// It is only ever valid in the graph position of a Quad.
	KindDefaultGraph
)

func (k Kind) String() string {
	switch k {
	case KindIRI:
		return "IRI"
	case KindBlank:
		return "Blank"
	case KindLiteral:
		return "Literal"
	case KindVariable:
		return "Variable"
	case KindTripleTerm:
		return "TripleTerm"
	case KindDefaultGraph:
		return "DefaultGraph"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Well-known datatype and vocabulary IRIs, spelled out in full since
// prefixed names are never expanded at the shell layer (4.E).
const (
	XSDString  = "http://www.w3.org/2001/XMLSchema#string"
	XSDBoolean = "http://www.w3.org/2001/XMLSchema#boolean"
	XSDInteger = "http://www.w3.org/2001/XMLSchema#integer"
	XSDDecimal = "http://www.w3.org/2001/XMLSchema#decimal"
	XSDDouble  = "http://www.w3.org/2001/XMLSchema#double"

	RDFLangString = "http://www.w3.org/1999/02/22-rdf-syntax-ns#langString"
)

// Term is an RDF term: an IRI, blank node, literal, variable or nested
// triple term. The zero Term is not meaningful; use one of the
// constructors below.
type Term struct {
	kind     Kind
	value    string // IRI string, blank label, literal lexical form, or variable name
	lang     string // literal language tag, as written
	datatype string // literal datatype IRI; defaults to XSDString/RDFLangString when empty
	triple   *Triple
}

// Triple is a nested (subject, predicate, object) used as an RDF-star term.
// It has no graph component.
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// IRI constructs an IRI term. No normalization is performed; comparison
// is exact codepoint equality (4.A).
func IRI(value string) Term {
	return Term{kind: KindIRI, value: value}
}

// Blank constructs a blank node term with the given stream-local label.
func Blank(label string) Term {
	return Term{kind: KindBlank, value: label}
}

// Variable constructs a variable term, valid only inside expression ASTs.
func Variable(name string) Term {
	return Term{kind: KindVariable, value: name}
}

// DefaultGraph is the distinguished default-graph marker.
func DefaultGraph() Term {
	return Term{kind: KindDefaultGraph}
}

// PlainLiteral constructs a simple literal with datatype xsd:string.
func PlainLiteral(lex string) Term {
	return Term{kind: KindLiteral, value: lex, datatype: XSDString}
}

// LangLiteral constructs a language-tagged literal (datatype rdf:langString).
func LangLiteral(lex, lang string) Term {
	return Term{kind: KindLiteral, value: lex, lang: lang, datatype: RDFLangString}
}

// TypedLiteral constructs a literal with an explicit datatype IRI.
func TypedLiteral(lex, datatype string) Term {
	if datatype == "" {
		datatype = XSDString
	}
	return Term{kind: KindLiteral, value: lex, datatype: datatype}
}

// TripleTerm constructs a nested-triple (RDF-star) term.
func TripleTerm(t Triple) Term {
	return Term{kind: KindTripleTerm, triple: &t}
}

// Kind returns the term's kind.
func (t Term) Kind() Kind { return t.kind }

// IsIRI reports whether t is an IRI term.
func (t Term) IsIRI() bool { return t.kind == KindIRI }

// IsBlank reports whether t is a blank node term.
func (t Term) IsBlank() bool { return t.kind == KindBlank }

// IsLiteral reports whether t is a literal term.
func (t Term) IsLiteral() bool { return t.kind == KindLiteral }

// IsVariable reports whether t is a variable term.
func (t Term) IsVariable() bool { return t.kind == KindVariable }

// IsTripleTerm reports whether t is a nested triple term.
func (t Term) IsTripleTerm() bool { return t.kind == KindTripleTerm }

// IsDefaultGraph reports whether t is the default-graph marker.
func (t Term) IsDefaultGraph() bool { return t.kind == KindDefaultGraph }

// Value returns the IRI string, blank label, literal lexical form or
// variable name. It panics if called on a triple term or default-graph
// marker; check the Kind first.
func (t Term) Value() string {
	if t.kind == KindTripleTerm || t.kind == KindDefaultGraph {
		panic("term: Value() called on " + t.kind.String())
	}
	return t.value
}

// Lang returns the literal's language tag, or "" if it has none.
func (t Term) Lang() string { return t.lang }

// Datatype returns the literal's datatype IRI. Non-literals return "".
func (t Term) Datatype() string {
	if t.kind != KindLiteral {
		return ""
	}
	return t.datatype
}

// HasLang reports whether the literal carries a language tag.
func (t Term) HasLang() bool { return t.kind == KindLiteral && t.lang != "" }

// Triple returns the nested triple for a triple term. It panics for any
// other kind; check IsTripleTerm first.
func (t Term) Triple() Triple {
	if t.kind != KindTripleTerm {
		panic("term: Triple() called on non-triple-term")
	}
	return *t.triple
}

// Quad is a (subject, predicate, object, graph) statement. Graph is
// DefaultGraph() for triples in the unnamed graph.
type Quad struct {
	Subject   Term
	Predicate Term
	Object    Term
	Graph     Term
}

// Equal reports whether two quads are componentwise equal under 4.A's
// term equality rules.
func (q Quad) Equal(other Quad) bool {
	return q.Subject.Equal(other.Subject) &&
		q.Predicate.Equal(other.Predicate) &&
		q.Object.Equal(other.Object) &&
		q.Graph.Equal(other.Graph)
}

// String renders a debug N-Quads-ish form of the quad.
func (q Quad) String() string {
	if q.Graph.IsDefaultGraph() {
		return fmt.Sprintf("%s %s %s .", q.Subject, q.Predicate, q.Object)
	}
	return fmt.Sprintf("%s %s %s %s .", q.Subject, q.Predicate, q.Object, q.Graph)
}

// Equal implements the structural equality rules from 4.A: IRIs compare
// by exact codepoint equality, literals compare lexical form + datatype
// exactly and language tag case-insensitively, blank nodes compare by
// local label, and triple terms compare componentwise.
func (t Term) Equal(other Term) bool {
	if t.kind != other.kind {
		return false
	}
	switch t.kind {
	case KindIRI, KindBlank, KindVariable:
		return t.value == other.value
	case KindLiteral:
		if t.value != other.value || t.datatype != other.datatype {
			return false
		}
		return langTagsEqual(t.lang, other.lang)
	case KindDefaultGraph:
		return true
	case KindTripleTerm:
		return t.triple.Subject.Equal(other.triple.Subject) &&
			t.triple.Predicate.Equal(other.triple.Predicate) &&
			t.triple.Object.Equal(other.triple.Object)
	default:
		return false
	}
}

// String renders a debug/N-Triples-ish form of the term. It is not used
// for on-the-wire serialization (that is the job of the format-specific
// writers), only for error messages and logging.
func (t Term) String() string {
	switch t.kind {
	case KindIRI:
		return "<" + t.value + ">"
	case KindBlank:
		return "_:" + t.value
	case KindVariable:
		return "?" + t.value
	case KindDefaultGraph:
		return "(default graph)"
	case KindLiteral:
		switch {
		case t.lang != "":
			return fmt.Sprintf("%q@%s", t.value, t.lang)
		case t.datatype != "" && t.datatype != XSDString:
			return fmt.Sprintf("%q^^<%s>", t.value, t.datatype)
		default:
			return fmt.Sprintf("%q", t.value)
		}
	case KindTripleTerm:
		return fmt.Sprintf("<<%s %s %s>>", t.triple.Subject, t.triple.Predicate, t.triple.Object)
	default:
		return "(invalid term)"
	}
}

// langTagsEqual compares two BCP 47 language tags the way 4.A requires:
// case-insensitively, but also tolerant of tags that are equivalent after
// canonicalization (e.g. a region subtag in a different case, or a
// deprecated subtag with a canonical replacement) rather than only a
// literal case-fold. Tags that fail to parse (including the common case
// of both being empty) fall back to a plain case-insensitive compare.
func langTagsEqual(a, b string) bool {
	if strings.EqualFold(a, b) {
		return true
	}
	ta, errA := language.Parse(a)
	tb, errB := language.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	return ta.String() == tb.String()
}
