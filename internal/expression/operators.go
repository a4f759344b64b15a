package expression

import (
	"fmt"
	"math"
	"strconv"

	"github.com/jmylchreest/sop/internal/term"
)

// ValueKind distinguishes the three-valued-logic states a Value may hold:
// a concrete term-backed value, the SPARQL "unbound" state (?g on the
// default graph, a missing binding), or a type error produced while
// evaluating a subexpression.
type ValueKind int

const (
	ValTerm ValueKind = iota
	ValUnbound
	ValError
)

// Value is the result of evaluating one expression node. Most operators
// propagate ValUnbound and ValError unless they specifically absorb them
// (bound, coalesce, the IF guard).
type Value struct {
	Kind ValueKind
	Term term.Term
	Err  error
}

// TermValue wraps a term.Term as a successful evaluation result.
func TermValue(t term.Term) Value { return Value{Kind: ValTerm, Term: t} }

// BoolValue wraps a Go bool as a boolean-literal Value.
func BoolValue(b bool) Value {
	lex := "false"
	if b {
		lex = "true"
	}
	return TermValue(term.TypedLiteral(lex, term.XSDBoolean))
}

// UnboundValue is the single shared unbound sentinel.
func UnboundValue() Value { return Value{Kind: ValUnbound} }

// ErrorValue wraps an evaluation error.
func ErrorValue(err error) Value { return Value{Kind: ValError, Err: err} }

// ErrorValuef builds an ErrorValue from a format string.
func ErrorValuef(format string, args ...any) Value {
	return ErrorValue(fmt.Errorf(format, args...))
}

// IsError reports whether v is a type-error value.
func (v Value) IsError() bool { return v.Kind == ValError }

// IsUnbound reports whether v is the unbound value.
func (v Value) IsUnbound() bool { return v.Kind == ValUnbound }

// IsNumeric reports whether v is a numeric literal.
func (v Value) IsNumeric() bool {
	return v.Kind == ValTerm && v.Term.IsLiteral() && isNumericDatatype(v.Term.Datatype())
}

// IsStringLike reports whether v is a simple (xsd:string) or
// language-tagged (rdf:langString) literal, usable by the string
// functions (strlen, substr, contains, ...).
func (v Value) IsStringLike() bool {
	if v.Kind != ValTerm || !v.Term.IsLiteral() {
		return false
	}
	dt := v.Term.Datatype()
	return dt == term.XSDString || dt == term.RDFLangString
}

func isNumericDatatype(dt string) bool {
	switch dt {
	case term.XSDInteger, term.XSDDecimal, term.XSDDouble:
		return true
	default:
		return false
	}
}

// numericRank orders the numeric type hierarchy for SPARQL's type
// promotion rule: integer < decimal < double.
func numericRank(dt string) int {
	switch dt {
	case term.XSDInteger:
		return 0
	case term.XSDDecimal:
		return 1
	case term.XSDDouble:
		return 2
	default:
		return -1
	}
}

func promote(a, b string) string {
	if numericRank(a) >= numericRank(b) {
		return a
	}
	return b
}

// asFloat parses a numeric literal's lexical form.
func asFloat(v Value) (float64, error) {
	if !v.IsNumeric() {
		return 0, fmt.Errorf("not a numeric value: %s", v.Term)
	}
	f, err := strconv.ParseFloat(v.Term.Value(), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric lexical form %q: %w", v.Term.Value(), err)
	}
	return f, nil
}

// numericLiteral formats a float back into the lexical form of the given
// datatype. Integers are truncated; decimals and doubles keep full
// precision.
func numericLiteral(f float64, dt string) term.Term {
	var lex string
	switch dt {
	case term.XSDInteger:
		lex = strconv.FormatInt(int64(f), 10)
	default:
		lex = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return term.TypedLiteral(lex, dt)
}

// EffectiveBoolean implements SPARQL's EBV coercion (17.2.2): booleans
// by value, numerics by zero/NaN, strings by length, anything else is a
// type error. filter and the IF() guard both reduce a Value to a plain
// bool through this rule.
func EffectiveBoolean(v Value) (bool, error) {
	return effectiveBoolean(v)
}

func effectiveBoolean(v Value) (bool, error) {
	if v.Kind != ValTerm || !v.Term.IsLiteral() {
		return false, fmt.Errorf("effective boolean value undefined for %v", v)
	}
	switch v.Term.Datatype() {
	case term.XSDBoolean:
		return v.Term.Value() == "true" || v.Term.Value() == "1", nil
	case term.XSDInteger, term.XSDDecimal, term.XSDDouble:
		f, err := asFloat(v)
		if err != nil {
			return false, err
		}
		return f != 0 && !math.IsNaN(f), nil
	case term.XSDString, term.RDFLangString:
		return len(v.Term.Value()) > 0, nil
	default:
		return false, fmt.Errorf("effective boolean value undefined for datatype %s", v.Term.Datatype())
	}
}

// valuesEqual implements SPARQL's RDFterm-equal / numeric-equal for '='
// and '!=': numeric literals compare by value across subtypes, string
// literals compare by lexical form and (for langString) language tag,
// everything else falls back to structural term equality.
func valuesEqual(a, b Value) (bool, error) {
	if a.IsNumeric() && b.IsNumeric() {
		af, err := asFloat(a)
		if err != nil {
			return false, err
		}
		bf, err := asFloat(b)
		if err != nil {
			return false, err
		}
		return af == bf, nil
	}
	if a.IsStringLike() && b.IsStringLike() {
		if a.Term.HasLang() != b.Term.HasLang() {
			return false, nil
		}
		return a.Term.Equal(b.Term), nil
	}
	if a.Kind != ValTerm || b.Kind != ValTerm {
		return false, fmt.Errorf("cannot compare non-term values")
	}
	if a.Term.Kind() != b.Term.Kind() {
		return false, fmt.Errorf("type error: cannot compare %s and %s", a.Term.Kind(), b.Term.Kind())
	}
	return a.Term.Equal(b.Term), nil
}

// compare implements SPARQL ordering for '<' '<=' '>' '>=': numeric by
// value, string-like by lexical form. Any other combination is a type
// error, matching SPARQL's refusal to order IRIs/blanks/other literals.
func compare(a, b Value) (int, error) {
	switch {
	case a.IsNumeric() && b.IsNumeric():
		af, err := asFloat(a)
		if err != nil {
			return 0, err
		}
		bf, err := asFloat(b)
		if err != nil {
			return 0, err
		}
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	case a.IsStringLike() && b.IsStringLike():
		switch {
		case a.Term.Value() < b.Term.Value():
			return -1, nil
		case a.Term.Value() > b.Term.Value():
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, fmt.Errorf("type error: cannot order these operand types")
	}
}
