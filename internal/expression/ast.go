package expression

import "github.com/jmylchreest/sop/internal/term"

// Node is the interface implemented by all expression AST nodes.
type Node interface {
	node()
	// Pos returns the token position the node started at, for error messages.
	Pos() int
}

// base carries the source position shared by every node.
type base struct {
	pos int
}

func (b base) Pos() int { return b.pos }

// VarExpr references one of the four quad positions: ?s ?p ?o ?g.
type VarExpr struct {
	base
	Name string
}

func (*VarExpr) node() {}

// IRIExpr is a literal IRI reference, <...>.
type IRIExpr struct {
	base
	Value string
}

func (*IRIExpr) node() {}

// StringExpr is a literal string, optionally language-tagged or typed.
type StringExpr struct {
	base
	Lex      string
	Lang     string
	Datatype string // empty unless explicitly typed with ^^<iri>
}

func (*StringExpr) node() {}

// NumberExpr is a literal integer, decimal or double, kept as the raw
// lexical form plus its resolved datatype so later promotion can tell
// integer from decimal from double.
type NumberExpr struct {
	base
	Lex      string
	Datatype string // term.XSDInteger, term.XSDDecimal or term.XSDDouble
}

func (*NumberExpr) node() {}

// BoolExpr is a literal true/false.
type BoolExpr struct {
	base
	Value bool
}

func (*BoolExpr) node() {}

// UnaryOp enumerates the unary expression operators.
type UnaryOp int

const (
	UnaryNot UnaryOp = iota
	UnaryNeg
	UnaryPlus
)

// UnaryExpr applies a unary operator to a single operand.
type UnaryExpr struct {
	base
	Op      UnaryOp
	Operand Node
}

func (*UnaryExpr) node() {}

// BinaryOp enumerates the binary expression operators.
type BinaryOp int

const (
	BinEq BinaryOp = iota
	BinNotEq
	BinLess
	BinLessEq
	BinGreater
	BinGreaterEq
	BinAnd
	BinOr
	BinAdd
	BinSub
	BinMul
	BinDiv
)

// BinaryExpr applies a binary operator to two operands.
type BinaryExpr struct {
	base
	Op          BinaryOp
	Left, Right Node
}

func (*BinaryExpr) node() {}

// CallExpr is a call to one of the fixed built-in functions.
type CallExpr struct {
	base
	Name string
	Args []Node
}

func (*CallExpr) node() {}

// newBase constructs a base from a token position.
func newBase(pos int) base { return base{pos: pos} }

// datatypeFor resolves the implicit datatype of a numeric lexical form,
// used when constructing NumberExpr nodes during parsing.
func datatypeFor(lex string) string {
	hasDot, hasExp := false, false
	for _, r := range lex {
		switch r {
		case '.':
			hasDot = true
		case 'e', 'E':
			hasExp = true
		}
	}
	switch {
	case hasExp:
		return term.XSDDouble
	case hasDot:
		return term.XSDDecimal
	default:
		return term.XSDInteger
	}
}
