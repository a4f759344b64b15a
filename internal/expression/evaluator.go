package expression

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/jmylchreest/sop/internal/term"
)

// Binding supplies the current quad (and whether the stream producing it
// is generalized) that ?s ?p ?o ?g resolve against.
type Binding struct {
	Quad        term.Quad
	Generalized bool
}

// Evaluator walks an expression AST against a Binding, applying SPARQL's
// three-valued logic: every subexpression yields a Value that is either
// a concrete term, Unbound, or a type Error, and operators decide for
// themselves which of those they absorb versus propagate.
type Evaluator struct {
	regexMu    sync.RWMutex
	regexCache map[string]*regexp.Regexp

	bnodeMu  sync.Mutex
	bnodeSeq int
}

// NewEvaluator creates an Evaluator with a fresh regex cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{regexCache: make(map[string]*regexp.Regexp)}
}

// EvalBoolean evaluates node and reduces the result to a plain bool via
// SPARQL's effective boolean value coercion, treating both unbound and
// type-error results as "false" for filter's keep/drop decision (4.C:
// "false and error both reject").
func (e *Evaluator) EvalBoolean(node Node, b Binding) bool {
	v := e.Eval(node, b)
	ok, err := coerceBool(v)
	return err == nil && ok
}

// Eval evaluates node against binding.
func (e *Evaluator) Eval(node Node, b Binding) Value {
	switch n := node.(type) {
	case *VarExpr:
		return e.evalVar(n, b)
	case *IRIExpr:
		return TermValue(term.IRI(n.Value))
	case *StringExpr:
		switch {
		case n.Lang != "":
			return TermValue(term.LangLiteral(n.Lex, n.Lang))
		case n.Datatype != "":
			return TermValue(term.TypedLiteral(n.Lex, n.Datatype))
		default:
			return TermValue(term.PlainLiteral(n.Lex))
		}
	case *NumberExpr:
		return TermValue(term.TypedLiteral(n.Lex, n.Datatype))
	case *BoolExpr:
		return BoolValue(n.Value)
	case *UnaryExpr:
		return e.evalUnary(n, b)
	case *BinaryExpr:
		return e.evalBinary(n, b)
	case *CallExpr:
		return e.evalCall(n, b)
	default:
		return ErrorValuef("unsupported expression node %T", node)
	}
}

func (e *Evaluator) evalVar(n *VarExpr, b Binding) Value {
	var t term.Term
	switch n.Name {
	case "s":
		t = b.Quad.Subject
	case "p":
		t = b.Quad.Predicate
	case "o":
		t = b.Quad.Object
	case "g":
		t = b.Quad.Graph
		if t.IsDefaultGraph() {
			return UnboundValue()
		}
	default:
		return ErrorValuef("unknown variable ?%s", n.Name)
	}
	return TermValue(t)
}

func (e *Evaluator) evalUnary(n *UnaryExpr, b Binding) Value {
	v := e.Eval(n.Operand, b)
	switch n.Op {
	case UnaryNot:
		if v.IsError() {
			return v
		}
		bv, err := effectiveBoolean(v)
		if err != nil {
			return ErrorValue(err)
		}
		return BoolValue(!bv)
	case UnaryNeg, UnaryPlus:
		if v.IsError() {
			return v
		}
		if !v.IsNumeric() {
			return ErrorValuef("unary %s requires a numeric operand", unaryOpSymbol(n.Op))
		}
		f, err := asFloat(v)
		if err != nil {
			return ErrorValue(err)
		}
		if n.Op == UnaryNeg {
			f = -f
		}
		return TermValue(numericLiteral(f, v.Term.Datatype()))
	default:
		return ErrorValuef("unsupported unary operator")
	}
}

func unaryOpSymbol(op UnaryOp) string {
	switch op {
	case UnaryNot:
		return "!"
	case UnaryNeg:
		return "-"
	default:
		return "+"
	}
}

func (e *Evaluator) evalBinary(n *BinaryExpr, b Binding) Value {
	// && and || use short-circuit three-valued logic per SPARQL 17.3:
	// an error on one side can still be masked by a deciding value on
	// the other (false && anything = false; true || anything = true).
	switch n.Op {
	case BinAnd:
		return e.evalLogical(n, b, false)
	case BinOr:
		return e.evalLogical(n, b, true)
	}

	left := e.Eval(n.Left, b)
	if left.IsError() {
		return left
	}
	right := e.Eval(n.Right, b)
	if right.IsError() {
		return right
	}

	switch n.Op {
	case BinEq, BinNotEq:
		if left.IsUnbound() || right.IsUnbound() {
			return ErrorValuef("cannot compare unbound value")
		}
		eq, err := valuesEqual(left, right)
		if err != nil {
			return ErrorValue(err)
		}
		if n.Op == BinNotEq {
			eq = !eq
		}
		return BoolValue(eq)
	case BinLess, BinLessEq, BinGreater, BinGreaterEq:
		if left.IsUnbound() || right.IsUnbound() {
			return ErrorValuef("cannot order unbound value")
		}
		cmp, err := compare(left, right)
		if err != nil {
			return ErrorValue(err)
		}
		switch n.Op {
		case BinLess:
			return BoolValue(cmp < 0)
		case BinLessEq:
			return BoolValue(cmp <= 0)
		case BinGreater:
			return BoolValue(cmp > 0)
		default:
			return BoolValue(cmp >= 0)
		}
	case BinAdd, BinSub, BinMul, BinDiv:
		if left.IsUnbound() || right.IsUnbound() {
			return ErrorValuef("arithmetic on unbound value")
		}
		if !left.IsNumeric() || !right.IsNumeric() {
			return ErrorValuef("arithmetic requires numeric operands")
		}
		lf, err := asFloat(left)
		if err != nil {
			return ErrorValue(err)
		}
		rf, err := asFloat(right)
		if err != nil {
			return ErrorValue(err)
		}
		dt := promote(left.Term.Datatype(), right.Term.Datatype())
		var result float64
		switch n.Op {
		case BinAdd:
			result = lf + rf
		case BinSub:
			result = lf - rf
		case BinMul:
			result = lf * rf
		case BinDiv:
			if rf == 0 {
				return ErrorValuef("division by zero")
			}
			result = lf / rf
			dt = term.XSDDecimal
		}
		return TermValue(numericLiteral(result, dt))
	default:
		return ErrorValuef("unsupported binary operator")
	}
}

func (e *Evaluator) evalLogical(n *BinaryExpr, b Binding, isOr bool) Value {
	left := e.Eval(n.Left, b)
	leftBool, leftErr := coerceBool(left)
	if leftErr == nil {
		if isOr && leftBool {
			return BoolValue(true)
		}
		if !isOr && !leftBool {
			return BoolValue(false)
		}
	}
	right := e.Eval(n.Right, b)
	rightBool, rightErr := coerceBool(right)
	if rightErr == nil {
		if isOr && rightBool {
			return BoolValue(true)
		}
		if !isOr && !rightBool {
			return BoolValue(false)
		}
	}
	if leftErr != nil {
		return ErrorValue(leftErr)
	}
	if rightErr != nil {
		return ErrorValue(rightErr)
	}
	if isOr {
		return BoolValue(leftBool || rightBool)
	}
	return BoolValue(leftBool && rightBool)
}

func coerceBool(v Value) (bool, error) {
	if v.IsError() {
		return false, v.Err
	}
	if v.IsUnbound() {
		return false, fmt.Errorf("unbound value has no effective boolean value")
	}
	return effectiveBoolean(v)
}

func (e *Evaluator) evalCall(n *CallExpr, b Binding) Value {
	switch n.Name {
	case "bound":
		if len(n.Args) != 1 {
			return ErrorValuef("bound() takes exactly one argument")
		}
		v := e.Eval(n.Args[0], b)
		if v.IsError() {
			return v
		}
		return BoolValue(!v.IsUnbound())
	case "if":
		if len(n.Args) != 3 {
			return ErrorValuef("if() takes exactly three arguments")
		}
		cond := e.Eval(n.Args[0], b)
		ok, err := coerceBool(cond)
		if err != nil {
			return ErrorValue(err)
		}
		if ok {
			return e.Eval(n.Args[1], b)
		}
		return e.Eval(n.Args[2], b)
	case "coalesce":
		for _, arg := range n.Args {
			v := e.Eval(arg, b)
			if !v.IsError() && !v.IsUnbound() {
				return v
			}
		}
		return ErrorValuef("coalesce() exhausted all arguments")
	}

	args := make([]Value, len(n.Args))
	for i, a := range n.Args {
		args[i] = e.Eval(a, b)
		if args[i].IsError() {
			return args[i]
		}
		if args[i].IsUnbound() {
			return ErrorValuef("%s() received an unbound argument", n.Name)
		}
	}

	switch n.Name {
	case "str":
		if len(args) != 1 {
			return ErrorValuef("str() takes exactly one argument")
		}
		return TermValue(term.PlainLiteral(args[0].Term.Value()))
	case "lang":
		if len(args) != 1 || !args[0].Term.IsLiteral() {
			return ErrorValuef("lang() requires a literal argument")
		}
		return TermValue(term.PlainLiteral(args[0].Term.Lang()))
	case "datatype":
		if len(args) != 1 || !args[0].Term.IsLiteral() {
			return ErrorValuef("datatype() requires a literal argument")
		}
		return TermValue(term.IRI(args[0].Term.Datatype()))
	case "iri", "uri":
		if len(args) != 1 || !args[0].IsStringLike() {
			return ErrorValuef("%s() requires a string argument", n.Name)
		}
		return TermValue(term.IRI(args[0].Term.Value()))
	case "bnode":
		if len(args) > 1 {
			return ErrorValuef("bnode() takes at most one argument")
		}
		return TermValue(term.Blank(e.freshBlank()))
	case "isiri", "isuri":
		return BoolValue(len(args) == 1 && args[0].Term.IsIRI())
	case "isblank":
		return BoolValue(len(args) == 1 && args[0].Term.IsBlank())
	case "isliteral":
		return BoolValue(len(args) == 1 && args[0].Term.IsLiteral())
	case "isnumeric":
		return BoolValue(len(args) == 1 && args[0].IsNumeric())
	case "lcase":
		if len(args) != 1 || !args[0].IsStringLike() {
			return ErrorValuef("lcase() requires a string argument")
		}
		return TermValue(relexed(args[0].Term, strings.ToLower(args[0].Term.Value())))
	case "ucase":
		if len(args) != 1 || !args[0].IsStringLike() {
			return ErrorValuef("ucase() requires a string argument")
		}
		return TermValue(relexed(args[0].Term, strings.ToUpper(args[0].Term.Value())))
	case "strlen":
		if len(args) != 1 || !args[0].IsStringLike() {
			return ErrorValuef("strlen() requires a string argument")
		}
		return TermValue(term.TypedLiteral(fmt.Sprintf("%d", len([]rune(args[0].Term.Value()))), term.XSDInteger))
	case "substr":
		return e.callSubstr(args)
	case "contains":
		return stringBinaryFn(args, strings.Contains)
	case "strstarts":
		return stringBinaryFn(args, strings.HasPrefix)
	case "strends":
		return stringBinaryFn(args, strings.HasSuffix)
	case "concat":
		var sb strings.Builder
		for _, a := range args {
			if !a.IsStringLike() {
				return ErrorValuef("concat() requires string arguments")
			}
			sb.WriteString(a.Term.Value())
		}
		return TermValue(term.PlainLiteral(sb.String()))
	case "langmatches":
		if len(args) != 2 {
			return ErrorValuef("langMatches() takes exactly two arguments")
		}
		return BoolValue(langMatches(args[0].Term.Value(), args[1].Term.Value()))
	case "regex":
		return e.callRegex(args)
	default:
		return ErrorValuef("unknown function %s()", n.Name)
	}
}

func (e *Evaluator) callSubstr(args []Value) Value {
	if len(args) < 2 || len(args) > 3 || !args[0].IsStringLike() {
		return ErrorValuef("substr() takes a string and one or two numeric arguments")
	}
	runes := []rune(args[0].Term.Value())
	start, err := asFloat(args[1])
	if err != nil {
		return ErrorValue(err)
	}
	startIdx := int(start) - 1
	if startIdx < 0 {
		startIdx = 0
	}
	if startIdx > len(runes) {
		startIdx = len(runes)
	}
	end := len(runes)
	if len(args) == 3 {
		length, err := asFloat(args[2])
		if err != nil {
			return ErrorValue(err)
		}
		end = startIdx + int(length)
		if end > len(runes) {
			end = len(runes)
		}
		if end < startIdx {
			end = startIdx
		}
	}
	return TermValue(relexed(args[0].Term, string(runes[startIdx:end])))
}

func stringBinaryFn(args []Value, fn func(s, substr string) bool) Value {
	if len(args) != 2 || !args[0].IsStringLike() || !args[1].IsStringLike() {
		return ErrorValuef("expected two string arguments")
	}
	return BoolValue(fn(args[0].Term.Value(), args[1].Term.Value()))
}

// langMatches implements RFC 4647 basic filtering: "*" matches any
// non-empty tag, otherwise the range must be a case-insensitive prefix
// of the tag ending on a tag boundary.
func langMatches(tag, langRange string) bool {
	tag, langRange = strings.ToLower(tag), strings.ToLower(langRange)
	if langRange == "*" {
		return tag != ""
	}
	if tag == langRange {
		return true
	}
	return strings.HasPrefix(tag, langRange+"-")
}

func (e *Evaluator) callRegex(args []Value) Value {
	if len(args) < 2 || len(args) > 3 {
		return ErrorValuef("regex() takes two or three arguments")
	}
	if !args[0].IsStringLike() || !args[1].IsStringLike() {
		return ErrorValuef("regex() requires string arguments")
	}
	pattern := args[1].Term.Value()
	flags := ""
	if len(args) == 3 {
		if !args[2].IsStringLike() {
			return ErrorValuef("regex() flags must be a string")
		}
		flags = args[2].Term.Value()
	}
	re, err := e.compileRegex(pattern, flags)
	if err != nil {
		return ErrorValue(err)
	}
	return BoolValue(re.MatchString(args[0].Term.Value()))
}

// compileRegex caches compiled patterns under a read-mostly lock, since
// the same filter/map expression runs once per quad in the stream.
func (e *Evaluator) compileRegex(pattern, flags string) (*regexp.Regexp, error) {
	key := flags + "\x00" + pattern
	e.regexMu.RLock()
	re, ok := e.regexCache[key]
	e.regexMu.RUnlock()
	if ok {
		return re, nil
	}

	goPattern := pattern
	if strings.Contains(flags, "i") {
		goPattern = "(?i)" + goPattern
	}
	if strings.Contains(flags, "s") {
		goPattern = "(?s)" + goPattern
	}
	if strings.Contains(flags, "m") {
		goPattern = "(?m)" + goPattern
	}
	re, err := regexp.Compile(goPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
	}

	e.regexMu.Lock()
	e.regexCache[key] = re
	e.regexMu.Unlock()
	return re, nil
}

func (e *Evaluator) freshBlank() string {
	e.bnodeMu.Lock()
	defer e.bnodeMu.Unlock()
	e.bnodeSeq++
	return fmt.Sprintf("expr%d", e.bnodeSeq)
}

// relexed rebuilds a literal with a new lexical form, preserving the
// original's language tag or datatype (used by lcase/ucase/substr).
func relexed(orig term.Term, newLex string) term.Term {
	if orig.HasLang() {
		return term.LangLiteral(newLex, orig.Lang())
	}
	return term.TypedLiteral(newLex, orig.Datatype())
}
