package stage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jmylchreest/sop/internal/expression"
	"github.com/jmylchreest/sop/internal/term"
)

// parseSPARQL parses the small SPARQL subset query accepts (see the
// patternSlot doc comment for exactly what that subset is): one of the
// four forms, a single triple pattern (or CONSTRUCT template), and an
// optional FILTER(...) whose body is the same expression grammar
// filter/map use.
func parseSPARQL(src string) (*Query, error) {
	s := strings.TrimSpace(src)
	form, rest, err := splitKeyword(s)
	if err != nil {
		return nil, err
	}

	q := &Query{}
	switch strings.ToUpper(form) {
	case "ASK":
		q.form = formAsk
		pattern, filter, _, err := parseBraceBlock(rest)
		if err != nil {
			return nil, err
		}
		if q.pattern, err = parseTriple(pattern); err != nil {
			return nil, err
		}
		q.filter = filter

	case "SELECT":
		q.form = formSelect
		varsText, rest2, err := splitBeforeBrace(rest)
		if err != nil {
			return nil, err
		}
		varsText = stripTrailingWhere(varsText)
		if varsText == "*" {
			q.selectAll = true
		} else {
			for _, tok := range strings.Fields(varsText) {
				if !strings.HasPrefix(tok, "?") {
					return nil, fmt.Errorf("query: expected a variable in SELECT list, got %q", tok)
				}
				q.selectVars = append(q.selectVars, tok[1:])
			}
			if len(q.selectVars) == 0 {
				return nil, fmt.Errorf("query: empty SELECT variable list")
			}
		}
		pattern, filter, _, err := parseBraceBlock(rest2)
		if err != nil {
			return nil, err
		}
		if q.pattern, err = parseTriple(pattern); err != nil {
			return nil, err
		}
		q.filter = filter

	case "CONSTRUCT":
		q.form = formConstruct
		template, _, after, err := parseBraceBlock(rest)
		if err != nil {
			return nil, err
		}
		if q.template, err = parseTriple(template); err != nil {
			return nil, err
		}
		whereRest := stripLeadingWhere(strings.TrimSpace(rest[after:]))
		pattern, filter, _, err := parseBraceBlock(whereRest)
		if err != nil {
			return nil, err
		}
		if q.pattern, err = parseTriple(pattern); err != nil {
			return nil, err
		}
		q.filter = filter

	case "DESCRIBE":
		q.form = formDescribe
		termText, rest2, err := splitBeforeBrace(rest)
		if err != nil {
			// No WHERE clause: DESCRIBE <term> on its own.
			slot, perr := parseTermToken(strings.TrimSpace(rest))
			if perr != nil {
				return nil, perr
			}
			q.describe = slot
			return q, nil
		}
		slot, err := parseTermToken(stripTrailingWhere(termText))
		if err != nil {
			return nil, err
		}
		q.describe = slot
		pattern, filter, _, err := parseBraceBlock(stripLeadingWhere(rest2))
		if err != nil {
			return nil, err
		}
		// A DESCRIBE WHERE clause only narrows by the same describe term;
		// the pattern itself is not separately bindable in this subset.
		_ = pattern
		q.filter = filter

	default:
		return nil, fmt.Errorf("query: unrecognized query form %q (expected ASK, SELECT, CONSTRUCT or DESCRIBE)", form)
	}
	return q, nil
}

func splitKeyword(s string) (keyword, rest string, err error) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '{' })
	if i < 0 {
		return "", "", fmt.Errorf("query: empty or malformed query string")
	}
	return s[:i], s[i:], nil
}

func stripLeadingWhere(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 5 && strings.EqualFold(s[:5], "WHERE") {
		return strings.TrimSpace(s[5:])
	}
	return s
}

// stripTrailingWhere cuts s at a trailing "WHERE" keyword (used where
// the variable/term list precedes the WHERE clause, e.g. "SELECT ?s ?o
// WHERE { ... }"), returning only the part before it.
func stripTrailingWhere(s string) string {
	s = strings.TrimSpace(s)
	if i := indexKeywordCI(s, "WHERE"); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// splitBeforeBrace returns everything up to (not including) the first
// unquoted '{' and the remainder starting at that '{'.
func splitBeforeBrace(s string) (before, from string, err error) {
	i, err := indexUnquoted(s, '{')
	if err != nil {
		return "", "", err
	}
	if i < 0 {
		return "", "", fmt.Errorf("query: expected '{'")
	}
	return s[:i], s[i:], nil
}

// parseBraceBlock expects s to begin (after optional whitespace) with a
// '{', extracts its balanced contents, splits out an optional
// "FILTER(...)" clause from inside, and returns the remaining pattern
// text, the parsed filter expression (nil if absent), and the index in
// s just past the closing '}'.
func parseBraceBlock(s string) (pattern string, filter expression.Node, after int, err error) {
	s2 := s
	start := strings.IndexByte(s2, '{')
	if start < 0 {
		return "", nil, 0, fmt.Errorf("query: expected '{'")
	}
	end, err := matchBrace(s2, start)
	if err != nil {
		return "", nil, 0, err
	}
	inner := s2[start+1 : end]

	if fi := indexKeywordCI(inner, "FILTER"); fi >= 0 {
		openParen := strings.IndexByte(inner[fi:], '(')
		if openParen < 0 {
			return "", nil, 0, fmt.Errorf("query: FILTER missing '('")
		}
		openParen += fi
		closeParen, err := matchParen(inner, openParen)
		if err != nil {
			return "", nil, 0, err
		}
		exprText := inner[openParen+1 : closeParen]
		node, perr := expression.Parse(exprText)
		if perr != nil {
			return "", nil, 0, fmt.Errorf("query: FILTER: %w", perr)
		}
		pattern = inner[:fi] + inner[closeParen+1:]
		filter = node
	} else {
		pattern = inner
	}
	return pattern, filter, end + 1, nil
}

// matchBrace returns the index of the '}' matching the '{' at openIdx,
// respecting string-literal quoting so a literal containing '}' doesn't
// confuse the scan.
func matchBrace(s string, openIdx int) (int, error) {
	depth := 0
	inStr := false
	for i := openIdx; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inStr = !inStr
		case inStr:
			continue
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("query: unbalanced '{'")
}

func matchParen(s string, openIdx int) (int, error) {
	depth := 0
	inStr := false
	for i := openIdx; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inStr = !inStr
		case inStr:
			continue
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("query: unbalanced '(' in FILTER")
}

func indexUnquoted(s string, target byte) (int, error) {
	inStr := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' && (i == 0 || s[i-1] != '\\') {
			inStr = !inStr
			continue
		}
		if !inStr && c == target {
			return i, nil
		}
	}
	return -1, nil
}

func indexKeywordCI(s, kw string) int {
	upper := strings.ToUpper(s)
	return strings.Index(upper, strings.ToUpper(kw))
}

// parseTriple tokenizes pattern text into exactly three terms (subject,
// predicate, object); this subset supports a single triple pattern, not
// a general basic graph pattern.
func parseTriple(pattern string) ([3]patternSlot, error) {
	toks, err := tokenizeTerms(pattern)
	if err != nil {
		return [3]patternSlot{}, err
	}
	var filtered []string
	for _, t := range toks {
		if t == "." {
			continue
		}
		filtered = append(filtered, t)
	}
	if len(filtered) != 3 {
		return [3]patternSlot{}, fmt.Errorf("query: expected exactly one triple pattern (subject predicate object), got %d terms", len(filtered))
	}
	var out [3]patternSlot
	for i, t := range filtered {
		slot, err := parseTermToken(t)
		if err != nil {
			return [3]patternSlot{}, err
		}
		out[i] = slot
	}
	return out, nil
}

// tokenizeTerms splits pattern text into atomic term tokens: <...>
// IRIs, "..."-quoted literals (with an optional @lang or ^^<...>
// suffix), ?variables, bare words (numbers, true/false), and the "."
// pattern terminator.
func tokenizeTerms(s string) ([]string, error) {
	var toks []string
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '.':
			toks = append(toks, ".")
			i++
		case c == '<':
			j := strings.IndexByte(s[i:], '>')
			if j < 0 {
				return nil, fmt.Errorf("query: unterminated IRI in pattern")
			}
			toks = append(toks, s[i:i+j+1])
			i += j + 1
		case c == '"':
			j := i + 1
			for j < len(s) && !(s[j] == '"' && s[j-1] != '\\') {
				j++
			}
			if j >= len(s) {
				return nil, fmt.Errorf("query: unterminated string literal in pattern")
			}
			end := j + 1
			if end < len(s) && s[end] == '@' {
				k := end + 1
				for k < len(s) && (isAlnum(s[k]) || s[k] == '-') {
					k++
				}
				end = k
			} else if end+1 < len(s) && s[end] == '^' && s[end+1] == '^' {
				k := end + 2
				if k < len(s) && s[k] == '<' {
					j2 := strings.IndexByte(s[k:], '>')
					if j2 < 0 {
						return nil, fmt.Errorf("query: unterminated datatype IRI in pattern")
					}
					end = k + j2 + 1
				}
			}
			toks = append(toks, s[i:end])
			i = end
		default:
			j := i
			// A '.' followed by a digit stays inside the word (a decimal
			// such as 1.5); any other '.' ends it as the terminator.
			for j < len(s) && s[j] != ' ' && s[j] != '\t' && s[j] != '\n' && s[j] != '\r' &&
				!(s[j] == '.' && (j+1 >= len(s) || s[j+1] < '0' || s[j+1] > '9')) {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		}
	}
	return toks, nil
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// parseTermToken parses one already-isolated token into a patternSlot.
func parseTermToken(tok string) (patternSlot, error) {
	switch {
	case strings.HasPrefix(tok, "?"):
		name := tok[1:]
		if name != "s" && name != "p" && name != "o" && name != "g" {
			return patternSlot{}, fmt.Errorf("query: unsupported variable ?%s (only ?s, ?p, ?o, ?g bind to quad positions in this subset)", name)
		}
		return patternSlot{isVar: true, varName: name}, nil
	case strings.HasPrefix(tok, "<") && strings.HasSuffix(tok, ">"):
		return patternSlot{constant: term.IRI(tok[1 : len(tok)-1])}, nil
	case strings.HasPrefix(tok, "\""):
		return patternSlot{constant: parseLiteralToken(tok)}, nil
	case tok == "true" || tok == "false":
		return patternSlot{constant: term.TypedLiteral(tok, term.XSDBoolean)}, nil
	default:
		if _, err := strconv.ParseFloat(tok, 64); err == nil {
			dt := term.XSDInteger
			if strings.ContainsAny(tok, ".eE") {
				dt = term.XSDDouble
			}
			return patternSlot{constant: term.TypedLiteral(tok, dt)}, nil
		}
		return patternSlot{}, fmt.Errorf("query: unrecognized term %q (expected <IRI>, \"literal\", ?s/?p/?o/?g, or a number)", tok)
	}
}

func parseLiteralToken(tok string) term.Term {
	end := strings.LastIndexByte(tok, '"')
	lex := strings.ReplaceAll(tok[1:end], `\"`, `"`)
	suffix := tok[end+1:]
	switch {
	case strings.HasPrefix(suffix, "@"):
		return term.LangLiteral(lex, suffix[1:])
	case strings.HasPrefix(suffix, "^^<") && strings.HasSuffix(suffix, ">"):
		return term.TypedLiteral(lex, suffix[3:len(suffix)-1])
	default:
		return term.PlainLiteral(lex)
	}
}
