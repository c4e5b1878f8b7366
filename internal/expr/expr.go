// Package expr compiles restricted arithmetic expressions used by derived
// indicators. The grammar covers numbers, indicator references written as
// {CODE}, the four basic operators and parentheses. Expressions are compiled
// into plain Go closures; no scripting runtime is ever involved, which is a
// security requirement for administrator-supplied formulas.
package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Expr evaluates a compiled expression against a set of indicator values.
// It returns nil when the expression is not computable: a referenced
// indicator is absent from the value map, or a division by zero occurs.
// A nil result is not an error; it models "no value for this period".
type Expr func(values map[string]float64) *float64

// SyntaxError reports a malformed expression. It is distinct from a nil
// evaluation result: a SyntaxError means the expression can never be
// evaluated, regardless of input values.
type SyntaxError struct {
	Pos   int
	Input string
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d in %q: %s", e.Pos, e.Input, e.Msg)
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokRef
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokLParen
	tokRParen
)

type token struct {
	kind  tokenKind
	pos   int
	text  string
	value float64
}

func tokenize(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c >= '0' && c <= '9':
			start := i
			for i < len(input) && input[i] >= '0' && input[i] <= '9' {
				i++
			}
			if i < len(input) && input[i] == '.' {
				i++
				if i >= len(input) || input[i] < '0' || input[i] > '9' {
					return nil, &SyntaxError{Pos: start, Input: input, Msg: "malformed number"}
				}
				for i < len(input) && input[i] >= '0' && input[i] <= '9' {
					i++
				}
			}
			text := input[start:i]
			value, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &SyntaxError{Pos: start, Input: input, Msg: "malformed number"}
			}
			toks = append(toks, token{kind: tokNumber, pos: start, text: text, value: value})
		case c == '{':
			start := i
			end := strings.IndexByte(input[i:], '}')
			if end < 0 {
				return nil, &SyntaxError{Pos: start, Input: input, Msg: "unterminated indicator reference"}
			}
			ref := strings.TrimSpace(input[i+1 : i+end])
			if ref == "" {
				return nil, &SyntaxError{Pos: start, Input: input, Msg: "empty indicator reference"}
			}
			toks = append(toks, token{kind: tokRef, pos: start, text: ref})
			i += end + 1
		case c == '+':
			toks = append(toks, token{kind: tokPlus, pos: i, text: "+"})
			i++
		case c == '-':
			toks = append(toks, token{kind: tokMinus, pos: i, text: "-"})
			i++
		case c == '*':
			toks = append(toks, token{kind: tokStar, pos: i, text: "*"})
			i++
		case c == '/':
			toks = append(toks, token{kind: tokSlash, pos: i, text: "/"})
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, pos: i, text: "("})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, pos: i, text: ")"})
			i++
		default:
			return nil, &SyntaxError{Pos: i, Input: input, Msg: fmt.Sprintf("invalid character %q", string(c))}
		}
	}
	return toks, nil
}

type parser struct {
	input string
	toks  []token
	i     int
}

func (p *parser) peek() (token, bool) {
	if p.i >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.i], true
}

func (p *parser) next() (token, bool) {
	t, ok := p.peek()
	if ok {
		p.i++
	}
	return t, ok
}

func (p *parser) errAt(pos int, msg string) error {
	return &SyntaxError{Pos: pos, Input: p.input, Msg: msg}
}

func (p *parser) errEnd(msg string) error {
	return &SyntaxError{Pos: len(p.input), Input: p.input, Msg: msg}
}

// Compile parses input and returns an evaluation closure. The whole token
// stream must be consumed; trailing tokens are a syntax error.
func Compile(input string) (Expr, error) {
	toks, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{input: input, toks: toks}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t, ok := p.peek(); ok {
		return nil, p.errAt(t.pos, fmt.Sprintf("tokens not fully consumed, unexpected %q", t.text))
	}
	return e, nil
}

// expr := term (('+' | '-') term)*
func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok || (t.kind != tokPlus && t.kind != tokMinus) {
			return left, nil
		}
		p.i++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = combine(left, right, t.kind)
	}
}

// term := factor (('*' | '/') factor)*
func (p *parser) parseTerm() (Expr, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok || (t.kind != tokStar && t.kind != tokSlash) {
			return left, nil
		}
		p.i++
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = combine(left, right, t.kind)
	}
}

// factor := NUMBER | '{' IDENT '}' | '(' expr ')'
func (p *parser) parseFactor() (Expr, error) {
	t, ok := p.next()
	if !ok {
		return nil, p.errEnd("unexpected end of expression")
	}
	switch t.kind {
	case tokNumber:
		v := t.value
		return func(map[string]float64) *float64 {
			out := v
			return &out
		}, nil
	case tokRef:
		ref := t.text
		return func(values map[string]float64) *float64 {
			v, ok := values[ref]
			if !ok {
				return nil
			}
			out := v
			return &out
		}, nil
	case tokLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		closing, ok := p.next()
		if !ok {
			return nil, p.errEnd("missing closing parenthesis")
		}
		if closing.kind != tokRParen {
			return nil, p.errAt(closing.pos, fmt.Sprintf("expected ')', got %q", closing.text))
		}
		return inner, nil
	default:
		return nil, p.errAt(t.pos, fmt.Sprintf("unexpected %q", t.text))
	}
}

// combine folds two sub-expressions into one. A nil operand propagates:
// once any part of an expression is not computable the whole expression
// is not computable. Division by zero yields nil, never Inf or NaN.
func combine(left, right Expr, op tokenKind) Expr {
	return func(values map[string]float64) *float64 {
		l := left(values)
		if l == nil {
			return nil
		}
		r := right(values)
		if r == nil {
			return nil
		}
		var out float64
		switch op {
		case tokPlus:
			out = *l + *r
		case tokMinus:
			out = *l - *r
		case tokStar:
			out = *l * *r
		case tokSlash:
			if *r == 0 {
				return nil
			}
			out = *l / *r
		}
		return &out
	}
}

// ExtractRefs returns the indicator codes referenced by input, deduplicated
// and in first-seen order. The expression is only tokenized, not parsed, so
// administrators get reference feedback while a formula is still incomplete.
// Malformed references and invalid characters still fail.
func ExtractRefs(input string) ([]string, error) {
	toks, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	refs := make([]string, 0, len(toks))
	for _, t := range toks {
		if t.kind != tokRef {
			continue
		}
		if _, ok := seen[t.text]; ok {
			continue
		}
		seen[t.text] = struct{}{}
		refs = append(refs, t.text)
	}
	return refs, nil
}
