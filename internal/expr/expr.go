// Package expr evaluates the boolean conditions of #if and #elseif lines.
//
// The language has the literals 0 and 1, unary !, binary && and ||, and
// parentheses. && and || share a single precedence level and fold strictly
// left to right, so "1 || 0 && 1" means "(1 || 0) && 1".
package expr

import (
	"fmt"
	"strings"
	"unicode"
)

type Token int

const (
	LeftParen Token = iota
	RightParen
	And
	Or
	Not
	Zero
	One
)

var tokenNames = [...]string{
	LeftParen:  "(",
	RightParen: ")",
	And:        "&&",
	Or:         "||",
	Not:        "!",
	Zero:       "0",
	One:        "1",
}

func (t Token) String() string {
	if int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return fmt.Sprintf("Token(%d)", int(t))
}

const (
	ReasonUnexpectedSymbol = "unexpected symbol"
	ReasonUnexpectedToken  = "unexpected token"
)

// SyntaxError reports a malformed expression. Pos is a byte offset into the
// input for unexpected symbols and a token index for unexpected tokens.
type SyntaxError struct {
	Reason string
	Pos    int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("bad expression: %s at %d", e.Reason, e.Pos)
}

// Tokenize splits s into tokens, skipping whitespace.
func Tokenize(s string) ([]Token, error) {
	var toks []Token
	i := 0
	for {
		rest := strings.TrimLeftFunc(s[i:], unicode.IsSpace)
		i = len(s) - len(rest)
		if rest == "" {
			return toks, nil
		}
		if strings.HasPrefix(rest, "||") {
			toks = append(toks, Or)
			i += 2
			continue
		}
		if strings.HasPrefix(rest, "&&") {
			toks = append(toks, And)
			i += 2
			continue
		}
		switch rest[0] {
		case '(':
			toks = append(toks, LeftParen)
		case ')':
			toks = append(toks, RightParen)
		case '!':
			toks = append(toks, Not)
		case '0':
			toks = append(toks, Zero)
		case '1':
			toks = append(toks, One)
		default:
			return nil, &SyntaxError{Reason: ReasonUnexpectedSymbol, Pos: i}
		}
		i++
	}
}

// Eval tokenizes and evaluates s.
func Eval(s string) (bool, error) {
	toks, err := Tokenize(s)
	if err != nil {
		return false, err
	}
	ev := evaluator{toks: toks}
	return ev.eval(false)
}

type foldOp int

const (
	opSet foldOp = iota
	opAnd
	opOr
)

type evaluator struct {
	toks []Token
	pos  int
}

func (e *evaluator) peek() (Token, bool) {
	if e.pos < len(e.toks) {
		return e.toks[e.pos], true
	}
	return 0, false
}

func (e *evaluator) unexpected() error {
	return &SyntaxError{Reason: ReasonUnexpectedToken, Pos: e.pos}
}

// eval folds operands left to right until the end of input, or until the
// closing paren when paren is set. Both sides of && and || are always
// evaluated so that errors on the right are never masked.
func (e *evaluator) eval(paren bool) (bool, error) {
	result, op := false, opSet
	for {
		negate := false
		for tok, ok := e.peek(); ok && tok == Not; tok, ok = e.peek() {
			negate = !negate
			e.pos++
		}

		tok, ok := e.peek()
		if !ok {
			return false, e.unexpected()
		}
		var val bool
		switch tok {
		case One:
			e.pos++
			val = true
		case Zero:
			e.pos++
		case LeftParen:
			e.pos++
			v, err := e.eval(true)
			if err != nil {
				return false, err
			}
			val = v
		default:
			return false, e.unexpected()
		}
		val = val != negate

		switch op {
		case opSet:
			result = val
		case opAnd:
			result = result && val
		case opOr:
			result = result || val
		}

		tok, ok = e.peek()
		switch {
		case !ok && !paren:
			return result, nil
		case !ok:
			return false, e.unexpected()
		case tok == And:
			op = opAnd
		case tok == Or:
			op = opOr
		case tok == RightParen && paren:
			e.pos++
			return result, nil
		default:
			return false, e.unexpected()
		}
		e.pos++
	}
}
