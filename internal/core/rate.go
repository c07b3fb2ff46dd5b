package core

import (
	"regexp"
	"strings"
	"unicode"
)

// TokenKind classifies a rate expression token.
type TokenKind int

const (
	// TokenOperator is one of + - * / , ( ).
	TokenOperator TokenKind = iota
	// TokenOperand is an identifier or a numeric literal.
	TokenOperand
)

// Token is one lexical unit of a rate, mean or variance expression.
type Token struct {
	Kind  TokenKind
	Value string
}

// IsNumber reports whether an operand token is a numeric literal.
func (t Token) IsNumber() bool {
	if t.Kind != TokenOperand {
		return false
	}
	return decimalLiteral.MatchString(t.Value)
}

// Only plain decimal literals: no sign, hex, Inf or NaN forms.
var (
	decimalLiteral  = regexp.MustCompile(`^(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:[eE][+-]?[0-9]+)?$`)
	decimalMantissa = regexp.MustCompile(`^(?:[0-9]+\.?[0-9]*|\.[0-9]+)$`)
)

const rateOperators = "+-*/,()"

// Builtin functions and constants accepted in expressions.
var (
	builtinFunctions = map[string]struct{}{
		"pow": {}, "exp": {}, "log": {}, "log10": {}, "sqrt": {},
		"sin": {}, "cos": {}, "tan": {}, "abs": {}, "min": {}, "max": {},
		"heaviside": {}, "ramp": {}, "sinusoidal": {}, "correct_rate": {},
	}
	builtinConstants = map[string]struct{}{
		"PI": {}, "E": {}, "N": {}, "t": {}, "x": {},
	}
)

// IsBuiltin reports whether id is an allowed function or constant.
func IsBuiltin(id string) bool {
	if _, ok := builtinFunctions[id]; ok {
		return true
	}
	_, ok := builtinConstants[id]
	return ok
}

// ParseRate splits expr into operator and operand tokens after removing
// whitespace. It does not evaluate. A sign directly following the exponent
// marker of a numeric literal (1e-3) stays part of the literal.
func ParseRate(expr string) []Token {
	expr = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, expr)

	var (
		tokens []Token
		buf    strings.Builder
	)
	flush := func() {
		if buf.Len() > 0 {
			tokens = append(tokens, Token{Kind: TokenOperand, Value: buf.String()})
			buf.Reset()
		}
	}
	for _, r := range expr {
		if strings.ContainsRune(rateOperators, r) {
			if (r == '-' || r == '+') && exponentPending(buf.String()) {
				buf.WriteRune(r)
				continue
			}
			flush()
			tokens = append(tokens, Token{Kind: TokenOperator, Value: string(r)})
			continue
		}
		buf.WriteRune(r)
	}
	flush()
	return tokens
}

// exponentPending reports whether s is a numeric mantissa followed by e or E.
func exponentPending(s string) bool {
	if len(s) < 2 {
		return false
	}
	last := s[len(s)-1]
	return (last == 'e' || last == 'E') && decimalMantissa.MatchString(s[:len(s)-1])
}
