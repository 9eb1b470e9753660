package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formrules/pkg/model"
)

// Compile turns a shorthand expression into a Condition tree.
//
// Supported forms:
//   - comparisons: `field == "value"`, `count != 3`, `age > 17`, `age < 65`
//   - string tests: `name ~= "sub"` (contains), `code ^= "RS"` (startsWith)
//   - emptiness: bare `field` (isNotEmpty), `!field` (isEmpty),
//     `field == null` (isEmpty), `field != null` (isNotEmpty)
//   - composition: `a && b`, `a || b`, parentheses
//
// `&&` binds tighter than `||`. Chains of the same operator are flattened into
// a single group.
func Compile(src string) (model.Condition, error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return model.Condition{}, errors.New("condition/expr: empty expression")
	}

	tokens, err := tokenize(trimmed)
	if err != nil {
		return model.Condition{}, err
	}

	stream := &tokenStream{tokens: tokens}
	cond, err := parseOr(stream)
	if err != nil {
		return model.Condition{}, err
	}
	if stream.pos < len(stream.tokens) {
		return model.Condition{}, fmt.Errorf("condition/expr: unexpected token %q", stream.tokens[stream.pos].raw)
	}
	return cond, nil
}

// MustCompile is like Compile but panics on error. Intended for tests and
// package-level fixtures.
func MustCompile(src string) model.Condition {
	cond, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return cond
}

type tokenKind int

const (
	tokenIdentifier tokenKind = iota
	tokenString
	tokenNumber
	tokenBool
	tokenNull
	tokenEq
	tokenNeq
	tokenGt
	tokenLt
	tokenContains
	tokenStartsWith
	tokenAnd
	tokenOr
	tokenNot
	tokenLParen
	tokenRParen
)

type token struct {
	kind tokenKind
	raw  string
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0

	next := func() byte {
		if i >= len(input) {
			return 0
		}
		return input[i]
	}

	for i < len(input) {
		ch := next()
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
			i++
			continue
		}

		switch ch {
		case '(':
			i++
			tokens = append(tokens, token{kind: tokenLParen, raw: "("})
			continue
		case ')':
			i++
			tokens = append(tokens, token{kind: tokenRParen, raw: ")"})
			continue
		case '>':
			i++
			tokens = append(tokens, token{kind: tokenGt, raw: ">"})
			continue
		case '<':
			i++
			tokens = append(tokens, token{kind: tokenLt, raw: "<"})
			continue
		case '!':
			i++
			if next() == '=' {
				i++
				tokens = append(tokens, token{kind: tokenNeq, raw: "!="})
				continue
			}
			tokens = append(tokens, token{kind: tokenNot, raw: "!"})
			continue
		case '=', '~', '^':
			i++
			if next() != '=' {
				return nil, fmt.Errorf("condition/expr: unexpected %q; use %q", string(ch), string(ch)+"=")
			}
			i++
			switch ch {
			case '=':
				tokens = append(tokens, token{kind: tokenEq, raw: "=="})
			case '~':
				tokens = append(tokens, token{kind: tokenContains, raw: "~="})
			default:
				tokens = append(tokens, token{kind: tokenStartsWith, raw: "^="})
			}
			continue
		case '&':
			i++
			if next() != '&' {
				return nil, errors.New("condition/expr: unexpected '&'; use '&&'")
			}
			i++
			tokens = append(tokens, token{kind: tokenAnd, raw: "&&"})
			continue
		case '|':
			i++
			if next() != '|' {
				return nil, errors.New("condition/expr: unexpected '|'; use '||'")
			}
			i++
			tokens = append(tokens, token{kind: tokenOr, raw: "||"})
			continue
		case '"', '\'':
			value, consumed, err := readString(input[i:])
			if err != nil {
				return nil, err
			}
			i += consumed
			tokens = append(tokens, token{kind: tokenString, raw: value})
			continue
		}

		start := i
		for i < len(input) && !isDelimiter(input[i]) {
			i++
		}
		raw := input[start:i]
		if raw == "" {
			return nil, fmt.Errorf("condition/expr: unexpected character %q", string(ch))
		}
		switch strings.ToLower(raw) {
		case "true", "false":
			tokens = append(tokens, token{kind: tokenBool, raw: strings.ToLower(raw)})
		case "null", "nil":
			tokens = append(tokens, token{kind: tokenNull, raw: "null"})
		default:
			if looksLikeNumber(raw) {
				tokens = append(tokens, token{kind: tokenNumber, raw: raw})
			} else {
				tokens = append(tokens, token{kind: tokenIdentifier, raw: raw})
			}
		}
	}

	return tokens, nil
}

func readString(input string) (string, int, error) {
	quote := input[0]
	escaped := false
	for idx := 1; idx < len(input); idx++ {
		c := input[idx]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == quote {
			body := input[1:idx]
			if quote == '\'' {
				return unescapeSingle(body), idx + 1, nil
			}
			value, err := strconv.Unquote(`"` + body + `"`)
			if err != nil {
				return "", 0, fmt.Errorf("condition/expr: invalid string literal: %w", err)
			}
			return value, idx + 1, nil
		}
	}
	return "", 0, errors.New("condition/expr: unterminated string literal")
}

func unescapeSingle(body string) string {
	var b strings.Builder
	b.Grow(len(body))
	for idx := 0; idx < len(body); idx++ {
		c := body[idx]
		if c == '\\' && idx+1 < len(body) {
			idx++
			switch body[idx] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(body[idx])
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '(', ')', '!', '=', '&', '|', '>', '<', '~', '^', '"', '\'':
		return true
	default:
		return false
	}
}

func looksLikeNumber(raw string) bool {
	if raw == "" {
		return false
	}
	switch ch := raw[0]; {
	case ch >= '0' && ch <= '9', ch == '-', ch == '+', ch == '.':
	default:
		return false
	}
	_, err := strconv.ParseFloat(raw, 64)
	return err == nil
}

type tokenStream struct {
	tokens []token
	pos    int
}

func parseOr(stream *tokenStream) (model.Condition, error) {
	left, err := parseAnd(stream)
	if err != nil {
		return model.Condition{}, err
	}
	if !stream.peek(tokenOr) {
		return left, nil
	}
	children := []model.Condition{left}
	for stream.match(tokenOr) {
		right, err := parseAnd(stream)
		if err != nil {
			return model.Condition{}, err
		}
		children = append(children, right)
	}
	return model.Any(children...), nil
}

func parseAnd(stream *tokenStream) (model.Condition, error) {
	left, err := parseUnary(stream)
	if err != nil {
		return model.Condition{}, err
	}
	if !stream.peek(tokenAnd) {
		return left, nil
	}
	children := []model.Condition{left}
	for stream.match(tokenAnd) {
		right, err := parseUnary(stream)
		if err != nil {
			return model.Condition{}, err
		}
		children = append(children, right)
	}
	return model.All(children...), nil
}

func parseUnary(stream *tokenStream) (model.Condition, error) {
	if stream.match(tokenNot) {
		ident, ok := stream.consume(tokenIdentifier)
		if !ok {
			return model.Condition{}, errors.New("condition/expr: '!' only applies to a field name")
		}
		return model.Leaf(ident.raw, model.OpIsEmpty, nil), nil
	}
	return parsePrimary(stream)
}

func parsePrimary(stream *tokenStream) (model.Condition, error) {
	if stream.match(tokenLParen) {
		inner, err := parseOr(stream)
		if err != nil {
			return model.Condition{}, err
		}
		if !stream.match(tokenRParen) {
			return model.Condition{}, errors.New("condition/expr: missing closing ')'")
		}
		return inner, nil
	}

	ident, ok := stream.consume(tokenIdentifier)
	if !ok {
		if stream.pos >= len(stream.tokens) {
			return model.Condition{}, errors.New("condition/expr: unexpected end of expression")
		}
		return model.Condition{}, fmt.Errorf("condition/expr: expected field name, got %q", stream.tokens[stream.pos].raw)
	}

	opTok, ok := stream.consumeOperator()
	if !ok {
		return model.Leaf(ident.raw, model.OpIsNotEmpty, nil), nil
	}

	lit, err := stream.consumeLiteral()
	if err != nil {
		return model.Condition{}, err
	}

	if lit.kind == tokenNull {
		switch opTok.kind {
		case tokenEq:
			return model.Leaf(ident.raw, model.OpIsEmpty, nil), nil
		case tokenNeq:
			return model.Leaf(ident.raw, model.OpIsNotEmpty, nil), nil
		default:
			return model.Condition{}, fmt.Errorf("condition/expr: operator %q does not accept null", opTok.raw)
		}
	}

	value, err := literalValue(lit)
	if err != nil {
		return model.Condition{}, err
	}
	return model.Leaf(ident.raw, operatorFor(opTok.kind), value), nil
}

func operatorFor(kind tokenKind) model.Operator {
	switch kind {
	case tokenEq:
		return model.OpEquals
	case tokenNeq:
		return model.OpNotEquals
	case tokenGt:
		return model.OpGreaterThan
	case tokenLt:
		return model.OpLessThan
	case tokenContains:
		return model.OpContains
	default:
		return model.OpStartsWith
	}
}

func literalValue(tok token) (any, error) {
	switch tok.kind {
	case tokenString, tokenIdentifier:
		// Bare identifiers on the right-hand side are read as strings.
		return tok.raw, nil
	case tokenNumber:
		f, err := strconv.ParseFloat(tok.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("condition/expr: invalid number literal %q", tok.raw)
		}
		return f, nil
	case tokenBool:
		return tok.raw == "true", nil
	default:
		return nil, fmt.Errorf("condition/expr: expected literal, got %q", tok.raw)
	}
}

func (s *tokenStream) peek(kind tokenKind) bool {
	return s.pos < len(s.tokens) && s.tokens[s.pos].kind == kind
}

func (s *tokenStream) match(kind tokenKind) bool {
	if !s.peek(kind) {
		return false
	}
	s.pos++
	return true
}

func (s *tokenStream) consume(kind tokenKind) (token, bool) {
	if !s.peek(kind) {
		return token{}, false
	}
	out := s.tokens[s.pos]
	s.pos++
	return out, true
}

func (s *tokenStream) consumeOperator() (token, bool) {
	if s.pos >= len(s.tokens) {
		return token{}, false
	}
	tok := s.tokens[s.pos]
	switch tok.kind {
	case tokenEq, tokenNeq, tokenGt, tokenLt, tokenContains, tokenStartsWith:
		s.pos++
		return tok, true
	default:
		return token{}, false
	}
}

func (s *tokenStream) consumeLiteral() (token, error) {
	if s.pos >= len(s.tokens) {
		return token{}, errors.New("condition/expr: missing literal")
	}
	tok := s.tokens[s.pos]
	switch tok.kind {
	case tokenString, tokenNumber, tokenBool, tokenNull, tokenIdentifier:
		s.pos++
		return tok, nil
	default:
		return token{}, fmt.Errorf("condition/expr: expected literal, got %q", tok.raw)
	}
}
