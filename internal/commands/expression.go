package commands

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

var (
	ErrEmptyExpression   = errors.New("empty expression")
	ErrUnexpectedToken   = errors.New("unexpected token")
	ErrNonFiniteResult   = errors.New("expression has no finite result")
	ErrExpressionTooDeep = errors.New("expression nesting too deep")
)

const maxExpressionDepth = 64

type tokenKind int

const (
	tokenNumber tokenKind = iota
	tokenOperator
	tokenOpenParen
	tokenCloseParen
	tokenEnd
)

type token struct {
	kind  tokenKind
	op    byte
	value float64
	pos   int
}

// Evaluate computes an arithmetic expression built only from numeric literals,
// the binary operators + - * / %, unary signs and parentheses.
func Evaluate(expression string) (float64, error) {
	tokens, err := tokenize(expression)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 1 {
		return 0, ErrEmptyExpression
	}

	p := &expressionParser{tokens: tokens}
	value, err := p.parseSum()
	if err != nil {
		return 0, err
	}
	if next := p.peek(); next.kind != tokenEnd {
		return 0, fmt.Errorf("%w at offset %d", ErrUnexpectedToken, next.pos)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, ErrNonFiniteResult
	}
	return value, nil
}

func tokenize(input string) ([]token, error) {
	tokens := make([]token, 0, len(input)/2+1)

	for index := 0; index < len(input); {
		char := input[index]
		switch {
		case char == ' ' || char == '\t' || char == '\n' || char == '\r':
			index++
		case isDigit(char) || char == '.':
			start := index
			for index < len(input) && (isDigit(input[index]) || input[index] == '.') {
				index++
			}
			value, err := strconv.ParseFloat(input[start:index], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: malformed number %q at offset %d", ErrUnexpectedToken, input[start:index], start)
			}
			tokens = append(tokens, token{kind: tokenNumber, value: value, pos: start})
		case char == '+' || char == '-' || char == '*' || char == '/' || char == '%':
			tokens = append(tokens, token{kind: tokenOperator, op: char, pos: index})
			index++
		case char == '(':
			tokens = append(tokens, token{kind: tokenOpenParen, pos: index})
			index++
		case char == ')':
			tokens = append(tokens, token{kind: tokenCloseParen, pos: index})
			index++
		default:
			return nil, fmt.Errorf("%w %q at offset %d", ErrUnexpectedToken, char, index)
		}
	}

	return append(tokens, token{kind: tokenEnd, pos: len(input)}), nil
}

func isDigit(char byte) bool {
	return char >= '0' && char <= '9'
}

// expressionParser is a recursive-descent parser over the grammar:
//
//	sum     = product { ("+" | "-") product }
//	product = unary { ("*" | "/" | "%") unary }
//	unary   = ("+" | "-") unary | primary
//	primary = number | "(" sum ")"
type expressionParser struct {
	tokens []token
	pos    int
	depth  int
}

func (p *expressionParser) peek() token {
	return p.tokens[p.pos]
}

func (p *expressionParser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEnd {
		p.pos++
	}
	return tok
}

func (p *expressionParser) enter() error {
	p.depth++
	if p.depth > maxExpressionDepth {
		return ErrExpressionTooDeep
	}
	return nil
}

func (p *expressionParser) leave() {
	p.depth--
}

func (p *expressionParser) parseSum() (float64, error) {
	left, err := p.parseProduct()
	if err != nil {
		return 0, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokenOperator || (tok.op != '+' && tok.op != '-') {
			return left, nil
		}
		p.next()
		right, err := p.parseProduct()
		if err != nil {
			return 0, err
		}
		if tok.op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *expressionParser) parseProduct() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokenOperator || (tok.op != '*' && tok.op != '/' && tok.op != '%') {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		switch tok.op {
		case '*':
			left *= right
		case '/':
			left /= right
		case '%':
			left = math.Mod(left, right)
		}
	}
}

func (p *expressionParser) parseUnary() (float64, error) {
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer p.leave()

	tok := p.peek()
	if tok.kind == tokenOperator && (tok.op == '+' || tok.op == '-') {
		p.next()
		value, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if tok.op == '-' {
			return -value, nil
		}
		return value, nil
	}
	return p.parsePrimary()
}

func (p *expressionParser) parsePrimary() (float64, error) {
	tok := p.next()
	switch tok.kind {
	case tokenNumber:
		return tok.value, nil
	case tokenOpenParen:
		value, err := p.parseSum()
		if err != nil {
			return 0, err
		}
		if closing := p.next(); closing.kind != tokenCloseParen {
			return 0, fmt.Errorf("%w: missing closing parenthesis at offset %d", ErrUnexpectedToken, closing.pos)
		}
		return value, nil
	case tokenEnd:
		return 0, fmt.Errorf("%w: unexpected end of expression", ErrUnexpectedToken)
	default:
		return 0, fmt.Errorf("%w at offset %d", ErrUnexpectedToken, tok.pos)
	}
}
