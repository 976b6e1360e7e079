package filter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pdgo-project/pdgo/internal/core"
)

// Compile parses a filter expression into an Expr. An empty (or
// whitespace-only) expression compiles to the match-everything expression.
// Syntax errors return a *core.MalformedFilterError pointing at the
// offending token.
//
// Grammar, loosest binding first:
//
//	expr  := and ("or" and)*
//	and   := unary ("and" unary)*
//	unary := "not" unary | "(" expr ")" | leaf
//	leaf  := path op operand | path "in" "[" operand ("," operand)* "]"
//	op    := "==" | "!=" | "~" | "!~" | "<" | "<=" | ">" | ">="
//
// Operands are quoted strings, numbers, true/false/null. Keywords are
// case-insensitive. "~" and "!~" take an RE2 pattern matched unanchored.
func Compile(text string) (*Expr, error) {
	if strings.TrimSpace(text) == "" {
		return &Expr{}, nil
	}
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{expr: text, toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tEOF {
		return nil, p.errf(tok, "unexpected trailing input")
	}
	return &Expr{root: root}, nil
}

type parser struct {
	expr string
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	tok := p.toks[p.pos]
	if tok.kind != tEOF {
		p.pos++
	}
	return tok
}

func (p *parser) errf(tok token, reason string) error {
	return &core.MalformedFilterError{Expr: p.expr, Pos: tok.pos, Fragment: tok.text, Reason: reason}
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []node{left}
	for p.peek().kind == tOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return left, nil
	}
	return &orNode{children: children}, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	children := []node{left}
	for p.peek().kind == tAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return left, nil
	}
	return &andNode{children: children}, nil
}

func (p *parser) parseUnary() (node, error) {
	switch tok := p.peek(); tok.kind {
	case tNot:
		p.next()
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notNode{child: child}, nil
	case tLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tRParen {
			return nil, p.errf(closing, "expected closing parenthesis")
		}
		return inner, nil
	case tPath:
		return p.parseLeaf()
	default:
		return nil, p.errf(tok, "expected field path, 'not', or '('")
	}
}

func (p *parser) parseLeaf() (node, error) {
	pathTok := p.next()

	opTok := p.next()
	switch opTok.kind {
	case tIn:
		list, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return &leafNode{path: pathTok.text, op: OpIn, operand: operand{kind: operandList, list: list}}, nil
	case tOp:
		// handled below
	default:
		return nil, p.errf(opTok, "expected comparison operator")
	}

	op, err := p.opFor(opTok)
	if err != nil {
		return nil, err
	}

	valTok := p.next()
	o, err := p.parseOperand(valTok)
	if err != nil {
		return nil, err
	}

	if op == OpMatch || op == OpNotMatch {
		if o.kind != operandString {
			return nil, p.errf(valTok, "regex operator requires a string pattern")
		}
		re, err := regexp.Compile(o.str)
		if err != nil {
			return nil, p.errf(valTok, "invalid regex: "+err.Error())
		}
		o.re = re
	}

	return &leafNode{path: pathTok.text, op: op, operand: o}, nil
}

func (p *parser) opFor(tok token) (Op, error) {
	switch tok.text {
	case "==":
		return OpEq, nil
	case "!=":
		return OpNe, nil
	case "~":
		return OpMatch, nil
	case "!~":
		return OpNotMatch, nil
	case "<":
		return OpLt, nil
	case "<=":
		return OpLe, nil
	case ">":
		return OpGt, nil
	case ">=":
		return OpGe, nil
	}
	return 0, p.errf(tok, "unknown operator")
}

func (p *parser) parseOperand(tok token) (operand, error) {
	switch tok.kind {
	case tString:
		return operand{kind: operandString, str: tok.text}, nil
	case tNumber:
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return operand{}, p.errf(tok, "invalid number")
		}
		return operand{kind: operandNumber, num: f}, nil
	case tTrue:
		return operand{kind: operandBool, b: true}, nil
	case tFalse:
		return operand{kind: operandBool, b: false}, nil
	case tNull:
		return operand{kind: operandNull}, nil
	// Bare words read naturally on the right-hand side ("status == triggered")
	// but collide with paths; require quotes and say so.
	case tPath:
		return operand{}, p.errf(tok, "unquoted value — use quotes")
	default:
		return operand{}, p.errf(tok, "expected a value")
	}
}

func (p *parser) parseList() ([]operand, error) {
	if open := p.next(); open.kind != tLBracket {
		return nil, p.errf(open, "'in' requires a [a, b, …] list")
	}
	var list []operand
	for {
		tok := p.next()
		if tok.kind == tRBracket && len(list) == 0 {
			return list, nil // empty list matches nothing
		}
		o, err := p.parseOperand(tok)
		if err != nil {
			return nil, err
		}
		if o.kind == operandList {
			return nil, p.errf(tok, "nested lists are not supported")
		}
		list = append(list, o)

		switch sep := p.next(); sep.kind {
		case tComma:
		case tRBracket:
			return list, nil
		default:
			return nil, p.errf(sep, "expected ',' or ']' in list")
		}
	}
}
