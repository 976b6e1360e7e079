package filter

import (
	"strings"

	"github.com/pdgo-project/pdgo/internal/core"
)

type tokKind int

const (
	tEOF tokKind = iota
	tPath
	tString
	tNumber
	tOp // == != ~ !~ < <= > >=
	tAnd
	tOr
	tNot
	tIn
	tTrue
	tFalse
	tNull
	tLParen
	tRParen
	tLBracket
	tRBracket
	tComma
)

type token struct {
	kind tokKind
	text string
	pos  int
}

var keywords = map[string]tokKind{
	"and":   tAnd,
	"or":    tOr,
	"not":   tNot,
	"in":    tIn,
	"true":  tTrue,
	"false": tFalse,
	"null":  tNull,
}

func isPathStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isPathChar(c byte) bool {
	return isPathStart(c) || c == '.' || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// lex tokenizes a filter expression. Keywords are case-insensitive; paths
// are dotted identifiers; strings take single or double quotes.
func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tRParen, ")", i})
			i++
		case c == '[':
			toks = append(toks, token{tLBracket, "[", i})
			i++
		case c == ']':
			toks = append(toks, token{tRBracket, "]", i})
			i++
		case c == ',':
			toks = append(toks, token{tComma, ",", i})
			i++
		case c == '=' || c == '!' || c == '<' || c == '>' || c == '~':
			start := i
			op, n, err := lexOp(input, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tOp, op, start})
			i += n
		case c == '"' || c == '\'':
			start := i
			s, n, err := lexString(input, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tString, s, start})
			i += n
		case isDigit(c) || (c == '-' && i+1 < len(input) && isDigit(input[i+1])):
			start := i
			j := i + 1
			for j < len(input) && (isDigit(input[j]) || input[j] == '.') {
				j++
			}
			toks = append(toks, token{tNumber, input[start:j], start})
			i = j
		case isPathStart(c):
			start := i
			j := i
			for j < len(input) && isPathChar(input[j]) {
				j++
			}
			word := input[start:j]
			if kw, ok := keywords[strings.ToLower(word)]; ok {
				toks = append(toks, token{kw, word, start})
			} else {
				toks = append(toks, token{tPath, word, start})
			}
			i = j
		default:
			return nil, &core.MalformedFilterError{
				Expr: input, Pos: i, Fragment: string(c),
				Reason: "unexpected character",
			}
		}
	}
	toks = append(toks, token{tEOF, "", len(input)})
	return toks, nil
}

func lexOp(input string, i int) (string, int, error) {
	two := ""
	if i+1 < len(input) {
		two = input[i : i+2]
	}
	switch two {
	case "==", "!=", "!~", "<=", ">=":
		return two, 2, nil
	}
	switch input[i] {
	case '~':
		return "~", 1, nil
	case '<':
		return "<", 1, nil
	case '>':
		return ">", 1, nil
	}
	return "", 0, &core.MalformedFilterError{
		Expr: input, Pos: i, Fragment: string(input[i]),
		Reason: "unknown operator",
	}
}

func lexString(input string, i int) (string, int, error) {
	quote := input[i]
	var b strings.Builder
	j := i + 1
	for j < len(input) {
		c := input[j]
		switch c {
		case '\\':
			if j+1 >= len(input) {
				return "", 0, &core.MalformedFilterError{
					Expr: input, Pos: j, Fragment: "\\",
					Reason: "dangling escape",
				}
			}
			// Standard escapes decode to their control character; anything
			// else keeps the backslash so regex classes like \d pass through.
			switch esc := input[j+1]; esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\', '\'', '"':
				b.WriteByte(esc)
			default:
				b.WriteByte('\\')
				b.WriteByte(esc)
			}
			j += 2
		case quote:
			return b.String(), j - i + 1, nil
		default:
			b.WriteByte(c)
			j++
		}
	}
	return "", 0, &core.MalformedFilterError{
		Expr: input, Pos: i, Fragment: input[i:],
		Reason: "unterminated string",
	}
}
