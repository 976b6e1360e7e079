package filter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pdgo-project/pdgo/internal/core"
)

// Expr is a compiled filter expression. The zero value (and nil) matches
// every record.
type Expr struct {
	root node
}

// Empty reports whether the expression matches everything.
func (e *Expr) Empty() bool { return e == nil || e.root == nil }

// Match evaluates the expression against one record. Evaluation is total:
// absent fields and failed coercions make leaves false (or true for the
// negated operators), never an error.
func (e *Expr) Match(r core.Record) bool {
	if e.Empty() {
		return true
	}
	return e.root.eval(r)
}

// String renders the expression back to source form. Compiling the result
// yields a semantically equal expression.
func (e *Expr) String() string {
	if e.Empty() {
		return ""
	}
	return e.root.String()
}

type node interface {
	eval(core.Record) bool
	String() string
}

type orNode struct{ children []node }

func (n *orNode) eval(r core.Record) bool {
	for _, c := range n.children {
		if c.eval(r) {
			return true
		}
	}
	return false
}

func (n *orNode) String() string {
	parts := make([]string, len(n.children))
	for i, c := range n.children {
		parts[i] = c.String()
	}
	return strings.Join(parts, " or ")
}

type andNode struct{ children []node }

func (n *andNode) eval(r core.Record) bool {
	for _, c := range n.children {
		if !c.eval(r) {
			return false
		}
	}
	return true
}

func (n *andNode) String() string {
	parts := make([]string, len(n.children))
	for i, c := range n.children {
		if _, isOr := c.(*orNode); isOr {
			parts[i] = "(" + c.String() + ")"
		} else {
			parts[i] = c.String()
		}
	}
	return strings.Join(parts, " and ")
}

type notNode struct{ child node }

func (n *notNode) eval(r core.Record) bool { return !n.child.eval(r) }

func (n *notNode) String() string {
	switch n.child.(type) {
	case *orNode, *andNode:
		return "not (" + n.child.String() + ")"
	default:
		return "not " + n.child.String()
	}
}

// Op is a leaf comparison operator.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpMatch
	OpNotMatch
	OpIn
	OpLt
	OpLe
	OpGt
	OpGe
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpMatch:
		return "~"
	case OpNotMatch:
		return "!~"
	case OpIn:
		return "in"
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	default:
		return ">="
	}
}

type operandKind int

const (
	operandString operandKind = iota
	operandNumber
	operandBool
	operandNull
	operandList
)

type operand struct {
	kind operandKind
	str  string
	num  float64
	b    bool
	list []operand
	re   *regexp.Regexp // compiled for ~ and !~
}

func (o operand) String() string {
	switch o.kind {
	case operandString:
		return strconv.Quote(o.str)
	case operandNumber:
		return strconv.FormatFloat(o.num, 'f', -1, 64)
	case operandBool:
		return strconv.FormatBool(o.b)
	case operandNull:
		return "null"
	default:
		parts := make([]string, len(o.list))
		for i, m := range o.list {
			parts[i] = m.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
}

type leafNode struct {
	path    string
	op      Op
	operand operand
}

func (n *leafNode) String() string {
	return n.path + " " + n.op.String() + " " + n.operand.String()
}

func (n *leafNode) eval(r core.Record) bool {
	v := r.Lookup(n.path)
	switch n.op {
	case OpEq:
		return equal(v, n.operand)
	case OpNe:
		return !equal(v, n.operand)
	case OpMatch:
		return v.Present() && v.Kind != core.KindNull && n.operand.re.MatchString(v.Text())
	case OpNotMatch:
		return !v.Present() || v.Kind == core.KindNull || !n.operand.re.MatchString(v.Text())
	case OpIn:
		for _, m := range n.operand.list {
			if equal(v, m) {
				return true
			}
		}
		return false
	default: // numeric comparisons
		f, ok := v.AsNumber()
		if !ok {
			return false
		}
		g, ok := n.operand.asNumber()
		if !ok {
			return false
		}
		switch n.op {
		case OpLt:
			return f < g
		case OpLe:
			return f <= g
		case OpGt:
			return f > g
		default:
			return f >= g
		}
	}
}

// equal compares a field value with an operand, coercing the operand to the
// field's observed runtime type where sensible. Absent fields equal only
// null (so `path != x` is true when the path is missing).
func equal(v core.Value, o operand) bool {
	if o.kind == operandNull {
		return v.Kind == core.KindNull || !v.Present()
	}
	if !v.Present() || v.Kind == core.KindNull {
		return false
	}

	switch o.kind {
	case operandNumber:
		f, ok := v.AsNumber()
		return ok && f == o.num
	case operandBool:
		return v.Kind == core.KindBool && v.Bool == o.b
	case operandString:
		if v.Kind == core.KindNumber {
			if g, err := strconv.ParseFloat(strings.TrimSpace(o.str), 64); err == nil {
				return v.Num == g
			}
			return false
		}
		return v.Text() == o.str
	default:
		return false
	}
}

func (o operand) asNumber() (float64, bool) {
	switch o.kind {
	case operandNumber:
		return o.num, true
	case operandString:
		f, err := strconv.ParseFloat(strings.TrimSpace(o.str), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
