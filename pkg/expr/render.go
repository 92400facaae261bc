package expr

import (
	"strconv"
	"strings"
)

// Quoter supplies dialect quoting for SQL rendering. backend.Dialect
// satisfies it.
type Quoter interface {
	QuoteIdent(name string) string
	QuoteString(s string) string
}

// Render renders a parsed tree as SQL. Every column reference in the tree
// was validated against a schema at parse time; quoting is the second fence.
func Render(n Node, q Quoter) string {
	switch v := n.(type) {
	case *ColumnRef:
		return q.QuoteIdent(v.Name)

	case *Literal:
		return renderLiteral(v, q)

	case *BinaryOp:
		op := v.Op
		if op == OpNe {
			op = "<>"
		}
		return "(" + Render(v.Left, q) + " " + op + " " + Render(v.Right, q) + ")"

	case *UnaryOp:
		if v.Op == OpNot {
			return "(NOT " + Render(v.Operand, q) + ")"
		}
		return "(-" + Render(v.Operand, q) + ")"

	case *FunctionCall:
		args := make([]string, len(v.Args))
		for i, a := range v.Args {
			args[i] = Render(a, q)
		}
		return v.Name + "(" + strings.Join(args, ", ") + ")"

	case *InList:
		items := make([]string, len(v.Items))
		for i, item := range v.Items {
			items[i] = Render(item, q)
		}
		op := "IN"
		if v.Negated {
			op = "NOT IN"
		}
		return "(" + Render(v.Operand, q) + " " + op + " (" + strings.Join(items, ", ") + "))"

	case *IsNull:
		if v.Negated {
			return "(" + Render(v.Operand, q) + " IS NOT NULL)"
		}
		return "(" + Render(v.Operand, q) + " IS NULL)"
	}

	// Unreachable for trees produced by the parser.
	return ""
}

func renderLiteral(l *Literal, q Quoter) string {
	switch l.Kind {
	case LiteralInt:
		return strconv.FormatInt(l.Int, 10)
	case LiteralFloat:
		s := strconv.FormatFloat(l.Float, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case LiteralString:
		return q.QuoteString(l.Str)
	case LiteralBool:
		if l.Bool {
			return "TRUE"
		}
		return "FALSE"
	case LiteralNull:
		return "NULL"
	}
	return "NULL"
}
