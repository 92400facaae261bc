package expr

import (
	"strconv"
	"strings"
)

// Node is a typed, backend-neutral expression tree node. Trees are finite and
// acyclic by construction. String() renders canonical text that re-parses to
// a structurally identical tree.
type Node interface {
	node()
	String() string
}

// ColumnRef references a column by name. The name is validated against the
// table schema at parse time.
type ColumnRef struct {
	Name string
}

func (*ColumnRef) node() {}

func (c *ColumnRef) String() string {
	if isBareIdentifier(c.Name) {
		return c.Name
	}
	return `"` + strings.ReplaceAll(c.Name, `"`, `""`) + `"`
}

// LiteralKind classifies a literal value.
type LiteralKind int

// Literal kinds.
const (
	LiteralInt LiteralKind = iota
	LiteralFloat
	LiteralString
	LiteralBool
	LiteralNull
)

// Literal is a typed literal value.
type Literal struct {
	Kind  LiteralKind
	Int   int64
	Float float64
	Str   string
	Bool  bool
}

func (*Literal) node() {}

func (l *Literal) String() string {
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
		return "'" + strings.ReplaceAll(l.Str, "'", "''") + "'"
	case LiteralBool:
		if l.Bool {
			return "true"
		}
		return "false"
	case LiteralNull:
		return "null"
	}
	return ""
}

// Binary operator names (canonical forms).
const (
	OpEq   = "="
	OpNe   = "!="
	OpLt   = "<"
	OpLe   = "<="
	OpGt   = ">"
	OpGe   = ">="
	OpAnd  = "AND"
	OpOr   = "OR"
	OpLike = "LIKE"
	OpAdd  = "+"
	OpSub  = "-"
	OpMul  = "*"
	OpDiv  = "/"
	OpNot  = "NOT"
	OpNeg  = "-"
)

// BinaryOp applies a binary operator to two sub-expressions.
type BinaryOp struct {
	Op    string
	Left  Node
	Right Node
}

func (*BinaryOp) node() {}

func (b *BinaryOp) String() string {
	return "(" + b.Left.String() + " " + b.Op + " " + b.Right.String() + ")"
}

// UnaryOp applies NOT or unary minus to a sub-expression.
type UnaryOp struct {
	Op      string
	Operand Node
}

func (*UnaryOp) node() {}

func (u *UnaryOp) String() string {
	if u.Op == OpNot {
		return "(NOT " + u.Operand.String() + ")"
	}
	return "(" + u.Op + u.Operand.String() + ")"
}

// FunctionCall invokes an allow-listed function.
type FunctionCall struct {
	Name string // canonical upper-case name
	Args []Node
}

func (*FunctionCall) node() {}

func (f *FunctionCall) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}
	return f.Name + "(" + strings.Join(args, ", ") + ")"
}

// InList tests membership of an operand in a literal list.
type InList struct {
	Operand Node
	Items   []Node
	Negated bool
}

func (*InList) node() {}

func (i *InList) String() string {
	items := make([]string, len(i.Items))
	for j, item := range i.Items {
		items[j] = item.String()
	}
	op := "IN"
	if i.Negated {
		op = "NOT IN"
	}
	return "(" + i.Operand.String() + " " + op + " (" + strings.Join(items, ", ") + "))"
}

// IsNull tests an operand for null.
type IsNull struct {
	Operand Node
	Negated bool
}

func (*IsNull) node() {}

func (i *IsNull) String() string {
	if i.Negated {
		return "(" + i.Operand.String() + " IS NOT NULL)"
	}
	return "(" + i.Operand.String() + " IS NULL)"
}

// Columns returns every column name referenced anywhere in the tree.
func Columns(n Node) []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case *ColumnRef:
			if !seen[v.Name] {
				seen[v.Name] = true
				out = append(out, v.Name)
			}
		case *BinaryOp:
			walk(v.Left)
			walk(v.Right)
		case *UnaryOp:
			walk(v.Operand)
		case *FunctionCall:
			for _, a := range v.Args {
				walk(a)
			}
		case *InList:
			walk(v.Operand)
			for _, item := range v.Items {
				walk(item)
			}
		case *IsNull:
			walk(v.Operand)
		}
	}
	walk(n)
	return out
}

// isBareIdentifier reports whether s can be rendered unquoted.
func isBareIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch == '_':
		case ch >= '0' && ch <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	// Keywords must be quoted to survive a round trip.
	return LookupIdent(strings.ToLower(s)) == TOKEN_IDENT
}
