// Package expr parses SQL-like predicate and derive-column expressions into
// typed, backend-neutral trees.
//
// The parser is a recursive descent parser over a hand-written lexer, with
// precedence:
//
//	expression → or_expr
//	or_expr    → and_expr (OR and_expr)*
//	and_expr   → not_expr (AND not_expr)*
//	not_expr   → NOT not_expr | comparison
//	comparison → additive ((= | == | != | <> | < | <= | > | >=) additive
//	           | IS [NOT] NULL | [NOT] IN (items) | [NOT] LIKE additive)?
//	additive   → multiplicative ((+ | -) multiplicative)*
//	multiplicative → unary ((* | /) unary)*
//	unary      → - unary | primary
//	primary    → literal | column | function(args) | ( expression )
//
// Column references are validated against the supplied schema at parse time;
// function calls are validated against a fixed allow-list with fixed arity.
package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ameijin/quicketl/pkg/core"
)

// ParseError reports malformed expression text.
type ParseError struct {
	Msg   string
	Pos   Position
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at column %d: %s (in %q)", e.Pos.Column, e.Msg, e.Input)
}

// UnknownColumnError reports a column reference absent from the schema.
type UnknownColumnError struct {
	Name      string
	Available []string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %q (have: %s)", e.Name, strings.Join(e.Available, ", "))
}

// Parser parses expression text into a Node tree.
type Parser struct {
	lexer  *Lexer
	input  string
	token  Token // current token
	peek   Token // lookahead token
	schema core.Schema
	err    error
}

// NewParser creates a parser for the given input, validating column
// references against schema. A nil schema skips column validation.
func NewParser(input string, schema core.Schema) *Parser {
	p := &Parser{
		lexer:  NewLexer(input),
		input:  input,
		schema: schema,
	}
	// Read two tokens to initialize current and peek.
	p.nextToken()
	p.nextToken()
	return p
}

// ParsePredicate parses a boolean predicate against the given schema. The
// resulting top-level node is always boolean-shaped: a comparison, boolean
// connective, null test, membership test, or boolean column reference.
func ParsePredicate(text string, schema core.Schema) (Node, error) {
	p := NewParser(text, schema)
	n, err := p.parse()
	if err != nil {
		return nil, err
	}
	if !isPredicateNode(n) {
		return nil, &ParseError{
			Msg:   "expression is not a boolean predicate",
			Input: text,
		}
	}
	return n, nil
}

// ParseExpression parses a derive-column expression against the given
// schema. Unlike ParsePredicate, any value-producing expression is accepted.
func ParseExpression(text string, schema core.Schema) (Node, error) {
	p := NewParser(text, schema)
	return p.parse()
}

// ParseValue parses standalone literal text using the literal inference
// rules: integer grammar yields an integer, a decimal point or exponent
// yields a float, case-insensitive true/false/null yield boolean/null, and
// everything else is a string. Surrounding single or double quotes force a
// string.
func ParseValue(text string) *Literal {
	s := strings.TrimSpace(text)

	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			inner := s[1 : len(s)-1]
			if s[0] == '\'' {
				inner = strings.ReplaceAll(inner, "''", "'")
			}
			return &Literal{Kind: LiteralString, Str: inner}
		}
	}

	switch strings.ToLower(s) {
	case "true":
		return &Literal{Kind: LiteralBool, Bool: true}
	case "false":
		return &Literal{Kind: LiteralBool, Bool: false}
	case "null":
		return &Literal{Kind: LiteralNull}
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &Literal{Kind: LiteralInt, Int: i}
	}
	if strings.ContainsAny(s, ".eE") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return &Literal{Kind: LiteralFloat, Float: f}
		}
	}

	return &Literal{Kind: LiteralString, Str: s}
}

// parse runs the full grammar and requires the input to be fully consumed.
func (p *Parser) parse() (Node, error) {
	n := p.parseOr()
	if p.err != nil {
		return nil, p.err
	}
	if p.token.Type != TOKEN_EOF {
		return nil, &ParseError{
			Msg:   fmt.Sprintf("unexpected trailing token %q", p.token.Literal),
			Pos:   p.token.Pos,
			Input: p.input,
		}
	}
	return n, nil
}

// ---------- Token helpers ----------

func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) check(t TokenType) bool {
	return p.token.Type == t
}

func (p *Parser) match(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

func (p *Parser) expect(t TokenType) bool {
	if p.match(t) {
		return true
	}
	p.fail(fmt.Sprintf("expected %s, got %q", t, p.token.Literal))
	return false
}

func (p *Parser) fail(msg string) {
	if p.err == nil {
		p.err = &ParseError{Msg: msg, Pos: p.token.Pos, Input: p.input}
	}
}

// ---------- Grammar ----------

func (p *Parser) parseOr() Node {
	left := p.parseAnd()
	for p.err == nil && p.check(TOKEN_OR) {
		p.nextToken()
		right := p.parseAnd()
		left = &BinaryOp{Op: OpOr, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() Node {
	left := p.parseNot()
	for p.err == nil && p.check(TOKEN_AND) {
		p.nextToken()
		right := p.parseNot()
		left = &BinaryOp{Op: OpAnd, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseNot() Node {
	// NOT IN / NOT LIKE belong to the comparison postfix, not here; they are
	// only reachable after an operand has been parsed.
	if p.check(TOKEN_NOT) {
		p.nextToken()
		operand := p.parseNot()
		return &UnaryOp{Op: OpNot, Operand: operand}
	}
	return p.parseComparison()
}

var comparisonOps = map[TokenType]string{
	TOKEN_EQ: OpEq,
	TOKEN_NE: OpNe,
	TOKEN_LT: OpLt,
	TOKEN_LE: OpLe,
	TOKEN_GT: OpGt,
	TOKEN_GE: OpGe,
}

func (p *Parser) parseComparison() Node {
	left := p.parseAdditive()
	if p.err != nil {
		return left
	}

	if op, ok := comparisonOps[p.token.Type]; ok {
		p.nextToken()
		right := p.parseAdditive()
		return &BinaryOp{Op: op, Left: left, Right: right}
	}

	switch p.token.Type {
	case TOKEN_IS:
		p.nextToken()
		negated := p.match(TOKEN_NOT)
		p.expect(TOKEN_NULL)
		return &IsNull{Operand: left, Negated: negated}
	case TOKEN_IN:
		p.nextToken()
		return p.parseInList(left, false)
	case TOKEN_LIKE:
		p.nextToken()
		right := p.parseAdditive()
		return &BinaryOp{Op: OpLike, Left: left, Right: right}
	case TOKEN_NOT:
		switch p.peek.Type {
		case TOKEN_IN:
			p.nextToken()
			p.nextToken()
			return p.parseInList(left, true)
		case TOKEN_LIKE:
			p.nextToken()
			p.nextToken()
			right := p.parseAdditive()
			return &UnaryOp{Op: OpNot, Operand: &BinaryOp{Op: OpLike, Left: left, Right: right}}
		}
	}

	return left
}

func (p *Parser) parseInList(operand Node, negated bool) Node {
	if !p.expect(TOKEN_LPAREN) {
		return operand
	}
	var items []Node
	for {
		items = append(items, p.parseUnary())
		if p.err != nil {
			return operand
		}
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	p.expect(TOKEN_RPAREN)
	return &InList{Operand: operand, Items: items, Negated: negated}
}

func (p *Parser) parseAdditive() Node {
	left := p.parseMultiplicative()
	for p.err == nil && (p.check(TOKEN_PLUS) || p.check(TOKEN_MINUS)) {
		op := OpAdd
		if p.check(TOKEN_MINUS) {
			op = OpSub
		}
		p.nextToken()
		right := p.parseMultiplicative()
		left = &BinaryOp{Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseMultiplicative() Node {
	left := p.parseUnary()
	for p.err == nil && (p.check(TOKEN_STAR) || p.check(TOKEN_SLASH)) {
		op := OpMul
		if p.check(TOKEN_SLASH) {
			op = OpDiv
		}
		p.nextToken()
		right := p.parseUnary()
		left = &BinaryOp{Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() Node {
	if p.check(TOKEN_MINUS) {
		p.nextToken()
		operand := p.parseUnary()
		// Fold negation into numeric literals so -3 is one node.
		if lit, ok := operand.(*Literal); ok {
			switch lit.Kind {
			case LiteralInt:
				return &Literal{Kind: LiteralInt, Int: -lit.Int}
			case LiteralFloat:
				return &Literal{Kind: LiteralFloat, Float: -lit.Float}
			}
		}
		return &UnaryOp{Op: OpNeg, Operand: operand}
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() Node {
	switch p.token.Type {
	case TOKEN_NUMBER:
		lit := p.token.Literal
		p.nextToken()
		if strings.ContainsAny(lit, ".eE") {
			f, err := strconv.ParseFloat(lit, 64)
			if err != nil {
				p.fail(fmt.Sprintf("invalid number %q", lit))
				return nil
			}
			return &Literal{Kind: LiteralFloat, Float: f}
		}
		i, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			p.fail(fmt.Sprintf("invalid number %q", lit))
			return nil
		}
		return &Literal{Kind: LiteralInt, Int: i}

	case TOKEN_STRING:
		s := p.token.Literal
		p.nextToken()
		return &Literal{Kind: LiteralString, Str: s}

	case TOKEN_TRUE:
		p.nextToken()
		return &Literal{Kind: LiteralBool, Bool: true}

	case TOKEN_FALSE:
		p.nextToken()
		return &Literal{Kind: LiteralBool, Bool: false}

	case TOKEN_NULL:
		p.nextToken()
		return &Literal{Kind: LiteralNull}

	case TOKEN_LPAREN:
		p.nextToken()
		n := p.parseOr()
		p.expect(TOKEN_RPAREN)
		return n

	case TOKEN_IDENT:
		name := p.token.Literal
		if p.peek.Type == TOKEN_LPAREN {
			p.nextToken() // onto '('
			p.nextToken() // past '('
			return p.parseFunctionCall(name)
		}
		p.nextToken()
		return p.columnRef(name)
	}

	p.fail(fmt.Sprintf("unexpected token %q", p.token.Literal))
	return nil
}

func (p *Parser) parseFunctionCall(name string) Node {
	canonical, bounds, ok := lookupFunction(name)
	if !ok {
		p.fail(fmt.Sprintf("function %q is not allowed (allowed: %s)", name, strings.Join(FunctionNames(), ", ")))
		return nil
	}

	var args []Node
	if !p.check(TOKEN_RPAREN) {
		for {
			args = append(args, p.parseOr())
			if p.err != nil {
				return nil
			}
			if !p.match(TOKEN_COMMA) {
				break
			}
		}
	}
	p.expect(TOKEN_RPAREN)

	if len(args) < bounds.Min || (bounds.Max >= 0 && len(args) > bounds.Max) {
		p.fail(fmt.Sprintf("function %s expects %s arguments, got %d", canonical, arityString(bounds), len(args)))
		return nil
	}

	return &FunctionCall{Name: canonical, Args: args}
}

func (p *Parser) columnRef(name string) Node {
	if p.schema != nil && !p.schema.HasColumn(name) {
		if p.err == nil {
			p.err = &UnknownColumnError{Name: name, Available: p.schema.Names()}
		}
		return nil
	}
	return &ColumnRef{Name: name}
}

func arityString(a arity) string {
	if a.Max < 0 {
		return fmt.Sprintf("at least %d", a.Min)
	}
	if a.Min == a.Max {
		return strconv.Itoa(a.Min)
	}
	return fmt.Sprintf("%d to %d", a.Min, a.Max)
}

// isPredicateNode reports whether n produces a boolean value.
func isPredicateNode(n Node) bool {
	switch v := n.(type) {
	case *BinaryOp:
		switch v.Op {
		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpAnd, OpOr, OpLike:
			return true
		}
		return false
	case *UnaryOp:
		return v.Op == OpNot
	case *InList, *IsNull:
		return true
	case *ColumnRef:
		// Bare boolean column reference, e.g. "active".
		return true
	case *Literal:
		return v.Kind == LiteralBool
	}
	return false
}
