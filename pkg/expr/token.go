package expr

import "fmt"

// TokenType represents the type of a lexical token.
type TokenType int

//nolint:revive // TOKEN_* names are intentionally ALL_CAPS for SQL token conventions
const (
	// TOKEN_EOF represents end of input.
	TOKEN_EOF TokenType = iota
	// TOKEN_ILLEGAL represents an unrecognized token.
	TOKEN_ILLEGAL

	// TOKEN_IDENT represents an identifier (column or function name).
	TOKEN_IDENT
	// TOKEN_NUMBER represents a numeric literal.
	TOKEN_NUMBER // 123, 45.67, 1e10
	// TOKEN_STRING represents a string literal.
	TOKEN_STRING // 'hello'

	TOKEN_PLUS   // +
	TOKEN_MINUS  // -
	TOKEN_STAR   // *
	TOKEN_SLASH  // /
	TOKEN_EQ     // = or ==
	TOKEN_NE     // != or <>
	TOKEN_LT     // <
	TOKEN_GT     // >
	TOKEN_LE     // <=
	TOKEN_GE     // >=
	TOKEN_COMMA  // ,
	TOKEN_LPAREN // (
	TOKEN_RPAREN // )

	// Keywords
	TOKEN_AND
	TOKEN_OR
	TOKEN_NOT
	TOKEN_IN
	TOKEN_IS
	TOKEN_NULL
	TOKEN_LIKE
	TOKEN_TRUE
	TOKEN_FALSE
)

// Token is a single lexical token with its source position.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

// Position is a location in the input text.
type Position struct {
	Column int // 1-based
	Offset int // 0-based byte offset
}

var keywords = map[string]TokenType{
	"and":   TOKEN_AND,
	"or":    TOKEN_OR,
	"not":   TOKEN_NOT,
	"in":    TOKEN_IN,
	"is":    TOKEN_IS,
	"null":  TOKEN_NULL,
	"like":  TOKEN_LIKE,
	"true":  TOKEN_TRUE,
	"false": TOKEN_FALSE,
}

// LookupIdent returns the keyword token type for a lowercased identifier, or
// TOKEN_IDENT if it is not a keyword.
func LookupIdent(lower string) TokenType {
	if t, ok := keywords[lower]; ok {
		return t
	}
	return TOKEN_IDENT
}

var tokenNames = map[TokenType]string{
	TOKEN_EOF:     "EOF",
	TOKEN_ILLEGAL: "ILLEGAL",
	TOKEN_IDENT:   "IDENT",
	TOKEN_NUMBER:  "NUMBER",
	TOKEN_STRING:  "STRING",
	TOKEN_PLUS:    "+",
	TOKEN_MINUS:   "-",
	TOKEN_STAR:    "*",
	TOKEN_SLASH:   "/",
	TOKEN_EQ:      "=",
	TOKEN_NE:      "!=",
	TOKEN_LT:      "<",
	TOKEN_GT:      ">",
	TOKEN_LE:      "<=",
	TOKEN_GE:      ">=",
	TOKEN_COMMA:   ",",
	TOKEN_LPAREN:  "(",
	TOKEN_RPAREN:  ")",
	TOKEN_AND:     "AND",
	TOKEN_OR:      "OR",
	TOKEN_NOT:     "NOT",
	TOKEN_IN:      "IN",
	TOKEN_IS:      "IS",
	TOKEN_NULL:    "NULL",
	TOKEN_LIKE:    "LIKE",
	TOKEN_TRUE:    "TRUE",
	TOKEN_FALSE:   "FALSE",
}

// String returns a readable name for the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}
