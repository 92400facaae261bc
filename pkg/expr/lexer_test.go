package expr

import "testing"

func TestLexer_Operators(t *testing.T) {
	tests := []struct {
		input string
		types []TokenType
	}{
		{"= == != <> < <= > >=", []TokenType{TOKEN_EQ, TOKEN_EQ, TOKEN_NE, TOKEN_NE, TOKEN_LT, TOKEN_LE, TOKEN_GT, TOKEN_GE, TOKEN_EOF}},
		{"a>=b", []TokenType{TOKEN_IDENT, TOKEN_GE, TOKEN_IDENT, TOKEN_EOF}},
		{"a==b", []TokenType{TOKEN_IDENT, TOKEN_EQ, TOKEN_IDENT, TOKEN_EOF}},
		{"+ - * / , ( )", []TokenType{TOKEN_PLUS, TOKEN_MINUS, TOKEN_STAR, TOKEN_SLASH, TOKEN_COMMA, TOKEN_LPAREN, TOKEN_RPAREN, TOKEN_EOF}},
	}

	for _, tt := range tests {
		tokens := Tokenize(tt.input)
		if len(tokens) != len(tt.types) {
			t.Errorf("%q: expected %d tokens, got %d", tt.input, len(tt.types), len(tokens))
			continue
		}
		for i, typ := range tt.types {
			if tokens[i].Type != typ {
				t.Errorf("%q: token %d: expected %s, got %s", tt.input, i, typ, tokens[i].Type)
			}
		}
	}
}

func TestLexer_TwoCharOperatorsNeverSplit(t *testing.T) {
	// Regression guard: ">=" must lex as one GE token, never GT then EQ.
	tokens := Tokenize("a >= 5")
	if tokens[1].Type != TOKEN_GE {
		t.Fatalf("expected GE, got %s", tokens[1].Type)
	}
	if tokens[1].Literal != ">=" {
		t.Fatalf("expected literal \">=\", got %q", tokens[1].Literal)
	}
}

func TestLexer_Keywords(t *testing.T) {
	tokens := Tokenize("a AND b OR NOT c IN (1) IS NULL LIKE true false")
	want := []TokenType{
		TOKEN_IDENT, TOKEN_AND, TOKEN_IDENT, TOKEN_OR, TOKEN_NOT, TOKEN_IDENT,
		TOKEN_IN, TOKEN_LPAREN, TOKEN_NUMBER, TOKEN_RPAREN, TOKEN_IS, TOKEN_NULL,
		TOKEN_LIKE, TOKEN_TRUE, TOKEN_FALSE, TOKEN_EOF,
	}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d", len(want), len(tokens))
	}
	for i, typ := range want {
		if tokens[i].Type != typ {
			t.Errorf("token %d: expected %s, got %s", i, typ, tokens[i].Type)
		}
	}
}

func TestLexer_Keywords_CaseInsensitive(t *testing.T) {
	tokens := Tokenize("And oR nOt")
	want := []TokenType{TOKEN_AND, TOKEN_OR, TOKEN_NOT, TOKEN_EOF}
	for i, typ := range want {
		if tokens[i].Type != typ {
			t.Errorf("token %d: expected %s, got %s", i, typ, tokens[i].Type)
		}
	}
}

func TestLexer_StringEscapes(t *testing.T) {
	tokens := Tokenize("'it''s here'")
	if tokens[0].Type != TOKEN_STRING {
		t.Fatalf("expected STRING, got %s", tokens[0].Type)
	}
	if tokens[0].Literal != "it's here" {
		t.Fatalf("expected \"it's here\", got %q", tokens[0].Literal)
	}
}

func TestLexer_QuotedIdentifier(t *testing.T) {
	tokens := Tokenize(`"order count"`)
	if tokens[0].Type != TOKEN_IDENT {
		t.Fatalf("expected IDENT, got %s", tokens[0].Type)
	}
	if tokens[0].Literal != "order count" {
		t.Fatalf("expected \"order count\", got %q", tokens[0].Literal)
	}
}

func TestLexer_Numbers(t *testing.T) {
	tests := []struct {
		input   string
		literal string
	}{
		{"42", "42"},
		{"3.14", "3.14"},
		{"1e10", "1e10"},
		{"2.5E-3", "2.5E-3"},
	}
	for _, tt := range tests {
		tokens := Tokenize(tt.input)
		if tokens[0].Type != TOKEN_NUMBER {
			t.Errorf("%q: expected NUMBER, got %s", tt.input, tokens[0].Type)
		}
		if tokens[0].Literal != tt.literal {
			t.Errorf("%q: expected literal %q, got %q", tt.input, tt.literal, tokens[0].Literal)
		}
	}
}
