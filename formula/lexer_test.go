package formula

import (
	"errors"
	"testing"
)

func TestLexer_Tokens(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Token
	}{
		{
			name:  "arithmetic",
			input: "quantity * unit_price",
			expected: []Token{
				{Type: TokenIdent, Value: "quantity", Pos: 0},
				{Type: TokenStar, Value: "*", Pos: 9},
				{Type: TokenIdent, Value: "unit_price", Pos: 11},
				{Type: TokenEOF, Value: "", Pos: 21},
			},
		},
		{
			name:  "function call",
			input: "SUM(quantity)",
			expected: []Token{
				{Type: TokenFunc, Value: "SUM", Pos: 0},
				{Type: TokenLeftParen, Value: "(", Pos: 3},
				{Type: TokenIdent, Value: "quantity", Pos: 4},
				{Type: TokenRightParen, Value: ")", Pos: 12},
				{Type: TokenEOF, Value: "", Pos: 13},
			},
		},
		{
			name:  "function call with space before paren",
			input: "mean (x)",
			expected: []Token{
				{Type: TokenFunc, Value: "mean", Pos: 0},
				{Type: TokenLeftParen, Value: "(", Pos: 5},
				{Type: TokenIdent, Value: "x", Pos: 6},
				{Type: TokenRightParen, Value: ")", Pos: 7},
				{Type: TokenEOF, Value: "", Pos: 8},
			},
		},
		{
			name:  "qualified identifier",
			input: "date::month",
			expected: []Token{
				{Type: TokenIdent, Value: "date::month", Pos: 0},
				{Type: TokenEOF, Value: "", Pos: 11},
			},
		},
		{
			name:  "decimal literals",
			input: "1.5 + .25",
			expected: []Token{
				{Type: TokenNumber, Value: "1.5", Pos: 0},
				{Type: TokenPlus, Value: "+", Pos: 4},
				{Type: TokenNumber, Value: ".25", Pos: 6},
				{Type: TokenEOF, Value: "", Pos: 9},
			},
		},
		{
			name:  "operators and whitespace",
			input: "(a-b)\t/\n2, -c",
			expected: []Token{
				{Type: TokenLeftParen, Value: "(", Pos: 0},
				{Type: TokenIdent, Value: "a", Pos: 1},
				{Type: TokenMinus, Value: "-", Pos: 2},
				{Type: TokenIdent, Value: "b", Pos: 3},
				{Type: TokenRightParen, Value: ")", Pos: 4},
				{Type: TokenSlash, Value: "/", Pos: 6},
				{Type: TokenNumber, Value: "2", Pos: 8},
				{Type: TokenComma, Value: ",", Pos: 9},
				{Type: TokenMinus, Value: "-", Pos: 11},
				{Type: TokenIdent, Value: "c", Pos: 12},
				{Type: TokenEOF, Value: "", Pos: 13},
			},
		},
		{
			name:     "empty input",
			input:    "   ",
			expected: []Token{{Type: TokenEOF, Value: "", Pos: 3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Tokenize(tt.input)
			if err != nil {
				t.Fatalf("Tokenize() unexpected error: %v", err)
			}
			if len(tokens) != len(tt.expected) {
				t.Fatalf("expected %d tokens, got %d: %v", len(tt.expected), len(tokens), tokens)
			}
			for i, tok := range tokens {
				if tok != tt.expected[i] {
					t.Errorf("token %d: got %+v, want %+v", i, tok, tt.expected[i])
				}
			}
		})
	}
}

func TestLexer_Errors(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantChar   rune
		wantOffset int
	}{
		{name: "dollar sign", input: "a $ b", wantChar: '$', wantOffset: 2},
		{name: "single colon", input: "date:month", wantChar: ':', wantOffset: 4},
		{name: "dangling qualifier", input: "date::", wantChar: 0, wantOffset: 6},
		{name: "qualifier starting with digit", input: "date::1m", wantChar: '1', wantOffset: 6},
		{name: "multibyte character", input: "price € 2", wantChar: '€', wantOffset: 6},
		{name: "comparison operator", input: "a > b", wantChar: '>', wantOffset: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.input)
			var lexErr *LexError
			if !errors.As(err, &lexErr) {
				t.Fatalf("Tokenize() error = %v, want *LexError", err)
			}
			if lexErr.Char != tt.wantChar || lexErr.Offset != tt.wantOffset {
				t.Errorf("LexError = {%q, %d}, want {%q, %d}", lexErr.Char, lexErr.Offset, tt.wantChar, tt.wantOffset)
			}
		})
	}
}

func TestLexer_Reset(t *testing.T) {
	l := NewLexer("a + 1")

	var first []Token
	for tok := l.NextToken(); tok.Type != TokenEOF; tok = l.NextToken() {
		first = append(first, tok)
	}

	l.Reset()
	for i := range first {
		if tok := l.NextToken(); tok != first[i] {
			t.Errorf("after Reset token %d = %+v, want %+v", i, tok, first[i])
		}
	}
}
