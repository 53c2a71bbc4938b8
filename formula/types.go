package formula

import "fmt"

// TokenType represents the type of a token
type TokenType int

const (
	// Literals
	TokenNumber TokenType = iota
	TokenIdent
	TokenFunc // identifier followed by '('

	// Operators
	TokenPlus  // +
	TokenMinus // -
	TokenStar  // *
	TokenSlash // /

	// Delimiters
	TokenComma      // ,
	TokenLeftParen  // (
	TokenRightParen // )

	// Special
	TokenEOF
	TokenError
)

var tokenNames = map[TokenType]string{
	TokenNumber:     "number",
	TokenIdent:      "identifier",
	TokenFunc:       "function",
	TokenPlus:       "'+'",
	TokenMinus:      "'-'",
	TokenStar:       "'*'",
	TokenSlash:      "'/'",
	TokenComma:      "','",
	TokenLeftParen:  "'('",
	TokenRightParen: "')'",
	TokenEOF:        "end of formula",
	TokenError:      "invalid character",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value string
	Pos   int // byte offset of the first character
}

// describe renders the token for error messages
func (t Token) describe() string {
	switch t.Type {
	case TokenEOF:
		return "end of formula"
	case TokenNumber, TokenIdent, TokenFunc:
		return fmt.Sprintf("%s %q", t.Type, t.Value)
	default:
		return t.Type.String()
	}
}
