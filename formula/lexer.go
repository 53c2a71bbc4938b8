package formula

import (
	"strings"
	"unicode/utf8"
)

// Lexer tokenizes formula strings
type Lexer struct {
	input string
	pos   int  // offset of the next character to read
	start int  // offset of ch
	ch    rune // current character, 0 at end of input
}

// NewLexer creates a new lexer
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// Reset rewinds the lexer to the beginning of its input
func (l *Lexer) Reset() {
	l.pos = 0
	l.start = 0
	l.readChar()
}

// readChar reads the next character
func (l *Lexer) readChar() {
	l.start = l.pos
	if l.pos >= len(l.input) {
		l.ch = 0
		return
	}
	r, width := utf8.DecodeRuneInString(l.input[l.pos:])
	l.ch = r
	l.pos += width
}

// peekChar looks at the next character without advancing
func (l *Lexer) peekChar() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

// skipWhitespace skips whitespace characters
func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch rune) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentChar(ch rune) bool {
	return isIdentStart(ch) || isDigit(ch)
}

// readNumber reads a decimal literal: digits with at most one '.'
func (l *Lexer) readNumber() string {
	var result strings.Builder
	seenDot := false
	for isDigit(l.ch) || (l.ch == '.' && !seenDot) {
		if l.ch == '.' {
			seenDot = true
		}
		result.WriteRune(l.ch)
		l.readChar()
	}
	return result.String()
}

// readWord reads [A-Za-z_][A-Za-z0-9_]*
func (l *Lexer) readWord() string {
	var result strings.Builder
	for isIdentChar(l.ch) {
		result.WriteRune(l.ch)
		l.readChar()
	}
	return result.String()
}

// readIdentifier reads an identifier, including a "column::qualifier" suffix.
// It returns ok=false when "::" is not followed by a word; the lexer is then
// positioned on the offending character.
func (l *Lexer) readIdentifier() (string, bool) {
	ident := l.readWord()
	if l.ch != ':' {
		return ident, true
	}
	if l.peekChar() != ':' {
		return ident, false
	}
	l.readChar()
	l.readChar()
	if !isIdentStart(l.ch) {
		return ident, false
	}
	return ident + "::" + l.readWord(), true
}

// nextIsLeftParen reports whether the next non-whitespace character is '('
func (l *Lexer) nextIsLeftParen() bool {
	for i := l.start; i < len(l.input); i++ {
		switch l.input[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case '(':
			return true
		default:
			return false
		}
	}
	return false
}

// NextToken returns the next token
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	pos := l.start
	var tok Token

	switch l.ch {
	case 0:
		tok = Token{Type: TokenEOF, Value: ""}
	case '+':
		tok = Token{Type: TokenPlus, Value: "+"}
		l.readChar()
	case '-':
		tok = Token{Type: TokenMinus, Value: "-"}
		l.readChar()
	case '*':
		tok = Token{Type: TokenStar, Value: "*"}
		l.readChar()
	case '/':
		tok = Token{Type: TokenSlash, Value: "/"}
		l.readChar()
	case ',':
		tok = Token{Type: TokenComma, Value: ","}
		l.readChar()
	case '(':
		tok = Token{Type: TokenLeftParen, Value: "("}
		l.readChar()
	case ')':
		tok = Token{Type: TokenRightParen, Value: ")"}
		l.readChar()
	default:
		if isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())) {
			tok = Token{Type: TokenNumber, Value: l.readNumber()}
		} else if isIdentStart(l.ch) {
			value, ok := l.readIdentifier()
			if !ok {
				// point at the character that broke the qualifier
				return Token{Type: TokenError, Value: string(l.ch), Pos: l.start}
			}
			if l.nextIsLeftParen() {
				tok = Token{Type: TokenFunc, Value: value}
			} else {
				tok = Token{Type: TokenIdent, Value: value}
			}
		} else {
			tok = Token{Type: TokenError, Value: string(l.ch)}
			l.readChar()
		}
	}

	tok.Pos = pos
	return tok
}

// Tokenize returns all tokens from the input, ending with TokenEOF.
// An unrecognized character produces a *LexError.
func Tokenize(input string) ([]Token, error) {
	lexer := NewLexer(input)
	var tokens []Token

	for {
		tok := lexer.NextToken()
		if tok.Type == TokenError {
			r, _ := utf8.DecodeRuneInString(tok.Value)
			if tok.Value == "" {
				r = 0
			}
			return nil, &LexError{Char: r, Offset: tok.Pos}
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
		if len(tokens) > MaxTokens {
			return nil, &ParseError{
				Position: tok.Pos,
				Expected: "shorter formula",
				Found:    "too many tokens",
				Err:      ErrTooManyTokens,
			}
		}
	}

	return tokens, nil
}
