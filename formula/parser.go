package formula

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vegasq/calcrule/schema"
)

// Columns resolves identifiers to declared column types. *schema.Schema
// satisfies it.
type Columns interface {
	Lookup(name string) (schema.ColumnType, bool)
}

// ColumnMap is a Columns backed by a plain map
type ColumnMap map[string]schema.ColumnType

// Lookup returns the type registered for name
func (m ColumnMap) Lookup(name string) (schema.ColumnType, bool) {
	t, ok := m[name]
	return t, ok
}

// Parser parses formula tokens into an expression tree
type Parser struct {
	tokens       []Token
	pos          int
	depthCounter *ExpressionDepthCounter
	columns      Columns
}

// NewParser creates a new parser. When columns is nil identifiers are not
// resolved.
func NewParser(tokens []Token, columns Columns) *Parser {
	return &Parser{
		tokens:       tokens,
		pos:          0,
		depthCounter: NewExpressionDepthCounter(),
		columns:      columns,
	}
}

// current returns the current token
func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		end := 0
		if len(p.tokens) > 0 {
			end = p.tokens[len(p.tokens)-1].Pos
		}
		return Token{Type: TokenEOF, Value: "", Pos: end}
	}
	return p.tokens[p.pos]
}

// advance moves to the next token
func (p *Parser) advance() {
	p.pos++
}

// errorf builds a ParseError at the current token
func (p *Parser) errorf(expected string, args ...interface{}) *ParseError {
	tok := p.current()
	return &ParseError{
		Position: tok.Pos,
		Expected: fmt.Sprintf(expected, args...),
		Found:    tok.describe(),
	}
}

// expect checks if current token matches expected type and advances
func (p *Parser) expect(tokType TokenType) error {
	if p.current().Type != tokType {
		return p.errorf("%s", tokType)
	}
	p.advance()
	return nil
}

// enter wraps the depth counter so limit violations surface as ParseErrors
func (p *Parser) enter() error {
	if err := p.depthCounter.Enter(); err != nil {
		pe := p.errorf("shallower nesting")
		pe.Err = err
		return pe
	}
	return nil
}

// Parse parses a formula into an expression tree, resolving every
// identifier against columns. Pass a nil Columns to skip resolution.
func Parse(formula string, columns Columns) (Expr, error) {
	if err := ValidateFormula(formula); err != nil {
		return nil, &ParseError{Position: 0, Expected: "formula", Found: "oversized input", Err: err}
	}

	tokens, err := Tokenize(formula)
	if err != nil {
		return nil, err
	}

	parser := NewParser(tokens, columns)
	if parser.current().Type == TokenEOF {
		return nil, parser.errorf("expression")
	}

	expr, err := parser.parseExpr()
	if err != nil {
		return nil, err
	}

	// Validate that we consumed all tokens (should be at EOF)
	if parser.current().Type != TokenEOF {
		return nil, parser.errorf("operator or end of formula")
	}

	return expr, nil
}

// MustParse is like Parse without resolution but panics on error.
// Intended for tests and static formulas.
func MustParse(formula string) Expr {
	expr, err := Parse(formula, nil)
	if err != nil {
		panic(err)
	}
	return expr
}

// parseExpr parses additive expressions (lowest precedence)
func (p *Parser) parseExpr() (Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.depthCounter.Exit()

	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenPlus || p.current().Type == TokenMinus {
		op := OpAdd
		if p.current().Type == TokenMinus {
			op = OpSub
		}
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right}
	}

	return left, nil
}

// parseTerm parses multiplicative expressions (higher precedence than + and -)
func (p *Parser) parseTerm() (Expr, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenStar || p.current().Type == TokenSlash {
		op := OpMul
		if p.current().Type == TokenSlash {
			op = OpDiv
		}
		p.advance()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right}
	}

	return left, nil
}

// parseFactor parses unary minus, parenthesized expressions, literals,
// column references and aggregate calls
func (p *Parser) parseFactor() (Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.depthCounter.Exit()

	tok := p.current()
	switch tok.Type {
	case TokenMinus:
		p.advance()
		operand, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &UnaryMinus{Operand: operand}, nil

	case TokenLeftParen:
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRightParen); err != nil {
			return nil, err
		}
		return expr, nil

	case TokenNumber:
		value, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, &ParseError{Position: tok.Pos, Expected: "number", Found: fmt.Sprintf("%q", tok.Value), Err: err}
		}
		p.advance()
		return &Literal{Value: value}, nil

	case TokenIdent:
		if err := p.resolve(tok, true); err != nil {
			return nil, err
		}
		p.advance()
		return &ColumnRef{Name: tok.Value}, nil

	case TokenFunc:
		return p.parseAggregate()

	default:
		return nil, p.errorf("number, column, function call, '-' or '('")
	}
}

// parseAggregate parses NAME '(' column ')'
func (p *Parser) parseAggregate() (Expr, error) {
	name := p.current()
	fn, ok := isAggregateFunction(name.Value)
	if !ok {
		return nil, p.errorf("aggregate function (SUM, MEAN, COUNT, MIN, MAX)")
	}
	p.advance()

	if err := p.expect(TokenLeftParen); err != nil {
		return nil, err
	}

	arg := p.current()
	if arg.Type != TokenIdent {
		// also rejects nested aggregates such as SUM(MAX(x))
		return nil, p.errorf("column name as %s argument", fn)
	}
	p.advance()

	if p.current().Type != TokenRightParen {
		return nil, p.errorf("')' closing %s (aggregates take exactly one column)", fn)
	}

	// COUNT works on any column type; the others need numbers
	if err := p.resolve(arg, fn != AggCount); err != nil {
		return nil, err
	}
	p.advance()

	return &Aggregate{Func: fn, Arg: &ColumnRef{Name: arg.Value}}, nil
}

// resolve checks that an identifier names a known column of a usable type
func (p *Parser) resolve(tok Token, numeric bool) error {
	if err := ValidateIdentifier(tok.Value); err != nil {
		return &ParseError{Position: tok.Pos, Expected: "identifier", Found: "oversized identifier", Err: err}
	}

	if strings.Contains(tok.Value, "::") {
		return &ResolutionError{
			Identifier: tok.Value,
			Reason:     "period qualifiers are only valid in group_by keys",
		}
	}

	if p.columns == nil {
		return nil
	}

	typ, ok := p.columns.Lookup(tok.Value)
	if !ok {
		return &ResolutionError{Identifier: tok.Value, Reason: "unknown column"}
	}
	if numeric && !typ.Numeric() {
		return &ResolutionError{
			Identifier: tok.Value,
			Reason:     fmt.Sprintf("column has type %s, arithmetic needs int or float", typ),
		}
	}

	return nil
}
