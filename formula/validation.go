package formula

import (
	"errors"
	"fmt"
)

// Validation constants to keep configuration-supplied formulas bounded
const (
	// MaxFormulaLength is the maximum allowed formula string length (64KB)
	MaxFormulaLength = 64 * 1024

	// MaxTokens is the maximum number of tokens in a formula
	MaxTokens = 1000

	// MaxExpressionDepth is the maximum nesting depth for expressions
	MaxExpressionDepth = 100

	// MaxIdentifierLength is the maximum length for a column or rule name
	MaxIdentifierLength = 256
)

var (
	// ErrFormulaTooLong is returned when a formula exceeds MaxFormulaLength
	ErrFormulaTooLong = errors.New("formula too long")

	// ErrTooManyTokens is returned when a formula has too many tokens
	ErrTooManyTokens = errors.New("too many tokens in formula")

	// ErrExpressionTooDeep is returned when expression nesting exceeds limit
	ErrExpressionTooDeep = errors.New("expression nesting too deep")

	// ErrIdentifierTooLong is returned when an identifier is too long
	ErrIdentifierTooLong = errors.New("identifier too long")
)

// ValidateFormula performs length validation on formula input
func ValidateFormula(formula string) error {
	if len(formula) > MaxFormulaLength {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrFormulaTooLong, len(formula), MaxFormulaLength)
	}
	return nil
}

// ValidateIdentifier validates identifier length
func ValidateIdentifier(name string) error {
	if len(name) > MaxIdentifierLength {
		return fmt.Errorf("%w: %d chars (max %d)", ErrIdentifierTooLong, len(name), MaxIdentifierLength)
	}
	return nil
}

// ExpressionDepthCounter tracks expression nesting depth during parsing
type ExpressionDepthCounter struct {
	depth    int
	maxDepth int
}

// NewExpressionDepthCounter creates a new depth counter
func NewExpressionDepthCounter() *ExpressionDepthCounter {
	return &ExpressionDepthCounter{depth: 0, maxDepth: MaxExpressionDepth}
}

// Enter increments depth and returns error if limit exceeded
func (c *ExpressionDepthCounter) Enter() error {
	c.depth++
	if c.depth > c.maxDepth {
		return fmt.Errorf("%w: %d (max %d)", ErrExpressionTooDeep, c.depth, c.maxDepth)
	}
	return nil
}

// Exit decrements depth
func (c *ExpressionDepthCounter) Exit() {
	c.depth--
}
