package formula

import (
	"fmt"
	"strings"
)

// LexError reports a character the tokenizer does not recognize
type LexError struct {
	Char   rune // 0 when the formula ended unexpectedly
	Offset int  // byte offset into the formula
}

func (e *LexError) Error() string {
	if e.Char == 0 {
		return fmt.Sprintf("lex error: unexpected end of formula at offset %d", e.Offset)
	}
	return fmt.Sprintf("lex error: unrecognized character %q at offset %d", e.Char, e.Offset)
}

// ParseError reports malformed formula grammar
type ParseError struct {
	Position int    // byte offset of the offending token
	Expected string // what the grammar allowed here
	Found    string // what was actually there
	Err      error  // optional underlying limit error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse error at offset %d: expected %s, found %s", e.Position, e.Expected, e.Found)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// ResolutionError reports an identifier that does not name a usable column
type ResolutionError struct {
	Identifier string
	Rule       string // empty when parsing outside a pipeline
	Reason     string
}

func (e *ResolutionError) Error() string {
	var b strings.Builder
	if e.Rule != "" {
		fmt.Fprintf(&b, "rule %q: ", e.Rule)
	}
	fmt.Fprintf(&b, "cannot resolve %q", e.Identifier)
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

// DivisionByZeroError is returned instead of producing infinity or NaN
type DivisionByZeroError struct {
	Location Location
	Expr     string // the division that failed, in canonical form
}

func (e *DivisionByZeroError) Error() string {
	return fmt.Sprintf("%sdivision by zero in %q at %s", rulePrefix(e.Location.Rule), e.Expr, e.Location)
}

// OverflowError is returned when arithmetic leaves the finite float range
type OverflowError struct {
	Location Location
	Expr     string // the operation that overflowed, in canonical form
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("%snumeric overflow in %q at %s: result is not finite", rulePrefix(e.Location.Rule), e.Expr, e.Location)
}

// EmptyAggregateError is returned for MEAN, MIN and MAX over a group with no
// contributing (non-null) values
type EmptyAggregateError struct {
	Location Location
	Func     AggFunc
	Column   string
}

func (e *EmptyAggregateError) Error() string {
	return fmt.Sprintf("%s%s(%s) is undefined over %s: no non-null values",
		rulePrefix(e.Location.Rule), e.Func, e.Column, e.Location)
}

func rulePrefix(rule string) string {
	if rule == "" {
		return ""
	}
	return fmt.Sprintf("rule %q: ", rule)
}
