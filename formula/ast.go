package formula

import (
	"fmt"
	"strconv"
	"strings"
)

// Expr is a node of a parsed formula. Trees are immutable after Parse
// returns and may be evaluated concurrently.
type Expr interface {
	// Eval evaluates the node against a row or a group
	Eval(ctx Context) (Scalar, error)

	// String renders the node as a canonical formula
	String() string

	precedence() int
}

// Operator is a binary arithmetic operator
type Operator byte

const (
	OpAdd Operator = '+'
	OpSub Operator = '-'
	OpMul Operator = '*'
	OpDiv Operator = '/'
)

func (o Operator) String() string { return string(o) }

// AggFunc names one of the closed set of aggregate functions
type AggFunc string

const (
	AggSum   AggFunc = "SUM"
	AggMean  AggFunc = "MEAN"
	AggCount AggFunc = "COUNT"
	AggMin   AggFunc = "MIN"
	AggMax   AggFunc = "MAX"
)

// isAggregateFunction reports whether name (any case) is a supported aggregate
func isAggregateFunction(name string) (AggFunc, bool) {
	switch fn := AggFunc(strings.ToUpper(name)); fn {
	case AggSum, AggMean, AggCount, AggMin, AggMax:
		return fn, true
	default:
		return "", false
	}
}

const (
	precAdditive = iota + 1
	precMultiplicative
	precUnary
	precAtom
)

// Literal is a numeric constant
type Literal struct {
	Value float64
}

// ColumnRef references an input column or the output of an earlier rule
type ColumnRef struct {
	Name string
}

// BinaryOp applies an arithmetic operator to two operands
type BinaryOp struct {
	Op    Operator
	Left  Expr
	Right Expr
}

// UnaryMinus negates its operand
type UnaryMinus struct {
	Operand Expr
}

// Aggregate reduces one column over the rows of a group
type Aggregate struct {
	Func AggFunc
	Arg  *ColumnRef
}

func (l *Literal) precedence() int    { return precAtom }
func (c *ColumnRef) precedence() int  { return precAtom }
func (a *Aggregate) precedence() int  { return precAtom }
func (u *UnaryMinus) precedence() int { return precUnary }

func (b *BinaryOp) precedence() int {
	if b.Op == OpMul || b.Op == OpDiv {
		return precMultiplicative
	}
	return precAdditive
}

func (l *Literal) String() string {
	return strconv.FormatFloat(l.Value, 'f', -1, 64)
}

func (c *ColumnRef) String() string { return c.Name }

func (a *Aggregate) String() string {
	return fmt.Sprintf("%s(%s)", a.Func, a.Arg.Name)
}

func (u *UnaryMinus) String() string {
	if u.Operand.precedence() < precUnary {
		return "-(" + u.Operand.String() + ")"
	}
	return "-" + u.Operand.String()
}

// String parenthesizes only where precedence or left associativity requires it
func (b *BinaryOp) String() string {
	p := b.precedence()

	left := b.Left.String()
	if b.Left.precedence() < p {
		left = "(" + left + ")"
	}
	right := b.Right.String()
	if b.Right.precedence() <= p {
		right = "(" + right + ")"
	}

	return left + " " + b.Op.String() + " " + right
}

// Walk visits expr and its children depth-first. Returning false from fn
// skips the children of the current node.
func Walk(expr Expr, fn func(Expr) bool) {
	if expr == nil || !fn(expr) {
		return
	}
	switch e := expr.(type) {
	case *BinaryOp:
		Walk(e.Left, fn)
		Walk(e.Right, fn)
	case *UnaryMinus:
		Walk(e.Operand, fn)
	case *Aggregate:
		Walk(e.Arg, fn)
	}
}

// HasAggregate reports whether the expression contains an aggregate call
func HasAggregate(expr Expr) bool {
	found := false
	Walk(expr, func(e Expr) bool {
		if _, ok := e.(*Aggregate); ok {
			found = true
		}
		return !found
	})
	return found
}

// ColumnRefs returns the distinct column names referenced by the expression,
// including aggregate arguments, in first-seen order
func ColumnRefs(expr Expr) []string {
	var names []string
	seen := make(map[string]bool)
	Walk(expr, func(e Expr) bool {
		if ref, ok := e.(*ColumnRef); ok && !seen[ref.Name] {
			seen[ref.Name] = true
			names = append(names, ref.Name)
		}
		return true
	})
	return names
}

// CheckGroupContext verifies that every column reference sits inside an
// aggregate call, which is required when the formula is evaluated per group.
func CheckGroupContext(expr Expr) error {
	var bare *ColumnRef
	Walk(expr, func(e Expr) bool {
		switch n := e.(type) {
		case *Aggregate:
			return false
		case *ColumnRef:
			if bare == nil {
				bare = n
			}
		}
		return bare == nil
	})
	if bare != nil {
		return &ResolutionError{
			Identifier: bare.Name,
			Reason:     "column must be wrapped in an aggregate function (SUM, MEAN, COUNT, MIN, MAX) when evaluated per group",
		}
	}
	return nil
}
