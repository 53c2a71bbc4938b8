package formula

import (
	"fmt"
	"math"
)

// Context supplies column values to an expression during evaluation. Row
// contexts expose the cells of one row; group contexts expose aggregates
// over the rows of one group.
type Context interface {
	Column(name string) (Scalar, error)
	Aggregate(fn AggFunc, column string) (Scalar, error)
	Location() Location
}

// Evaluate evaluates an expression tree in the given context
func Evaluate(expr Expr, ctx Context) (Scalar, error) {
	return expr.Eval(ctx)
}

// RowContext evaluates scalar formulas against a single row
type RowContext struct {
	Rule  string
	Index int
	Row   Row
}

// Column returns the numeric value of a cell; missing and nil cells are null
func (c *RowContext) Column(name string) (Scalar, error) {
	num, ok, err := valueToNumber(c.Row[name])
	if err != nil {
		return Null, fmt.Errorf("%scolumn %q at %s: %w", rulePrefix(c.Rule), name, c.Location(), err)
	}
	if !ok {
		return Null, nil
	}
	return Number(num), nil
}

// Aggregate is not available per row
func (c *RowContext) Aggregate(fn AggFunc, column string) (Scalar, error) {
	return Null, &ResolutionError{
		Identifier: fmt.Sprintf("%s(%s)", fn, column),
		Rule:       c.Rule,
		Reason:     "aggregate functions cannot be evaluated on individual rows",
	}
}

func (c *RowContext) Location() Location {
	return Location{Rule: c.Rule, Row: c.Index}
}

// GroupContext evaluates aggregate formulas against the rows of one group
type GroupContext struct {
	Rule string
	Key  GroupKey
	Rows []Row
}

// Column rejects bare column references: there is no implicit "first row"
func (c *GroupContext) Column(name string) (Scalar, error) {
	return Null, &ResolutionError{
		Identifier: name,
		Rule:       c.Rule,
		Reason:     "column must be wrapped in an aggregate function when evaluated per group",
	}
}

// Aggregate reduces a column over the group's rows
func (c *GroupContext) Aggregate(fn AggFunc, column string) (Scalar, error) {
	return evaluateAggregate(fn, column, c.Rows, c.Location())
}

func (c *GroupContext) Location() Location {
	key := c.Key
	if key == nil {
		key = GroupKey{}
	}
	return Location{Rule: c.Rule, Row: -1, Key: key}
}

// Eval returns the literal value
func (l *Literal) Eval(ctx Context) (Scalar, error) {
	return Number(l.Value), nil
}

// Eval looks the column up in the context
func (c *ColumnRef) Eval(ctx Context) (Scalar, error) {
	return ctx.Column(c.Name)
}

// Eval computes the aggregate in the context
func (a *Aggregate) Eval(ctx Context) (Scalar, error) {
	return ctx.Aggregate(a.Func, a.Arg.Name)
}

// Eval negates the operand; null stays null
func (u *UnaryMinus) Eval(ctx Context) (Scalar, error) {
	v, err := u.Operand.Eval(ctx)
	if err != nil || !v.Valid {
		return v, err
	}
	return Number(-v.Value), nil
}

// Eval applies the operator. A null operand yields null; a zero divisor or
// a result beyond the float range is an error rather than infinity.
func (b *BinaryOp) Eval(ctx Context) (Scalar, error) {
	left, err := b.Left.Eval(ctx)
	if err != nil {
		return Null, err
	}
	right, err := b.Right.Eval(ctx)
	if err != nil {
		return Null, err
	}
	if !left.Valid || !right.Valid {
		return Null, nil
	}

	var v float64
	switch b.Op {
	case OpAdd:
		v = left.Value + right.Value
	case OpSub:
		v = left.Value - right.Value
	case OpMul:
		v = left.Value * right.Value
	case OpDiv:
		if right.Value == 0 {
			return Null, &DivisionByZeroError{Location: ctx.Location(), Expr: b.String()}
		}
		v = left.Value / right.Value
	default:
		return Null, fmt.Errorf("unsupported operator: %v", b.Op)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return Null, &OverflowError{Location: ctx.Location(), Expr: b.String()}
	}
	return Number(v), nil
}
