package formula

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// evaluateAggregate evaluates an aggregate function over a set of rows.
// Null cells are excluded. SUM and COUNT of nothing are 0; MEAN, MIN and MAX
// of nothing are undefined.
func evaluateAggregate(fn AggFunc, column string, rows []Row, loc Location) (Scalar, error) {
	if fn == AggCount {
		return evaluateCount(column, rows), nil
	}

	values, err := collectNumbers(column, rows, loc)
	if err != nil {
		return Null, fmt.Errorf("%s: %w", fn, err)
	}

	switch fn {
	case AggSum:
		return Number(sum(values).InexactFloat64()), nil
	case AggMean:
		if len(values) == 0 {
			return Null, &EmptyAggregateError{Location: loc, Func: fn, Column: column}
		}
		mean := sum(values).Div(decimal.NewFromInt(int64(len(values))))
		return Number(mean.InexactFloat64()), nil
	case AggMin:
		return evaluateExtreme(fn, column, values, loc, func(a, b float64) bool { return a < b })
	case AggMax:
		return evaluateExtreme(fn, column, values, loc, func(a, b float64) bool { return a > b })
	default:
		return Null, fmt.Errorf("unknown aggregate function: %s", fn)
	}
}

// evaluateCount counts non-null values of any type
func evaluateCount(column string, rows []Row) Scalar {
	count := 0
	for _, row := range rows {
		if v, exists := row[column]; exists && !isNull(v) {
			count++
		}
	}
	return Number(float64(count))
}

// collectNumbers returns the non-null numeric values of a column
func collectNumbers(column string, rows []Row, loc Location) ([]float64, error) {
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		num, ok, err := valueToNumber(row[column])
		if err != nil {
			return nil, fmt.Errorf("column %q in %s: %w", column, loc, err)
		}
		if ok {
			values = append(values, num)
		}
	}
	return values, nil
}

// sum accumulates in decimal so long runs of currency amounts do not drift
func sum(values []float64) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total
}

// evaluateExtreme implements MIN and MAX
func evaluateExtreme(fn AggFunc, column string, values []float64, loc Location, better func(a, b float64) bool) (Scalar, error) {
	if len(values) == 0 {
		return Null, &EmptyAggregateError{Location: loc, Func: fn, Column: column}
	}
	best := values[0]
	for _, v := range values[1:] {
		if better(v, best) {
			best = v
		}
	}
	return Number(best), nil
}
