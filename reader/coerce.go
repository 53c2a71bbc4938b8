package reader

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"

	"github.com/vegasq/calcrule/schema"
)

// maxReportedIssues bounds the issues listed in a ValidationError message
const maxReportedIssues = 10

// Issue is one problem found while coercing a table
type Issue struct {
	Row     int // 0-based data row, -1 for problems with a whole column
	Column  string
	Message string
}

func (i Issue) String() string {
	if i.Row < 0 {
		return fmt.Sprintf("column %q: %s", i.Column, i.Message)
	}
	return fmt.Sprintf("row %d, column %q: %s", i.Row, i.Column, i.Message)
}

// ValidationError lists every problem found in a table
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "data validation failed with %d issue(s)", len(e.Issues))
	for i, issue := range e.Issues {
		if i == maxReportedIssues {
			fmt.Fprintf(&b, "; and %d more", len(e.Issues)-maxReportedIssues)
			break
		}
		b.WriteString("; ")
		b.WriteString(issue.String())
	}
	return b.String()
}

// Coerce converts a raw table to the declared column types. Missing cells
// take the column default when there is one. Required columns must be
// present and non-empty. Cells become int64, float64, bool, string or
// time.Time; missing values become nil. Columns the schema does not
// declare are passed through unchanged after the declared ones.
//
// All problems are collected into a single *ValidationError.
func Coerce(t *Table, sch *schema.Schema) (*Table, error) {
	cols := sch.Columns()
	present := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		present[c] = true
	}

	var issues []Issue
	converters := make([]converter, len(cols))
	for i, col := range cols {
		conv, err := newConverter(col)
		if err != nil {
			issues = append(issues, Issue{Row: -1, Column: col.Name, Message: err.Error()})
		}
		converters[i] = conv

		if col.Required && !present[col.Name] && col.Default == nil {
			issues = append(issues, Issue{Row: -1, Column: col.Name, Message: "required column is missing"})
		}
	}
	if len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}

	out := &Table{
		Columns: sch.Names(),
		Rows:    make([]map[string]interface{}, len(t.Rows)),
	}
	declared := make(map[string]bool, len(cols))
	for _, col := range cols {
		declared[col.Name] = true
	}
	for _, c := range t.Columns {
		if !declared[c] {
			out.Columns = append(out.Columns, c)
		}
	}

	for r, raw := range t.Rows {
		row := make(map[string]interface{}, len(out.Columns))
		for i, col := range cols {
			v := raw[col.Name]
			if isEmpty(v) && col.Default != nil {
				v = col.Default
			}
			if isEmpty(v) {
				if col.Required {
					issues = append(issues, Issue{Row: r, Column: col.Name, Message: "required value is empty"})
				}
				row[col.Name] = nil
				continue
			}

			converted, err := converters[i](v)
			if err != nil {
				issues = append(issues, Issue{Row: r, Column: col.Name, Message: err.Error()})
				continue
			}
			row[col.Name] = converted
		}
		for k, v := range raw {
			if !declared[k] {
				row[k] = v
			}
		}
		out.Rows[r] = row
	}

	if len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}
	return out, nil
}

func isEmpty(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case float64:
		return math.IsNaN(val)
	case float32:
		return math.IsNaN(float64(val))
	}
	return false
}

type converter func(interface{}) (interface{}, error)

func newConverter(col schema.Column) (converter, error) {
	switch col.Type {
	case schema.TypeInt:
		return toInt, nil
	case schema.TypeFloat:
		return toFloat, nil
	case schema.TypeBool:
		return toBool, nil
	case schema.TypeString:
		return toString, nil
	case schema.TypeDatetime:
		layout, err := Layout(col.Format)
		if err != nil {
			return nil, err
		}
		return func(v interface{}) (interface{}, error) { return toTime(v, layout) }, nil
	default:
		return nil, fmt.Errorf("unsupported column type %q", col.Type)
	}
}

func toInt(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int64:
		return val, nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("value %d overflows int", val)
		}
		return int64(val), nil
	case float32:
		return integral(float64(val))
	case float64:
		return integral(val)
	case string:
		s := strings.TrimSpace(val)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to int", val)
		}
		return integral(f)
	default:
		return nil, fmt.Errorf("cannot convert %T to int", v)
	}
}

func integral(f float64) (interface{}, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > 1<<53 {
		return nil, fmt.Errorf("value %v is not an integer", f)
	}
	return int64(f), nil
}

func toFloat(v interface{}) (interface{}, error) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int32:
		f = float64(val)
	case int64:
		f = float64(val)
	case decimal.Decimal:
		f = val.InexactFloat64()
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to float", val)
		}
		f = d.InexactFloat64()
	default:
		return nil, fmt.Errorf("cannot convert %T to float", v)
	}
	if math.IsInf(f, 0) {
		return nil, fmt.Errorf("value %v is not finite", f)
	}
	return f, nil
}

func toBool(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case int64:
		if val == 0 || val == 1 {
			return val == 1, nil
		}
	case int:
		if val == 0 || val == 1 {
			return val == 1, nil
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return nil, fmt.Errorf("cannot convert %q to bool", val)
	}
	return nil, fmt.Errorf("cannot convert %v (%T) to bool", v, v)
}

func toString(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case fmt.Stringer:
		return val.String(), nil
	default:
		return fmt.Sprint(val), nil
	}
}

func toTime(v interface{}, layout string) (interface{}, error) {
	switch val := v.(type) {
	case time.Time:
		return val, nil
	case string:
		s := strings.TrimSpace(val)
		if layout != "" {
			t, err := time.Parse(layout, s)
			if err != nil {
				return nil, fmt.Errorf("cannot parse %q with layout %q", val, layout)
			}
			return t, nil
		}
		t, err := dateparse.ParseAny(s)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as datetime", val)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to datetime", v)
	}
}
