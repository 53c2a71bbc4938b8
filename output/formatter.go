package output

import (
	"fmt"
	"io"
	"time"

	"github.com/vegasq/calcrule/pipeline"
)

// Formatter defines the interface for output formatters.
//
// Implementers must provide Format to write rows in the given column order
// and SetOutput to change the output destination.
type Formatter interface {
	// Format writes rows in the formatter's specific format
	Format(columns []string, rows []map[string]interface{}) error

	// SetOutput changes the output writer
	SetOutput(w io.Writer)
}

// New returns the formatter registered under name: "jsonl", "csv" or
// "table"
func New(name string, w io.Writer) (Formatter, error) {
	switch name {
	case "jsonl", "json":
		return NewJSONFormatter(w), nil
	case "csv":
		return NewCSVFormatter(w), nil
	case "table":
		return NewTableFormatter(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (valid: jsonl, csv, table)", name)
	}
}

// GroupRows flattens a group table into rows: one column per group_by
// entry followed by a column named after the rule
func GroupRows(table pipeline.GroupTable) ([]string, []map[string]interface{}) {
	columns := make([]string, 0, len(table.Keys)+1)
	columns = append(columns, table.Keys...)
	columns = append(columns, table.Rule)

	rows := make([]map[string]interface{}, len(table.Entries))
	for i, entry := range table.Entries {
		row := make(map[string]interface{}, len(columns))
		for j, name := range table.Keys {
			if j < len(entry.Key) {
				row[name] = entry.Key[j]
			}
		}
		row[table.Rule] = entry.Value
		rows[i] = row
	}
	return columns, rows
}

// WriteResult writes the row dataset followed by every group table. The
// table formatter titles each section; other formats write them back to
// back.
func WriteResult(f Formatter, w io.Writer, res *pipeline.Result) error {
	if err := f.Format(res.Dataset.Columns, res.Dataset.Rows); err != nil {
		return err
	}
	_, titled := f.(*TableFormatter)
	for _, table := range res.Tables {
		if titled {
			if _, err := fmt.Fprintf(w, "\n%s\n", table.Rule); err != nil {
				return err
			}
		}
		columns, rows := GroupRows(table)
		if err := f.Format(columns, rows); err != nil {
			return fmt.Errorf("rule %q: %w", table.Rule, err)
		}
	}
	return nil
}

// formatValue converts a value to its display text
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(time.DateOnly)
		}
		return val.Format(time.RFC3339)
	case int, int8, int16, int32, int64:
		return fmt.Sprintf("%d", val)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32, float64:
		return fmt.Sprintf("%g", val)
	case bool:
		return fmt.Sprintf("%t", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
