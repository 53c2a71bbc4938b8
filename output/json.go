package output

import (
	"encoding/json"
	"io"
	"time"
)

// JSONFormatter outputs rows as JSON Lines format
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a new JSON Lines formatter
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// SetOutput sets the output writer
func (j *JSONFormatter) SetOutput(w io.Writer) {
	j.writer = w
}

// Format writes rows as JSON Lines (one JSON object per line). Only the
// given columns are written; datetimes use the same text as the other
// formats.
func (j *JSONFormatter) Format(columns []string, rows []map[string]interface{}) error {
	encoder := json.NewEncoder(j.writer)
	for _, row := range rows {
		out := make(map[string]interface{}, len(columns))
		for _, col := range columns {
			v := row[col]
			if t, ok := v.(time.Time); ok {
				v = formatValue(t)
			}
			out[col] = v
		}
		if err := encoder.Encode(out); err != nil {
			return err
		}
	}
	return nil
}
