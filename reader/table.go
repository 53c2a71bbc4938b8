package reader

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Table is raw tabular data as read from a file
type Table struct {
	Columns []string
	Rows    []map[string]interface{}
}

// addColumns appends the names not yet present, keeping their order
func (t *Table) addColumns(names []string) {
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		seen[c] = true
	}
	for _, c := range names {
		if !seen[c] {
			seen[c] = true
			t.Columns = append(t.Columns, c)
		}
	}
}

// Format identifies a supported input file format
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// DetectFormat infers the format from a file extension
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		return FormatCSV, nil
	case ".parquet", ".pq":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("cannot infer format of %q, expected .csv or .parquet", path)
	}
}

// ReadFile reads a CSV or parquet file. An empty format is inferred from
// the file extension.
func ReadFile(path string, format Format, opts CSVOptions) (*Table, error) {
	if format == "" {
		f, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = f
	}

	switch format {
	case FormatCSV:
		return ReadCSVFile(path, opts)
	case FormatParquet:
		return ReadParquet(path)
	default:
		return nil, fmt.Errorf("unsupported format: %q", format)
	}
}
