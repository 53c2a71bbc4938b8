package reader

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVOptions controls how CSV input is split into columns
type CSVOptions struct {
	// NoHeader means the first record is data. Columns are then named
	// from Columns, or column_1, column_2, ... when Columns is short.
	NoHeader bool
	Columns  []string

	// Delimiter separates fields, default ','
	Delimiter rune

	// Encoding must be empty or utf-8
	Encoding string
}

// ReadCSVFile opens path and reads it with ReadCSV
func ReadCSVFile(path string, opts CSVOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	t, err := ReadCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ReadCSV reads CSV records into rows of strings. Empty cells become nil so
// they are treated as missing values downstream.
func ReadCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	switch strings.ToLower(strings.ReplaceAll(opts.Encoding, "-", "")) {
	case "", "utf8":
	default:
		return nil, fmt.Errorf("unsupported encoding %q, only utf-8 is supported", opts.Encoding)
	}

	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}

	table := &Table{}
	line := 0
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		line++

		if line == 1 && !opts.NoHeader {
			header, err := headerColumns(record)
			if err != nil {
				return nil, err
			}
			table.Columns = header
			continue
		}
		if table.Columns == nil {
			table.Columns = positionalColumns(len(record), opts.Columns)
		}
		if len(record) > len(table.Columns) {
			return nil, fmt.Errorf("line %d: %d fields, header has %d", line, len(record), len(table.Columns))
		}
		if !utf8.ValidString(strings.Join(record, "")) {
			return nil, fmt.Errorf("line %d: invalid UTF-8", line)
		}

		row := make(map[string]interface{}, len(table.Columns))
		for i, name := range table.Columns {
			if i >= len(record) || strings.TrimSpace(record[i]) == "" {
				row[name] = nil
				continue
			}
			row[name] = record[i]
		}
		table.Rows = append(table.Rows, row)
	}

	if table.Columns == nil {
		return nil, fmt.Errorf("CSV input is empty")
	}
	return table, nil
}

func headerColumns(record []string) ([]string, error) {
	columns := make([]string, len(record))
	seen := make(map[string]bool, len(record))
	for i, name := range record {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("header column %d is empty", i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate header column %q", name)
		}
		seen[name] = true
		columns[i] = name
	}
	return columns, nil
}

func positionalColumns(n int, names []string) []string {
	if len(names) > n {
		n = len(names)
	}
	columns := make([]string, n)
	for i := range columns {
		if i < len(names) {
			columns[i] = names[i]
		} else {
			columns[i] = fmt.Sprintf("column_%d", i+1)
		}
	}
	return columns
}
