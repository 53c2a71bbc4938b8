package reader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// FileColumn is the column added to rows read from several files
const FileColumn = "_file"

// maxFiles bounds how many files a glob pattern may expand to
const maxFiles = 1000

// Reader reads parquet files and returns rows as maps.
//
// It keeps both the OS file handle and the parquet file handle so Close can
// release them.
type Reader struct {
	path   string
	file   *os.File
	pqFile *parquet.File
}

// NewReader opens a parquet file.
//
// Example:
//
//	r, err := reader.NewReader("data/sales_b.parquet")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pqFile, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to open parquet file %s: %w", path, err)
	}

	return &Reader{
		path:   path,
		file:   file,
		pqFile: pqFile,
	}, nil
}

// ReadAll reads every row into memory. Each row maps column names to
// values; optional columns without a value map to nil.
func (r *Reader) ReadAll() ([]map[string]interface{}, error) {
	rows := make([]map[string]interface{}, 0, r.pqFile.NumRows())

	reader := parquet.NewReader(r.pqFile)
	defer func() { _ = reader.Close() }()

	for {
		row := make(map[string]interface{})
		err := reader.Read(&row)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read row %d of %s: %w", len(rows), r.path, err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// Columns returns the top-level column names in file order
func (r *Reader) Columns() []string {
	fields := r.pqFile.Schema().Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name()
	}
	return names
}

// Schema returns the parquet schema of the file
func (r *Reader) Schema() *parquet.Schema {
	return r.pqFile.Schema()
}

// Close releases the file. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// ReadParquet reads one parquet file, or every file matching a glob
// pattern. Rows from a glob are tagged with the FileColumn holding their
// source path; a single file is returned unchanged.
func ReadParquet(pattern string) (*Table, error) {
	if !strings.ContainsAny(pattern, "*?[]") {
		return readParquetFile(pattern)
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no files match pattern: %s", pattern)
	}
	if len(matches) > maxFiles {
		return nil, fmt.Errorf("glob pattern matched too many files (%d), maximum is %d", len(matches), maxFiles)
	}

	var table *Table
	for _, path := range matches {
		t, err := readParquetFile(path)
		if err != nil {
			return nil, err
		}
		for _, row := range t.Rows {
			row[FileColumn] = path
		}
		if table == nil {
			table = &Table{Columns: append(t.Columns, FileColumn)}
		} else {
			table.addColumns(t.Columns)
		}
		table.Rows = append(table.Rows, t.Rows...)
	}

	return table, nil
}

func readParquetFile(path string) (*Table, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}

	rows, readErr := r.ReadAll()
	columns := r.Columns()
	closeErr := r.Close()

	if readErr != nil {
		return nil, readErr
	}
	if closeErr != nil {
		return nil, fmt.Errorf("failed to close %s: %w", path, closeErr)
	}
	return &Table{Columns: columns, Rows: rows}, nil
}
