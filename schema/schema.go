// Package schema describes the input columns a team's dataset must provide.
//
// A Schema is built once from configuration and then only read: the formula
// parser resolves identifiers against it, and the reader coerces raw cells
// to the declared types before the pipeline runs.
package schema

import (
	"errors"
	"fmt"
)

// ColumnType is the declared semantic type of a column.
type ColumnType string

const (
	TypeDatetime ColumnType = "datetime"
	TypeInt      ColumnType = "int"
	TypeFloat    ColumnType = "float"
	TypeString   ColumnType = "string"
	TypeBool     ColumnType = "bool"
)

var (
	// ErrEmptySchema is returned when a schema declares no columns
	ErrEmptySchema = errors.New("schema must declare at least one column")

	// ErrDuplicateColumn is returned when two columns share a name
	ErrDuplicateColumn = errors.New("duplicate column name")

	// ErrUnknownType is returned for a type outside the supported set
	ErrUnknownType = errors.New("unsupported column type")
)

// ParseType converts a configuration type name to a ColumnType.
func ParseType(s string) (ColumnType, error) {
	switch t := ColumnType(s); t {
	case TypeDatetime, TypeInt, TypeFloat, TypeString, TypeBool:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q (valid: datetime, int, float, string, bool)", ErrUnknownType, s)
	}
}

// Numeric reports whether values of this type can take part in arithmetic.
func (t ColumnType) Numeric() bool {
	return t == TypeInt || t == TypeFloat
}

// Column describes a single input column.
type Column struct {
	Name        string      `json:"name"`
	Type        ColumnType  `json:"type"`
	Required    bool        `json:"required"`
	Format      string      `json:"format,omitempty"`  // strftime or Go layout for datetime columns
	Default     interface{} `json:"default,omitempty"` // Substituted for missing cells
	Description string      `json:"description,omitempty"`
}

// Schema is an ordered, immutable set of column declarations.
type Schema struct {
	columns []Column
	index   map[string]int
}

// New validates the column list and builds a Schema.
func New(columns []Column) (*Schema, error) {
	if len(columns) == 0 {
		return nil, ErrEmptySchema
	}

	s := &Schema{
		columns: make([]Column, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		if col.Name == "" {
			return nil, fmt.Errorf("column %d: name is required", i+1)
		}
		if _, err := ParseType(string(col.Type)); err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		if _, dup := s.index[col.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, col.Name)
		}
		s.columns[i] = col
		s.index[col.Name] = i
	}

	return s, nil
}

// MustNew is like New but panics on error. Intended for tests and fixtures.
func MustNew(columns []Column) *Schema {
	s, err := New(columns)
	if err != nil {
		panic(err)
	}
	return s
}

// Lookup returns the declared type of a column.
func (s *Schema) Lookup(name string) (ColumnType, bool) {
	i, ok := s.index[name]
	if !ok {
		return "", false
	}
	return s.columns[i].Type, true
}

// Column returns the full declaration of a column.
func (s *Schema) Column(name string) (Column, bool) {
	i, ok := s.index[name]
	if !ok {
		return Column{}, false
	}
	return s.columns[i], true
}

// Columns returns a copy of the column declarations in declared order.
func (s *Schema) Columns() []Column {
	out := make([]Column, len(s.columns))
	copy(out, s.columns)
	return out
}

// Names returns the column names in declared order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.columns))
	for i, col := range s.columns {
		names[i] = col.Name
	}
	return names
}

// Required returns the columns that must be present and non-null.
func (s *Schema) Required() []Column {
	var out []Column
	for _, col := range s.columns {
		if col.Required {
			out = append(out, col)
		}
	}
	return out
}
