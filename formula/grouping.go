package formula

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vegasq/calcrule/schema"
)

// KeySpec is one resolved group_by entry: a raw column, or a datetime column
// truncated to a Period
type KeySpec struct {
	Column string
	Period *Period // nil for raw column keys
}

// String renders the key in configuration syntax
func (k KeySpec) String() string {
	if k.Period == nil {
		return k.Column
	}
	return k.Column + "::" + k.Period.Name
}

// ParseKey parses a group_by entry such as "rep" or "date::month"
func ParseKey(s string) (KeySpec, error) {
	tokens, err := Tokenize(s)
	if err != nil {
		return KeySpec{}, err
	}
	if tokens[0].Type != TokenIdent {
		return KeySpec{}, &ParseError{Position: tokens[0].Pos, Expected: "column name or column::period", Found: tokens[0].describe()}
	}
	if tokens[1].Type != TokenEOF {
		return KeySpec{}, &ParseError{Position: tokens[1].Pos, Expected: "end of group key", Found: tokens[1].describe()}
	}

	column, qualifier, qualified := strings.Cut(tokens[0].Value, "::")
	if err := ValidateIdentifier(column); err != nil {
		return KeySpec{}, &ParseError{Position: 0, Expected: "identifier", Found: "oversized identifier", Err: err}
	}
	if !qualified {
		return KeySpec{Column: column}, nil
	}

	period, ok := LookupPeriod(qualifier)
	if !ok {
		return KeySpec{}, &ParseError{
			Position: len(column) + 2,
			Expected: "period (" + strings.Join(PeriodNames(), ", ") + ")",
			Found:    strconv.Quote(qualifier),
		}
	}
	return KeySpec{Column: column, Period: period}, nil
}

// ResolveKeys parses group_by entries and checks them against the columns.
// Derived periods are only allowed on datetime columns.
func ResolveKeys(specs []string, columns Columns) ([]KeySpec, error) {
	keys := make([]KeySpec, 0, len(specs))
	for _, s := range specs {
		key, err := ParseKey(s)
		if err != nil {
			return nil, err
		}
		if columns != nil {
			typ, ok := columns.Lookup(key.Column)
			if !ok {
				return nil, &ResolutionError{Identifier: s, Reason: "unknown group_by column"}
			}
			if key.Period != nil && typ != schema.TypeDatetime {
				return nil, &ResolutionError{
					Identifier: s,
					Reason:     fmt.Sprintf("period keys need a datetime column, %q has type %s", key.Column, typ),
				}
			}
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Resolve computes the key value for a row. ok is false when the cell is
// null or missing.
func (k KeySpec) Resolve(row Row) (value interface{}, ok bool, err error) {
	raw, exists := row[k.Column]
	if !exists || isNull(raw) {
		return nil, false, nil
	}
	if k.Period == nil {
		return raw, true, nil
	}

	t, ok, err := valueToTime(raw)
	if err != nil || !ok {
		return nil, false, err
	}
	return k.Period.Value(t), true, nil
}

// GroupKey is the tuple of resolved key values identifying a group
type GroupKey []interface{}

// String renders the key for messages, e.g. "2024-01, alice"
func (k GroupKey) String() string {
	if len(k) == 0 {
		return "(all rows)"
	}
	parts := make([]string, len(k))
	for i, v := range k {
		parts[i] = formatKeyValue(v)
	}
	return strings.Join(parts, ", ")
}

func formatKeyValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// hash builds a map key that keeps differently typed values apart
func (k GroupKey) hash() string {
	var b strings.Builder
	for i, v := range k {
		if i > 0 {
			b.WriteString("\x00||\x00") // unlikely separator to avoid collisions
		}
		fmt.Fprintf(&b, "%T\x00:\x00%s", v, formatKeyValue(v))
	}
	return b.String()
}

// Location identifies where an evaluation happened, for error reporting
type Location struct {
	Rule string
	Row  int      // row index, -1 when evaluating a group
	Key  GroupKey // group key, nil when evaluating a row
}

func (l Location) String() string {
	if l.Row < 0 {
		return "group " + l.Key.String()
	}
	return fmt.Sprintf("row %d", l.Row)
}

// Group is the rows sharing one key
type Group struct {
	Key  GroupKey
	Rows []Row
}

// Partitioning is the result of splitting a dataset by group keys
type Partitioning struct {
	Groups  []Group // in first-seen order
	Skipped int     // rows excluded because a key value was null
}

// Partition splits rows into groups keyed by the tuple of key values,
// preserving the order in which distinct keys first appear. Rows with a null
// key value are counted in Skipped and belong to no group. With no keys the
// whole dataset forms a single group with an empty key.
func Partition(rows []Row, keys []KeySpec) (*Partitioning, error) {
	if len(keys) == 0 {
		return &Partitioning{Groups: []Group{{Key: GroupKey{}, Rows: rows}}}, nil
	}

	result := &Partitioning{}
	index := make(map[string]int)

	for i, row := range rows {
		key := make(GroupKey, 0, len(keys))
		skip := false
		for _, spec := range keys {
			value, ok, err := spec.Resolve(row)
			if err != nil {
				return nil, fmt.Errorf("group key %s at row %d: %w", spec, i, err)
			}
			if !ok {
				skip = true
				break
			}
			key = append(key, value)
		}
		if skip {
			result.Skipped++
			continue
		}

		h := key.hash()
		if gi, exists := index[h]; exists {
			result.Groups[gi].Rows = append(result.Groups[gi].Rows, row)
			continue
		}
		index[h] = len(result.Groups)
		result.Groups = append(result.Groups, Group{Key: key, Rows: []Row{row}})
	}

	return result, nil
}
