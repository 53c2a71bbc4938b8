package pipeline

import (
	"maps"
	"slices"

	"github.com/vegasq/calcrule/formula"
)

// Dataset is a table of rows already validated against the schema.
// Columns gives the presentation order of the keys present in Rows.
type Dataset struct {
	Columns []string
	Rows    []map[string]interface{}
}

// clone copies the column list and every row so rules can append cells
// without touching the caller's data
func (d Dataset) clone() Dataset {
	rows := make([]map[string]interface{}, len(d.Rows))
	for i, row := range d.Rows {
		rows[i] = maps.Clone(row)
		if rows[i] == nil {
			rows[i] = make(map[string]interface{})
		}
	}
	return Dataset{Columns: slices.Clone(d.Columns), Rows: rows}
}

// Column returns the values of one column in row order
func (d Dataset) Column(name string) []interface{} {
	values := make([]interface{}, len(d.Rows))
	for i, row := range d.Rows {
		values[i] = row[name]
	}
	return values
}

// Rule is a named formula from team configuration. Rules without GroupBy
// and without aggregates add a column; the others produce a GroupTable.
// An aggregate formula without GroupBy is evaluated over one grand-total
// group whose key is empty and renders as "(all rows)".
type Rule struct {
	Name        string
	Formula     string
	Description string
	GroupBy     []string
}

// Grouped reports whether the rule is declared per group
func (r Rule) Grouped() bool {
	return len(r.GroupBy) > 0
}

// GroupEntry is the value computed for one group
type GroupEntry struct {
	Key   formula.GroupKey
	Value interface{} // float64, or nil when the formula evaluated to null
}

// GroupTable holds the output of one aggregate rule, in group discovery order
type GroupTable struct {
	Rule    string
	Keys    []string // group_by entries as configured
	Entries []GroupEntry
	Skipped int // rows left out because a key value was null
}

// Find returns the entry whose rendered key equals key, e.g. "2024-01" or
// "2024-01, alice"
func (t *GroupTable) Find(key string) (GroupEntry, bool) {
	for _, e := range t.Entries {
		if e.Key.String() == key {
			return e, true
		}
	}
	return GroupEntry{}, false
}

// Result is the output of a pipeline run. On failure it still carries
// everything produced by the rules that completed.
type Result struct {
	RunID       string
	Dataset     Dataset
	Tables      []GroupTable
	SkippedRows int // Skipped summed over Tables; a row left out by two rules counts twice
}

// Table returns the group table produced by the named rule
func (r *Result) Table(rule string) (*GroupTable, bool) {
	for i := range r.Tables {
		if r.Tables[i].Rule == rule {
			return &r.Tables[i], true
		}
	}
	return nil, false
}
