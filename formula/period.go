package formula

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Period truncates datetimes to a calendar granularity for derived group
// keys such as "date::month"
type Period struct {
	Name     string
	truncate func(time.Time) time.Time
	label    func(time.Time) string
}

// Truncate returns the start of the period containing t, in t's location
func (p *Period) Truncate(t time.Time) time.Time {
	return p.truncate(t)
}

// Value returns the group key value for t
func (p *Period) Value(t time.Time) PeriodValue {
	start := p.truncate(t)
	return PeriodValue{Period: p.Name, Start: start, label: p.label(start)}
}

// PeriodValue is a derived key value: the period containing a datetime
type PeriodValue struct {
	Period string
	Start  time.Time
	label  string
}

func (v PeriodValue) String() string { return v.label }

// MarshalText renders the value as its label, e.g. "2024-01" or "2024-Q1"
func (v PeriodValue) MarshalText() ([]byte, error) {
	return []byte(v.label), nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

var periods = map[string]*Period{
	"day": {
		Name:     "day",
		truncate: startOfDay,
		label:    func(t time.Time) string { return t.Format("2006-01-02") },
	},
	"week": {
		Name: "week",
		truncate: func(t time.Time) time.Time {
			// ISO weeks start on Monday
			back := (int(t.Weekday()) + 6) % 7
			return startOfDay(t.AddDate(0, 0, -back))
		},
		label: func(t time.Time) string {
			year, week := t.ISOWeek()
			return fmt.Sprintf("%04d-W%02d", year, week)
		},
	},
	"month": {
		Name: "month",
		truncate: func(t time.Time) time.Time {
			return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
		},
		label: func(t time.Time) string { return t.Format("2006-01") },
	},
	"quarter": {
		Name: "quarter",
		truncate: func(t time.Time) time.Time {
			first := time.Month((int(t.Month())-1)/3*3 + 1)
			return time.Date(t.Year(), first, 1, 0, 0, 0, 0, t.Location())
		},
		label: func(t time.Time) string {
			return fmt.Sprintf("%04d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
		},
	},
	"year": {
		Name: "year",
		truncate: func(t time.Time) time.Time {
			return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
		},
		label: func(t time.Time) string { return t.Format("2006") },
	},
}

// LookupPeriod finds a period by name (case-insensitive)
func LookupPeriod(name string) (*Period, bool) {
	p, ok := periods[strings.ToLower(name)]
	return p, ok
}

// PeriodNames lists the supported period names in sorted order
func PeriodNames() []string {
	names := make([]string, 0, len(periods))
	for name := range periods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
