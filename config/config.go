package config

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/vegasq/calcrule/pipeline"
	"github.com/vegasq/calcrule/reader"
	"github.com/vegasq/calcrule/schema"
)

// Data source kinds
const (
	KindLocalCSV     = "local_csv"
	KindLocalParquet = "local_parquet"
)

var teamIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// TeamConfig is one team document, config/teams/<id>.yaml
type TeamConfig struct {
	Team             Team         `yaml:"team"`
	DataSource       DataSource   `yaml:"data_source"`
	DataFormat       DataFormat   `yaml:"data_format"`
	CalculationRules []RuleConfig `yaml:"calculation_rules"`

	// File is the document the config was read from
	File string `yaml:"-"`
}

type Team struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type DataSource struct {
	Kind    string            `yaml:"kind"`
	Path    string            `yaml:"path"`
	Options DataSourceOptions `yaml:"options"`
}

type DataSourceOptions struct {
	Header    *bool  `yaml:"header"`    // CSV only, default true
	Delimiter string `yaml:"delimiter"` // CSV only, default ","
	Encoding  string `yaml:"encoding"`  // only utf-8 is supported
}

// HasHeader reports whether the first CSV record holds column names
func (o DataSourceOptions) HasHeader() bool {
	return o.Header == nil || *o.Header
}

type DataFormat struct {
	Columns []ColumnConfig `yaml:"columns"`
}

type ColumnConfig struct {
	Name        string      `yaml:"name"`
	Type        string      `yaml:"type"`
	Required    *bool       `yaml:"required"` // default true
	Format      string      `yaml:"format"`
	Default     interface{} `yaml:"default"`
	Description string      `yaml:"description"`
}

// RuleConfig is one entry of calculation_rules
type RuleConfig struct {
	Name        string     `yaml:"name"`
	Formula     string     `yaml:"formula"`
	Description string     `yaml:"description"`
	GroupBy     StringList `yaml:"group_by"`

	unknown []string
}

var knownRuleFields = map[string]bool{
	"name":        true,
	"formula":     true,
	"description": true,
	"group_by":    true,
}

// UnmarshalYAML records fields it does not know instead of failing, so
// documents written for newer versions still load
func (r *RuleConfig) UnmarshalYAML(unmarshal func(any) error) error {
	type plain RuleConfig
	if err := unmarshal((*plain)(r)); err != nil {
		return err
	}

	var raw map[string]any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	r.unknown = nil
	for k := range raw {
		if !knownRuleFields[k] {
			r.unknown = append(r.unknown, k)
		}
	}
	sort.Strings(r.unknown)
	return nil
}

// UnknownFields lists the keys of the entry that were ignored
func (r RuleConfig) UnknownFields() []string {
	return r.unknown
}

// StringList accepts either a single string or a list of strings
type StringList []string

func (s *StringList) UnmarshalYAML(unmarshal func(any) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		*s = []string{single}
		return nil
	}

	var multiple []string
	if err := unmarshal(&multiple); err == nil {
		*s = multiple
		return nil
	}

	return fmt.Errorf("expected a string or a list of strings")
}

// validate checks the team section and that the id matches the file name
func (c *TeamConfig) validate(id string) error {
	if c.Team.ID == "" {
		return fmt.Errorf("missing or empty required field: team.id")
	}
	if c.Team.Name == "" {
		return fmt.Errorf("missing or empty required field: team.name")
	}
	if !teamIDPattern.MatchString(c.Team.ID) {
		return fmt.Errorf("team.id %q may only contain letters, digits and underscores", c.Team.ID)
	}
	if c.Team.ID != id {
		return fmt.Errorf("team.id %q does not match file name %q", c.Team.ID, id)
	}
	switch c.DataSource.Kind {
	case "", KindLocalCSV, KindLocalParquet:
	default:
		return fmt.Errorf("unsupported data_source.kind %q", c.DataSource.Kind)
	}
	return nil
}

// Schema builds the column schema from data_format
func (c *TeamConfig) Schema() (*schema.Schema, error) {
	if len(c.DataFormat.Columns) == 0 {
		return nil, &Error{Team: c.Team.ID, File: c.File, Err: fmt.Errorf("data_format: %w", schema.ErrEmptySchema)}
	}

	cols := make([]schema.Column, 0, len(c.DataFormat.Columns))
	for i, cc := range c.DataFormat.Columns {
		if cc.Name == "" {
			return nil, &Error{Team: c.Team.ID, File: c.File, Err: fmt.Errorf("data_format.columns[%d]: missing name", i)}
		}
		typ, err := schema.ParseType(cc.Type)
		if err != nil {
			return nil, &Error{Team: c.Team.ID, File: c.File, Err: fmt.Errorf("data_format column %q: %w", cc.Name, err)}
		}
		cols = append(cols, schema.Column{
			Name:        cc.Name,
			Type:        typ,
			Required:    cc.Required == nil || *cc.Required,
			Format:      cc.Format,
			Default:     cc.Default,
			Description: cc.Description,
		})
	}

	sch, err := schema.New(cols)
	if err != nil {
		return nil, &Error{Team: c.Team.ID, File: c.File, Err: fmt.Errorf("data_format: %w", err)}
	}
	return sch, nil
}

// Rules converts calculation_rules to pipeline rules, keeping their order
func (c *TeamConfig) Rules() ([]pipeline.Rule, error) {
	rules := make([]pipeline.Rule, 0, len(c.CalculationRules))
	for i, rc := range c.CalculationRules {
		if rc.Name == "" {
			return nil, &Error{Team: c.Team.ID, File: c.File, Err: fmt.Errorf("calculation_rules[%d]: missing name", i)}
		}
		if rc.Formula == "" {
			return nil, &Error{Team: c.Team.ID, File: c.File, Err: fmt.Errorf("calculation rule %q: missing formula", rc.Name)}
		}
		rules = append(rules, pipeline.Rule{
			Name:        rc.Name,
			Formula:     rc.Formula,
			Description: rc.Description,
			GroupBy:     []string(rc.GroupBy),
		})
	}
	return rules, nil
}

// ReadOptions returns the reader format and CSV options for the data source
func (c *TeamConfig) ReadOptions() (reader.Format, reader.CSVOptions, error) {
	var format reader.Format
	switch c.DataSource.Kind {
	case KindLocalCSV:
		format = reader.FormatCSV
	case KindLocalParquet:
		format = reader.FormatParquet
	}

	opts := reader.CSVOptions{
		NoHeader: !c.DataSource.Options.HasHeader(),
		Encoding: c.DataSource.Options.Encoding,
	}
	if d := c.DataSource.Options.Delimiter; d != "" {
		runes := []rune(d)
		if len(runes) != 1 {
			return "", reader.CSVOptions{}, &Error{Team: c.Team.ID, File: c.File, Err: fmt.Errorf("data_source.options.delimiter %q must be a single character", d)}
		}
		opts.Delimiter = runes[0]
	}
	if opts.NoHeader {
		opts.Columns = make([]string, len(c.DataFormat.Columns))
		for i, col := range c.DataFormat.Columns {
			opts.Columns[i] = col.Name
		}
	}
	return format, opts, nil
}
