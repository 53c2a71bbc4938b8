package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vegasq/calcrule/formula"
	"github.com/vegasq/calcrule/schema"
)

// scope is what a rule's formula may reference: schema columns plus the
// outputs of the scalar rules declared before it
type scope struct {
	schema  *schema.Schema
	derived map[string]schema.ColumnType
	tables  map[string]bool // names of aggregate rules, which add no column
}

func newScope(sch *schema.Schema) *scope {
	return &scope{
		schema:  sch,
		derived: make(map[string]schema.ColumnType),
		tables:  make(map[string]bool),
	}
}

// Lookup implements formula.Columns
func (s *scope) Lookup(name string) (schema.ColumnType, bool) {
	if t, ok := s.derived[name]; ok {
		return t, true
	}
	if s.schema == nil {
		return "", false
	}
	return s.schema.Lookup(name)
}

// declare makes a compiled rule's output visible to later rules
func (s *scope) declare(c *compiledRule) {
	if c.grouped {
		s.tables[c.rule.Name] = true
		return
	}
	s.derived[c.rule.Name] = schema.TypeFloat
}

// compiledRule is a rule with its formula parsed and its keys resolved
type compiledRule struct {
	rule    Rule
	expr    formula.Expr
	keys    []formula.KeySpec
	grouped bool
}

// compile parses one rule against the current scope. later holds the rules
// declared after it, used to explain forward references.
func compile(r Rule, sc *scope, later []Rule) (*compiledRule, error) {
	c, err := compileRule(r, sc, later)
	if err != nil {
		return nil, withRule(err, r.Name)
	}
	return c, nil
}

func compileRule(r Rule, sc *scope, later []Rule) (*compiledRule, error) {
	if err := checkRuleName(r.Name, sc); err != nil {
		return nil, err
	}

	expr, err := formula.Parse(r.Formula, sc)
	if err != nil {
		return nil, explain(err, sc, later)
	}

	c := &compiledRule{
		rule:    r,
		expr:    expr,
		grouped: r.Grouped() || formula.HasAggregate(expr),
	}
	if !c.grouped {
		return c, nil
	}

	if err := formula.CheckGroupContext(expr); err != nil {
		return nil, err
	}
	c.keys, err = formula.ResolveKeys(r.GroupBy, sc)
	if err != nil {
		return nil, explain(err, sc, later)
	}
	return c, nil
}

// withRule records the rule name on a resolution error
func withRule(err error, rule string) error {
	var resErr *formula.ResolutionError
	if errors.As(err, &resErr) {
		resErr.Rule = rule
	}
	return err
}

// checkRuleName requires a plain identifier that does not shadow a column
func checkRuleName(name string, sc *scope) error {
	tokens, err := formula.Tokenize(name)
	if err != nil || len(tokens) != 2 || tokens[0].Type != formula.TokenIdent || strings.Contains(name, "::") {
		return &formula.ResolutionError{Identifier: name, Reason: "rule name must be a plain identifier"}
	}
	if err := formula.ValidateIdentifier(name); err != nil {
		return &formula.ResolutionError{Identifier: name, Reason: err.Error()}
	}
	if _, exists := sc.Lookup(name); exists {
		return &formula.ResolutionError{Identifier: name, Reason: "rule name collides with an existing column"}
	}
	if sc.tables[name] {
		return &formula.ResolutionError{Identifier: name, Reason: "rule name is already used by an earlier rule"}
	}
	return nil
}

// explain rewrites the reason of an unknown-identifier error when the
// identifier is really another rule used out of order or as a column
func explain(err error, sc *scope, later []Rule) error {
	var resErr *formula.ResolutionError
	if !errors.As(err, &resErr) {
		return err
	}

	name := resErr.Identifier
	if col, _, found := strings.Cut(name, "::"); found {
		name = col
	}
	if sc.tables[name] {
		resErr.Reason = fmt.Sprintf("rule %q produces a group table, not a column", name)
		return err
	}
	for _, r := range later {
		if r.Name == name {
			resErr.Reason = fmt.Sprintf("forward reference to rule %q, which is declared later", name)
			return err
		}
	}
	return err
}
