// Package formula parses and evaluates the calculation formulas declared in
// team configuration.
//
// The grammar is deliberately closed: numeric literals, column references,
// the four arithmetic operators, unary minus, parentheses and the aggregate
// functions SUM, MEAN, COUNT, MIN and MAX. There are no conditionals, user
// functions or general-purpose evaluation.
//
//	expr   := term (('+'|'-') term)*
//	term   := factor (('*'|'/') factor)*
//	factor := '-' factor | '(' expr ')' | NUMBER | IDENT | FUNC '(' IDENT ')'
//
// # Basic Usage
//
// Parse a formula once, resolving identifiers against a schema, then
// evaluate it for every row:
//
//	expr, err := formula.Parse("quantity * unit_price", sch)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for i, row := range rows {
//	    v, err := formula.Evaluate(expr, &formula.RowContext{Index: i, Row: row})
//	    ...
//	}
//
// # Grouping
//
// Aggregate formulas are evaluated per group. Group keys are plain columns
// or a datetime column truncated to a period ("date::month"); groups keep
// the order in which their keys first appear:
//
//	keys, err := formula.ResolveKeys([]string{"date::month", "rep"}, sch)
//	parts, err := formula.Partition(rows, keys)
//	for _, g := range parts.Groups {
//	    v, err := formula.Evaluate(expr, &formula.GroupContext{Key: g.Key, Rows: g.Rows})
//	    ...
//	}
//
// Supported periods are day, week, month, quarter and year.
//
// # Error Handling
//
// Structural problems are reported while parsing as *LexError, *ParseError
// or *ResolutionError. Evaluation reports *DivisionByZeroError and
// *EmptyAggregateError with the row index or group key where they occurred.
package formula
