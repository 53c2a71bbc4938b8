package pipeline

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/iter"

	"github.com/vegasq/calcrule/formula"
	"github.com/vegasq/calcrule/internal/logger"
	"github.com/vegasq/calcrule/schema"
)

// Engine runs ordered calculation rules over datasets of one schema.
// An Engine holds no per-run state and may be shared.
type Engine struct {
	schema  *schema.Schema
	workers int
	log     *slog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithWorkers bounds the goroutines evaluating rows or groups of one rule.
// Values below 2 evaluate sequentially.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.workers = n
	}
}

// WithLogger sets the logger for run progress
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// New creates an engine for datasets described by sch
func New(sch *schema.Schema, opts ...Option) *Engine {
	e := &Engine{
		schema:  sch,
		workers: runtime.GOMAXPROCS(0),
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Schema returns the schema rules are resolved against
func (e *Engine) Schema() *schema.Schema {
	return e.schema
}

// Validate compiles every rule in order without evaluating anything. It
// reports the same structural errors Run would.
func (e *Engine) Validate(rules []Rule) error {
	sc := newScope(e.schema)
	for i, r := range rules {
		c, err := compile(r, sc, rules[i+1:])
		if err != nil {
			return &PipelineError{Rule: r.Name, Row: -1, Err: err}
		}
		sc.declare(c)
	}
	return nil
}

// Run applies rules to a copy of ds in declaration order. Scalar rules
// append a column; aggregate rules append a GroupTable. The first failure
// stops the run: the returned Result then holds the output of the rules
// that completed and the error is a *PipelineError.
func (e *Engine) Run(ctx context.Context, ds Dataset, rules []Rule) (*Result, error) {
	res := &Result{
		RunID:   uuid.NewString(),
		Dataset: ds.clone(),
	}
	log := e.log.With("run_id", res.RunID)
	log.Info("pipeline started", "rules", len(rules), "rows", len(ds.Rows), "workers", e.workers)
	start := time.Now()

	sc := newScope(e.schema)
	for i, r := range rules {
		if err := ctx.Err(); err != nil {
			return res, e.fail(log, &PipelineError{Rule: r.Name, Row: -1, Err: err})
		}

		c, err := compile(r, sc, rules[i+1:])
		if err != nil {
			return res, e.fail(log, &PipelineError{Rule: r.Name, Row: -1, Err: err})
		}

		ruleStart := time.Now()
		var perr *PipelineError
		if c.grouped {
			perr = e.applyGrouped(log, res, c)
		} else {
			perr = e.applyScalar(res, c)
		}
		if perr != nil {
			return res, e.fail(log, perr)
		}
		sc.declare(c)

		log.Debug("rule applied",
			"rule", r.Name,
			"grouped", c.grouped,
			"formula", c.expr.String(),
			"elapsed", time.Since(ruleStart))
	}

	log.Info("pipeline finished",
		"columns", len(res.Dataset.Columns),
		"tables", len(res.Tables),
		"skipped_rows", res.SkippedRows,
		"elapsed", time.Since(start))
	return res, nil
}

func (e *Engine) fail(log *slog.Logger, err *PipelineError) error {
	log.Error("pipeline failed", "rule", err.Rule, "error", err.Err)
	return err
}

// applyScalar evaluates the rule for every row and appends the column
func (e *Engine) applyScalar(res *Result, c *compiledRule) *PipelineError {
	rows := res.Dataset.Rows
	values, failed, err := evaluateAll(e.workers, rows, func(i int, row *map[string]interface{}) (formula.Scalar, error) {
		return c.expr.Eval(&formula.RowContext{Rule: c.rule.Name, Index: i, Row: *row})
	})
	if err != nil {
		return &PipelineError{Rule: c.rule.Name, Row: failed, Err: err}
	}

	for i, row := range rows {
		row[c.rule.Name] = values[i].Interface()
	}
	res.Dataset.Columns = append(res.Dataset.Columns, c.rule.Name)
	return nil
}

// applyGrouped partitions the rows, evaluates the rule once per group and
// appends the group table
func (e *Engine) applyGrouped(log *slog.Logger, res *Result, c *compiledRule) *PipelineError {
	parts, err := formula.Partition(res.Dataset.Rows, c.keys)
	if err != nil {
		return &PipelineError{Rule: c.rule.Name, Row: -1, Err: err}
	}
	if parts.Skipped > 0 {
		log.Warn("rows skipped: null group key", "rule", c.rule.Name, "skipped", parts.Skipped)
	}

	values, failed, err := evaluateAll(e.workers, parts.Groups, func(_ int, g *formula.Group) (formula.Scalar, error) {
		return c.expr.Eval(&formula.GroupContext{Rule: c.rule.Name, Key: g.Key, Rows: g.Rows})
	})
	if err != nil {
		return &PipelineError{Rule: c.rule.Name, Row: -1, Key: parts.Groups[failed].Key, Err: err}
	}

	table := GroupTable{
		Rule:    c.rule.Name,
		Keys:    c.rule.GroupBy,
		Entries: make([]GroupEntry, len(parts.Groups)),
		Skipped: parts.Skipped,
	}
	for i, g := range parts.Groups {
		table.Entries[i] = GroupEntry{Key: g.Key, Value: values[i].Interface()}
	}
	res.Tables = append(res.Tables, table)
	res.SkippedRows += parts.Skipped
	return nil
}

// evaluateAll evaluates every item into its own slot. With more than one
// worker the items are spread over goroutines; either way the error
// reported is the one with the lowest index.
func evaluateAll[T any](workers int, items []T, eval func(int, *T) (formula.Scalar, error)) ([]formula.Scalar, int, error) {
	values := make([]formula.Scalar, len(items))

	if workers < 2 || len(items) < 2 {
		for i := range items {
			v, err := eval(i, &items[i])
			if err != nil {
				return nil, i, err
			}
			values[i] = v
		}
		return values, -1, nil
	}

	errs := make([]error, len(items))
	iter.Iterator[T]{MaxGoroutines: workers}.ForEachIdx(items, func(i int, item *T) {
		values[i], errs[i] = eval(i, item)
	})
	for i, err := range errs {
		if err != nil {
			return nil, i, err
		}
	}
	return values, -1, nil
}
