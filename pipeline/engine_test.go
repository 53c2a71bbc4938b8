package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/calcrule/formula"
	"github.com/vegasq/calcrule/schema"
)

func salesSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.New([]schema.Column{
		{Name: "date", Type: schema.TypeDatetime, Required: true},
		{Name: "rep", Type: schema.TypeString},
		{Name: "quantity", Type: schema.TypeInt, Required: true},
		{Name: "unit_price", Type: schema.TypeFloat, Required: true},
		{Name: "discount_rate", Type: schema.TypeFloat},
	})
	require.NoError(t, err)
	return sch
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func salesData() Dataset {
	return Dataset{
		Columns: []string{"date", "rep", "quantity", "unit_price", "discount_rate"},
		Rows: []map[string]interface{}{
			{"date": date("2024-01-05"), "rep": "alice", "quantity": int64(1), "unit_price": 10.0, "discount_rate": 0.1},
			{"date": date("2024-01-20"), "rep": "bob", "quantity": int64(2), "unit_price": 5.0, "discount_rate": 0.0},
			{"date": date("2024-02-01"), "rep": "alice", "quantity": int64(3), "unit_price": 4.0, "discount_rate": nil},
		},
	}
}

func TestRun_ScalarRule(t *testing.T) {
	sch, err := schema.New([]schema.Column{
		{Name: "quantity", Type: schema.TypeInt},
		{Name: "unit_price", Type: schema.TypeFloat},
	})
	require.NoError(t, err)

	ds := Dataset{
		Columns: []string{"quantity", "unit_price"},
		Rows: []map[string]interface{}{
			{"quantity": int64(2), "unit_price": 10.0},
			{"quantity": int64(3), "unit_price": 5.0},
		},
	}

	res, err := New(sch).Run(context.Background(), ds, []Rule{
		{Name: "gross_revenue", Formula: "quantity * unit_price"},
	})
	require.NoError(t, err)

	assert.Equal(t, []interface{}{20.0, 15.0}, res.Dataset.Column("gross_revenue"))
	assert.Equal(t, []string{"quantity", "unit_price", "gross_revenue"}, res.Dataset.Columns)
	assert.Empty(t, res.Tables)
	assert.NotEmpty(t, res.RunID)
}

func TestRun_ChainedRules(t *testing.T) {
	rules := []Rule{
		{Name: "gross_revenue", Formula: "quantity * unit_price"},
		{Name: "discount_amount", Formula: "gross_revenue * discount_rate"},
		{Name: "net_revenue", Formula: "gross_revenue - discount_amount"},
		{Name: "monthly_net", Formula: "SUM(net_revenue)", GroupBy: []string{"date::month"}},
		{Name: "total_net", Formula: "SUM(net_revenue)"},
	}

	res, err := New(salesSchema(t)).Run(context.Background(), salesData(), rules)
	require.NoError(t, err)

	assert.Equal(t, []interface{}{10.0, 10.0, 12.0}, res.Dataset.Column("gross_revenue"))
	assert.Equal(t, []interface{}{1.0, 0.0, nil}, res.Dataset.Column("discount_amount"))
	assert.Equal(t, []interface{}{9.0, 10.0, nil}, res.Dataset.Column("net_revenue"))

	require.Len(t, res.Tables, 2)
	monthly := res.Tables[0]
	assert.Equal(t, "monthly_net", monthly.Rule)
	assert.Equal(t, []string{"date::month"}, monthly.Keys)
	require.Len(t, monthly.Entries, 2)
	assert.Equal(t, "2024-01", monthly.Entries[0].Key.String())
	assert.Equal(t, 19.0, monthly.Entries[0].Value)
	assert.Equal(t, "2024-02", monthly.Entries[1].Key.String())
	assert.Equal(t, 0.0, monthly.Entries[1].Value)

	total, ok := res.Table("total_net")
	require.True(t, ok)
	require.Len(t, total.Entries, 1)
	assert.Empty(t, total.Entries[0].Key)
	assert.Equal(t, 19.0, total.Entries[0].Value)
}

func TestRun_MonthlyGroupingOrder(t *testing.T) {
	rules := []Rule{
		{Name: "monthly_quantity", Formula: "SUM(quantity)", GroupBy: []string{"date::month"}},
	}

	res, err := New(salesSchema(t)).Run(context.Background(), salesData(), rules)
	require.NoError(t, err)

	table, ok := res.Table("monthly_quantity")
	require.True(t, ok)

	var keys []string
	var values []interface{}
	for _, e := range table.Entries {
		keys = append(keys, e.Key.String())
		values = append(values, e.Value)
	}
	assert.Equal(t, []string{"2024-01", "2024-02"}, keys)
	assert.Equal(t, []interface{}{3.0, 3.0}, values)
}

func TestRun_CompositeGroupKey(t *testing.T) {
	rules := []Rule{
		{Name: "avg_price", Formula: "MEAN(unit_price)", GroupBy: []string{"rep", "date::quarter"}},
	}

	res, err := New(salesSchema(t)).Run(context.Background(), salesData(), rules)
	require.NoError(t, err)

	table := res.Tables[0]
	entry, ok := table.Find("alice, 2024-Q1")
	require.True(t, ok)
	assert.Equal(t, 7.0, entry.Value)

	entry, ok = table.Find("bob, 2024-Q1")
	require.True(t, ok)
	assert.Equal(t, 5.0, entry.Value)
}

func TestRun_SkippedRows(t *testing.T) {
	ds := salesData()
	ds.Rows[1]["rep"] = nil

	res, err := New(salesSchema(t)).Run(context.Background(), ds, []Rule{
		{Name: "rep_quantity", Formula: "SUM(quantity)", GroupBy: []string{"rep"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.SkippedRows)
	assert.Equal(t, 1, res.Tables[0].Skipped)
	require.Len(t, res.Tables[0].Entries, 1)
	assert.Equal(t, 4.0, res.Tables[0].Entries[0].Value)
}

func TestRun_SkippedRowsCountedPerTable(t *testing.T) {
	ds := salesData()
	ds.Rows[1]["rep"] = nil

	res, err := New(salesSchema(t)).Run(context.Background(), ds, []Rule{
		{Name: "rep_quantity", Formula: "SUM(quantity)", GroupBy: []string{"rep"}},
		{Name: "rep_price", Formula: "MAX(unit_price)", GroupBy: []string{"rep"}},
	})
	require.NoError(t, err)

	require.Len(t, res.Tables, 2)
	assert.Equal(t, 1, res.Tables[0].Skipped)
	assert.Equal(t, 1, res.Tables[1].Skipped)
	assert.Equal(t, 2, res.SkippedRows)
}

func TestRun_GrandTotalGroup(t *testing.T) {
	ds := salesData()
	for _, row := range ds.Rows {
		row["discount_rate"] = nil
	}

	res, err := New(salesSchema(t)).Run(context.Background(), ds, []Rule{
		{Name: "total_quantity", Formula: "SUM(quantity)"},
		{Name: "avg_discount", Formula: "MEAN(discount_rate)"},
	})
	require.Error(t, err)

	table, ok := res.Table("total_quantity")
	require.True(t, ok)
	require.Len(t, table.Entries, 1)
	assert.Equal(t, 6.0, table.Entries[0].Value)

	var pipeErr *PipelineError
	require.ErrorAs(t, err, &pipeErr)
	assert.Equal(t, "avg_discount", pipeErr.Rule)
	assert.Equal(t, "(all rows)", pipeErr.Key.String())
	assert.Contains(t, err.Error(), "group (all rows)")
}

func TestRun_DoesNotMutateInput(t *testing.T) {
	ds := salesData()
	before := salesData()

	_, err := New(salesSchema(t)).Run(context.Background(), ds, []Rule{
		{Name: "gross_revenue", Formula: "quantity * unit_price"},
	})
	require.NoError(t, err)

	assert.Equal(t, before, ds)
}

func TestRun_Errors(t *testing.T) {
	tests := map[string]struct {
		rules    []Rule
		wantRule string
		wantRow  int
		wantKey  string
		check    func(t *testing.T, err error)
	}{
		"forward reference": {
			rules: []Rule{
				{Name: "net_revenue", Formula: "gross_revenue * 0.9"},
				{Name: "gross_revenue", Formula: "quantity * unit_price"},
			},
			wantRule: "net_revenue",
			wantRow:  -1,
			check: func(t *testing.T, err error) {
				var resErr *formula.ResolutionError
				require.ErrorAs(t, err, &resErr)
				assert.Equal(t, "gross_revenue", resErr.Identifier)
				assert.Contains(t, resErr.Reason, "forward reference")
			},
		},
		"unknown column": {
			rules:    []Rule{{Name: "bad", Formula: "unknown_col * 2"}},
			wantRule: "bad",
			wantRow:  -1,
			check: func(t *testing.T, err error) {
				var resErr *formula.ResolutionError
				require.ErrorAs(t, err, &resErr)
				assert.Equal(t, "unknown column", resErr.Reason)
				assert.Equal(t, "bad", resErr.Rule)
			},
		},
		"parse error": {
			rules:    []Rule{{Name: "bad", Formula: "(quantity * 2"}},
			wantRule: "bad",
			wantRow:  -1,
			check: func(t *testing.T, err error) {
				var parseErr *formula.ParseError
				require.ErrorAs(t, err, &parseErr)
			},
		},
		"lex error": {
			rules:    []Rule{{Name: "bad", Formula: "quantity # 2"}},
			wantRule: "bad",
			wantRow:  -1,
			check: func(t *testing.T, err error) {
				var lexErr *formula.LexError
				require.ErrorAs(t, err, &lexErr)
				assert.Equal(t, '#', lexErr.Char)
			},
		},
		"division by zero names the row": {
			rules: []Rule{
				{Name: "gross_revenue", Formula: "quantity * unit_price"},
				{Name: "ratio", Formula: "gross_revenue / discount_rate"},
			},
			wantRule: "ratio",
			wantRow:  1,
			check: func(t *testing.T, err error) {
				var divErr *formula.DivisionByZeroError
				require.ErrorAs(t, err, &divErr)
				assert.Equal(t, 1, divErr.Location.Row)
				assert.Equal(t, "ratio", divErr.Location.Rule)
				assert.Contains(t, err.Error(), "row 1")
			},
		},
		"empty aggregate names the group": {
			rules: []Rule{
				{Name: "avg_discount", Formula: "MEAN(discount_rate)", GroupBy: []string{"date::month"}},
			},
			wantRule: "avg_discount",
			wantRow:  -1,
			wantKey:  "2024-02",
			check: func(t *testing.T, err error) {
				var emptyErr *formula.EmptyAggregateError
				require.ErrorAs(t, err, &emptyErr)
				assert.Equal(t, "avg_discount", emptyErr.Location.Rule)
				assert.Contains(t, err.Error(), "group 2024-02")
			},
		},
		"bare column with group_by": {
			rules:    []Rule{{Name: "bad", Formula: "quantity", GroupBy: []string{"rep"}}},
			wantRule: "bad",
			wantRow:  -1,
			check: func(t *testing.T, err error) {
				var resErr *formula.ResolutionError
				require.ErrorAs(t, err, &resErr)
				assert.Equal(t, "quantity", resErr.Identifier)
				assert.Equal(t, "bad", resErr.Rule)
			},
		},
		"period on non-datetime key": {
			rules:    []Rule{{Name: "bad", Formula: "SUM(quantity)", GroupBy: []string{"rep::month"}}},
			wantRule: "bad",
			wantRow:  -1,
			check: func(t *testing.T, err error) {
				var resErr *formula.ResolutionError
				require.ErrorAs(t, err, &resErr)
				assert.Equal(t, "bad", resErr.Rule)
			},
		},
		"rule name shadows column": {
			rules:    []Rule{{Name: "quantity", Formula: "quantity * 2"}},
			wantRule: "quantity",
			wantRow:  -1,
			check: func(t *testing.T, err error) {
				var resErr *formula.ResolutionError
				require.ErrorAs(t, err, &resErr)
				assert.Contains(t, resErr.Reason, "collides")
			},
		},
		"duplicate rule name": {
			rules: []Rule{
				{Name: "gross_revenue", Formula: "quantity * unit_price"},
				{Name: "gross_revenue", Formula: "quantity"},
			},
			wantRule: "gross_revenue",
			wantRow:  -1,
		},
		"invalid rule name": {
			rules:    []Rule{{Name: "gross revenue", Formula: "quantity"}},
			wantRule: "gross revenue",
			wantRow:  -1,
		},
		"aggregate rule used as column": {
			rules: []Rule{
				{Name: "total_quantity", Formula: "SUM(quantity)"},
				{Name: "share", Formula: "quantity / total_quantity"},
			},
			wantRule: "share",
			wantRow:  -1,
			check: func(t *testing.T, err error) {
				var resErr *formula.ResolutionError
				require.ErrorAs(t, err, &resErr)
				assert.Contains(t, resErr.Reason, "group table")
				assert.Equal(t, "share", resErr.Rule)
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			res, err := New(salesSchema(t)).Run(context.Background(), salesData(), test.rules)
			require.Error(t, err)
			require.NotNil(t, res)

			var pipeErr *PipelineError
			require.ErrorAs(t, err, &pipeErr)
			assert.Equal(t, test.wantRule, pipeErr.Rule)
			assert.Equal(t, test.wantRow, pipeErr.Row)
			if test.wantKey != "" {
				assert.Equal(t, test.wantKey, pipeErr.Key.String())
			}
			assert.Equal(t, 1, strings.Count(err.Error(), fmt.Sprintf("rule %q", test.wantRule)), err.Error())

			if test.check != nil {
				test.check(t, err)
			}
		})
	}
}

func TestRun_PartialResultRetained(t *testing.T) {
	rules := []Rule{
		{Name: "gross_revenue", Formula: "quantity * unit_price"},
		{Name: "monthly_revenue", Formula: "SUM(gross_revenue)", GroupBy: []string{"date::month"}},
		{Name: "broken", Formula: "gross_revenue / 0"},
		{Name: "never_run", Formula: "gross_revenue * 2"},
	}

	res, err := New(salesSchema(t)).Run(context.Background(), salesData(), rules)
	require.Error(t, err)

	assert.Equal(t, []interface{}{10.0, 10.0, 12.0}, res.Dataset.Column("gross_revenue"))
	assert.Len(t, res.Tables, 1)
	assert.NotContains(t, res.Dataset.Columns, "broken")
	assert.NotContains(t, res.Dataset.Columns, "never_run")
	for _, row := range res.Dataset.Rows {
		assert.NotContains(t, row, "broken")
	}
}

func TestRun_WorkersDoNotChangeOutcome(t *testing.T) {
	ds := Dataset{Columns: []string{"date", "rep", "quantity", "unit_price", "discount_rate"}}
	reps := []string{"carol", "alice", "bob", "dave"}
	for i := 0; i < 500; i++ {
		ds.Rows = append(ds.Rows, map[string]interface{}{
			"date":          date("2024-01-01").AddDate(0, 0, i),
			"rep":           reps[i%len(reps)],
			"quantity":      int64(i%7 + 1),
			"unit_price":    float64(i%13) + 0.25,
			"discount_rate": float64(i%5) / 10,
		})
	}
	rules := []Rule{
		{Name: "gross_revenue", Formula: "quantity * unit_price"},
		{Name: "net_revenue", Formula: "gross_revenue * (1 - discount_rate)"},
		{Name: "by_rep_month", Formula: "SUM(net_revenue) / COUNT(net_revenue)", GroupBy: []string{"rep", "date::month"}},
	}

	sequential, err := New(salesSchema(t), WithWorkers(1)).Run(context.Background(), ds, rules)
	require.NoError(t, err)
	parallel, err := New(salesSchema(t), WithWorkers(8)).Run(context.Background(), ds, rules)
	require.NoError(t, err)

	assert.Equal(t, sequential.Dataset, parallel.Dataset)
	assert.Equal(t, sequential.Tables, parallel.Tables)

	// the lowest failing row is reported whatever the scheduling
	ds.Rows[120]["discount_rate"] = 1.0
	ds.Rows[40]["discount_rate"] = 1.0
	failing := []Rule{
		{Name: "gross_revenue", Formula: "quantity * unit_price"},
		{Name: "markup", Formula: "gross_revenue / (1 - discount_rate)"},
	}
	for _, workers := range []int{1, 8} {
		_, err := New(salesSchema(t), WithWorkers(workers)).Run(context.Background(), ds, failing)
		var pipeErr *PipelineError
		require.ErrorAs(t, err, &pipeErr)
		assert.Equal(t, 40, pipeErr.Row, "workers=%d", workers)
	}
}

func TestRun_Deterministic(t *testing.T) {
	rules := []Rule{
		{Name: "gross_revenue", Formula: "quantity * unit_price"},
		{Name: "by_rep", Formula: "SUM(gross_revenue)", GroupBy: []string{"rep"}},
	}
	engine := New(salesSchema(t), WithWorkers(4))

	first, err := engine.Run(context.Background(), salesData(), rules)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		next, err := engine.Run(context.Background(), salesData(), rules)
		require.NoError(t, err)
		assert.Equal(t, first.Dataset, next.Dataset)
		assert.Equal(t, first.Tables, next.Tables)
		assert.NotEqual(t, first.RunID, next.RunID)
	}
}

func TestRun_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(salesSchema(t)).Run(ctx, salesData(), []Rule{
		{Name: "gross_revenue", Formula: "quantity * unit_price"},
	})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRun_EmptyRules(t *testing.T) {
	res, err := New(salesSchema(t)).Run(context.Background(), salesData(), nil)
	require.NoError(t, err)
	assert.Equal(t, salesData(), res.Dataset)
}

func TestRun_Logging(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ds := salesData()
	ds.Rows[0]["rep"] = nil
	res, err := New(salesSchema(t), WithLogger(log)).Run(context.Background(), ds, []Rule{
		{Name: "by_rep", Formula: "SUM(quantity)", GroupBy: []string{"rep"}},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "run_id="+res.RunID)
	assert.Contains(t, out, "rows skipped")
	assert.Contains(t, out, "rule=by_rep")
	assert.Contains(t, out, "pipeline finished")
}

func TestValidate(t *testing.T) {
	engine := New(salesSchema(t))

	err := engine.Validate([]Rule{
		{Name: "gross_revenue", Formula: "quantity * unit_price"},
		{Name: "monthly", Formula: "SUM(gross_revenue)", GroupBy: []string{"date::month"}},
	})
	assert.NoError(t, err)

	err = engine.Validate([]Rule{
		{Name: "net", Formula: "gross * 0.9"},
		{Name: "gross", Formula: "quantity * unit_price"},
	})
	var pipeErr *PipelineError
	require.ErrorAs(t, err, &pipeErr)
	assert.Equal(t, "net", pipeErr.Rule)
	var resErr *formula.ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "net", resErr.Rule)

	// evaluation problems are not detected without data
	assert.NoError(t, engine.Validate([]Rule{{Name: "ratio", Formula: "quantity / 0"}}))
}
