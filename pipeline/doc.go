// Package pipeline applies a team's ordered calculation rules to a dataset.
//
// Rules run strictly in declaration order, so a rule may use the column
// produced by any scalar rule declared before it. A scalar rule appends one
// column to the working copy of the dataset. A rule with group_by, or with
// aggregate functions, produces a GroupTable keyed by group instead:
//
//	engine := pipeline.New(sch, pipeline.WithWorkers(4), pipeline.WithLogger(log))
//	res, err := engine.Run(ctx, ds, []pipeline.Rule{
//	    {Name: "gross_revenue", Formula: "quantity * unit_price"},
//	    {Name: "monthly_revenue", Formula: "SUM(gross_revenue)", GroupBy: []string{"date::month"}},
//	})
//
// The first error stops the run. Run still returns the Result built so far
// together with a *PipelineError naming the rule and, for evaluation
// failures, the row index or group key.
package pipeline
