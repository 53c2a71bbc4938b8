package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/jessevdk/go-flags"

	"github.com/vegasq/calcrule/config"
	"github.com/vegasq/calcrule/internal/logger"
	"github.com/vegasq/calcrule/output"
	"github.com/vegasq/calcrule/pipeline"
	"github.com/vegasq/calcrule/reader"
	"github.com/vegasq/calcrule/schema"
)

const defaultFormat = "jsonl"

// options defines command line options
type options struct {
	ConfigDir string `short:"c" long:"config-dir" description:"configuration directory" default:"config"`
	Team      string `short:"t" long:"team" description:"team to run (default: app.default_team)"`
	Format    string `short:"f" long:"format" description:"output format: jsonl, csv, table (default: app.format or jsonl)"`
	Workers   int    `short:"w" long:"workers" description:"goroutines evaluating one rule (default: app.workers or GOMAXPROCS)"`
	ListTeams bool   `long:"list-teams" description:"list configured teams and exit"`
	Check     bool   `long:"check" description:"validate the team's rules without reading data"`
	Schema    string `long:"schema" value-name:"FILE" description:"print the columns of a parquet file and exit"`
	Debug     bool   `short:"d" long:"debug" description:"debug logging"`

	Args struct {
		Data string `positional-arg-name:"data" description:"data file or parquet glob, overrides data_source.path"`
	} `positional-args:"yes"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "calcrule"
	parser.Usage = "[OPTIONS] [data]"

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && errors.Is(flagsErr.Type, flags.ErrHelp) {
			fmt.Fprintln(stdout, err)
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if err := execute(ctx, &opts, stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func execute(ctx context.Context, opts *options, stdout, stderr io.Writer) error {
	if opts.Workers < 0 {
		return fmt.Errorf("--workers must be non-negative, got %d", opts.Workers)
	}

	if opts.Schema != "" {
		f, err := output.New(formatOr(opts.Format, defaultFormat), stdout)
		if err != nil {
			return err
		}
		return printSchema(f, opts.Schema, stderr)
	}

	plain, err := config.NewLoader(opts.ConfigDir)
	if err != nil {
		return err
	}
	app, err := plain.LoadApp()
	if err != nil {
		return err
	}

	level, err := logger.Level(opts.Debug, app.App.LogLevel)
	if err != nil {
		return err
	}
	log := logger.New(stderr, level)

	loader, err := config.NewLoader(opts.ConfigDir, config.WithLogger(log))
	if err != nil {
		return err
	}

	f, err := output.New(formatOr(opts.Format, formatOr(app.App.Format, defaultFormat)), stdout)
	if err != nil {
		return err
	}

	if opts.ListTeams {
		return listTeams(f, loader)
	}

	team := opts.Team
	if team == "" {
		team = app.App.DefaultTeam
	}
	if team == "" {
		return fmt.Errorf("no team selected: pass --team or set app.default_team")
	}

	cfg, err := loader.LoadTeam(team)
	if err != nil {
		return err
	}
	sch, err := cfg.Schema()
	if err != nil {
		return err
	}
	rules, err := cfg.Rules()
	if err != nil {
		return err
	}

	workers := opts.Workers
	if workers == 0 {
		workers = app.App.Workers
	}
	engineOpts := []pipeline.Option{pipeline.WithLogger(log.With("team", team))}
	if workers > 0 {
		engineOpts = append(engineOpts, pipeline.WithWorkers(workers))
	}
	engine := pipeline.New(sch, engineOpts...)

	if opts.Check {
		if err := engine.Validate(rules); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "team %s: %d rules ok\n", team, len(rules))
		return nil
	}

	ds, err := loadDataset(cfg, sch, loader, opts.Args.Data, log)
	if err != nil {
		return err
	}

	res, err := engine.Run(ctx, ds, rules)
	if err != nil {
		return err
	}
	return output.WriteResult(f, stdout, res)
}

// loadDataset reads and coerces the team's data
func loadDataset(cfg *config.TeamConfig, sch *schema.Schema, loader *config.Loader, override string, log *slog.Logger) (pipeline.Dataset, error) {
	path := override
	if path == "" {
		path = loader.ResolvePath(cfg.DataSource.Path)
	}
	if path == "" {
		return pipeline.Dataset{}, fmt.Errorf("team %s has no data_source.path and no data file was given", cfg.Team.ID)
	}

	format, csvOpts, err := cfg.ReadOptions()
	if err != nil {
		return pipeline.Dataset{}, err
	}
	if override != "" {
		format = ""
	}

	raw, err := reader.ReadFile(path, format, csvOpts)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return pipeline.Dataset{}, fmt.Errorf("file '%s' not found", path)
		}
		return pipeline.Dataset{}, err
	}

	table, err := reader.Coerce(raw, sch)
	if err != nil {
		return pipeline.Dataset{}, err
	}

	log.Debug("data loaded", "path", path, "rows", len(table.Rows), "columns", len(table.Columns))
	return pipeline.Dataset{Columns: table.Columns, Rows: table.Rows}, nil
}

func listTeams(f output.Formatter, loader *config.Loader) error {
	teams, err := loader.LoadAll()
	if err != nil {
		return err
	}

	columns := []string{"id", "name", "description", "source", "rules"}
	rows := make([]map[string]interface{}, len(teams))
	for i, t := range teams {
		rows[i] = map[string]interface{}{
			"id":          t.Team.ID,
			"name":        t.Team.Name,
			"description": t.Team.Description,
			"source":      t.DataSource.Kind,
			"rules":       len(t.CalculationRules),
		}
	}
	return f.Format(columns, rows)
}

// printSchema lists the columns of a parquet file. For a glob pattern the
// first match is shown.
func printSchema(f output.Formatter, pattern string, stderr io.Writer) error {
	path := pattern
	if strings.ContainsAny(pattern, "*?[]") {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("invalid glob pattern: %w", err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("no files match pattern: %s", pattern)
		}
		path = matches[0]
		if len(matches) > 1 {
			fmt.Fprintf(stderr, "# Showing schema from: %s (%d files matched)\n", path, len(matches))
		}
	}

	infos, err := reader.ExtractSchemaInfo(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("file '%s' not found", path)
		}
		return err
	}

	columns := []string{"name", "type", "physical_type", "logical_type", "required", "repeated"}
	rows := make([]map[string]interface{}, len(infos))
	for i, info := range infos {
		rows[i] = map[string]interface{}{
			"name":          info.Name,
			"type":          string(info.Type),
			"physical_type": info.PhysicalType,
			"logical_type":  info.LogicalType,
			"required":      info.Required,
			"repeated":      info.Repeated,
		}
	}
	return f.Format(columns, rows)
}

func formatOr(format, fallback string) string {
	if format == "" {
		return fallback
	}
	return format
}
