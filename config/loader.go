package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/vegasq/calcrule/internal/logger"
)

const (
	teamsDir    = "teams"
	appFile     = "app.yaml"
	teamFileExt = ".yaml"
)

// Error reports a configuration problem with the team or file it came from
type Error struct {
	Team string
	File string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("config")
	if e.Team != "" {
		fmt.Fprintf(&b, ": team %q", e.Team)
	}
	if e.File != "" {
		fmt.Fprintf(&b, " (%s)", e.File)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

var (
	// ErrNoTeams is returned when the teams directory holds no documents
	ErrNoTeams = errors.New("no team configuration files found")

	// ErrTeamNotFound is returned by LoadTeam for an unknown team id
	ErrTeamNotFound = errors.New("team configuration not found")
)

// AppConfig holds defaults shared by all teams, config/app.yaml
type AppConfig struct {
	App struct {
		Name        string `yaml:"name"`
		DefaultTeam string `yaml:"default_team"`
		Format      string `yaml:"format"`
		Workers     int    `yaml:"workers"`
		LogLevel    string `yaml:"log_level"`
	} `yaml:"app"`
}

// Loader reads configuration documents from a directory laid out as
//
//	<dir>/app.yaml
//	<dir>/teams/<team_id>.yaml
type Loader struct {
	dir string
	log *slog.Logger
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithLogger sets the logger used for warnings about ignored fields
func WithLogger(log *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLoader returns a loader for dir, which must be an existing directory
func NewLoader(dir string, opts ...LoaderOption) (*Loader, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &Error{File: dir, Err: fmt.Errorf("config directory: %w", err)}
	}
	if !info.IsDir() {
		return nil, &Error{File: dir, Err: fmt.Errorf("config path is not a directory")}
	}

	l := &Loader{dir: dir, log: logger.Discard()}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Dir returns the configuration directory
func (l *Loader) Dir() string {
	return l.dir
}

// ResolvePath resolves a data path from configuration. Relative paths are
// taken from the project root, the parent of the configuration directory.
func (l *Loader) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(filepath.Clean(l.dir)), path)
}

// AvailableTeams returns the sorted ids of all team documents
func (l *Loader) AvailableTeams() ([]string, error) {
	dir := filepath.Join(l.dir, teamsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &Error{File: dir, Err: fmt.Errorf("teams directory: %w", err)}
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != teamFileExt {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), teamFileExt))
	}
	if len(ids) == 0 {
		return nil, &Error{File: dir, Err: ErrNoTeams}
	}

	sort.Strings(ids)
	return ids, nil
}

// LoadTeam reads and validates the document of one team. Unknown keys in
// calculation rules are logged and ignored.
func (l *Loader) LoadTeam(id string) (*TeamConfig, error) {
	file := filepath.Join(l.dir, teamsDir, id+teamFileExt)

	var cfg TeamConfig
	if err := l.readYAML(file, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("%w: %s", ErrTeamNotFound, id)
		}
		return nil, &Error{Team: id, File: file, Err: err}
	}
	cfg.File = file

	if err := cfg.validate(id); err != nil {
		return nil, &Error{Team: id, File: file, Err: err}
	}

	for _, r := range cfg.CalculationRules {
		if fields := r.UnknownFields(); len(fields) > 0 {
			l.log.Warn("ignoring unknown calculation rule fields",
				"team", id,
				"rule", r.Name,
				"fields", strings.Join(fields, ","))
		}
	}

	l.log.Debug("team configuration loaded",
		"team", id,
		"columns", len(cfg.DataFormat.Columns),
		"rules", len(cfg.CalculationRules))
	return &cfg, nil
}

// LoadAll loads every available team, in id order
func (l *Loader) LoadAll() ([]*TeamConfig, error) {
	ids, err := l.AvailableTeams()
	if err != nil {
		return nil, err
	}

	teams := make([]*TeamConfig, 0, len(ids))
	for _, id := range ids {
		cfg, err := l.LoadTeam(id)
		if err != nil {
			return nil, err
		}
		teams = append(teams, cfg)
	}
	return teams, nil
}

// LoadApp reads app.yaml. A missing file yields zero defaults.
func (l *Loader) LoadApp() (*AppConfig, error) {
	file := filepath.Join(l.dir, appFile)

	var cfg AppConfig
	if err := l.readYAML(file, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, &Error{File: file, Err: err}
	}
	return &cfg, nil
}

func (l *Loader) readYAML(file string, v any) error {
	bs, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(bs)) == 0 {
		return fmt.Errorf("file is empty")
	}
	if err := yaml.Unmarshal(bs, v); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}
	return nil
}
