package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jward/scopetree"
	"github.com/jward/scopetree/internal/config"
)

func main() {
	a := newApp(os.Stdout, os.Stderr)
	if err := a.root().Execute(); err != nil {
		if !a.errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

// app carries per-invocation state so that tests can run commands in
// process.
type app struct {
	stdout io.Writer
	stderr io.Writer

	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	log     *logrus.Logger

	// errorHandled is set by outputError so main doesn't double-print.
	errorHandled bool
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, v: config.New()}
}

func (a *app) root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scopetree",
		Short: "Browse lexical scopes and name declarations of source files",
		Long: "scopetree indexes source code with tree-sitter into a SQLite database and shows, " +
			"for any position, the chain of enclosing scopes with the names each declares.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: .scopetree.{yaml,toml,json} in . or $HOME)")
	pf.String("db", ".scopetree.db", "database path")
	pf.String("format", "json", "output format: json|text")
	pf.String("log-level", "info", "log level: debug|info|warn|error")

	cmd.AddCommand(
		a.indexCmd(),
		a.watchCmd(),
		a.hierarchyCmd(),
		a.findCmd(),
		a.filesCmd(),
		a.declarationsCmd(),
		a.searchCmd(),
		a.summaryCmd(),
		a.scriptCmd(),
	)
	return cmd
}

// initConfig merges the config file, SCOPETREE_* variables and flags.
func (a *app) initConfig(cmd *cobra.Command) error {
	if err := config.BindFlags(a.v, cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	if f := cmd.Flags().Lookup("depth"); f != nil {
		if err := a.v.BindPFlag(config.KeyMaxDepth, f); err != nil {
			return fmt.Errorf("binding flags: %w", err)
		}
	}
	cfg, err := config.Load(a.v, a.cfgFile, config.DefaultDirs()...)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = cfg.Logger(a.stderr)
	if cfg.File != "" {
		a.log.WithField("file", cfg.File).Debug("using config")
	}
	return nil
}

// openEngine opens the configured database with the configured options.
func (a *app) openEngine(opts ...scopetree.Option) (*scopetree.Engine, error) {
	base := []scopetree.Option{
		scopetree.WithLanguages(a.cfg.Languages...),
		scopetree.WithExclude(a.cfg.Exclude...),
		scopetree.WithParallel(a.cfg.Parallel),
		scopetree.WithLogger(a.log),
		scopetree.WithDebounce(a.cfg.WatchDebounce),
	}
	if a.cfg.Workers > 0 {
		base = append(base, scopetree.WithWorkers(a.cfg.Workers))
	}
	if dir := filepath.Dir(a.cfg.DB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	e, err := scopetree.New(a.cfg.DB, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	return e, nil
}

// openIndex opens an existing database for querying.
func (a *app) openIndex() (*scopetree.Engine, error) {
	if _, err := os.Stat(a.cfg.DB); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'scopetree index' first)", a.cfg.DB)
	}
	return a.openEngine()
}

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// outputResult writes result to stdout in the selected format.
func (a *app) outputResult(result CLIResult) error {
	if a.cfg.Format == "text" {
		return a.outputResultText(result)
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError reports err in the selected format and returns it so the
// command exits non-zero.
func (a *app) outputError(command string, err error) error {
	a.errorHandled = true
	if a.cfg != nil && a.cfg.Format == "json" {
		if encErr := a.outputResult(CLIResult{Command: command, Error: err.Error()}); encErr != nil {
			return encErr
		}
		return err
	}
	fmt.Fprintf(a.stderr, "Error: %s\n", err)
	return err
}

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
