package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/scopetree/scripts"
)

func (a *app) scriptCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "script <name|path> [key=value ...]",
		Short: "Run a report script over the index",
		Long: "Runs a bundled report (" + strings.Join(scripts.Reports(), ", ") + ") or a .risor file " +
			"from disk. Rows passed to emit are printed. key=value arguments are available to the " +
			"script as args; integer values are converted.",
		Args: func(cmd *cobra.Command, args []string) error {
			if list {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				return a.outputResult(CLIResult{Command: "script", Results: scripts.Reports()})
			}
			scriptArgs, err := parseScriptArgs(args[1:])
			if err != nil {
				return a.outputError("script", err)
			}
			e, err := a.openIndex()
			if err != nil {
				return a.outputError("script", err)
			}
			defer e.Close()

			target := args[0]
			var rows []map[string]any
			if isScriptFile(target) {
				path, err := resolveFilePath(target)
				if err != nil {
					return a.outputError("script", err)
				}
				rows, err = e.ReportFile(cmd.Context(), path, scriptArgs)
				if err != nil {
					return a.outputError("script", err)
				}
			} else {
				rows, err = e.Report(cmd.Context(), target, scriptArgs)
				if err != nil {
					return a.outputError("script", err)
				}
			}
			if rows == nil {
				rows = []map[string]any{}
			}
			total := len(rows)
			return a.outputResult(CLIResult{Command: "script", Results: rows, TotalCount: &total})
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list the bundled reports")
	return cmd
}

// isScriptFile reports whether target names a file on disk rather than a
// bundled report.
func isScriptFile(target string) bool {
	if strings.HasSuffix(target, ".risor") || strings.ContainsRune(target, os.PathSeparator) {
		return true
	}
	info, err := os.Stat(target)
	return err == nil && !info.IsDir()
}

func parseScriptArgs(kvs []string) (map[string]any, error) {
	out := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid script argument %q: want key=value", kv)
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			out[k] = n
			continue
		}
		out[k] = v
	}
	return out, nil
}
