package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
)

// textWidth is the wrap column for free-form text output.
const textWidth = 100

// formatNodeText renders a hierarchy as an indented outline, two spaces per
// level. Scopes end with a colon.
func formatNodeText(w io.Writer, n *CLINode) {
	var b strings.Builder
	writeNode(&b, n)
	fmt.Fprint(w, b.String())
}

func writeNode(b *strings.Builder, n *CLINode) {
	line := n.Label
	if n.Type == "scope" {
		line += ":"
	} else if n.Kind != "" {
		line += " (" + n.Kind + ")"
	}
	line = fmt.Sprintf("%s  %d:%d\n", line, n.StartLine, n.StartCol)
	b.WriteString(indent.String(line, uint(2*n.Depth)))
	for _, c := range n.Children {
		writeNode(b, c)
	}
}

func formatFindText(w io.Writer, f CLIFind) {
	if f.Found {
		fmt.Fprintf(w, "found %q at depth %d: %s\n", f.Value, f.Depth, strings.Join(f.Path, " > "))
		return
	}
	fmt.Fprintf(w, "%q not found\n", f.Value)
	if len(f.Suggestions) == 0 {
		return
	}
	labels := make([]string, 0, len(f.Suggestions))
	for _, s := range f.Suggestions {
		labels = append(labels, fmt.Sprintf("%s (depth %d)", s.Label, s.Depth))
	}
	fmt.Fprintln(w, wrapIndented("did you mean: "+strings.Join(labels, ", "), 2))
}

func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATH\tLANGUAGE\tLINES")
	for _, f := range files {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", f.ID, f.Path, f.Language, f.LineCount)
	}
	tw.Flush()
}

func formatDeclarationsText(w io.Writer, decls []CLIDeclaration) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tSCOPE\tPOS\tUSES")
	for _, d := range decls {
		scope := d.Scope
		if scope == "" {
			scope = fmt.Sprintf("#%d", d.ScopeID)
		}
		uses := "-"
		if d.UseCount != nil {
			uses = fmt.Sprint(*d.UseCount)
		}
		pos := fmt.Sprintf("%d:%d", d.StartLine, d.StartCol)
		if d.File != "" {
			pos = d.File + ":" + pos
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Kind, scope, pos, uses)
	}
	tw.Flush()
}

func formatSummaryText(w io.Writer, s CLISummary) {
	fmt.Fprintln(w, "Index Summary")
	fmt.Fprintln(w, "=============")
	if s.IndexedAt != "" {
		fmt.Fprintf(w, "Indexed at: %s\n", s.IndexedAt)
	}
	fmt.Fprintf(w, "Unresolved names: %d\n\n", s.Unresolved)

	for _, l := range s.Languages {
		fmt.Fprintf(w, "%s: %d files, %d lines, %d scopes, %d declarations\n",
			l.Language, l.Files, l.Lines, l.Scopes, l.Declarations)
		kinds := make([]string, 0, len(l.Kinds))
		for k := range l.Kinds {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		parts := make([]string, 0, len(kinds))
		for _, k := range kinds {
			parts = append(parts, fmt.Sprintf("%s=%d", k, l.Kinds[k]))
		}
		if len(parts) > 0 {
			fmt.Fprintln(w, wrapIndented(strings.Join(parts, " "), 2))
		}
	}

	if len(s.TopDeclarations) > 0 {
		fmt.Fprintln(w, "\nMost used declarations:")
		for _, d := range s.TopDeclarations {
			uses := 0
			if d.UseCount != nil {
				uses = *d.UseCount
			}
			fmt.Fprintf(w, "  %s (%s) - %d uses\n", d.Name, d.Kind, uses)
		}
	}
}

func formatIndexText(w io.Writer, s IndexSummary) {
	fmt.Fprintf(w, "Indexed %s in %dms\n", s.Root, s.ElapsedMS)
	fmt.Fprintf(w, "Database: %s\n", s.DB)
	fmt.Fprintf(w, "%d files, %d scopes, %d declarations, %d occurrences (%d unresolved)\n",
		s.Files, s.Scopes, s.Declarations, s.Occurrences, s.Unresolved)
}

// formatRowsText prints report rows as key=value lines, keys sorted, with
// long rows wrapped under the first line.
func formatRowsText(w io.Writer, rows []map[string]any) {
	for _, row := range rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, row[k]))
		}
		fmt.Fprintln(w, strings.TrimLeft(wrapIndented(strings.Join(parts, " "), 2), " "))
	}
}

// wrapIndented word-wraps s and indents every line by n spaces.
func wrapIndented(s string, n uint) string {
	return indent.String(wordwrap.String(s, textWidth-int(n)), n)
}

// outputResultText dispatches to the text formatter for result's type.
func (a *app) outputResultText(result CLIResult) error {
	w := a.stdout
	if result.Error != "" {
		fmt.Fprintf(a.stderr, "Error: %s\n", result.Error)
		return nil
	}

	switch v := result.Results.(type) {
	case *CLINode:
		formatNodeText(w, v)
	case CLIFind:
		formatFindText(w, v)
	case []CLIFile:
		formatFilesText(w, v)
	case []CLIDeclaration:
		formatDeclarationsText(w, v)
	case CLISummary:
		formatSummaryText(w, v)
	case IndexSummary:
		formatIndexText(w, v)
	case []map[string]any:
		formatRowsText(w, v)
	case []string:
		for _, s := range v {
			fmt.Fprintln(w, s)
		}
	case nil:
		// No output for nil results (e.g. a position outside every scope).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	if result.TotalCount != nil {
		count := *result.TotalCount
		shown := resultLen(result.Results)
		if shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}
	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLIFile:
		return len(r)
	case []CLIDeclaration:
		return len(r)
	case []map[string]any:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}
