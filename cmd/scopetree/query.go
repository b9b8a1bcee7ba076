package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/scopetree"
)

// parseIntArg parses a positional argument as a non-negative integer.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// parsePosition parses <file> <line> <col>.
func parsePosition(args []string) (file string, line, col int, err error) {
	if file, err = resolveFilePath(args[0]); err != nil {
		return "", 0, 0, err
	}
	if line, err = parseIntArg(args[1], "line"); err != nil {
		return "", 0, 0, err
	}
	if col, err = parseIntArg(args[2], "col"); err != nil {
		return "", 0, 0, err
	}
	return file, line, col, nil
}

func (a *app) hierarchyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hierarchy <file> <line> <col>",
		Short: "Show the scopes enclosing a position and the names they declare",
		Long: "Builds the ascendant hierarchy at a position: the outermost scope at the root, each " +
			"scope's declarations in table order, and the next inner scope last. Lines and columns are 0-based.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, line, col, err := parsePosition(args)
			if err != nil {
				return a.outputError("hierarchy", err)
			}
			e, err := a.openIndex()
			if err != nil {
				return a.outputError("hierarchy", err)
			}
			defer e.Close()

			root, err := e.Query().ScopeHierarchyAt(file, line, col)
			if err != nil {
				return a.outputError("hierarchy", err)
			}
			if root == nil {
				return a.outputResult(CLIResult{Command: "hierarchy", Results: nil})
			}
			return a.outputResult(CLIResult{Command: "hierarchy", Results: toCLINode(root)})
		},
	}
}

func (a *app) findCmd() *cobra.Command {
	var (
		levels      bool
		suggestions int
	)
	cmd := &cobra.Command{
		Use:   "find <file> <line> <col> <value>",
		Short: "Search the hierarchy at a position for a scope or name",
		Long: "Depth-first search of the ascendant hierarchy for a node whose label equals value. " +
			"--depth is the search budget: with the default search a node at depth k needs a budget of " +
			"at least k+1; with --levels the budget counts levels below the root, so depth k needs k. " +
			"On a miss the closest labels are suggested.",
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, line, col, err := parsePosition(args[:3])
			if err != nil {
				return a.outputError("find", err)
			}
			value := args[3]

			e, err := a.openIndex()
			if err != nil {
				return a.outputError("find", err)
			}
			defer e.Close()

			q := e.Query()
			found, root, err := q.FindInHierarchy(file, line, col, value, a.cfg.MaxDepth, levels)
			if err != nil {
				return a.outputError("find", err)
			}
			res := CLIFind{Value: value}
			if found != nil {
				res.Found = true
				res.Path = found.Path()
				res.Depth = found.Depth()
			} else {
				for _, s := range q.Suggest(root, value, suggestions) {
					res.Suggestions = append(res.Suggestions, CLISuggestion(s))
				}
			}
			return a.outputResult(CLIResult{Command: "find", Results: res})
		},
	}
	cmd.Flags().Int("depth", 16, "search budget")
	cmd.Flags().BoolVar(&levels, "levels", false, "count --depth as levels below the root")
	cmd.Flags().IntVar(&suggestions, "suggestions", 5, "number of suggestions on a miss")
	return cmd
}

// pageFlags are shared by the listing commands.
type pageFlags struct {
	limit  int
	offset int
	sort   string
	order  string
}

func (p *pageFlags) register(cmd *cobra.Command, sortFields string) {
	cmd.Flags().IntVar(&p.limit, "limit", 50, "pagination limit (max 500)")
	cmd.Flags().IntVar(&p.offset, "offset", 0, "pagination offset")
	cmd.Flags().StringVar(&p.sort, "sort", "", "sort field: "+sortFields)
	cmd.Flags().StringVar(&p.order, "order", "asc", "sort order: asc|desc")
}

func (p *pageFlags) page() scopetree.Pagination {
	return scopetree.Pagination{Offset: p.offset, Limit: p.limit}
}

func (p *pageFlags) sorting() (scopetree.Sort, error) {
	s := scopetree.Sort{Field: scopetree.SortField(p.sort)}
	switch p.order {
	case "asc":
		s.Order = scopetree.Asc
	case "desc":
		s.Order = scopetree.Desc
	default:
		return s, fmt.Errorf("invalid order %q: must be asc or desc", p.order)
	}
	return s, nil
}

func (a *app) filesCmd() *cobra.Command {
	var (
		pf       pageFlags
		prefix   string
		language string
	)
	cmd := &cobra.Command{
		Use:   "files",
		Short: "List indexed files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sort, err := pf.sorting()
			if err != nil {
				return a.outputError("files", err)
			}
			if prefix != "" {
				if prefix, err = resolveFilePath(prefix); err != nil {
					return a.outputError("files", err)
				}
			}
			e, err := a.openIndex()
			if err != nil {
				return a.outputError("files", err)
			}
			defer e.Close()

			res, err := e.Query().Files(prefix, language, sort, pf.page())
			if err != nil {
				return a.outputError("files", err)
			}
			files := make([]CLIFile, 0, len(res.Items))
			for _, f := range res.Items {
				files = append(files, toCLIFile(f))
			}
			total := res.TotalCount
			return a.outputResult(CLIResult{Command: "files", Results: files, TotalCount: &total})
		},
	}
	pf.register(cmd, "file|language|line_count")
	cmd.Flags().StringVar(&prefix, "prefix", "", "only files under this directory")
	cmd.Flags().StringVar(&language, "language", "", "only files of this language")
	return cmd
}

func (a *app) declarationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "declarations <scope-id>",
		Short: "List the declaration table of a scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return a.outputError("declarations", fmt.Errorf("invalid scope-id %q: %w", args[0], err))
			}
			e, err := a.openIndex()
			if err != nil {
				return a.outputError("declarations", err)
			}
			defer e.Close()

			decls, err := e.Query().DeclarationsInScope(id)
			if err != nil {
				return a.outputError("declarations", err)
			}
			out := make([]CLIDeclaration, 0, len(decls))
			for _, d := range decls {
				out = append(out, toCLIDeclaration(d))
			}
			return a.outputResult(CLIResult{Command: "declarations", Results: out})
		},
	}
}

func (a *app) searchCmd() *cobra.Command {
	var (
		pf     pageFlags
		kinds  string
		prefix string
		unused bool
	)
	cmd := &cobra.Command{
		Use:   "search <pattern>",
		Short: "Search declarations by name",
		Long: "Matches declaration names against a glob (* and ?). A pattern without wildcards " +
			"matches as a substring.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sort, err := pf.sorting()
			if err != nil {
				return a.outputError("search", err)
			}
			filter := scopetree.DeclarationFilter{Kinds: splitList(kinds), Unused: unused}
			if prefix != "" {
				abs, err := resolveFilePath(prefix)
				if err != nil {
					return a.outputError("search", err)
				}
				filter.PathPrefix = &abs
			}
			e, err := a.openIndex()
			if err != nil {
				return a.outputError("search", err)
			}
			defer e.Close()

			res, err := e.Query().SearchDeclarations(args[0], filter, sort, pf.page())
			if err != nil {
				return a.outputError("search", err)
			}
			out := make([]CLIDeclaration, 0, len(res.Items))
			for _, d := range res.Items {
				out = append(out, toCLIDeclarationResult(d))
			}
			total := res.TotalCount
			return a.outputResult(CLIResult{Command: "search", Results: out, TotalCount: &total})
		},
	}
	pf.register(cmd, "name|kind|file|use_count")
	cmd.Flags().StringVar(&kinds, "kinds", "", "comma-separated declaration kinds")
	cmd.Flags().StringVar(&prefix, "prefix", "", "only declarations in files under this directory")
	cmd.Flags().BoolVar(&unused, "unused", false, "only declarations that are never used")
	return cmd
}

func (a *app) summaryCmd() *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize the index per language",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.openIndex()
			if err != nil {
				return a.outputError("summary", err)
			}
			defer e.Close()

			s, err := e.Query().Summary(top)
			if err != nil {
				return a.outputError("summary", err)
			}
			out := CLISummary{
				Languages:       make([]CLILanguage, 0, len(s.Languages)),
				Unresolved:      s.Unresolved,
				IndexedAt:       s.IndexedAt,
				TopDeclarations: make([]CLIDeclaration, 0, len(s.TopDeclarations)),
			}
			for _, l := range s.Languages {
				out.Languages = append(out.Languages, CLILanguage{
					Language:     l.Language,
					Files:        l.FileCount,
					Lines:        l.LineCount,
					Scopes:       l.ScopeCount,
					Declarations: l.DeclarationCount,
					Kinds:        l.KindCounts,
				})
			}
			for _, d := range s.TopDeclarations {
				out.TopDeclarations = append(out.TopDeclarations, toCLIDeclarationResult(d))
			}
			return a.outputResult(CLIResult{Command: "summary", Results: out})
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "number of most used declarations to list")
	return cmd
}
