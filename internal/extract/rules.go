package extract

// scopeRule describes a node type that opens a lexical scope.
type scopeRule struct {
	kind      string
	nameField string
}

type declMode int

const (
	declFields   declMode = iota // names under the rule's fields
	declParams                   // every named child is a parameter
	declRange                    // Go range clause, only with :=
	declGoImport                 // import_spec alias or path base
	declPyImport                 // import / from-import names and aliases
	declJSImport                 // default, namespace and named imports
)

// declRule describes a node type that declares names.
type declRule struct {
	kind   string
	mode   declMode
	fields []string
	// inner declares into the scope the node itself opens instead of the
	// scope enclosing it.
	inner bool
}

// rules is the per-language table driving the walker.
type rules struct {
	scopes map[string]scopeRule
	decls  map[string]declRule

	// idents are node types counted as occurrences.
	idents map[string]bool
	// names are node types that may be bound by a declaration.
	names map[string]bool
	// lists are containers whose bindable children are all declared.
	lists map[string]bool
	// unwrap follows a field to find the bound name (x in x = 1).
	unwrap map[string]string

	// folds are block types that share the scope of a scope-opening parent
	// when they sit in one of foldFields.
	folds      map[string]bool
	foldFields map[string]bool

	// skip drops whole subtrees; skipFields drops "parent.field" children.
	skip       map[string]bool
	skipFields map[string]bool

	// hoisted declaration kinds are visible before their position.
	hoisted map[string]bool
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

var goRules = &rules{
	scopes: map[string]scopeRule{
		"source_file":                 {kind: "file"},
		"function_declaration":        {kind: "function", nameField: "name"},
		"method_declaration":          {kind: "method", nameField: "name"},
		"func_literal":                {kind: "function"},
		"block":                       {kind: "block"},
		"if_statement":                {kind: "if"},
		"for_statement":               {kind: "for"},
		"expression_switch_statement": {kind: "switch"},
		"type_switch_statement":       {kind: "switch"},
		"select_statement":            {kind: "select"},
		"expression_case":             {kind: "case"},
		"type_case":                   {kind: "case"},
		"default_case":                {kind: "case"},
		"communication_case":          {kind: "case"},
	},
	decls: map[string]declRule{
		"function_declaration":           {kind: "function", fields: []string{"name"}},
		"parameter_declaration":          {kind: "parameter", fields: []string{"name"}},
		"variadic_parameter_declaration": {kind: "parameter", fields: []string{"name"}},
		"type_parameter_declaration":     {kind: "type_parameter", fields: []string{"name"}},
		"short_var_declaration":          {kind: "variable", fields: []string{"left"}},
		"var_spec":                       {kind: "variable", fields: []string{"name"}},
		"const_spec":                     {kind: "constant", fields: []string{"name"}},
		"type_spec":                      {kind: "type", fields: []string{"name"}},
		"type_alias":                     {kind: "type", fields: []string{"name"}},
		"range_clause":                   {kind: "variable", mode: declRange, fields: []string{"left"}},
		"type_switch_statement":          {kind: "variable", fields: []string{"alias"}, inner: true},
		"import_spec":                    {kind: "import", mode: declGoImport},
	},
	idents:     set("identifier", "type_identifier", "package_identifier"),
	names:      set("identifier", "type_identifier", "package_identifier"),
	lists:      set("expression_list"),
	unwrap:     map[string]string{},
	folds:      set("block"),
	foldFields: set("body", "consequence"),
	skip:       set("package_clause"),
	skipFields: set(),
	hoisted:    set("function", "type", "import", "constant"),
}

var pythonRules = &rules{
	scopes: map[string]scopeRule{
		"module":                   {kind: "module"},
		"function_definition":      {kind: "function", nameField: "name"},
		"class_definition":         {kind: "class", nameField: "name"},
		"lambda":                   {kind: "lambda"},
		"list_comprehension":       {kind: "comprehension"},
		"set_comprehension":        {kind: "comprehension"},
		"dictionary_comprehension": {kind: "comprehension"},
		"generator_expression":     {kind: "comprehension"},
	},
	decls: map[string]declRule{
		"function_definition":   {kind: "function", fields: []string{"name"}},
		"class_definition":      {kind: "class", fields: []string{"name"}},
		"parameters":            {kind: "parameter", mode: declParams},
		"lambda_parameters":     {kind: "parameter", mode: declParams},
		"assignment":            {kind: "variable", fields: []string{"left"}},
		"for_statement":         {kind: "variable", fields: []string{"left"}},
		"for_in_clause":         {kind: "iterator", fields: []string{"left"}},
		"named_expression":      {kind: "variable", fields: []string{"name"}},
		"import_statement":      {kind: "import", mode: declPyImport},
		"import_from_statement": {kind: "import", mode: declPyImport},
	},
	idents: set("identifier"),
	names:  set("identifier"),
	lists: set("pattern_list", "tuple_pattern", "list_pattern",
		"list_splat_pattern", "dictionary_splat_pattern", "typed_parameter"),
	unwrap: map[string]string{
		"default_parameter":       "name",
		"typed_default_parameter": "name",
	},
	folds:      set(),
	foldFields: set(),
	skip:       set("future_import_statement"),
	skipFields: set("attribute.attribute", "keyword_argument.name",
		"import_statement.name", "import_from_statement.name", "import_from_statement.module_name"),
	hoisted: set("function", "class", "import", "iterator"),
}

var javascriptRules = &rules{
	scopes: map[string]scopeRule{
		"program":                        {kind: "program"},
		"function_declaration":           {kind: "function", nameField: "name"},
		"generator_function_declaration": {kind: "function", nameField: "name"},
		"function":                       {kind: "function", nameField: "name"},
		"function_expression":            {kind: "function", nameField: "name"},
		"generator_function":             {kind: "function", nameField: "name"},
		"arrow_function":                 {kind: "function"},
		"method_definition":              {kind: "method", nameField: "name"},
		"class_declaration":              {kind: "class", nameField: "name"},
		"class":                          {kind: "class", nameField: "name"},
		"statement_block":                {kind: "block"},
		"for_statement":                  {kind: "for"},
		"for_in_statement":               {kind: "for"},
		"catch_clause":                   {kind: "catch"},
	},
	decls: map[string]declRule{
		"function_declaration":           {kind: "function", fields: []string{"name"}},
		"generator_function_declaration": {kind: "function", fields: []string{"name"}},
		"class_declaration":              {kind: "class", fields: []string{"name"}},
		"variable_declarator":            {kind: "variable", fields: []string{"name"}},
		"formal_parameters":              {kind: "parameter", mode: declParams},
		"arrow_function":                 {kind: "parameter", fields: []string{"parameter"}, inner: true},
		"for_in_statement":               {kind: "variable", fields: []string{"left"}, inner: true},
		"catch_clause":                   {kind: "parameter", fields: []string{"parameter"}, inner: true},
		"import_statement":               {kind: "import", mode: declJSImport},
	},
	idents: set("identifier", "shorthand_property_identifier"),
	names:  set("identifier", "shorthand_property_identifier_pattern"),
	lists:  set("array_pattern", "object_pattern", "rest_pattern"),
	unwrap: map[string]string{
		"pair_pattern":              "value",
		"assignment_pattern":        "left",
		"object_assignment_pattern": "left",
	},
	folds:      set("statement_block"),
	foldFields: set("body"),
	skip:       set(),
	skipFields: set("import_specifier.name", "export_specifier.name", "export_specifier.alias"),
	hoisted:    set("function", "class", "import"),
}

var langRules = map[string]*rules{
	"go":         goRules,
	"python":     pythonRules,
	"javascript": javascriptRules,
}

func rulesFor(lang string) (*rules, bool) {
	r, ok := langRules[lang]
	return r, ok
}
