package commands

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/criteria/internal/cli/ui"
	"github.com/conduit-lang/criteria/internal/orm/criteria"
	"github.com/conduit-lang/criteria/internal/orm/exec"
	"github.com/conduit-lang/criteria/internal/orm/filter"
	"github.com/conduit-lang/criteria/internal/orm/query"
	"github.com/conduit-lang/criteria/internal/orm/schema"
)

// ruleKeywords are criteria keys claimed by rules rather than resolved as
// properties, offered as suggestions next to the resource's own properties
var ruleKeywords = []string{"reachable", "nodeType", "tagGroup", "not", "intersect", "copyrightValid"}

type compileOptions struct {
	format  string
	where   []string
	execute bool
}

func newCompileCommand(global *globalOptions) *cobra.Command {
	opts := &compileOptions{}

	cmd := &cobra.Command{
		Use:   "compile RESOURCE [CRITERIA_FILE]",
		Short: "Compile criteria against a resource",
		Long: `Compile a criteria map against a resource of the content graph.

Criteria come from a YAML or JSON file ("-" reads stdin) and from --where
flags; a --where value is parsed as YAML, so true, 3, null and [a, b] keep
their types. Flags win over the file.

Output formats:
  text   joins, predicates and named parameters
  sql    the SELECT of the distinct root rows, in the configured dialect
  count  the COUNT of the distinct root rows`,
		Example: `  # Visible pages tagged news or sport
  criteriac compile NodesSources -w node.visible=true -w 'tagGroup=[[news, sport]]'

  # Render SQL from a criteria file
  criteriac compile NodesSources criteria.yaml --format sql

  # Run the query against database.url
  criteriac compile NodesSources criteria.yaml --execute`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, global, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, sql or count")
	cmd.Flags().StringArrayVarP(&opts.where, "where", "w", nil, "Criterion as key=value (repeatable)")
	cmd.Flags().BoolVarP(&opts.execute, "execute", "x", false, "Run the query against database.url")

	return cmd
}

func runCompile(cmd *cobra.Command, global *globalOptions, opts *compileOptions, args []string) error {
	switch opts.format {
	case "text", "sql", "count":
	default:
		return fmt.Errorf("unknown format %q (want text, sql or count)", opts.format)
	}
	if opts.execute && opts.format == "text" {
		opts.format = "sql"
	}

	stderr := cmd.ErrOrStderr()
	env, err := loadEnvironment(global, stderr)
	if err != nil {
		return err
	}
	defer env.logger.Sync()

	raw := map[string]any{}
	if len(args) == 2 {
		if raw, err = readCriteriaFile(args[1], cmd.InOrStdin()); err != nil {
			return err
		}
	}
	for _, w := range opts.where {
		key, value, err := parseWhere(w)
		if err != nil {
			return err
		}
		raw[key] = value
	}

	crit, err := criteria.FromMap(raw)
	if err != nil {
		return report(stderr, ui.CriteriaError(err.Error(), global.noColor), err)
	}

	compiler := env.compiler()
	resources, err := compiler.Resources()
	if err != nil {
		return report(stderr, contentTypesError(err, global.noColor), err)
	}

	resource := args[0]
	q, err := compiler.Compile(cmd.Context(), resource, crit)
	if err != nil {
		return report(stderr, describeCompileError(resources, resource, err, global.noColor), err)
	}

	if opts.execute {
		return runQuery(cmd, env, q, opts.format == "count", global.noColor)
	}

	out := cmd.OutOrStdout()
	if opts.format == "text" {
		fmt.Fprint(out, q.String())
		return nil
	}

	flavor, err := query.FlavorFor(env.cfg.Dialect)
	if err != nil {
		return err
	}
	render := query.Render
	if opts.format == "count" {
		render = query.RenderCount
	}
	stmt, params, err := render(q, flavor)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, stmt)
	for i, p := range params {
		fmt.Fprintf(out, "-- %d: %s\n", i+1, formatValue(p))
	}
	return nil
}

func runQuery(cmd *cobra.Command, env *environment, q *query.CompiledQuery, count bool, noColor bool) error {
	if env.cfg.Database.URL == "" {
		return report(cmd.ErrOrStderr(), ui.ConfigError("database.url is required with --execute", noColor),
			errors.New("database.url is not set"))
	}

	db, err := sql.Open(env.cfg.DriverName(), env.cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	executor, err := exec.NewExecutor(db, env.cfg.Dialect, env.logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if count {
		n, err := executor.Count(cmd.Context(), q)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, n)
		return nil
	}

	records, err := executor.Find(cmd.Context(), q)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprint(out, ui.Warning("no rows match", noColor))
		return nil
	}

	columns := make([]string, 0, len(records[0]))
	for col := range records[0] {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	table := ui.NewTable(out, noColor, columns...)
	for _, record := range records {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = formatValue(record[col])
		}
		table.AddRow(cells...)
	}
	table.Render()
	fmt.Fprintf(out, "\n%d rows\n", table.Len())
	return nil
}

// readCriteriaFile reads a YAML or JSON criteria map; "-" reads in
func readCriteriaFile(path string, in io.Reader) (map[string]any, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read criteria: %w", err)
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse criteria %s: %w", path, err)
	}
	return raw, nil
}

// parseWhere splits key=value and decodes the value as YAML. An empty
// value is null.
func parseWhere(s string) (string, any, error) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, fmt.Errorf("invalid --where %q: expected key=value", s)
	}

	var decoded any
	if err := yaml.Unmarshal([]byte(value), &decoded); err != nil {
		return key, value, nil
	}
	return key, decoded, nil
}

// describeCompileError formats a compilation failure with suggestions
func describeCompileError(schemas *schema.Registry, resource string, err error, noColor bool) string {
	if errors.Is(err, schema.ErrUnknownResource) {
		return ui.ResourceNotFoundError(resource, ui.FindSimilar(resource, schemas.List(), nil), noColor)
	}

	var unknown *schema.UnknownPropertyError
	if errors.As(err, &unknown) {
		var candidates []string
		if owner, ok := schemas.Get(unknown.Resource); ok {
			candidates = propertyNames(schemas, owner)
		}
		candidates = append(candidates, ruleKeywords...)
		return ui.PropertyNotFoundError(unknown.Resource, unknown.Segment,
			ui.FindSimilar(unknown.Segment, candidates, nil), noColor)
	}

	if filter.IsClientError(err) {
		return ui.CriteriaError(err.Error(), noColor)
	}
	return ui.FormatError(ui.ErrorOptions{
		Context: "compilation failed",
		Problem: err.Error(),
		NoColor: noColor,
	})
}

// propertyNames lists the fields and associations of r, plus the fields
// reachable through its content-type extensions
func propertyNames(schemas *schema.Registry, r *schema.ResourceSchema) []string {
	names := make([]string, 0, len(r.Fields)+len(r.Relationships))
	for name := range r.Fields {
		names = append(names, name)
	}
	for name := range r.Relationships {
		names = append(names, name)
	}
	for _, ext := range r.Extensions {
		if _, target, err := schemas.Target(r, ext); err == nil {
			for name := range target.Fields {
				if name != target.PrimaryKey {
					names = append(names, name)
				}
			}
		}
	}
	sort.Strings(names)
	return names
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return t.Format(time.RFC3339)
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
