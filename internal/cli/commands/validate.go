package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/criteria/internal/cli/ui"
)

func newValidateCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the resource schema and content types",
		Long: `Load the resource schema and the content-types file, check that every
association targets a declared resource and that every content type maps
onto a polymorphic resource, and print a summary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(global, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer env.logger.Sync()

			if _, err := env.compiler().Resources(); err != nil {
				return report(cmd.ErrOrStderr(), contentTypesError(err, global.noColor), err)
			}

			out := cmd.OutOrStdout()
			table := ui.NewTable(out, global.noColor, "Resource", "Table", "Fields", "Relationships", "Polymorphic")
			for _, name := range env.schemas.List() {
				r, _ := env.schemas.Get(name)
				table.AddRow(r.Name, r.TableName, strconv.Itoa(len(r.Fields)),
					strconv.Itoa(len(r.Relationships)), yesNo(r.IsPolymorphic()))
			}
			table.Render()
			fmt.Fprintln(out)

			ui.WriteSuccess(out, fmt.Sprintf("%d resources and %d content types are valid",
				env.schemas.Count(), env.types.Snapshot().Len()), global.noColor)
			return nil
		},
	}
}

// contentTypesError reports content types that cannot be mapped onto the schema
func contentTypesError(err error, noColor bool) string {
	return ui.FormatError(ui.ErrorOptions{
		Context:      "invalid content types",
		Problem:      "Content types do not fit the resource schema.",
		Detail:       err.Error(),
		HelpCommands: []string{"Check the schema: criteriac validate"},
		NoColor:      noColor,
	})
}
