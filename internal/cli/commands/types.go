package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/criteria/internal/cli/ui"
	"github.com/conduit-lang/criteria/internal/orm/contenttype"
)

func newTypesCommand(global *globalOptions) *cobra.Command {
	var reachable bool

	cmd := &cobra.Command{
		Use:   "types",
		Short: "List registered content types",
		Long: `List the content types of the content-types file with their
discriminator, table, reachability and searchable fields.

With --reachable=true or --reachable=false only the matching types are listed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(global, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer env.logger.Sync()

			snap := env.types.Snapshot()
			shapes := snap.All()
			if cmd.Flags().Changed("reachable") {
				shapes = snap.SubtypesMatching(contenttype.Reachable(reachable))
			}

			out := cmd.OutOrStdout()
			if len(shapes) == 0 {
				fmt.Fprint(out, ui.Warning("no content types match", global.noColor))
				return nil
			}

			table := ui.NewTable(out, global.noColor, "Name", "Discriminator", "Table", "Reachable", "Searchable")
			for _, s := range shapes {
				table.AddRow(s.Name, s.Discriminator, s.Table, yesNo(s.Reachable), strings.Join(s.SearchableFields(), ", "))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&reachable, "reachable", false, "Only list types whose reachable flag matches")

	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
