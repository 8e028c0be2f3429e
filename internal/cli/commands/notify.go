package commands

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/criteria/internal/cli/ui"
	"github.com/conduit-lang/criteria/internal/orm/contenttype"
)

func newNotifyCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "notify",
		Short: "Announce a content-type change to running compilers",
		Long: `Publish a reload message on the configured Redis channel. Every
process watching the channel reloads its content types and swaps the new
snapshot in; compilations already running finish on the old one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return report(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), global.noColor), err)
			}
			if cfg.Redis.Addr == "" {
				return report(cmd.ErrOrStderr(), ui.ConfigError("redis.addr is required to notify", global.noColor),
					errors.New("redis.addr is not set"))
			}

			client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
			defer client.Close()

			if err := contenttype.NotifyReload(cmd.Context(), client, cfg.Redis.Channel); err != nil {
				return fmt.Errorf("failed to notify %s: %w", cfg.Redis.Addr, err)
			}

			out := cmd.OutOrStdout()
			ui.WriteSuccess(out, "reload announced", global.noColor)
			table := ui.NewKeyValueTable(out, global.noColor)
			table.AddRow("redis", cfg.Redis.Addr)
			table.AddRow("channel", cfg.Redis.Channel)
			table.Render()
			return nil
		},
	}
}
