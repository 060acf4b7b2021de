package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/bridge"
)

func NewExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <channel>",
		Short: "Render a channel as markdown, messages and notes interleaved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			export, err := bridge.ExportChannel(ctx.DB(bridge.DBName), args[0])
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, export)
			}
			if !ctx.Quiet {
				fmt.Fprint(cmd.OutOrStdout(), bridge.RenderExport(export))
			}
			return nil
		},
	}
}
