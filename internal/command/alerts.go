package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/bridge"
	"github.com/spacehq/space/internal/types"
)

func NewAlertsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "List unread alert-priority messages across channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			identity, err := ctx.RequireIdentity()
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			alerts, err := bridge.GetAlerts(ctx.DB(bridge.DBName), identity)
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				if alerts == nil {
					alerts = []types.Alert{}
				}
				return printJSON(cmd, alerts)
			}
			if ctx.Quiet {
				return nil
			}

			out := cmd.OutOrStdout()
			if len(alerts) == 0 {
				fmt.Fprintln(out, "no unread alerts")
				return nil
			}
			for _, alert := range alerts {
				fmt.Fprintf(out, "[%s] #%s %s: %s\n",
					stamp(alert.CreatedAt), alert.ChannelName, alert.AgentID, alert.Content)
			}
			return nil
		},
	}
}
