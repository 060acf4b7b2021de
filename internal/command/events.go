package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/events"
	"github.com/spacehq/space/internal/types"
)

func NewEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Query the append-only journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			source, _ := cmd.Flags().GetString("source")
			eventType, _ := cmd.Flags().GetString("type")
			agent, _ := cmd.Flags().GetString("agent")
			limit, _ := cmd.Flags().GetInt("limit")

			found, err := ctx.Journal.Query(events.Filter{
				Source:  source,
				Type:    eventType,
				AgentID: agent,
				Limit:   limit,
			})
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				if found == nil {
					found = []types.Event{}
				}
				return printJSON(cmd, found)
			}
			if ctx.Quiet {
				return nil
			}

			out := cmd.OutOrStdout()
			if len(found) == 0 {
				fmt.Fprintln(out, "no events")
				return nil
			}
			for _, event := range found {
				who := "-"
				if event.AgentID != nil {
					who = *event.AgentID
				}
				data := ""
				if event.Data != nil {
					data = "  " + truncate(*event.Data, 60)
				}
				fmt.Fprintf(out, "[%s] %s/%s %s%s\n",
					stamp(event.Timestamp), event.Source, event.EventType, who, data)
			}
			return nil
		},
	}

	cmd.Flags().String("source", "", "filter by owning subsystem")
	cmd.Flags().String("type", "", "filter by event type")
	cmd.Flags().String("agent", "", "filter by agent id or identity")
	cmd.Flags().Int("limit", 20, "cap results (0 = all)")
	return cmd
}
