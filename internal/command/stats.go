package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/bridge"
	"github.com/spacehq/space/internal/knowledge"
	"github.com/spacehq/space/internal/memory"
	"github.com/spacehq/space/internal/registry"
	"github.com/spacehq/space/internal/stats"
)

func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Per-agent activity across every store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			collected, err := stats.Collect(statsStores(ctx))
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				if collected == nil {
					collected = []stats.AgentStats{}
				}
				return printJSON(cmd, collected)
			}
			if ctx.Quiet {
				return nil
			}

			out := cmd.OutOrStdout()
			if len(collected) == 0 {
				fmt.Fprintln(out, "no activity")
				return nil
			}
			fmt.Fprintf(out, "%-20s %6s %6s %6s %7s %7s\n",
				"identity", "msgs", "mems", "knows", "events", "spawns")
			for _, entry := range collected {
				fmt.Fprintf(out, "%-20s %6d %6d %6d %7d %7d\n",
					entry.Identity, entry.Messages, entry.Memories, entry.Know, entry.Events, entry.Spawns)
			}
			return nil
		},
	}
}

// statsStores adapts the CLI context to the stats store bundle.
func statsStores(ctx *Context) stats.Stores {
	return stats.Stores{
		Registry:  ctx.DB(registry.DBName),
		Bridge:    ctx.DB(bridge.DBName),
		Memory:    ctx.DB(memory.DBName),
		Knowledge: ctx.DB(knowledge.DBName),
		Journal:   ctx.Journal,
		Workspace: ctx.Workspace,
	}
}
