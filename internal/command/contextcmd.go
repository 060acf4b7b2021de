package command

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/stats"
)

func NewContextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "context <topic>",
		Short: "Everything known about a topic: timeline, state, canon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			result, err := stats.Context(statsStores(ctx), args[0], ctx.Identity)
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, result)
			}
			if ctx.Quiet {
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "context: %s\n", result.Topic)

			if len(result.Timeline) > 0 {
				fmt.Fprintln(out, "\ntimeline (newest first):")
				for _, item := range result.Timeline {
					who := item.AgentID
					if who == "" {
						who = "-"
					}
					fmt.Fprintf(out, "  [%s] %-9s %s  %s\n",
						stamp(item.Timestamp), item.Kind, who, truncate(item.Content, 70))
				}
			}

			if len(result.CurrentState) > 0 {
				fmt.Fprintln(out, "\ncurrent state:")
				for _, item := range result.CurrentState {
					fmt.Fprintf(out, "  %-9s %s\n", item.Kind, truncate(item.Content, 80))
				}
			}

			if len(result.CanonDocs) > 0 {
				names := make([]string, 0, len(result.CanonDocs))
				for name := range result.CanonDocs {
					names = append(names, name)
				}
				sort.Strings(names)
				fmt.Fprintln(out, "\ncanon:")
				for _, name := range names {
					fmt.Fprintf(out, "  canon/%s\n", name)
				}
			}
			return nil
		},
	}
}
