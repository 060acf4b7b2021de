package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/lifecycle"
)

func NewWakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wake",
		Short: "Open a session and print orientation",
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

			orientation, err := lifecycle.Wake(lifecycleStores(ctx), identity)
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, orientation)
			}
			if ctx.Quiet {
				return nil
			}

			out := cmd.OutOrStdout()
			if orientation.FirstBoot {
				fmt.Fprintf(out, "Welcome, %s. This is your first wake in this workspace.\n", identity)
			} else {
				fmt.Fprintf(out, "Good morning, %s. Sleep count: %d.\n", identity, orientation.SleepCount)
			}

			if orientation.LastCheckpoint != nil {
				fmt.Fprintf(out, "\nLast checkpoint: %s\n", orientation.LastCheckpoint.Message)
			}

			if len(orientation.UnreadChannels) > 0 {
				fmt.Fprintln(out, "\nUnread channels:")
				for _, view := range orientation.UnreadChannels {
					fmt.Fprintf(out, "  #%s  %d unread\n", view.Name, view.UnreadCount)
				}
			}

			if len(orientation.CoreMemories) > 0 {
				fmt.Fprintln(out, "\nCore memories:")
				for _, entry := range orientation.CoreMemories {
					fmt.Fprintf(out, "  [%s] %s\n", entry.Topic, truncate(entry.Message, 90))
				}
			}

			if len(orientation.RecentEntries) > 0 {
				fmt.Fprintln(out, "\nRecent memories:")
				for _, entry := range orientation.RecentEntries {
					fmt.Fprintf(out, "  [%s] %s\n", entry.Topic, truncate(entry.Message, 90))
				}
			}

			if len(orientation.LastSent) > 0 {
				fmt.Fprintln(out, "\nYour last messages:")
				for _, msg := range orientation.LastSent {
					fmt.Fprintf(out, "  [%s] %s\n", stamp(msg.CreatedAt), truncate(msg.Content, 90))
				}
			}
			return nil
		},
	}
}
