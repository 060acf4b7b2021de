package command

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/bridge"
	"github.com/spacehq/space/internal/types"
)

func NewChannelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List channels with activity summaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			all, _ := cmd.Flags().GetBool("all")
			unread, _ := cmd.Flags().GetBool("unread")
			match, _ := cmd.Flags().GetString("match")

			views, err := bridge.FetchChannels(ctx.DB(bridge.DBName), bridge.FetchOptions{
				AgentID:         ctx.Identity,
				IncludeArchived: all,
				UnreadOnly:      unread,
				NamePattern:     match,
			})
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				if views == nil {
					views = []types.ChannelView{}
				}
				return printJSON(cmd, views)
			}
			if ctx.Quiet {
				return nil
			}

			out := cmd.OutOrStdout()
			if len(views) == 0 {
				fmt.Fprintln(out, "no channels")
				return nil
			}
			for _, view := range views {
				var parts []string
				parts = append(parts, fmt.Sprintf("%d msgs", view.MessageCount))
				if view.UnreadCount > 0 {
					parts = append(parts, fmt.Sprintf("%d unread", view.UnreadCount))
				}
				if view.NotesCount > 0 {
					parts = append(parts, fmt.Sprintf("%d notes", view.NotesCount))
				}
				if len(view.Participants) > 0 {
					parts = append(parts, strings.Join(view.Participants, ", "))
				}
				suffix := ""
				if view.ArchivedAt != nil {
					suffix = " (archived)"
				}
				fmt.Fprintf(out, "#%s%s  %s\n", view.Name, suffix, strings.Join(parts, " | "))
				if view.Topic != nil {
					fmt.Fprintf(out, "  topic: %s\n", *view.Topic)
				}
			}
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "include archived channels")
	cmd.Flags().Bool("unread", false, "only channels with unread messages")
	cmd.Flags().String("match", "", "glob filter over channel names")
	return cmd
}
