package command

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/bridge"
	"github.com/spacehq/space/internal/core"
)

func NewChannelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Manage a single channel",
	}
	cmd.AddCommand(
		newChannelTopicCmd(),
		newChannelRenameCmd(),
		newChannelArchiveCmd(),
		newChannelDeleteCmd(),
	)
	return cmd
}

func newChannelTopicCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "topic <channel> <topic...>",
		Short: "Set a channel topic (first writer wins)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			channel, err := bridge.LookupChannel(ctx.DB(bridge.DBName), args[0])
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}
			topic := strings.Join(args[1:], " ")
			set, err := bridge.SetTopic(ctx.DB(bridge.DBName), ctx.Journal, channel.ChannelID, topic)
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, map[string]any{"channel": args[0], "set": set})
			}
			if ctx.Quiet {
				return nil
			}
			if set {
				fmt.Fprintf(cmd.OutOrStdout(), "topic set on #%s\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "#%s already has a topic; not changed\n", args[0])
			}
			return nil
		},
	}
}

func newChannelRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a channel, keeping its history and bookmarks",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			result, err := bridge.RenameChannel(ctx.DB(bridge.DBName), ctx.Journal, args[0], args[1])
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}
			switch result {
			case bridge.RenameNotFound:
				return writeCommandError(cmd, ctx, &core.NotFoundError{Kind: "channel", Ref: args[0]})
			case bridge.RenameConflict:
				return writeCommandError(cmd, ctx, &core.ConflictError{Kind: "channel", Name: args[1]})
			case bridge.RenameArchived:
				return writeCommandError(cmd, ctx,
					fmt.Errorf("%w: channel %s is archived", core.ErrConflict, args[0]))
			}

			if ctx.JSONMode {
				return printJSON(cmd, map[string]string{"old": args[0], "new": args[1]})
			}
			if !ctx.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "renamed #%s to #%s\n", args[0], args[1])
			}
			return nil
		},
	}
}

func newChannelArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <channel>",
		Short: "Archive a channel (history is kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			channel, err := bridge.LookupChannel(ctx.DB(bridge.DBName), args[0])
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}
			if err := bridge.ArchiveChannel(ctx.DB(bridge.DBName), ctx.Journal, channel.ChannelID); err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, map[string]string{"archived": args[0]})
			}
			if !ctx.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "archived #%s\n", args[0])
			}
			return nil
		},
	}
}

func newChannelDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <channel>",
		Short: "Delete a channel and everything in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			channel, err := bridge.LookupChannel(ctx.DB(bridge.DBName), args[0])
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}
			if err := bridge.DeleteChannel(ctx.DB(bridge.DBName), ctx.Journal, channel.ChannelID); err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, map[string]string{"deleted": args[0]})
			}
			if !ctx.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "deleted #%s and its messages, bookmarks, and notes\n", args[0])
			}
			return nil
		},
	}
}
