package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/bridge"
	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/types"
)

func NewNotesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notes <channel>",
		Short: "List a channel's notes",
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
			notes, err := bridge.GetNotes(ctx.DB(bridge.DBName), channel.ChannelID)
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				if notes == nil {
					notes = []types.Note{}
				}
				return printJSON(cmd, notes)
			}
			if ctx.Quiet {
				return nil
			}

			out := cmd.OutOrStdout()
			if len(notes) == 0 {
				fmt.Fprintf(out, "no notes on #%s\n", args[0])
				return nil
			}
			for _, note := range notes {
				fmt.Fprintf(out, "%s [%s] %s: %s\n",
					core.ShortID(note.NoteID), stamp(note.CreatedAt), note.Author, note.Content)
			}
			return nil
		},
	}
}
