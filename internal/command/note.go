package command

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/bridge"
	"github.com/spacehq/space/internal/core"
)

func NewNoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "note <channel> <content...>",
		Short: "Pin a note to a channel outside the message stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			if ref, _ := cmd.Flags().GetString("delete"); ref != "" {
				if err := bridge.DeleteNote(ctx.DB(bridge.DBName), ctx.Journal, ref); err != nil {
					return writeCommandError(cmd, ctx, err)
				}
				if ctx.JSONMode {
					return printJSON(cmd, map[string]string{"deleted": ref})
				}
				if !ctx.Quiet {
					fmt.Fprintf(cmd.OutOrStdout(), "deleted note %s\n", ref)
				}
				return nil
			}

			if len(args) < 2 {
				return writeCommandError(cmd, ctx,
					fmt.Errorf("%w: note needs a channel and content", core.ErrValidation))
			}
			identity, err := ctx.EnsureIdentity()
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			note, err := bridge.AddNote(ctx.DB(bridge.DBName), ctx.Journal,
				args[0], identity, strings.Join(args[1:], " "))
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, note)
			}
			if !ctx.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "noted %s on #%s\n", core.ShortID(note.NoteID), args[0])
			}
			return nil
		},
	}

	cmd.Flags().String("delete", "", "delete a note by id instead of adding")
	return cmd
}
