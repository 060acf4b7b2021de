package command

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/registry"
)

func NewDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <agent> [text...]",
		Short: "Show or set an agent's self-description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			db := ctx.DB(registry.DBName)
			if len(args) > 1 {
				text := strings.Join(args[1:], " ")
				if err := registry.SetSelfDescription(db, ctx.Journal, args[0], text); err != nil {
					return writeCommandError(cmd, ctx, err)
				}
				if ctx.JSONMode {
					return printJSON(cmd, map[string]string{"agent": args[0], "description": text})
				}
				if !ctx.Quiet {
					fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", args[0])
				}
				return nil
			}

			text, err := registry.GetSelfDescription(db, args[0])
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}
			if ctx.JSONMode {
				payload := map[string]any{"agent": args[0]}
				if text != nil {
					payload["description"] = *text
				}
				return printJSON(cmd, payload)
			}
			if ctx.Quiet {
				return nil
			}
			if text == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s has no self-description\n", args[0])
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), *text)
			}
			return nil
		},
	}
}
