package command

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/lifecycle"
	"github.com/spacehq/space/internal/registry"
)

func NewConstitutionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "constitution <role-or-hash>",
		Short: "Show a role's base constitution or a stored snapshot by hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			// A stored snapshot wins; otherwise treat the argument as a
			// role and read its base constitution file.
			content, err := registry.GetConstitution(ctx.DB(registry.DBName), args[0])
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}
			if content == nil {
				data, err := os.ReadFile(lifecycle.ConstitutionPath(ctx.Workspace, args[0]))
				if err != nil {
					if os.IsNotExist(err) {
						return writeCommandError(cmd, ctx,
							&core.NotFoundError{Kind: "constitution", Ref: args[0]})
					}
					return writeCommandError(cmd, ctx, err)
				}
				text := string(data)
				content = &text
			}

			if ctx.JSONMode {
				return printJSON(cmd, map[string]string{"ref": args[0], "content": *content})
			}
			if !ctx.Quiet {
				fmt.Fprint(cmd.OutOrStdout(), *content)
			}
			return nil
		},
	}
}
