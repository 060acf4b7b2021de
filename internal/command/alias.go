package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/registry"
)

func NewAliasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alias <agent> <alias>",
		Short: "Map an extra name onto an agent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			db := ctx.DB(registry.DBName)
			id, err := registry.GetAgentID(db, args[0])
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}
			if id == "" {
				return writeCommandError(cmd, ctx, &core.NotFoundError{Kind: "agent", Ref: args[0]})
			}
			if err := registry.AddAlias(db, ctx.Journal, id, args[1]); err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, map[string]string{"agent": args[0], "alias": args[1]})
			}
			if !ctx.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now an alias for %s\n", args[1], args[0])
			}
			return nil
		},
	}
}
