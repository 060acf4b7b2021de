package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/bridge"
	"github.com/spacehq/space/internal/lifecycle"
	"github.com/spacehq/space/internal/memory"
	"github.com/spacehq/space/internal/registry"
)

func NewIdentifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identify [identity]",
		Short: "Materialise an identity file from the role constitution",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			identity := ctx.Identity
			if len(args) == 1 {
				identity = args[0]
			}
			base, _ := cmd.Flags().GetString("base")
			model, _ := cmd.Flags().GetString("model")

			result, err := lifecycle.Identify(lifecycleStores(ctx), lifecycle.IdentifyOptions{
				Command:  "identify",
				Identity: identity,
				Base:     base,
				Model:    model,
			})
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, result)
			}
			if !ctx.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s for %s (role %s, hash %s)\n",
					result.File, identity, result.Role, result.Hash[:8])
			}
			return nil
		},
	}

	cmd.Flags().String("base", "", "base family: claude, gemini, ... (default claude)")
	cmd.Flags().String("model", "", "model note for the identity's self line")
	return cmd
}

// lifecycleStores adapts the CLI context to the lifecycle store bundle.
func lifecycleStores(ctx *Context) lifecycle.Stores {
	return lifecycle.Stores{
		Registry:  ctx.DB(registry.DBName),
		Bridge:    ctx.DB(bridge.DBName),
		Memory:    ctx.DB(memory.DBName),
		Journal:   ctx.Journal,
		Logger:    ctx.Logger,
		Workspace: ctx.Workspace,
	}
}
