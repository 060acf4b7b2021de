package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/lifecycle"
)

func NewSleepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sleep",
		Short: "Checkpoint working context and close the session",
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
			check, _ := cmd.Flags().GetBool("check")

			summary, err := lifecycle.Sleep(lifecycleStores(ctx), identity, check)
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, summary)
			}
			if ctx.Quiet {
				return nil
			}

			out := cmd.OutOrStdout()
			verb := "checkpointed"
			if check {
				verb = "would checkpoint"
			}
			fmt.Fprintf(out, "%s %d entries for %s\n", verb, len(summary.Checkpoints), identity)
			for _, entry := range summary.Checkpoints {
				fmt.Fprintf(out, "  %s\n", entry.Message)
			}
			if summary.DirtyFiles != "" {
				fmt.Fprintln(out, "uncommitted changes present")
			}
			if !check {
				fmt.Fprintln(out, "session closed; sleep well")
			}
			return nil
		},
	}

	cmd.Flags().Bool("check", false, "preview what sleep would checkpoint without persisting")
	return cmd
}
