package command

import (
	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/bridge"
	"github.com/spacehq/space/internal/registry"
	"github.com/spacehq/space/internal/worker"
)

// NewWorkerCmd is the hidden re-exec target of worker.Dispatch. It is not
// meant for interactive use.
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "worker",
		Hidden: true,
		Short:  "Fan a mention-bearing message out to spawned agents",
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				// Detached process: nothing useful to report to.
				return nil
			}
			defer ctx.Close()

			channelID, _ := cmd.Flags().GetString("channel-id")
			content, _ := cmd.Flags().GetString("content")
			if channelID == "" || content == "" {
				return nil
			}

			worker.Run(ctx.DB(bridge.DBName), ctx.DB(registry.DBName), ctx.Journal, ctx.Logger,
				channelID, content, worker.Options{})
			return nil
		},
	}

	cmd.Flags().String("channel-id", "", "id of the channel the triggering message was posted to")
	cmd.Flags().String("channel", "", "channel name at dispatch time, shown in process listings")
	cmd.Flags().String("content", "", "content of the triggering message")
	return cmd
}
