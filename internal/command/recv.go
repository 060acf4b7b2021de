package command

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/bridge"
	"github.com/spacehq/space/internal/types"
)

func NewRecvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recv <channel>",
		Short: "Read unseen messages and advance the bookmark",
		Args:  cobra.ExactArgs(1),
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

			limit, _ := cmd.Flags().GetInt("limit")
			wait, _ := cmd.Flags().GetBool("wait")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			var messages []types.Message
			if wait {
				waitCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
				defer cancel()
				messages, err = bridge.WaitForMessages(waitCtx, ctx.Workspace,
					ctx.DB(bridge.DBName), ctx.Journal, args[0], identity, limit)
			} else {
				messages, err = bridge.RecvUpdates(ctx.DB(bridge.DBName), ctx.Journal, args[0], identity, limit)
			}
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				if messages == nil {
					messages = []types.Message{}
				}
				return printJSON(cmd, messages)
			}
			if ctx.Quiet {
				return nil
			}

			out := cmd.OutOrStdout()
			if len(messages) == 0 {
				fmt.Fprintf(out, "no new messages in #%s\n", args[0])
				return nil
			}
			for _, msg := range messages {
				marker := ""
				if msg.Priority == types.PriorityAlert {
					marker = " [ALERT]"
				}
				fmt.Fprintf(out, "[%s] %s%s: %s\n", stamp(msg.CreatedAt), msg.AgentID, marker, msg.Content)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 0, "cap the number of returned messages (0 = all)")
	cmd.Flags().Bool("wait", false, "block until new messages arrive")
	cmd.Flags().Duration("timeout", 30*time.Second, "give up waiting after this long (exit 124)")
	return cmd
}
