package command

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spacehq/space/internal/bridge"
	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/types"
	"github.com/spacehq/space/internal/worker"
)

func NewSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <channel> <message...>",
		Short: "Post a message to a channel",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			identity, err := ctx.EnsureIdentity()
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			content := strings.Join(args[1:], " ")
			if decode, _ := cmd.Flags().GetBool("base64"); decode {
				raw, err := base64.StdEncoding.DecodeString(content)
				if err != nil {
					return writeCommandError(cmd, ctx,
						fmt.Errorf("%w: bad base64 payload: %v", core.ErrValidation, err))
				}
				content = string(raw)
			}
			priority, _ := cmd.Flags().GetString("priority")

			msg, err := bridge.CreateMessage(ctx.DB(bridge.DBName), ctx.Journal, args[0], identity, content, priority)
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			// Mention fan-out runs detached after the send has committed;
			// the sender never waits on spawned agents.
			if worker.ShouldDispatch(identity, content) {
				if err := worker.Dispatch(msg.ChannelID, args[0], content); err != nil {
					ctx.Logger.Warn("worker dispatch failed", zap.Error(err))
					_, _ = ctx.Journal.Emit(worker.Source, "worker.error", identity, err.Error())
				}
			}

			if ctx.JSONMode {
				return printJSON(cmd, msg)
			}
			if !ctx.Quiet {
				marker := ""
				if msg.Priority == types.PriorityAlert {
					marker = " [ALERT]"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sent %s to #%s%s\n", core.ShortID(msg.MessageID), args[0], marker)
			}
			return nil
		},
	}

	cmd.Flags().String("priority", types.PriorityNormal, "message priority: normal or alert")
	cmd.Flags().Bool("base64", false, "decode the message body from base64 before storing")
	return cmd
}
