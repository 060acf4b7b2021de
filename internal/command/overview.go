package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/bridge"
	"github.com/spacehq/space/internal/registry"
)

// runOverview handles bare `space`: a short orientation of the workspace.
func runOverview(cmd *cobra.Command) error {
	ctx, err := GetContext(cmd)
	if err != nil {
		return writeCommandError(cmd, nil, err)
	}
	defer ctx.Close()

	agents, err := registry.ListAgents(ctx.DB(registry.DBName), false)
	if err != nil {
		return writeCommandError(cmd, ctx, err)
	}
	channels, err := bridge.FetchChannels(ctx.DB(bridge.DBName), bridge.FetchOptions{
		AgentID: ctx.Identity,
	})
	if err != nil {
		return writeCommandError(cmd, ctx, err)
	}

	var unread int64
	for _, view := range channels {
		unread += view.UnreadCount
	}

	if ctx.JSONMode {
		return printJSON(cmd, map[string]any{
			"workspace": ctx.Workspace.Root,
			"agents":    len(agents),
			"channels":  len(channels),
			"unread":    unread,
		})
	}
	if ctx.Quiet {
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "workspace: %s\n", ctx.Workspace.Root)
	fmt.Fprintf(out, "agents: %d  channels: %d", len(agents), len(channels))
	if ctx.Identity != "" {
		fmt.Fprintf(out, "  unread: %d (as %s)", unread, ctx.Identity)
	}
	fmt.Fprintln(out)
	if ctx.Identity != "" {
		fmt.Fprintf(out, "run `space wake --as %s` to open a session\n", ctx.Identity)
	} else {
		fmt.Fprintln(out, "set SPACE_AGENT or pass --as <identity> to act as an agent")
	}
	return nil
}
