package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/registry"
	"github.com/spacehq/space/internal/types"
)

func NewAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List registered agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			all, _ := cmd.Flags().GetBool("all")
			agents, err := registry.ListAgents(ctx.DB(registry.DBName), all)
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				if agents == nil {
					agents = []types.Agent{}
				}
				return printJSON(cmd, agents)
			}
			if ctx.Quiet {
				return nil
			}

			out := cmd.OutOrStdout()
			if len(agents) == 0 {
				fmt.Fprintln(out, "no agents")
				return nil
			}
			for _, agent := range agents {
				name := "(unnamed)"
				if agent.Name != nil {
					name = *agent.Name
				}
				suffix := ""
				if agent.ArchivedAt != nil {
					suffix = " (archived)"
				}
				fmt.Fprintf(out, "%s  %s%s\n", core.ShortID(agent.AgentID), name, suffix)
				if agent.SelfDescription != nil {
					fmt.Fprintf(out, "  %s\n", truncate(*agent.SelfDescription, 100))
				}
			}
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "include archived agents")
	cmd.AddCommand(newAgentsArchiveCmd(), newAgentsMergeCmd())
	return cmd
}

func newAgentsArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <name>",
		Short: "Archive an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			id, err := registry.GetAgentID(ctx.DB(registry.DBName), args[0])
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}
			if id == "" {
				return writeCommandError(cmd, ctx, &core.NotFoundError{Kind: "agent", Ref: args[0]})
			}
			if err := registry.ArchiveAgent(ctx.DB(registry.DBName), ctx.Journal, id); err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, map[string]string{"archived": args[0]})
			}
			if !ctx.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "archived %s\n", args[0])
			}
			return nil
		},
	}
}

func newAgentsMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <name> <canonical>",
		Short: "Point an agent at its canonical identity",
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
			canonical, err := registry.GetAgentID(db, args[1])
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}
			if canonical == "" {
				return writeCommandError(cmd, ctx, &core.NotFoundError{Kind: "agent", Ref: args[1]})
			}
			if err := registry.SetCanonical(db, ctx.Journal, id, canonical); err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, map[string]string{"agent": args[0], "canonical": args[1]})
			}
			if !ctx.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "%s now resolves to %s\n", args[0], args[1])
			}
			return nil
		},
	}
}
