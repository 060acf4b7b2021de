package command

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/knowledge"
	"github.com/spacehq/space/internal/types"
)

func NewKnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Shared knowledge: domain-scoped facts with confidence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			domain, _ := cmd.Flags().GetString("domain")
			mine, _ := cmd.Flags().GetBool("mine")
			all, _ := cmd.Flags().GetBool("all")

			var entries []types.Knowledge
			switch {
			case domain != "":
				entries, err = knowledge.QueryByDomain(ctx.DB(knowledge.DBName), domain, all)
			case mine:
				var identity string
				identity, err = ctx.RequireIdentity()
				if err == nil {
					entries, err = knowledge.QueryByAgent(ctx.DB(knowledge.DBName), identity, all)
				}
			default:
				entries, err = knowledge.ListAll(ctx.DB(knowledge.DBName), all)
			}
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}
			return printKnowledge(cmd, ctx, entries)
		},
	}

	cmd.Flags().String("domain", "", "filter by domain")
	cmd.Flags().Bool("mine", false, "only entries contributed by the acting identity")
	cmd.Flags().Bool("all", false, "include archived entries")

	cmd.AddCommand(
		newKnowledgeAddCmd(),
		newKnowledgeShowCmd(),
		newKnowledgeEditCmd(),
		newKnowledgeArchiveCmd(),
		newKnowledgeRestoreCmd(),
		newKnowledgeRelatedCmd(),
	)
	return cmd
}

func printKnowledge(cmd *cobra.Command, ctx *Context, entries []types.Knowledge) error {
	if ctx.JSONMode {
		if entries == nil {
			entries = []types.Knowledge{}
		}
		return printJSON(cmd, entries)
	}
	if ctx.Quiet {
		return nil
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "no knowledge entries")
		return nil
	}
	for _, entry := range entries {
		confidence := ""
		if entry.Confidence != nil {
			confidence = fmt.Sprintf(" (%.2f)", *entry.Confidence)
		}
		suffix := ""
		if entry.ArchivedAt != nil {
			suffix = " (archived)"
		}
		fmt.Fprintf(out, "%s [%s]%s %s%s\n  %s\n",
			core.ShortID(entry.KnowledgeID), entry.Domain, confidence, entry.AgentID, suffix, entry.Content)
	}
	return nil
}

func newKnowledgeAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <domain> <content...>",
		Short: "Contribute a knowledge entry",
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
			confidence := confidenceFlag(cmd)

			entry, err := knowledge.WriteKnowledge(ctx.DB(knowledge.DBName), ctx.Journal,
				args[0], identity, strings.Join(args[1:], " "), confidence)
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, entry)
			}
			if !ctx.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "recorded %s in %s\n",
					core.ShortID(entry.KnowledgeID), entry.Domain)
			}
			return nil
		},
	}
	cmd.Flags().Float64("confidence", -1, "confidence in [0,1]; omit for none")
	return cmd
}

// confidenceFlag reads --confidence, treating the -1 default as unset.
func confidenceFlag(cmd *cobra.Command) *float64 {
	if !cmd.Flags().Changed("confidence") {
		return nil
	}
	value, _ := cmd.Flags().GetFloat64("confidence")
	return &value
}

func newKnowledgeShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one knowledge entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			entry, err := knowledge.GetByID(ctx.DB(knowledge.DBName), args[0])
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}
			return printKnowledge(cmd, ctx, []types.Knowledge{*entry})
		},
	}
}

func newKnowledgeEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id> <content...>",
		Short: "Rewrite an entry in place",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			entry, err := knowledge.UpdateEntry(ctx.DB(knowledge.DBName), ctx.Journal,
				args[0], strings.Join(args[1:], " "), confidenceFlag(cmd))
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, entry)
			}
			if !ctx.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", core.ShortID(entry.KnowledgeID))
			}
			return nil
		},
	}
	cmd.Flags().Float64("confidence", -1, "new confidence in [0,1]; omit to keep")
	return cmd
}

func newKnowledgeArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a knowledge entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			if err := knowledge.ArchiveEntry(ctx.DB(knowledge.DBName), ctx.Journal, args[0]); err != nil {
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

func newKnowledgeRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore an archived knowledge entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			if err := knowledge.RestoreEntry(ctx.DB(knowledge.DBName), ctx.Journal, args[0]); err != nil {
				return writeCommandError(cmd, ctx, err)
			}
			if ctx.JSONMode {
				return printJSON(cmd, map[string]string{"restored": args[0]})
			}
			if !ctx.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "restored %s\n", args[0])
			}
			return nil
		},
	}
}

func newKnowledgeRelatedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "related <id>",
		Short: "Find entries related by keyword overlap",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			entry, err := knowledge.GetByID(ctx.DB(knowledge.DBName), args[0])
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}
			related, err := knowledge.FindRelated(ctx.DB(knowledge.DBName), entry, limit, false)
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				if related == nil {
					related = []knowledge.Scored{}
				}
				return printJSON(cmd, related)
			}
			if ctx.Quiet {
				return nil
			}
			out := cmd.OutOrStdout()
			if len(related) == 0 {
				fmt.Fprintln(out, "no related entries")
				return nil
			}
			for _, hit := range related {
				fmt.Fprintf(out, "%s (%d) [%s] %s\n",
					core.ShortID(hit.Knowledge.KnowledgeID), hit.Score, hit.Knowledge.Domain,
					truncate(hit.Knowledge.Content, 80))
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 5, "cap results")
	return cmd
}
