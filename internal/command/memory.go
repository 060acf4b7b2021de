package command

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/events"
	"github.com/spacehq/space/internal/memory"
	"github.com/spacehq/space/internal/types"
)

func NewMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Personal memory: list, add, edit, supersede",
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
			topic, _ := cmd.Flags().GetString("topic")
			all, _ := cmd.Flags().GetBool("all")
			limit, _ := cmd.Flags().GetInt("limit")

			entries, err := memory.GetMemories(ctx.DB(memory.DBName), identity, topic, all, limit)
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}
			return printMemories(cmd, ctx, entries)
		},
	}

	cmd.Flags().String("topic", "", "filter by topic")
	cmd.Flags().Bool("all", false, "include archived entries")
	cmd.Flags().Int("limit", 0, "cap results (0 = all)")

	cmd.AddCommand(
		newMemoryAddCmd(),
		newMemoryShowCmd(),
		newMemoryEditCmd(),
		newMemoryDeleteCmd(),
		newMemoryArchiveCmd(),
		newMemoryRestoreCmd(),
		newMemoryCoreCmd(),
		newMemorySearchCmd(),
		newMemoryRelatedCmd(),
		newMemoryReplaceCmd(),
		newMemoryChainCmd(),
	)
	return cmd
}

func printMemories(cmd *cobra.Command, ctx *Context, entries []types.Memory) error {
	if ctx.JSONMode {
		if entries == nil {
			entries = []types.Memory{}
		}
		return printJSON(cmd, entries)
	}
	if ctx.Quiet {
		return nil
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "no memories")
		return nil
	}
	for _, entry := range entries {
		markers := ""
		if entry.Core {
			markers += " *"
		}
		if entry.ArchivedAt != nil {
			markers += " (archived)"
		}
		fmt.Fprintf(out, "%s [%s] %s%s\n  %s\n",
			core.ShortID(entry.MemoryID), stamp(entry.Timestamp), entry.Topic, markers, entry.Message)
	}
	return nil
}

func newMemoryAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <topic> <message...>",
		Short: "Record a memory",
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
			markCore, _ := cmd.Flags().GetBool("core")

			entry, err := memory.AddEntry(ctx.DB(memory.DBName), ctx.Journal, memory.AddOptions{
				AgentID: identity,
				Topic:   args[0],
				Message: strings.Join(args[1:], " "),
				Core:    markCore,
			})
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, entry)
			}
			if !ctx.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "remembered %s under %s\n", core.ShortID(entry.MemoryID), entry.Topic)
			}
			return nil
		},
	}
	cmd.Flags().Bool("core", false, "mark the entry as core (always shown at wake)")
	return cmd
}

func newMemoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			entry, err := memory.GetByID(ctx.DB(memory.DBName), args[0])
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}
			return printMemories(cmd, ctx, []types.Memory{*entry})
		},
	}
}

func newMemoryEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <message...>",
		Short: "Rewrite a memory's message in place",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			entry, err := memory.EditEntry(ctx.DB(memory.DBName), ctx.Journal,
				args[0], strings.Join(args[1:], " "))
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, entry)
			}
			if !ctx.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "edited %s\n", core.ShortID(entry.MemoryID))
			}
			return nil
		},
	}
}

func newMemoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a memory permanently",
		Args:  cobra.ExactArgs(1),
		RunE:  memoryMutation("deleted", memory.DeleteEntry),
	}
}

func newMemoryArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a memory",
		Args:  cobra.ExactArgs(1),
		RunE:  memoryMutation("archived", memory.ArchiveEntry),
	}
}

func newMemoryRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore an archived memory (superseded entries refuse)",
		Args:  cobra.ExactArgs(1),
		RunE:  memoryMutation("restored", memory.RestoreEntry),
	}
}

// memoryMutation builds a RunE for the single-ref verbs that share the
// resolve-mutate-report shape.
func memoryMutation(past string, fn func(db *sql.DB, journal *events.Journal, ref string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, err := GetContext(cmd)
		if err != nil {
			return writeCommandError(cmd, nil, err)
		}
		defer ctx.Close()

		if err := fn(ctx.DB(memory.DBName), ctx.Journal, args[0]); err != nil {
			return writeCommandError(cmd, ctx, err)
		}
		if ctx.JSONMode {
			return printJSON(cmd, map[string]string{"status": past, "id": args[0]})
		}
		if !ctx.Quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", past, args[0])
		}
		return nil
	}
}

func newMemoryCoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "core <id>",
		Short: "Mark a memory as core (or unmark with --unset)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			unset, _ := cmd.Flags().GetBool("unset")
			if err := memory.MarkCore(ctx.DB(memory.DBName), ctx.Journal, args[0], !unset); err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			state := "core"
			if unset {
				state = "not core"
			}
			if ctx.JSONMode {
				return printJSON(cmd, map[string]string{"id": args[0], "state": state})
			}
			if !ctx.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", args[0], state)
			}
			return nil
		},
	}
	cmd.Flags().Bool("unset", false, "clear the core flag instead of setting it")
	return cmd
}

func newMemorySearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search topics and messages",
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
			all, _ := cmd.Flags().GetBool("all")

			entries, err := memory.SearchEntries(ctx.DB(memory.DBName), identity, args[0], all)
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}
			return printMemories(cmd, ctx, entries)
		},
	}
	cmd.Flags().Bool("all", false, "include archived entries")
	return cmd
}

func newMemoryRelatedCmd() *cobra.Command {
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
			entry, err := memory.GetByID(ctx.DB(memory.DBName), args[0])
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}
			related, err := memory.FindRelated(ctx.DB(memory.DBName), entry, limit, false)
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				if related == nil {
					related = []memory.Scored{}
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
					core.ShortID(hit.Memory.MemoryID), hit.Score, hit.Memory.Topic,
					truncate(hit.Memory.Message, 80))
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 5, "cap results")
	return cmd
}

func newMemoryReplaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replace <id...>",
		Short: "Supersede entries with one successor",
		Args:  cobra.MinimumNArgs(1),
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
			topic, _ := cmd.Flags().GetString("topic")
			message, _ := cmd.Flags().GetString("message")
			note, _ := cmd.Flags().GetString("note")
			if topic == "" || message == "" {
				return writeCommandError(cmd, ctx,
					fmt.Errorf("%w: replace needs --topic and --message", core.ErrValidation))
			}

			entry, err := memory.ReplaceEntry(ctx.DB(memory.DBName), ctx.Journal,
				args, identity, topic, message, note)
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, entry)
			}
			if !ctx.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "superseded %d entries with %s\n",
					len(args), core.ShortID(entry.MemoryID))
			}
			return nil
		},
	}
	cmd.Flags().String("topic", "", "topic of the successor entry")
	cmd.Flags().String("message", "", "message of the successor entry")
	cmd.Flags().String("note", "", "synthesis note explaining the replacement")
	return cmd
}

func newMemoryChainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chain <id>",
		Short: "Walk an entry's supersession chain both ways",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			chain, err := memory.GetChain(ctx.DB(memory.DBName), args[0])
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, chain)
			}
			if ctx.Quiet {
				return nil
			}

			out := cmd.OutOrStdout()
			for _, entry := range chain.Predecessors {
				fmt.Fprintf(out, "  %s [%s] %s\n",
					core.ShortID(entry.MemoryID), entry.Topic, truncate(entry.Message, 70))
			}
			fmt.Fprintf(out, "> %s [%s] %s\n",
				core.ShortID(chain.Start.MemoryID), chain.Start.Topic, truncate(chain.Start.Message, 70))
			for _, entry := range chain.Successors {
				fmt.Fprintf(out, "  %s [%s] %s\n",
					core.ShortID(entry.MemoryID), entry.Topic, truncate(entry.Message, 70))
			}
			return nil
		},
	}
}
