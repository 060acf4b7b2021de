package command

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/bridge"
	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/ops"
	"github.com/spacehq/space/internal/types"
)

func NewTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Hierarchical work items: create, claim, complete, reduce",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			status, _ := cmd.Flags().GetString("status")
			tasks, err := ops.ListTasks(ctx.DB(ops.DBName), status)
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}
			return printTasks(cmd, ctx, tasks)
		},
	}

	cmd.Flags().String("status", "", "filter by status: open, claimed, complete, blocked")

	cmd.AddCommand(
		newTaskAddCmd(),
		newTaskShowCmd(),
		newTaskClaimCmd(),
		newTaskDoneCmd(),
		newTaskBlockCmd(),
		newTaskReduceCmd(),
	)
	return cmd
}

func printTasks(cmd *cobra.Command, ctx *Context, tasks []types.Task) error {
	if ctx.JSONMode {
		if tasks == nil {
			tasks = []types.Task{}
		}
		return printJSON(cmd, tasks)
	}
	if ctx.Quiet {
		return nil
	}

	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "no tasks")
		return nil
	}
	for _, task := range tasks {
		indent := ""
		if task.ParentID != nil {
			indent = "  "
		}
		assignee := ""
		if task.AssignedTo != nil {
			assignee = " @" + *task.AssignedTo
		}
		fmt.Fprintf(out, "%s%s [%s]%s %s\n",
			indent, core.ShortID(task.TaskID), task.Status, assignee, task.Description)
		if task.Handover != nil {
			fmt.Fprintf(out, "%s  handover: %s\n", indent, *task.Handover)
		}
	}
	return nil
}

func newTaskAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <description...>",
		Short: "Create a task, optionally under a parent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			parent, _ := cmd.Flags().GetString("parent")
			channelName, _ := cmd.Flags().GetString("channel")

			channelID := ""
			if channelName != "" {
				channel, err := bridge.LookupChannel(ctx.DB(bridge.DBName), channelName)
				if err != nil {
					return writeCommandError(cmd, ctx, err)
				}
				channelID = channel.ChannelID
			}

			task, err := ops.CreateTask(ctx.DB(ops.DBName), ctx.Journal,
				strings.Join(args, " "), parent, channelID)
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, task)
			}
			if !ctx.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "created task %s\n", core.ShortID(task.TaskID))
			}
			return nil
		},
	}
	cmd.Flags().String("parent", "", "parent task id")
	cmd.Flags().String("channel", "", "link the task to a channel")
	return cmd
}

func newTaskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task and its children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			task, err := ops.GetTask(ctx.DB(ops.DBName), args[0])
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}
			children, err := ops.Children(ctx.DB(ops.DBName), task.TaskID)
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, map[string]any{"task": task, "children": children})
			}
			return printTasks(cmd, ctx, append([]types.Task{*task}, children...))
		},
	}
}

func newTaskClaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim <id>",
		Short: "Claim a task",
		Args:  cobra.ExactArgs(1),
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
			task, err := ops.ClaimTask(ctx.DB(ops.DBName), ctx.Journal, args[0], identity)
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, task)
			}
			if !ctx.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "claimed %s\n", core.ShortID(task.TaskID))
			}
			return nil
		},
	}
}

func newTaskDoneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Complete a task, optionally leaving handover notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			handover, _ := cmd.Flags().GetString("handover")
			task, err := ops.CompleteTask(ctx.DB(ops.DBName), ctx.Journal, args[0], ctx.Identity, handover)
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, task)
			}
			if !ctx.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "completed %s\n", core.ShortID(task.TaskID))
			}
			return nil
		},
	}
	cmd.Flags().String("handover", "", "notes for whoever picks up the thread")
	return cmd
}

func newTaskBlockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "block <id>",
		Short: "Mark a task blocked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			reason, _ := cmd.Flags().GetString("reason")
			task, err := ops.BlockTask(ctx.DB(ops.DBName), ctx.Journal, args[0], ctx.Identity, reason)
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, task)
			}
			if !ctx.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "blocked %s\n", core.ShortID(task.TaskID))
			}
			return nil
		},
	}
	cmd.Flags().String("reason", "", "why the task is blocked")
	return cmd
}

func newTaskReduceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reduce <id>",
		Short: "Fold a parent to complete once every child is complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			defer ctx.Close()

			handover, _ := cmd.Flags().GetString("handover")
			task, err := ops.ReduceTask(ctx.DB(ops.DBName), ctx.Journal, args[0], ctx.Identity, handover)
			if err != nil {
				return writeCommandError(cmd, ctx, err)
			}

			if ctx.JSONMode {
				return printJSON(cmd, task)
			}
			if !ctx.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "reduced %s to complete\n", core.ShortID(task.TaskID))
			}
			return nil
		},
	}
	cmd.Flags().String("handover", "", "summary of the completed subtree")
	return cmd
}
