package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/events"
	"github.com/spacehq/space/internal/store"
)

// Checkpoint and backup deliberately avoid GetContext: they must run with
// no open writers in this process, so they fold the WAL first and only
// then open the journal to record the outcome.

func NewCheckpointCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoint",
		Short: "Fold every store's write-ahead log into its main file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := core.DiscoverWorkspace("")
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			if err := store.Checkpoint(ws); err != nil {
				return writeCommandError(cmd, nil, err)
			}
			emitMaintenance(ws, "checkpoint", "")

			jsonMode, _ := cmd.Flags().GetBool("json")
			quiet, _ := cmd.Flags().GetBool("quiet")
			if jsonMode {
				return printJSON(cmd, map[string]string{"status": "checkpointed"})
			}
			if !quiet {
				fmt.Fprintln(cmd.OutOrStdout(), "checkpointed all stores")
			}
			return nil
		},
	}
}

func NewBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Checkpoint, then copy every store into .space/backups/",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := core.DiscoverWorkspace("")
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			dir, err := store.Backup(ws)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			emitMaintenance(ws, "backup", dir)

			jsonMode, _ := cmd.Flags().GetBool("json")
			quiet, _ := cmd.Flags().GetBool("quiet")
			if jsonMode {
				return printJSON(cmd, map[string]string{"backup": dir})
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "backed up to %s\n", dir)
			}
			return nil
		},
	}
}

// emitMaintenance journals a store maintenance event after the operation
// finished; failures to record are not failures of the operation.
func emitMaintenance(ws core.Workspace, eventType, data string) {
	db, err := store.Open(ws, events.DBName)
	if err != nil {
		return
	}
	defer db.Close()
	_, _ = events.NewJournal(db).Emit("store", eventType, "", data)
}
