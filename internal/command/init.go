package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/store"
)

func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Initialise a space workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}

			ws, err := core.InitWorkspace(dir)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			// Materialise every store so the first real verb finds the
			// schemas in place.
			dbs, err := store.OpenAll(ws)
			if err != nil {
				return writeCommandError(cmd, nil, err)
			}
			_ = store.CloseAll(dbs)

			jsonMode, _ := cmd.Flags().GetBool("json")
			quiet, _ := cmd.Flags().GetBool("quiet")
			if jsonMode {
				return printJSON(cmd, map[string]string{"workspace": ws.Root})
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "initialised workspace at %s\n", ws.Root)
			}
			return nil
		},
	}
	return cmd
}
