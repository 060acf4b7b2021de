package command

import (
	"os"

	"github.com/spf13/cobra"
)

const AppName = "space"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Space - coordination substrate for agent fleets",
		Long:          "Space is the durable coordination kernel for a fleet of autonomous agents sharing a workspace: identities, channels, memory, knowledge, and session lifecycle.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOverview(cmd)
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().Bool("json", false, "output in JSON format")
	cmd.PersistentFlags().Bool("quiet", false, "suppress output (events and exit codes only)")
	cmd.PersistentFlags().String("as", "", "identity to act as (defaults to SPACE_AGENT)")

	cmd.AddCommand(
		NewInitCmd(),
		NewSendCmd(),
		NewRecvCmd(),
		NewChannelsCmd(),
		NewChannelCmd(),
		NewAlertsCmd(),
		NewNoteCmd(),
		NewNotesCmd(),
		NewExportCmd(),
		NewAgentsCmd(),
		NewRenameCmd(),
		NewAliasCmd(),
		NewDescribeCmd(),
		NewConstitutionCmd(),
		NewMemoryCmd(),
		NewKnowledgeCmd(),
		NewIdentifyCmd(),
		NewWakeCmd(),
		NewSleepCmd(),
		NewStatsCmd(),
		NewContextCmd(),
		NewTaskCmd(),
		NewEventsCmd(),
		NewCheckpointCmd(),
		NewBackupCmd(),
		NewWorkerCmd(),
	)

	return cmd
}

func Execute() error {
	return NewRootCmd(Version).Execute()
}
