package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stockton/internal/appversion"
)

// newRootCmd creates the root stockton command with all subcommands attached.
// A nil env is resolved from the environment before any subcommand runs.
func newRootCmd(e *env) *cobra.Command {
	if e == nil {
		e = &env{}
	}
	cmd := &cobra.Command{
		Use:           "stockton",
		Short:         "Agent operations dashboard",
		Long:          "stockton watches the agent fleet: tasks, cron jobs, the chat arena,\ntoken usage and n8n workflows.",
		Version:       fmt.Sprintf("stockton %s", appversion.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.init()
		},
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newDashCmd(),
		newAgentsCmd(e),
		newTasksCmd(e),
		newStatsCmd(e),
		newCronCmd(e),
		newChatCmd(e),
		newWorkflowsCmd(e),
		newSettingsCmd(e),
	)

	return cmd
}
