package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stockton/pkg/backend"
	"stockton/pkg/board"
	"stockton/pkg/copilot"
	"stockton/pkg/protocol"
	"stockton/pkg/schedule"
)

// newCronCmd creates the "stockton cron" command group.
func newCronCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Manage scheduled agent jobs",
		Long:  "List, create, edit, toggle and delete cron job descriptions.\nStockton stores jobs; agents execute them.",
	}
	cmd.AddCommand(
		newCronListCmd(e),
		newCronAddCmd(e),
		newCronEditCmd(e),
		newCronToggleCmd(e),
		newCronRmCmd(e),
		newCronSuggestCmd(e),
		newCronHumanizeCmd(),
	)
	return cmd
}

func newCronListCmd(e *env) *cobra.Command {
	var (
		agent  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cron jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.backend()
			if err != nil {
				return err
			}
			jobs, err := store.CronJobs(cmd.Context())
			if err != nil {
				return fmt.Errorf("cron list: %w", err)
			}
			jobs = board.FilterJobs(jobs, agent)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), jobs)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME\tSCHEDULE\tCOMMAND\tAGENT\tSTATE")
			for _, j := range jobs {
				state := "disabled"
				if j.Enabled {
					state = "active"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					j.ID, j.Name, schedule.Humanize(j.Schedule), j.Command, orUnassigned(j.Owner()), state)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			c := board.CountJobs(jobs)
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d jobs: %d active, %d disabled\n", c.Total, c.Active, c.Disabled)
			return nil
		},
	}
	cmd.Flags().StringVar(&agent, "agent", board.AllAgents, "only jobs owned by this agent id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func orUnassigned(s string) string {
	if s == "" {
		return "Unassigned"
	}
	return s
}

// jobFlags binds the job form to command flags.
type jobFlags struct {
	name, schedule, command, description, agent string
	every                                       string
	disabled                                    bool
}

func (f *jobFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "job name")
	cmd.Flags().StringVar(&f.schedule, "schedule", "", "cron schedule, e.g. \"0 */2 * * *\"")
	cmd.Flags().StringVar(&f.every, "every", "", "simple schedule, e.g. 15m, 2h, 1d")
	cmd.Flags().StringVar(&f.command, "command", "", "command token, e.g. run_backup()")
	cmd.Flags().StringVar(&f.description, "description", "", "free-text description")
	cmd.Flags().StringVar(&f.agent, "agent", "", "owning agent id")
	cmd.Flags().BoolVar(&f.disabled, "disabled", false, "create or leave the job disabled")
}

// overlay copies every flag the user set onto in.
func (f *jobFlags) overlay(cmd *cobra.Command, in *backend.JobInput) error {
	changed := cmd.Flags().Changed
	if changed("name") {
		in.Name = f.name
	}
	if changed("every") {
		expr, err := parseEvery(f.every)
		if err != nil {
			return err
		}
		in.Schedule = expr
	}
	if changed("schedule") {
		in.Schedule = f.schedule
	}
	if changed("command") {
		in.Command = f.command
	}
	if changed("description") {
		in.Description = f.description
	}
	if changed("agent") {
		in.CreatedBy = f.agent
	}
	if changed("disabled") {
		in.Enabled = !f.disabled
	}
	return nil
}

// parseEvery turns "15m", "2 hours" or "1d" into a simple schedule.
func parseEvery(s string) (string, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	i := strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	if i <= 0 {
		return "", fmt.Errorf("invalid --every %q: want e.g. 15m, 2h, 1d", s)
	}
	var n int
	if _, err := fmt.Sscanf(s[:i], "%d", &n); err != nil {
		return "", fmt.Errorf("invalid --every %q: %w", s, err)
	}
	unit, err := schedule.ParseUnit(strings.TrimSpace(s[i:]))
	if err != nil {
		return "", fmt.Errorf("invalid --every %q: %w", s, err)
	}
	return schedule.FromParts(n, unit), nil
}

func newCronAddCmd(e *env) *cobra.Command {
	var (
		f      jobFlags
		prompt string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a cron job",
		Long:  "Creates a job from flags. --prompt pre-fills the form from plain English;\nexplicit flags win over the suggestion.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.backend()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			agents, err := store.Agents(ctx)
			if err != nil {
				return fmt.Errorf("cron add: %w", err)
			}
			in := backend.JobInput{
				Schedule:  schedule.DefaultSchedule,
				CreatedBy: board.DefaultOwner(agents, "ramon"),
				Enabled:   true,
			}
			if strings.TrimSpace(prompt) != "" {
				copilot.Parse(prompt, agents).ApplyTo(&in)
			}
			if err := f.overlay(cmd, &in); err != nil {
				return err
			}
			job, err := store.CreateCronJob(ctx, in)
			if err != nil {
				return fmt.Errorf("cron add: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created cron job %s %q (%s)\n", job.ID, job.Name, schedule.Humanize(job.Schedule))
			return nil
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&prompt, "prompt", "", "describe the job in plain English")
	return cmd
}

// findJob looks a job up by id.
func findJob(ctx context.Context, store *backend.Store, id string) (protocol.Job, error) {
	jobs, err := store.CronJobs(ctx)
	if err != nil {
		return protocol.Job{}, err
	}
	for _, j := range jobs {
		if j.ID.String() == id {
			return j, nil
		}
	}
	return protocol.Job{}, fmt.Errorf("cron job %s not found", id)
}

func newCronEditCmd(e *env) *cobra.Command {
	var f jobFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a cron job",
		Long:  "Changes only the fields given as flags; the rest keep their current values.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.backend()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			job, err := findJob(ctx, store, args[0])
			if err != nil {
				return fmt.Errorf("cron edit: %w", err)
			}
			in := backend.InputFromJob(job)
			if err := f.overlay(cmd, &in); err != nil {
				return err
			}
			if _, err := store.UpdateCronJob(ctx, args[0], in); err != nil {
				return fmt.Errorf("cron edit: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated cron job %s\n", args[0])
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func newCronToggleCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Enable a disabled job or disable an enabled one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.backend()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			job, err := findJob(ctx, store, args[0])
			if err != nil {
				return fmt.Errorf("cron toggle: %w", err)
			}
			if err := store.SetCronJobEnabled(ctx, args[0], !job.Enabled); err != nil {
				return fmt.Errorf("cron toggle: %w", err)
			}
			state := "disabled"
			if !job.Enabled {
				state = "enabled"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cron job %s %s\n", args[0], state)
			return nil
		},
	}
}

var errAborted = errors.New("aborted")

func newCronRmCmd(e *env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a cron job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.backend()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			job, err := findJob(ctx, store, args[0])
			if err != nil {
				return fmt.Errorf("cron rm: %w", err)
			}
			if !yes {
				fmt.Fprintf(cmd.OutOrStdout(), "Delete cron job %q? [y/N] ", job.Name)
				answer, _ := bufio.NewReader(e.stdin).ReadString('\n')
				if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
					return errAborted
				}
			}
			if err := store.DeleteCronJob(ctx, args[0]); err != nil {
				return fmt.Errorf("cron rm: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted cron job %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

func newCronSuggestCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <prompt...>",
		Short: "Suggest a job from plain English",
		Long:  "Prints the job form the copilot would fill in. Agents are matched\nwhen the backend is configured.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var agents []protocol.Agent
			if store, err := e.backend(); err == nil {
				if agents, err = store.Agents(cmd.Context()); err != nil {
					e.logger.Warn("agents unavailable for suggestion", "error", err)
				}
			}
			s := copilot.Parse(strings.Join(args, " "), agents)
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func newCronHumanizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "humanize <schedule>",
		Short: "Describe a cron schedule in words",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr := strings.Join(args, " ")
			fmt.Fprintln(cmd.OutOrStdout(), schedule.Humanize(expr))
			if err := schedule.Validate(expr); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			return nil
		},
	}
}
