package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"stockton/pkg/board"
	"stockton/pkg/protocol"
)

// newTasksCmd creates the "stockton tasks" subcommand.
func newTasksCmd(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Show the task board",
		Long:  "Lists tasks in three columns: currently doing, queued and completed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.backend()
			if err != nil {
				return err
			}
			tasks, err := store.Tasks(cmd.Context())
			if err != nil {
				return fmt.Errorf("tasks: %w", err)
			}
			b := board.Split(tasks)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), b)
			}
			out := cmd.OutOrStdout()
			printColumn(out, board.Doing, b.Doing)
			printColumn(out, board.Queued, b.Queued)
			printColumn(out, board.Done, b.Done)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printColumn(w io.Writer, col board.Column, tasks []protocol.Task) {
	fmt.Fprintf(w, "%s (%d)\n", col, len(tasks))
	if len(tasks) == 0 {
		fmt.Fprintln(w, "  -")
	}
	for _, t := range tasks {
		pri := "-"
		if t.Priority != nil {
			pri = fmt.Sprintf("P%d", *t.Priority)
		}
		fmt.Fprintf(w, "  [%s] %s  %s  %s  %s\n", pri, t.Title, board.StatusLabel(t.Status), dash(board.Assignee(t)), agoTime(t.Timestamp()))
	}
	fmt.Fprintln(w)
}
