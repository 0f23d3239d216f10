package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"stockton/pkg/backend"
	"stockton/pkg/board"
	"stockton/pkg/protocol"
)

// loadHome fetches agents, tasks and token usage in parallel.
func loadHome(ctx context.Context, store *backend.Store, now time.Time) (board.HomeStats, error) {
	var (
		agents []protocol.Agent
		tasks  []protocol.Task
		usage  []protocol.TokenUsage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { agents, err = store.Agents(gctx); return err })
	g.Go(func() (err error) { tasks, err = store.Tasks(gctx); return err })
	g.Go(func() (err error) { usage, err = store.TokenUsage(gctx); return err })
	if err := g.Wait(); err != nil {
		return board.HomeStats{}, err
	}
	return board.ComputeHome(now, agents, tasks, usage), nil
}

// newStatsCmd creates the "stockton stats" subcommand.
func newStatsCmd(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show home counters",
		Long:  "Tokens used today (UTC), pending and completed tasks, and active agents.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.backend()
			if err != nil {
				return err
			}
			s, err := loadHome(cmd.Context(), store, time.Now())
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), s)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tokens today:   %s\n", humanize.Comma(s.TokensToday))
			fmt.Fprintf(out, "Tasks pending:  %d\n", s.TasksPending)
			fmt.Fprintf(out, "Tasks done:     %d\n", s.TasksDone)
			fmt.Fprintf(out, "Active agents:  %d of %d\n", s.ActiveAgents, s.TotalAgents)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
