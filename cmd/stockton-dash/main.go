// Package main implements the stockton-dash interactive dashboard.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"stockton/internal/appversion"
	"stockton/internal/config"
	"stockton/internal/logging"
	"stockton/pkg/protocol"
)

// now is the clock used for day-bucketed counters.
var now = time.Now

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newRootCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:           "stockton-dash",
		Short:         "Interactive agent operations dashboard",
		Long:          "Live views of tasks, cron jobs, agents, the chat arena and n8n workflows.\nWhen stdout is not a terminal, or with --json, prints one JSON snapshot instead.",
		Version:       fmt.Sprintf("stockton-dash %s", appversion.String()),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON || !isTerminal(out) {
				return runRobot(cmd.Context(), cfg, out)
			}
			return runTUI(cmd.Context(), cfg)
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print a JSON snapshot and exit")
	return cmd
}

// runRobot prints one snapshot. Logs go to stderr since there is no screen.
func runRobot(ctx context.Context, cfg *config.Config, out io.Writer) error {
	logger := logging.New(os.Stderr, logging.ParseLevel(cfg.LogLevel))
	svc, err := newServices(cfg, logger)
	if err != nil {
		return err
	}
	snap, err := svc.fetchSnapshot(ctx)
	if err != nil {
		return err
	}
	data, err := robotMode(snap)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// runTUI starts the dashboard. stdout belongs to the screen, so logs go to
// the configured log file.
func runTUI(ctx context.Context, cfg *config.Config) error {
	logger, closer, err := logging.OpenFile(cfg.LogPath, logging.ParseLevel(cfg.LogLevel))
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	svc, err := newServices(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.close()

	watcher := watchSettings(cfg.SettingsDB, logger)
	defer watcher.close()

	m := newModel(ctx, svc, watcher, cfg.OperatorID, cfg.PollInterval)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run dashboard: %w", err)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "stockton-dash: %s\n", protocol.UserMessage(err))
		os.Exit(1)
	}
}
