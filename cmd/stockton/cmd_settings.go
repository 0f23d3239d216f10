package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stockton/pkg/settings"
	"stockton/pkg/workflows"
)

// settingAliases maps friendly names to stored keys.
var settingAliases = map[string]string{
	"n8n-url": settings.KeyN8nBaseURL,
	"n8n-key": settings.KeyN8nAPIKey,
}

// newSettingsCmd creates the "stockton settings" command group.
func newSettingsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change local settings",
	}
	cmd.AddCommand(newSettingsShowCmd(e), newSettingsSetCmd(e))
	return cmd
}

func newSettingsShowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print resolved configuration and stored settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "home:          %s\n", e.cfg.Home)
			fmt.Fprintf(out, "config file:   %s\n", dash(e.cfg.File))
			fmt.Fprintf(out, "backend:       %s\n", dash(e.cfg.BackendURL))
			fmt.Fprintf(out, "backend key:   %s\n", dash(settings.Redact(e.cfg.BackendKey)))
			fmt.Fprintf(out, "webhook:       %s\n", e.cfg.WebhookURL)
			fmt.Fprintf(out, "operator:      %s\n", e.cfg.OperatorID)
			fmt.Fprintf(out, "poll interval: %s\n", e.cfg.PollInterval)
			fmt.Fprintf(out, "settings db:   %s\n\n", e.cfg.SettingsDB)

			st, err := e.settings(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			entries, err := st.All(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable(out)
			fmt.Fprintln(tw, "KEY\tVALUE\tUPDATED")
			for _, en := range entries {
				v := en.Value
				if en.Key == settings.KeyN8nAPIKey {
					v = settings.Redact(v)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", en.Key, dash(v), ago(en.UpdatedAt))
			}
			return tw.Flush()
		},
	}
}

func newSettingsSetCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a local setting",
		Long:  "Stores a value in the local settings database. n8n-url and n8n-key are\naliases for the n8n connection; the URL is validated before saving.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			if alias, ok := settingAliases[key]; ok {
				key = alias
			}
			value := args[1]
			if key == settings.KeyN8nBaseURL {
				if _, err := workflows.NormalizeBaseURL(value); err != nil {
					return err
				}
			}
			st, err := e.settings(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Set(cmd.Context(), key, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", key)
			return nil
		},
	}
}
