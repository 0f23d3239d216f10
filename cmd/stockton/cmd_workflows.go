package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stockton/pkg/workflows"
)

// newWorkflowsCmd creates the "stockton workflows" subcommand.
func newWorkflowsCmd(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "workflows [query]",
		Short: "List n8n workflows",
		Long:  "Lists workflows from the n8n instance saved with `stockton settings set n8n-url/n8n-key`.\nAn optional query filters by name or id.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := e.settings(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			n8n, err := st.N8nConfig(ctx)
			if err != nil {
				return err
			}
			client, err := workflows.NewClient(n8n)
			if err != nil {
				return err
			}
			list, err := client.List(ctx)
			if err != nil {
				return fmt.Errorf("workflows: %w", err)
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			list = workflows.Filter(list, query)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tUPDATED\tTAGS")
			for _, wf := range list {
				status := "Inactive"
				if wf.Active {
					status = "Active"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", wf.ID, wf.DisplayName(), status, agoTime(wf.LastUpdated()), dash(strings.Join(wf.TagNames(), ", ")))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d workflows (%d active) at %s\n", len(list), workflows.ActiveCount(list), client.BaseURL())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
