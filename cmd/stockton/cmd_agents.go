package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stockton/pkg/board"
	"stockton/pkg/protocol"
)

// newAgentsCmd creates the "stockton agents" subcommand.
func newAgentsCmd(e *env) *cobra.Command {
	var (
		asJSON  bool
		working bool
	)
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List agents with status and load",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.backend()
			if err != nil {
				return err
			}
			agents, err := store.Agents(cmd.Context())
			if err != nil {
				return fmt.Errorf("agents: %w", err)
			}
			if working {
				agents = board.Working(agents)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), agents)
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tLOAD\tTASK")
			for _, a := range agents {
				load := fmt.Sprintf("%g/10", a.Load)
				if board.LoadLevel(a.Load) == board.LevelCritical {
					load += " overloaded"
				}
				fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\t%s\n", a.ID, a.Emoji, a.Name, a.NormalizedStatus(), load, dash(a.CurrentTask))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			s := board.SummarizeAgents(agents)
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d agents: %d active, %d idle, %d overloaded\n", s.Total, s.Active, s.Idle, s.Overloaded)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&working, "working", false, "only agents that are busy or have a current task")
	cmd.AddCommand(newAgentPersonaCmd(e))
	return cmd
}

// newAgentPersonaCmd creates "stockton agents persona <id>".
func newAgentPersonaCmd(e *env) *cobra.Command {
	var set []string
	cmd := &cobra.Command{
		Use:   "persona <id>",
		Short: "Show or update an agent's persona documents",
		Long:  "Prints identity.md, soul.md, user.md, tools.md and agents.md.\nWith --set field=path, replaces that document with the file's contents.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.backend()
			if err != nil {
				return err
			}
			agents, err := store.Agents(cmd.Context())
			if err != nil {
				return fmt.Errorf("persona: %w", err)
			}
			var agent *protocol.Agent
			for i := range agents {
				if agents[i].ID == args[0] {
					agent = &agents[i]
				}
			}
			if agent == nil {
				return fmt.Errorf("persona: agent %q not found", args[0])
			}

			persona := agent.Persona()
			if len(set) > 0 {
				if err := applyPersonaFiles(&persona, set); err != nil {
					return fmt.Errorf("persona: %w", err)
				}
				if _, err := store.UpdateAgentPersona(cmd.Context(), agent.ID, persona); err != nil {
					return fmt.Errorf("persona: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated persona for %s\n", agent.ID)
				return nil
			}

			docs := personaDocs(persona)
			for _, f := range protocol.PersonaFields {
				fmt.Fprintf(cmd.OutOrStdout(), "## %s\n%s\n\n", f.Label, dash(docs[f.Key]))
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&set, "set", nil, "field=path, e.g. soul_md=./soul.md")
	return cmd
}
