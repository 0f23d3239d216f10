package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"stockton/pkg/chat"
	"stockton/pkg/protocol"
	"stockton/pkg/realtime"
)

// newChatCmd creates the "stockton chat" command group.
func newChatCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Read and post to the chat arena",
	}
	cmd.AddCommand(newChatSendCmd(e), newChatTailCmd(e))
	return cmd
}

func newChatSendCmd(e *env) *cobra.Command {
	var replyTo string
	cmd := &cobra.Command{
		Use:   "send <message...>",
		Short: "Post a message as the operator",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return &protocol.ValidationError{Fields: []string{"message"}, Message: "message is empty"}
			}
			sender, err := e.sender()
			if err != nil {
				return err
			}
			post := chat.Post{Message: text, AgentID: e.cfg.OperatorID, ThreadID: e.cfg.ThreadID}
			if replyTo != "" {
				post.ReplyTo = &replyTo
			}
			row, err := sender.Send(cmd.Context(), post)
			if err != nil {
				return fmt.Errorf("chat send: %w", err)
			}
			if id, ok := row.ID(); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Sent message %s\n", id)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Sent")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&replyTo, "reply-to", "", "id of the message being answered")
	return cmd
}

func newChatTailCmd(e *env) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print arena messages as they arrive",
		Long:  "Prints the latest messages, then follows new ones via push and polling\nuntil interrupted. --once prints the current list and exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.backend()
			if err != nil {
				return err
			}
			opts := chat.ArenaOptions{
				Fetch:    store.ArenaRows,
				Operator: chat.Operator{ID: e.cfg.OperatorID},
				ThreadID: e.cfg.ThreadID,
				Interval: e.cfg.PollInterval,
				Logger:   e.logger,
			}
			if !once {
				if endpoint, err := e.cfg.RealtimeURL(); err == nil {
					opts.Subscriber = realtime.New(endpoint, e.cfg.BackendKey, "chat-arena",
						realtime.Filter{Event: protocol.ChangeInsert, Table: protocol.TableArena},
						realtime.WithLogger(e.logger))
				}
			}
			arena := chat.NewArena(opts)
			defer arena.Close()

			ctx := cmd.Context()
			if err := arena.Start(ctx); err != nil {
				return fmt.Errorf("chat tail: %w", err)
			}
			seen := map[string]bool{}
			printNew(cmd.OutOrStdout(), arena.Rows(), seen)
			if once {
				return nil
			}
			for {
				select {
				case <-ctx.Done():
					return nil
				case rows := <-arena.Updates():
					printNew(cmd.OutOrStdout(), rows, seen)
				}
			}
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "print current messages and exit")
	return cmd
}

// printNew prints rows whose id has not been printed yet.
func printNew(w io.Writer, rows []protocol.Row, seen map[string]bool) {
	msgs, err := protocol.DecodeRows[protocol.Message](rows)
	if err != nil {
		fmt.Fprintf(w, "decode messages: %v\n", err)
		return
	}
	for _, m := range msgs {
		id := m.ID.String()
		if seen[id] {
			continue
		}
		seen[id] = true
		fmt.Fprintln(w, formatMessage(m))
	}
}

func formatMessage(m protocol.Message) string {
	name := m.AgentID
	emoji := ""
	if m.Agent != nil {
		if m.Agent.Name != "" {
			name = m.Agent.Name
		}
		emoji = m.Agent.Emoji
	}
	prefix := chat.FormatAgentDisplayName(name)
	if emoji != "" {
		prefix = emoji + " " + prefix
	}
	kind := ""
	if m.Kind != "" && m.Kind != protocol.KindChat {
		kind = " [" + string(m.Kind) + "]"
	}
	return fmt.Sprintf("%s %s%s: %s", ago(m.CreatedAt), prefix, kind, m.Content)
}
