package protocol_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"stockton/pkg/protocol"
)

func TestTransportError_ErrorsAs(t *testing.T) {
	t.Parallel()

	inner := errors.New("connection refused")
	wrapped := fmt.Errorf("list workflows: %w", &protocol.TransportError{
		Service: "n8n",
		URL:     "https://n8n.example.com",
		Err:     inner,
	})

	var target *protocol.TransportError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As failed to extract TransportError")
	}
	if target.Service != "n8n" {
		t.Errorf("expected Service 'n8n', got %q", target.Service)
	}
	if !errors.Is(wrapped, inner) {
		t.Error("TransportError must unwrap to the underlying error")
	}
}

func TestAPIError_Message(t *testing.T) {
	t.Parallel()

	err := &protocol.APIError{Service: "n8n API", Status: 401, Message: "unauthorized"}
	if got := err.Error(); got != "n8n API error 401: unauthorized" {
		t.Errorf("unexpected message %q", got)
	}

	bare := &protocol.APIError{Service: "backend", Status: 500}
	if got := bare.Error(); got != "backend error 500" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestValidationError_ListsFields(t *testing.T) {
	t.Parallel()

	err := &protocol.ValidationError{Fields: []string{"name", "command"}}
	if got := err.Error(); got != "missing required fields: name, command" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestUserMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{
			name: "transport",
			err:  &protocol.TransportError{Service: "n8n", URL: "https://x.test", Err: errors.New("dial tcp")},
			want: "Could not reach n8n",
		},
		{
			name: "timeout",
			err:  &protocol.TransportError{Service: "webhook", URL: "https://x.test", Err: context.DeadlineExceeded},
			want: "Timed out reaching webhook",
		},
		{
			name: "api rejection keeps body",
			err:  fmt.Errorf("send: %w", &protocol.APIError{Service: "webhook", Status: 422, Message: "bad payload"}),
			want: "webhook error 422: bad payload",
		},
		{
			name: "validation",
			err:  &protocol.ValidationError{Message: "Name, cron schedule, and command are required."},
			want: "Name, cron schedule, and command are required.",
		},
		{name: "other", err: errors.New("boom"), want: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := protocol.UserMessage(tt.err)
			if tt.want == "" && got != "" {
				t.Fatalf("UserMessage(nil) = %q, want empty", got)
			}
			if !strings.HasPrefix(got, tt.want) {
				t.Errorf("UserMessage() = %q, want prefix %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := protocol.Truncate("héllo", 2); got != "hé" {
		t.Errorf("Truncate rune-aware: got %q", got)
	}
	if got := protocol.Truncate("abc", 10); got != "abc" {
		t.Errorf("Truncate short input: got %q", got)
	}
}
