package protocol

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// TransportError represents a request that never produced a response: DNS
// failure, refused connection, TLS failure, timeout.
// It enables typed error discrimination via errors.As.
type TransportError struct {
	Service string // "backend", "n8n", "webhook", "realtime"
	URL     string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s unreachable (%s): %v", e.Service, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError represents a non-2xx response or a query rejection from a collaborator.
type APIError struct {
	Service string
	Status  int
	Message string // extracted from the body, already truncated
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s error %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s error %d: %s", e.Service, e.Status, e.Message)
}

// ValidationError represents input rejected before any request was sent.
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// ErrClosed is returned by components used after teardown.
var ErrClosed = errors.New("closed")

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// UserMessage converts an error into the inline text shown next to the
// control that triggered it. Transport failures get a hint about reachability
// instead of the raw dial error; everything else keeps its context.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var te *TransportError
	if errors.As(err, &te) {
		if errors.Is(te.Err, context.DeadlineExceeded) {
			return fmt.Sprintf("Timed out reaching %s. Check the URL and your network.", te.Service)
		}
		return fmt.Sprintf("Could not reach %s at %s (network blocked or host down). Check the URL or use a proxy.", te.Service, te.URL)
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Error()
	}
	return err.Error()
}
