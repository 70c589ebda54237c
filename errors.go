package assistant

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is matched by every *NotFoundError via errors.Is.
var ErrNotFound = errors.New("not found")

// ConfigError reports a missing or invalid setting. It is fatal at startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// ExternalServiceError wraps a failed call to a paper source, the scorer or
// the chat transport. Callers log it and skip the affected unit of work.
type ExternalServiceError struct {
	Service string
	Op      string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// AmbiguousIntentError means the input could not be resolved to exactly one
// action. Reason is shown to the user; Candidates lists tied tasks, if any.
type AmbiguousIntentError struct {
	Input      string
	Reason     string
	Candidates []Task
}

func (e *AmbiguousIntentError) Error() string {
	return "ambiguous intent: " + e.Reason
}

// Prompt renders the clarification message sent back to the user.
func (e *AmbiguousIntentError) Prompt() string {
	if len(e.Candidates) == 0 {
		return e.Reason
	}
	var sb strings.Builder
	sb.WriteString(e.Reason)
	for _, t := range e.Candidates {
		sb.WriteString("\n")
		sb.WriteString(formatTaskLine(&t, nil))
	}
	return sb.String()
}

// NotFoundError reports a task, paper or goal id that does not exist.
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s #%d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
