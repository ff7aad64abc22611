package scribe

import (
	"errors"
	"fmt"
)

// Error kind constants for classifying task failures. The kind decides who
// handles the failure: infrastructure errors are retried by the TaskExecutor,
// everything else fails the task with a structured reason.
const (
	// ErrorKindConfiguration marks a setup bug such as an unknown tool or
	// template. Never retried.
	ErrorKindConfiguration = "configuration"

	// ErrorKindResearchExhausted marks a research stage where every topic
	// exhausted its retries.
	ErrorKindResearchExhausted = "research_exhausted"

	// ErrorKindDraftGeneration marks a writing stage that exhausted its
	// retries against the text-generation provider.
	ErrorKindDraftGeneration = "draft_generation"

	// ErrorKindRejected marks a draft rejected by its human reviewer.
	ErrorKindRejected = "rejected"

	// ErrorKindInfrastructure marks an unreachable checkpoint store or
	// queue. Retried at the task level, not the stage level.
	ErrorKindInfrastructure = "infrastructure"

	// ErrorKindInternal marks a programming-invariant violation.
	ErrorKindInternal = "internal"
)

// Sentinel errors for caller misuse. These reject the call and leave the
// task untouched.
var (
	// ErrAlreadyTerminal is returned when resuming a task that has already
	// completed or failed.
	ErrAlreadyTerminal = errors.New("task is already in a terminal state")

	// ErrNotAwaitingApproval is returned when a decision arrives for a task
	// that is not suspended.
	ErrNotAwaitingApproval = errors.New("task is not awaiting approval")

	// ErrTaskNotFound is returned when no checkpoint exists for a task.
	ErrTaskNotFound = errors.New("task not found")

	// ErrRevisionConflict is returned by checkpoint stores when a save loses
	// a compare-and-set race with another writer.
	ErrRevisionConflict = errors.New("checkpoint revision conflict")
)

// TaskError is a structured task failure with a classification kind. It
// supports Go's error wrapping patterns with Unwrap.
type TaskError struct {
	Kind    string
	Cause   string
	Wrapped error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
}

func (e *TaskError) Unwrap() error {
	return e.Wrapped
}

// NewTaskError creates a TaskError with the given kind and cause.
func NewTaskError(kind, cause string) *TaskError {
	return &TaskError{Kind: kind, Cause: cause}
}

// WrapTaskError wraps err with a classification kind, preserving it for
// errors.Is and errors.As.
func WrapTaskError(kind string, err error) *TaskError {
	return &TaskError{Kind: kind, Cause: err.Error(), Wrapped: err}
}

// ClassifyTaskError normalizes an error into a TaskError. Errors that carry
// no classification default to internal, which fails the task without a
// task-level retry.
func ClassifyTaskError(err error) *TaskError {
	var taskErr *TaskError
	if errors.As(err, &taskErr) {
		return taskErr
	}
	return &TaskError{Kind: ErrorKindInternal, Cause: err.Error(), Wrapped: err}
}

// IsInfrastructureError reports whether err should be retried at the task
// level by the executor rather than failing the task outright.
func IsInfrastructureError(err error) bool {
	var taskErr *TaskError
	if errors.As(err, &taskErr) {
		return taskErr.Kind == ErrorKindInfrastructure
	}
	return false
}

// UnknownToolError indicates a research tool name that no registration
// matches. This is a configuration bug, not a runtime condition.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %q", e.Name)
}

// DuplicateToolError indicates a tool name registered twice. Registration
// happens once at startup, so a duplicate is a configuration bug.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool already registered: %q", e.Name)
}
