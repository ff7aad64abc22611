package scribe

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskErrorFormatting(t *testing.T) {
	err := NewTaskError(ErrorKindRejected, "too shallow")
	assert.Equal(t, "rejected: too shallow", err.Error())
}

func TestWrapTaskErrorPreservesChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapTaskError(ErrorKindInfrastructure, fmt.Errorf("saving checkpoint: %w", cause))
	assert.True(t, errors.Is(err, cause))

	var taskErr *TaskError
	require.True(t, errors.As(err, &taskErr))
	assert.Equal(t, ErrorKindInfrastructure, taskErr.Kind)
}

func TestClassifyTaskError(t *testing.T) {
	classified := ClassifyTaskError(NewTaskError(ErrorKindDraftGeneration, "provider down"))
	assert.Equal(t, ErrorKindDraftGeneration, classified.Kind)

	// Wrapped classification is found through the chain
	wrapped := fmt.Errorf("stage failed: %w", NewTaskError(ErrorKindConfiguration, "bad tool"))
	assert.Equal(t, ErrorKindConfiguration, ClassifyTaskError(wrapped).Kind)

	// Unclassified errors default to internal
	assert.Equal(t, ErrorKindInternal, ClassifyTaskError(errors.New("surprise")).Kind)
}

func TestIsInfrastructureError(t *testing.T) {
	assert.True(t, IsInfrastructureError(WrapTaskError(ErrorKindInfrastructure, errors.New("store down"))))
	assert.False(t, IsInfrastructureError(NewTaskError(ErrorKindRejected, "no")))
	assert.False(t, IsInfrastructureError(errors.New("plain")))
	assert.False(t, IsInfrastructureError(nil))
}

func TestToolErrors(t *testing.T) {
	assert.Equal(t, `unknown tool: "websearch"`, (&UnknownToolError{Name: "websearch"}).Error())
	assert.Equal(t, `tool already registered: "search"`, (&DuplicateToolError{Name: "search"}).Error())
}
