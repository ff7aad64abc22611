// Package scribe implements a durable writing pipeline: a request is
// analyzed into topics and a category, topics are researched in parallel,
// a draft is generated, and the task suspends until a human approves or
// rejects it. Progress is checkpointed at every stage boundary so tasks
// survive process restarts and may resume in a different process.
package scribe

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Category classifies a writing request and selects the draft template.
type Category string

const (
	CategoryComparison Category = "comparison"
	CategoryTutorial   Category = "tutorial"
	CategoryAnalysis   Category = "analysis"
	CategorySummary    Category = "summary"
)

// ValidCategory reports whether c is one of the known categories.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryComparison, CategoryTutorial, CategoryAnalysis, CategorySummary:
		return true
	}
	return false
}

// Stage identifies where a task is in its lifecycle. The checkpointed stage
// alone determines what runs next on resume.
type Stage string

const (
	StageCreated          Stage = "created"
	StageAnalyzing        Stage = "analyzing"
	StageResearching      Stage = "researching"
	StageWriting          Stage = "writing"
	StageAwaitingApproval Stage = "awaiting_approval"
	StageFinalizing       Stage = "finalizing"
	StageCompleted        Stage = "completed"
	StageFailed           Stage = "failed"
)

// Terminal reports whether the stage admits no further transitions.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Decision is a human verdict on a suspended draft.
type Decision struct {
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback,omitempty"`
}

// ResearchResult holds the outcome of researching one topic. Exactly one of
// Content and Error is meaningful.
type ResearchResult struct {
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Failed reports whether the topic's research exhausted its retries.
func (r ResearchResult) Failed() bool {
	return r.Error != ""
}

// WorkflowState is the complete durable state of one task. It is a plain
// value with no internal synchronization: the orchestrator mutates it between
// checkpoint writes, and everything handed outward is a deep copy.
type WorkflowState struct {
	TaskID          string                    `json:"task_id"`
	OriginalRequest string                    `json:"original_request"`
	Topics          []string                  `json:"topics,omitempty"`
	Category        Category                  `json:"category,omitempty"`
	ResearchResults map[string]ResearchResult `json:"research_results,omitempty"`
	Draft           string                    `json:"draft,omitempty"`
	Decision        *Decision                 `json:"decision,omitempty"`
	FinalResult     string                    `json:"final_result,omitempty"`
	Stage           Stage                     `json:"stage"`
	Error           string                    `json:"error,omitempty"`
}

// NewWorkflowState creates the initial state for a task.
func NewWorkflowState(taskID, request string) *WorkflowState {
	return &WorkflowState{
		TaskID:          taskID,
		OriginalRequest: request,
		Stage:           StageCreated,
	}
}

// Validate checks the fields required of every task.
func (s *WorkflowState) Validate() error {
	if s.TaskID == "" {
		return fmt.Errorf("task id required")
	}
	if strings.TrimSpace(s.OriginalRequest) == "" {
		return fmt.Errorf("request text required")
	}
	return nil
}

// Copy returns a deep copy of the state.
func (s *WorkflowState) Copy() *WorkflowState {
	if s == nil {
		return nil
	}
	dup := *s
	if s.Topics != nil {
		dup.Topics = append([]string(nil), s.Topics...)
	}
	if s.ResearchResults != nil {
		dup.ResearchResults = make(map[string]ResearchResult, len(s.ResearchResults))
		for topic, result := range s.ResearchResults {
			dup.ResearchResults[topic] = result
		}
	}
	if s.Decision != nil {
		decision := *s.Decision
		dup.Decision = &decision
	}
	return &dup
}

// Checkpoint is the unit of persistence: a state snapshot plus the revision
// used for compare-and-set saves. Revision zero means the task has never been
// persisted.
type Checkpoint struct {
	State        *WorkflowState `json:"state"`
	Revision     int64          `json:"revision"`
	CreatedAt    time.Time      `json:"created_at"`
	CheckpointAt time.Time      `json:"checkpoint_at,omitzero"`
}

// NewCheckpoint wraps a fresh state in an unpersisted checkpoint.
func NewCheckpoint(state *WorkflowState) *Checkpoint {
	return &Checkpoint{
		State:     state,
		CreatedAt: time.Now(),
	}
}

// Copy returns a deep copy of the checkpoint.
func (c *Checkpoint) Copy() *Checkpoint {
	if c == nil {
		return nil
	}
	dup := *c
	dup.State = c.State.Copy()
	return &dup
}

// String returns a compact JSON rendering, useful in logs and debugging.
func (s *WorkflowState) String() string {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Sprintf("WorkflowState(%s)", s.TaskID)
	}
	return string(data)
}
