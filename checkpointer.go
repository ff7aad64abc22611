package scribe

import (
	"context"
	"time"
)

// Checkpointer persists task checkpoints keyed by task ID. It is the single
// point of truth across processes: the orchestrator never carries state over
// a suspension boundary except through this store.
//
// SaveCheckpoint uses optimistic concurrency: the save succeeds only when the
// stored revision equals checkpoint.Revision (zero meaning no record exists
// yet). On success the implementation increments checkpoint.Revision in place
// and persists the incremented value; on a lost race it returns
// ErrRevisionConflict and persists nothing.
type Checkpointer interface {
	// SaveCheckpoint durably writes the checkpoint, subject to the
	// revision check described above.
	SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error

	// LoadCheckpoint returns the checkpoint for a task, or (nil, nil) when
	// none exists.
	LoadCheckpoint(ctx context.Context, taskID string) (*Checkpoint, error)

	// DeleteCheckpoint removes the checkpoint for a task.
	DeleteCheckpoint(ctx context.Context, taskID string) error
}

// TaskSummary describes a stored task for diagnostics and listings.
type TaskSummary struct {
	TaskID       string    `json:"task_id"`
	Stage        Stage     `json:"stage"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
	CheckpointAt time.Time `json:"checkpoint_at,omitzero"`
	Error        string    `json:"error,omitempty"`
}

// TaskLister is implemented by checkpoint stores that can enumerate their
// tasks.
type TaskLister interface {
	ListTasks(ctx context.Context) ([]*TaskSummary, error)
}
