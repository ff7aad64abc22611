package scribe

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryCheckpointer is an in-process checkpoint store. It honors the same
// revision discipline as the durable implementations, which makes it suitable
// for tests and single-process runs but not for restart tolerance.
type MemoryCheckpointer struct {
	mutex       sync.Mutex
	checkpoints map[string]*Checkpoint
}

// NewMemoryCheckpointer creates an empty in-memory checkpoint store.
func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{checkpoints: map[string]*Checkpoint{}}
}

func (c *MemoryCheckpointer) SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var current int64
	if stored, ok := c.checkpoints[checkpoint.State.TaskID]; ok {
		current = stored.Revision
	}
	if checkpoint.Revision != current {
		return ErrRevisionConflict
	}
	checkpoint.Revision++
	checkpoint.CheckpointAt = time.Now()
	c.checkpoints[checkpoint.State.TaskID] = checkpoint.Copy()
	return nil
}

func (c *MemoryCheckpointer) LoadCheckpoint(ctx context.Context, taskID string) (*Checkpoint, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	checkpoint, ok := c.checkpoints[taskID]
	if !ok {
		return nil, nil
	}
	return checkpoint.Copy(), nil
}

func (c *MemoryCheckpointer) DeleteCheckpoint(ctx context.Context, taskID string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.checkpoints, taskID)
	return nil
}

// ListTasks returns summaries for all stored tasks, newest first.
func (c *MemoryCheckpointer) ListTasks(ctx context.Context) ([]*TaskSummary, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	summaries := make([]*TaskSummary, 0, len(c.checkpoints))
	for _, checkpoint := range c.checkpoints {
		summaries = append(summaries, &TaskSummary{
			TaskID:       checkpoint.State.TaskID,
			Stage:        checkpoint.State.Stage,
			CreatedAt:    checkpoint.CreatedAt,
			CheckpointAt: checkpoint.CheckpointAt,
			Error:        checkpoint.State.Error,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}
