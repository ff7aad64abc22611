package scribe

import "context"

// NullCheckpointer is a no-op implementation. Tasks run against it cannot
// suspend or resume; it exists for throwaway executions and tests.
type NullCheckpointer struct{}

func NewNullCheckpointer() *NullCheckpointer {
	return &NullCheckpointer{}
}

func (c *NullCheckpointer) SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error {
	checkpoint.Revision++
	return nil
}

func (c *NullCheckpointer) LoadCheckpoint(ctx context.Context, taskID string) (*Checkpoint, error) {
	return nil, nil
}

func (c *NullCheckpointer) DeleteCheckpoint(ctx context.Context, taskID string) error {
	return nil
}
