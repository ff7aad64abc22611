package scribe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkpointStores builds one of each store implementation against the same
// contract.
func checkpointStores(t *testing.T) map[string]Checkpointer {
	t.Helper()
	fileStore, err := NewFileCheckpointer(t.TempDir())
	require.NoError(t, err)
	return map[string]Checkpointer{
		"memory": NewMemoryCheckpointer(),
		"file":   fileStore,
	}
}

func TestCheckpointerSaveAndLoad(t *testing.T) {
	for name, store := range checkpointStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			state := NewWorkflowState("task_1", "Compare Redis vs PostgreSQL")
			state.Stage = StageAwaitingApproval
			state.Topics = []string{"Redis", "PostgreSQL"}
			state.Category = CategoryComparison
			state.ResearchResults = map[string]ResearchResult{
				"Redis":      {Content: "redis notes"},
				"PostgreSQL": {Error: "unreachable"},
			}
			state.Draft = "draft text"
			checkpoint := NewCheckpoint(state)

			require.NoError(t, store.SaveCheckpoint(ctx, checkpoint))
			assert.Equal(t, int64(1), checkpoint.Revision)

			loaded, err := store.LoadCheckpoint(ctx, "task_1")
			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, int64(1), loaded.Revision)
			assert.Equal(t, StageAwaitingApproval, loaded.State.Stage)
			assert.Equal(t, []string{"Redis", "PostgreSQL"}, loaded.State.Topics)
			assert.Equal(t, CategoryComparison, loaded.State.Category)
			assert.Equal(t, "redis notes", loaded.State.ResearchResults["Redis"].Content)
			assert.True(t, loaded.State.ResearchResults["PostgreSQL"].Failed())
			assert.Equal(t, "draft text", loaded.State.Draft)
			assert.False(t, loaded.CheckpointAt.IsZero())
		})
	}
}

func TestCheckpointerMissingTask(t *testing.T) {
	for name, store := range checkpointStores(t) {
		t.Run(name, func(t *testing.T) {
			loaded, err := store.LoadCheckpoint(context.Background(), "task_missing")
			require.NoError(t, err)
			assert.Nil(t, loaded)
		})
	}
}

func TestCheckpointerRevisionConflict(t *testing.T) {
	for name, store := range checkpointStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			checkpoint := NewCheckpoint(NewWorkflowState("task_1", "request"))
			require.NoError(t, store.SaveCheckpoint(ctx, checkpoint))

			// A second writer loads the same revision and wins the race.
			other, err := store.LoadCheckpoint(ctx, "task_1")
			require.NoError(t, err)
			require.NoError(t, store.SaveCheckpoint(ctx, other))

			// The first writer's next save now carries a stale revision.
			err = store.SaveCheckpoint(ctx, checkpoint)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrRevisionConflict))

			// The winning write is what persists.
			final, err := store.LoadCheckpoint(ctx, "task_1")
			require.NoError(t, err)
			assert.Equal(t, int64(2), final.Revision)
		})
	}
}

func TestCheckpointerStaleNewSaveConflicts(t *testing.T) {
	for name, store := range checkpointStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.SaveCheckpoint(ctx, NewCheckpoint(NewWorkflowState("task_1", "request"))))

			// A zero-revision save against an existing record must not clobber it.
			err := store.SaveCheckpoint(ctx, NewCheckpoint(NewWorkflowState("task_1", "other request")))
			assert.True(t, errors.Is(err, ErrRevisionConflict))
		})
	}
}

func TestCheckpointerDelete(t *testing.T) {
	for name, store := range checkpointStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.SaveCheckpoint(ctx, NewCheckpoint(NewWorkflowState("task_1", "request"))))
			require.NoError(t, store.DeleteCheckpoint(ctx, "task_1"))

			loaded, err := store.LoadCheckpoint(ctx, "task_1")
			require.NoError(t, err)
			assert.Nil(t, loaded)

			// Deleting a missing task is not an error
			require.NoError(t, store.DeleteCheckpoint(ctx, "task_1"))
		})
	}
}

func TestCheckpointerListTasks(t *testing.T) {
	for name, store := range checkpointStores(t) {
		t.Run(name, func(t *testing.T) {
			lister, ok := store.(TaskLister)
			require.True(t, ok)

			ctx := context.Background()
			base := time.Now()
			for i, taskID := range []string{"task_a", "task_b", "task_c"} {
				checkpoint := NewCheckpoint(NewWorkflowState(taskID, "request "+taskID))
				checkpoint.CreatedAt = base.Add(time.Duration(i) * time.Second)
				require.NoError(t, store.SaveCheckpoint(ctx, checkpoint))
			}

			summaries, err := lister.ListTasks(ctx)
			require.NoError(t, err)
			require.Len(t, summaries, 3)
			// Newest first
			assert.Equal(t, "task_c", summaries[0].TaskID)
			assert.Equal(t, "task_a", summaries[2].TaskID)
			assert.Equal(t, StageCreated, summaries[0].Stage)
		})
	}
}

func TestMemoryCheckpointerIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCheckpointer()

	state := NewWorkflowState("task_1", "request")
	state.Topics = []string{"Redis"}
	checkpoint := NewCheckpoint(state)
	require.NoError(t, store.SaveCheckpoint(ctx, checkpoint))

	// Mutating the caller's state after save must not affect the store
	state.Topics[0] = "changed"
	loaded, err := store.LoadCheckpoint(ctx, "task_1")
	require.NoError(t, err)
	assert.Equal(t, "Redis", loaded.State.Topics[0])

	// Mutating a loaded copy must not affect the store either
	loaded.State.Draft = "scribble"
	reloaded, err := store.LoadCheckpoint(ctx, "task_1")
	require.NoError(t, err)
	assert.Empty(t, reloaded.State.Draft)
}

func TestNullCheckpointer(t *testing.T) {
	ctx := context.Background()
	store := NewNullCheckpointer()

	checkpoint := NewCheckpoint(NewWorkflowState("task_1", "request"))
	require.NoError(t, store.SaveCheckpoint(ctx, checkpoint))
	assert.Equal(t, int64(1), checkpoint.Revision)

	loaded, err := store.LoadCheckpoint(ctx, "task_1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
	require.NoError(t, store.DeleteCheckpoint(ctx, "task_1"))
}
