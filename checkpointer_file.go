package scribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileCheckpointer persists checkpoints to disk, one JSON file per task. A
// process-wide mutex serializes the read-check-write cycle so the revision
// check is atomic per key; cross-process safety comes from the revision
// stored in the file itself.
type FileCheckpointer struct {
	dataDir string
	mutex   sync.Mutex
}

// NewFileCheckpointer creates a file-based checkpoint store rooted at
// dataDir, defaulting to ~/.scribe/tasks.
func NewFileCheckpointer(dataDir string) (*FileCheckpointer, error) {
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".scribe", "tasks")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	return &FileCheckpointer{dataDir: dataDir}, nil
}

func (c *FileCheckpointer) checkpointPath(taskID string) string {
	return filepath.Join(c.dataDir, taskID+".json")
}

func (c *FileCheckpointer) SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	stored, err := c.read(checkpoint.State.TaskID)
	if err != nil {
		return err
	}
	var current int64
	if stored != nil {
		current = stored.Revision
	}
	if checkpoint.Revision != current {
		return ErrRevisionConflict
	}
	checkpoint.Revision++
	checkpoint.CheckpointAt = time.Now()

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	// Write-then-rename so a crash mid-write leaves the previous
	// checkpoint intact.
	path := c.checkpointPath(checkpoint.State.TaskID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}
	return nil
}

func (c *FileCheckpointer) LoadCheckpoint(ctx context.Context, taskID string) (*Checkpoint, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.read(taskID)
}

func (c *FileCheckpointer) read(taskID string) (*Checkpoint, error) {
	data, err := os.ReadFile(c.checkpointPath(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No checkpoint found
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}
	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &checkpoint, nil
}

func (c *FileCheckpointer) DeleteCheckpoint(ctx context.Context, taskID string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := os.Remove(c.checkpointPath(taskID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint file: %w", err)
	}
	return nil
}

// ListTasks returns summaries for all stored tasks, newest first.
func (c *FileCheckpointer) ListTasks(ctx context.Context) ([]*TaskSummary, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entries, err := os.ReadDir(c.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*TaskSummary{}, nil
		}
		return nil, fmt.Errorf("failed to read tasks directory: %w", err)
	}

	var summaries []*TaskSummary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		checkpoint, err := c.read(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil || checkpoint == nil {
			// Skip tasks we can't read
			continue
		}
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
