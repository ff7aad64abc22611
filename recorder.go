package scribe

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// TaskRecord mirrors a task's externally visible state into a relational
// store: identity, stage, timestamps, and the terminal payload. It carries
// no intermediate pipeline data.
type TaskRecord struct {
	TaskID      string
	Stage       Stage
	Request     string
	FinalResult string
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskRecorder persists task records. The postgres package provides the
// production implementation.
type TaskRecorder interface {
	UpsertTask(ctx context.Context, record *TaskRecord) error
}

// RecorderCallbacks adapts a TaskRecorder into the callback interface so
// every status transition is mirrored to the relational store. Mirror
// failures are logged, never propagated: the checkpoint store is the source
// of truth and the record is an at-rest copy.
type RecorderCallbacks struct {
	BaseTaskCallbacks
	recorder TaskRecorder
	logger   *slog.Logger
}

// NewRecorderCallbacks creates the adapter.
func NewRecorderCallbacks(recorder TaskRecorder, logger *slog.Logger) *RecorderCallbacks {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RecorderCallbacks{recorder: recorder, logger: logger}
}

func (r *RecorderCallbacks) OnStatusChange(ctx context.Context, event *StatusEvent) {
	record := &TaskRecord{
		TaskID:      event.TaskID,
		Stage:       event.Stage,
		Request:     event.Request,
		FinalResult: event.FinalResult,
		Error:       event.Error,
		UpdatedAt:   event.Time,
	}
	if err := r.recorder.UpsertTask(ctx, record); err != nil {
		r.logger.Error("failed to mirror task record",
			"task_id", event.TaskID,
			"stage", event.Stage,
			"error", err)
	}
}
