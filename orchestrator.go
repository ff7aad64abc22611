package scribe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// DefaultResearchTool is the tool name used when none is configured.
const DefaultResearchTool = "search"

// OrchestratorOptions configures an Orchestrator.
type OrchestratorOptions struct {
	Analyzer     *PromptAnalyzer
	Research     *ResearchStage
	Writing      *WritingStage
	Checkpointer Checkpointer
	Callbacks    TaskCallbacks
	Logger       *slog.Logger
	ResearchTool string
}

// Orchestrator is the task state machine. It sequences analysis, research,
// and writing, persists a checkpoint strictly before every return or
// suspension, suspends once a draft exists, and finalizes or fails when a
// human decision arrives. It holds no task state of its own: every entry
// point reconstructs context from the checkpoint store, so suspension
// survives process death and resume may run in a different process.
type Orchestrator struct {
	analyzer     *PromptAnalyzer
	research     *ResearchStage
	writing      *WritingStage
	checkpointer Checkpointer
	callbacks    TaskCallbacks
	logger       *slog.Logger
	researchTool string
}

// NewOrchestrator creates an orchestrator. Analyzer, research, and writing
// stages are required; the checkpointer defaults to in-memory.
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}
	if opts.Research == nil {
		return nil, fmt.Errorf("research stage is required")
	}
	if opts.Writing == nil {
		return nil, fmt.Errorf("writing stage is required")
	}
	if opts.Checkpointer == nil {
		opts.Checkpointer = NewMemoryCheckpointer()
	}
	if opts.Callbacks == nil {
		opts.Callbacks = &BaseTaskCallbacks{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.ResearchTool == "" {
		opts.ResearchTool = DefaultResearchTool
	}
	return &Orchestrator{
		analyzer:     opts.Analyzer,
		research:     opts.Research,
		writing:      opts.Writing,
		checkpointer: opts.Checkpointer,
		callbacks:    opts.Callbacks,
		logger:       opts.Logger,
		researchTool: opts.ResearchTool,
	}, nil
}

// Start begins (or, after a crash, continues) a task. It drives the pipeline
// from the task's checkpointed stage up to the approval suspension and then
// returns; the suspension holds no thread or connection. Start is safe to
// re-invoke: stages re-run from the last durable checkpoint (at-least-once),
// and a task already suspended or terminal returns its state unchanged.
func (o *Orchestrator) Start(ctx context.Context, taskID, request string) (*WorkflowState, error) {
	checkpoint, err := o.checkpointer.LoadCheckpoint(ctx, taskID)
	if err != nil {
		return nil, WrapTaskError(ErrorKindInfrastructure, err)
	}
	if checkpoint == nil {
		state := NewWorkflowState(taskID, request)
		if err := state.Validate(); err != nil {
			return nil, NewTaskError(ErrorKindConfiguration, err.Error())
		}
		checkpoint = NewCheckpoint(state)
	}
	return o.runPipeline(ctx, checkpoint)
}

// Resume applies a human decision to a suspended task. State is reloaded
// from the checkpoint store, never from memory, because the suspending
// process may be long gone. Terminal tasks reject the resume with
// ErrAlreadyTerminal and no side effect; tasks not suspended reject with
// ErrNotAwaitingApproval. The decision is recorded exactly once: a
// redelivered resume after a crash replays the original decision.
func (o *Orchestrator) Resume(ctx context.Context, taskID string, decision Decision) (*WorkflowState, error) {
	checkpoint, err := o.checkpointer.LoadCheckpoint(ctx, taskID)
	if err != nil {
		return nil, WrapTaskError(ErrorKindInfrastructure, err)
	}
	if checkpoint == nil {
		return nil, ErrTaskNotFound
	}
	state := checkpoint.State
	if state.Stage.Terminal() {
		return nil, ErrAlreadyTerminal
	}
	if state.Stage != StageAwaitingApproval && state.Stage != StageFinalizing {
		return nil, ErrNotAwaitingApproval
	}

	if state.Decision == nil {
		d := decision
		state.Decision = &d
	}
	o.logger.Info("resuming task",
		"task_id", taskID,
		"approved", state.Decision.Approved)

	if !state.Decision.Approved {
		feedback := state.Decision.Feedback
		if feedback == "" {
			feedback = "draft was rejected"
		}
		rejection := NewTaskError(ErrorKindRejected, feedback)
		state.Error = rejection.Error()
		if err := o.moveTo(ctx, checkpoint, StageFailed, "draft rejected"); err != nil {
			return nil, err
		}
		return state.Copy(), nil
	}

	if state.Stage == StageAwaitingApproval {
		if err := o.moveTo(ctx, checkpoint, StageFinalizing, "approval received"); err != nil {
			return nil, err
		}
	}
	return o.finalize(ctx, checkpoint)
}

// Status returns the current state of a task as recorded in the checkpoint
// store.
func (o *Orchestrator) Status(ctx context.Context, taskID string) (*WorkflowState, error) {
	checkpoint, err := o.checkpointer.LoadCheckpoint(ctx, taskID)
	if err != nil {
		return nil, WrapTaskError(ErrorKindInfrastructure, err)
	}
	if checkpoint == nil {
		return nil, ErrTaskNotFound
	}
	return checkpoint.State.Copy(), nil
}

// FailTask force-fails a non-terminal task with the given reason. Used by
// the executor when task-level retries are exhausted.
func (o *Orchestrator) FailTask(ctx context.Context, taskID string, reason error) error {
	checkpoint, err := o.checkpointer.LoadCheckpoint(ctx, taskID)
	if err != nil {
		return WrapTaskError(ErrorKindInfrastructure, err)
	}
	if checkpoint == nil || checkpoint.State.Stage.Terminal() {
		return nil
	}
	checkpoint.State.Error = ClassifyTaskError(reason).Error()
	return o.moveTo(ctx, checkpoint, StageFailed, "task failed")
}

// runPipeline advances a task from its checkpointed stage. The stage field
// alone decides what runs next, so a crash between a completed stage and its
// checkpoint write simply re-runs that stage.
func (o *Orchestrator) runPipeline(ctx context.Context, checkpoint *Checkpoint) (*WorkflowState, error) {
	state := checkpoint.State
	for {
		switch state.Stage {
		case StageCreated:
			if err := o.moveTo(ctx, checkpoint, StageAnalyzing, "analyzing request"); err != nil {
				return nil, err
			}

		case StageAnalyzing:
			analysis := o.analyzer.Analyze(ctx, state.OriginalRequest)
			state.Topics = analysis.Topics
			state.Category = analysis.Category
			o.logger.Info("request analyzed",
				"task_id", state.TaskID,
				"category", analysis.Category,
				"topics", analysis.Topics)
			if err := o.moveTo(ctx, checkpoint, StageResearching, "researching topics"); err != nil {
				return nil, err
			}

		case StageResearching:
			results, err := o.research.Research(ctx, state.Topics, o.researchTool)
			if err != nil {
				return o.fail(ctx, checkpoint, err)
			}
			state.ResearchResults = results
			if err := o.moveTo(ctx, checkpoint, StageWriting, "writing draft"); err != nil {
				return nil, err
			}

		case StageWriting:
			draft, err := o.writing.Write(ctx, state.Category, state.OriginalRequest, state.Topics, state.ResearchResults)
			if err != nil {
				return o.fail(ctx, checkpoint, err)
			}
			state.Draft = draft
			// Suspension point: checkpoint carries the draft, then control
			// returns to the caller until a decision arrives.
			if err := o.moveTo(ctx, checkpoint, StageAwaitingApproval, "awaiting human approval"); err != nil {
				return nil, err
			}
			return state.Copy(), nil

		case StageAwaitingApproval:
			// Already suspended; nothing to do without a decision.
			return state.Copy(), nil

		case StageFinalizing:
			// Crashed after approval but before completion; finish the job.
			return o.finalize(ctx, checkpoint)

		case StageCompleted, StageFailed:
			return state.Copy(), nil

		default:
			return o.fail(ctx, checkpoint, NewTaskError(ErrorKindInternal,
				fmt.Sprintf("unknown stage %q", state.Stage)))
		}
	}
}

// finalize copies the approved draft into the final result and completes the
// task. Requires the decision to already be recorded.
func (o *Orchestrator) finalize(ctx context.Context, checkpoint *Checkpoint) (*WorkflowState, error) {
	state := checkpoint.State
	if state.Decision == nil {
		return o.fail(ctx, checkpoint, NewTaskError(ErrorKindInternal,
			"finalizing without a recorded decision"))
	}
	state.FinalResult = state.Draft
	if err := o.moveTo(ctx, checkpoint, StageCompleted, "task completed"); err != nil {
		return nil, err
	}
	return state.Copy(), nil
}

// fail performs the single transition to the failed state with a structured
// reason. Infrastructure errors are not task failures: they propagate so the
// executor can retry the whole unit.
func (o *Orchestrator) fail(ctx context.Context, checkpoint *Checkpoint, stageErr error) (*WorkflowState, error) {
	taskErr := ClassifyTaskError(stageErr)
	if taskErr.Kind == ErrorKindInfrastructure {
		return nil, taskErr
	}
	checkpoint.State.Error = taskErr.Error()
	o.logger.Error("task failed",
		"task_id", checkpoint.State.TaskID,
		"stage", checkpoint.State.Stage,
		"error", taskErr)
	if err := o.moveTo(ctx, checkpoint, StageFailed, "task failed"); err != nil {
		return nil, err
	}
	return checkpoint.State.Copy(), taskErr
}

// moveTo advances the stage, persists the checkpoint, and emits the status
// event, strictly in that order. A revision conflict means another writer
// advanced the task first; it surfaces as an infrastructure error so the
// executor re-reads fresh state on retry.
func (o *Orchestrator) moveTo(ctx context.Context, checkpoint *Checkpoint, stage Stage, action string) error {
	checkpoint.State.Stage = stage
	if err := o.checkpointer.SaveCheckpoint(ctx, checkpoint); err != nil {
		return WrapTaskError(ErrorKindInfrastructure, err)
	}
	state := checkpoint.State
	o.callbacks.OnStatusChange(ctx, &StatusEvent{
		TaskID:      state.TaskID,
		Stage:       state.Stage,
		Action:      action,
		Request:     state.OriginalRequest,
		FinalResult: state.FinalResult,
		Error:       state.Error,
		Time:        time.Now(),
	})
	o.logger.Debug("stage transition",
		"task_id", state.TaskID,
		"stage", stage,
		"revision", checkpoint.Revision)
	return nil
}
