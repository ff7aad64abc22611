package scribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// UnitKind distinguishes the two orchestrator entry points.
type UnitKind string

const (
	UnitStart  UnitKind = "start"
	UnitResume UnitKind = "resume"
)

// UnitPayload carries the inputs for one work unit: the request text for a
// start, the decision for a resume.
type UnitPayload struct {
	Request  string
	Decision *Decision
}

type workUnit struct {
	taskID   string
	kind     UnitKind
	payload  UnitPayload
	attempts int
}

// TaskExecutorOptions configures a TaskExecutor.
type TaskExecutorOptions struct {
	Orchestrator *Orchestrator
	Logger       *slog.Logger

	// Workers is the pool size. Defaults to 4.
	Workers int

	// MaxAttempts bounds task-level retries of a unit that failed on
	// infrastructure. Defaults to 3.
	MaxAttempts int

	// BaseBackoff is the wait before the first task-level retry, doubling
	// per retry. Defaults to one second.
	BaseBackoff time.Duration
}

// TaskExecutor runs queued orchestration units on a worker pool. Units for
// different tasks run in parallel; units for the same task are serialized so
// at most one orchestrator invocation per task is active at a time. A unit
// that fails on infrastructure (checkpoint store or queue trouble) is
// requeued with backoff up to a small bound; business failures are final,
// the orchestrator has already recorded them.
type TaskExecutor struct {
	orchestrator *Orchestrator
	logger       *slog.Logger
	workers      int
	maxAttempts  int
	baseBackoff  time.Duration

	mutex   sync.Mutex
	cond    *sync.Cond
	pending map[string][]*workUnit
	running map[string]bool
	stopped bool
	started bool

	workerWg sync.WaitGroup
	unitWg   sync.WaitGroup
}

// NewTaskExecutor creates a task executor over the given orchestrator.
func NewTaskExecutor(opts TaskExecutorOptions) (*TaskExecutor, error) {
	if opts.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	executor := &TaskExecutor{
		orchestrator: opts.Orchestrator,
		logger:       opts.Logger,
		workers:      opts.Workers,
		maxAttempts:  opts.MaxAttempts,
		baseBackoff:  opts.BaseBackoff,
		pending:      map[string][]*workUnit{},
		running:      map[string]bool{},
	}
	executor.cond = sync.NewCond(&executor.mutex)
	return executor, nil
}

// Start launches the worker pool. Units execute under ctx.
func (e *TaskExecutor) Start(ctx context.Context) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.started {
		return fmt.Errorf("executor already started")
	}
	e.started = true
	for i := 0; i < e.workers; i++ {
		e.workerWg.Add(1)
		go e.worker(ctx)
	}
	return nil
}

// Submit enqueues a start or resume unit for a task. Resume submissions are
// screened against current task status so obvious misuse is rejected at the
// boundary; the orchestrator re-checks authoritatively when the unit runs,
// since the status may change between submit and execution in another
// process.
func (e *TaskExecutor) Submit(ctx context.Context, taskID string, kind UnitKind, payload UnitPayload) error {
	if taskID == "" {
		return fmt.Errorf("task id required")
	}
	switch kind {
	case UnitStart:
	case UnitResume:
		if payload.Decision == nil {
			return fmt.Errorf("resume requires a decision")
		}
		state, err := e.orchestrator.Status(ctx, taskID)
		if err != nil && !IsInfrastructureError(err) {
			return err
		}
		if state != nil {
			if state.Stage.Terminal() {
				return ErrAlreadyTerminal
			}
			if state.Stage != StageAwaitingApproval && state.Stage != StageFinalizing {
				return ErrNotAwaitingApproval
			}
		}
	default:
		return fmt.Errorf("unknown unit kind %q", kind)
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.stopped {
		return fmt.Errorf("executor stopped")
	}
	e.unitWg.Add(1)
	e.pending[taskID] = append(e.pending[taskID], &workUnit{
		taskID:  taskID,
		kind:    kind,
		payload: payload,
	})
	e.cond.Signal()
	return nil
}

// Wait blocks until every submitted unit has fully resolved, including
// scheduled task-level retries.
func (e *TaskExecutor) Wait() {
	e.unitWg.Wait()
}

// Stop discards unexecuted units and waits for in-flight units to finish.
func (e *TaskExecutor) Stop() {
	e.mutex.Lock()
	if e.stopped {
		e.mutex.Unlock()
		e.workerWg.Wait()
		return
	}
	e.stopped = true
	for _, units := range e.pending {
		for range units {
			e.unitWg.Done()
		}
	}
	e.pending = map[string][]*workUnit{}
	e.cond.Broadcast()
	e.mutex.Unlock()
	e.workerWg.Wait()
}

func (e *TaskExecutor) worker(ctx context.Context) {
	defer e.workerWg.Done()
	for {
		unit := e.next()
		if unit == nil {
			return
		}
		e.execute(ctx, unit)
		e.finish(unit.taskID)
	}
}

// next pops a unit for any task that is not already running, blocking until
// one is available or the executor stops.
func (e *TaskExecutor) next() *workUnit {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	for {
		if e.stopped {
			return nil
		}
		for taskID, units := range e.pending {
			if e.running[taskID] {
				continue
			}
			unit := units[0]
			if len(units) == 1 {
				delete(e.pending, taskID)
			} else {
				e.pending[taskID] = units[1:]
			}
			e.running[taskID] = true
			return unit
		}
		e.cond.Wait()
	}
}

func (e *TaskExecutor) finish(taskID string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	delete(e.running, taskID)
	// Another queued unit for this task may now be runnable
	e.cond.Broadcast()
}

func (e *TaskExecutor) execute(ctx context.Context, unit *workUnit) {
	unit.attempts++

	var err error
	switch unit.kind {
	case UnitStart:
		_, err = e.orchestrator.Start(ctx, unit.taskID, unit.payload.Request)
	case UnitResume:
		_, err = e.orchestrator.Resume(ctx, unit.taskID, *unit.payload.Decision)
	}
	if err == nil {
		e.unitWg.Done()
		return
	}

	if errors.Is(err, ErrAlreadyTerminal) ||
		errors.Is(err, ErrNotAwaitingApproval) ||
		errors.Is(err, ErrTaskNotFound) {
		e.logger.Warn("dropping misdirected work unit",
			"task_id", unit.taskID,
			"kind", unit.kind,
			"error", err)
		e.unitWg.Done()
		return
	}

	if IsInfrastructureError(err) {
		if unit.attempts < e.maxAttempts {
			delay := e.baseBackoff << (unit.attempts - 1)
			e.logger.Warn("requeueing work unit after infrastructure error",
				"task_id", unit.taskID,
				"kind", unit.kind,
				"attempt", unit.attempts,
				"delay", delay,
				"error", err)
			time.AfterFunc(delay, func() { e.requeue(unit) })
			return
		}
		e.logger.Error("task-level retries exhausted",
			"task_id", unit.taskID,
			"kind", unit.kind,
			"attempts", unit.attempts,
			"error", err)
		if failErr := e.orchestrator.FailTask(ctx, unit.taskID, err); failErr != nil {
			e.logger.Error("failed to mark task failed",
				"task_id", unit.taskID,
				"error", failErr)
		}
		e.unitWg.Done()
		return
	}

	// Business failure: the orchestrator already transitioned the task to
	// its failed state with a structured reason.
	e.logger.Error("task failed",
		"task_id", unit.taskID,
		"kind", unit.kind,
		"error", err)
	e.unitWg.Done()
}

// requeue puts a retried unit back at the head of its task's queue.
func (e *TaskExecutor) requeue(unit *workUnit) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.stopped {
		e.unitWg.Done()
		return
	}
	e.pending[unit.taskID] = append([]*workUnit{unit}, e.pending[unit.taskID]...)
	e.cond.Signal()
}
