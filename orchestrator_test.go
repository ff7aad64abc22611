package scribe

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/scribe/retry"
)

// eventCollector records status events in order.
type eventCollector struct {
	BaseTaskCallbacks
	mutex  sync.Mutex
	events []*StatusEvent
}

func (c *eventCollector) OnStatusChange(ctx context.Context, event *StatusEvent) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.events = append(c.events, event)
}

func (c *eventCollector) stages() []Stage {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	stages := make([]Stage, len(c.events))
	for i, event := range c.events {
		stages[i] = event.Stage
	}
	return stages
}

type orchestratorFixture struct {
	orchestrator *Orchestrator
	checkpointer Checkpointer
	events       *eventCollector
}

// newFixture builds an orchestrator whose analyzer uses the lexical fallback
// (the analysis generator always fails) and whose writing generator returns a
// fixed draft. Overrides customize the research tool and draft generator.
func newFixture(t *testing.T, opts ...func(*fixtureConfig)) *orchestratorFixture {
	t.Helper()
	cfg := &fixtureConfig{
		tool:         staticTool("search", "research material"),
		generator:    staticGenerator("the draft"),
		checkpointer: NewMemoryCheckpointer(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	registry, err := NewToolRegistry(cfg.tool)
	require.NoError(t, err)
	research, err := NewResearchStage(ResearchStageOptions{Registry: registry, Policy: fastPolicy})
	require.NoError(t, err)
	writing, err := NewWritingStage(WritingStageOptions{Generator: cfg.generator, Policy: fastPolicy})
	require.NoError(t, err)

	events := &eventCollector{}
	orchestrator, err := NewOrchestrator(OrchestratorOptions{
		Analyzer:     NewPromptAnalyzer(failingGenerator(errors.New("no analysis provider")), nil),
		Research:     research,
		Writing:      writing,
		Checkpointer: cfg.checkpointer,
		Callbacks:    events,
	})
	require.NoError(t, err)
	return &orchestratorFixture{
		orchestrator: orchestrator,
		checkpointer: cfg.checkpointer,
		events:       events,
	}
}

type fixtureConfig struct {
	tool         Tool
	generator    Generator
	checkpointer Checkpointer
}

func withTool(tool Tool) func(*fixtureConfig) {
	return func(cfg *fixtureConfig) { cfg.tool = tool }
}

func withGenerator(generator Generator) func(*fixtureConfig) {
	return func(cfg *fixtureConfig) { cfg.generator = generator }
}

func withCheckpointer(checkpointer Checkpointer) func(*fixtureConfig) {
	return func(cfg *fixtureConfig) { cfg.checkpointer = checkpointer }
}

func TestTaskApprovalFlow(t *testing.T) {
	ctx := context.Background()
	fixture := newFixture(t)

	state, err := fixture.orchestrator.Start(ctx, "task_1", "Compare Redis vs PostgreSQL for caching")
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingApproval, state.Stage)
	assert.Equal(t, []string{"Redis", "PostgreSQL"}, state.Topics)
	assert.Equal(t, CategoryComparison, state.Category)
	assert.Equal(t, "the draft", state.Draft)
	assert.Empty(t, state.FinalResult)

	// The suspension is durable: status comes from the store
	status, err := fixture.orchestrator.Status(ctx, "task_1")
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingApproval, status.Stage)

	resumed, err := fixture.orchestrator.Resume(ctx, "task_1", Decision{Approved: true})
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, resumed.Stage)
	assert.Equal(t, "the draft", resumed.FinalResult)
	require.NotNil(t, resumed.Decision)
	assert.True(t, resumed.Decision.Approved)

	assert.Equal(t, []Stage{
		StageAnalyzing, StageResearching, StageWriting,
		StageAwaitingApproval, StageFinalizing, StageCompleted,
	}, fixture.events.stages())
}

func TestTaskRejectionFlow(t *testing.T) {
	ctx := context.Background()
	fixture := newFixture(t)

	_, err := fixture.orchestrator.Start(ctx, "task_1", "Summary of Docker")
	require.NoError(t, err)

	resumed, err := fixture.orchestrator.Resume(ctx, "task_1", Decision{
		Approved: false,
		Feedback: "too shallow",
	})
	require.NoError(t, err)
	assert.Equal(t, StageFailed, resumed.Stage)
	assert.Contains(t, resumed.Error, "rejected")
	assert.Contains(t, resumed.Error, "too shallow")
	assert.Empty(t, resumed.FinalResult)
}

func TestTaskRejectionDefaultFeedback(t *testing.T) {
	ctx := context.Background()
	fixture := newFixture(t)

	_, err := fixture.orchestrator.Start(ctx, "task_1", "Summary of Docker")
	require.NoError(t, err)

	resumed, err := fixture.orchestrator.Resume(ctx, "task_1", Decision{Approved: false})
	require.NoError(t, err)
	assert.Contains(t, resumed.Error, "draft was rejected")
}

func TestResumeTerminalTask(t *testing.T) {
	ctx := context.Background()
	fixture := newFixture(t)

	_, err := fixture.orchestrator.Start(ctx, "task_1", "Summary of Docker")
	require.NoError(t, err)
	_, err = fixture.orchestrator.Resume(ctx, "task_1", Decision{Approved: true})
	require.NoError(t, err)

	// A second resume finds the task already completed and changes nothing
	_, err = fixture.orchestrator.Resume(ctx, "task_1", Decision{Approved: false, Feedback: "late"})
	assert.True(t, errors.Is(err, ErrAlreadyTerminal))

	status, err := fixture.orchestrator.Status(ctx, "task_1")
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, status.Stage)
	assert.Empty(t, status.Error)
}

func TestResumeUnknownTask(t *testing.T) {
	fixture := newFixture(t)
	_, err := fixture.orchestrator.Resume(context.Background(), "task_missing", Decision{Approved: true})
	assert.True(t, errors.Is(err, ErrTaskNotFound))
}

func TestResumeTaskNotSuspended(t *testing.T) {
	ctx := context.Background()
	fixture := newFixture(t)

	// A task checkpointed mid-pipeline is not awaiting a decision.
	state := NewWorkflowState("task_1", "Summary of Docker")
	state.Stage = StageResearching
	state.Topics = []string{"Docker"}
	state.Category = CategorySummary
	require.NoError(t, fixture.checkpointer.SaveCheckpoint(ctx, NewCheckpoint(state)))

	_, err := fixture.orchestrator.Resume(ctx, "task_1", Decision{Approved: true})
	assert.True(t, errors.Is(err, ErrNotAwaitingApproval))
}

func TestStartIsIdempotentWhileSuspended(t *testing.T) {
	ctx := context.Background()
	fixture := newFixture(t)

	first, err := fixture.orchestrator.Start(ctx, "task_1", "Summary of Docker")
	require.NoError(t, err)

	again, err := fixture.orchestrator.Start(ctx, "task_1", "Summary of Docker")
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingApproval, again.Stage)
	assert.Equal(t, first.Draft, again.Draft)
}

func TestStartResumesFromCheckpointedStage(t *testing.T) {
	ctx := context.Background()
	fixture := newFixture(t)

	// Simulate a crash after analysis: the checkpoint holds topics but no
	// research. Start must pick up at the researching stage.
	state := NewWorkflowState("task_1", "Compare Redis vs PostgreSQL")
	state.Stage = StageResearching
	state.Topics = []string{"Redis", "PostgreSQL"}
	state.Category = CategoryComparison
	require.NoError(t, fixture.checkpointer.SaveCheckpoint(ctx, NewCheckpoint(state)))

	resumed, err := fixture.orchestrator.Start(ctx, "task_1", "")
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingApproval, resumed.Stage)
	assert.Equal(t, "research material", resumed.ResearchResults["Redis"].Content)
	assert.Equal(t, "the draft", resumed.Draft)

	// Analysis did not re-run
	assert.NotContains(t, fixture.events.stages(), StageAnalyzing)
}

func TestStartFinishesCrashedFinalize(t *testing.T) {
	ctx := context.Background()
	fixture := newFixture(t)

	// Crash after approval was recorded but before completion.
	state := NewWorkflowState("task_1", "Summary of Docker")
	state.Stage = StageFinalizing
	state.Draft = "approved draft"
	state.Decision = &Decision{Approved: true}
	require.NoError(t, fixture.checkpointer.SaveCheckpoint(ctx, NewCheckpoint(state)))

	finished, err := fixture.orchestrator.Start(ctx, "task_1", "")
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, finished.Stage)
	assert.Equal(t, "approved draft", finished.FinalResult)
}

func TestResumeReplaysRecordedDecision(t *testing.T) {
	ctx := context.Background()
	fixture := newFixture(t)

	// Approval was recorded, then the process died mid-finalize. A redelivered
	// resume carries a contradictory decision, which must be ignored.
	state := NewWorkflowState("task_1", "Summary of Docker")
	state.Stage = StageFinalizing
	state.Draft = "approved draft"
	state.Decision = &Decision{Approved: true}
	require.NoError(t, fixture.checkpointer.SaveCheckpoint(ctx, NewCheckpoint(state)))

	resumed, err := fixture.orchestrator.Resume(ctx, "task_1", Decision{Approved: false, Feedback: "changed my mind"})
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, resumed.Stage)
	assert.Equal(t, "approved draft", resumed.FinalResult)
}

func TestPartialResearchFailureStillProducesDraft(t *testing.T) {
	ctx := context.Background()
	tool := NewToolFunction("search", func(ctx context.Context, topic string) (string, error) {
		if topic == "PostgreSQL" {
			return "", retry.NewNonRecoverableError(errors.New("index offline"))
		}
		return "redis material", nil
	})
	var captured string
	generator := generatorFunc(func(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
		captured = prompt
		return "partial draft", nil
	})
	fixture := newFixture(t, withTool(tool), withGenerator(generator))

	state, err := fixture.orchestrator.Start(ctx, "task_1", "Compare Redis vs PostgreSQL")
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingApproval, state.Stage)
	assert.True(t, state.ResearchResults["PostgreSQL"].Failed())
	assert.Contains(t, captured, noInformationPlaceholder)
}

func TestAllResearchFailsTask(t *testing.T) {
	ctx := context.Background()
	tool := NewToolFunction("search", func(ctx context.Context, topic string) (string, error) {
		return "", retry.NewNonRecoverableError(errors.New("backend gone"))
	})
	fixture := newFixture(t, withTool(tool))

	state, err := fixture.orchestrator.Start(ctx, "task_1", "Compare Redis vs PostgreSQL")
	require.Error(t, err)
	assert.Equal(t, ErrorKindResearchExhausted, ClassifyTaskError(err).Kind)
	require.NotNil(t, state)
	assert.Equal(t, StageFailed, state.Stage)
	assert.Contains(t, state.Error, "research_exhausted")

	// The failure is durable
	status, err := fixture.orchestrator.Status(ctx, "task_1")
	require.NoError(t, err)
	assert.Equal(t, StageFailed, status.Stage)
}

func TestDraftGenerationExhaustionFailsTask(t *testing.T) {
	ctx := context.Background()
	generator := failingGenerator(retry.NewRecoverableError(errors.New("provider overloaded")))
	fixture := newFixture(t, withGenerator(generator))

	state, err := fixture.orchestrator.Start(ctx, "task_1", "Summary of Docker")
	require.Error(t, err)
	assert.Equal(t, ErrorKindDraftGeneration, ClassifyTaskError(err).Kind)
	assert.Equal(t, StageFailed, state.Stage)
}

func TestCrossProcessResume(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()

	storeA, err := NewFileCheckpointer(dataDir)
	require.NoError(t, err)
	processA := newFixture(t, withCheckpointer(storeA))

	state, err := processA.orchestrator.Start(ctx, "task_1", "Compare Redis vs PostgreSQL for caching")
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingApproval, state.Stage)

	// A different process with its own store handle and orchestrator picks
	// the task up from disk.
	storeB, err := NewFileCheckpointer(dataDir)
	require.NoError(t, err)
	processB := newFixture(t, withCheckpointer(storeB))

	resumed, err := processB.orchestrator.Resume(ctx, "task_1", Decision{Approved: true})
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, resumed.Stage)
	assert.Equal(t, state.Draft, resumed.FinalResult)
}

func TestFailTask(t *testing.T) {
	ctx := context.Background()
	fixture := newFixture(t)

	_, err := fixture.orchestrator.Start(ctx, "task_1", "Summary of Docker")
	require.NoError(t, err)

	reason := WrapTaskError(ErrorKindInfrastructure, errors.New("store kept timing out"))
	require.NoError(t, fixture.orchestrator.FailTask(ctx, "task_1", reason))

	status, err := fixture.orchestrator.Status(ctx, "task_1")
	require.NoError(t, err)
	assert.Equal(t, StageFailed, status.Stage)
	assert.Contains(t, status.Error, "infrastructure")

	// Terminal and unknown tasks are no-ops
	require.NoError(t, fixture.orchestrator.FailTask(ctx, "task_1", reason))
	require.NoError(t, fixture.orchestrator.FailTask(ctx, "task_missing", reason))
}

func TestStartValidatesRequest(t *testing.T) {
	fixture := newFixture(t)
	_, err := fixture.orchestrator.Start(context.Background(), "task_1", "   ")
	require.Error(t, err)
	assert.Equal(t, ErrorKindConfiguration, ClassifyTaskError(err).Kind)
}
