package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/deepnoodle-ai/scribe"
	"github.com/deepnoodle-ai/scribe/llm"
	"github.com/deepnoodle-ai/scribe/postgres"
	"github.com/deepnoodle-ai/scribe/tools"
)

// CLI configuration
type cliConfig struct {
	Request    string
	TaskID     string
	Approve    bool
	Reject     bool
	Feedback   string
	Status     bool
	List       bool
	Cleanup    bool
	ConfigFile string
	DataDir    string
	NoInput    bool
	Timeout    time.Duration
	Verbose    bool
	JSON       bool
}

func main() {
	cli := parseFlags()

	config := scribe.DefaultConfig()
	if cli.ConfigFile != "" {
		loaded, err := scribe.LoadConfig(cli.ConfigFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		config = loaded
	}
	if cli.DataDir != "" {
		config.DataDir = cli.DataDir
	}

	level := slog.LevelWarn
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := scribe.NewLogger(level)

	checkpointer, err := scribe.NewFileCheckpointer(config.DataDir)
	if err != nil {
		log.Fatalf("Failed to create checkpoint store: %v", err)
	}

	ctx := context.Background()
	if cli.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cli.Timeout)
		defer cancel()
	}

	switch {
	case cli.List:
		listTasks(ctx, checkpointer)
		return
	case cli.Cleanup:
		requireTask(cli)
		if err := checkpointer.DeleteCheckpoint(ctx, cli.TaskID); err != nil {
			log.Fatalf("Failed to delete checkpoint: %v", err)
		}
		color.Green("Deleted checkpoint for %s", cli.TaskID)
		return
	}

	orchestrator := buildOrchestrator(ctx, config, checkpointer, logger, cli)

	switch {
	case cli.Status:
		requireTask(cli)
		state, err := orchestrator.Status(ctx, cli.TaskID)
		if err != nil {
			log.Fatalf("Failed to load task: %v", err)
		}
		showState(state, cli)

	case cli.Approve || cli.Reject:
		requireTask(cli)
		decision := scribe.Decision{Approved: cli.Approve, Feedback: cli.Feedback}
		state, err := orchestrator.Resume(ctx, cli.TaskID, decision)
		if err != nil {
			log.Fatalf("Failed to resume task: %v", err)
		}
		showState(state, cli)

	case cli.Request != "":
		taskID := scribe.NewTaskID()
		color.Blue("Submitting task %s", taskID)
		state, err := orchestrator.Start(ctx, taskID, cli.Request)
		if err != nil {
			log.Fatalf("Task failed: %v", err)
		}
		if state.Stage == scribe.StageAwaitingApproval && !cli.NoInput {
			state = promptDecision(ctx, orchestrator, state)
		}
		showState(state, cli)

	default:
		color.Red("Error: nothing to do")
		flag.Usage()
		os.Exit(1)
	}
}

func parseFlags() *cliConfig {
	cli := &cliConfig{}

	flag.StringVar(&cli.Request, "request", "", "Writing request to submit as a new task")
	flag.StringVar(&cli.Request, "r", "", "Writing request (shorthand)")

	flag.StringVar(&cli.TaskID, "task", "", "Task ID to act on")

	flag.BoolVar(&cli.Approve, "approve", false, "Approve the task's draft")
	flag.BoolVar(&cli.Reject, "reject", false, "Reject the task's draft")
	flag.StringVar(&cli.Feedback, "feedback", "", "Feedback to record with a rejection")

	flag.BoolVar(&cli.Status, "status", false, "Show the task's current state")
	flag.BoolVar(&cli.List, "list", false, "List known tasks")
	flag.BoolVar(&cli.Cleanup, "cleanup", false, "Delete the task's checkpoint")

	flag.StringVar(&cli.ConfigFile, "config", "", "Path to YAML configuration file")
	flag.StringVar(&cli.DataDir, "data", "", "Directory for task checkpoints (default ~/.scribe/tasks)")
	flag.BoolVar(&cli.NoInput, "no-input", false, "Do not prompt for approval; leave the task suspended")

	flag.DurationVar(&cli.Timeout, "timeout", 0, "Overall timeout (e.g., 30s, 5m)")
	flag.BoolVar(&cli.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&cli.Verbose, "v", false, "Enable verbose logging (shorthand)")
	flag.BoolVar(&cli.JSON, "json", false, "Output task state as JSON")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Scribe - durable AI writing pipeline

Usage: %s [options]

Examples:
  # Submit a request and approve interactively
  %s -request "Compare Redis vs PostgreSQL for caching"

  # Submit without waiting, then resume later
  %s -request "How to deploy with Docker" -no-input
  %s -task <task-id> -approve
  %s -task <task-id> -reject -feedback "too shallow"

  # Inspect tasks
  %s -list
  %s -task <task-id> -status

Options:
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}

	flag.Parse()

	if cli.Approve && cli.Reject {
		fmt.Fprintln(os.Stderr, "Error: -approve and -reject are mutually exclusive")
		os.Exit(1)
	}
	return cli
}

func requireTask(cli *cliConfig) {
	if cli.TaskID == "" {
		color.Red("Error: -task is required")
		os.Exit(1)
	}
}

func buildOrchestrator(ctx context.Context, config *scribe.Config, checkpointer scribe.Checkpointer, logger *slog.Logger, cli *cliConfig) *scribe.Orchestrator {
	generator := llm.NewClient(llm.ClientOptions{
		Endpoint: config.Provider.Endpoint,
		Model:    config.Provider.Model,
		APIKey:   os.Getenv(config.Provider.APIKeyEnv),
		Timeout:  time.Duration(config.Provider.Timeout * float64(time.Second)),
		Logger:   logger,
	})
	if os.Getenv(config.Provider.APIKeyEnv) == "" {
		color.Yellow("Warning: %s is not set; generation requests will fail", config.Provider.APIKeyEnv)
	}

	researchTool := buildResearchTool(config)
	registry, err := scribe.NewToolRegistry(researchTool)
	if err != nil {
		log.Fatalf("Failed to create tool registry: %v", err)
	}

	policy := config.Retry.Policy()
	research, err := scribe.NewResearchStage(scribe.ResearchStageOptions{
		Registry: registry,
		Policy:   policy,
		Logger:   logger,
	})
	if err != nil {
		log.Fatalf("Failed to create research stage: %v", err)
	}
	writing, err := scribe.NewWritingStage(scribe.WritingStageOptions{
		Generator: generator,
		Policy:    policy,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("Failed to create writing stage: %v", err)
	}

	callbacks := scribe.NewCallbackChain(&progressCallbacks{quiet: cli.JSON})
	if config.PostgresDSN != "" {
		store, err := postgres.NewStore(ctx, config.PostgresDSN)
		if err != nil {
			log.Fatalf("Failed to connect to postgres: %v", err)
		}
		callbacks.Add(scribe.NewRecorderCallbacks(store, logger))
		color.Blue("Mirroring task records to postgres")
	}

	orchestrator, err := scribe.NewOrchestrator(scribe.OrchestratorOptions{
		Analyzer:     scribe.NewPromptAnalyzer(generator, logger),
		Research:     research,
		Writing:      writing,
		Checkpointer: checkpointer,
		Callbacks:    callbacks,
		Logger:       logger,
		ResearchTool: config.ResearchTool,
	})
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}
	return orchestrator
}

func buildResearchTool(config *scribe.Config) scribe.Tool {
	if config.Search.Endpoint == "" {
		return tools.NewKnowledgeTool(config.ResearchTool)
	}
	headers := map[string]string{}
	if config.Search.APIKeyEnv != "" {
		if key := os.Getenv(config.Search.APIKeyEnv); key != "" {
			headers["Authorization"] = "Bearer " + key
		}
	}
	tool, err := tools.NewWebSearchTool(config.ResearchTool, tools.WebSearchOptions{
		Endpoint: config.Search.Endpoint,
		Headers:  headers,
		Timeout:  time.Duration(config.Search.Timeout * float64(time.Second)),
	})
	if err != nil {
		log.Fatalf("Failed to create search tool: %v", err)
	}
	return tool
}

// progressCallbacks prints stage transitions as they happen.
type progressCallbacks struct {
	scribe.BaseTaskCallbacks
	quiet bool
}

func (p *progressCallbacks) OnStatusChange(ctx context.Context, event *scribe.StatusEvent) {
	if p.quiet {
		return
	}
	switch event.Stage {
	case scribe.StageCompleted:
		color.Green("[%s] %s", event.Stage, event.Action)
	case scribe.StageFailed:
		color.Red("[%s] %s: %s", event.Stage, event.Action, event.Error)
	case scribe.StageAwaitingApproval:
		color.Yellow("[%s] %s", event.Stage, event.Action)
	default:
		color.Cyan("[%s] %s", event.Stage, event.Action)
	}
}

// promptDecision shows the draft and reads an approval decision from stdin.
func promptDecision(ctx context.Context, orchestrator *scribe.Orchestrator, state *scribe.WorkflowState) *scribe.WorkflowState {
	fmt.Println()
	color.Magenta("Draft for review:")
	fmt.Println(state.Draft)
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Approve this draft? [y/N]: ")
	answer, err := reader.ReadString('\n')
	if err != nil {
		color.Yellow("No decision read; task remains suspended (id: %s)", state.TaskID)
		return state
	}
	approved := strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y")

	decision := scribe.Decision{Approved: approved}
	if !approved {
		fmt.Print("Feedback (optional): ")
		if feedback, err := reader.ReadString('\n'); err == nil {
			decision.Feedback = strings.TrimSpace(feedback)
		}
	}

	resumed, err := orchestrator.Resume(ctx, state.TaskID, decision)
	if err != nil {
		log.Fatalf("Failed to resume task: %v", err)
	}
	return resumed
}

func showState(state *scribe.WorkflowState, cli *cliConfig) {
	if cli.JSON {
		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			log.Fatalf("Failed to format state: %v", err)
		}
		fmt.Println(string(data))
		return
	}

	fmt.Println()
	color.White("Task:  %s", state.TaskID)
	color.White("Stage: %s", state.Stage)
	if len(state.Topics) > 0 {
		color.White("Topics: %s (%s)", strings.Join(state.Topics, ", "), state.Category)
	}
	switch state.Stage {
	case scribe.StageCompleted:
		fmt.Println()
		color.Green("Final result:")
		fmt.Println(state.FinalResult)
	case scribe.StageFailed:
		color.Red("Error: %s", state.Error)
		os.Exit(1)
	case scribe.StageAwaitingApproval:
		fmt.Println()
		color.Magenta("Draft awaiting approval:")
		fmt.Println(state.Draft)
		fmt.Println()
		color.Yellow("Resume with: %s -task %s -approve (or -reject -feedback \"...\")", os.Args[0], state.TaskID)
	}
}

func listTasks(ctx context.Context, checkpointer *scribe.FileCheckpointer) {
	summaries, err := checkpointer.ListTasks(ctx)
	if err != nil {
		log.Fatalf("Failed to list tasks: %v", err)
	}
	if len(summaries) == 0 {
		color.Blue("No tasks found")
		return
	}
	for _, summary := range summaries {
		line := fmt.Sprintf("%s  %-18s  %s", summary.TaskID, summary.Stage,
			summary.CheckpointAt.Format(time.RFC3339))
		switch summary.Stage {
		case scribe.StageCompleted:
			color.Green("%s", line)
		case scribe.StageFailed:
			color.Red("%s", line)
		case scribe.StageAwaitingApproval:
			color.Yellow("%s", line)
		default:
			fmt.Println(line)
		}
	}
}
