package scribe

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/deepnoodle-ai/scribe/retry"
)

// ResearchStage gathers material for each topic by fanning out calls to a
// registered research tool. Individual topics retry transient failures with
// backoff; a topic that exhausts its retries is recorded as a per-topic
// error without aborting the stage.
type ResearchStage struct {
	registry *ToolRegistry
	policy   retry.Policy
	logger   *slog.Logger
}

// ResearchStageOptions configures a ResearchStage.
type ResearchStageOptions struct {
	Registry *ToolRegistry
	Policy   retry.Policy
	Logger   *slog.Logger
}

// NewResearchStage creates a research stage over the given tool registry.
func NewResearchStage(opts ResearchStageOptions) (*ResearchStage, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if opts.Policy.MaxRetries == 0 && opts.Policy.BaseWait == 0 {
		opts.Policy = retry.DefaultPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ResearchStage{
		registry: opts.Registry,
		policy:   opts.Policy,
		logger:   opts.Logger,
	}, nil
}

type topicOutcome struct {
	topic   string
	content string
	err     error
}

// Research runs the named tool against every topic concurrently and returns
// a result map whose keys are exactly the input topics. An unknown tool is a
// configuration error; a stage where every topic fails returns a
// research-exhausted error. The stage succeeds as long as at least one topic
// yields a usable result.
func (s *ResearchStage) Research(ctx context.Context, topics []string, toolName string) (map[string]ResearchResult, error) {
	tool, err := s.registry.Resolve(toolName)
	if err != nil {
		return nil, WrapTaskError(ErrorKindConfiguration, err)
	}

	outcomes := make(chan topicOutcome, len(topics))
	for _, topic := range topics {
		go func(topic string) {
			var content string
			err := s.policy.Do(ctx, func() error {
				var searchErr error
				content, searchErr = tool.Search(ctx, topic)
				return searchErr
			})
			outcomes <- topicOutcome{topic: topic, content: content, err: err}
		}(topic)
	}

	// Collect into the result map on this goroutine only, so assembly is
	// independent of completion order.
	results := make(map[string]ResearchResult, len(topics))
	succeeded := 0
	for range topics {
		outcome := <-outcomes
		if outcome.err != nil {
			s.logger.Warn("topic research failed",
				"topic", outcome.topic,
				"tool", toolName,
				"error", outcome.err)
			results[outcome.topic] = ResearchResult{Error: outcome.err.Error()}
			continue
		}
		results[outcome.topic] = ResearchResult{Content: outcome.content}
		succeeded++
	}

	if succeeded == 0 {
		return nil, NewTaskError(ErrorKindResearchExhausted,
			fmt.Sprintf("all %d topics exhausted their retries", len(topics)))
	}
	s.logger.Info("research complete",
		"tool", toolName,
		"topics", len(topics),
		"succeeded", succeeded,
		"failed", len(topics)-succeeded)
	return results, nil
}
