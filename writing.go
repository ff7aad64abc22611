package scribe

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/deepnoodle-ai/scribe/retry"
)

// WritingStage turns aggregated research into a draft by rendering the
// category's template and calling the text-generation capability under the
// same bounded-retry policy the research stage uses.
type WritingStage struct {
	generator Generator
	policy    retry.Policy
	logger    *slog.Logger
}

// WritingStageOptions configures a WritingStage.
type WritingStageOptions struct {
	Generator Generator
	Policy    retry.Policy
	Logger    *slog.Logger
}

// NewWritingStage creates a writing stage backed by the given generator.
func NewWritingStage(opts WritingStageOptions) (*WritingStage, error) {
	if opts.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if opts.Policy.MaxRetries == 0 && opts.Policy.BaseWait == 0 {
		opts.Policy = retry.DefaultPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &WritingStage{
		generator: opts.Generator,
		policy:    opts.Policy,
		logger:    opts.Logger,
	}, nil
}

// Write renders the category template with the research results and
// generates a draft. Topics whose research failed render as a placeholder.
// Retry exhaustion fails the stage with a draft-generation error.
func (s *WritingStage) Write(ctx context.Context, category Category, request string, topics []string, results map[string]ResearchResult) (string, error) {
	template, err := SelectTemplate(category)
	if err != nil {
		return "", err
	}
	prompt := fmt.Sprintf(template, renderResearch(topics, results), request)

	var draft string
	err = s.policy.Do(ctx, func() error {
		var genErr error
		draft, genErr = s.generator.Generate(ctx, prompt, GenerateOptions{})
		return genErr
	})
	if err != nil {
		return "", WrapTaskError(ErrorKindDraftGeneration, err)
	}
	if draft == "" {
		return "", NewTaskError(ErrorKindDraftGeneration, "provider returned an empty draft")
	}
	s.logger.Info("draft generated", "category", category, "topics", len(topics), "chars", len(draft))
	return draft, nil
}
