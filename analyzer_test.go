package scribe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generatorFunc adapts a function into a Generator for tests.
type generatorFunc func(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	return f(ctx, prompt, opts)
}

func staticGenerator(response string) Generator {
	return generatorFunc(func(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
		return response, nil
	})
}

func failingGenerator(err error) Generator {
	return generatorFunc(func(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
		return "", err
	})
}

func TestAnalyzeWithLLMResponse(t *testing.T) {
	analyzer := NewPromptAnalyzer(staticGenerator(
		`{"topics": ["LangGraph", "CrewAI"], "category": "comparison"}`), nil)

	analysis := analyzer.Analyze(context.Background(), "Compare LangGraph and CrewAI")
	assert.Equal(t, []string{"LangGraph", "CrewAI"}, analysis.Topics)
	assert.Equal(t, CategoryComparison, analysis.Category)
}

func TestAnalyzeStripsCodeFences(t *testing.T) {
	analyzer := NewPromptAnalyzer(staticGenerator(
		"```json\n{\"topics\": [\"Docker\"], \"category\": \"tutorial\"}\n```"), nil)

	analysis := analyzer.Analyze(context.Background(), "How to use Docker")
	assert.Equal(t, []string{"Docker"}, analysis.Topics)
	assert.Equal(t, CategoryTutorial, analysis.Category)
}

func TestAnalyzeInvalidCategoryDefaultsToSummary(t *testing.T) {
	analyzer := NewPromptAnalyzer(staticGenerator(
		`{"topics": ["Rust"], "category": "essay"}`), nil)

	analysis := analyzer.Analyze(context.Background(), "Tell me about Rust")
	assert.Equal(t, CategorySummary, analysis.Category)
}

func TestAnalyzeFallbackOnProviderFailure(t *testing.T) {
	analyzer := NewPromptAnalyzer(failingGenerator(errors.New("provider down")), nil)

	analysis := analyzer.Analyze(context.Background(), "Compare Redis vs PostgreSQL for caching")
	assert.Equal(t, []string{"Redis", "PostgreSQL"}, analysis.Topics)
	assert.Equal(t, CategoryComparison, analysis.Category)
}

func TestAnalyzeFallbackOnMalformedResponse(t *testing.T) {
	analyzer := NewPromptAnalyzer(staticGenerator("Sure! Here are some topics."), nil)

	analysis := analyzer.Analyze(context.Background(), "How to deploy with Kubernetes")
	assert.Equal(t, []string{"Kubernetes"}, analysis.Topics)
	assert.Equal(t, CategoryTutorial, analysis.Category)
}

func TestAnalyzeSynthesizesTopicWhenNoneFound(t *testing.T) {
	analyzer := NewPromptAnalyzer(failingGenerator(errors.New("provider down")), nil)

	analysis := analyzer.Analyze(context.Background(), "  Write about gardening  ")
	require.Len(t, analysis.Topics, 1)
	assert.Equal(t, "Write about gardening", analysis.Topics[0])
	assert.Equal(t, CategorySummary, analysis.Category)
}

func TestAnalyzeTrimsEmptyTopics(t *testing.T) {
	analyzer := NewPromptAnalyzer(staticGenerator(
		`{"topics": ["  Kafka  ", "", "   "], "category": "analysis"}`), nil)

	analysis := analyzer.Analyze(context.Background(), "Evaluate Kafka")
	assert.Equal(t, []string{"Kafka"}, analysis.Topics)
	assert.Equal(t, CategoryAnalysis, analysis.Category)
}

func TestFallbackCategoryHeuristics(t *testing.T) {
	tests := []struct {
		request  string
		category Category
	}{
		{"Redis vs PostgreSQL", CategoryComparison},
		{"Compare Redis and PostgreSQL", CategoryComparison},
		{"What is the difference between Docker and Kubernetes", CategoryComparison},
		{"A step-by-step guide to gRPC", CategoryTutorial},
		{"Analyze the Kafka consumer protocol", CategoryAnalysis},
		{"Overview of GraphQL", CategorySummary},
	}
	for _, tt := range tests {
		analysis := fallbackAnalysis(tt.request)
		assert.Equal(t, tt.category, analysis.Category, "request: %s", tt.request)
	}
}
