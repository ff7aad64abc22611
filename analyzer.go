package scribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const analysisPromptTemplate = `You are a prompt analysis assistant. Analyze the following user request and extract structured information.

User Request:
%q

Respond with a JSON object of this shape:
{"topics": ["topic1", "topic2"], "category": "comparison" | "tutorial" | "analysis" | "summary"}

Guidelines:
- topics: every subject, technology, or concept that needs to be researched
- category "comparison": the request compares multiple things ("X vs Y", "compare X and Y")
- category "tutorial": the request asks for a how-to guide or step-by-step instructions
- category "analysis": the request asks for in-depth examination or evaluation
- category "summary": the request asks for general information or an overview

Respond ONLY with valid JSON, no other text.`

// analyzerTemperature keeps topic extraction deterministic-ish.
var analyzerTemperature = 0.1

// Analysis is the structured intent extracted from a raw request.
type Analysis struct {
	Topics   []string `json:"topics"`
	Category Category `json:"category"`
}

// PromptAnalyzer turns a free-form request into topics and a task category.
// The LLM path is attempted first; any provider or parse failure falls back
// to a lexical heuristic, so Analyze never fails outward.
type PromptAnalyzer struct {
	generator Generator
	logger    *slog.Logger
}

// NewPromptAnalyzer creates an analyzer backed by the given generator.
func NewPromptAnalyzer(generator Generator, logger *slog.Logger) *PromptAnalyzer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &PromptAnalyzer{generator: generator, logger: logger}
}

// Analyze extracts topics and a category from a request. The result always
// contains at least one topic and a valid category.
func (a *PromptAnalyzer) Analyze(ctx context.Context, request string) Analysis {
	analysis, err := a.analyzeWithLLM(ctx, request)
	if err != nil {
		a.logger.Warn("prompt analysis falling back to heuristic", "error", err)
		analysis = fallbackAnalysis(request)
	}
	if len(analysis.Topics) == 0 {
		// Downstream stages always get at least one unit of work
		analysis.Topics = []string{strings.TrimSpace(request)}
	}
	if !ValidCategory(analysis.Category) {
		analysis.Category = CategorySummary
	}
	return analysis
}

func (a *PromptAnalyzer) analyzeWithLLM(ctx context.Context, request string) (Analysis, error) {
	prompt := fmt.Sprintf(analysisPromptTemplate, request)
	response, err := a.generator.Generate(ctx, prompt, GenerateOptions{
		Temperature: &analyzerTemperature,
	})
	if err != nil {
		return Analysis{}, fmt.Errorf("analysis call failed: %w", err)
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(stripCodeFences(response)), &analysis); err != nil {
		return Analysis{}, fmt.Errorf("failed to parse analysis response: %w", err)
	}
	var topics []string
	for _, topic := range analysis.Topics {
		if topic = strings.TrimSpace(topic); topic != "" {
			topics = append(topics, topic)
		}
	}
	if len(topics) == 0 {
		return Analysis{}, fmt.Errorf("analysis response contained no topics")
	}
	analysis.Topics = topics
	return analysis, nil
}

// stripCodeFences removes a surrounding markdown code block, which models
// frequently add despite instructions.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// topicKeywords maps lexical cues to canonical topic names for the fallback
// path. Ordered so extracted topics are deterministic.
var topicKeywords = []struct {
	cue   string
	topic string
}{
	{"langgraph", "LangGraph"},
	{"crewai", "CrewAI"},
	{"redis", "Redis"},
	{"postgresql", "PostgreSQL"},
	{"postgres", "PostgreSQL"},
	{"mysql", "MySQL"},
	{"sqlite", "SQLite"},
	{"docker", "Docker"},
	{"kubernetes", "Kubernetes"},
	{"k8s", "Kubernetes"},
	{"golang", "Go"},
	{"python", "Python"},
	{"rust", "Rust"},
	{"kafka", "Kafka"},
	{"rabbitmq", "RabbitMQ"},
	{"grpc", "gRPC"},
	{"graphql", "GraphQL"},
}

// fallbackAnalysis extracts topics and a category by keyword matching. Used
// whenever the LLM path fails.
func fallbackAnalysis(request string) Analysis {
	lower := strings.ToLower(request)

	var topics []string
	seen := map[string]bool{}
	for _, kw := range topicKeywords {
		if strings.Contains(lower, kw.cue) && !seen[kw.topic] {
			topics = append(topics, kw.topic)
			seen[kw.topic] = true
		}
	}

	category := CategorySummary
	switch {
	case containsAny(lower, "compare", " vs ", " vs.", "versus", "difference"):
		category = CategoryComparison
	case containsAny(lower, "tutorial", "how to", "guide", "step-by-step", "walkthrough"):
		category = CategoryTutorial
	case containsAny(lower, "analyze", "analysis", "evaluate", "examine"):
		category = CategoryAnalysis
	}

	return Analysis{Topics: topics, Category: category}
}

func containsAny(s string, cues ...string) bool {
	for _, cue := range cues {
		if strings.Contains(s, cue) {
			return true
		}
	}
	return false
}
