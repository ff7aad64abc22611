package scribe

import (
	"fmt"
	"strings"
)

// noInformationPlaceholder stands in for topics whose research failed.
const noInformationPlaceholder = "no information available"

const comparisonTemplate = `You are a technical writer creating a comparison.

Based on the following research, write a short, clear comparison for a
technical audience.

%s
## Original Request:
%s

Write a professional comparison that:
1. Highlights key differences between the subjects
2. Discusses strengths of each approach
3. Provides guidance on when to use each
4. Is concise but comprehensive (2-3 paragraphs)

Comparison:`

const tutorialTemplate = `You are a technical writer creating a tutorial.

Based on the following research, write a clear step-by-step tutorial.

%s
## Original Request:
%s

Write a tutorial that:
1. States any prerequisites up front
2. Proceeds in numbered, self-contained steps
3. Notes common pitfalls where relevant
4. Ends with a short summary of what was accomplished

Tutorial:`

const analysisTemplate = `You are a technical writer producing an analysis.

Based on the following research, write an in-depth analysis for a technical
audience.

%s
## Original Request:
%s

Write an analysis that:
1. Examines each subject on its merits and trade-offs
2. Supports claims with specifics from the research
3. Draws a reasoned conclusion
4. Is concise but thorough (3-4 paragraphs)

Analysis:`

const summaryTemplate = `You are a technical writer producing a summary.

Based on the following research, write a clear overview for a technical
audience.

%s
## Original Request:
%s

Write a summary that:
1. Covers the essential points of each subject
2. Avoids unnecessary jargon
3. Is concise (1-2 paragraphs)

Summary:`

// SelectTemplate maps a task category to its prompt template. The switch is
// exhaustive over the four categories; an unrecognized category is an
// invariant violation since the analyzer is the sole producer of categories.
func SelectTemplate(category Category) (string, error) {
	switch category {
	case CategoryComparison:
		return comparisonTemplate, nil
	case CategoryTutorial:
		return tutorialTemplate, nil
	case CategoryAnalysis:
		return analysisTemplate, nil
	case CategorySummary:
		return summaryTemplate, nil
	default:
		return "", NewTaskError(ErrorKindInternal, fmt.Sprintf("no template for category %q", category))
	}
}

// renderResearch formats per-topic research into the template's research
// block, substituting a placeholder for topics whose research failed.
func renderResearch(topics []string, results map[string]ResearchResult) string {
	var b strings.Builder
	for _, topic := range topics {
		fmt.Fprintf(&b, "## Research: %s\n", topic)
		result, ok := results[topic]
		if !ok || result.Failed() || result.Content == "" {
			b.WriteString(noInformationPlaceholder)
		} else {
			b.WriteString(strings.TrimSpace(result.Content))
		}
		b.WriteString("\n\n")
	}
	return b.String()
}
