// Package tools provides research tool implementations: a built-in knowledge
// base for common technical topics and an HTTP-backed web search.
package tools

import (
	"context"
	"fmt"
	"strings"
)

// knowledgeEntry binds topic keywords to canned source material.
type knowledgeEntry struct {
	keywords []string
	content  string
}

var knowledgeBase = []knowledgeEntry{
	{
		keywords: []string{"langgraph"},
		content: `LangGraph Key Features:

1. Stateful Graph Architecture: nodes represent agents or processing steps,
   edges define the flow between them, and state is passed and updated as
   execution flows through the graph.

2. Built-in Persistence: checkpointers save and restore workflow state,
   enabling durable execution that survives failures.

3. Human-in-the-Loop: native support for interrupts that pause execution and
   wait for human input before continuing.

4. Conditional Routing: edges can be conditional, allowing dynamic routing
   based on state.

5. Streaming Support: real-time streaming of intermediate results as the
   workflow progresses.

6. Multi-Agent Coordination: built for orchestrating multiple agents working
   together on complex tasks.`,
	},
	{
		keywords: []string{"crewai", "crew ai"},
		content: `CrewAI Key Features:

1. Role-Based Agents: agents are defined with specific roles, goals, and
   backstories, making them specialized for particular tasks.

2. Task-Oriented Design: work is organized as tasks assigned to agents, with
   dependencies and expected outputs.

3. Crew Orchestration: a "Crew" coordinates multiple agents, managing task
   delegation and execution order automatically.

4. Sequential and Hierarchical Processes: supports sequential execution or a
   manager agent delegating to workers.

5. Memory Systems: short-term, long-term, and entity memory let agents keep
   context across interactions.`,
	},
	{
		keywords: []string{"redis"},
		content: `Redis Overview:

An in-memory data structure store used as a cache, message broker, and
database. Offers sub-millisecond latency, rich data types (strings, hashes,
lists, sets, sorted sets, streams), optional persistence via RDB snapshots
and AOF logs, pub/sub messaging, and Lua scripting. Clustering provides
horizontal scaling with automatic sharding. Common uses: session storage,
rate limiting, leaderboards, and task queues.`,
	},
	{
		keywords: []string{"postgresql", "postgres"},
		content: `PostgreSQL Overview:

A feature-rich open-source relational database with full ACID compliance,
MVCC concurrency, and strong SQL standards support. Offers advanced indexing
(B-tree, GIN, GiST, BRIN), JSONB for document workloads, full-text search,
table partitioning, logical and streaming replication, and an extension
ecosystem (PostGIS, pgvector, TimescaleDB). Suited to transactional
workloads, analytics, and applications needing durable relational storage.`,
	},
	{
		keywords: []string{"docker"},
		content: `Docker Overview:

A container platform that packages applications with their dependencies into
portable images. Containers share the host kernel, making them lighter than
virtual machines. Dockerfiles define reproducible builds; registries
distribute images; Compose orchestrates multi-container applications locally.
Widely used for consistent dev/prod environments and CI pipelines.`,
	},
	{
		keywords: []string{"kubernetes", "k8s"},
		content: `Kubernetes Overview:

A container orchestration system that schedules workloads across a cluster of
machines. Core concepts: pods (groups of containers), deployments (declarative
rollout and scaling), services (stable networking), and config/secret
management. Provides self-healing, horizontal autoscaling, and rolling
updates. The de facto standard for running containerized services at scale.`,
	},
}

// KnowledgeTool serves research material from a built-in corpus, falling back
// to a generic stub for topics it does not know. It never fails, which makes
// it the default backend for offline use and tests.
type KnowledgeTool struct {
	name string
}

// NewKnowledgeTool creates a knowledge-base tool registered under name.
func NewKnowledgeTool(name string) *KnowledgeTool {
	return &KnowledgeTool{name: name}
}

func (t *KnowledgeTool) Name() string {
	return t.name
}

func (t *KnowledgeTool) Search(ctx context.Context, topic string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	lowered := strings.ToLower(topic)
	for _, entry := range knowledgeBase {
		for _, keyword := range entry.keywords {
			if strings.Contains(lowered, keyword) {
				return entry.content, nil
			}
		}
	}
	return fmt.Sprintf("General reference notes on %q: no curated material is "+
		"available for this topic; treat coverage as introductory.", topic), nil
}
