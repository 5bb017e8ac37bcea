// Package registry provides the agent roster: a fixed default set plus a
// remote load with stale-then-revalidate caching through the store.
package registry

import (
	"context"

	"hive/internal/logging"
	"hive/internal/types"
)

// DefaultAgents returns the fixed built-in roster. Identity is the agent id;
// priorities are unique so assignment ordering is deterministic.
func DefaultAgents() []types.Agent {
	return []types.Agent{
		{
			ID:          "research_agent",
			Name:        "Research Agent",
			Color:       "#2196F3",
			Tools:       []string{"web_search"},
			IsEnabled:   true,
			Description: "Web search and information gathering",
			Priority:    6,
		},
		{
			ID:          "llm_agent",
			Name:        "LLM Agent",
			Color:       "#3F51B5",
			Tools:       []string{"gpt5_search"},
			IsEnabled:   true,
			Description: "AI-powered search, research and analysis using GPT-5",
			Priority:    5,
		},
		{
			ID:          "graph_agent",
			Name:        "Graph Agent",
			Color:       "#F44336",
			Tools:       []string{"graphrag_search", "cypher_query"},
			IsEnabled:   true,
			Description: "Knowledge graph queries and graph analysis",
			Priority:    4,
		},
		{
			ID:          "api_agent",
			Name:        "API Agent",
			Color:       "#4CAF50",
			Tools:       []string{"api_request"},
			IsEnabled:   true,
			Description: "External service and API integration",
			Priority:    3,
		},
		{
			ID:          "calc_agent",
			Name:        "Calculation Agent",
			Color:       "#FF9800",
			Tools:       []string{"calculator"},
			IsEnabled:   true,
			Description: "Numeric and mathematical computation",
			Priority:    2,
		},
		{
			ID:          "file_agent",
			Name:        "File Agent",
			Color:       "#9C27B0",
			Tools:       []string{"file_reader", "document_analyzer"},
			IsEnabled:   true,
			Description: "File and document content analysis",
			Priority:    1,
		},
	}
}

// Enabled filters out disabled agents.
func Enabled(agents []types.Agent) []types.Agent {
	out := make([]types.Agent, 0, len(agents))
	for _, agent := range agents {
		if agent.IsEnabled {
			out = append(out, agent)
		}
	}
	return out
}

// AgentSource fetches the roster from the backend.
type AgentSource interface {
	Agents(ctx context.Context) ([]types.Agent, error)
}

// AgentCache persists the last good roster between runs.
type AgentCache interface {
	SaveAgents(agents []types.Agent)
	CachedAgents() []types.Agent
}

// Registry loads agents from the backend, falling back to the cached roster
// and finally the built-in defaults.
type Registry struct {
	source AgentSource
	cache  AgentCache
	logger logging.Logger
}

// New constructs a registry. Source may be nil for an offline roster.
func New(source AgentSource, cache AgentCache, logger logging.Logger) *Registry {
	return &Registry{
		source: source,
		cache:  cache,
		logger: logging.OrNop(logger),
	}
}

// Initial returns the roster to show before the remote fetch resolves:
// cached agents when present, defaults otherwise.
func (r *Registry) Initial() []types.Agent {
	if r.cache != nil {
		if cached := r.cache.CachedAgents(); validRoster(cached) {
			return cached
		}
	}
	return DefaultAgents()
}

// Fetch attempts a remote load. Any failure (network error, non-2xx,
// malformed roster) falls back to Initial(); successful loads refresh the
// cache.
func (r *Registry) Fetch(ctx context.Context) []types.Agent {
	if r.source == nil {
		return r.Initial()
	}
	agents, err := r.source.Agents(ctx)
	if err != nil {
		r.logger.Warn("agent fetch failed, using fallback roster: %v", err)
		return r.Initial()
	}
	if !validRoster(agents) {
		r.logger.Warn("agent fetch returned malformed roster (%d agents), using fallback", len(agents))
		return r.Initial()
	}
	if r.cache != nil {
		r.cache.SaveAgents(agents)
	}
	return agents
}

// validRoster requires a non-empty list with unique, non-empty ids.
func validRoster(agents []types.Agent) bool {
	if len(agents) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(agents))
	for _, agent := range agents {
		if agent.ID == "" {
			return false
		}
		if _, dup := seen[agent.ID]; dup {
			return false
		}
		seen[agent.ID] = struct{}{}
	}
	return true
}
