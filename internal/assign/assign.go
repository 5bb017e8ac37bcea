// Package assign turns a free-text query and an agent roster into an
// ordered list of pending tasks. The matching is a keyword heuristic, not a
// planner: it only decides which of an agent's declared tools look relevant
// to the query.
package assign

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"hive/internal/types"
)

// MaxTasks caps the combined assignment.
const MaxTasks = 6

// maxToolsPerAgent caps how many of one agent's tools may match.
const maxToolsPerAgent = 2

// ToolKindName classifies a tool identifier.
type ToolKindName string

const (
	KindWeb         ToolKindName = "web"
	KindDatabase    ToolKindName = "database"
	KindAPI         ToolKindName = "api"
	KindCalculation ToolKindName = "calculation"
	KindFile        ToolKindName = "file"
	KindUnknown     ToolKindName = "unknown"
)

// ToolKind derives the capability type from a tool identifier. Database
// markers are checked before the generic "search" so graph search tools
// classify as database.
func ToolKind(tool string) ToolKindName {
	name := strings.ToLower(tool)
	switch {
	case containsAny(name, "graph", "cypher", "neo4j", "sql", "database", "db_"):
		return KindDatabase
	case containsAny(name, "api", "http", "request"):
		return KindAPI
	case containsAny(name, "calc", "math", "compute"):
		return KindCalculation
	case containsAny(name, "file", "document", "doc_", "read"):
		return KindFile
	case containsAny(name, "web", "search", "browse", "lookup"):
		return KindWeb
	default:
		return KindUnknown
	}
}

var questionWords = []string{"what", "who", "when", "where", "why", "how", "which"}

// relevant judges whether a tool kind applies to the query. Unknown kinds
// are always considered relevant.
func relevant(kind ToolKindName, query string) bool {
	q := strings.ToLower(query)
	hasQuestionMark := strings.Contains(q, "?")

	switch kind {
	case KindWeb:
		return hasQuestionMark ||
			containsAnyWord(q, questionWords...) ||
			containsAny(q, "search", "find", "look", "information")
	case KindDatabase:
		return hasQuestionMark ||
			containsAny(q, "data", "query", "graph", "node", "cypher", "relationship")
	case KindAPI:
		return hasQuestionMark ||
			containsAny(q, "api", "service", "request", "integration")
	case KindCalculation:
		return containsAny(q, "calculate", "compute", "sum", "average", "total", "count", "math", "percent") ||
			containsDigit(q)
	case KindFile:
		return hasQuestionMark ||
			containsAny(q, "file", "document", "read", "analyze", "content")
	default:
		return true
	}
}

// Description produces the synthetic task text for a tool kind.
func Description(kind ToolKindName, query string) string {
	switch kind {
	case KindWeb:
		return fmt.Sprintf("Searching the web for information about: %s", query)
	case KindDatabase:
		return fmt.Sprintf("Querying the knowledge graph for: %s", query)
	case KindAPI:
		return fmt.Sprintf("Calling external services for: %s", query)
	case KindCalculation:
		return fmt.Sprintf("Computing results for: %s", query)
	case KindFile:
		return fmt.Sprintf("Analyzing documents related to: %s", query)
	default:
		return fmt.Sprintf("Processing request: %s", query)
	}
}

// AssignTasks produces the ordered pending task list for a query: enabled
// agents sorted by descending priority, up to two relevant tools each, at
// most MaxTasks overall. With no enabled agents the result is empty and the
// caller must surface a "no agents" response instead of scheduling.
func AssignTasks(query string, agents []types.Agent) []types.AgentTask {
	enabled := make([]types.Agent, 0, len(agents))
	for _, agent := range agents {
		if agent.IsEnabled {
			enabled = append(enabled, agent)
		}
	}
	if len(enabled) == 0 {
		return nil
	}

	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Priority > enabled[j].Priority
	})

	var tasks []types.AgentTask
	seq := 0
	appendTask := func(agent types.Agent, tool string) {
		seq++
		tasks = append(tasks, types.AgentTask{
			ID:         fmt.Sprintf("task-%d-%s", seq, agent.ID),
			AgentID:    agent.ID,
			AgentName:  agent.Name,
			AgentColor: agent.Color,
			Task:       Description(ToolKind(tool), query),
			Tool:       tool,
			Status:     types.TaskPending,
			Input:      query,
		})
	}

	for _, agent := range enabled {
		if len(agent.Tools) == 0 {
			continue
		}
		matched := 0
		for _, tool := range agent.Tools {
			if relevant(ToolKind(tool), query) {
				appendTask(agent, tool)
				matched++
				if matched >= maxToolsPerAgent {
					break
				}
			}
		}
		if matched == 0 {
			// No tool matched; keep the agent in play with its first tool.
			appendTask(agent, agent.Tools[0])
		}
	}

	// Defensive fallback: if the loop produced nothing, assign one task per
	// enabled agent using its first declared tool.
	if len(tasks) == 0 {
		for _, agent := range enabled {
			if len(agent.Tools) == 0 {
				continue
			}
			appendTask(agent, agent.Tools[0])
		}
	}

	if len(tasks) > MaxTasks {
		tasks = tasks[:MaxTasks]
	}
	return tasks
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// containsAnyWord matches whole words so "how" does not fire on "show".
func containsAnyWord(s string, words ...string) bool {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, field := range fields {
		for _, word := range words {
			if field == word {
				return true
			}
		}
	}
	return false
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
