package types

import (
	"time"
)

// TaskStatus is the lifecycle state of a single agent task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Terminal reports whether the status is final. Tasks never leave a
// terminal state.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Valid reports whether s is one of the four enumerated statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskRunning, TaskCompleted, TaskFailed:
		return true
	}
	return false
}

// Agent describes a named, colored, prioritized actor with a set of tools.
// Field names mirror the backend wire format.
type Agent struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Color       string   `json:"color"`
	Tools       []string `json:"tools"`
	IsEnabled   bool     `json:"isEnabled"`
	Description string   `json:"description"`
	Priority    int      `json:"priority"`
}

// AgentTask is one unit of work performed by one agent using one tool.
// Start and end times are Unix milliseconds; Progress is 0-100 and only set
// once the task is running.
type AgentTask struct {
	ID         string     `json:"id"`
	AgentID    string     `json:"agentId"`
	AgentName  string     `json:"agentName"`
	AgentColor string     `json:"agentColor"`
	Task       string     `json:"task"`
	Tool       string     `json:"tool,omitempty"`
	Status     TaskStatus `json:"status"`
	StartTime  *int64     `json:"startTime,omitempty"`
	EndTime    *int64     `json:"endTime,omitempty"`
	Progress   *int       `json:"progress,omitempty"`
	Result     string     `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	Input      string     `json:"input,omitempty"`
}

// Clone returns a deep copy so broadcast snapshots never alias scheduler
// state.
func (t AgentTask) Clone() AgentTask {
	out := t
	if t.StartTime != nil {
		v := *t.StartTime
		out.StartTime = &v
	}
	if t.EndTime != nil {
		v := *t.EndTime
		out.EndTime = &v
	}
	if t.Progress != nil {
		v := *t.Progress
		out.Progress = &v
	}
	return out
}

// CloneTasks deep-copies a task list.
func CloneTasks(tasks []AgentTask) []AgentTask {
	out := make([]AgentTask, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}

// ChatMessage is a single finalized message within a session. IDs are
// timestamp-derived and strictly increasing within a session.
type ChatMessage struct {
	ID         int64       `json:"id"`
	User       string      `json:"user"` // "user" or "chatbot"
	Message    string      `json:"message"`
	Datetime   string      `json:"datetime"`
	IsTyping   bool        `json:"isTyping,omitempty"`
	Src        []string    `json:"src,omitempty"`
	AgentTasks []AgentTask `json:"agentTasks,omitempty"`
	UserQuery  string      `json:"userQuery,omitempty"`
}

// ChatSession is a titled, ordered conversation thread.
type ChatSession struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// ConversationMessage is the role/content shape sent as history to the
// backend chat endpoint.
type ConversationMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ChatRequest is the POST /chat payload.
type ChatRequest struct {
	Message             string                `json:"message"`
	SessionID           string                `json:"sessionId"`
	Agents              []Agent               `json:"agents,omitempty"`
	IsMultiAgentMode    bool                  `json:"isMultiAgentMode"`
	ConversationHistory []ConversationMessage `json:"conversationHistory,omitempty"`
}

// ChatResponse is the POST /chat reply.
type ChatResponse struct {
	Response     string      `json:"response"`
	Src          []string    `json:"src,omitempty"`
	AgentTasks   []AgentTask `json:"agentTasks,omitempty"`
	SessionTitle string      `json:"sessionTitle,omitempty"`
}

// AgentsResponse is the GET /agents reply envelope.
type AgentsResponse struct {
	Agents []Agent `json:"agents"`
}
