// Package chat wires the session store, agent registry, update channels,
// backend client and mock scheduler into the submit flow: live orchestration
// when the backend is reachable, simulated orchestration otherwise, with the
// final assistant message persisted exactly once either way.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hive/internal/assign"
	"hive/internal/backend"
	"hive/internal/channel"
	hiveerrors "hive/internal/errors"
	"hive/internal/logging"
	"hive/internal/orchestrate"
	"hive/internal/present"
	"hive/internal/registry"
	"hive/internal/store"
	"hive/internal/types"
	"hive/internal/typing"
)

// Canned user-visible responses.
const (
	noAgentsResponse = "No agents are currently enabled. Enable at least one agent and try again."
	errorResponse    = "I apologize, but I ran into a problem while processing your request. Please try again."
)

// ErrSuperseded is returned when a run finished after the user had already
// switched sessions or fired a new query; its results are discarded.
var ErrSuperseded = fmt.Errorf("orchestration run superseded")

// Backend is the subset of the backend client used by the controller.
type Backend interface {
	Chat(ctx context.Context, req types.ChatRequest) (*types.ChatResponse, error)
	Healthy(ctx context.Context) bool
}

var _ Backend = (*backend.Client)(nil)

// TaskObserver receives task list snapshots during a run, live or mocked.
type TaskObserver func(sessionID string, tasks []types.AgentTask)

// TitleObserver receives session title changes pushed by the backend.
type TitleObserver func(sessionID, title string)

// Controller owns one user's chat state. Construct with New and tear down
// with Close; there is no package-level instance.
type Controller struct {
	store     *store.Store
	registry  *registry.Registry
	channels  *channel.Manager
	backend   Backend
	scheduler *orchestrate.Scheduler
	pipeline  *present.Pipeline
	logger    logging.Logger

	mu            sync.Mutex
	agents        []types.Agent
	runSeq        uint64
	runSession    string
	observer      TaskObserver
	titleObserver TitleObserver
}

// Options collects the controller's dependencies.
type Options struct {
	Store     *store.Store
	Registry  *registry.Registry
	Channels  *channel.Manager
	Backend   Backend
	Scheduler *orchestrate.Scheduler
	Pipeline  *present.Pipeline
	Logger    logging.Logger
}

// New constructs a controller. Store, Registry and Scheduler are required;
// Backend and Channels may be nil for a fully offline controller.
func New(opts Options) *Controller {
	pipeline := opts.Pipeline
	if pipeline == nil {
		pipeline = present.NewPipeline(0)
	}
	return &Controller{
		store:     opts.Store,
		registry:  opts.Registry,
		channels:  opts.Channels,
		backend:   opts.Backend,
		scheduler: opts.Scheduler,
		pipeline:  pipeline,
		logger:    logging.OrNop(opts.Logger),
	}
}

// Close tears down every open channel.
func (c *Controller) Close() {
	if c.channels != nil {
		c.channels.DisconnectAll()
	}
}

// Store exposes the underlying session store to hosts.
func (c *Controller) Store() *store.Store { return c.store }

// Pipeline exposes the presentation pipeline to hosts.
func (c *Controller) Pipeline() *present.Pipeline { return c.pipeline }

// SetObserver registers the task update observer.
func (c *Controller) SetObserver(observer TaskObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = observer
}

// SetTitleObserver registers the title update observer.
func (c *Controller) SetTitleObserver(observer TitleObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.titleObserver = observer
}

// LoadAgents resolves the working roster (remote with cached/default
// fallback) and keeps it for subsequent submits.
func (c *Controller) LoadAgents(ctx context.Context) []types.Agent {
	agents := c.registry.Fetch(ctx)
	c.mu.Lock()
	c.agents = agents
	c.mu.Unlock()
	return agents
}

// Agents returns the current roster, loading defaults if none was fetched.
func (c *Controller) Agents() []types.Agent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.agents == nil {
		c.agents = c.registry.Initial()
	}
	return append([]types.Agent(nil), c.agents...)
}

// SetAgentEnabled toggles one agent in the working roster.
func (c *Controller) SetAgentEnabled(id string, enabled bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.agents {
		if c.agents[i].ID == id {
			c.agents[i].IsEnabled = enabled
			return true
		}
	}
	return false
}

// SwitchSession activates another session. The previous session's channel
// is torn down and any in-flight run is invalidated so stale updates and
// results are dropped rather than delivered to the wrong session.
func (c *Controller) SwitchSession(id string) bool {
	previous := c.store.CurrentSessionID()
	if !c.store.SwitchSession(id) {
		return false
	}
	if previous != "" && previous != id && c.channels != nil {
		c.channels.Disconnect(previous)
	}
	c.invalidateRuns()
	return true
}

// NewSession creates and activates a fresh session.
func (c *Controller) NewSession(title string) string {
	id := c.store.CreateSession(title)
	c.invalidateRuns()
	return id
}

// DeleteSession removes a session, tearing down its channel.
func (c *Controller) DeleteSession(id string) {
	if c.channels != nil {
		c.channels.Disconnect(id)
	}
	c.store.DeleteSession(id)
	c.invalidateRuns()
}

// Result is one completed submit. The assistant message is not yet
// persisted: call Persist for an immediate write or NewTypewriter to reveal
// it incrementally; either way it is stored exactly once.
type Result struct {
	SessionID string
	Query     string
	Response  string
	Src       []string
	Tasks     []types.AgentTask
	Live      bool

	controller  *Controller
	persistOnce sync.Once
	message     types.ChatMessage
}

// Persist appends the full response as the assistant message.
func (r *Result) Persist() types.ChatMessage {
	return r.persistFinal(r.Response)
}

// NewTypewriter wires the reveal animation to this result. The typewriter's
// persist step flushes through the same exactly-once gate as Persist.
func (r *Result) NewTypewriter(interval time.Duration, onReveal func(partial string)) *typing.Typewriter {
	return typing.New(r.Response, interval, onReveal, func(final string) {
		r.persistFinal(final)
	})
}

// Message returns the persisted assistant message; zero until persisted.
func (r *Result) Message() types.ChatMessage {
	return r.message
}

func (r *Result) persistFinal(final string) types.ChatMessage {
	r.persistOnce.Do(func() {
		msg, ok := r.controller.store.AppendMessage(r.SessionID, types.ChatMessage{
			User:       "chatbot",
			Message:    final,
			Src:        r.Src,
			AgentTasks: r.Tasks,
			UserQuery:  r.Query,
		})
		if !ok {
			r.controller.logger.Warn("assistant message dropped: session %s no longer exists", r.SessionID)
			return
		}
		r.message = msg
	})
	return r.message
}

// Submit runs one query: the user message is appended immediately, then the
// live backend path is tried and the mock scheduler covers every failure.
// The user always gets a response unless no agents are enabled (canned
// message) or this run was superseded (ErrSuperseded, nothing persisted).
func (c *Controller) Submit(ctx context.Context, text string) (*Result, error) {
	sessionID := c.store.CurrentSessionID()
	if sessionID == "" {
		sessionID = c.store.CreateSession("")
	}

	history := c.conversationHistory(sessionID)
	if _, ok := c.store.AppendMessage(sessionID, types.ChatMessage{
		User:    "user",
		Message: text,
	}); !ok {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}

	agents := c.Agents()
	enabled := registry.Enabled(agents)
	if len(enabled) == 0 {
		return &Result{
			SessionID:  sessionID,
			Query:      text,
			Response:   noAgentsResponse,
			controller: c,
		}, nil
	}

	seq := c.newRun(sessionID)

	if c.backend != nil && c.backend.Healthy(ctx) {
		result, err := c.submitLive(ctx, seq, sessionID, text, agents, history)
		switch {
		case err == nil:
			return result, nil
		case errors.Is(err, ErrSuperseded):
			return nil, err
		case hiveerrors.IsUnavailable(err):
			c.logger.Warn("backend circuit open for session %s, falling back to simulation: %v", sessionID, err)
		case hiveerrors.IsTransient(err):
			c.logger.Warn("transient backend failure for session %s, falling back to simulation: %v", sessionID, err)
		default:
			c.logger.Error("backend request failed for session %s, falling back to simulation: %v", sessionID, err)
		}
	}

	return c.submitMock(ctx, seq, sessionID, text, enabled)
}

// submitLive sends the query to the backend while the push channel streams
// task updates. Any failure tears the channel down and reports the error so
// the caller can fall back.
func (c *Controller) submitLive(ctx context.Context, seq uint64, sessionID, text string, agents []types.Agent, history []types.ConversationMessage) (*Result, error) {
	if c.channels != nil {
		c.channels.OnTitle(sessionID, func(title string) {
			c.applyTitle(sessionID, title)
		})
		if err := c.channels.Connect(ctx, sessionID, func(tasks []types.AgentTask) {
			c.deliver(seq, sessionID, tasks)
		}); err != nil {
			return nil, err
		}
		defer c.channels.Disconnect(sessionID)
	}

	resp, err := c.backend.Chat(ctx, types.ChatRequest{
		Message:             text,
		SessionID:           sessionID,
		Agents:              agents,
		IsMultiAgentMode:    c.store.MultiAgentMode(),
		ConversationHistory: history,
	})
	if err != nil {
		return nil, err
	}

	if c.isStale(seq) {
		c.logger.Info("discarding superseded live response for session %s", sessionID)
		return nil, ErrSuperseded
	}
	if resp.SessionTitle != "" {
		c.applyTitle(sessionID, resp.SessionTitle)
	}

	return &Result{
		SessionID:  sessionID,
		Query:      text,
		Response:   resp.Response,
		Src:        resp.Src,
		Tasks:      resp.AgentTasks,
		Live:       true,
		controller: c,
	}, nil
}

// submitMock assigns tasks heuristically and runs the simulated scheduler.
func (c *Controller) submitMock(ctx context.Context, seq uint64, sessionID, text string, enabled []types.Agent) (*Result, error) {
	tasks := assign.AssignTasks(text, enabled)
	if len(tasks) == 0 {
		return &Result{
			SessionID:  sessionID,
			Query:      text,
			Response:   noAgentsResponse,
			controller: c,
		}, nil
	}

	response, finalTasks, err := c.scheduler.Run(ctx, text, tasks, func(snapshot []types.AgentTask) {
		c.deliver(seq, sessionID, snapshot)
	})

	if c.isStale(seq) {
		// Resolved behavior for superseded runs: discard and log, never
		// persist into the no-longer-active session.
		c.logger.Info("discarding superseded simulated run for session %s", sessionID)
		return nil, ErrSuperseded
	}
	if err != nil {
		c.logger.Error("simulated orchestration failed for session %s: %v", sessionID, err)
		return &Result{
			SessionID:  sessionID,
			Query:      text,
			Response:   errorResponse,
			Tasks:      finalTasks,
			controller: c,
		}, nil
	}

	return &Result{
		SessionID:  sessionID,
		Query:      text,
		Response:   response,
		Tasks:      finalTasks,
		controller: c,
	}, nil
}

func (c *Controller) conversationHistory(sessionID string) []types.ConversationMessage {
	session, ok := c.store.Session(sessionID)
	if !ok {
		return nil
	}
	history := make([]types.ConversationMessage, 0, len(session.Messages))
	for _, msg := range session.Messages {
		role := "assistant"
		if msg.User == "user" {
			role = "user"
		}
		history = append(history, types.ConversationMessage{
			Role:      role,
			Content:   msg.Message,
			Timestamp: msg.Datetime,
		})
	}
	return history
}

func (c *Controller) applyTitle(sessionID, title string) {
	if !c.store.RenameSession(sessionID, title) {
		return
	}
	c.mu.Lock()
	observer := c.titleObserver
	c.mu.Unlock()
	if observer != nil {
		observer(sessionID, title)
	}
}

// newRun starts a run generation; any earlier run becomes stale.
func (c *Controller) newRun(sessionID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runSeq++
	c.runSession = sessionID
	return c.runSeq
}

func (c *Controller) invalidateRuns() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runSeq++
	c.runSession = ""
}

func (c *Controller) isStale(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return seq != c.runSeq
}

// deliver forwards a task snapshot to the observer unless the run has been
// superseded, in which case the update is dropped and logged.
func (c *Controller) deliver(seq uint64, sessionID string, tasks []types.AgentTask) {
	c.mu.Lock()
	stale := seq != c.runSeq
	observer := c.observer
	c.mu.Unlock()

	if stale {
		c.logger.Debug("dropping stale task update for session %s", sessionID)
		return
	}
	if observer != nil {
		observer(sessionID, tasks)
	}
}
