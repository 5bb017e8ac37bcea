// Package channel manages one push-update connection per chat session. The
// transport multiplexes by session id (the channel URL embeds it); inbound
// frames are parsed into typed variants at the boundary and dispatched to
// the registered callbacks in transport order.
package channel

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"hive/internal/logging"
	"hive/internal/types"
)

// TaskCallback receives task list snapshots for a session. A task_update
// frame arrives as a singleton list.
type TaskCallback func(tasks []types.AgentTask)

// TitleCallback receives session title updates.
type TitleCallback func(title string)

type connection struct {
	ws        *websocket.Conn
	sessionID string
	onTasks   TaskCallback
	closeOnce sync.Once
	done      chan struct{}
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		_ = c.ws.Close()
		close(c.done)
	})
}

// Manager owns the per-session channels. It is constructed explicitly and
// injected where needed; teardown is deterministic via DisconnectAll.
type Manager struct {
	baseURL string
	dialer  *websocket.Dialer
	logger  logging.Logger

	mu       sync.Mutex
	conns    map[string]*connection
	onTitles map[string]TitleCallback
}

// NewManager creates a manager dialing channels under baseURL, e.g.
// "ws://localhost:8000" yields "ws://localhost:8000/ws/<sessionID>".
func NewManager(baseURL string, logger logging.Logger) *Manager {
	return &Manager{
		baseURL:  strings.TrimRight(baseURL, "/"),
		dialer:   websocket.DefaultDialer,
		logger:   logging.OrNop(logger),
		conns:    make(map[string]*connection),
		onTitles: make(map[string]TitleCallback),
	}
}

// Connect opens the push channel for a session and starts dispatching
// incoming frames to onTasks. An existing channel for the same session is
// torn down first.
func (m *Manager) Connect(ctx context.Context, sessionID string, onTasks TaskCallback) error {
	if sessionID == "" {
		return fmt.Errorf("channel: empty session id")
	}

	m.mu.Lock()
	if existing, ok := m.conns[sessionID]; ok {
		delete(m.conns, sessionID)
		existing.close()
	}
	m.mu.Unlock()

	url := fmt.Sprintf("%s/ws/%s", m.baseURL, sessionID)
	ws, _, err := m.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("channel connect %s: %w", sessionID, err)
	}

	conn := &connection{
		ws:        ws,
		sessionID: sessionID,
		onTasks:   onTasks,
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	m.conns[sessionID] = conn
	m.mu.Unlock()

	m.logger.Info("channel connected for session %s", sessionID)
	go m.readLoop(conn)
	return nil
}

// OnTitle registers the title callback for a session. It survives until
// Disconnect for that session.
func (m *Manager) OnTitle(sessionID string, cb TitleCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cb == nil {
		delete(m.onTitles, sessionID)
		return
	}
	m.onTitles[sessionID] = cb
}

// Disconnect tears down the channel for a session and removes both its
// callbacks. Calling it when no channel exists is a no-op.
func (m *Manager) Disconnect(sessionID string) {
	m.mu.Lock()
	conn := m.conns[sessionID]
	delete(m.conns, sessionID)
	delete(m.onTitles, sessionID)
	m.mu.Unlock()

	if conn != nil {
		conn.close()
		m.logger.Info("channel disconnected for session %s", sessionID)
	}
}

// DisconnectAll tears down every tracked channel. Used at shutdown.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[string]*connection)
	m.onTitles = make(map[string]TitleCallback)
	m.mu.Unlock()

	for _, conn := range conns {
		conn.close()
	}
	if len(conns) > 0 {
		m.logger.Info("closed %d channel(s)", len(conns))
	}
}

// Connected reports whether a channel for the session is currently tracked.
func (m *Manager) Connected(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.conns[sessionID]
	return ok
}

// readLoop dispatches frames in the order the transport delivers them.
// Callbacks run on the loop goroutine, so per-session ordering is the
// transport ordering. Malformed payloads are logged and skipped; they never
// kill the loop.
func (m *Manager) readLoop(conn *connection) {
	defer m.dropIfCurrent(conn)

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			select {
			case <-conn.done:
				// deliberate teardown
			default:
				m.logger.Warn("channel read for session %s ended: %v", conn.sessionID, err)
			}
			return
		}

		frame, err := types.ParseFrame(data)
		if err != nil {
			m.logger.Warn("channel: dropping malformed payload for session %s: %v", conn.sessionID, err)
			continue
		}
		m.dispatch(conn, frame)
	}
}

func (m *Manager) dispatch(conn *connection, frame types.Frame) {
	switch f := frame.(type) {
	case types.MultiTaskUpdate:
		if conn.onTasks != nil {
			conn.onTasks(f.Tasks)
		}
	case types.TaskUpdate:
		if conn.onTasks != nil {
			conn.onTasks([]types.AgentTask{f.Task})
		}
	case types.SessionTitleUpdate:
		m.mu.Lock()
		cb := m.onTitles[conn.sessionID]
		m.mu.Unlock()
		if cb != nil {
			cb(f.Title)
		} else {
			m.logger.Debug("channel: no title callback for session %s", conn.sessionID)
		}
	case types.ConnectionTest:
		m.logger.Debug("channel: connection test for session %s", conn.sessionID)
	default:
		m.logger.Warn("channel: unknown frame type %q for session %s", frame.FrameType(), conn.sessionID)
	}
}

// dropIfCurrent removes the connection from the registry unless a newer
// connection already replaced it.
func (m *Manager) dropIfCurrent(conn *connection) {
	m.mu.Lock()
	if m.conns[conn.sessionID] == conn {
		delete(m.conns, conn.sessionID)
	}
	m.mu.Unlock()
	conn.close()
}
