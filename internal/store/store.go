// Package store persists chat sessions, the active session pointer, the
// cached agent list and the multi-agent-mode flag under fixed keys in a
// state directory. It is the Go rendition of the original client's
// local-storage layer: every mutation writes through synchronously, and
// storage failures are swallowed so the application behaves as if storage
// were simply empty.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"hive/internal/logging"
	"hive/internal/types"
)

// Fixed storage keys (file names inside the state directory).
const (
	sessionsKey  = "sessions.json"
	currentKey   = "current_session"
	agentsKey    = "agents.json"
	multiModeKey = "multi_agent_mode"
)

// DefaultSessionTitle is used when a session is created without a title.
const DefaultSessionTitle = "New Chat"

// Store owns the persisted chat state. All methods are safe for concurrent
// use.
type Store struct {
	mu        sync.Mutex
	dir       string
	logger    logging.Logger
	sessions  []types.ChatSession
	currentID string
	lastMsgID int64
}

// New opens (or initializes) the store rooted at dir. Persisted state wins
// over seed sessions; seeds only apply when nothing was persisted.
func New(dir string, seed []types.ChatSession, logger logging.Logger) *Store {
	s := &Store{
		dir:    dir,
		logger: logging.OrNop(logger),
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.logger.Warn("state directory %s unavailable: %v", dir, err)
	}

	s.load()
	if len(s.sessions) == 0 && len(seed) > 0 {
		s.sessions = append(s.sessions, seed...)
		s.currentID = seed[0].ID
		s.persistLocked()
	}
	return s
}

// load reads persisted sessions and the current pointer; any failure leaves
// the store empty.
func (s *Store) load() {
	data, err := os.ReadFile(filepath.Join(s.dir, sessionsKey))
	if err != nil {
		return
	}
	var sessions []types.ChatSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		s.logger.Warn("discarding unreadable %s: %v", sessionsKey, err)
		return
	}
	s.sessions = sessions

	if raw, err := os.ReadFile(filepath.Join(s.dir, currentKey)); err == nil {
		id := string(raw)
		if s.session(id) != nil {
			s.currentID = id
		}
	}
	if s.currentID == "" && len(s.sessions) > 0 {
		s.currentID = s.sessions[0].ID
	}
}

func (s *Store) persistLocked() {
	data, err := json.MarshalIndent(s.sessions, "", "  ")
	if err != nil {
		s.logger.Error("marshal sessions: %v", err)
		return
	}
	if err := os.WriteFile(filepath.Join(s.dir, sessionsKey), data, 0644); err != nil {
		s.logger.Warn("persist %s: %v", sessionsKey, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, currentKey), []byte(s.currentID), 0644); err != nil {
		s.logger.Warn("persist %s: %v", currentKey, err)
	}
}

func (s *Store) session(id string) *types.ChatSession {
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return &s.sessions[i]
		}
	}
	return nil
}

// CreateSession creates a new session, makes it active, and returns its id.
func (s *Store) CreateSession(title string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if title == "" {
		title = DefaultSessionTitle
	}
	now := time.Now()
	session := types.ChatSession{
		ID:        uuid.NewString(),
		Title:     title,
		Messages:  []types.ChatMessage{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions = append(s.sessions, session)
	s.currentID = session.ID
	s.persistLocked()
	return session.ID
}

// SwitchSession makes the given session active.
func (s *Store) SwitchSession(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session(id) == nil {
		return false
	}
	s.currentID = id
	s.persistLocked()
	return true
}

// DeleteSession removes a session. When the active session is deleted the
// first remaining session (in current order) becomes active, or none.
func (s *Store) DeleteSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.sessions[:0]
	removed := false
	for _, session := range s.sessions {
		if session.ID == id {
			removed = true
			continue
		}
		kept = append(kept, session)
	}
	if !removed {
		return
	}
	s.sessions = kept
	if s.currentID == id {
		s.currentID = ""
		if len(s.sessions) > 0 {
			s.currentID = s.sessions[0].ID
		}
	}
	s.persistLocked()
}

// NextMessageID returns a timestamp-derived id, forced strictly increasing
// so two appends within the same millisecond stay unique.
func (s *Store) NextMessageID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextMessageIDLocked()
}

func (s *Store) nextMessageIDLocked() int64 {
	id := time.Now().UnixMilli()
	if id <= s.lastMsgID {
		id = s.lastMsgID + 1
	}
	s.lastMsgID = id
	return id
}

// AppendMessage appends a finalized message to a session and refreshes its
// updatedAt. A zero message id is assigned from the monotonic counter.
func (s *Store) AppendMessage(sessionID string, msg types.ChatMessage) (types.ChatMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.session(sessionID)
	if session == nil {
		return types.ChatMessage{}, false
	}
	if msg.ID == 0 {
		msg.ID = s.nextMessageIDLocked()
	} else if msg.ID > s.lastMsgID {
		s.lastMsgID = msg.ID
	}
	if msg.Datetime == "" {
		msg.Datetime = time.Now().Format(time.RFC3339)
	}
	session.Messages = append(session.Messages, msg)
	session.UpdatedAt = time.Now()
	s.persistLocked()
	return msg, true
}

// UpdateMessage replaces the message with the given id in place.
func (s *Store) UpdateMessage(sessionID string, id int64, msg types.ChatMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.session(sessionID)
	if session == nil {
		return false
	}
	for i := range session.Messages {
		if session.Messages[i].ID == id {
			msg.ID = id
			session.Messages[i] = msg
			session.UpdatedAt = time.Now()
			s.persistLocked()
			return true
		}
	}
	return false
}

// RenameSession sets a session title and refreshes updatedAt.
func (s *Store) RenameSession(id, title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.session(id)
	if session == nil || title == "" {
		return false
	}
	session.Title = title
	session.UpdatedAt = time.Now()
	s.persistLocked()
	return true
}

// ClearAll removes every session and the active pointer.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = nil
	s.currentID = ""
	s.persistLocked()
}

// Sessions returns a snapshot of all sessions.
func (s *Store) Sessions() []types.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.ChatSession, len(s.sessions))
	for i, session := range s.sessions {
		out[i] = session
		out[i].Messages = append([]types.ChatMessage(nil), session.Messages...)
	}
	return out
}

// Session returns a snapshot of one session.
func (s *Store) Session(id string) (types.ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.session(id)
	if session == nil {
		return types.ChatSession{}, false
	}
	out := *session
	out.Messages = append([]types.ChatMessage(nil), session.Messages...)
	return out, true
}

// CurrentSessionID returns the active session id, or "" when none.
func (s *Store) CurrentSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// SaveAgents caches the agent list.
func (s *Store) SaveAgents(agents []types.Agent) {
	data, err := json.MarshalIndent(agents, "", "  ")
	if err != nil {
		s.logger.Error("marshal agents: %v", err)
		return
	}
	if err := os.WriteFile(filepath.Join(s.dir, agentsKey), data, 0644); err != nil {
		s.logger.Warn("persist %s: %v", agentsKey, err)
	}
}

// CachedAgents returns the cached agent list, or nil when none is usable.
func (s *Store) CachedAgents() []types.Agent {
	data, err := os.ReadFile(filepath.Join(s.dir, agentsKey))
	if err != nil {
		return nil
	}
	var agents []types.Agent
	if err := json.Unmarshal(data, &agents); err != nil {
		s.logger.Warn("discarding unreadable %s: %v", agentsKey, err)
		return nil
	}
	return agents
}

// SetMultiAgentMode persists the multi-agent-mode flag.
func (s *Store) SetMultiAgentMode(enabled bool) {
	if err := os.WriteFile(filepath.Join(s.dir, multiModeKey), []byte(strconv.FormatBool(enabled)), 0644); err != nil {
		s.logger.Warn("persist %s: %v", multiModeKey, err)
	}
}

// MultiAgentMode reads the multi-agent-mode flag; missing or unreadable
// state defaults to true.
func (s *Store) MultiAgentMode() bool {
	data, err := os.ReadFile(filepath.Join(s.dir, multiModeKey))
	if err != nil {
		return true
	}
	enabled, err := strconv.ParseBool(string(data))
	if err != nil {
		return true
	}
	return enabled
}
