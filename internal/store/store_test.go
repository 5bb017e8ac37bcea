package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hive/internal/types"
)

func TestCreateSwitchAndReload(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s := New(dir, nil, nil)
	first := s.CreateSession("First")
	second := s.CreateSession("")

	assert.Equal(t, second, s.CurrentSessionID(), "newest session becomes active")
	require.True(t, s.SwitchSession(first))
	assert.Equal(t, first, s.CurrentSessionID())

	_, ok := s.AppendMessage(first, types.ChatMessage{User: "user", Message: "hello"})
	require.True(t, ok)

	// A fresh store over the same directory sees the persisted state.
	reloaded := New(dir, nil, nil)
	assert.Equal(t, first, reloaded.CurrentSessionID())
	sessions := reloaded.Sessions()
	require.Len(t, sessions, 2)

	session, ok := reloaded.Session(first)
	require.True(t, ok)
	assert.Equal(t, "First", session.Title)
	require.Len(t, session.Messages, 1)
	assert.Equal(t, "hello", session.Messages[0].Message)

	defaulted, ok := reloaded.Session(second)
	require.True(t, ok)
	assert.Equal(t, DefaultSessionTitle, defaulted.Title)
}

func TestSwitchSessionUnknownID(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir(), nil, nil)
	s.CreateSession("only")
	assert.False(t, s.SwitchSession("nope"))
}

func TestDeleteActiveSessionPromotesFirstRemaining(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir(), nil, nil)
	first := s.CreateSession("a")
	second := s.CreateSession("b")
	third := s.CreateSession("c")

	require.True(t, s.SwitchSession(second))
	s.DeleteSession(second)

	assert.Equal(t, first, s.CurrentSessionID(), "first remaining session becomes active")
	assert.Len(t, s.Sessions(), 2)

	// Deleting a non-active session leaves the pointer alone.
	s.DeleteSession(third)
	assert.Equal(t, first, s.CurrentSessionID())
}

func TestDeleteLastSessionLeavesStoreEmpty(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir(), nil, nil)
	only := s.CreateSession("only")
	s.DeleteSession(only)

	assert.Empty(t, s.CurrentSessionID())
	assert.Empty(t, s.Sessions())
}

func TestAppendMessageIDsAreStrictlyIncreasing(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir(), nil, nil)
	id := s.CreateSession("ids")

	var last int64
	for i := 0; i < 50; i++ {
		msg, ok := s.AppendMessage(id, types.ChatMessage{User: "user", Message: "m"})
		require.True(t, ok)
		if msg.ID <= last {
			t.Fatalf("message id %d not greater than previous %d", msg.ID, last)
		}
		last = msg.ID
	}
}

func TestAppendMessageUnknownSession(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir(), nil, nil)
	_, ok := s.AppendMessage("missing", types.ChatMessage{Message: "x"})
	assert.False(t, ok)
}

func TestUpdateMessageInPlace(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir(), nil, nil)
	id := s.CreateSession("edit")
	msg, ok := s.AppendMessage(id, types.ChatMessage{User: "chatbot", Message: "typing", IsTyping: true})
	require.True(t, ok)

	require.True(t, s.UpdateMessage(id, msg.ID, types.ChatMessage{User: "chatbot", Message: "final"}))

	session, _ := s.Session(id)
	require.Len(t, session.Messages, 1)
	assert.Equal(t, "final", session.Messages[0].Message)
	assert.Equal(t, msg.ID, session.Messages[0].ID, "id survives the update")
	assert.False(t, session.Messages[0].IsTyping)
}

func TestSeedOnlyAppliesToEmptyStore(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	seed := []types.ChatSession{{ID: "seed-1", Title: "Seeded"}}
	s := New(dir, seed, nil)
	assert.Equal(t, "seed-1", s.CurrentSessionID())

	s.CreateSession("persisted")

	// Reopening with a different seed must not clobber persisted sessions.
	reopened := New(dir, []types.ChatSession{{ID: "seed-2", Title: "Other"}}, nil)
	ids := make([]string, 0)
	for _, session := range reopened.Sessions() {
		ids = append(ids, session.ID)
	}
	assert.Contains(t, ids, "seed-1")
	assert.NotContains(t, ids, "seed-2")
}

func TestCorruptSessionsFileIsDiscarded(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "sessions.json"), []byte("{not json"), 0644))
	s := New(dir, nil, nil)
	assert.Empty(t, s.Sessions())
	assert.Empty(t, s.CurrentSessionID())
}

func TestAgentCacheRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s := New(dir, nil, nil)
	assert.Nil(t, s.CachedAgents())

	agents := []types.Agent{{ID: "research_agent", Name: "Research Agent", IsEnabled: true}}
	s.SaveAgents(agents)

	cached := s.CachedAgents()
	require.Len(t, cached, 1)
	assert.Equal(t, "research_agent", cached[0].ID)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "agents.json"), []byte("broken"), 0644))
	assert.Nil(t, s.CachedAgents())
}

func TestMultiAgentModeDefaultsTrue(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir(), nil, nil)
	assert.True(t, s.MultiAgentMode(), "missing flag defaults to enabled")

	s.SetMultiAgentMode(false)
	assert.False(t, s.MultiAgentMode())
	s.SetMultiAgentMode(true)
	assert.True(t, s.MultiAgentMode())
}

func TestClearAll(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s := New(dir, nil, nil)
	s.CreateSession("a")
	s.CreateSession("b")
	s.ClearAll()

	assert.Empty(t, s.Sessions())
	assert.Empty(t, s.CurrentSessionID())

	reloaded := New(dir, nil, nil)
	assert.Empty(t, reloaded.Sessions())
}
