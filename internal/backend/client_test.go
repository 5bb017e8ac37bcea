package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hiveerrors "hive/internal/errors"
	"hive/internal/types"
)

func TestChatRoundTrip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req types.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Message)
		assert.Equal(t, "s1", req.SessionID)

		_ = json.NewEncoder(w).Encode(types.ChatResponse{
			Response:     "hi there",
			Src:          []string{"https://example.com"},
			SessionTitle: "Greeting",
		})
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, time.Second, nil)
	resp, err := c.Chat(context.Background(), types.ChatRequest{Message: "hello", SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Response)
	assert.Equal(t, "Greeting", resp.SessionTitle)
}

func TestChatNon2xxIsAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, time.Second, nil)
	_, err := c.Chat(context.Background(), types.ChatRequest{Message: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestAgentsRoundTrip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/agents", r.URL.Path)
		_ = json.NewEncoder(w).Encode(types.AgentsResponse{Agents: []types.Agent{
			{ID: "research_agent", Name: "Research Agent", IsEnabled: true},
		}})
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, time.Second, nil)
	agents, err := c.Agents(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "research_agent", agents[0].ID)
}

func TestHealthy(t *testing.T) {
	t.Parallel()

	status := make(chan int, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(<-status)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, time.Second, nil)

	status <- http.StatusOK
	assert.True(t, c.Healthy(context.Background()))

	status <- http.StatusServiceUnavailable
	assert.False(t, c.Healthy(context.Background()))
}

func TestHealthyWithNoServer(t *testing.T) {
	t.Parallel()

	c := New("http://127.0.0.1:1", 200*time.Millisecond, nil)
	assert.False(t, c.Healthy(context.Background()))
}

func TestCircuitBreakerFailsFastAfterRepeated5xx(t *testing.T) {
	t.Parallel()

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, time.Second, nil)
	for i := 0; i < 5; i++ {
		_, err := c.Chat(context.Background(), types.ChatRequest{Message: "x"})
		require.Error(t, err)
	}
	require.Equal(t, 5, hits)

	// Circuit is open now: the next call never reaches the server.
	_, err := c.Chat(context.Background(), types.ChatRequest{Message: "x"})
	require.Error(t, err)
	assert.True(t, hiveerrors.IsUnavailable(err), "expected unavailable, got %v", err)
	assert.Equal(t, 5, hits)
}

func TestReadAllWithLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 2048))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, time.Second, nil)
	c.bodyLimit = 1024
	_, err := c.Chat(context.Background(), types.ChatRequest{Message: "x"})
	require.Error(t, err)

	assert.True(t, IsResponseTooLarge(err), "expected size-limit error, got %v", err)
}
