package registry

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hive/internal/types"
)

type fakeSource struct {
	agents []types.Agent
	err    error
	calls  int
}

func (f *fakeSource) Agents(ctx context.Context) ([]types.Agent, error) {
	f.calls++
	return f.agents, f.err
}

type fakeCache struct {
	saved  []types.Agent
	cached []types.Agent
}

func (f *fakeCache) SaveAgents(agents []types.Agent) { f.saved = agents }
func (f *fakeCache) CachedAgents() []types.Agent     { return f.cached }

func TestDefaultAgentsRosterShape(t *testing.T) {
	t.Parallel()

	agents := DefaultAgents()
	require.Len(t, agents, 6)

	seen := make(map[string]bool)
	priorities := make(map[int]bool)
	for _, agent := range agents {
		assert.False(t, seen[agent.ID], "duplicate agent id %s", agent.ID)
		seen[agent.ID] = true
		assert.False(t, priorities[agent.Priority], "duplicate priority %d", agent.Priority)
		priorities[agent.Priority] = true
		assert.True(t, agent.IsEnabled, "defaults ship enabled")
		assert.NotEmpty(t, agent.Tools, "agent %s has no tools", agent.ID)
	}
	assert.True(t, seen["research_agent"])
	assert.True(t, seen["llm_agent"])
}

func TestFetchSuccessRefreshesCache(t *testing.T) {
	t.Parallel()

	remote := []types.Agent{
		{ID: "remote_a", Name: "Remote A", IsEnabled: true},
		{ID: "remote_b", Name: "Remote B"},
	}
	cache := &fakeCache{}
	r := New(&fakeSource{agents: remote}, cache, nil)

	got := r.Fetch(context.Background())
	assert.Equal(t, remote, got)
	assert.Equal(t, remote, cache.saved, "successful fetch refreshes the cache")
}

func TestFetchErrorFallsBackToCache(t *testing.T) {
	t.Parallel()

	cached := []types.Agent{{ID: "cached_agent", Name: "Cached"}}
	r := New(&fakeSource{err: fmt.Errorf("connection refused")}, &fakeCache{cached: cached}, nil)

	assert.Equal(t, cached, r.Fetch(context.Background()))
}

func TestFetchErrorWithoutCacheFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	r := New(&fakeSource{err: fmt.Errorf("boom")}, &fakeCache{}, nil)
	assert.Equal(t, DefaultAgents(), r.Fetch(context.Background()))
}

func TestFetchMalformedRosterFallsBack(t *testing.T) {
	t.Parallel()

	cases := map[string][]types.Agent{
		"empty":        {},
		"missing id":   {{Name: "anon"}},
		"duplicate id": {{ID: "a"}, {ID: "a"}},
	}
	for name, roster := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cache := &fakeCache{}
			r := New(&fakeSource{agents: roster}, cache, nil)
			assert.Equal(t, DefaultAgents(), r.Fetch(context.Background()))
			assert.Nil(t, cache.saved, "malformed roster must not be cached")
		})
	}
}

func TestInitialPrefersCache(t *testing.T) {
	t.Parallel()

	cached := []types.Agent{{ID: "cached_agent"}}
	r := New(nil, &fakeCache{cached: cached}, nil)
	assert.Equal(t, cached, r.Initial())

	// A malformed cache is ignored.
	r = New(nil, &fakeCache{cached: []types.Agent{{ID: ""}}}, nil)
	assert.Equal(t, DefaultAgents(), r.Initial())
}

func TestFetchWithoutSource(t *testing.T) {
	t.Parallel()

	r := New(nil, nil, nil)
	assert.Equal(t, DefaultAgents(), r.Fetch(context.Background()))
}

func TestEnabledFilter(t *testing.T) {
	t.Parallel()

	agents := []types.Agent{
		{ID: "a", IsEnabled: true},
		{ID: "b"},
		{ID: "c", IsEnabled: true},
	}
	enabled := Enabled(agents)
	require.Len(t, enabled, 2)
	assert.Equal(t, "a", enabled[0].ID)
	assert.Equal(t, "c", enabled[1].ID)
}
