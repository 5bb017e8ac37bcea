package orchestrate

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hive/internal/types"
)

func testTasks(n int) []types.AgentTask {
	names := []string{"Research Agent", "LLM Agent", "Graph Agent", "API Agent", "Calculation Agent", "File Agent"}
	tools := []string{"web_search", "gpt5_search", "graphrag_search", "api_request", "calculator", "file_reader"}
	tasks := make([]types.AgentTask, 0, n)
	for i := 0; i < n; i++ {
		tasks = append(tasks, types.AgentTask{
			ID:        strings.ToLower(strings.ReplaceAll(names[i%len(names)], " ", "-")),
			AgentID:   strings.ToLower(names[i%len(names)]),
			AgentName: names[i%len(names)],
			Task:      "do something",
			Tool:      tools[i%len(tools)],
			Status:    types.TaskPending,
			Input:     "test query",
		})
	}
	// IDs must be unique even when agent names repeat.
	for i := range tasks {
		tasks[i].ID = tasks[i].ID + "-" + string(rune('a'+i))
	}
	return tasks
}

func newTestScheduler(t *testing.T, cfg Config) *Scheduler {
	t.Helper()
	if cfg.TimeScale == 0 {
		cfg.TimeScale = 0.001 // 5-10s task delays become 5-10ms
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	return New(cfg, nil)
}

func TestRunCompletesAllTasks(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t, Config{})
	response, final, err := s.Run(context.Background(), "test query", testTasks(5), nil)
	require.NoError(t, err)
	require.Len(t, final, 5)

	for _, task := range final {
		assert.Equal(t, types.TaskCompleted, task.Status)
		assert.NotEmpty(t, task.Result)
		require.NotNil(t, task.StartTime)
		require.NotNil(t, task.EndTime)
		assert.GreaterOrEqual(t, *task.EndTime, *task.StartTime)
		require.NotNil(t, task.Progress)
		assert.Equal(t, 100, *task.Progress)
	}

	assert.Contains(t, response, `Here is what the agents found for "test query":`)
	for _, task := range final {
		assert.Contains(t, response, "- **"+task.AgentName+"**:")
	}
}

func TestRunBroadcastsOrderedTransitions(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var snapshots [][]types.AgentTask
	broadcast := func(tasks []types.AgentTask) {
		mu.Lock()
		snapshots = append(snapshots, tasks)
		mu.Unlock()
	}

	s := newTestScheduler(t, Config{})
	_, _, err := s.Run(context.Background(), "q", testTasks(4), broadcast)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, snapshots)

	// First snapshot is the all-pending assignment.
	for _, task := range snapshots[0] {
		assert.Equal(t, types.TaskPending, task.Status)
	}

	// Task ids are stable across every snapshot and no task leaves a
	// terminal state.
	ids := make(map[string]bool)
	for _, task := range snapshots[0] {
		ids[task.ID] = true
	}
	terminal := make(map[string]types.TaskStatus)
	for _, snapshot := range snapshots {
		require.Len(t, snapshot, len(ids))
		for _, task := range snapshot {
			assert.True(t, ids[task.ID], "unknown task id %s appeared mid-run", task.ID)
			if prev, done := terminal[task.ID]; done {
				assert.Equal(t, prev, task.Status, "task %s left terminal state", task.ID)
			} else if task.Status.Terminal() {
				terminal[task.ID] = task.Status
			}
		}
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	maxRunning := 0
	broadcast := func(tasks []types.AgentTask) {
		running := 0
		for _, task := range tasks {
			if task.Status == types.TaskRunning {
				running++
			}
		}
		mu.Lock()
		if running > maxRunning {
			maxRunning = running
		}
		mu.Unlock()
	}

	s := newTestScheduler(t, Config{Concurrency: 3})
	_, _, err := s.Run(context.Background(), "q", testTasks(6), broadcast)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, maxRunning, 3, "more than three tasks ran simultaneously")
	assert.Greater(t, maxRunning, 0)
}

func TestRunFailureIsolation(t *testing.T) {
	t.Parallel()

	// Force every task to fail; siblings still resolve and the synthesis
	// falls back to the no-information message.
	s := newTestScheduler(t, Config{FailureRate: 1.0})
	response, final, err := s.Run(context.Background(), "q", testTasks(4), nil)
	require.NoError(t, err, "task failures are not run failures")

	for _, task := range final {
		assert.Equal(t, types.TaskFailed, task.Status)
		assert.NotEmpty(t, task.Error)
		require.NotNil(t, task.EndTime)
	}
	assert.Equal(t, "I couldn't gather information for your request. Please try rephrasing your question.", response)
}

func TestRunPartialFailureStillSynthesizes(t *testing.T) {
	t.Parallel()

	// With a 50% failure rate over enough tasks, a fixed seed gives a mix.
	s := newTestScheduler(t, Config{FailureRate: 0.5, Seed: 7})
	response, final, err := s.Run(context.Background(), "q", testTasks(6), nil)
	require.NoError(t, err)

	completed, failed := 0, 0
	for _, task := range final {
		switch task.Status {
		case types.TaskCompleted:
			completed++
			assert.NotEmpty(t, task.Result)
		case types.TaskFailed:
			failed++
		default:
			t.Fatalf("task %s ended non-terminal: %s", task.ID, task.Status)
		}
	}
	if completed > 0 {
		assert.Contains(t, response, "Here is what the agents found")
		// Failed agents never contribute bullets.
		assert.Equal(t, completed, strings.Count(response, "- **"))
	}
}

func TestRunCancellationFailsUnresolvedTasks(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestScheduler(t, Config{})
	response, final, err := s.Run(ctx, "q", testTasks(3), nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, response)
	for _, task := range final {
		assert.Equal(t, types.TaskFailed, task.Status)
		assert.NotEmpty(t, task.Error)
	}
}

func TestRunEmptyTaskList(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t, Config{})
	response, final, err := s.Run(context.Background(), "q", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, final)
	assert.Equal(t, "I couldn't gather information for your request. Please try rephrasing your question.", response)
}

func TestRunDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	tasks := testTasks(2)
	s := newTestScheduler(t, Config{})
	_, _, err := s.Run(context.Background(), "q", tasks, nil)
	require.NoError(t, err)

	for _, task := range tasks {
		assert.Equal(t, types.TaskPending, task.Status, "caller's slice must stay untouched")
		assert.Nil(t, task.StartTime)
	}
}

func TestCannedResultMentionsQueryByKind(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t, Config{})
	cases := map[string]string{
		"web_search":      "web results",
		"graphrag_search": "knowledge graph",
		"api_request":     "external services",
		"calculator":      "derived figures",
		"file_reader":     "documents",
		"mystery":         "Gathered findings",
	}
	for tool, want := range cases {
		result := s.cannedResult(types.AgentTask{Tool: tool, Input: "the query"})
		assert.Contains(t, result, want, "tool %s", tool)
		assert.Contains(t, result, `"the query"`)
	}
}

func TestScaleNeverReturnsZero(t *testing.T) {
	t.Parallel()

	s := New(Config{TimeScale: 0.0000001}, nil)
	assert.Equal(t, time.Millisecond, s.scale(time.Microsecond), "sub-nanosecond scales clamp to 1ms")
	assert.Greater(t, s.scale(time.Hour), time.Duration(0))
}
