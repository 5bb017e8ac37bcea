// Package orchestrate simulates multi-agent task execution when no backend
// is reachable. Tasks run in sequential batches with a hard concurrency
// bound of three, ticking synthetic progress while an artificial delay
// stands in for real work, and the batch results are synthesized into a
// single response paragraph.
package orchestrate

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"hive/internal/assign"
	"hive/internal/logging"
	"hive/internal/types"
)

// DefaultConcurrency is the fixed bound on simultaneously running tasks.
const DefaultConcurrency = 3

const (
	progressInterval = 800 * time.Millisecond
	progressCeiling  = 95
	minTaskDuration  = 5 * time.Second
	maxTaskDuration  = 10 * time.Second
)

// Broadcast receives a deep snapshot of the full task list after every
// state change. The snapshot's task ids are stable across the whole run.
type Broadcast func(tasks []types.AgentTask)

// Config tunes the scheduler. The zero value gives production behavior.
type Config struct {
	// Concurrency bounds simultaneously running tasks; <=0 means DefaultConcurrency.
	Concurrency int
	// TimeScale multiplies every simulated delay. Tests use a small value
	// to run in milliseconds; <=0 means 1.0 (real time).
	TimeScale float64
	// FailureRate in [0,1] injects random task failures. Default 0.
	FailureRate float64
	// Seed fixes the random source; 0 seeds from the clock.
	Seed int64
}

// Scheduler executes assigned tasks through the simulated state machine
// pending -> running -> (completed | failed).
type Scheduler struct {
	concurrency int
	timeScale   float64
	failureRate float64
	logger      logging.Logger
	metrics     *Metrics

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New constructs a scheduler.
func New(config Config, logger logging.Logger) *Scheduler {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	if config.TimeScale <= 0 {
		config.TimeScale = 1.0
	}
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Scheduler{
		concurrency: config.Concurrency,
		timeScale:   config.TimeScale,
		failureRate: config.FailureRate,
		logger:      logging.OrNop(logger),
		metrics:     defaultMetrics(),
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Run executes the assignment and returns the synthesized response along
// with the final task snapshots. Sibling failures never abort a batch;
// context cancellation fails the unresolved tasks and returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context, query string, tasks []types.AgentTask, broadcast Broadcast) (string, []types.AgentTask, error) {
	if broadcast == nil {
		broadcast = func([]types.AgentTask) {}
	}
	run := &runState{
		tasks:     types.CloneTasks(tasks),
		broadcast: broadcast,
	}
	run.notify()

	s.metrics.AddActive(len(run.tasks))
	defer s.metrics.AddActive(-len(run.tasks))

	for start := 0; start < len(run.tasks); start += s.concurrency {
		end := start + s.concurrency
		if end > len(run.tasks) {
			end = len(run.tasks)
		}

		batchStarted := time.Now()
		var g errgroup.Group
		g.SetLimit(s.concurrency)
		for i := start; i < end; i++ {
			g.Go(func() error {
				s.executeTask(ctx, run, i)
				return nil
			})
		}
		_ = g.Wait()
		s.metrics.ObserveBatchDuration(time.Since(batchStarted))

		if ctx.Err() != nil {
			run.failUnresolved(ctx.Err())
			return "", run.snapshot(), ctx.Err()
		}
	}

	final := run.snapshot()
	return s.synthesize(query, final), final, nil
}

// executeTask drives one task through running to a terminal state.
func (s *Scheduler) executeTask(ctx context.Context, run *runState, idx int) {
	now := time.Now().UnixMilli()
	run.mutate(idx, func(task *types.AgentTask) {
		task.Status = types.TaskRunning
		task.StartTime = &now
		progress := 0
		task.Progress = &progress
	})
	s.metrics.IncTask("running")

	stopTicker := make(chan struct{})
	var tickerDone sync.WaitGroup
	tickerDone.Add(1)
	go func() {
		defer tickerDone.Done()
		s.tickProgress(run, idx, stopTicker)
	}()

	duration := s.scale(minTaskDuration + time.Duration(s.randFloat()*float64(maxTaskDuration-minTaskDuration)))
	var execErr error
	select {
	case <-ctx.Done():
		execErr = ctx.Err()
	case <-time.After(duration):
		if s.failureRate > 0 && s.randFloat() < s.failureRate {
			execErr = fmt.Errorf("simulated tool failure")
		}
	}

	close(stopTicker)
	tickerDone.Wait()

	end := time.Now().UnixMilli()
	if execErr != nil {
		run.mutate(idx, func(task *types.AgentTask) {
			task.Status = types.TaskFailed
			task.EndTime = &end
			task.Error = execErr.Error()
		})
		s.metrics.IncTask("failed")
		s.logger.Warn("task %s failed: %v", run.taskID(idx), execErr)
		return
	}

	result := s.cannedResult(run.task(idx))
	run.mutate(idx, func(task *types.AgentTask) {
		task.Status = types.TaskCompleted
		task.EndTime = &end
		full := 100
		task.Progress = &full
		task.Result = result
	})
	s.metrics.IncTask("completed")
}

// tickProgress bumps the task's progress by a random increment in [5,20)
// every interval, clamped below the ceiling, until the task resolves.
func (s *Scheduler) tickProgress(run *runState, idx int, stop <-chan struct{}) {
	ticker := time.NewTicker(s.scale(progressInterval))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			increment := 5 + int(s.randFloat()*15)
			run.mutate(idx, func(task *types.AgentTask) {
				if task.Status != types.TaskRunning || task.Progress == nil {
					return
				}
				next := *task.Progress + increment
				if next > progressCeiling {
					next = progressCeiling
				}
				*task.Progress = next
			})
		}
	}
}

// cannedResult produces the deterministic-by-tool-kind synthetic result.
func (s *Scheduler) cannedResult(task types.AgentTask) string {
	n := 3 + int(s.randFloat()*9)
	query := task.Input
	if query == "" {
		query = task.Task
	}
	switch assign.ToolKind(task.Tool) {
	case assign.KindWeb:
		return fmt.Sprintf("Found %d web results for %q", n, query)
	case assign.KindDatabase:
		return fmt.Sprintf("Retrieved %d related nodes from the knowledge graph for %q", n, query)
	case assign.KindAPI:
		return fmt.Sprintf("Collected %d records from external services for %q", n, query)
	case assign.KindCalculation:
		return fmt.Sprintf("Computed %d derived figures for %q", n, query)
	case assign.KindFile:
		return fmt.Sprintf("Extracted findings from %d documents for %q", n, query)
	default:
		return fmt.Sprintf("Gathered findings for %q", query)
	}
}

// synthesize concatenates the successful results into a templated summary,
// or returns the canned no-information message when nothing succeeded.
func (s *Scheduler) synthesize(query string, tasks []types.AgentTask) string {
	var results []string
	for _, task := range tasks {
		if task.Status == types.TaskCompleted && task.Result != "" {
			results = append(results, fmt.Sprintf("- **%s**: %s", task.AgentName, task.Result))
		}
	}
	if len(results) == 0 {
		return "I couldn't gather information for your request. Please try rephrasing your question."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here is what the agents found for %q:\n\n", query)
	b.WriteString(strings.Join(results, "\n"))
	b.WriteString("\n\nLet me know if you want me to dig deeper into any of these.")
	return b.String()
}

func (s *Scheduler) scale(d time.Duration) time.Duration {
	scaled := time.Duration(float64(d) * s.timeScale)
	if scaled <= 0 {
		scaled = time.Millisecond
	}
	return scaled
}

func (s *Scheduler) randFloat() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64()
}

// runState owns the mutable task list for one run. Every mutation broadcasts
// a deep snapshot under the lock, so observers see each task's transitions
// in order even though tasks in the same batch interleave.
type runState struct {
	mu        sync.Mutex
	tasks     []types.AgentTask
	broadcast Broadcast
}

func (r *runState) mutate(idx int, fn func(task *types.AgentTask)) {
	r.mu.Lock()
	fn(&r.tasks[idx])
	snapshot := types.CloneTasks(r.tasks)
	r.mu.Unlock()
	r.broadcast(snapshot)
}

func (r *runState) notify() {
	r.mu.Lock()
	snapshot := types.CloneTasks(r.tasks)
	r.mu.Unlock()
	r.broadcast(snapshot)
}

func (r *runState) snapshot() []types.AgentTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	return types.CloneTasks(r.tasks)
}

func (r *runState) task(idx int) types.AgentTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasks[idx].Clone()
}

func (r *runState) taskID(idx int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasks[idx].ID
}

// failUnresolved marks every non-terminal task failed. Used when the run's
// context is cancelled mid-flight.
func (r *runState) failUnresolved(cause error) {
	now := time.Now().UnixMilli()
	r.mu.Lock()
	for i := range r.tasks {
		if !r.tasks[i].Status.Terminal() {
			r.tasks[i].Status = types.TaskFailed
			r.tasks[i].EndTime = &now
			r.tasks[i].Error = cause.Error()
		}
	}
	snapshot := types.CloneTasks(r.tasks)
	r.mu.Unlock()
	r.broadcast(snapshot)
}
