package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"hive/internal/types"
)

var (
	statusPending   = color.New(color.FgYellow).SprintFunc()
	statusRunning   = color.New(color.FgCyan).SprintFunc()
	statusCompleted = color.New(color.FgGreen).SprintFunc()
	statusFailed    = color.New(color.FgRed).SprintFunc()
)

// taskBoard renders the live task list during a run. On a TTY the board is
// redrawn in place after every snapshot; otherwise only status transitions
// are printed so piped output stays readable.
type taskBoard struct {
	out io.Writer
	tty bool

	mu        sync.Mutex
	lastLines int
	lastState map[string]types.TaskStatus
}

func newTaskBoard(out io.Writer, tty bool) *taskBoard {
	return &taskBoard{
		out:       out,
		tty:       tty,
		lastState: make(map[string]types.TaskStatus),
	}
}

// Update redraws the board from a task snapshot.
func (b *taskBoard) Update(tasks []types.AgentTask) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.tty {
		b.printTransitions(tasks)
		return
	}

	if b.lastLines > 0 {
		fmt.Fprintf(b.out, "\x1b[%dA", b.lastLines)
	}
	lines := make([]string, 0, len(tasks))
	for _, task := range tasks {
		lines = append(lines, b.renderLine(task))
	}
	for _, line := range lines {
		fmt.Fprintf(b.out, "\x1b[2K%s\n", line)
	}
	b.lastLines = len(lines)
}

// Finish leaves the final board on screen and resets for the next run.
func (b *taskBoard) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastLines = 0
	b.lastState = make(map[string]types.TaskStatus)
}

func (b *taskBoard) renderLine(task types.AgentTask) string {
	name := task.AgentName
	if task.AgentColor != "" {
		name = lipgloss.NewStyle().Foreground(lipgloss.Color(task.AgentColor)).Bold(true).Render(name)
	}
	return fmt.Sprintf("  %s %s %s %s", statusGlyph(task.Status), name, truncate(task.Task, 60), progressSuffix(task))
}

func (b *taskBoard) printTransitions(tasks []types.AgentTask) {
	for _, task := range tasks {
		previous, seen := b.lastState[task.ID]
		if seen && previous == task.Status {
			continue
		}
		b.lastState[task.ID] = task.Status
		fmt.Fprintf(b.out, "  %s %s: %s\n", statusGlyph(task.Status), task.AgentName, truncate(task.Task, 60))
	}
}

func statusGlyph(status types.TaskStatus) string {
	switch status {
	case types.TaskRunning:
		return statusRunning("●")
	case types.TaskCompleted:
		return statusCompleted("✔")
	case types.TaskFailed:
		return statusFailed("✘")
	default:
		return statusPending("○")
	}
}

func progressSuffix(task types.AgentTask) string {
	if task.Progress == nil || task.Status.Terminal() {
		return ""
	}
	return fmt.Sprintf("%d%%", *task.Progress)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}
