package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"golang.org/x/term"

	"hive/internal/chat"
	"hive/internal/config"
	"hive/internal/types"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	dimColor    = color.New(color.Faint)
	errColor    = color.New(color.FgRed)
	okColor     = color.New(color.FgGreen)
)

// chatCLI is the interactive terminal frontend over a chat controller.
type chatCLI struct {
	controller *chat.Controller
	cfg        *config.Config
	board      *taskBoard
	renderer   *renderer
	rl         *readline.Instance
	out        io.Writer
}

func runChat(ctx context.Context, cfg *config.Config) error {
	controller := buildController(cfg)
	defer controller.Close()

	tty := term.IsTerminal(int(os.Stdout.Fd()))
	cli := &chatCLI{
		controller: controller,
		cfg:        cfg,
		board:      newTaskBoard(os.Stdout, tty),
		renderer:   newRenderer(os.Stdout),
		out:        os.Stdout,
	}
	controller.SetObserver(func(sessionID string, tasks []types.AgentTask) {
		if sessionID == controller.Store().CurrentSessionID() {
			cli.board.Update(tasks)
		}
	})
	controller.SetTitleObserver(func(sessionID, title string) {
		if sessionID == controller.Store().CurrentSessionID() {
			dimColor.Fprintf(cli.out, "session renamed: %s\n", title)
		}
	})

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          headerColor.Sprint("you> "),
		HistoryFile:     historyFile(cfg.StateDir),
		InterruptPrompt: "^C",
		EOFPrompt:       "/quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()
	cli.rl = rl

	cli.printWelcome(ctx)
	return cli.loop(ctx)
}

func historyFile(stateDir string) string {
	if stateDir == "" {
		return ""
	}
	return stateDir + "/history"
}

func (c *chatCLI) printWelcome(ctx context.Context) {
	headerColor.Fprintf(c.out, "hive %s\n", Version)
	agents := c.controller.LoadAgents(ctx)
	if session, ok := c.controller.Store().Session(c.controller.Store().CurrentSessionID()); ok {
		dimColor.Fprintf(c.out, "session: %s · %d agents · /help for commands\n\n", session.Title, len(agents))
	} else {
		dimColor.Fprintf(c.out, "%d agents · /help for commands\n\n", len(agents))
	}
}

func (c *chatCLI) loop(ctx context.Context) error {
	for {
		line, err := c.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "/") {
			if quit := c.dispatch(ctx, text); quit {
				return nil
			}
			continue
		}
		c.submit(ctx, text)
	}
}

// dispatch handles slash commands; returns true to exit the loop.
func (c *chatCLI) dispatch(ctx context.Context, text string) bool {
	cmd, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		c.printHelp()
	case "/new":
		id := c.controller.NewSession(rest)
		session, _ := c.controller.Store().Session(id)
		okColor.Fprintf(c.out, "created session: %s\n", session.Title)
	case "/sessions":
		c.pickSession()
	case "/rename":
		if rest == "" {
			errColor.Fprintln(c.out, "usage: /rename <title>")
			break
		}
		current := c.controller.Store().CurrentSessionID()
		if c.controller.Store().RenameSession(current, rest) {
			okColor.Fprintf(c.out, "renamed session: %s\n", rest)
		}
	case "/delete":
		c.deleteCurrentSession()
	case "/agents":
		c.printAgents()
	case "/enable", "/disable":
		if rest == "" {
			errColor.Fprintf(c.out, "usage: %s <agent-id>\n", cmd)
			break
		}
		enabled := cmd == "/enable"
		if !c.controller.SetAgentEnabled(rest, enabled) {
			errColor.Fprintf(c.out, "unknown agent: %s\n", rest)
			break
		}
		okColor.Fprintf(c.out, "%s %sd\n", rest, strings.TrimPrefix(cmd, "/"))
	case "/multi":
		c.toggleMultiAgent(rest)
	default:
		errColor.Fprintf(c.out, "unknown command: %s (try /help)\n", cmd)
	}
	return false
}

func (c *chatCLI) printHelp() {
	fmt.Fprint(c.out, `commands:
  /new [title]     create and switch to a new session
  /sessions        pick a session interactively
  /rename <title>  rename the current session
  /delete          delete the current session
  /agents          list agents and their state
  /enable <id>     enable an agent
  /disable <id>    disable an agent
  /multi [on|off]  toggle multi-agent mode
  /quit            exit
`)
}

func (c *chatCLI) pickSession() {
	sessions := c.controller.Store().Sessions()
	if len(sessions) == 0 {
		dimColor.Fprintln(c.out, "no sessions yet")
		return
	}
	items := make([]string, 0, len(sessions))
	for _, s := range sessions {
		label := fmt.Sprintf("%s (%d messages)", s.Title, len(s.Messages))
		if s.ID == c.controller.Store().CurrentSessionID() {
			label += " *"
		}
		items = append(items, label)
	}

	picker := promptui.Select{
		Label: "Switch session",
		Items: items,
		Size:  10,
	}
	index, _, err := picker.Run()
	if err != nil {
		if !errors.Is(err, promptui.ErrInterrupt) {
			errColor.Fprintf(c.out, "session picker: %v\n", err)
		}
		return
	}
	picked := sessions[index]
	if c.controller.SwitchSession(picked.ID) {
		okColor.Fprintf(c.out, "switched to: %s\n", picked.Title)
	}
}

func (c *chatCLI) deleteCurrentSession() {
	current := c.controller.Store().CurrentSessionID()
	session, ok := c.controller.Store().Session(current)
	if !ok {
		dimColor.Fprintln(c.out, "no active session")
		return
	}
	c.controller.DeleteSession(current)
	okColor.Fprintf(c.out, "deleted session: %s\n", session.Title)
	if next, ok := c.controller.Store().Session(c.controller.Store().CurrentSessionID()); ok {
		dimColor.Fprintf(c.out, "now on: %s\n", next.Title)
	}
}

func (c *chatCLI) printAgents() {
	for _, agent := range c.controller.Agents() {
		state := okColor.Sprint("enabled")
		if !agent.IsEnabled {
			state = dimColor.Sprint("disabled")
		}
		fmt.Fprintf(c.out, "  %-16s %-10s %s\n", agent.ID, state, agent.Description)
	}
}

func (c *chatCLI) toggleMultiAgent(rest string) {
	store := c.controller.Store()
	switch rest {
	case "on":
		store.SetMultiAgentMode(true)
	case "off":
		store.SetMultiAgentMode(false)
	case "":
		store.SetMultiAgentMode(!store.MultiAgentMode())
	default:
		errColor.Fprintln(c.out, "usage: /multi [on|off]")
		return
	}
	state := "off"
	if store.MultiAgentMode() {
		state = "on"
	}
	okColor.Fprintf(c.out, "multi-agent mode %s\n", state)
}

// submit runs one query end to end: task board while the run is in flight,
// typewriter reveal for simulated responses, rendered markdown for live ones.
func (c *chatCLI) submit(ctx context.Context, text string) {
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := c.controller.Submit(runCtx, text)
	c.board.Finish()
	if err != nil {
		if errors.Is(err, chat.ErrSuperseded) {
			dimColor.Fprintln(c.out, "(query superseded, result discarded)")
			return
		}
		errColor.Fprintf(c.out, "error: %v\n", err)
		return
	}

	fmt.Fprintln(c.out)
	if result.Live {
		result.Persist()
		rendered := c.controller.Pipeline().Process(result.Response)
		c.renderer.Markdown(rendered.Text)
		c.renderer.Charts(rendered.Charts)
	} else {
		c.reveal(runCtx, result)
	}
	if len(result.Src) > 0 {
		dimColor.Fprintf(c.out, "sources: %s\n", strings.Join(result.Src, ", "))
	}
	fmt.Fprintln(c.out)
}

// reveal types the response out incrementally. Ctrl-C skips to the full
// text; either way the message is persisted exactly once.
func (c *chatCLI) reveal(ctx context.Context, result *chat.Result) {
	var mu sync.Mutex
	printed := 0
	tw := result.NewTypewriter(c.cfg.TypingInterval, func(partial string) {
		mu.Lock()
		defer mu.Unlock()
		runes := []rune(partial)
		if len(runes) > printed {
			fmt.Fprint(c.out, string(runes[printed:]))
			printed = len(runes)
		}
	})

	skip := make(chan os.Signal, 1)
	signal.Notify(skip, os.Interrupt)
	defer signal.Stop(skip)

	go tw.Start(ctx)
	select {
	case <-tw.Done():
	case <-skip:
		tw.Skip()
		<-tw.Done()
	}

	// Flush whatever the animation did not get to print.
	mu.Lock()
	full := []rune(result.Message().Message)
	if len(full) > printed {
		fmt.Fprint(c.out, string(full[printed:]))
	}
	mu.Unlock()
	fmt.Fprintln(c.out)

	rendered := c.controller.Pipeline().Process(result.Response)
	c.renderer.Charts(rendered.Charts)
}
