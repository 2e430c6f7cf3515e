package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tether/internal/agent"
	"tether/internal/api"
	"tether/internal/config"
	"tether/internal/orchestrator"
	"tether/internal/protocol"
	"tether/pkg/logging"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// ChatOptions configures an interactive chat run.
type ChatOptions struct {
	Config       config.Config
	Provider     string
	SystemPrompt string
	Verbose      bool
	NoColor      bool
}

// Chat is the interactive session REPL. One chat drives one session; the
// orchestrator delivers streamed output through callbacks while readline
// owns the input side.
type Chat struct {
	opts      ChatOptions
	manager   *orchestrator.Manager
	sessionID string
	rl        *readline.Instance

	mu        sync.Mutex
	spin      *spinner.Spinner
	streaming bool

	turnDone chan error
}

// RunChat starts the manager, opens a session, and runs the REPL until the
// user exits or the context is cancelled.
func RunChat(ctx context.Context, opts ChatOptions) error {
	if opts.NoColor {
		text.DisableColors()
	}

	c := &Chat{
		opts:     opts,
		turnDone: make(chan error, 1),
	}

	// Log lines go through the relay so they print as whole lines instead
	// of tearing streamed model output mid-delta.
	level := logging.LevelWarn
	if opts.Verbose {
		level = logging.LevelDebug
	}
	entries := logging.InitForRelay(level)
	defer logging.CloseRelayChannel()
	go func() {
		for entry := range entries {
			fmt.Fprintf(os.Stderr, "%s [%s] %s\n",
				text.Faint.Sprint(entry.Level), entry.Subsystem, entry.Message)
		}
	}()

	c.manager = orchestrator.NewManager(managerConfig(opts), c.callbacks())
	defer c.manager.Shutdown()

	sessionID, err := c.manager.Open(ctx, opts.Provider)
	if err != nil {
		return err
	}
	c.sessionID = sessionID

	// While a turn runs the terminal is outside readline's raw mode, so
	// Ctrl-C arrives here as SIGINT and cancels the turn instead of the
	// process. With no turn active it ends the REPL.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-interrupts:
				if err := c.manager.CancelTurn(c.sessionID); err != nil {
					cancel()
				}
			}
		}
	}()

	if path := opts.Config.SystemPromptPath; path != "" {
		watcher, err := config.WatchPrompt(path, c.manager.BroadcastSystemPrompt)
		if err != nil {
			logging.Warn("Chat", "System prompt watching disabled: %v", err)
		} else {
			defer watcher.Close()
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          text.FgGreen.Sprint("> "),
		HistoryFile:     filepath.Join(os.TempDir(), ".tether_chat_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("/tools"),
			readline.PcItem("/history"),
			readline.PcItem("/status"),
			readline.PcItem("/cancel"),
			readline.PcItem("/help"),
			readline.PcItem("/quit"),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()
	c.rl = rl

	fmt.Printf("Connected to %s (provider %s). Type /help for commands.\n\n",
		opts.Config.Server.Endpoint, opts.Provider)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				continue
			}
		} else if err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "/quit" || input == "/exit" {
			return nil
		}
		if strings.HasPrefix(input, "/") {
			c.runCommand(ctx, input)
			continue
		}

		c.runTurn(ctx, input)
	}
}

func managerConfig(opts ChatOptions) orchestrator.Config {
	cfg := opts.Config
	managerCfg := orchestrator.Config{
		Endpoint:            cfg.Server.Endpoint,
		Transport:           protocol.TransportType(cfg.Server.Transport),
		CallTimeout:         cfg.Server.CallTimeout,
		MaxAttempts:         cfg.Server.MaxAttempts,
		FanOutLimit:         cfg.Orchestration.FanOutLimit,
		AgentTimeout:        cfg.Orchestration.AgentTimeout,
		SamplingConcurrency: cfg.Orchestration.SamplingConcurrency,
		SamplingTimeout:     cfg.Orchestration.SamplingTimeout,
	}
	managerCfg.Providers = make(map[string]agent.Config, len(cfg.Providers))
	for name, p := range cfg.Providers {
		managerCfg.Providers[name] = agent.Config{
			Model:        p.Model,
			MaxTokens:    p.MaxTokens,
			SystemPrompt: opts.SystemPrompt,
		}
	}
	return managerCfg
}

// runTurn sends the message and blocks the prompt until the turn finishes.
// Tool rounds in between keep the spinner alive.
func (c *Chat) runTurn(ctx context.Context, input string) {
	if err := c.manager.SendUserMessage(c.sessionID, input); err != nil {
		fmt.Println(text.FgRed.Sprintf("error: %v", err))
		return
	}
	c.startSpinner(" thinking...")

	select {
	case err := <-c.turnDone:
		c.stopSpinner()
		if errors.Is(err, orchestrator.ErrTurnCancelled) {
			fmt.Println(text.FgYellow.Sprint("turn cancelled"))
		} else if err != nil {
			fmt.Println(text.FgRed.Sprintf("turn failed: %v", err))
		}
		fmt.Println()
	case <-ctx.Done():
		c.stopSpinner()
	}
}

func (c *Chat) runCommand(ctx context.Context, input string) {
	switch input {
	case "/tools":
		c.printCapabilities(ctx)
	case "/history":
		c.printHistory()
	case "/status":
		status, err := c.manager.Status(c.sessionID)
		if err != nil {
			fmt.Println(text.FgRed.Sprintf("error: %v", err))
			return
		}
		fmt.Printf("session %s: %s\n", c.sessionID, status)
	case "/cancel":
		if err := c.manager.CancelTurn(c.sessionID); err != nil {
			fmt.Println(text.FgYellow.Sprintf("%v", err))
		}
	case "/help":
		fmt.Println("/tools    list server capabilities")
		fmt.Println("/history  show the session transcript")
		fmt.Println("/status   show the session turn state")
		fmt.Println("/cancel   abort the active turn")
		fmt.Println("/quit     exit")
	default:
		fmt.Println(text.FgYellow.Sprintf("unknown command %s (try /help)", input))
	}
}

func (c *Chat) printCapabilities(ctx context.Context) {
	listCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	snap, err := c.manager.Capabilities(listCtx, c.sessionID)
	if err != nil {
		fmt.Println(text.FgRed.Sprintf("error: %v", err))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Kind", "Name", "Description"})
	for _, tool := range snap.Tools {
		t.AppendRow(table.Row{"tool", tool.Name, truncate(tool.Description, 60)})
	}
	for _, prompt := range snap.Prompts {
		t.AppendRow(table.Row{"prompt", prompt.Name, truncate(prompt.Description, 60)})
	}
	for _, resource := range snap.Resources {
		t.AppendRow(table.Row{"resource", resource.URI, truncate(resource.Description, 60)})
	}
	t.Render()
	fmt.Printf("capability revision: %d\n", snap.Revision)
}

func (c *Chat) printHistory() {
	history, err := c.manager.History(c.sessionID)
	if err != nil {
		fmt.Println(text.FgRed.Sprintf("error: %v", err))
		return
	}
	for _, msg := range history {
		label := string(msg.Role)
		switch msg.Role {
		case api.RoleUser:
			label = text.FgGreen.Sprint("user")
		case api.RoleAgent:
			label = text.FgCyan.Sprint("agent")
		case api.RoleTool:
			label = text.FgYellow.Sprint("tool")
		}
		fmt.Printf("[%s] %s\n", label, truncate(msg.Content, 200))
	}
}

func (c *Chat) callbacks() api.Callbacks {
	return api.Callbacks{
		OnThinking: func(sessionID, delta string) {
			c.stopSpinner()
			fmt.Print(text.Faint.Sprint(delta))
		},
		OnContent: func(sessionID, delta string) {
			c.stopSpinner()
			fmt.Print(delta)
		},
		OnToolCall: func(sessionID string, call api.ToolCallDescriptor) {
			c.stopSpinner()
			fmt.Println(text.FgYellow.Sprintf("\n-> %s", call.Name))
			c.startSpinner(fmt.Sprintf(" running %s...", call.Name))
		},
		OnToolResult: func(sessionID string, result api.ToolResult) {
			c.stopSpinner()
			status := text.FgGreen.Sprint("ok")
			if result.IsError {
				status = text.FgRed.Sprint("error")
			}
			fmt.Println(text.FgYellow.Sprintf("<- %s [%s]", result.Name, status))
			c.startSpinner(" thinking...")
		},
		OnArtifact: func(sessionID string, artifact api.Artifact) {
			c.stopSpinner()
			fmt.Println(text.FgMagenta.Sprintf("[artifact: %s %s, %d bytes]",
				artifact.MediaKind, artifact.MIMEType, artifact.Size))
		},
		OnCompletion: func(sessionID string, msg api.Message, err error) {
			select {
			case c.turnDone <- err:
			default:
			}
		},
	}
}

func (c *Chat) startSpinner(suffix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.spin != nil {
		c.spin.Stop()
	}
	c.spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	c.spin.Suffix = suffix
	c.spin.Start()
}

func (c *Chat) stopSpinner() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.spin != nil {
		c.spin.Stop()
		c.spin = nil
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
