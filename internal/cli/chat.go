// Package cli implements the interactive chat loop behind `deckflow chat`.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/aretw0/deckflow"
	"github.com/aretw0/deckflow/internal/presentation/tui"
	"github.com/aretw0/deckflow/pkg/domain"
	"golang.org/x/term"
)

// ErrQuit is returned by a command that ends the session.
var ErrQuit = errors.New("quit")

// Assistant is what the chat loop drives.
type Assistant interface {
	Project(ctx context.Context, id string) (domain.Project, error)
	SendMessage(ctx context.Context, projectID, content string) (*deckflow.Reply, error)
	Generate(ctx context.Context, projectID string) (*deckflow.Generation, error)
	SetPhase(ctx context.Context, projectID string, phase domain.Phase) (domain.Project, error)
	History(ctx context.Context, projectID string, limit, offset int) (deckflow.HistoryPage, error)
	Plan(ctx context.Context, projectID string) (*domain.PresentationPlan, error)
	Slides(ctx context.Context, projectID string) ([]domain.Slide, error)
}

const helpText = `Commands:
  /plan            show the presentation plan
  /slides          show the generated slides
  /generate        generate slides from the plan
  /phase <name>    move the project to another phase
  /history [n]     show the last n messages (default 10)
  /help            show this help
  /quit            leave
Anything else is sent to the assistant.`

// Chat is a line-oriented session on one project.
type Chat struct {
	assistant Assistant
	in        io.Reader
	out       io.Writer
	render    tui.Renderer
	prompt    string
	logger    *slog.Logger
}

// ChatOption configures a Chat.
type ChatOption func(*Chat)

// WithRenderer formats assistant output, e.g. with tui.NewRenderer.
func WithRenderer(r tui.Renderer) ChatOption {
	return func(c *Chat) {
		if r != nil {
			c.render = r
		}
	}
}

// WithPrompt sets the input prompt. An empty prompt suits piped input.
func WithPrompt(p string) ChatOption {
	return func(c *Chat) { c.prompt = p }
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) ChatOption {
	return func(c *Chat) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewChat creates a chat reading from in and writing to out.
func NewChat(a Assistant, in io.Reader, out io.Writer, opts ...ChatOption) *Chat {
	c := &Chat{
		assistant: a,
		in:        in,
		out:       out,
		render:    tui.PlainRenderer,
		prompt:    "> ",
		logger:    slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsInteractive reports whether f is a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the width of f, or fallback when it is not a terminal.
func TerminalWidth(f *os.File, fallback int) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}

// Run loops until input ends, /quit, or ctx is cancelled.
// Errors from single turns are printed and the session continues.
func (c *Chat) Run(ctx context.Context, projectID string) error {
	p, err := c.assistant.Project(ctx, projectID)
	if err != nil {
		return err
	}
	c.system("Project %q (%s), phase %s. Type /help for commands.", p.Title, p.ID, p.Phase)

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
		close(lines)
	}()

	for {
		fmt.Fprint(c.out, c.prompt)
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-readErr
			}
			err := c.Handle(ctx, projectID, strings.TrimSpace(line))
			if errors.Is(err, ErrQuit) {
				return nil
			}
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Warn("chat turn failed", "project_id", projectID, "err", err)
				c.system("Error: %v", err)
			}
		}
	}
}

// Handle processes one input line.
func (c *Chat) Handle(ctx context.Context, projectID, line string) error {
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		reply, err := c.assistant.SendMessage(ctx, projectID, line)
		if err != nil {
			return err
		}
		if len(reply.Replies) == 0 {
			c.system("The project is in the %s phase; nothing to add.", reply.Phase)
			return nil
		}
		for _, m := range reply.Replies {
			c.print(m.Content)
		}
		return nil
	}

	cmd, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "quit", "exit", "q":
		return ErrQuit
	case "help", "?":
		fmt.Fprintln(c.out, helpText)
	case "plan":
		plan, err := c.assistant.Plan(ctx, projectID)
		if errors.Is(err, domain.ErrNotFound) {
			plan, err = nil, nil
		}
		if err != nil {
			return err
		}
		c.print(tui.PlanMarkdown(plan))
	case "slides":
		slides, err := c.assistant.Slides(ctx, projectID)
		if err != nil {
			return err
		}
		c.print(tui.SlidesMarkdown(slides))
	case "generate":
		c.system("Generating slides...")
		out, err := c.assistant.Generate(ctx, projectID)
		if err != nil {
			return err
		}
		c.print(tui.SlidesMarkdown(out.Slides))
		c.system("Phase is now %s.", out.Phase)
	case "phase":
		phase, err := domain.ParsePhase(arg)
		if err != nil {
			return err
		}
		p, err := c.assistant.SetPhase(ctx, projectID, phase)
		if err != nil {
			return err
		}
		c.system("Phase is now %s.", p.Phase)
	case "history":
		n := 10
		if arg != "" {
			v, err := strconv.Atoi(arg)
			if err != nil || v <= 0 {
				return fmt.Errorf("history size must be a positive number, got %q", arg)
			}
			n = v
		}
		return c.history(ctx, projectID, n)
	default:
		return fmt.Errorf("unknown command /%s (try /help)", cmd)
	}
	return nil
}

func (c *Chat) history(ctx context.Context, projectID string, n int) error {
	page, err := c.assistant.History(ctx, projectID, 0, 0)
	if err != nil {
		return err
	}
	msgs := page.Messages
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	for _, m := range msgs {
		fmt.Fprintf(c.out, "[%s] %s\n", m.Role, m.Content)
	}
	return nil
}

func (c *Chat) print(markdown string) {
	out, err := c.render(markdown)
	if err != nil {
		c.logger.Debug("render failed, printing raw", "err", err)
		out = markdown
	}
	fmt.Fprintln(c.out, strings.TrimRight(out, "\n"))
}

func (c *Chat) system(format string, args ...any) {
	fmt.Fprintf(c.out, ">>> %s\n", fmt.Sprintf(format, args...))
}
