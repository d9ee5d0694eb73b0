// Package console runs the interactive terminal front-end: a line prompt
// under a fixed-height activity panel and a status bar.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/iXty9/relaybot/internal/activity"
	"github.com/iXty9/relaybot/internal/dispatch"
)

const (
	Prompt        = `Enter a command or message (type "/help" for options): `
	ConfirmPrompt = "Are you sure you want to exit? (y/n) "

	// Lines reserved below the activity panel: status bar, prompt and slack.
	reservedLines = 3
	clearScreen   = "\033[H\033[2J"
)

var (
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
	composeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// Handler processes one input line.
type Handler interface {
	Handle(ctx context.Context, line string)
	Session() dispatch.SessionState
}

// Config wires the console to its terminal. Zero values select stdin, stdout
// and the real terminal size.
type Config struct {
	In  io.Reader
	Out io.Writer
	// Size returns the terminal width and height.
	Size func() (int, int)
	// Status returns the bot user name and presence for the status bar.
	Status func() (user, presence string)
}

// Console is the REPL loop.
type Console struct {
	cfg     Config
	journal *activity.Journal
	handler Handler
	lines   chan string
}

// New creates a console. Input is read lazily once Run starts.
func New(cfg Config, journal *activity.Journal, handler Handler) *Console {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Size == nil {
		cfg.Size = terminalSize
	}
	if cfg.Status == nil {
		cfg.Status = func() (string, string) { return "Not logged in", "offline" }
	}
	return &Console{cfg: cfg, journal: journal, handler: handler}
}

// Run reads lines until the user confirms an exit, input ends or ctx is
// cancelled. Each value on interrupts asks for confirmation first. Run returns
// nil for a confirmed exit or end of input.
func (c *Console) Run(ctx context.Context, interrupts <-chan os.Signal) error {
	c.lines = make(chan string)
	go c.readLines()

	c.redraw()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-c.lines:
			if !ok {
				return nil
			}
			c.handler.Handle(ctx, line)
			c.redraw()
		case <-interrupts:
			exit, err := c.confirmExit(ctx, interrupts)
			if err != nil || exit {
				return err
			}
			c.redraw()
		}
	}
}

// confirmExit is its own suspension point: the answer line is consumed here
// and never reaches the dispatcher. A second interrupt counts as yes.
func (c *Console) confirmExit(ctx context.Context, interrupts <-chan os.Signal) (bool, error) {
	fmt.Fprint(c.cfg.Out, "\n"+color.YellowString(ConfirmPrompt))
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-interrupts:
		return true, nil
	case answer, ok := <-c.lines:
		if !ok {
			return true, nil
		}
		return IsYes(answer), nil
	}
}

// IsYes reports whether answer confirms, i.e. "y" or "yes" in any case.
func IsYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func (c *Console) readLines() {
	defer close(c.lines)
	sc := bufio.NewScanner(c.cfg.In)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		c.lines <- sc.Text()
	}
}

func (c *Console) redraw() {
	width, height := c.cfg.Size()
	user, presence := c.cfg.Status()
	session := c.handler.Session()

	var b strings.Builder
	b.WriteString(clearScreen)
	for _, l := range c.journal.Display().Render(height - reservedLines) {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteString(barStyle.Render(StatusBar(user, presence, session.Target(), width)))
	b.WriteByte('\n')
	if hint := ComposeHint(session); hint != "" {
		b.WriteString(composeStyle.Render(hint))
		b.WriteByte('\n')
	}
	b.WriteString(Prompt)
	fmt.Fprint(c.cfg.Out, b.String())
}

// StatusBar renders "--[user | presence | target]----" cut to width.
func StatusBar(user, presence, target string, width int) string {
	content := user + " | " + presence
	if target != "" {
		content += " | " + target
	}
	bar := "--[" + content + "]"
	if pad := width - lipgloss.Width(bar) - 2; pad > 0 {
		bar += strings.Repeat("-", pad)
	}
	bar += "--"
	if width > 0 && lipgloss.Width(bar) > width {
		bar = string([]rune(bar)[:width])
	}
	return bar
}

// ComposeHint summarizes pending composer text or an open selection.
func ComposeHint(s dispatch.SessionState) string {
	switch {
	case s.AwaitingSelection():
		return fmt.Sprintf("Select 1-%d:", len(s.PendingSelection))
	case s.Composing != "":
		n := strings.Count(s.Composing, "\n") + 1
		if n == 1 {
			return "Composing 1 line. /send to send, /clear to discard."
		}
		return fmt.Sprintf("Composing %d lines. /send to send, /clear to discard.", n)
	}
	return ""
}

func terminalSize() (int, int) {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 || h <= 0 {
		return 80, 24
	}
	return w, h
}
