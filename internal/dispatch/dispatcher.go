// Package dispatch turns REPL lines and slash-command interactions into bot
// operations and reports the results in the activity log.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/iXty9/relaybot/internal/activity"
	"github.com/iXty9/relaybot/internal/chat"
)

// Prefix marks a command line.
const Prefix = "/"

// Control is the subset of the bot control surface the dispatcher drives.
type Control interface {
	ChangeStatus(ctx context.Context, status string) (string, error)
	SendMessage(ctx context.Context, text, channelID, threadID string) (string, error)
	ListChannels(ctx context.Context) ([]chat.ChannelDescriptor, error)
}

// ServerControl starts and stops the HTTP control server.
type ServerControl interface {
	Start() error
	Stop(ctx context.Context) error
}

// FactSource supplies random facts.
type FactSource interface {
	Random(ctx context.Context) (string, error)
}

// InputMode selects how non-command lines are treated.
type InputMode string

const (
	// ModeComposer accumulates free text until /send.
	ModeComposer InputMode = "composer"
	// ModeSingle sends every free-text line immediately.
	ModeSingle InputMode = "single"
)

// Options configures a Dispatcher. Every field is optional.
type Options struct {
	Mode InputMode
	// DefaultChannel is the channel name single-shot sends fall back to.
	DefaultChannel string
	Server         ServerControl
	Facts          FactSource
	// Quit is called by /exit after the farewell is logged.
	Quit func()
}

// Dispatcher owns the session state and routes input to the control surface.
type Dispatcher struct {
	control Control
	journal *activity.Journal
	opts    Options

	mu      sync.Mutex
	session SessionState
}

// New creates a dispatcher in the Normal state with an empty session.
func New(control Control, journal *activity.Journal, opts Options) *Dispatcher {
	if opts.Mode == "" {
		opts.Mode = ModeComposer
	}
	return &Dispatcher{control: control, journal: journal, opts: opts}
}

// Session returns a copy of the current session state.
func (d *Dispatcher) Session() SessionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session.clone()
}

// Mode returns the configured input mode.
func (d *Dispatcher) Mode() InputMode { return d.opts.Mode }

// Handle processes one line of input. Failures are reported in the activity
// log; Handle itself never panics.
func (d *Dispatcher) Handle(ctx context.Context, line string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Command handler panicked", "input", line, "panic", r)
			d.journal.Addf("Error: %v", r)
		}
	}()

	line = strings.TrimRight(line, "\r\n")

	if pending := d.takePending(); pending != nil {
		d.selectChannel(pending, line)
		return
	}

	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, Prefix) {
		fields := strings.Fields(strings.TrimPrefix(trimmed, Prefix))
		if len(fields) == 0 {
			d.journal.Add(`Unknown command. Type "/help" for a list of commands.`)
			return
		}
		d.command(ctx, strings.ToLower(fields[0]), fields[1:])
		return
	}
	if trimmed == "" {
		return
	}

	if d.opts.Mode == ModeSingle {
		d.sendNow(ctx, line)
		return
	}
	d.mu.Lock()
	if d.session.Composing == "" {
		d.session.Composing = line
	} else {
		d.session.Composing += "\n" + line
	}
	d.mu.Unlock()
}

func (d *Dispatcher) command(ctx context.Context, name string, args []string) {
	switch name {
	case "help":
		d.help()
	case "status":
		status := ""
		if len(args) > 0 {
			status = args[0]
		}
		// The control surface logs the outcome.
		_, _ = d.control.ChangeStatus(ctx, status)
	case "channel":
		d.channel(ctx, strings.Join(args, " "))
	case "thread":
		d.thread(ctx, strings.Join(args, " "))
	case "send":
		d.send(ctx)
	case "clear":
		d.mu.Lock()
		d.session.Composing = ""
		d.mu.Unlock()
		d.journal.Add("Message cleared.")
	case "list":
		d.list(ctx)
	case "server":
		action := ""
		if len(args) > 0 {
			action = strings.ToLower(args[0])
		}
		d.server(ctx, action)
	case "fact":
		d.fact(ctx)
	case "exit":
		d.journal.Add("Exiting...")
		if d.opts.Quit != nil {
			d.opts.Quit()
		}
	default:
		d.journal.Add(`Unknown command. Type "/help" for a list of commands.`)
	}
}

var helpLines = []string{
	"Available commands:",
	"  /help                - Show this help message",
	"  /status <newStatus>  - Change bot status (online, idle, dnd, invisible)",
	"  /channel <name>      - Select the channel to send to",
	"  /thread <name>       - Select a thread in the current forum channel",
	"  /send                - Send the composed message",
	"  /clear               - Discard the composed message",
	"  /list                - List all available channels",
	"  /fact                - Get a random fact",
	"  /server <start|stop> - Start or stop the web server",
	"  /exit                - Exit the program",
}

func (d *Dispatcher) help() {
	for _, l := range helpLines {
		d.journal.Add(l)
	}
	if d.opts.Mode == ModeSingle {
		d.journal.Add("  <message>            - Send a message to the current channel")
	} else {
		d.journal.Add("  <message>            - Add a line to the composed message")
	}
}

func (d *Dispatcher) channel(ctx context.Context, name string) {
	if name == "" {
		d.journal.Add("Usage: /channel <name>")
		return
	}
	matches, err := d.findChannels(ctx, name)
	if err != nil {
		d.journal.Add("Error listing channels: " + err.Error())
		return
	}
	switch len(matches) {
	case 0:
		d.journal.Add("No channel found with name: " + name)
	case 1:
		d.setChannel(matches[0])
	default:
		d.mu.Lock()
		d.session.PendingSelection = matches
		d.mu.Unlock()
		d.journal.Addf("Multiple channels named %q found. Enter a number to select:", name)
		for i, ch := range matches {
			d.journal.Addf("  %d. %s", i+1, describeChannel(ch))
		}
	}
}

func (d *Dispatcher) findChannels(ctx context.Context, name string) ([]chat.ChannelDescriptor, error) {
	all, err := d.control.ListChannels(ctx)
	if err != nil {
		return nil, err
	}
	var out []chat.ChannelDescriptor
	for _, ch := range all {
		if ch.Name == name {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (d *Dispatcher) takePending() []chat.ChannelDescriptor {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.session.PendingSelection
	d.session.PendingSelection = nil
	return p
}

func (d *Dispatcher) selectChannel(candidates []chat.ChannelDescriptor, input string) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 1 || n > len(candidates) {
		d.journal.Addf("Invalid selection. Enter a number between 1 and %d next time; channel not changed.", len(candidates))
		return
	}
	d.setChannel(candidates[n-1])
}

func (d *Dispatcher) setChannel(ch chat.ChannelDescriptor) {
	d.mu.Lock()
	d.session.CurrentChannel = &ch
	d.session.CurrentThread = nil
	d.mu.Unlock()
	d.journal.Add("Current channel set to " + describeChannel(ch))
	if ch.IsForum() {
		d.journal.Add("This is a forum channel. Use /thread <name> to pick a thread.")
	}
}

func (d *Dispatcher) thread(ctx context.Context, name string) {
	current := d.Session().CurrentChannel
	if current == nil || !current.IsForum() {
		d.journal.Add("Threads are only available in forum channels. Select one with /channel <name> first.")
		return
	}
	if name == "" {
		d.journal.Add("Usage: /thread <name>")
		return
	}

	// Threads change often; look them up again instead of trusting the
	// descriptor captured by /channel.
	all, err := d.control.ListChannels(ctx)
	if err != nil {
		d.journal.Add("Error listing threads: " + err.Error())
		return
	}
	var fresh *chat.ChannelDescriptor
	for i := range all {
		if all[i].ID == current.ID {
			fresh = &all[i]
			break
		}
	}
	if fresh == nil {
		d.journal.Addf("Channel #%s is no longer available.", current.Name)
		return
	}
	for _, th := range fresh.Threads {
		if th.Name != name {
			continue
		}
		d.mu.Lock()
		if d.session.CurrentChannel == nil || d.session.CurrentChannel.ID != fresh.ID {
			d.mu.Unlock()
			return
		}
		ch := *fresh
		d.session.CurrentChannel = &ch
		d.session.CurrentThread = &th
		d.mu.Unlock()
		d.journal.Addf("Current thread set to %s in #%s", th.Name, fresh.Name)
		return
	}
	d.journal.Addf("No thread found with name: %s in #%s", name, fresh.Name)
}

func (d *Dispatcher) send(ctx context.Context) {
	s := d.Session()
	if s.CurrentChannel == nil {
		d.journal.Add("No channel selected. Use /channel <name> first.")
		return
	}
	text := strings.TrimSpace(s.Composing)
	if text == "" {
		d.journal.Add("No message to send. Type your message first.")
		return
	}
	if _, err := d.control.SendMessage(ctx, text, s.CurrentChannel.ID, threadID(s)); err != nil {
		return
	}
	d.mu.Lock()
	if d.session.Composing == s.Composing {
		d.session.Composing = ""
	}
	d.mu.Unlock()
}

// sendNow implements the single-shot input model.
func (d *Dispatcher) sendNow(ctx context.Context, text string) {
	s := d.Session()
	if s.CurrentChannel == nil && d.opts.DefaultChannel != "" {
		matches, err := d.findChannels(ctx, d.opts.DefaultChannel)
		if err != nil {
			d.journal.Add("Error listing channels: " + err.Error())
			return
		}
		if len(matches) > 0 {
			s.CurrentChannel = &matches[0]
		}
	}
	if s.CurrentChannel == nil {
		d.journal.Add("No channel selected. Use /channel <name> first.")
		return
	}
	_, _ = d.control.SendMessage(ctx, text, s.CurrentChannel.ID, threadID(s))
}

func (d *Dispatcher) list(ctx context.Context) {
	all, err := d.control.ListChannels(ctx)
	if err != nil {
		d.journal.Add("Error listing channels: " + err.Error())
		return
	}
	if len(all) == 0 {
		d.journal.Add("No channels available.")
		return
	}
	var b strings.Builder
	b.WriteString("Available channels:")
	for _, ch := range all {
		b.WriteString("\n  " + describeChannel(ch))
		for _, th := range ch.Threads {
			b.WriteString("\n      - " + th.Name)
		}
	}
	d.journal.Add(b.String())
}

func (d *Dispatcher) server(ctx context.Context, action string) {
	if d.opts.Server == nil {
		d.journal.Add("Web server control is not available.")
		return
	}
	switch action {
	case "start":
		if err := d.opts.Server.Start(); err != nil {
			d.journal.Add("Error starting web server: " + err.Error())
			return
		}
		d.journal.Add("Web server started.")
	case "stop":
		if err := d.opts.Server.Stop(ctx); err != nil {
			d.journal.Add("Error stopping web server: " + err.Error())
			return
		}
		d.journal.Add("Web server stopped.")
	default:
		d.journal.Add("Invalid action. Use /server start or /server stop.")
	}
}

func threadID(s SessionState) string {
	if s.CurrentThread == nil {
		return ""
	}
	return s.CurrentThread.ID
}

func describeChannel(ch chat.ChannelDescriptor) string {
	s := fmt.Sprintf("#%s (%s)", ch.Name, ch.GuildName)
	if ch.IsForum() {
		s += " [forum]"
	}
	return s
}
