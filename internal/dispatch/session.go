package dispatch

import "github.com/iXty9/relaybot/internal/chat"

// SessionState is the REPL session. CurrentThread is only set while
// CurrentChannel is a forum; PendingSelection is non-nil only while the
// dispatcher awaits a numbered choice.
type SessionState struct {
	CurrentChannel   *chat.ChannelDescriptor
	CurrentThread    *chat.ThreadDescriptor
	Composing        string
	PendingSelection []chat.ChannelDescriptor
}

// AwaitingSelection reports whether the next input is a selection index.
func (s SessionState) AwaitingSelection() bool { return s.PendingSelection != nil }

// Target describes the current send target, e.g. "#ideas > roadmap".
func (s SessionState) Target() string {
	if s.CurrentChannel == nil {
		return ""
	}
	t := "#" + s.CurrentChannel.Name
	if s.CurrentThread != nil {
		t += " > " + s.CurrentThread.Name
	}
	return t
}

func (s SessionState) clone() SessionState {
	out := SessionState{Composing: s.Composing}
	if s.CurrentChannel != nil {
		ch := *s.CurrentChannel
		out.CurrentChannel = &ch
	}
	if s.CurrentThread != nil {
		th := *s.CurrentThread
		out.CurrentThread = &th
	}
	if s.PendingSelection != nil {
		out.PendingSelection = append([]chat.ChannelDescriptor{}, s.PendingSelection...)
	}
	return out
}
