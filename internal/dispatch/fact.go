package dispatch

import (
	"context"
	"errors"
	"strings"

	"github.com/iXty9/relaybot/internal/chat"
)

var errNoFacts = errors.New("no fact source configured")

// FactApology is the reply used when no fact could be fetched.
const FactApology = "Sorry, I couldn't fetch a fact right now. Please try again later."

// HandleInteraction answers a platform slash command in place.
func (d *Dispatcher) HandleInteraction(ctx context.Context, in chat.Interaction) {
	defer func() {
		if r := recover(); r != nil {
			d.journal.Addf("Error handling /%s: %v", in.Name, r)
		}
	}()

	var reply string
	switch strings.ToLower(in.Name) {
	case "fact":
		d.journal.Addf("Slash command /fact used by %s", in.UserID)
		fact, err := d.randomFact(ctx)
		if err != nil {
			d.journal.Add("Error fetching random fact: " + err.Error())
			reply = FactApology
		} else {
			reply = "Here's a random fact: " + fact
		}
	default:
		reply = "Unknown command."
	}
	if in.Respond == nil {
		return
	}
	if err := in.Respond(ctx, reply); err != nil {
		d.journal.Addf("Error replying to /%s: %v", in.Name, err)
	}
}

// fact is the REPL variant: log the fact and share it with the current target.
func (d *Dispatcher) fact(ctx context.Context) {
	fact, err := d.randomFact(ctx)
	if err != nil {
		d.journal.Add("Error fetching random fact: " + err.Error())
		return
	}
	d.journal.Add("Random Fact: " + fact)
	s := d.Session()
	if s.CurrentChannel == nil {
		return
	}
	_, _ = d.control.SendMessage(ctx, "Here's a random fact: "+fact, s.CurrentChannel.ID, threadID(s))
}

func (d *Dispatcher) randomFact(ctx context.Context) (string, error) {
	if d.opts.Facts == nil {
		return "", errNoFacts
	}
	return d.opts.Facts.Random(ctx)
}
