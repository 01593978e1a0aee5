package bot

import (
	"fmt"
	"log"
	"strings"

	"github.com/lrstanley/girc"

	"github.com/presbrey/ircstatus/events"
	"github.com/presbrey/ircstatus/history"
)

// buildEvent is the contact's event-bus handler. It filters by the
// contact's notify set, formats a one-line summary, and delivers it to
// the contact's destination.
func (c *Contact) buildEvent(ev events.Event) {
	if !c.notifies(ev.Kind) {
		return
	}
	text := formatEvent(ev, c.session.cfg.UseRevisions, c.session.cfg.ShowBlameList, c.session.cfg.UseColors)
	c.send(text)
	c.session.recordNotification(&history.Notification{
		EventID: ev.ID.String(),
		Target:  c.dest(),
		Kind:    string(ev.Kind),
		Builder: ev.Builder,
		Number:  ev.Number,
		Result:  ev.Result,
		Text:    text,
	})
}

func colorFor(kind events.Kind) string {
	switch kind {
	case events.Success:
		return "{green}"
	case events.Failure:
		return "{red}"
	case events.Exception:
		return "{magenta}"
	}
	return ""
}

// formatEvent renders one build event as a single line of chat text.
func formatEvent(ev events.Event, useRevisions, showBlameList, useColors bool) string {
	var b strings.Builder

	switch ev.Kind {
	case events.Started:
		fmt.Fprintf(&b, "build #%d of %s started", ev.Number, ev.Builder)
	default:
		result := ev.Result
		if result == "" {
			result = string(ev.Kind)
		}
		if useColors {
			if color := colorFor(ev.Kind); color != "" {
				result = girc.Fmt(color + "{b}" + result + "{c}")
			}
		}
		fmt.Fprintf(&b, "build #%d of %s is complete: %s", ev.Number, ev.Builder, result)
	}

	if useRevisions && ev.Revision != "" {
		fmt.Fprintf(&b, " at revision %s", ev.Revision)
	}
	if ev.Branch != "" {
		fmt.Fprintf(&b, " [%s]", ev.Branch)
	}
	if showBlameList && len(ev.Blame) > 0 {
		fmt.Fprintf(&b, "  blamelist: %s", strings.Join(ev.Blame, ", "))
	}
	return b.String()
}

// recordNotification appends to the history store when one is wired
func (s *Session) recordNotification(n *history.Notification) {
	if s.store == nil {
		return
	}
	if err := s.store.Record(n); err != nil {
		log.Printf("[%s] Error recording notification: %v", s.nickname, err)
	}
}
