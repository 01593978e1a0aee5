// Package events provides the in-process build-event bus that chat
// contacts subscribe to. Publishers are the build/automation system;
// subscribers are per-identity contacts that relay events to IRC.
package events

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind labels the class of a build event.
type Kind string

// Event kinds contacts may be notified about.
const (
	Started   Kind = "started"
	Finished  Kind = "finished"
	Success   Kind = "success"
	Failure   Kind = "failure"
	Exception Kind = "exception"
)

// Kinds lists every recognized event kind.
func Kinds() []Kind {
	return []Kind{Started, Finished, Success, Failure, Exception}
}

// ValidKind reports whether k names a recognized event kind.
func ValidKind(k Kind) bool {
	switch k {
	case Started, Finished, Success, Failure, Exception:
		return true
	}
	return false
}

// Event is one build status event.
type Event struct {
	ID       uuid.UUID
	Kind     Kind
	Builder  string
	Number   int
	Result   string
	Branch   string
	Revision string
	Blame    []string
	Time     time.Time
}

// Handler receives published events.
type Handler func(Event)

// Subscription represents one registered handler. Cancel it to stop
// receiving events.
type Subscription struct {
	id  int64
	bus *Bus
}

// Cancel removes the subscription from its bus
func (s *Subscription) Cancel() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.unsubscribe(s.id)
}

type subscriber struct {
	handler Handler
	kinds   map[Kind]bool // nil means all kinds
}

// Bus is a synchronous fan-out event bus
type Bus struct {
	mu     sync.RWMutex
	nextID int64
	subs   map[int64]*subscriber
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{subs: make(map[int64]*subscriber)}
}

// Subscribe registers a handler for the given kinds. With no kinds the
// handler receives every event.
func (b *Bus) Subscribe(handler Handler, kinds ...Kind) *Subscription {
	sub := &subscriber{handler: handler}
	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[id] = sub
	return &Subscription{id: id, bus: b}
}

func (b *Bus) unsubscribe(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Count returns the number of active subscriptions
func (b *Bus) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers the event to every matching subscriber in turn. A
// panicking handler is recovered and logged so one subscriber cannot
// break delivery to the rest.
func (b *Bus) Publish(ev Event) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.kinds != nil && !sub.kinds[ev.Kind] {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("PANIC in event handler for %s: %v", ev.Kind, r)
				}
			}()
			sub.handler(ev)
		}()
	}
}
