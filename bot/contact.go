package bot

import (
	"strings"
	"sync"

	"github.com/presbrey/ircstatus/events"
)

// Contact holds the conversational and subscription state for one
// normalized identity (a user, a channel, or a user speaking on a
// channel). Creating a contact subscribes it to build events; the
// subscription lives until the owning session is torn down.
type Contact struct {
	session *Session
	user    string // normalized nick, may be empty
	channel string // normalized channel, may be empty

	mu     sync.Mutex
	notify map[events.Kind]bool
	sub    *events.Subscription
}

func newContact(s *Session, user, channel string) *Contact {
	c := &Contact{
		session: s,
		user:    user,
		channel: channel,
		notify:  make(map[events.Kind]bool),
	}
	for _, tag := range s.cfg.Tags {
		kind := events.Kind(strings.ToLower(tag))
		if events.ValidKind(kind) {
			c.notify[kind] = true
		}
	}
	c.sub = s.bus.Subscribe(c.buildEvent)
	return c
}

// dest is where replies and notifications for this contact go: the
// channel when present, otherwise the user directly.
func (c *Contact) dest() string {
	if c.channel != "" {
		return c.channel
	}
	return c.user
}

// send delivers text to the contact's destination
func (c *Contact) send(text string) {
	if c.channel != "" {
		c.session.GroupChat(c.channel, text)
		return
	}
	c.session.Chat(c.user, text)
}

// act delivers an expressive action to the contact's destination
func (c *Contact) act(text string) {
	c.session.GroupDescribe(c.dest(), text)
}

func (c *Contact) notifies(kind events.Kind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notify[kind]
}

func (c *Contact) setNotify(kind events.Kind, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.notify[kind] = true
	} else {
		delete(c.notify, kind)
	}
}

func (c *Contact) notifyList() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.notify))
	for _, k := range events.Kinds() {
		if c.notify[k] {
			out = append(out, string(k))
		}
	}
	return out
}

func (c *Contact) close() {
	c.sub.Cancel()
}

// ContactRegistry maps normalized identities to contacts. Its lifetime
// equals its session's lifetime; there is no eviction.
type ContactRegistry struct {
	mu       sync.Mutex
	session  *Session
	contacts map[string]*Contact
}

func newContactRegistry(s *Session) *ContactRegistry {
	return &ContactRegistry{
		session:  s,
		contacts: make(map[string]*Contact),
	}
}

// Get returns the contact for the given user and/or channel, creating
// and registering it on first reference. Nicknames and channel names
// are case insensitive.
func (r *ContactRegistry) Get(user, channel string) *Contact {
	user = strings.ToLower(user)
	channel = strings.ToLower(channel)
	key := user + "\x00" + channel

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.contacts[key]; ok {
		return c
	}
	c := newContact(r.session, user, channel)
	r.contacts[key] = c
	return c
}

// Len returns the number of registered contacts
func (r *ContactRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contacts)
}

// Close cancels every contact's event subscription
func (r *ContactRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contacts {
		c.close()
	}
}
