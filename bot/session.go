package bot

import (
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/presbrey/ircstatus/bot/config"
	"github.com/presbrey/ircstatus/events"
	"github.com/presbrey/ircstatus/history"
)

// keepAliveInterval is how often a live session pings itself. The ping
// is a proactive keepalive and expects no response.
const keepAliveInterval = 60 * time.Second

// sender is the outbound half of the protocol layer. Production wires
// it to girc; tests substitute a recorder.
type sender interface {
	Join(channel string)
	JoinKey(channel, key string)
	Message(target, text string)
	Notice(target, text string)
	Action(target, text string)
	Ping(id string)
}

// Session is one live connection: its keepalive probe, inbound
// dispatch, and outbound encoding. A session owns one ContactRegistry
// for its lifetime.
type Session struct {
	cfg      *config.Config
	nickname string
	send     sender
	bus      *events.Bus
	control  Control
	store    *history.Store
	contacts *ContactRegistry

	keepAliveEvery time.Duration
	stopKeepalive  chan struct{}
	closeOnce      sync.Once

	// in-flight command handlers; not cancelled on disconnect
	tasks sync.WaitGroup
}

func newSession(cfg *config.Config, send sender, bus *events.Bus, control Control, store *history.Store) *Session {
	s := &Session{
		cfg:            cfg,
		nickname:       cfg.Nickname,
		send:           send,
		bus:            bus,
		control:        control,
		store:          store,
		keepAliveEvery: keepAliveInterval,
	}
	s.contacts = newContactRegistry(s)
	return s
}

// Start begins the periodic self-directed liveness probe
func (s *Session) Start() {
	s.stopKeepalive = make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.keepAliveEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.send.Ping(s.nickname)
			case <-s.stopKeepalive:
				return
			}
		}
	}()
}

// Close tears the session down. It cancels the liveness probe and the
// contact subscriptions, and is safe to call on every exit path,
// including abnormal disconnects.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.stopKeepalive != nil {
			close(s.stopKeepalive)
		}
		s.contacts.Close()
	})
}

// Contacts returns the session's contact registry
func (s *Session) Contacts() *ContactRegistry {
	return s.contacts
}

// sanitize makes text safe for the wire: invalid UTF-8 sequences are
// replaced rather than failing the send.
func sanitize(text string) string {
	return strings.ToValidUTF8(text, string(utf8.RuneError))
}

// GroupChat sends text to a channel, as a passive notice when
// noticeOnChannel is configured, as a normal message otherwise.
func (s *Session) GroupChat(channel, message string) {
	if s.cfg.NoticeOnChannel {
		s.send.Notice(channel, sanitize(message))
		messagesSent.WithLabelValues("notice").Inc()
		return
	}
	s.send.Message(channel, sanitize(message))
	messagesSent.WithLabelValues("message").Inc()
}

// Chat sends a direct message to a user
func (s *Session) Chat(user, message string) {
	s.send.Message(user, sanitize(message))
	messagesSent.WithLabelValues("private").Inc()
}

// GroupDescribe sends an expressive action to a channel
func (s *Session) GroupDescribe(channel, action string) {
	s.send.Action(channel, sanitize(action))
	messagesSent.WithLabelValues("action").Inc()
}

// SignedOn runs once the server has accepted our registration: identify
// with NickServ before anything else, join the configured channels, and
// open contacts for every proactive private-message target.
func (s *Session) SignedOn() {
	if s.cfg.Password != "" {
		s.send.Message("Nickserv", "IDENTIFY "+s.cfg.Password)
	}
	for _, ch := range s.cfg.Channels {
		if ch.Key != "" {
			s.send.JoinKey(ch.Name, ch.Key)
		} else {
			s.send.Join(ch.Name)
		}
	}
	for _, nick := range s.cfg.PMToNicks {
		// trigger contact construction, which subscribes to build events
		s.contacts.Get(nick, "")
	}
}

// Joined records that we entered a channel and opens its contact
func (s *Session) Joined(channel string) {
	log.Printf("[%s] I have joined %s", s.nickname, channel)
	s.contacts.Get("", channel)
}

// Left records that we left a channel
func (s *Session) Left(channel string) {
	log.Printf("[%s] I have left %s", s.nickname, channel)
}

// KickedFrom records a kick. There is no automatic rejoin.
func (s *Session) KickedFrom(channel, kicker, reason string) {
	log.Printf("[%s] I have been kicked from %s by %s: %s", s.nickname, channel, kicker, reason)
}

// Privmsg handles an inbound message. A message whose target is our own
// nick is private; a channel message is dispatched as a command only
// when it starts with "<nick>:" or "<nick>," exactly.
func (s *Session) Privmsg(from, target, message string) {
	messagesReceived.WithLabelValues("privmsg").Inc()

	if target == s.nickname {
		s.dispatch(s.contacts.Get(from, ""), message)
		return
	}

	contact := s.contacts.Get(from, target)
	if strings.HasPrefix(message, s.nickname+":") || strings.HasPrefix(message, s.nickname+",") {
		s.dispatch(contact, message[len(s.nickname)+1:])
	}
	// Unaddressed channel chatter is observed but never dispatched.
}

// Action handles an inbound /me action: dispatched whenever our nick
// appears anywhere in the text.
func (s *Session) Action(from, channel, data string) {
	messagesReceived.WithLabelValues("action").Inc()

	contact := s.contacts.Get(from, channel)
	if strings.Contains(data, s.nickname) {
		s.dispatchAction(contact, data)
	}
}

// dispatch runs a command handler asynchronously. The caller never
// blocks on it, and disconnects do not cancel it; replies attempted
// after teardown are dropped by the transport.
func (s *Session) dispatch(c *Contact, message string) {
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		c.HandleMessage(message)
	}()
}

func (s *Session) dispatchAction(c *Contact, data string) {
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		c.HandleAction(data)
	}()
}

// WaitIdle blocks until every in-flight command handler returns
func (s *Session) WaitIdle() {
	s.tasks.Wait()
}
