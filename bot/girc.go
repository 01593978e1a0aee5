package bot

import (
	"log"
	"strings"

	"github.com/lrstanley/girc"
)

// gircConn adapts a girc.Client to the session's sender interface and
// the supervisor's lifecycle needs. All byte-level framing and parsing
// stays inside girc; this layer decides only when and what to send.
type gircConn struct {
	client *girc.Client
}

func (g *gircConn) Join(channel string)         { g.client.Cmd.Join(channel) }
func (g *gircConn) JoinKey(channel, key string) { g.client.Cmd.JoinKey(channel, key) }
func (g *gircConn) Message(target, text string) { g.client.Cmd.Message(target, text) }
func (g *gircConn) Notice(target, text string)  { g.client.Cmd.Notice(target, text) }
func (g *gircConn) Action(target, text string)  { g.client.Cmd.Action(target, text) }
func (g *gircConn) Ping(id string)              { g.client.Cmd.Ping(id) }

func (g *gircConn) quit(reason string) { g.client.Quit(reason) }
func (g *gircConn) abort()             { g.client.Close() }

// attempt performs one connection attempt. It blocks for the lifetime
// of the connection, then reports the outcome to the loss/failure
// callbacks. A fresh client is constructed per attempt.
func (s *Supervisor) attempt() {
	s.mu.Lock()
	if s.shuttingDown {
		s.state = StateTerminal
		s.mu.Unlock()
		s.finish()
		return
	}
	client := girc.New(girc.Config{
		Server:    s.cfg.Host,
		Port:      s.cfg.Port,
		Nick:      s.cfg.Nickname,
		User:      s.cfg.Nickname,
		Name:      "ircstatus build notifier",
		SSL:       s.cfg.UseSSL,
		TLSConfig: s.tlsConfig,
	})
	c := &gircConn{client: client}
	s.conn = c
	s.mu.Unlock()

	s.wireHandlers(client, c)

	log.Printf("[supervisor] connecting to %s:%d", s.cfg.Host, s.cfg.Port)
	err := client.Connect()

	s.mu.Lock()
	hadSession := s.session != nil
	s.conn = nil
	s.mu.Unlock()

	if hadSession {
		s.onLost(err)
	} else {
		s.onFailed(err)
	}
}

// wireHandlers routes girc events into the session. Handlers run on
// girc's per-connection event loop, so inbound dispatch is sequential.
func (s *Supervisor) wireHandlers(client *girc.Client, gc *gircConn) {
	client.Handlers.Add(girc.CONNECTED, func(c *girc.Client, e girc.Event) {
		s.onEstablished(gc)
	})

	client.Handlers.Add(girc.PRIVMSG, func(c *girc.Client, e girc.Event) {
		sess := s.Session()
		if sess == nil || e.Source == nil || len(e.Params) == 0 {
			return
		}
		if e.IsAction() {
			sess.Action(e.Source.Name, e.Params[0], e.StripAction())
			return
		}
		sess.Privmsg(e.Source.Name, e.Params[0], e.Last())
	})

	client.Handlers.Add(girc.JOIN, func(c *girc.Client, e girc.Event) {
		sess := s.Session()
		if sess == nil || e.Source == nil || len(e.Params) == 0 {
			return
		}
		if strings.EqualFold(e.Source.Name, c.GetNick()) {
			sess.Joined(e.Params[0])
		}
	})

	client.Handlers.Add(girc.PART, func(c *girc.Client, e girc.Event) {
		sess := s.Session()
		if sess == nil || e.Source == nil || len(e.Params) == 0 {
			return
		}
		if strings.EqualFold(e.Source.Name, c.GetNick()) {
			sess.Left(e.Params[0])
		}
	})

	client.Handlers.Add(girc.KICK, func(c *girc.Client, e girc.Event) {
		sess := s.Session()
		if sess == nil || e.Source == nil || len(e.Params) < 2 {
			return
		}
		if strings.EqualFold(e.Params[1], c.GetNick()) {
			sess.KickedFrom(e.Params[0], e.Source.Name, e.Last())
		}
	})
}
