package bot

import (
	"crypto/tls"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/presbrey/ircstatus/bot/config"
	"github.com/presbrey/ircstatus/events"
	"github.com/presbrey/ircstatus/history"
	"github.com/presbrey/ircstatus/retry"
)

// farewell is the quit notice sent when the bot disconnects on purpose
const farewell = "buildmaster reconfigured: bot disconnecting"

// conn is one transport connection as the supervisor sees it: the
// session's outbound operations plus lifecycle control.
type conn interface {
	sender
	quit(reason string)
	abort()
}

// Default reconnect delay bounds, applied when lostDelay/failedDelay
// are not configured. Each supervisor draws its own jitter.
const (
	defaultLostMin   = 1 * time.Second
	defaultLostMax   = 5 * time.Second
	defaultFailedMin = 60 * time.Second
	defaultFailedMax = 120 * time.Second
)

// State is the supervisor's connection state
type State int

// Supervisor states
const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateLost
	StateFailed
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateLost:
		return "lost"
	case StateFailed:
		return "failed"
	case StateTerminal:
		return "terminal"
	}
	return "unknown"
}

// Supervisor owns the reconnect policy and the session lifecycle. It
// holds at most one live session at any instant; connection failures
// are never fatal and are retried until Shutdown.
type Supervisor struct {
	mu        sync.Mutex
	cfg       *config.Config
	tlsConfig *tls.Config
	bus       *events.Bus
	control   Control
	store     *history.Store

	state          State
	shuttingDown   bool
	session        *Session
	conn           conn
	retryTimer     *time.Timer
	connectedSince time.Time

	lostPolicy   retry.Strategy
	failedPolicy retry.Strategy

	// attemptFn performs one connection attempt; tests replace it
	attemptFn func()

	done     chan struct{}
	doneOnce sync.Once
}

func newSupervisor(cfg *config.Config, tlsConfig *tls.Config, bus *events.Bus, store *history.Store) *Supervisor {
	s := &Supervisor{
		cfg:       cfg,
		tlsConfig: tlsConfig,
		bus:       bus,
		store:     store,
		state:     StateIdle,
		done:      make(chan struct{}),
	}
	if d := cfg.LostDelay.Duration(); d > 0 {
		s.lostPolicy = retry.NewFixed(d)
	} else {
		s.lostPolicy = retry.NewRange(defaultLostMin, defaultLostMax)
	}
	if d := cfg.FailedDelay.Duration(); d > 0 {
		s.failedPolicy = retry.NewFixed(d)
	} else {
		s.failedPolicy = retry.NewRange(defaultFailedMin, defaultFailedMax)
	}
	s.attemptFn = s.attempt
	return s
}

// setControl wires the build-control capability; called before Start
func (s *Supervisor) setControl(ctl Control) {
	s.control = ctl
}

// Start requests the first connection attempt
func (s *Supervisor) Start() error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("supervisor already started")
	}
	s.state = StateConnecting
	s.mu.Unlock()
	go s.attemptFn()
	return nil
}

// Shutdown is idempotent. It stops any scheduled retry, asks a live
// session to disconnect with a farewell notice, and guarantees no
// further attempt is ever scheduled. It is cooperative: in-flight sends
// and command handling are not interrupted.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		return
	}
	s.shuttingDown = true
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	c := s.conn
	live := s.session != nil
	if c == nil {
		s.state = StateTerminal
	}
	s.mu.Unlock()

	if c == nil {
		s.finish()
		return
	}
	if live {
		c.quit(farewell)
	} else {
		c.abort()
	}
}

// Done is closed once the transport has confirmed closure after
// Shutdown
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// State returns the current connection state
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Session returns the live session, or nil
func (s *Supervisor) Session() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// ConnectedSince returns when the live connection was established, or
// the zero time when disconnected
func (s *Supervisor) ConnectedSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected {
		return time.Time{}
	}
	return s.connectedSince
}

// onEstablished constructs the session for a newly registered
// connection. A shutdown issued while the connection was being
// established quits immediately instead.
func (s *Supervisor) onEstablished(c conn) {
	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		c.quit(farewell)
		return
	}
	sess := newSession(s.cfg, c, s.bus, s.control, s.store)
	s.session = sess
	s.state = StateConnected
	s.connectedSince = time.Now()
	s.mu.Unlock()

	connectsTotal.Inc()
	connectionState.Set(1)
	s.lostPolicy.Reset()
	s.failedPolicy.Reset()

	sess.Start()
	sess.SignedOn()
	log.Printf("[supervisor] connected to %s:%d as %s", s.cfg.Host, s.cfg.Port, s.cfg.Nickname)
}

// onLost handles the end of a connection that had been established
func (s *Supervisor) onLost(reason error) {
	s.teardownSession()
	disconnectsTotal.WithLabelValues("lost").Inc()
	connectionState.Set(0)

	s.mu.Lock()
	if s.shuttingDown {
		s.state = StateTerminal
		s.mu.Unlock()
		log.Printf("[supervisor] connection closed; not scheduling reconnection attempt")
		s.finish()
		return
	}
	s.state = StateLost
	delay := s.lostPolicy.Next()
	s.scheduleLocked(delay)
	s.mu.Unlock()
	log.Printf("[supervisor] connection lost (%v); reconnecting in %s", reason, delay)
}

// onFailed handles an attempt that never established a connection
func (s *Supervisor) onFailed(reason error) {
	disconnectsTotal.WithLabelValues("failed").Inc()
	connectionState.Set(0)

	s.mu.Lock()
	if s.shuttingDown {
		s.state = StateTerminal
		s.mu.Unlock()
		log.Printf("[supervisor] connection failed; not scheduling reconnection attempt")
		s.finish()
		return
	}
	s.state = StateFailed
	delay := s.failedPolicy.Next()
	s.scheduleLocked(delay)
	s.mu.Unlock()
	log.Printf("[supervisor] connection failed (%v); retrying in %s", reason, delay)
}

// scheduleLocked arms the retry timer; the caller holds s.mu. The
// handle is kept so Shutdown can cancel it.
func (s *Supervisor) scheduleLocked(delay time.Duration) {
	reconnectsScheduled.Inc()
	s.retryTimer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.shuttingDown {
			s.mu.Unlock()
			return
		}
		s.state = StateConnecting
		s.retryTimer = nil
		s.mu.Unlock()
		s.attemptFn()
	})
}

// teardownSession closes and forgets the live session, if any
func (s *Supervisor) teardownSession() {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()
	if sess != nil {
		sess.Close()
	}
}

func (s *Supervisor) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}
