package bot

import (
	"sync"

	"github.com/presbrey/ircstatus/bot/config"
	"github.com/presbrey/ircstatus/events"
	"github.com/presbrey/ircstatus/history"
)

// recordedSend is one outbound operation captured by the recorder
type recordedSend struct {
	Kind   string // join, joinkey, message, notice, action, ping
	Target string
	Text   string
}

// recorder is a sender that captures outbound operations for assertions
type recorder struct {
	mu    sync.Mutex
	sends []recordedSend
}

func (r *recorder) record(kind, target, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, recordedSend{Kind: kind, Target: target, Text: text})
}

func (r *recorder) Join(channel string)         { r.record("join", channel, "") }
func (r *recorder) JoinKey(channel, key string) { r.record("joinkey", channel, key) }
func (r *recorder) Message(target, text string) { r.record("message", target, text) }
func (r *recorder) Notice(target, text string)  { r.record("notice", target, text) }
func (r *recorder) Action(target, text string)  { r.record("action", target, text) }
func (r *recorder) Ping(id string)              { r.record("ping", id, "") }

// quit and abort make the recorder usable as a supervisor conn
func (r *recorder) quit(reason string) { r.record("quit", "", reason) }
func (r *recorder) abort()             { r.record("abort", "", "") }

// Sends returns a copy of everything recorded so far
func (r *recorder) Sends() []recordedSend {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedSend, len(r.sends))
	copy(out, r.sends)
	return out
}

// ByKind returns recorded sends of one kind
func (r *recorder) ByKind(kind string) []recordedSend {
	var out []recordedSend
	for _, s := range r.Sends() {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// fakeControl records invocations of the build-control capability
type fakeControl struct {
	mu     sync.Mutex
	forced []string
	stops  []string
	downs  int
	err    error
}

func (f *fakeControl) ForceBuild(builder, reason, branch, revision string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forced = append(f.forced, builder)
	return f.err
}

func (f *fakeControl) StopBuild(builder, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, builder)
	return f.err
}

func (f *fakeControl) Shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downs++
	return f.err
}

func testConfig() *config.Config {
	cfg := config.New()
	cfg.Host = "irc.example.com"
	cfg.Nickname = "bb"
	return cfg
}

// newTestSession builds a session wired to a recorder and a fresh bus
func newTestSession(cfg *config.Config, ctl Control, store *history.Store) (*Session, *recorder, *events.Bus) {
	rec := &recorder{}
	bus := events.NewBus()
	sess := newSession(cfg, rec, bus, ctl, store)
	return sess, rec, bus
}
