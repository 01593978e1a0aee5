package bot

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presbrey/ircstatus/bot/config"
	"github.com/presbrey/ircstatus/events"
)

func newTestSupervisor(t *testing.T) (*Supervisor, *atomic.Int32) {
	t.Helper()
	cfg := testConfig()
	cfg.LostDelay = config.Duration(10 * time.Millisecond)
	cfg.FailedDelay = config.Duration(10 * time.Millisecond)
	sup := newSupervisor(cfg, nil, events.NewBus(), nil)

	attempts := &atomic.Int32{}
	sup.attemptFn = func() { attempts.Add(1) }
	return sup, attempts
}

func TestStartTransitionsToConnecting(t *testing.T) {
	sup, attempts := newTestSupervisor(t)
	require.NoError(t, sup.Start())
	assert.Equal(t, StateConnecting, sup.State())
	assert.Eventually(t, func() bool { return attempts.Load() == 1 }, time.Second, time.Millisecond)

	assert.Error(t, sup.Start(), "starting twice is an error")
	sup.Shutdown()
}

func TestLostSchedulesReconnect(t *testing.T) {
	sup, attempts := newTestSupervisor(t)
	require.NoError(t, sup.Start())
	assert.Eventually(t, func() bool { return attempts.Load() == 1 }, time.Second, time.Millisecond)

	sup.onLost(errors.New("connection reset"))
	assert.Equal(t, StateLost, sup.State())

	assert.Eventually(t, func() bool { return attempts.Load() == 2 }, time.Second, time.Millisecond,
		"a lost connection schedules another attempt after lostDelay")
	sup.Shutdown()
}

func TestFailedSchedulesReconnect(t *testing.T) {
	sup, attempts := newTestSupervisor(t)
	require.NoError(t, sup.Start())
	assert.Eventually(t, func() bool { return attempts.Load() == 1 }, time.Second, time.Millisecond)

	sup.onFailed(errors.New("connection refused"))
	assert.Equal(t, StateFailed, sup.State())

	assert.Eventually(t, func() bool { return attempts.Load() == 2 }, time.Second, time.Millisecond)
	sup.Shutdown()
}

func TestShutdownSuppressesReconnect(t *testing.T) {
	sup, attempts := newTestSupervisor(t)
	require.NoError(t, sup.Start())
	assert.Eventually(t, func() bool { return attempts.Load() == 1 }, time.Second, time.Millisecond)

	sup.Shutdown()
	sup.onLost(errors.New("connection reset"))

	assert.Equal(t, StateTerminal, sup.State())
	select {
	case <-sup.Done():
	case <-time.After(time.Second):
		t.Fatal("shutdown must complete once the loss is observed")
	}

	// well past lostDelay: no further attempt may occur
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), attempts.Load(), "no reconnect is scheduled after shutdown")
}

func TestShutdownCancelsScheduledRetry(t *testing.T) {
	sup, attempts := newTestSupervisor(t)
	require.NoError(t, sup.Start())
	assert.Eventually(t, func() bool { return attempts.Load() == 1 }, time.Second, time.Millisecond)

	// arm a retry far enough out that Shutdown beats it
	sup.mu.Lock()
	sup.scheduleLocked(100 * time.Millisecond)
	sup.state = StateLost
	sup.mu.Unlock()

	sup.Shutdown()

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), attempts.Load(), "an armed retry timer is cancelled by shutdown")
	select {
	case <-sup.Done():
	default:
		t.Fatal("shutdown with no live connection completes immediately")
	}
}

func TestShutdownIdempotent(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	sup.Shutdown()
	sup.Shutdown()
	assert.Equal(t, StateTerminal, sup.State())
	select {
	case <-sup.Done():
	default:
		t.Fatal("done must be closed")
	}
}

func TestAtMostOneLiveSession(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	rec := &recorder{}

	sup.onEstablished(rec)
	first := sup.Session()
	require.NotNil(t, first)
	assert.Equal(t, StateConnected, sup.State())
	assert.False(t, sup.ConnectedSince().IsZero())

	sup.onLost(errors.New("connection reset"))
	assert.Nil(t, sup.Session(), "the session is torn down before any new one exists")
	assert.True(t, sup.ConnectedSince().IsZero())

	sup.onEstablished(rec)
	second := sup.Session()
	require.NotNil(t, second)
	assert.NotSame(t, first, second)

	sup.teardownSession()
	sup.Shutdown()
}

func TestEstablishDuringShutdownQuitsImmediately(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	rec := &recorder{}
	sup.Shutdown()

	sup.onEstablished(rec)
	assert.Nil(t, sup.Session(), "a connection completing after shutdown is never promoted")

	quits := rec.ByKind("quit")
	require.Len(t, quits, 1)
	assert.Equal(t, farewell, quits[0].Text)
}

func TestEstablishedSessionSignsOn(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	sup.cfg.Password = "hunter2"
	sup.cfg.Channels = []config.Channel{{Name: "#builds"}}
	rec := &recorder{}

	sup.onEstablished(rec)
	defer func() {
		sup.teardownSession()
		sup.Shutdown()
	}()

	sends := rec.Sends()
	require.Len(t, sends, 2)
	assert.Equal(t, "message", sends[0].Kind, "identify first")
	assert.Equal(t, "join", sends[1].Kind)
}
