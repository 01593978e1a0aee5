package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presbrey/ircstatus/history"
)

func lastSend(t *testing.T, rec *recorder) recordedSend {
	t.Helper()
	sends := rec.Sends()
	require.NotEmpty(t, sends)
	return sends[len(sends)-1]
}

func TestCommandVersion(t *testing.T) {
	sess, rec, _ := newTestSession(testConfig(), nil, nil)
	defer sess.Close()

	sess.Contacts().Get("alice", "").HandleMessage(" version")
	assert.Contains(t, lastSend(t, rec).Text, "ircstatus")
}

func TestCommandListAndHelp(t *testing.T) {
	sess, rec, _ := newTestSession(testConfig(), nil, nil)
	defer sess.Close()
	c := sess.Contacts().Get("alice", "")

	c.HandleMessage("commands")
	assert.Contains(t, lastSend(t, rec).Text, "force")

	c.HandleMessage("help notify")
	assert.Contains(t, lastSend(t, rec).Text, "notify list")

	c.HandleMessage("help bogus")
	assert.Contains(t, lastSend(t, rec).Text, "no such command")
}

func TestCommandUnknown(t *testing.T) {
	sess, rec, _ := newTestSession(testConfig(), nil, nil)
	defer sess.Close()

	sess.Contacts().Get("alice", "").HandleMessage("frobnicate now")
	assert.Contains(t, lastSend(t, rec).Text, "I don't understand")
}

func TestCommandEmptyIgnored(t *testing.T) {
	sess, rec, _ := newTestSession(testConfig(), nil, nil)
	defer sess.Close()

	sess.Contacts().Get("alice", "").HandleMessage("   ")
	assert.Empty(t, rec.Sends())
}

func TestCommandNotify(t *testing.T) {
	sess, rec, _ := newTestSession(testConfig(), nil, nil)
	defer sess.Close()
	c := sess.Contacts().Get("alice", "")

	c.HandleMessage("notify")
	assert.Contains(t, lastSend(t, rec).Text, "not notifying")

	c.HandleMessage("notify on failure")
	assert.Contains(t, lastSend(t, rec).Text, "failure")
	assert.True(t, c.notifies("failure"))

	c.HandleMessage("notify list")
	assert.Contains(t, lastSend(t, rec).Text, "failure")

	c.HandleMessage("notify off failure")
	assert.False(t, c.notifies("failure"))

	c.HandleMessage("notify on eclipse")
	assert.Contains(t, lastSend(t, rec).Text, "unknown event kind")
}

func TestCommandForceGated(t *testing.T) {
	ctl := &fakeControl{}
	sess, rec, _ := newTestSession(testConfig(), ctl, nil)
	defer sess.Close()

	sess.Contacts().Get("alice", "").HandleMessage("force build linux")
	assert.Contains(t, lastSend(t, rec).Text, "not allowed")
	assert.Empty(t, ctl.forced)
}

func TestCommandForce(t *testing.T) {
	cfg := testConfig()
	cfg.AllowForce = true
	ctl := &fakeControl{}
	sess, rec, _ := newTestSession(cfg, ctl, nil)
	defer sess.Close()
	c := sess.Contacts().Get("alice", "#builds")

	c.HandleMessage("force build linux broken nightly")
	assert.Equal(t, []string{"linux"}, ctl.forced)
	assert.Contains(t, lastSend(t, rec).Text, "forced")

	c.HandleMessage("force")
	assert.Contains(t, lastSend(t, rec).Text, "try 'force build")
}

func TestCommandForceWithoutControl(t *testing.T) {
	cfg := testConfig()
	cfg.AllowForce = true
	sess, rec, _ := newTestSession(cfg, nil, nil)
	defer sess.Close()

	sess.Contacts().Get("alice", "").HandleMessage("force build linux")
	assert.Contains(t, lastSend(t, rec).Text, "not available")
}

func TestCommandStop(t *testing.T) {
	cfg := testConfig()
	cfg.AllowForce = true
	ctl := &fakeControl{}
	sess, rec, _ := newTestSession(cfg, ctl, nil)
	defer sess.Close()

	sess.Contacts().Get("alice", "").HandleMessage("stop build linux")
	assert.Equal(t, []string{"linux"}, ctl.stops)
	assert.Contains(t, lastSend(t, rec).Text, "interrupted")
}

func TestCommandShutdownGated(t *testing.T) {
	ctl := &fakeControl{}
	sess, rec, _ := newTestSession(testConfig(), ctl, nil)
	defer sess.Close()

	sess.Contacts().Get("alice", "").HandleMessage("shutdown")
	assert.Contains(t, lastSend(t, rec).Text, "not allowed")
	assert.Zero(t, ctl.downs)
}

func TestCommandShutdown(t *testing.T) {
	cfg := testConfig()
	cfg.AllowShutdown = true
	ctl := &fakeControl{}
	sess, rec, _ := newTestSession(cfg, ctl, nil)
	defer sess.Close()

	sess.Contacts().Get("alice", "").HandleMessage("shutdown")
	assert.Equal(t, 1, ctl.downs)
	assert.Contains(t, lastSend(t, rec).Text, "shutting down")
}

func TestCommandLast(t *testing.T) {
	store, err := history.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Record(&history.Notification{
		Builder: "linux", Number: 7, Text: "build #7 of linux is complete: success",
	}))

	sess, rec, _ := newTestSession(testConfig(), nil, store)
	defer sess.Close()
	c := sess.Contacts().Get("alice", "")

	c.HandleMessage("last")
	assert.Contains(t, lastSend(t, rec).Text, "build #7 of linux")

	c.HandleMessage("last windows")
	assert.Contains(t, lastSend(t, rec).Text, "nothing to report")
}

func TestCommandLastWithoutStore(t *testing.T) {
	sess, rec, _ := newTestSession(testConfig(), nil, nil)
	defer sess.Close()

	sess.Contacts().Get("alice", "").HandleMessage("last")
	assert.Contains(t, lastSend(t, rec).Text, "no notification history")
}

func TestCommandStatus(t *testing.T) {
	store, err := history.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Record(&history.Notification{
		Builder: "linux", Number: 7, Text: "build #7 of linux is complete: success",
	}))
	require.NoError(t, store.Record(&history.Notification{
		Builder: "linux", Number: 8, Text: "build #8 of linux is complete: failure",
	}))
	require.NoError(t, store.Record(&history.Notification{
		Builder: "osx", Number: 3, Text: "build #3 of osx is complete: success",
	}))

	sess, rec, _ := newTestSession(testConfig(), nil, store)
	defer sess.Close()
	c := sess.Contacts().Get("alice", "")

	c.HandleMessage("status")
	sends := rec.Sends()
	require.Len(t, sends, 2, "one line per builder")
	assert.Contains(t, sends[0].Text, "build #8 of linux")
	assert.Contains(t, sends[1].Text, "build #3 of osx")

	c.HandleMessage("status osx")
	assert.Contains(t, lastSend(t, rec).Text, "build #3 of osx")

	c.HandleMessage("status windows")
	assert.Contains(t, lastSend(t, rec).Text, "nothing on windows")
}

func TestCommandStatusWithoutStore(t *testing.T) {
	sess, rec, _ := newTestSession(testConfig(), nil, nil)
	defer sess.Close()

	sess.Contacts().Get("alice", "").HandleMessage("status")
	assert.Contains(t, lastSend(t, rec).Text, "no builder status")
}

func TestHandleActionKicksBack(t *testing.T) {
	sess, rec, _ := newTestSession(testConfig(), nil, nil)
	defer sess.Close()

	sess.Contacts().Get("alice", "#builds").HandleAction("kicks bb")
	assert.Equal(t, "kicks back", lastSend(t, rec).Text)
}

func TestHandleActionIgnoresUnrelated(t *testing.T) {
	sess, rec, _ := newTestSession(testConfig(), nil, nil)
	defer sess.Close()

	sess.Contacts().Get("alice", "#builds").HandleAction("ships a release")
	assert.Empty(t, rec.Sends())
}
