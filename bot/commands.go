package bot

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/presbrey/ircstatus/events"
	"github.com/presbrey/ircstatus/history"
)

// Version is stamped at build time
var Version = "dev"

// UsageError reports an operator mistake; its text is sent back to the
// operator instead of being logged as a failure.
type UsageError struct {
	msg string
}

func (e *UsageError) Error() string { return e.msg }

func usageErrorf(format string, args ...interface{}) error {
	return &UsageError{msg: fmt.Sprintf(format, args...)}
}

var commandHelp = map[string]string{
	"commands": "commands - list available commands",
	"help":     "help <command> - describe a command",
	"hello":    "hello - say hello",
	"version":  "version - show bot version",
	"source":   "source - point at the source code",
	"notify":   "notify list|on <kind>|off <kind> - manage event notifications",
	"status":   "status [builder] - show the latest state of each builder",
	"last":     "last [builder] - show recent notifications",
	"force":    "force build <builder> [reason] - force a build",
	"stop":     "stop build <builder> [reason] - stop a running build",
	"shutdown": "shutdown - shut the build master down",
	"dance":    "dance - do the dance",
}

// HandleMessage parses one inbound command line and replies to the
// contact. Usage mistakes are answered in-channel; anything else is
// logged and acknowledged generically.
func (c *Contact) HandleMessage(message string) {
	line := strings.TrimSpace(message)
	if line == "" {
		return
	}
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	commandsTotal.WithLabelValues(cmd).Inc()

	err := c.runCommand(cmd, args)
	if err == nil {
		return
	}
	var ue *UsageError
	if errors.As(err, &ue) {
		c.send(ue.msg)
		return
	}
	log.Printf("[%s] Error handling command %q from %s: %v", c.session.nickname, cmd, c.user, err)
	c.send("Something bad happened (see logs)")
}

func (c *Contact) runCommand(cmd string, args []string) error {
	switch cmd {
	case "hello", "hi", "yes?":
		c.send("yes?")
	case "version":
		c.send("ircstatus " + Version)
	case "source":
		c.send("My source can be found at https://github.com/presbrey/ircstatus")
	case "commands":
		c.send("buildbot commands: " + strings.Join(sortedCommands(), ", "))
	case "help":
		if len(args) == 0 {
			return usageErrorf("try 'help <command>' - %s", strings.Join(sortedCommands(), ", "))
		}
		help, ok := commandHelp[strings.ToLower(args[0])]
		if !ok {
			return usageErrorf("no such command %q", args[0])
		}
		c.send(help)
	case "notify":
		return c.cmdNotify(args)
	case "status":
		return c.cmdStatus(args)
	case "last":
		return c.cmdLast(args)
	case "force":
		return c.cmdForce(args)
	case "stop":
		return c.cmdStop(args)
	case "shutdown":
		return c.cmdShutdown()
	case "dance":
		c.send("0-<")
		c.send("0-/")
		c.send("0->")
	default:
		return usageErrorf("I don't understand %q - try 'commands'", cmd)
	}
	return nil
}

func sortedCommands() []string {
	names := make([]string, 0, len(commandHelp))
	for name := range commandHelp {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Contact) cmdNotify(args []string) error {
	if len(args) == 0 || args[0] == "list" {
		kinds := c.notifyList()
		if len(kinds) == 0 {
			c.send("I am not notifying you about any events")
			return nil
		}
		c.send("The following events are being notified: " + strings.Join(kinds, ", "))
		return nil
	}
	if len(args) != 2 {
		return usageErrorf("try 'notify list|on <kind>|off <kind>'")
	}
	kind := events.Kind(strings.ToLower(args[1]))
	if !events.ValidKind(kind) {
		return usageErrorf("unknown event kind %q", args[1])
	}
	switch args[0] {
	case "on":
		c.setNotify(kind, true)
		c.send(fmt.Sprintf("notifying you about %s events", kind))
	case "off":
		c.setNotify(kind, false)
		c.send(fmt.Sprintf("no longer notifying you about %s events", kind))
	default:
		return usageErrorf("try 'notify list|on <kind>|off <kind>'")
	}
	return nil
}

func (c *Contact) cmdStatus(args []string) error {
	store := c.session.store
	if store == nil {
		c.send("no builder status is available")
		return nil
	}

	if len(args) > 0 {
		rows, err := store.RecentForBuilder(args[0], 1)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			c.send(fmt.Sprintf("I have nothing on %s yet", args[0]))
			return nil
		}
		c.send(rows[0].Text)
		return nil
	}

	rows, err := store.LatestPerBuilder()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		c.send("nothing to report yet")
		return nil
	}
	for _, row := range rows {
		c.send(row.Text)
	}
	return nil
}

func (c *Contact) cmdLast(args []string) error {
	store := c.session.store
	if store == nil {
		c.send("no notification history is configured")
		return nil
	}

	var (
		recent []history.Notification
		err    error
	)
	if len(args) > 0 {
		recent, err = store.RecentForBuilder(args[0], 3)
	} else {
		recent, err = store.Recent(3)
	}
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		c.send("nothing to report yet")
		return nil
	}
	for _, row := range recent {
		c.send(fmt.Sprintf("last: %s", row.Text))
	}
	return nil
}

func (c *Contact) cmdForce(args []string) error {
	if !c.session.cfg.AllowForce.Bool() {
		return usageErrorf("force is not allowed here")
	}
	if c.session.control == nil {
		return usageErrorf("build control is not available")
	}
	if len(args) < 2 || args[0] != "build" {
		return usageErrorf("try 'force build <builder> [reason]'")
	}
	builder := args[1]
	reason := strings.Join(args[2:], " ")
	if reason == "" {
		reason = fmt.Sprintf("forced by %s on %s", c.user, c.dest())
	}
	if err := c.session.control.ForceBuild(builder, reason, "", ""); err != nil {
		return err
	}
	c.send(fmt.Sprintf("build of %s forced", builder))
	return nil
}

func (c *Contact) cmdStop(args []string) error {
	if !c.session.cfg.AllowForce.Bool() {
		return usageErrorf("stop is not allowed here")
	}
	if c.session.control == nil {
		return usageErrorf("build control is not available")
	}
	if len(args) < 2 || args[0] != "build" {
		return usageErrorf("try 'stop build <builder> [reason]'")
	}
	builder := args[1]
	reason := strings.Join(args[2:], " ")
	if reason == "" {
		reason = fmt.Sprintf("stopped by %s on %s", c.user, c.dest())
	}
	if err := c.session.control.StopBuild(builder, reason); err != nil {
		return err
	}
	c.send(fmt.Sprintf("build of %s interrupted", builder))
	return nil
}

func (c *Contact) cmdShutdown() error {
	if !c.session.cfg.AllowShutdown.Bool() {
		return usageErrorf("shutdown is not allowed here")
	}
	if c.session.control == nil {
		return usageErrorf("build control is not available")
	}
	if err := c.session.control.Shutdown(); err != nil {
		return err
	}
	c.send("shutting down the build master")
	return nil
}

// HandleAction answers /me actions aimed at the bot. Only actions of
// the form "<verb>s <nick>" get a retort.
func (c *Contact) HandleAction(data string) {
	if !strings.HasSuffix(data, "s "+c.session.nickname) {
		return
	}
	words := strings.Fields(data)
	if len(words) < 2 {
		return
	}
	verb := words[len(words)-2]
	if verb == "kicks" {
		c.act("kicks back")
		return
	}
	c.act(fmt.Sprintf("%s %s too", verb, c.user))
}
