// Package config loads and validates the notification bot configuration.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the bot configuration. It is immutable after Load.
type Config struct {
	// Network target
	Host string `yaml:"host" toml:"host" json:"host" env:"IRCSTATUS_HOST" validate:"required"`
	Port int    `yaml:"port" toml:"port" json:"port" env:"IRCSTATUS_PORT" validate:"min=1,max=65535"`

	// Identity
	Nickname string `yaml:"nickname" toml:"nickname" json:"nickname" env:"IRCSTATUS_NICKNAME" validate:"required"`
	Password string `yaml:"password" toml:"password" json:"password" env:"IRCSTATUS_PASSWORD"`

	// Channels to join and nicks to proactively open conversations with
	Channels  []Channel `yaml:"channels" toml:"channels" json:"channels"`
	PMToNicks []string  `yaml:"pm_to_nicks" toml:"pm_to_nicks" json:"pm_to_nicks" env:"IRCSTATUS_PM_TO_NICKS"`

	// Operator capability flags. These must be literal booleans in the
	// source document; "yes"/1 and friends are configuration errors.
	AllowForce    StrictBool `yaml:"allowForce" toml:"allowForce" json:"allowForce"`
	AllowShutdown StrictBool `yaml:"allowShutdown" toml:"allowShutdown" json:"allowShutdown"`

	// Event kinds to notify contacts about
	Tags []string `yaml:"tags" toml:"tags" json:"tags" env:"IRCSTATUS_TAGS"`
	// Deprecated alias for Tags, still accepted
	Categories []string `yaml:"categories" toml:"categories" json:"categories"`

	// Behavior flags
	NoticeOnChannel bool `yaml:"noticeOnChannel" toml:"noticeOnChannel" json:"noticeOnChannel" env:"IRCSTATUS_NOTICE_ON_CHANNEL"`
	UseRevisions    bool `yaml:"useRevisions" toml:"useRevisions" json:"useRevisions" env:"IRCSTATUS_USE_REVISIONS"`
	ShowBlameList   bool `yaml:"showBlameList" toml:"showBlameList" json:"showBlameList" env:"IRCSTATUS_SHOW_BLAME_LIST"`
	UseColors       bool `yaml:"useColors" toml:"useColors" json:"useColors" env:"IRCSTATUS_USE_COLORS"`
	UseSSL          bool `yaml:"useSSL" toml:"useSSL" json:"useSSL" env:"IRCSTATUS_USE_SSL"`

	// Reconnect delays. Zero means "use the default jittered policy".
	LostDelay   Duration `yaml:"lostDelay" toml:"lostDelay" json:"lostDelay"`
	FailedDelay Duration `yaml:"failedDelay" toml:"failedDelay" json:"failedDelay"`

	// History database DSN; empty disables the notification log
	HistoryDSN string `yaml:"historyDSN" toml:"historyDSN" json:"historyDSN" env:"IRCSTATUS_HISTORY_DSN"`

	// Configuration source for diagnostics
	Source string `yaml:"-" toml:"-" json:"-"`
}

// Channel is one channel entry: either a bare name or a name with a
// join key.
type Channel struct {
	Name string
	Key  string
}

// UnmarshalYAML accepts either a bare channel name or a
// {channel, password} mapping.
func (c *Channel) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&c.Name)
	}
	var aux struct {
		Channel  string `yaml:"channel"`
		Password string `yaml:"password"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	c.Name = aux.Channel
	c.Key = aux.Password
	return nil
}

// UnmarshalTOML accepts either a bare channel name or a
// {channel, password} table.
func (c *Channel) UnmarshalTOML(data interface{}) error {
	switch v := data.(type) {
	case string:
		c.Name = v
		return nil
	case map[string]interface{}:
		if name, ok := v["channel"].(string); ok {
			c.Name = name
		}
		if key, ok := v["password"].(string); ok {
			c.Key = key
		}
		return nil
	}
	return fmt.Errorf("channel entry must be a string or a {channel, password} table, got %T", data)
}

// UnmarshalJSON accepts either a bare channel name or a
// {channel, password} object.
func (c *Channel) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		c.Name = name
		return nil
	}
	var aux struct {
		Channel  string `json:"channel"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.Name = aux.Channel
	c.Key = aux.Password
	return nil
}

// StrictBool is a boolean that rejects any non-boolean encoding at
// parse time, so flag typos surface before a connection is attempted.
type StrictBool bool

// Bool returns the underlying value
func (b StrictBool) Bool() bool { return bool(b) }

// UnmarshalYAML implements strict boolean decoding for YAML
func (b *StrictBool) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode || value.Tag != "!!bool" {
		return fmt.Errorf("value must be boolean, not %q", value.Value)
	}
	var v bool
	if err := value.Decode(&v); err != nil {
		return err
	}
	*b = StrictBool(v)
	return nil
}

// UnmarshalTOML implements strict boolean decoding for TOML
func (b *StrictBool) UnmarshalTOML(data interface{}) error {
	v, ok := data.(bool)
	if !ok {
		return fmt.Errorf("value must be boolean, not %v", data)
	}
	*b = StrictBool(v)
	return nil
}

// UnmarshalJSON implements strict boolean decoding for JSON
func (b *StrictBool) UnmarshalJSON(data []byte) error {
	s := string(data)
	switch s {
	case "true":
		*b = true
	case "false":
		*b = false
	default:
		return fmt.Errorf("value must be boolean, not %s", s)
	}
	return nil
}

// Duration accepts either a bare number of seconds or a Go duration
// string such as "90s".
type Duration time.Duration

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration { return time.Duration(d) }

func parseDurationValue(s string) (Duration, error) {
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Duration(time.Duration(secs) * time.Second), nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return Duration(dur), nil
}

// UnmarshalYAML decodes a duration from seconds or a duration string
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}
	v, err := parseDurationValue(value.Value)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// UnmarshalTOML decodes a duration from seconds or a duration string
func (d *Duration) UnmarshalTOML(data interface{}) error {
	switch v := data.(type) {
	case int64:
		*d = Duration(time.Duration(v) * time.Second)
		return nil
	case float64:
		*d = Duration(time.Duration(v * float64(time.Second)))
		return nil
	case string:
		parsed, err := parseDurationValue(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	}
	return fmt.Errorf("duration must be a number of seconds or a duration string, got %T", data)
}

// UnmarshalJSON decodes a duration from seconds or a duration string
func (d *Duration) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := parseDurationValue(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Load loads configuration from a file or URL, applies environment
// overrides, and validates the result. Any error here is fatal: the bot
// must not start with a broken configuration.
func Load(source string) (*Config, error) {
	cfg := New()
	cfg.Source = source

	if err := cfg.loadFromSource(source); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// New returns a Config populated with defaults. Every instance gets its
// own values; nothing is shared at the type level.
func New() *Config {
	return &Config{
		Port:      6667,
		UseColors: true,
	}
}

// loadFromSource loads configuration from a file or URL
func (c *Config) loadFromSource(source string) error {
	var data []byte
	var err error

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		resp, err := http.Get(source)
		if err != nil {
			return fmt.Errorf("failed to load config from URL: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("failed to load config from URL, status: %s", resp.Status)
		}

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read config from URL: %v", err)
		}
	} else {
		data, err = os.ReadFile(source)
		if err != nil {
			return fmt.Errorf("failed to read config file: %v", err)
		}
	}

	switch {
	case strings.HasSuffix(source, ".yaml") || strings.HasSuffix(source, ".yml"):
		err = yaml.Unmarshal(data, c)
	case strings.HasSuffix(source, ".toml"):
		err = toml.Unmarshal(data, c)
	case strings.HasSuffix(source, ".json"):
		err = json.Unmarshal(data, c)
	default:
		err = yaml.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config: %v", err)
	}

	c.Source = source
	return nil
}

// Validate checks the configuration and resolves the deprecated
// categories alias. It must be called before the config is used.
func (c *Config) Validate() error {
	if len(c.Categories) > 0 {
		log.Printf("WARNING: categories are deprecated and should be replaced with 'tags'")
		if len(c.Tags) == 0 {
			c.Tags = c.Categories
		}
		c.Categories = nil
	}

	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	for _, ch := range c.Channels {
		if ch.Name == "" {
			return fmt.Errorf("invalid configuration: channel entry with empty name")
		}
	}
	if c.LostDelay < 0 {
		return fmt.Errorf("invalid configuration: lostDelay must be positive")
	}
	if c.FailedDelay < 0 {
		return fmt.Errorf("invalid configuration: failedDelay must be positive")
	}
	return nil
}
