// Package bot implements an IRC client that relays build status events
// to operators and accepts their commands back over the same channels.
package bot

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/presbrey/ircstatus/bot/config"
	"github.com/presbrey/ircstatus/events"
	"github.com/presbrey/ircstatus/history"
)

// TLSProvider supplies the client TLS configuration when useSSL is
// requested. A nil provider with useSSL set is a fatal configuration
// error.
type TLSProvider func(host string) (*tls.Config, error)

// DefaultTLSProvider returns a standard client TLS configuration
func DefaultTLSProvider(host string) (*tls.Config, error) {
	return &tls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
	}, nil
}

// Option customizes service construction
type Option func(*serviceOptions)

type serviceOptions struct {
	tlsProvider TLSProvider
	bus         *events.Bus
	store       *history.Store
}

// WithTLSProvider replaces the TLS configuration source. Passing nil
// removes TLS capability entirely, making useSSL a configuration error.
func WithTLSProvider(p TLSProvider) Option {
	return func(o *serviceOptions) { o.tlsProvider = p }
}

// WithBus substitutes the build-event bus
func WithBus(bus *events.Bus) Option {
	return func(o *serviceOptions) { o.bus = bus }
}

// WithStore substitutes the notification history store
func WithStore(store *history.Store) Option {
	return func(o *serviceOptions) { o.store = store }
}

// Service is the top-level notification service: it holds the
// configuration, selects the transport, wires the external Control
// capability, and exposes start/stop to its parent.
type Service struct {
	cfg        *config.Config
	bus        *events.Bus
	store      *history.Store
	supervisor *Supervisor
}

// NewService validates the configuration and constructs the service.
// All configuration errors surface here, before any network activity.
func NewService(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &serviceOptions{
		tlsProvider: DefaultTLSProvider,
		bus:         events.NewBus(),
	}
	for _, opt := range opts {
		opt(o)
	}

	var tlsConfig *tls.Config
	if cfg.UseSSL {
		if o.tlsProvider == nil {
			return nil, fmt.Errorf("useSSL requires TLS support")
		}
		tc, err := o.tlsProvider(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("failed to build TLS configuration: %w", err)
		}
		tlsConfig = tc
	}

	if o.store == nil && cfg.HistoryDSN != "" {
		store, err := history.Open(cfg.HistoryDSN)
		if err != nil {
			return nil, err
		}
		o.store = store
	}

	svc := &Service{
		cfg:   cfg,
		bus:   o.bus,
		store: o.store,
	}
	svc.supervisor = newSupervisor(cfg, tlsConfig, o.bus, o.store)
	return svc, nil
}

// AttachControl wires the external build-control capability into the
// supervisor. It is honored only when allowForce is configured.
func (s *Service) AttachControl(ctl Control) {
	if s.cfg.AllowForce.Bool() {
		s.supervisor.setControl(ctl)
	}
}

// Config returns the service configuration
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Bus returns the build-event bus publishers should use
func (s *Service) Bus() *events.Bus {
	return s.bus
}

// History returns the notification history store, or nil
func (s *Service) History() *history.Store {
	return s.store
}

// Supervisor returns the connection supervisor
func (s *Service) Supervisor() *Supervisor {
	return s.supervisor
}

// Start begins connecting
func (s *Service) Start() error {
	return s.supervisor.Start()
}

// Stop shuts the supervisor down and waits until the underlying
// transport confirms closure, or the context expires.
func (s *Service) Stop(ctx context.Context) error {
	s.supervisor.Shutdown()
	select {
	case <-s.supervisor.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
