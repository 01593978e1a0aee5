// Package admind exposes the bot's operational surface over HTTP: a
// status view, the notification history, Prometheus metrics, and an
// ingress endpoint the build system posts events to.
package admind

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/presbrey/ircstatus/bot"
	"github.com/presbrey/ircstatus/events"
)

// Server serves the admin HTTP endpoints for one bot service.
type Server struct {
	svc *bot.Service

	echoServer *echo.Echo
	onceSetup  sync.Once
	started    time.Time
}

// New wraps a bot service with the admin HTTP surface
func New(svc *bot.Service) *Server {
	return &Server{svc: svc}
}

func (s *Server) setup() {
	s.onceSetup.Do(func() {
		e := echo.New()
		e.HideBanner = true
		e.HidePort = true
		e.Validator = newValidator()
		e.Use(middleware.Recover())
		s.route(e)
		s.echoServer = e
		s.started = time.Now()
	})
}

func (s *Server) route(e *echo.Echo) {
	e.GET("/status", s.handleStatus)
	e.GET("/history", s.handleHistory)
	e.POST("/events", s.handlePostEvent)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(
		bot.Registry,
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	)))
}

// Start runs the admin HTTP server on addr, blocking until shutdown
func (s *Server) Start(addr string) error {
	s.setup()
	return s.echoServer.Start(addr)
}

// Shutdown gracefully stops the admin HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.echoServer == nil {
		return nil
	}
	return s.echoServer.Shutdown(ctx)
}

// Echo returns the underlying router; tests drive handlers through it
func (s *Server) Echo() *echo.Echo {
	s.setup()
	return s.echoServer
}

type statusResponse struct {
	State          string     `json:"state"`
	Nickname       string     `json:"nickname"`
	Host           string     `json:"host"`
	Port           int        `json:"port"`
	ConnectedSince *time.Time `json:"connected_since,omitempty"`
	UptimeSeconds  float64    `json:"uptime_seconds"`
}

func (s *Server) handleStatus(c echo.Context) error {
	cfg := s.svc.Config()
	sup := s.svc.Supervisor()

	resp := statusResponse{
		State:         sup.State().String(),
		Nickname:      cfg.Nickname,
		Host:          cfg.Host,
		Port:          cfg.Port,
		UptimeSeconds: time.Since(s.started).Seconds(),
	}
	if since := sup.ConnectedSince(); !since.IsZero() {
		resp.ConnectedSince = &since
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHistory(c echo.Context) error {
	store := s.svc.History()
	if store == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no notification history is configured")
	}

	limit := 25
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
	}
	if limit < 1 || limit > 500 {
		return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 500")
	}

	builder := c.QueryParam("builder")
	rows, err := func() (interface{}, error) {
		if builder != "" {
			return store.RecentForBuilder(builder, limit)
		}
		return store.Recent(limit)
	}()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rows)
}

type eventRequest struct {
	Kind     string   `json:"kind" validate:"required"`
	Builder  string   `json:"builder" validate:"required"`
	Number   int      `json:"number" validate:"min=0"`
	Result   string   `json:"result"`
	Branch   string   `json:"branch"`
	Revision string   `json:"revision"`
	Blame    []string `json:"blame"`
}

func (s *Server) handlePostEvent(c echo.Context) error {
	var req eventRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	kind := events.Kind(req.Kind)
	if !events.ValidKind(kind) {
		return echo.NewHTTPError(http.StatusBadRequest, "unrecognized event kind: "+req.Kind)
	}

	ev := events.Event{
		Kind:     kind,
		Builder:  req.Builder,
		Number:   req.Number,
		Result:   req.Result,
		Branch:   req.Branch,
		Revision: req.Revision,
		Blame:    req.Blame,
	}
	s.svc.Bus().Publish(ev)
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

// structValidator adapts go-playground/validator for echo. Error
// messages use JSON field names rather than Go struct field names.
type structValidator struct {
	validate *validator.Validate
}

func newValidator() *structValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &structValidator{validate: v}
}

func (sv *structValidator) Validate(i interface{}) error {
	if err := sv.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
