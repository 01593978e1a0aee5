package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registry is the Prometheus registry used by this package
	Registry = prometheus.NewRegistry()

	connectsTotal = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "ircstatus_connects_total",
		Help: "Successful IRC connections established",
	})

	disconnectsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "ircstatus_disconnects_total",
		Help: "Connection terminations by cause",
	}, []string{"cause"})

	reconnectsScheduled = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "ircstatus_reconnects_scheduled_total",
		Help: "Reconnection attempts scheduled",
	})

	messagesSent = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "ircstatus_messages_sent_total",
		Help: "Outbound sends by kind",
	}, []string{"kind"})

	messagesReceived = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "ircstatus_messages_received_total",
		Help: "Inbound messages by kind",
	}, []string{"kind"})

	commandsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "ircstatus_commands_total",
		Help: "Operator commands handled",
	}, []string{"command"})

	connectionState = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Name: "ircstatus_connected",
		Help: "1 while a session is live, 0 otherwise",
	})
)
