package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	connectionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "h1",
			Subsystem: "link",
			Name:      "connections_open",
			Help:      "Connections currently registered.",
		},
	)
	connectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "h1",
			Subsystem: "link",
			Name:      "connections_total",
			Help:      "Connections accepted, by transport.",
		},
		[]string{"transport"},
	)
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "h1",
			Subsystem: "link",
			Name:      "frames_total",
			Help:      "Frames decoded or dropped, by direction and type.",
		},
		[]string{"direction", "type"},
	)
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "h1",
			Subsystem: "command",
			Name:      "requests_total",
			Help:      "Commands dispatched, by command and reply status.",
		},
		[]string{"command", "status"},
	)
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "h1",
			Subsystem: "command",
			Name:      "duration_seconds",
			Help:      "Command handling duration in seconds, including any streamed transfer.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	streamedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "h1",
			Subsystem: "transfer",
			Name:      "bytes_total",
			Help:      "Payload bytes sent in chunked transfers.",
		},
	)
	transferErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "h1",
			Subsystem: "transfer",
			Name:      "errors_total",
			Help:      "Chunked transfers cut short by a read or write failure.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(connectionsOpen, connectionsTotal, framesTotal,
			commandsTotal, commandDuration, streamedBytes, transferErrors)
	})
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func ConnectionOpened(transport string) {
	RegisterMetrics()
	connectionsOpen.Inc()
	connectionsTotal.WithLabelValues(transport).Inc()
}

func ConnectionClosed() {
	RegisterMetrics()
	connectionsOpen.Dec()
}

// RecordFrame counts a frame. direction is "in", "out" or "dropped".
func RecordFrame(direction, frameType string) {
	RegisterMetrics()
	framesTotal.WithLabelValues(direction, frameType).Inc()
}

// RecordCommand counts one dispatched command. An unidentified command is
// recorded under the empty name.
func RecordCommand(command string, status int, duration time.Duration) {
	RegisterMetrics()
	commandsTotal.WithLabelValues(command, strconv.Itoa(status)).Inc()
	commandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

func RecordTransfer(bytes int64, failed bool) {
	RegisterMetrics()
	streamedBytes.Add(float64(bytes))
	if failed {
		transferErrors.Inc()
	}
}
