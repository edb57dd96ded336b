package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "framelink"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"endpoint", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "path", "status"},
	)
	channelMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "messages_total",
			Help:      "Channel messages by direction and kind.",
		},
		[]string{"endpoint", "direction", "kind"},
	)
	channelDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "dropped_total",
			Help:      "Inbound channel messages dropped by the filter pipeline.",
		},
		[]string{"endpoint", "reason"},
	)
	channelRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "requests_total",
			Help:      "Channel requests by terminal outcome.",
		},
		[]string{"endpoint", "outcome"},
	)
	channelRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "request_duration_seconds",
			Help:      "Time from request send to response.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	channelStatus = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "status_transitions_total",
			Help:      "Link status transitions by target status.",
		},
		[]string{"endpoint", "status"},
	)
	channelBuffered = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "buffered_messages",
			Help:      "Application sends held until the link connects.",
		},
		[]string{"endpoint"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			channelMessages,
			channelDropped,
			channelRequests,
			channelRequestDuration,
			channelStatus,
			channelBuffered,
		)
	})
}

func RecordHTTPRequest(endpoint, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(endpoint, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(endpoint, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordMessage counts one message. direction is "in" or "out".
func RecordMessage(endpoint, direction, kind string) {
	RegisterMetrics()
	channelMessages.WithLabelValues(endpoint, direction, kind).Inc()
}

func RecordDropped(endpoint, reason string) {
	RegisterMetrics()
	channelDropped.WithLabelValues(endpoint, reason).Inc()
}

// RecordRequest counts a settled request. duration is only observed for
// successful outcomes.
func RecordRequest(endpoint, outcome string, duration time.Duration) {
	RegisterMetrics()
	channelRequests.WithLabelValues(endpoint, outcome).Inc()
	if outcome == "success" {
		channelRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	}
}

func RecordStatus(endpoint, status string) {
	RegisterMetrics()
	channelStatus.WithLabelValues(endpoint, status).Inc()
}

func SetBuffered(endpoint string, n int) {
	RegisterMetrics()
	channelBuffered.WithLabelValues(endpoint).Set(float64(n))
}
