package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SendAttempts counts every hand-off to a transport, by transport name.
	SendAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailnotify_send_attempts_total",
		Help: "Total number of transport send attempts",
	}, []string{"transport"})
	// SendRetries counts failed attempts that were followed by another attempt.
	SendRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailnotify_send_retries_total",
		Help: "Total number of attempts that were followed by a retry",
	}, []string{"transport"})
	// MessagesSent counts messages whose final attempt succeeded.
	MessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailnotify_messages_sent_total",
		Help: "Total number of messages delivered successfully",
	}, []string{"transport"})
	// MessagesFailed counts messages that exhausted their attempts.
	MessagesFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailnotify_messages_failed_total",
		Help: "Total number of messages that failed after all attempts",
	}, []string{"transport"})
	// Notifications is keyed by notice kind and result (sent/failed/invalid).
	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailnotify_notifications_total",
		Help: "Total number of composed notifications by kind and result",
	}, []string{"kind", "result"})
	// MessagesQueued counts jobs accepted by a queue.Manager.
	MessagesQueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mailnotify_queue_enqueued_total",
		Help: "Total number of messages accepted by the dispatch queue",
	})
	// MessagesDropped counts jobs a queue.Manager refused or gave up on.
	MessagesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mailnotify_queue_dropped_total",
		Help: "Total number of messages rejected by the dispatch queue",
	})
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mailnotify_queue_depth",
		Help: "Current number of messages waiting in the dispatch queue",
	})
)

func init() {
	prometheus.MustRegister(SendAttempts)
	prometheus.MustRegister(SendRetries)
	prometheus.MustRegister(MessagesSent)
	prometheus.MustRegister(MessagesFailed)
	prometheus.MustRegister(Notifications)
	prometheus.MustRegister(MessagesQueued)
	prometheus.MustRegister(MessagesDropped)
	prometheus.MustRegister(queueDepth)
}

// SetQueueDepth records the current queue depth.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// Handler returns an http.Handler exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ResetForTests clears counters; intended for use in tests only.
func ResetForTests() {
	SendAttempts.Reset()
	SendRetries.Reset()
	MessagesSent.Reset()
	MessagesFailed.Reset()
	Notifications.Reset()
	queueDepth.Set(0)
}
