package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	FeederSubsystem       = "feeder"
	NotificationSubsystem = "notification"
)

var (
	decisionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: FeederSubsystem,
			Name:      "decision_total",
			Help:      "Counter of feeding decisions broken out by outcome and reason.",
		},
		[]string{"outcome", "reason"},
	)

	dispatchCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: FeederSubsystem,
			Name:      "dispatch_total",
			Help:      "Counter of successful feed dispatches broken out by origin.",
		},
		[]string{"origin"},
	)

	dispatchFailureCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: FeederSubsystem,
			Name:      "dispatch_failure_total",
			Help:      "Counter of failed dispatch steps.",
		},
		[]string{"step"},
	)

	queueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Subsystem: FeederSubsystem,
			Name:      "reservation_queue_length",
			Help:      "Number of pending reservations observed by the last decision.",
		},
	)

	notificationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: NotificationSubsystem,
			Name:      "sent_total",
			Help:      "Counter of notification deliveries broken out by channel and result.",
		},
		[]string{"channel", "result"},
	)
)

// Registry holds every feeder collector. It is separate from the global
// default registry so tests can construct routers repeatedly.
var Registry = prometheus.NewRegistry()

var registerMetrics sync.Once

// Register registers all collectors with Registry exactly once.
func Register(customCollectors ...prometheus.Collector) {
	registerMetrics.Do(func() {
		Registry.MustRegister(decisionCounter)
		Registry.MustRegister(dispatchCounter)
		Registry.MustRegister(dispatchFailureCounter)
		Registry.MustRegister(queueLength)
		Registry.MustRegister(notificationCounter)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		for _, c := range customCollectors {
			Registry.MustRegister(c)
		}
	})
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordDecision counts one decision of the engine.
func RecordDecision(outcome, reason string) {
	decisionCounter.WithLabelValues(outcome, reason).Inc()
}

// RecordDispatch counts one successful dispatch.
func RecordDispatch(origin string) {
	dispatchCounter.WithLabelValues(origin).Inc()
}

// RecordDispatchFailure counts a failed dispatch step.
func RecordDispatchFailure(step string) {
	dispatchFailureCounter.WithLabelValues(step).Inc()
}

// SetQueueLength records the pending reservation count.
func SetQueueLength(n int) {
	queueLength.Set(float64(n))
}

// RecordNotification counts one delivery attempt on a channel.
func RecordNotification(channel string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	notificationCounter.WithLabelValues(channel, result).Inc()
}
