package metrics

import (
	"strconv"

	"github.com/contre95/mdlive/src/features/reload"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Long-poll outcomes recorded by the page handler.
const (
	LongPollChanged  = "changed"
	LongPollTimeout  = "timeout"
	LongPollSpurious = "spurious"
	LongPollGone     = "gone"
)

// Metrics groups the server's prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	longPolls     *prometheus.CounterVec
	digests       *prometheus.CounterVec
	subscriptions prometheus.Gauge
	events        *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mdlive",
			Name:      "http_requests_total",
			Help:      "HTTP responses by kind of resource and status code.",
		}, []string{"kind", "status"}),
		longPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mdlive",
			Name:      "long_polls_total",
			Help:      "Completed reload long polls by outcome.",
		}, []string{"outcome"}),
		digests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mdlive",
			Name:      "digest_lookups_total",
			Help:      "Digest cache lookups, split between cache hits and recomputations.",
		}, []string{"result"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mdlive",
			Name:      "active_subscriptions",
			Help:      "Reload subscriptions currently registered.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mdlive",
			Name:      "watch_events_total",
			Help:      "Filesystem events dispatched by kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.longPolls,
		m.digests,
		m.subscriptions,
		m.events,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Request records a served response.
func (m *Metrics) Request(kind string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(kind, strconv.Itoa(status)).Inc()
}

// LongPoll records how a reload wait ended.
func (m *Metrics) LongPoll(outcome string) {
	if m == nil {
		return
	}
	m.longPolls.WithLabelValues(outcome).Inc()
}

// DigestHit implements digest.Observer.
func (m *Metrics) DigestHit() {
	if m == nil {
		return
	}
	m.digests.WithLabelValues("hit").Inc()
}

// DigestComputed implements digest.Observer.
func (m *Metrics) DigestComputed() {
	if m == nil {
		return
	}
	m.digests.WithLabelValues("computed").Inc()
}

// SubscriptionsChanged implements reload.Observer.
func (m *Metrics) SubscriptionsChanged(delta int) {
	if m == nil {
		return
	}
	m.subscriptions.Add(float64(delta))
}

// EventDispatched implements reload.Observer.
func (m *Metrics) EventDispatched(kind reload.EventKind, notified int) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(string(kind)).Inc()
}
