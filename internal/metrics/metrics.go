package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the journal service.
// Every recording method is safe on a nil *Metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec   // labels: method, route, status
	RequestDuration *prometheus.HistogramVec // labels: route

	// Price resolution
	PriceResolutions *prometheus.CounterVec // labels: source
	PriceFeedErrors  *prometheus.CounterVec // labels: feed
	PriceFeedLatency *prometheus.HistogramVec

	// Journal writes
	TradesRecorded     prometheus.Counter
	ExecutionsRecorded prometheus.Counter

	gatherer prometheus.Gatherer
}

// New creates the metrics and registers them on reg. A nil reg selects a
// fresh private registry, which keeps tests independent of each other.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journal_http_requests_total",
			Help: "HTTP requests served, by route template and status code",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "journal_http_request_duration_seconds",
			Help:    "HTTP request latency by route template",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),

		PriceResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journal_price_resolutions_total",
			Help: "Resolved prices by the source that produced them",
		}, []string{"source"}),
		PriceFeedErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journal_price_feed_errors_total",
			Help: "Failed live price fetches by feed",
		}, []string{"feed"}),
		PriceFeedLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "journal_price_feed_duration_seconds",
			Help:    "Live price fetch latency by feed",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"feed"}),

		TradesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "journal_trades_recorded_total",
			Help: "Trades appended to the journal",
		}),
		ExecutionsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "journal_exit_executions_recorded_total",
			Help: "Scale-out steps recorded as executed",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.PriceResolutions,
		m.PriceFeedErrors,
		m.PriceFeedLatency,
		m.TradesRecorded,
		m.ExecutionsRecorded,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) PriceResolved(source string) {
	if m == nil {
		return
	}
	m.PriceResolutions.WithLabelValues(source).Inc()
}

func (m *Metrics) FeedFetched(feed string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.PriceFeedLatency.WithLabelValues(feed).Observe(elapsed.Seconds())
	if err != nil {
		m.PriceFeedErrors.WithLabelValues(feed).Inc()
	}
}

func (m *Metrics) TradeRecorded() {
	if m == nil {
		return
	}
	m.TradesRecorded.Inc()
}

func (m *Metrics) ExecutionRecorded() {
	if m == nil {
		return
	}
	m.ExecutionsRecorded.Inc()
}
