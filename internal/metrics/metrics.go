// Package metrics holds the Prometheus collectors the server exports on
// /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry        *prometheus.Registry
	requestCounter  *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	salesRecorded   prometheus.Counter
	saleRevenue     prometheus.Counter
	backorderedLine prometheus.Counter
	restocks        prometheus.Counter
	assistantCalls  *prometheus.CounterVec
}

// New registers every collector on a fresh registry so several instances can
// live side by side in tests.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartseller_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smartseller_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		salesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartseller_sales_recorded_total",
			Help: "Sales committed to the store",
		}),
		saleRevenue: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartseller_sales_revenue_total",
			Help: "Sum of committed sale totals",
		}),
		backorderedLine: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartseller_sales_backordered_lines_total",
			Help: "Sale lines that left a product with negative stock",
		}),
		restocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartseller_restocks_total",
			Help: "Restock operations committed to the store",
		}),
		assistantCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartseller_assistant_calls_total",
				Help: "Assistant calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestCounter,
		m.requestLatency,
		m.salesRecorded,
		m.saleRevenue,
		m.backorderedLine,
		m.restocks,
		m.assistantCalls,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, endpoint string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestCounter.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

func (m *Metrics) SaleRecorded(total float64, backordered int) {
	if m == nil {
		return
	}
	m.salesRecorded.Inc()
	if total > 0 {
		m.saleRevenue.Add(total)
	}
	if backordered > 0 {
		m.backorderedLine.Add(float64(backordered))
	}
}

func (m *Metrics) Restocked() {
	if m == nil {
		return
	}
	m.restocks.Inc()
}

// AssistantCall counts one interpreter round trip by outcome, for example
// "ok", "cached" or "failed".
func (m *Metrics) AssistantCall(operation, outcome string) {
	if m == nil {
		return
	}
	m.assistantCalls.WithLabelValues(operation, outcome).Inc()
}
