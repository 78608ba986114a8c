package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// Events counts event bus deliveries by kind and outcome.
	Events *prometheus.CounterVec
	// Reservations counts accepted reservations by contract type.
	Reservations *prometheus.CounterVec
	// ERPSync counts external sync attempts by document and outcome.
	ERPSync *prometheus.CounterVec
	// InvoicesGenerated counts invoices created from reservations.
	InvoicesGenerated prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contractdesk_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contractdesk_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contractdesk_events_total",
		Help: "Event bus deliveries by kind and outcome.",
	}, []string{"kind", "outcome"})
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contractdesk_reservations_total",
		Help: "Accepted contract reservations by contract type.",
	}, []string{"contract_type"})
	erpSync := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contractdesk_erp_sync_total",
		Help: "External ERP sync attempts by document and outcome.",
	}, []string{"document", "outcome"})
	invoices := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "contractdesk_invoices_generated_total",
		Help: "Invoices generated from contract reservations.",
	})
	registry.MustRegister(
		requests, duration, events, reservations, erpSync, invoices,
		collectors.NewGoCollector(),
	)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		Events:            events,
		Reservations:      reservations,
		ERPSync:           erpSync,
		InvoicesGenerated: invoices,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// ObserveERPSync records the outcome of one sync attempt. Safe on a nil receiver.
func (m *Metrics) ObserveERPSync(document string, err error) {
	if m == nil {
		return
	}
	outcome := "synced"
	if err != nil {
		outcome = "failed"
	}
	m.ERPSync.WithLabelValues(document, outcome).Inc()
}

// ObserveReservation records an accepted reservation. Safe on a nil receiver.
func (m *Metrics) ObserveReservation(contractType string) {
	if m == nil {
		return
	}
	m.Reservations.WithLabelValues(contractType).Inc()
}

// ObserveInvoiceGenerated records a generated invoice. Safe on a nil receiver.
func (m *Metrics) ObserveInvoiceGenerated() {
	if m == nil {
		return
	}
	m.InvoicesGenerated.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
