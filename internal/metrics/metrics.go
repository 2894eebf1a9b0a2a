package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the back office.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	InvoicesIssued    prometheus.Counter
	PaymentsRecorded  *prometheus.CounterVec
	SyncRuns          *prometheus.CounterVec
	EmailsSent        *prometheus.CounterVec
	DomainsRegistered prometheus.Counter
}

// New creates the metrics and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_http_requests_total",
			Help: "Total number of HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "backoffice_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		InvoicesIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "backoffice_invoices_issued_total",
			Help: "Total number of invoices issued",
		}),
		PaymentsRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_payments_recorded_total",
			Help: "Total number of payments recorded by method and status",
		}, []string{"method", "status"}),
		SyncRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_sync_runs_total",
			Help: "Total number of hosting and TLD price sync runs",
		}, []string{"kind", "result"}),
		EmailsSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_emails_sent_total",
			Help: "Total number of delivery attempts for queued emails",
		}, []string{"result"}),
		DomainsRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "backoffice_domains_registered_total",
			Help: "Total number of domains registered or renewed through a registrar",
		}),
	}
}

func (m *Metrics) ObserveHTTP(route, method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, status).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func (m *Metrics) IncrementInvoicesIssued() {
	if m == nil {
		return
	}
	m.InvoicesIssued.Inc()
}

func (m *Metrics) IncrementPayments(method, status string) {
	if m == nil {
		return
	}
	m.PaymentsRecorded.WithLabelValues(method, status).Inc()
}

// IncrementSyncRuns kind is hosting or tld_price
func (m *Metrics) IncrementSyncRuns(kind string, err error) {
	if m == nil {
		return
	}
	m.SyncRuns.WithLabelValues(kind, result(err)).Inc()
}

func (m *Metrics) IncrementEmailsSent(err error) {
	if m == nil {
		return
	}
	m.EmailsSent.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) IncrementDomainsRegistered() {
	if m == nil {
		return
	}
	m.DomainsRegistered.Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
