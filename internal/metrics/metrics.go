package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	VisitsRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "visits_recorded_total",
		Help: "Visits written to the store.",
	})
	RecordFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "visit_record_failures_total",
		Help: "Visit writes that failed, by reason.",
	}, []string{"reason"})
	VisitReads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "visit_reads_total",
		Help: "Recent-visit queries issued.",
	})
	ReadFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "visit_read_failures_total",
		Help: "Recent-visit queries that failed.",
	})
	StoreOpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_op_duration_seconds",
		Help:    "Latency of store operations.",
		Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2, 5},
	}, []string{"op"})
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "api_rate_limited_total",
		Help: "API requests rejected by the per-client rate limit.",
	})
)

func init() {
	prometheus.MustRegister(VisitsRecorded, RecordFailures, VisitReads, ReadFailures, StoreOpDuration, HTTPRequests, RateLimited)
}

func Handler(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}
