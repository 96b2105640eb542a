package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Requests counts /make_face calls by result: ok|error.
	Requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "likeface_requests_total",
			Help: "Total number of face generation requests by result",
		},
		[]string{"result"},
	)
	StageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "likeface_stage_duration_seconds",
			Help:    "Duration of each face pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms..20s
		},
		[]string{"stage"},
	)
	StageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "likeface_stage_errors_total",
			Help: "Face pipeline failures by stage",
		},
		[]string{"stage"},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "likeface_http_requests_total",
			Help: "HTTP requests served by method and status code",
		},
		[]string{"method", "code"},
	)
)

func init() {
	prometheus.MustRegister(
		Requests,
		StageDurationSeconds,
		StageErrors,
		HTTPRequests,
	)
}

// NewServer returns a server exposing /metrics on addr.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func IncRequest(result string) {
	Requests.WithLabelValues(result).Inc()
}

func ObserveStage(stage string, d time.Duration) {
	StageDurationSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

func IncStageError(stage string) {
	StageErrors.WithLabelValues(stage).Inc()
}

func IncHTTPRequest(method, code string) {
	HTTPRequests.WithLabelValues(method, code).Inc()
}
