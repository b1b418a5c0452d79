// Package metrics exposes the Prometheus collectors shared by the pipelines
// and the HTTP server.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the vizqa collectors. All names are prefixed with "vizqa_".
type Metrics struct {
	// Model calls
	LLMRequestsTotal *prometheus.CounterVec
	LLMDuration      *prometheus.HistogramVec
	LLMTokensTotal   *prometheus.CounterVec

	// Sandbox
	SandboxRunsTotal *prometheus.CounterVec
	SandboxDuration  prometheus.Histogram
	FiguresRendered  prometheus.Counter

	// Datasets and sessions
	DatasetsLoadedTotal *prometheus.CounterVec
	ActiveSessions      prometheus.Gauge

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// Get returns the process-wide collectors, registering them on first use.
//
// Metrics:
//   - vizqa_llm_requests_total{pipeline,outcome}
//   - vizqa_llm_request_duration_seconds{pipeline}
//   - vizqa_llm_tokens_total{pipeline,kind}
//   - vizqa_sandbox_runs_total{outcome}
//   - vizqa_sandbox_run_duration_seconds
//   - vizqa_figures_rendered_total
//   - vizqa_datasets_loaded_total{format,outcome}
//   - vizqa_active_sessions
//   - vizqa_http_requests_total{method,route,status}
//   - vizqa_http_request_duration_seconds{method,route}
func Get() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			LLMRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vizqa_llm_requests_total",
					Help: "Total number of model calls",
				},
				[]string{"pipeline", "outcome"}, // "visualize"|"insight", "ok"|"error"
			),
			LLMDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "vizqa_llm_request_duration_seconds",
					Help:    "Duration of model calls in seconds",
					Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
				},
				[]string{"pipeline"},
			),
			LLMTokensTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vizqa_llm_tokens_total",
					Help: "Tokens reported by the provider",
				},
				[]string{"pipeline", "kind"}, // "prompt"|"completion"
			),
			SandboxRunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vizqa_sandbox_runs_total",
					Help: "Total number of generated scripts executed",
				},
				[]string{"outcome"}, // "ok"|"error"|"timeout"|"step_limit"
			),
			SandboxDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "vizqa_sandbox_run_duration_seconds",
					Help:    "Duration of sandboxed script runs in seconds",
					Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
				},
			),
			FiguresRendered: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "vizqa_figures_rendered_total",
					Help: "Total number of figures rendered to PNG",
				},
			),
			DatasetsLoadedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vizqa_datasets_loaded_total",
					Help: "Total number of uploaded datasets",
				},
				[]string{"format", "outcome"},
			),
			ActiveSessions: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "vizqa_active_sessions",
					Help: "Number of live sessions",
				},
			),
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vizqa_http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "route", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "vizqa_http_request_duration_seconds",
					Help:    "Duration of HTTP requests in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "route"},
			),
		}
	})
	return globalMetrics
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Outcome maps an error to the "ok"/"error" label.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
