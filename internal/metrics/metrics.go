// Package metrics holds the Prometheus collectors exported by the client core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeResponse  = "response"
	OutcomeTransport = "transport_error"
)

// Recorder owns a private registry so tests and multiple resolvers never
// collide on the default one.
type Recorder struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	failovers prometheus.Counter
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellnest",
			Subsystem: "endpoint",
			Name:      "requests_total",
			Help:      "API requests dispatched, by host and outcome.",
		}, []string{"host", "outcome"}),
		failovers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wellnest",
			Subsystem: "endpoint",
			Name:      "failovers_total",
			Help:      "Primary to secondary host swaps.",
		}),
	}
	r.registry.MustRegister(r.requests, r.failovers)
	return r
}

func (r *Recorder) ObserveRequest(host string, outcome string) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(host, outcome).Inc()
}

func (r *Recorder) ObserveFailover() {
	if r == nil {
		return
	}
	r.failovers.Inc()
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
