// Package prompush pushes metrics to a Prometheus Pushgateway. Collectors
// live in a private registry that Flush pushes under the job name.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"datasync/internal/metrics"
)

// Backend implements metrics.Backend.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	stepCounter   *prometheus.CounterVec
	stepDuration  *prometheus.SummaryVec
	matchColumns  *prometheus.CounterVec
	matchDuration prometheus.Summary
	edits         *prometheus.CounterVec
}

// NewBackend registers the datasync collectors. jobName groups the pushed
// metrics on the gateway and defaults to "datasync".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "datasync"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Mapping run steps, by step and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Duration of mapping run steps in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		matchColumns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.MatchColumns,
			Help: "CSV columns handled by automatic matching, by result (bound, ignored).",
		}, []string{"result"}),
		matchDuration: prometheus.NewSummary(prometheus.SummaryOpts{
			Name:       metrics.MatchDuration,
			Help:       "Duration of automatic matching in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.99: 0.001},
		}),
		edits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.EditsTotal,
			Help: "Mapping edits, by kind.",
		}, []string{"kind"}),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":  b.stepCounter,
		"step summary":  b.stepDuration,
		"match counter": b.matchColumns,
		"match summary": b.matchDuration,
		"edits counter": b.edits,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

// IncCounter maps known metric names onto collectors; unknown names are
// dropped.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case metrics.MatchColumns:
		b.matchColumns.WithLabelValues(labels["result"]).Add(delta)
	case metrics.EditsTotal:
		b.edits.WithLabelValues(labels["kind"]).Add(delta)
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case metrics.StepDuration:
		b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
	case metrics.MatchDuration:
		b.matchDuration.Observe(value)
	}
}

// Flush pushes the registry to the gateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push()
}
