package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"datasync/internal/metrics"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Counter.Write() error = %v", err)
	}
	return m.GetCounter().GetValue()
}

func summaryCount(t *testing.T, s prometheus.Metric) uint64 {
	t.Helper()
	m := &dto.Metric{}
	if err := s.Write(m); err != nil {
		t.Fatalf("Summary.Write() error = %v", err)
	}
	return m.GetSummary().GetSampleCount()
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	if b, err := NewBackend("x", ""); err == nil || b != nil {
		t.Fatalf("NewBackend without URL = %v, %v; want error", b, err)
	}
	b, err := NewBackend("", "http://pushgateway:9091")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	if b.jobName != "datasync" {
		t.Fatalf("jobName = %q, want datasync", b.jobName)
	}
}

func TestBackend_RoutesMetrics(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("job", "http://pushgateway:9091")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}

	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "load_csv", "status": "success"})
	b.IncCounter(metrics.MatchColumns, 4, metrics.Labels{"result": "bound"})
	b.IncCounter(metrics.EditsTotal, 2, metrics.Labels{"kind": "bind"})
	b.IncCounter("unknown_metric", 9, nil)
	b.ObserveHistogram(metrics.StepDuration, 0.5, metrics.Labels{"step": "load_csv", "status": "success"})
	b.ObserveHistogram(metrics.MatchDuration, 0.01, nil)

	if got := counterValue(t, b.stepCounter.WithLabelValues("load_csv", "success")); got != 1 {
		t.Fatalf("step counter = %v, want 1", got)
	}
	if got := counterValue(t, b.matchColumns.WithLabelValues("bound")); got != 4 {
		t.Fatalf("match counter = %v, want 4", got)
	}
	if got := counterValue(t, b.edits.WithLabelValues("bind")); got != 2 {
		t.Fatalf("edits counter = %v, want 2", got)
	}
	if got := summaryCount(t, b.stepDuration.WithLabelValues("load_csv", "success").(prometheus.Metric)); got != 1 {
		t.Fatalf("step summary count = %d, want 1", got)
	}
	if got := summaryCount(t, b.matchDuration); got != 1 {
		t.Fatalf("match summary count = %d, want 1", got)
	}
}

func TestFlush_PushesToGateway(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		paths  []string
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		bodies = append(bodies, string(body))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, err := NewBackend("permits", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter(metrics.EditsTotal, 1, metrics.Labels{"kind": "ignore"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 1 || !strings.Contains(paths[0], "/job/permits") {
		t.Fatalf("push paths = %q", paths)
	}
	if bodies[0] == "" {
		t.Fatalf("empty push body")
	}
}
