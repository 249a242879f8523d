// Package metrics records operational metrics for mapping runs behind a
// small backend interface. The default backend drops everything, so callers
// never need to check whether metrics are configured. Concrete backends live
// in subpackages (prompush, datadog).
package metrics

import "time"

// Metric names.
const (
	StepTotal     = "datasync_step_total"
	StepDuration  = "datasync_step_duration_seconds"
	MatchColumns  = "datasync_match_columns_total"
	MatchDuration = "datasync_match_duration_seconds"
	EditsTotal    = "datasync_edits_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is implemented by metric systems.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered metrics, for backends that need it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs b. nil keeps the current backend. Call it once at
// startup, before any recording.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep counts one run of a named step (load_csv, load_schema,
// write_control_file...) and its latency.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordMatch records the outcome of one automatic match.
func RecordMatch(job string, bound, ignored int, d time.Duration) {
	if bound > 0 {
		backend.IncCounter(MatchColumns, float64(bound), Labels{"job": job, "result": "bound"})
	}
	if ignored > 0 {
		backend.IncCounter(MatchColumns, float64(ignored), Labels{"job": job, "result": "ignored"})
	}
	backend.ObserveHistogram(MatchDuration, d.Seconds(), Labels{"job": job})
}

// RecordEdit counts one user edit of the given kind (bind, ignore,
// ignore_field, synthetic, option...).
func RecordEdit(job, kind string) {
	backend.IncCounter(EditsTotal, 1, Labels{"job": job, "kind": kind})
}
