// Package notify delivers mapping change events to whoever is watching the
// edit session: the log, an in-memory recorder (used by the HTTP API and by
// tests) or a message bus.
package notify

import (
	"context"
	"errors"
	"log"
	"sync"

	"datasync/internal/mapping"
)

// Sink receives the events of one mutation, in order. A Sink must not
// reorder events within a call, and calls are made in mutation order.
type Sink interface {
	Publish(ctx context.Context, events []mapping.Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, []mapping.Event) error { return nil }

// Log writes one line per event through the standard logger.
type Log struct {
	// Job labels each line; empty omits it.
	Job string
}

func (l Log) Publish(_ context.Context, events []mapping.Event) error {
	for _, ev := range events {
		switch {
		case l.Job != "":
			log.Printf("mapping: job=%s kind=%s pos=%d field=%q name=%q", l.Job, ev.Kind, ev.Position, ev.Field, ev.Name)
		default:
			log.Printf("mapping: kind=%s pos=%d field=%q name=%q", ev.Kind, ev.Position, ev.Field, ev.Name)
		}
	}
	return nil
}

// Recorder keeps every event in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []mapping.Event
}

func (r *Recorder) Publish(_ context.Context, events []mapping.Event) error {
	r.mu.Lock()
	r.events = append(r.events, events...)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []mapping.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]mapping.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Since returns the events recorded after the first n.
func (r *Recorder) Since(n int) []mapping.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n >= len(r.events) {
		return nil
	}
	out := make([]mapping.Event, len(r.events)-n)
	copy(out, r.events[n:])
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Multi fans events out to every sink in order. All sinks are tried; their
// errors are joined.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, events []mapping.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
