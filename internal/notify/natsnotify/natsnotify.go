// Package natsnotify publishes mapping events to NATS, one message per event
// on "<subject>.<kind>".
package natsnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"datasync/internal/mapping"
)

// Publisher is the part of *nats.Conn the sink needs.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
}

// Envelope is the JSON payload of every message. Seq increases by one per
// event for the lifetime of the Sink, so consumers can detect gaps.
type Envelope struct {
	ID    string        `json:"id"`
	Seq   uint64        `json:"seq"`
	Job   string        `json:"job,omitempty"`
	At    time.Time     `json:"at"`
	Event mapping.Event `json:"event"`
}

// Sink implements notify.Sink over NATS core publish.
type Sink struct {
	pub     Publisher
	subject string
	job     string
	seq     atomic.Uint64

	newID func() string
	now   func() time.Time
}

// New returns a Sink publishing through pub.
func New(pub Publisher, subject, job string) *Sink {
	return &Sink{
		pub:     pub,
		subject: subject,
		job:     job,
		newID:   func() string { return uuid.New().String() },
		now:     time.Now,
	}
}

// Connect dials url and returns a Sink plus a close function that drains
// the connection.
func Connect(url, subject, job string) (*Sink, func(), error) {
	nc, err := nats.Connect(url,
		nats.Name("datasync"),
		nats.Timeout(10*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("natsnotify: connect %s: %w", url, err)
	}
	closeFn := func() {
		if err := nc.Drain(); err != nil {
			nc.Close()
		}
	}
	return New(nc, subject, job), closeFn, nil
}

// Publish sends events in order. It stops at the first failure.
func (s *Sink) Publish(ctx context.Context, events []mapping.Event) error {
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		env := Envelope{
			ID:    s.newID(),
			Seq:   s.seq.Add(1),
			Job:   s.job,
			At:    s.now().UTC(),
			Event: ev,
		}
		data, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("natsnotify: encode: %w", err)
		}
		msg := nats.NewMsg(s.subject + "." + string(ev.Kind))
		msg.Data = data
		msg.Header.Set(nats.MsgIdHdr, env.ID)
		if err := s.pub.PublishMsg(msg); err != nil {
			return fmt.Errorf("natsnotify: publish %s: %w", msg.Subject, err)
		}
	}
	return nil
}
