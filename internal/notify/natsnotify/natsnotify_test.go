package natsnotify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"datasync/internal/mapping"
)

type mockPublisher struct {
	mock.Mock
	msgs []*nats.Msg
}

func (m *mockPublisher) PublishMsg(msg *nats.Msg) error {
	m.msgs = append(m.msgs, msg)
	return m.Called(msg.Subject).Error(0)
}

func TestSink_PublishesOneMessagePerEvent(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("PublishMsg", "datasync.mapping.ignored").Return(nil).Once()
	pub.On("PublishMsg", "datasync.mapping.bound").Return(nil).Once()

	s := New(pub, "datasync.mapping", "job-1")
	ids := []string{"id-1", "id-2"}
	s.newID = func() string { id := ids[0]; ids = ids[1:]; return id }
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	err := s.Publish(context.Background(), []mapping.Event{
		{Kind: mapping.EventIgnored, Position: 0, Name: "col_0"},
		{Kind: mapping.EventBound, Position: 2, Field: "zip", Name: "zip"},
	})
	require.NoError(t, err)
	pub.AssertExpectations(t)
	require.Len(t, pub.msgs, 2)

	var env Envelope
	require.NoError(t, json.Unmarshal(pub.msgs[1].Data, &env))
	assert.Equal(t, "id-2", env.ID)
	assert.Equal(t, uint64(2), env.Seq)
	assert.Equal(t, "job-1", env.Job)
	assert.Equal(t, fixed, env.At)
	assert.Equal(t, "zip", env.Event.Field)
	assert.Equal(t, "id-2", pub.msgs[1].Header.Get(nats.MsgIdHdr))
}

func TestSink_StopsOnFirstError(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("PublishMsg", "s.reshaped").Return(errors.New("no responders")).Once()

	s := New(pub, "s", "")
	err := s.Publish(context.Background(), []mapping.Event{
		{Kind: mapping.EventReshaped, Position: -1, Columns: 3},
		{Kind: mapping.EventIgnored, Position: 0},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s.reshaped")
	assert.Len(t, pub.msgs, 1)
	pub.AssertExpectations(t)
}

func TestSink_CanceledContext(t *testing.T) {
	pub := &mockPublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(pub, "s", "").Publish(ctx, []mapping.Event{{Kind: mapping.EventIgnored}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, pub.msgs)
}
