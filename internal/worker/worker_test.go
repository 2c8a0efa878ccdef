package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"user_manager/internal/activity"
	"user_manager/internal/user"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRecorder is a mock implementation of activity.ActivityServiceInterface
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ctx context.Context, entry *activity.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockRecorder) Recent(ctx context.Context, limit int) ([]*activity.Entry, error) {
	args := m.Called(ctx, limit)
	return nil, args.Error(1)
}

type settlement struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (s *settlement) Ack(uint64, bool) error {
	s.acked = true
	return nil
}

func (s *settlement) Nack(_ uint64, _ bool, requeue bool) error {
	s.nacked = true
	s.requeue = requeue
	return nil
}

func (s *settlement) Reject(_ uint64, requeue bool) error {
	return s.Nack(0, false, requeue)
}

type capturingPublisher struct {
	err       error
	key       string
	published *amqp.Publishing
}

func (p *capturingPublisher) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if p.err != nil {
		return p.err
	}
	p.key = key
	p.published = &msg
	return nil
}

func delivery(t *testing.T, s *settlement, headers amqp.Table) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(user.Event{
		EventID:    "4f1d3c7a-0000-4000-8000-000000000001",
		Action:     user.ActionCreated,
		SessionID:  "s1",
		UserID:     11,
		UserName:   "Jane Doe",
		OccurredAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return amqp.Delivery{
		Acknowledger: s,
		ContentType:  "application/json",
		RoutingKey:   "user.created",
		Headers:      headers,
		Body:         body,
	}
}

func TestHandle_RecordsAndAcks(t *testing.T) {
	recorder := new(MockRecorder)
	w := NewWorker(1, "user_activity", recorder, nil)
	s := &settlement{}

	recorder.On("Record", mock.Anything, mock.MatchedBy(func(e *activity.Entry) bool {
		return e.Action == "created" && e.UserID == 11 && e.SessionID == "s1"
	})).Return(nil).Once()

	w.Handle(context.Background(), &capturingPublisher{}, delivery(t, s, nil))

	assert.True(t, s.acked)
	assert.False(t, s.nacked)
	recorder.AssertExpectations(t)
}

func TestHandle_InvalidPayloadIsDropped(t *testing.T) {
	recorder := new(MockRecorder)
	w := NewWorker(1, "user_activity", recorder, nil)
	s := &settlement{}

	w.Handle(context.Background(), &capturingPublisher{}, amqp.Delivery{Acknowledger: s, Body: []byte("{")})

	assert.True(t, s.nacked)
	assert.False(t, s.requeue)
	recorder.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestHandle_PermanentlyInvalidEventsAreNotRetried(t *testing.T) {
	tests := []struct {
		name  string
		event user.Event
	}{
		{"non-uuid event id", user.Event{EventID: "evt-1", Action: user.ActionCreated, SessionID: "s1"}},
		{"missing session", user.Event{EventID: "4f1d3c7a-0000-4000-8000-000000000002", Action: user.ActionCreated}},
		{"unknown action", user.Event{EventID: "4f1d3c7a-0000-4000-8000-000000000003", Action: "renamed", SessionID: "s1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := new(MockRecorder)
			w := NewWorker(1, "user_activity", recorder, nil)
			s := &settlement{}
			pub := &capturingPublisher{}

			body, err := json.Marshal(tt.event)
			require.NoError(t, err)

			w.Handle(context.Background(), pub, amqp.Delivery{Acknowledger: s, Body: body})

			assert.True(t, s.nacked)
			assert.False(t, s.requeue)
			assert.Nil(t, pub.published)
			recorder.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
		})
	}
}

func TestHandle_FailureIsRepublishedWithRetryCount(t *testing.T) {
	recorder := new(MockRecorder)
	w := NewWorker(1, "user_activity", recorder, nil)
	s := &settlement{}
	pub := &capturingPublisher{}

	recorder.On("Record", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

	w.Handle(context.Background(), pub, delivery(t, s, amqp.Table{RetryHeader: int32(1)}))

	require.NotNil(t, pub.published)
	assert.Equal(t, "user_activity", pub.key)
	assert.Equal(t, int32(2), pub.published.Headers[RetryHeader])
	assert.True(t, s.acked)
}

func TestHandle_MaxRetriesDrops(t *testing.T) {
	recorder := new(MockRecorder)
	w := NewWorker(1, "user_activity", recorder, nil)
	s := &settlement{}
	pub := &capturingPublisher{}

	recorder.On("Record", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

	w.Handle(context.Background(), pub, delivery(t, s, amqp.Table{RetryHeader: int32(MaxRetries)}))

	assert.Nil(t, pub.published)
	assert.True(t, s.nacked)
	assert.False(t, s.requeue)
}

func TestHandle_RepublishFailureNacks(t *testing.T) {
	recorder := new(MockRecorder)
	w := NewWorker(1, "user_activity", recorder, nil)
	s := &settlement{}

	recorder.On("Record", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

	w.Handle(context.Background(), &capturingPublisher{err: errors.New("channel closed")}, delivery(t, s, nil))

	assert.True(t, s.nacked)
	assert.False(t, s.acked)
}

func TestRetryCount(t *testing.T) {
	assert.Equal(t, int32(0), RetryCount(nil))
	assert.Equal(t, int32(2), RetryCount(amqp.Table{RetryHeader: int32(2)}))
	assert.Equal(t, int32(3), RetryCount(amqp.Table{RetryHeader: int64(3)}))
	assert.Equal(t, int32(0), RetryCount(amqp.Table{RetryHeader: "3"}))
}
