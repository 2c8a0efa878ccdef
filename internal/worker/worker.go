package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"user_manager/internal/activity"
	"user_manager/internal/observability"
	"user_manager/internal/user"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	RetryHeader = "x-retry-count"
	MaxRetries  = 3
)

var errInvalidEvent = errors.New("invalid user event")

// Publisher is the part of *amqp.Channel used to requeue failed deliveries.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Worker records user events delivered on one queue into the activity journal.
type Worker struct {
	id       int
	queue    string
	recorder activity.ActivityServiceInterface
	metrics  *observability.Metrics
}

func NewWorker(id int, queueName string, recorder activity.ActivityServiceInterface, metrics *observability.Metrics) *Worker {
	return &Worker{
		id:       id,
		queue:    queueName,
		recorder: recorder,
		metrics:  metrics,
	}
}

// Run consumes until ctx is cancelled or the delivery channel closes.
func (w *Worker) Run(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("worker %d: open channel: %w", w.id, err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("worker %d: set QoS: %w", w.id, err)
	}

	msgs, err := ch.ConsumeWithContext(
		ctx,
		w.queue,
		fmt.Sprintf("user-activity-worker-%d", w.id),
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("worker %d: consume: %w", w.id, err)
	}

	logrus.Infof("Worker %d started", w.id)

	for {
		select {
		case <-ctx.Done():
			logrus.Infof("Worker %d stopping", w.id)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("worker %d: delivery channel closed", w.id)
			}
			w.Handle(ctx, ch, msg)
		}
	}
}

// Handle records one delivery and settles it. Failed records are
// republished with an incremented retry header until MaxRetries.
func (w *Worker) Handle(ctx context.Context, pub Publisher, msg amqp.Delivery) {
	if w.metrics != nil {
		w.metrics.QueueMessagesConsumed.WithLabelValues(w.queue).Inc()
	}

	retryCount := RetryCount(msg.Headers)
	err := w.record(ctx, msg.Body)
	if err == nil {
		msg.Ack(false)
		return
	}

	if errors.Is(err, errInvalidEvent) {
		logrus.WithError(err).Error("invalid payload")
		w.failed("invalid_payload")
		msg.Nack(false, false)
		return
	}

	logrus.WithError(err).WithField("retry", retryCount).Errorf("Worker %d failed to record activity", w.id)

	if retryCount >= MaxRetries {
		w.failed("max_retries")
		msg.Nack(false, false)
		return
	}

	logrus.Infof("Worker %d: requeuing event (retry %d/%d)", w.id, retryCount+1, MaxRetries)

	if err := w.republish(ctx, pub, msg, retryCount+1); err != nil {
		logrus.WithError(err).Error("Failed to republish message")
		w.failed("republish_error")
		msg.Nack(false, false)
		return
	}

	if w.metrics != nil {
		w.metrics.QueueMessagesPublished.WithLabelValues(w.queue).Inc()
	}
	msg.Ack(false)
}

func (w *Worker) record(ctx context.Context, body []byte) error {
	var event user.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: %w", errInvalidEvent, err)
	}
	if _, err := uuid.Parse(event.EventID); err != nil {
		return fmt.Errorf("%w: event id: %w", errInvalidEvent, err)
	}
	if event.SessionID == "" {
		return fmt.Errorf("%w: missing session id", errInvalidEvent)
	}
	switch event.Action {
	case user.ActionCreated, user.ActionUpdated, user.ActionDeleted:
	default:
		return fmt.Errorf("%w: unknown action %q", errInvalidEvent, event.Action)
	}

	logrus.WithFields(logrus.Fields{
		"worker":   w.id,
		"event_id": event.EventID,
		"action":   event.Action,
		"user_id":  event.UserID,
	}).Info("Recording user activity")

	return w.recorder.Record(ctx, activity.FromEvent(event))
}

// republish sends the delivery straight back to the queue through the
// default exchange.
func (w *Worker) republish(ctx context.Context, pub Publisher, msg amqp.Delivery, retryCount int32) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[RetryHeader] = retryCount

	return pub.PublishWithContext(
		ctx,
		"",      // exchange
		w.queue, // routing key (queue name)
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  msg.ContentType,
			DeliveryMode: amqp.Persistent,
			Body:         msg.Body,
			Headers:      headers,
		},
	)
}

func (w *Worker) failed(reason string) {
	if w.metrics != nil {
		w.metrics.ActivityFailedTotal.WithLabelValues(reason).Inc()
	}
}

// RetryCount reads the retry header; brokers may widen the integer type.
func RetryCount(headers amqp.Table) int32 {
	switch v := headers[RetryHeader].(type) {
	case int32:
		return v
	case int64:
		return int32(v)
	case int:
		return int32(v)
	case int16:
		return int32(v)
	default:
		return 0
	}
}
