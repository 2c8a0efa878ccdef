package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"user_manager/internal/config"
	"user_manager/internal/observability"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// UserEventsBinding matches every routing key the web process publishes.
const UserEventsBinding = "user.*"

func SetupRabbitMQ(rabbitMQCfg *config.RabbitMQConfig) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error

	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(rabbitMQCfg.URL)
		if err != nil {
			logrus.WithError(err).Warnf("Failed to connect to RabbitMQ (attempt %d/%d)", i+1, maxRetries)
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}

		break
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
	}

	logrus.Info("RabbitMQ connection established successfully")
	return conn, nil
}

func CreateChannel(conn *amqp.Connection) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	return ch, nil
}

// DeclareTopology declares the topic exchange and the durable queue bound to it.
func DeclareTopology(ch *amqp.Channel, exchange, queueName string) (amqp.Queue, error) {
	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, UserEventsBinding, exchange, false, nil); err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to bind queue: %w", err)
	}

	return q, nil
}

// Publisher publishes JSON messages to a topic exchange.
type Publisher struct {
	ch       *amqp.Channel
	exchange string
	metrics  *observability.Metrics
}

func NewPublisher(conn *amqp.Connection, exchange, queueName string, metrics *observability.Metrics) (*Publisher, error) {
	ch, err := CreateChannel(conn)
	if err != nil {
		return nil, err
	}
	if _, err := DeclareTopology(ch, exchange, queueName); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &Publisher{ch: ch, exchange: exchange, metrics: metrics}, nil
}

func (p *Publisher) Publish(ctx context.Context, routingKey string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	if p.metrics != nil {
		p.metrics.QueueMessagesPublished.WithLabelValues(routingKey).Inc()
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

// NoopPublisher only logs; it stands in when RabbitMQ is not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, routingKey string, v any) error {
	logrus.WithField("routing_key", routingKey).Debugf("Event not published (no broker): %+v", v)
	return nil
}
