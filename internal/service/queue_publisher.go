// Package taskqueue publishes deferred tasks and domain events to
// RabbitMQ.  Errors are logged and returned so callers can ignore
// failures without interrupting the main request flow.
package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/studio-booking/internal/payments"
	"github.com/iliyamo/studio-booking/internal/queue"
)

// Publisher enqueues tasks and events.  Each publish dials its own
// short-lived connection, which keeps the publisher stateless and safe
// to call from any goroutine at this system's volume.
type Publisher struct {
	url string
	log *logrus.Logger
}

// NewPublisher returns a Publisher for the given broker URL.
func NewPublisher(url string, log *logrus.Logger) *Publisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Publisher{url: url, log: log}
}

// publish sends one persistent JSON message.  A positive delay routes
// the message through the delayed queue, whose per-message TTL
// dead-letters it back onto the main queue when due.
func (p *Publisher) publish(ctx context.Context, routingKey string, body []byte, delay time.Duration) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.WithError(err).Error("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.WithError(err).Error("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := queue.DeclareQueues(ch); err != nil {
		p.log.WithError(err).Error("rabbitmq: queue declare failed")
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if delay > 0 {
		routingKey = queue.DelayedQueue
		pub.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
	}

	if err := ch.PublishWithContext(ctx, "", routingKey, false, false, pub); err != nil {
		p.log.WithError(err).Error("rabbitmq: publish failed")
		return err
	}
	return nil
}

// EnqueueTask publishes a task for execution after the given delay.  A
// zero delay runs it as soon as a consumer picks it up.
func (p *Publisher) EnqueueTask(ctx context.Context, task queue.Task, delay time.Duration) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	return p.publish(ctx, queue.TasksQueue, body, delay)
}

// ScheduleReceiptRetry satisfies the reconciler's retry scheduler by
// wrapping the retry in a task envelope.
func (p *Publisher) ScheduleReceiptRetry(ctx context.Context, retry payments.ReceiptRetry, delay time.Duration) error {
	payload, err := json.Marshal(retry)
	if err != nil {
		return fmt.Errorf("marshal receipt retry: %w", err)
	}
	return p.EnqueueTask(ctx, queue.Task{Name: queue.TaskReceiptRetry, Payload: payload}, delay)
}

// PublishBookingPaid announces a booking that reconciliation just moved
// to paid.  The queue is declared durable so notifications survive a
// broker restart.
func (p *Publisher) PublishBookingPaid(ctx context.Context, ev queue.BookingPaidEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.WithError(err).Error("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.WithError(err).Error("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue.BookingPaidQueue, true, false, false, false, nil); err != nil {
		p.log.WithError(err).Error("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.BookingPaidQueue, false, false, pub); err != nil {
		p.log.WithError(err).Error("rabbitmq: publish failed")
		return err
	}
	return nil
}
