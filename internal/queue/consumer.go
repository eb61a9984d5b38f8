package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/studio-booking/internal/payments"
)

// Consumer executes deferred tasks from the tasks queue.  It runs a
// reconnect loop with exponential backoff and only returns once the
// context is cancelled, so a broker outage never takes the server down.
type Consumer struct {
	url     string
	rec     *payments.Reconciler
	retries payments.RetryScheduler
	log     *logrus.Logger
}

// NewConsumer builds a Consumer.  The retry scheduler is used to
// re-enqueue receipt attempts that fail within their budget.
func NewConsumer(url string, rec *payments.Reconciler, retries payments.RetryScheduler, log *logrus.Logger) *Consumer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Consumer{url: url, rec: rec, retries: retries, log: log}
}

// Start connects to the broker and consumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.WithError(err).Warnf("task consumer: dial failed, retrying in %s", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := c.consumeLoop(ctx, conn); err != nil {
			c.log.WithError(err).Warn("task consumer: consume loop ended, reconnecting")
		}
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		time.Sleep(2 * time.Second)
	}
}

// DeclareQueues sets up the task queues.  The delayed queue dead-letters
// expired messages back onto the main queue, which is how per-message
// delays work without a broker plugin.  Declaration is idempotent and is
// done by both publisher and consumer so startup order does not matter.
func DeclareQueues(ch *amqp.Channel) error {
	if _, err := ch.QueueDeclare(TasksQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", TasksQueue, err)
	}
	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": TasksQueue,
	}
	if _, err := ch.QueueDeclare(DelayedQueue, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare %s: %w", DelayedQueue, err)
	}
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		c.log.WithError(err).Warn("task consumer: set QoS failed")
	}
	if err := DeclareQueues(ch); err != nil {
		return err
	}

	msgs, err := ch.Consume(TasksQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(ctx, d.Body); err != nil {
				c.log.WithError(err).Error("task consumer: handle task failed")
				_ = d.Nack(false, false) // do not requeue, avoids tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, body []byte) error {
	var task Task
	if err := json.Unmarshal(body, &task); err != nil {
		return fmt.Errorf("unmarshal task: %w", err)
	}
	switch task.Name {
	case TaskReceiptRetry:
		return c.handleReceiptRetry(ctx, task.Payload)
	default:
		return fmt.Errorf("unknown task %q", task.Name)
	}
}

// handleReceiptRetry runs one deferred receipt attempt.  Failures within
// the attempt budget are re-enqueued with a growing delay; after the
// budget is spent the task is dropped and the failure logged, leaving
// the payment itself untouched.
func (c *Consumer) handleReceiptRetry(ctx context.Context, payload json.RawMessage) error {
	var retry payments.ReceiptRetry
	if err := json.Unmarshal(payload, &retry); err != nil {
		return fmt.Errorf("unmarshal receipt retry: %w", err)
	}
	logger := c.log.WithFields(logrus.Fields{"order_id": retry.OrderID, "attempt": retry.Attempt})

	err := c.rec.RetryReceipt(ctx, retry)
	if err == nil {
		logger.Info("fiscal receipt issued on retry")
		return nil
	}

	if retry.Attempt >= payments.MaxReceiptAttempts {
		logger.WithError(err).Error("fiscal receipt retries exhausted, giving up")
		return nil
	}

	retry.Attempt++
	delay := payments.RetryBackoff(retry.Attempt)
	logger.WithError(err).Warnf("fiscal receipt attempt failed, retrying in %s", delay)
	if schedErr := c.retries.ScheduleReceiptRetry(ctx, retry, delay); schedErr != nil {
		return fmt.Errorf("reschedule receipt retry: %w", schedErr)
	}
	return nil
}
