package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"

	"docflow/internal/config"
	"docflow/internal/metrics"
	"docflow/internal/queue"
)

// ErrUnavailable is returned when the broker cannot be reached within
// the configured retry budget. Fatal at startup; a 503 for a single
// operation.
var ErrUnavailable = errors.New("broker unavailable")

// errMalformed marks a delivery whose body failed to decode. Such
// deliveries are rejected without requeue instead of being redelivered
// forever.
var errMalformed = errors.New("malformed message")

// Connection manages one shared AMQP connection and channel. It is
// safe for concurrent use by many request handlers; publishes are
// serialized because an AMQP channel is not concurrency-safe.
type Connection struct {
	url      string
	maxTries int
	backoff  time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func New(cfg config.RabbitMQConfig, logger *slog.Logger) *Connection {
	tries := cfg.ConnectRetries
	if tries <= 0 {
		tries = 3
	}
	backoff := time.Duration(cfg.BackoffMs) * time.Millisecond
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	url := cfg.URL
	if url == "" {
		url = "amqp://localhost"
	}
	return &Connection{
		url:      url,
		maxTries: tries,
		backoff:  backoff,
		logger:   logger,
	}
}

// Connect establishes the connection and channel. It is idempotent:
// if both are already open it returns immediately. Each attempt dials
// and opens a channel; attempts are bounded with exponential backoff.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Connection) connectLocked(ctx context.Context) error {
	if c.connectedLocked() {
		return nil
	}

	b := retry.WithMaxRetries(uint64(c.maxTries-1), retry.NewExponential(c.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("broker dial failed, retrying", "err", err)
			return retry.RetryableError(err)
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			c.logger.Warn("broker channel open failed, retrying", "err", err)
			return retry.RetryableError(err)
		}
		c.conn = conn
		c.ch = ch
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c.logger.Info("broker connected", "url", c.url)
	return nil
}

func (c *Connection) connectedLocked() bool {
	return c.conn != nil && !c.conn.IsClosed() && c.ch != nil && !c.ch.IsClosed()
}

// Connected reports whether the connection and channel are open.
func (c *Connection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectedLocked()
}

// Close shuts down the channel and connection.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ch != nil {
		_ = c.ch.Close()
		c.ch = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// declareLocked declares the named queue as durable so its definition
// survives a broker restart. Declaration is idempotent and runs before
// every publish and consume.
func (c *Connection) declareLocked(name string) error {
	_, err := c.ch.QueueDeclare(name, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	return nil
}

// publish lazily connects, declares the durable queue, and publishes
// the body as a persistent JSON message. Success means the broker
// accepted the message for buffering, not that a consumer saw it.
func (c *Connection) publish(ctx context.Context, name string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return err
	}
	if err := c.declareLocked(name); err != nil {
		return err
	}

	err := c.ch.PublishWithContext(ctx, "", name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", name, err)
	}
	return nil
}

// handlerFunc processes one raw delivery body.
type handlerFunc func(ctx context.Context, body []byte) error

// consume registers a long-lived consumer on the named queue. The
// handler runs once per delivery; the delivery is acked only after the
// handler returns nil. Handler failures nack with requeue, malformed
// bodies nack without requeue, and a handler panic never unwinds the
// consume loop.
func (c *Connection) consume(ctx context.Context, name string, fn handlerFunc) error {
	c.mu.Lock()
	if err := c.connectLocked(ctx); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.declareLocked(name); err != nil {
		c.mu.Unlock()
		return err
	}
	// One unacked delivery at a time per queue.
	if err := c.ch.Qos(1, 0, false); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("qos %s: %w", name, err)
	}
	deliveries, err := c.ch.Consume(name, "", false, false, false, false, nil)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("consume %s: %w", name, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					c.logger.Warn("delivery channel closed", "queue", name)
					return
				}
				c.handleDelivery(ctx, name, d, fn)
			}
		}
	}()
	return nil
}

// handleDelivery runs the handler for a single delivery and settles it
// with the broker. Kept separate from the consume loop so failure in
// one message cannot take the loop down.
func (c *Connection) handleDelivery(ctx context.Context, name string, d amqp.Delivery, fn handlerFunc) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("handler panic", "queue", name, "panic", r)
			_ = d.Nack(false, true)
		}
	}()

	err := fn(ctx, d.Body)
	switch {
	case err == nil:
		if err := d.Ack(false); err != nil {
			c.logger.Error("ack failed", "queue", name, "err", err)
		}
		metrics.RecordConsume(name, "ok")
	case errors.Is(err, errMalformed):
		c.logger.Error("dropping malformed message", "queue", name, "err", err)
		_ = d.Nack(false, false)
		metrics.RecordConsume(name, "malformed")
	default:
		c.logger.Error("handler failed, requeueing", "queue", name, "err", err)
		_ = d.Nack(false, true)
		metrics.RecordConsume(name, "failed")
	}
}

// publishJSON and consumeJSON bind a queue name to a payload type so a
// message can only be sent to or read from its own queue.

func publishJSON[T any](ctx context.Context, c *Connection, name string, msg T) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", name, err)
	}
	return c.publish(ctx, name, body)
}

func consumeJSON[T any](ctx context.Context, c *Connection, name string, fn func(ctx context.Context, msg T) error) error {
	return c.consume(ctx, name, decodeHandler(fn))
}

func decodeHandler[T any](fn func(ctx context.Context, msg T) error) handlerFunc {
	return func(ctx context.Context, body []byte) error {
		var msg T
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("%w: %v", errMalformed, err)
		}
		return fn(ctx, msg)
	}
}

// PublishFileExtract enqueues a file-extraction job.
func (c *Connection) PublishFileExtract(ctx context.Context, msg queue.FileExtractMessage) error {
	return publishJSON(ctx, c, queue.NewFileExtract, msg)
}

// PublishModelPull enqueues a model download.
func (c *Connection) PublishModelPull(ctx context.Context, msg queue.ModelPullMessage) error {
	return publishJSON(ctx, c, queue.OllamaModelPull, msg)
}

// ConsumeFileExtract registers the file-extraction worker handler.
func (c *Connection) ConsumeFileExtract(ctx context.Context, fn func(ctx context.Context, msg queue.FileExtractMessage) error) error {
	return consumeJSON(ctx, c, queue.NewFileExtract, fn)
}

// ConsumeModelPull registers the model-download worker handler.
func (c *Connection) ConsumeModelPull(ctx context.Context, fn func(ctx context.Context, msg queue.ModelPullMessage) error) error {
	return consumeJSON(ctx, c, queue.OllamaModelPull, fn)
}
