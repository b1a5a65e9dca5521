// Package rabbitmq wraps the broker connection used for order status updates.
package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bakery-storefront/internal/xpkg/config"
	"bakery-storefront/internal/xpkg/logger"

	apperr "bakery-storefront/internal/xpkg/errors"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQ struct {
	cfg   *config.RabbitMQ
	conn  *amqp.Connection
	ch    *amqp.Channel
	mylog logger.Logger

	mu           sync.Mutex
	reconnecting bool
	retryEvery   time.Duration
}

// Connect dials the broker and declares the notifications fanout exchange.
func Connect(cfg *config.RabbitMQ, mylog logger.Logger) (*RabbitMQ, error) {
	r := &RabbitMQ{cfg: cfg, mylog: mylog, retryEvery: 5 * time.Second}
	if err := r.connect(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrRMQConn, err)
	}
	return r, nil
}

func (r *RabbitMQ) url() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/%s",
		r.cfg.User,
		r.cfg.Password,
		r.cfg.Host,
		r.cfg.Port,
		r.cfg.VHost,
	)
}

func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.url())
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	err = ch.ExchangeDeclare(
		r.cfg.Exchange, // name
		"fanout",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		conn.Close()
		return err
	}

	r.mu.Lock()
	stale := r.conn
	r.conn = conn
	r.ch = ch
	r.mu.Unlock()

	// closing the connection also closes any channel still open on it
	if stale != nil && !stale.IsClosed() {
		if err := stale.Close(); err != nil {
			r.mylog.Action("rabbitmq_stale_close").Warn("Failed to close previous connection", "reason", err.Error())
		}
	}
	return nil
}

// DeclareQueue declares queue and binds it to the notifications exchange.
func (r *RabbitMQ) DeclareQueue(queue string) error {
	r.mu.Lock()
	ch := r.ch
	r.mu.Unlock()

	_, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, "", r.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", queue, err)
	}
	return nil
}

func (r *RabbitMQ) ConsumeMessage(ctx context.Context, queue, consumer string) (<-chan amqp.Delivery, error) {
	r.mu.Lock()
	ch := r.ch
	r.mu.Unlock()
	return ch.ConsumeWithContext(ctx, queue, consumer, false, false, false, false, nil)
}

// Publish sends a persistent JSON message to the notifications exchange.
func (r *RabbitMQ) Publish(ctx context.Context, body []byte) error {
	r.mu.Lock()
	ch := r.ch
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return ch.PublishWithContext(ctx,
		r.cfg.Exchange, // exchange
		"",             // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Timestamp:    time.Now(),
			Body:         body,
		})
}

// IsAlive reports whether both the connection and the channel are open.
func (r *RabbitMQ) IsAlive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil || r.conn.IsClosed() {
		return false
	}
	if r.ch == nil || r.ch.IsClosed() {
		return false
	}
	return true
}

// Reconnect retries the connection every five seconds until it succeeds or ctx ends.
// The previous connection is closed once a new one is up.
func (r *RabbitMQ) Reconnect(ctx context.Context) error {
	r.mu.Lock()
	if r.reconnecting {
		r.mu.Unlock()
		return nil
	}
	r.reconnecting = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.reconnecting = false
		r.mu.Unlock()
	}()

	t := time.NewTicker(r.retryEvery)
	defer t.Stop()
	mylog := r.mylog.Action("rabbitmq_reconnecting")

	for {
		select {
		case <-t.C:
			if err := r.connect(); err != nil {
				mylog.Warn("RabbitMQ failed to reconnect", "reason", err.Error())
				continue
			}
			mylog.Info("RabbitMQ reconnected")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch != nil && !r.ch.IsClosed() {
		if err := r.ch.Close(); err != nil {
			return fmt.Errorf("close rabbitmq channel: %w", err)
		}
	}
	if r.conn != nil && !r.conn.IsClosed() {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %w", err)
		}
	}
	return nil
}
