package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

// amqpChannel is the subset of *amqp.Channel used here.
type amqpChannel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Message is the JSON document published for each notification.
type Message struct {
	Notification
	SentAt time.Time `json:"sentAt"`
}

const (
	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 30 * time.Second
)

var errDisconnected = errors.New("not connected to RabbitMQ")

// amqpSession is one live connection and channel. closed receives when the
// broker drops the connection.
type amqpSession struct {
	ch     amqpChannel
	conn   io.Closer
	closed <-chan *amqp.Error
}

func (s amqpSession) close() error {
	var errs []error
	if s.ch != nil {
		errs = append(errs, s.ch.Close())
	}
	if s.conn != nil {
		errs = append(errs, s.conn.Close())
	}
	return errors.Join(errs...)
}

// AMQPPlatform publishes notifications to a durable RabbitMQ queue, where any
// number of desktop agents can pick them up. Permission is granted while a
// connection is open. A dropped connection is re-dialled with backoff until
// Close; emissions in between are suppressed.
type AMQPPlatform struct {
	mu   sync.RWMutex
	sess amqpSession

	queue     string
	dial      func() (amqpSession, error)
	retry     time.Duration
	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
	now       func() time.Time
}

// DialAMQP connects to url and declares queueName.
func DialAMQP(url, queueName string, logger *slog.Logger) (*AMQPPlatform, error) {
	dial := func() (amqpSession, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return amqpSession{}, fmt.Errorf("error connecting to RabbitMQ: %w", err)
		}

		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return amqpSession{}, fmt.Errorf("error opening channel: %w", err)
		}

		_, err = ch.QueueDeclare(
			queueName,
			true,  // Durable
			false, // Delete when unused
			false, // Exclusive
			false, // No-wait
			nil,   // Arguments
		)
		if err != nil {
			conn.Close()
			return amqpSession{}, fmt.Errorf("error declaring queue: %w", err)
		}

		closed := conn.NotifyClose(make(chan *amqp.Error, 1))
		return amqpSession{ch: ch, conn: conn, closed: closed}, nil
	}

	sess, err := dial()
	if err != nil {
		return nil, err
	}
	return newAMQPPlatform(sess, queueName, dial, logger), nil
}

// newAMQPPlatform wraps an open session. With a nil dial a lost connection is not re-dialled.
func newAMQPPlatform(sess amqpSession, queueName string, dial func() (amqpSession, error), logger *slog.Logger) *AMQPPlatform {
	if logger == nil {
		logger = slog.Default()
	}
	p := &AMQPPlatform{
		sess:   sess,
		queue:  queueName,
		dial:   dial,
		retry:  reconnectDelay,
		done:   make(chan struct{}),
		logger: logger,
		now:    time.Now,
	}
	if sess.closed != nil {
		go p.watch(sess.closed)
	}
	return p
}

// watch waits for the connection to drop and re-dials until it succeeds or the
// platform is closed.
func (p *AMQPPlatform) watch(closed <-chan *amqp.Error) {
	for {
		select {
		case <-p.done:
			return
		case reason := <-closed:
			if p.isClosing() {
				return
			}
			if reason != nil {
				p.logger.Warn("RabbitMQ connection closed", slog.String("reason", reason.Error()))
			}
		}

		p.mu.Lock()
		lost := p.sess
		p.sess = amqpSession{}
		p.mu.Unlock()
		_ = lost.close()

		if p.dial == nil {
			return
		}
		sess, ok := p.redial()
		if !ok {
			return
		}
		closed = sess.closed
	}
}

func (p *AMQPPlatform) redial() (amqpSession, bool) {
	delay := p.retry
	for {
		select {
		case <-p.done:
			return amqpSession{}, false
		case <-time.After(delay):
		}

		sess, err := p.dial()
		if err != nil {
			p.logger.Warn("RabbitMQ reconnect failed", slog.Any("error", err), slog.Duration("retry_in", delay))
			delay = min(delay*2, maxReconnectDelay)
			continue
		}

		p.mu.Lock()
		if p.isClosing() {
			p.mu.Unlock()
			_ = sess.close()
			return amqpSession{}, false
		}
		p.sess = sess
		p.mu.Unlock()

		p.logger.Info("RabbitMQ reconnected", slog.String("queue", p.queue))
		return sess, true
	}
}

func (p *AMQPPlatform) isClosing() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *AMQPPlatform) channel() amqpChannel {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sess.ch
}

func (p *AMQPPlatform) PermissionState() Permission {
	if p.channel() == nil {
		return PermissionDenied
	}
	return PermissionGranted
}

func (p *AMQPPlatform) RequestPermission(context.Context) (Permission, error) {
	return p.PermissionState(), nil
}

func (p *AMQPPlatform) Emit(n Notification) {
	if err := p.Publish(n); err != nil {
		p.logger.Warn("failed to publish notification", slog.String("title", n.Title), slog.Any("error", err))
	}
}

// Publish sends n to the queue as a persistent JSON message.
func (p *AMQPPlatform) Publish(n Notification) error {
	body, err := json.Marshal(Message{Notification: n, SentAt: p.now().UTC()})
	if err != nil {
		return err
	}

	ch := p.channel()
	if ch == nil {
		return errDisconnected
	}
	return ch.Publish(
		"",      // Exchange
		p.queue, // Routing key
		false,   // Mandatory
		false,   // Immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// Consume streams decoded notifications from the queue until ctx is done or the
// delivery channel closes, which includes the connection dropping. Undecodable
// messages are logged and skipped.
func (p *AMQPPlatform) Consume(ctx context.Context) (<-chan Message, error) {
	ch := p.channel()
	if ch == nil {
		return nil, errDisconnected
	}
	deliveries, err := ch.Consume(
		p.queue,
		"",    // Consumer
		true,  // Auto-ack
		false, // Exclusive
		false, // No-local
		false, // No-wait
		nil,   // Args
	)
	if err != nil {
		return nil, fmt.Errorf("error consuming from %s: %w", p.queue, err)
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal(d.Body, &msg); err != nil {
					p.logger.Warn("skipping malformed notification", slog.Any("error", err))
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close stops reconnecting and closes the channel and connection.
func (p *AMQPPlatform) Close() error {
	p.closeOnce.Do(func() { close(p.done) })

	p.mu.Lock()
	sess := p.sess
	p.sess = amqpSession{}
	p.mu.Unlock()

	return sess.close()
}
