// Package service provides the RabbitMQ publisher for session audit
// events.
package service

import (
    "context"
    "encoding/json"
    "fmt"
    "log/slog"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    q "github.com/iliyamo/cms-backend/internal/queue"
)

// AMQPPublisher publishes AuthEvents to the durable auth.events queue.
// The connection is opened on first use and reopened after the broker
// drops it.  It is safe for concurrent use.
type AMQPPublisher struct {
    url         string
    dialTimeout time.Duration
    log         *slog.Logger

    mu   sync.Mutex
    conn *amqp.Connection
    ch   *amqp.Channel
}

func NewAMQPPublisher(url string, log *slog.Logger) *AMQPPublisher {
    if log == nil {
        log = slog.Default()
    }
    return &AMQPPublisher{url: url, dialTimeout: 2 * time.Second, log: log}
}

// Publish sends event as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, event q.AuthEvent) error {
    body, err := json.Marshal(event)
    if err != nil {
        return err
    }

    p.mu.Lock()
    defer p.mu.Unlock()

    ch, err := p.channel()
    if err != nil {
        return err
    }
    err = ch.PublishWithContext(ctx, "", q.AuthEventsQueue, false, false, amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Type:         event.Type,
        Body:         body,
    })
    if err != nil {
        p.log.Warn("rabbitmq: publish failed", "type", event.Type, "err", err)
        p.reset()
        return fmt.Errorf("publish %s: %w", event.Type, err)
    }
    return nil
}

// channel returns the open channel, dialing first if needed.  p.mu is held.
func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
    if p.ch != nil && !p.ch.IsClosed() {
        return p.ch, nil
    }
    p.reset()

    conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(p.dialTimeout)})
    if err != nil {
        return nil, fmt.Errorf("rabbitmq dial: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, fmt.Errorf("rabbitmq channel: %w", err)
    }
    if _, err := ch.QueueDeclare(q.AuthEventsQueue, true, false, false, false, nil); err != nil {
        _ = conn.Close()
        return nil, fmt.Errorf("rabbitmq declare %s: %w", q.AuthEventsQueue, err)
    }
    p.conn, p.ch = conn, ch
    return ch, nil
}

func (p *AMQPPublisher) reset() {
    if p.conn != nil {
        _ = p.conn.Close()
    }
    p.conn, p.ch = nil, nil
}

// Close releases the broker connection.
func (p *AMQPPublisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.reset()
    return nil
}
