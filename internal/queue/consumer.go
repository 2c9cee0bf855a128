// Package queue carries session audit events over RabbitMQ: the event
// payload, and the consumer that appends them to <dir>/auth.log.
package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log/slog"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

const maxBackoff = 30 * time.Second

// AuditConsumer drains the auth.events queue into an append-only log
// file.  Malformed messages are dropped (nack without requeue).
type AuditConsumer struct {
    URL string
    Dir string
    Log *slog.Logger
}

// Run consumes until ctx is cancelled, reconnecting with exponential
// backoff whenever the broker goes away.
func (a *AuditConsumer) Run(ctx context.Context) {
    log := a.logger()
    backoff := time.Second
    for ctx.Err() == nil {
        conn, err := amqp.Dial(a.URL)
        if err != nil {
            log.Warn("audit consumer: dial failed", "err", err, "retry_in", backoff)
            if !sleep(ctx, backoff) {
                return
            }
            backoff = min(backoff*2, maxBackoff)
            continue
        }
        backoff = time.Second

        err = a.consume(ctx, conn)
        _ = conn.Close()
        if err != nil && ctx.Err() == nil {
            log.Warn("audit consumer: reconnecting", "err", err)
            sleep(ctx, 2*time.Second)
        }
    }
}

func (a *AuditConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("open channel: %w", err)
    }
    defer ch.Close()

    if err := ch.Qos(50, 0, false); err != nil {
        return fmt.Errorf("qos: %w", err)
    }
    if _, err := ch.QueueDeclare(AuthEventsQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("declare %s: %w", AuthEventsQueue, err)
    }
    msgs, err := ch.Consume(AuthEventsQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("consume %s: %w", AuthEventsQueue, err)
    }

    for {
        select {
        case <-ctx.Done():
            return nil
        case d, ok := <-msgs:
            if !ok {
                return errors.New("delivery channel closed")
            }
            if err := HandleMessage(a.Dir, d.Body); err != nil {
                a.logger().Error("audit consumer: dropping message", "err", err)
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func (a *AuditConsumer) logger() *slog.Logger {
    if a.Log != nil {
        return a.Log
    }
    return slog.Default()
}

// HandleMessage decodes one AuthEvent and appends it to dir/auth.log.
func HandleMessage(dir string, body []byte) error {
    var ev AuthEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("decode event: %w", err)
    }
    if ev.Type == "" {
        return errors.New("event without type")
    }
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return err
    }
    f, err := os.OpenFile(filepath.Join(dir, "auth.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return err
    }
    defer f.Close()

    _, err = fmt.Fprintf(f, "[%s] %s | user_id=%s | token_id=%s | method=%s\n",
        ev.OccurredAt, ev.Type, orDash(ev.UserID), orDash(ev.TokenID), orDash(ev.Method))
    return err
}

func orDash(s string) string {
    if s == "" {
        return "-"
    }
    return s
}

// sleep waits for d or until ctx is done, reporting whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
