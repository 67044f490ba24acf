package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// MailLogName is the outbox file the consumer appends to inside Dir.
const MailLogName = "mail.log"

// MailConsumer drains password.reset.requested and appends one line per
// message to Dir/mail.log.  Actual SMTP delivery is left to whatever tails
// that file.
type MailConsumer struct {
    URL string
    Dir string
    Log *zap.Logger
}

func NewMailConsumer(url, dir string, log *zap.Logger) *MailConsumer {
    if dir == "" {
        dir = "logs"
    }
    return &MailConsumer{URL: url, Dir: dir, Log: log}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled, reconnecting
// with exponential backoff (capped at 30s) whenever the broker goes away.
func (m *MailConsumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(m.URL)
        if err != nil {
            m.Log.Warn("mail-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = m.consume(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        m.Log.Warn("mail-consumer: consume loop ended, reconnecting", zap.Error(err))
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (m *MailConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        m.Log.Warn("mail-consumer: set QoS failed", zap.Error(err))
    }
    if _, err := ch.QueueDeclare(PasswordResetQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.ConsumeWithContext(ctx, PasswordResetQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for d := range msgs {
        if err := m.handleMessage(d.Body); err != nil {
            m.Log.Error("mail-consumer: handle message failed", zap.Error(err))
            _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
            continue
        }
        _ = d.Ack(false)
    }
    return errors.New("deliveries channel closed")
}

func (m *MailConsumer) handleMessage(body []byte) error {
    var ev PasswordResetRequested
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if strings.TrimSpace(ev.Email) == "" {
        return errors.New("event has no recipient")
    }
    if err := os.MkdirAll(m.Dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", m.Dir, err)
    }
    f, err := os.OpenFile(filepath.Join(m.Dir, MailLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
    if err != nil {
        return fmt.Errorf("open mail log: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatMail(ev)); err != nil {
        return fmt.Errorf("write mail log: %w", err)
    }
    return nil
}

// FormatMail renders an event as a single outbox line.
func FormatMail(ev PasswordResetRequested) string {
    return fmt.Sprintf("[%s] Password reset PIN | to=%s | name=%q | pin=%s | expires_at=%s\n",
        ev.RequestedAt, ev.Email, ev.Name, ev.Pin, ev.ExpiresAt)
}

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
