package queue

import (
    "context"
    "encoding/json"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// Publisher sends domain events to the broker.  Callers treat failures as
// non-fatal: the request that triggered the event still succeeds.
type Publisher interface {
    PublishPasswordReset(ctx context.Context, ev PasswordResetRequested) error
}

// AMQPPublisher publishes over a short-lived connection per message.  Reset
// requests are rare, so there is no connection to keep healthy in between.
type AMQPPublisher struct {
    URL string
    Log *zap.Logger
}

func NewAMQPPublisher(url string, log *zap.Logger) *AMQPPublisher {
    return &AMQPPublisher{URL: url, Log: log}
}

// PublishPasswordReset publishes ev to the password.reset.requested queue as a
// persistent JSON message.  Any error is logged and returned.
func (p *AMQPPublisher) PublishPasswordReset(ctx context.Context, ev PasswordResetRequested) error {
    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }
    if err := p.publish(ctx, PasswordResetQueue, body); err != nil {
        p.Log.Warn("rabbitmq: publish failed", zap.String("queue", PasswordResetQueue), zap.Error(err))
        return err
    }
    return nil
}

func (p *AMQPPublisher) publish(ctx context.Context, queue string, body []byte) error {
    conn, err := amqp.Dial(p.URL)
    if err != nil {
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return err
    }
    defer func() { _ = ch.Close() }()

    // Idempotent; durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
        return err
    }

    return ch.PublishWithContext(ctx,
        "",    // default exchange
        queue, // routing key = queue name
        false, // mandatory
        false, // immediate
        amqp.Publishing{
            ContentType:  "application/json",
            DeliveryMode: amqp.Persistent,
            Timestamp:    time.Now().UTC(),
            Body:         body,
        },
    )
}

// Discard drops every event.  Used in tests and when messaging is disabled.
type Discard struct{}

func (Discard) PublishPasswordReset(context.Context, PasswordResetRequested) error { return nil }
