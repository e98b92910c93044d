// Package service publishes domain events to RabbitMQ.  Publishing is best
// effort: failures are logged and never surface to the HTTP caller.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Saireddy1599/WatchTogether/internal/queue"
)

// Publisher sends audit events somewhere durable.
type Publisher interface {
	Publish(ctx context.Context, ev queue.AuditEvent) error
}

// NopPublisher drops every event.  It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.AuditEvent) error { return nil }

// AMQPPublisher publishes to the gateway.audit queue, dialing per publish.
type AMQPPublisher struct {
	URL string
}

var _ Publisher = (*AMQPPublisher)(nil)

func NewAMQPPublisher(url string) *AMQPPublisher { return &AMQPPublisher{URL: url} }

// Publish marks messages persistent and declares the queue durable so
// events survive broker restarts.
func (p *AMQPPublisher) Publish(ctx context.Context, ev queue.AuditEvent) error {
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

	if _, err := ch.QueueDeclare(
		queue.AuditQueue, // name
		true,             // durable
		false,            // autoDelete
		false,            // exclusive
		false,            // noWait
		nil,              // args
	); err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx,
		"",               // default exchange
		queue.AuditQueue, // routing key = queue name
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}

// Emit publishes ev in the background, detached from the request so a slow
// broker never delays the response.
func Emit(ctx context.Context, p Publisher, log *slog.Logger, ev queue.AuditEvent) {
	if p == nil {
		return
	}
	if ev.At == "" {
		ev.At = time.Now().UTC().Format(time.RFC3339)
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := p.Publish(ctx, ev); err != nil {
			log.Warn("audit publish failed", "type", ev.Type, "err", err)
		}
	}()
}
