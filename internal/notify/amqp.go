package notify

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const notificationsQueue = "notifications"

// AMQPGateway publishes notifications as persistent JSON messages to a
// durable queue on the default exchange. The actual delivery to users
// (email, push, in-app) is a downstream consumer's job.
type AMQPGateway struct {
	url string
}

func NewAMQPGateway(url string) *AMQPGateway {
	return &AMQPGateway{url: url}
}

func (g *AMQPGateway) Notify(ctx context.Context, n Notification) error {
	conn, err := amqp.Dial(g.url)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		notificationsQueue, // name
		true,               // durable
		false,              // autoDelete
		false,              // exclusive
		false,              // noWait
		nil,                // args
	); err != nil {
		return err
	}

	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx,
		"",                 // default exchange
		notificationsQueue, // routing key = queue name
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}
