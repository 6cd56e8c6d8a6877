package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/colloquium-dev/colloquium/internal/conversation"
)

// Publisher fans conversation progress events out to an AMQP queue so other
// systems can follow runs without holding an SSE connection. It implements
// conversation.EventSink.
type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

type eventEnvelope struct {
	ConversationID string                 `json:"conversation_id"`
	Type           conversation.EventType `json:"type"`
	Data           any                    `json:"data"`
	Timestamp      time.Time              `json:"timestamp"`
}

// NewPublisher connects and declares the durable event queue.
func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Publish sends one progress event as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, conversationID string, ev conversation.Event) error {
	body, err := json.Marshal(eventEnvelope{
		ConversationID: conversationID,
		Type:           ev.Type,
		Data:           ev.Data,
		Timestamp:      time.Now(),
	})
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}
