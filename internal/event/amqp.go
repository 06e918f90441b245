package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/waverelay/waverelay/internal/logger"
)

// AMQPPublisher mirrors events onto a RabbitMQ topic exchange so services
// outside this process can consume them. Routing key is the event type.
type AMQPPublisher struct {
	conn     *amqp091.Connection
	exchange string
	log      *slog.Logger
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &AMQPPublisher{
		conn:     conn,
		exchange: exchange,
		log:      logger.L.With(slog.String("service", "amqp-publisher")),
	}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = ch.PublishWithContext(
		ctx, p.exchange, string(ev.Type), false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	return p.conn.Close()
}

// MultiPublisher fans one event out to several publishers. A failing mirror
// is logged but does not fail the others.
type MultiPublisher struct {
	publishers []Publisher
	log        *slog.Logger
}

func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	return &MultiPublisher{
		publishers: publishers,
		log:        logger.L.With(slog.String("service", "event-publisher")),
	}
}

func (m *MultiPublisher) Publish(ctx context.Context, ev Event) error {
	var firstErr error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, ev); err != nil {
			m.log.Error("publish failed",
				slog.String("type", string(ev.Type)),
				slog.Any("error", err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
