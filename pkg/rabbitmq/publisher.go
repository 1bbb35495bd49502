package rabbitmq

import (
	"context"
	"encoding/json"

	"audio-vault/config"
	"audio-vault/dto"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const eventExchange = "recordings.events"

// Publisher emits storage incidents to the event exchange so operational
// tooling (orphan sweepers, alerting) can consume them.
type Publisher struct {
	conn *amqp.Connection
	cfg  *config.RabbitMQ
}

func NewPublisher(conn *amqp.Connection, cfg *config.RabbitMQ) *Publisher {
	return &Publisher{
		conn: conn,
		cfg:  cfg,
	}
}

func (p *Publisher) Publish(ctx context.Context, event dto.StorageEvent) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(eventExchange, p.cfg.Kind, true, false, false, false, nil); err != nil {
		zerolog.Ctx(ctx).Error().Str("exchange", eventExchange).Msg("failed to declare exchange")
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx, eventExchange, string(event.Kind), false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}
