package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const (
	ExchangeName = "wailsalutem.clinic.events"
	ExchangeType = "topic"
)

// Publisher handles publishing events to RabbitMQ
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// New returns a RabbitMQ publisher for rabbitmqURL, or a NopPublisher when the
// URL is empty.
func New(rabbitmqURL string) (PublisherInterface, error) {
	if rabbitmqURL == "" {
		log.Warn().Msg("RABBITMQ_URL not set, domain events disabled")
		return NopPublisher{}, nil
	}
	return NewPublisher(rabbitmqURL)
}

// NewPublisher connects to RabbitMQ and declares the topic exchange.
func NewPublisher(rabbitmqURL string) (*Publisher, error) {
	log.Info().Str("url", maskPassword(rabbitmqURL)).Msg("connecting to RabbitMQ")

	conn, err := amqp.Dial(rabbitmqURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		ExchangeName, // name
		ExchangeType, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	log.Info().Str("exchange", ExchangeName).Msg("connected to RabbitMQ")

	return &Publisher{
		conn:     conn,
		channel:  channel,
		exchange: ExchangeName,
	}, nil
}

// Publish publishes an event to RabbitMQ with the specified routing key
func (p *Publisher) Publish(ctx context.Context, routingKey string, eventData interface{}) error {
	if p == nil || p.channel == nil {
		log.Warn().Str("routing_key", routingKey).Msg("RabbitMQ publisher not initialized, skipping event")
		return nil
	}

	body, err := json.Marshal(eventData)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
	}
	if base, ok := baseOf(eventData); ok {
		msg.MessageId = base.EventID
		msg.Type = base.EventType
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange, // exchange
		routingKey, // routing key (e.g., "visit.deleted")
		false,      // mandatory
		false,      // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", routingKey, err)
	}

	log.Debug().Str("routing_key", routingKey).Msg("published event")
	return nil
}

// Close closes the RabbitMQ connection
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			log.Error().Err(err).Msg("error closing RabbitMQ channel")
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func baseOf(event interface{}) (BaseEvent, bool) {
	switch e := event.(type) {
	case PatientCreatedEvent:
		return e.BaseEvent, true
	case PatientDeletedEvent:
		return e.BaseEvent, true
	case VisitDeletedEvent:
		return e.BaseEvent, true
	case PrescriptionCreatedEvent:
		return e.BaseEvent, true
	case FileUploadedEvent:
		return e.BaseEvent, true
	case FileDeletedEvent:
		return e.BaseEvent, true
	}
	return BaseEvent{}, false
}

// maskPassword hides the credentials of an AMQP URL for logging.
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "amqp://***"
	}
	return u.Redacted()
}
