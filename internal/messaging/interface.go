package messaging

import (
	"context"

	"github.com/rs/zerolog/log"
)

// PublisherInterface defines the contract for event publishing
// This allows for easy mocking in tests
type PublisherInterface interface {
	Publish(ctx context.Context, routingKey string, eventData interface{}) error
	Close() error
}

// Ensure Publisher implements PublisherInterface
var _ PublisherInterface = (*Publisher)(nil)
var _ PublisherInterface = NopPublisher{}

// NopPublisher drops every event. Used when RABBITMQ_URL is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, routingKey string, eventData interface{}) error {
	log.Debug().Str("routing_key", routingKey).Msg("event publishing disabled, dropping event")
	return nil
}

func (NopPublisher) Close() error { return nil }

// PublishOrLog publishes an event for a change that has already been
// committed. Failures are logged and never returned.
func PublishOrLog(ctx context.Context, p PublisherInterface, routingKey string, event interface{}) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, routingKey, event); err != nil {
		log.Error().Err(err).Str("routing_key", routingKey).Msg("failed to publish event")
	}
}
