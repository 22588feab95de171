package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gamevault/apiserver/config"
	"github.com/gamevault/apiserver/types"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Attribute carrying the event type, so consumers can filter without decoding.
const eventTypeAttr = "event_type"

// Bus publishes and consumes catalog events on a single channel.
type Bus struct {
	backend Backend
	channel string
}

// NewBus binds backend to channel.
func NewBus(backend Backend, channel string) *Bus {
	return &Bus{backend: backend, channel: channel}
}

// New connects to the configured broker. It returns (nil, nil) when
// MQ_BACKEND is empty, which turns event publication into a no-op.
func New(ctx context.Context, cfg config.MQConfig) (*Bus, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case "":
		return nil, nil
	case config.MQRabbitMQ:
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case config.MQPubSub:
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewBus(backend, cfg.Channel), nil
}

// Channel returns the channel events are published on.
func (b *Bus) Channel() string {
	return b.channel
}

// PublishCatalogEvent encodes event as JSON and publishes it.
func (b *Bus) PublishCatalogEvent(ctx context.Context, event types.CatalogEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	if _, err := b.backend.Publish(ctx, b.channel, data, map[string]string{eventTypeAttr: event.Type}); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	return nil
}

// SubscribeCatalogEvents decodes every message on the channel and passes it
// to fn. Undecodable messages are acknowledged and reported through onError
// so they are not redelivered forever.
func (b *Bus) SubscribeCatalogEvents(ctx context.Context, fn func(context.Context, types.CatalogEvent) error, onError func(Message, error)) error {
	return b.backend.Subscribe(ctx, b.channel, func(ctx context.Context, msg Message) error {
		var event types.CatalogEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			if onError != nil {
				onError(msg, err)
			}
			return nil
		}
		return fn(ctx, event)
	})
}

// Close closes the underlying backend.
func (b *Bus) Close() error {
	return b.backend.Close()
}
