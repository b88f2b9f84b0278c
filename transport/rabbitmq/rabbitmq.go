// Package rabbitmq provides a RabbitMQ/AMQP transport.
package rabbitmq

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/axonbridge/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "rabbitmq"

// Schemes lists the URL schemes served by this transport.
var Schemes = []string{"amqp", "amqps"}

const (
	paramMode        = "mode"
	paramQueueSuffix = "queue_suffix"

	// ModeQueue delivers each message to one consumer of a durable queue named
	// after the topic. It is the default.
	ModeQueue = "queue"
	// ModePubSub fans each message out to every bridge through a fanout
	// exchange named after the topic.
	ModePubSub = "pubsub"
)

// ConnectionFactory allows overriding the connection creation for testing.
var ConnectionFactory = func(cfg amqp.ConnectionConfig, logger watermill.LoggerAdapter) (*amqp.ConnectionWrapper, error) {
	return amqp.NewConnection(cfg, logger)
}

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Publisher, error) {
	return amqp.NewPublisherWithConnection(cfg, logger, conn)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Subscriber, error) {
	return amqp.NewSubscriberWithConnection(cfg, logger, conn)
}

// Register registers the RabbitMQ transport with the default registry.
// This should be called from an init() function in an importing package,
// or explicitly before using the transport.
func Register() {
	for _, scheme := range Schemes {
		transport.RegisterWithCapabilities(scheme, Build, transport.RabbitMQCapabilities)
	}
}

// Build creates a new RabbitMQ transport sharing one connection between the
// publisher and the subscriber.
//
// Query parameters: mode (queue or pubsub) and queue_suffix (pubsub only,
// default "axonbridge").
func Build(ctx context.Context, ep transport.Endpoint, logger watermill.LoggerAdapter) (transport.Transport, error) {
	url := ep.DialURL(paramMode, paramQueueSuffix)

	amqpConfig, err := configFor(ep, url)
	if err != nil {
		return transport.Transport{}, err
	}

	conn, err := ConnectionFactory(amqp.ConnectionConfig{
		AmqpURI:   url,
		TLSConfig: nil,
		Reconnect: amqp.DefaultReconnectConfig(),
	}, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	publisher, err := PublisherFactory(amqpConfig, logger, conn)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(amqpConfig, logger, conn)
	if err != nil {
		_ = publisher.Close()
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.RabbitMQCapabilities
}

func configFor(ep transport.Endpoint, url string) (amqp.Config, error) {
	switch mode := ep.Param(paramMode, ModeQueue); mode {
	case ModeQueue:
		return amqp.NewDurableQueueConfig(url), nil
	case ModePubSub:
		suffix := ep.Param(paramQueueSuffix, "axonbridge")
		return amqp.NewDurablePubSubConfig(url, amqp.GenerateQueueNameTopicNameWithSuffix(suffix)), nil
	default:
		return amqp.Config{}, fmt.Errorf("rabbitmq: unknown mode %q", mode)
	}
}
