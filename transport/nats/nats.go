// Package nats provides a NATS Core transport.
package nats

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/drblury/axonbridge/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "nats"

// ClientName is reported to the NATS server for connections opened by the bridge.
const ClientName = "axonbridge"

const (
	paramQueueGroup   = "queue_group"
	paramSubscribers  = "subscribers"
	paramCloseTimeout = "close_timeout"
)

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return nats.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg nats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return nats.NewSubscriber(cfg, logger)
}

// Register registers the NATS transport with the default registry.
// This should be called from an init() function in an importing package,
// or explicitly before using the transport.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NATSCapabilities)
}

// Build creates a new NATS transport.
//
// Query parameters: queue_group (load-balance receives across bridges),
// subscribers (parallel subscriptions, default 1) and close_timeout.
func Build(ctx context.Context, ep transport.Endpoint, logger watermill.LoggerAdapter) (transport.Transport, error) {
	subscribers, err := ep.IntParam(paramSubscribers, 1)
	if err != nil {
		return transport.Transport{}, err
	}
	closeTimeout, err := ep.DurationParam(paramCloseTimeout, 30*time.Second)
	if err != nil {
		return transport.Transport{}, err
	}

	url := ep.DialURL(paramQueueGroup, paramSubscribers, paramCloseTimeout)
	options := connectOptions(ctx)
	marshaler := &nats.NATSMarshaler{}
	jetStream := nats.JetStreamConfig{Disabled: true}

	publisher, err := PublisherFactory(
		nats.PublisherConfig{
			URL:         url,
			NatsOptions: options,
			Marshaler:   marshaler,
			JetStream:   jetStream,
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(
		nats.SubscriberConfig{
			URL:              url,
			QueueGroupPrefix: ep.Param(paramQueueGroup, ""),
			SubscribersCount: subscribers,
			CloseTimeout:     closeTimeout,
			NatsOptions:      options,
			Unmarshaler:      marshaler,
			JetStream:        jetStream,
		},
		logger,
	)
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
	return transport.NATSCapabilities
}

// connectOptions names the connection and bounds the dial by ctx's deadline.
func connectOptions(ctx context.Context) []nc.Option {
	options := []nc.Option{nc.Name(ClientName)}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 {
			options = append(options, nc.Timeout(remaining))
		}
	}
	return options
}
