// Package kafka provides a Kafka transport.
package kafka

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/axonbridge/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "kafka"

// DefaultConsumerGroup is used when the endpoint names none.
const DefaultConsumerGroup = "axonbridge"

const (
	paramBrokers       = "brokers"
	paramConsumerGroup = "consumer_group"
	paramClientID      = "client_id"
)

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return kafka.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg kafka.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return kafka.NewSubscriber(cfg, logger)
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.KafkaCapabilities)
}

// Build creates a new Kafka transport.
//
// Brokers come from the URL host list (kafka://b1:9092,b2:9092) or the
// brokers query parameter. Other parameters: consumer_group and client_id.
func Build(ctx context.Context, ep transport.Endpoint, logger watermill.LoggerAdapter) (transport.Transport, error) {
	brokers := Brokers(ep)
	if len(brokers) == 0 {
		return transport.Transport{}, fmt.Errorf("kafka: brokers are required")
	}
	clientID := ep.Param(paramClientID, "axonbridge")

	publisher, err := PublisherFactory(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaConfig(ctx, kafka.DefaultSaramaSyncPublisherConfig(), clientID),
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			ConsumerGroup:         ep.Param(paramConsumerGroup, DefaultConsumerGroup),
			OverwriteSaramaConfig: saramaConfig(ctx, kafka.DefaultSaramaSubscriberConfig(), clientID),
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
	return transport.KafkaCapabilities
}

// Brokers returns the broker addresses named by the endpoint.
func Brokers(ep transport.Endpoint) []string {
	if hosts := ep.Hosts(); len(hosts) > 0 {
		return hosts
	}
	var brokers []string
	for _, b := range strings.Split(ep.Param(paramBrokers, ""), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// saramaConfig stamps the client id and bounds dialing by ctx's deadline.
func saramaConfig(ctx context.Context, cfg *sarama.Config, clientID string) *sarama.Config {
	cfg.ClientID = clientID
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 {
			cfg.Net.DialTimeout = remaining
		}
	}
	return cfg
}
