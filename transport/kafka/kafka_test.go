package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/axonbridge/transport"
)

func endpoint(t *testing.T, raw string) transport.Endpoint {
	t.Helper()
	ep, err := transport.ParseEndpoint(raw)
	require.NoError(t, err)
	return ep
}

func TestRegister(t *testing.T) {
	assert.True(t, transport.DefaultRegistry.Has(TransportName))
	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, "kafka", caps.Name)
	assert.True(t, caps.SupportsOrdering)
}

func TestCapabilities(t *testing.T) {
	assert.Equal(t, transport.KafkaCapabilities, Capabilities())
}

func TestBrokers(t *testing.T) {
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, Brokers(endpoint(t, "kafka://b1:9092,b2:9092")))
	assert.Equal(t, []string{"b3:9092", "b4:9092"}, Brokers(endpoint(t, "kafka:?brokers=b3:9092,%20b4:9092")))
	assert.Empty(t, Brokers(endpoint(t, "kafka:")))
}

func TestBuild(t *testing.T) {
	t.Run("creates transport with mocked factories", func(t *testing.T) {
		originalPubFactory := PublisherFactory
		originalSubFactory := SubscriberFactory
		defer func() {
			PublisherFactory = originalPubFactory
			SubscriberFactory = originalSubFactory
		}()

		mockPub := &mockPublisher{}
		mockSub := &mockSubscriber{}
		var pubCfg kafka.PublisherConfig
		var subCfg kafka.SubscriberConfig

		PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			pubCfg = cfg
			return mockPub, nil
		}
		SubscriberFactory = func(cfg kafka.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
			subCfg = cfg
			return mockSub, nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		tr, err := Build(ctx, endpoint(t, "kafka://localhost:9092?consumer_group=bridges&client_id=edge"), watermill.NopLogger{})

		require.NoError(t, err)
		assert.Equal(t, mockPub, tr.Publisher)
		assert.Equal(t, mockSub, tr.Subscriber)
		assert.Equal(t, []string{"localhost:9092"}, pubCfg.Brokers)
		assert.Equal(t, "bridges", subCfg.ConsumerGroup)
		assert.Equal(t, "edge", pubCfg.OverwriteSaramaConfig.ClientID)
		assert.Equal(t, "edge", subCfg.OverwriteSaramaConfig.ClientID)
		assert.LessOrEqual(t, pubCfg.OverwriteSaramaConfig.Net.DialTimeout, 10*time.Second)
		assert.Greater(t, pubCfg.OverwriteSaramaConfig.Net.DialTimeout, time.Duration(0))
	})

	t.Run("defaults consumer group", func(t *testing.T) {
		originalPubFactory := PublisherFactory
		originalSubFactory := SubscriberFactory
		defer func() {
			PublisherFactory = originalPubFactory
			SubscriberFactory = originalSubFactory
		}()

		var subCfg kafka.SubscriberConfig
		PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			return &mockPublisher{}, nil
		}
		SubscriberFactory = func(cfg kafka.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
			subCfg = cfg
			return &mockSubscriber{}, nil
		}

		_, err := Build(context.Background(), endpoint(t, "kafka://localhost:9092"), watermill.NopLogger{})
		require.NoError(t, err)
		assert.Equal(t, DefaultConsumerGroup, subCfg.ConsumerGroup)
	})

	t.Run("requires brokers", func(t *testing.T) {
		_, err := Build(context.Background(), endpoint(t, "kafka:"), watermill.NopLogger{})
		assert.ErrorContains(t, err, "brokers are required")
	})

	t.Run("returns error when publisher factory fails", func(t *testing.T) {
		originalPubFactory := PublisherFactory
		defer func() { PublisherFactory = originalPubFactory }()

		PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			return nil, errors.New("publisher error")
		}

		_, err := Build(context.Background(), endpoint(t, "kafka://localhost:9092"), watermill.NopLogger{})
		assert.ErrorContains(t, err, "publisher error")
	})

	t.Run("closes publisher when subscriber factory fails", func(t *testing.T) {
		originalPubFactory := PublisherFactory
		originalSubFactory := SubscriberFactory
		defer func() {
			PublisherFactory = originalPubFactory
			SubscriberFactory = originalSubFactory
		}()

		pub := &mockPublisher{}
		PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			return pub, nil
		}
		SubscriberFactory = func(cfg kafka.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
			return nil, errors.New("subscriber error")
		}

		_, err := Build(context.Background(), endpoint(t, "kafka://localhost:9092"), watermill.NopLogger{})
		assert.ErrorContains(t, err, "subscriber error")
		assert.True(t, pub.closed)
	})
}

type mockPublisher struct {
	closed bool
}

func (m *mockPublisher) Publish(topic string, messages ...*message.Message) error {
	return nil
}

func (m *mockPublisher) Close() error {
	m.closed = true
	return nil
}

type mockSubscriber struct{}

func (m *mockSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ch := make(chan *message.Message)
	close(ch)
	return ch, nil
}

func (m *mockSubscriber) Close() error {
	return nil
}
