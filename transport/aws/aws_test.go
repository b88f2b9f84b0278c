package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-aws/sns"
	"github.com/ThreeDotsLabs/watermill-aws/sqs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
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

type factories struct {
	loaderCalls int
	accountID   string
	region      string
	pubCfg      sns.PublisherConfig
	sqsCfg      sqs.SubscriberConfig
}

func mockFactories(t *testing.T, pub message.Publisher, sub message.Subscriber) *factories {
	t.Helper()
	originalConfigLoader := DefaultConfigLoader
	originalTopicResolver := TopicResolverFactory
	originalPubFactory := PublisherFactory
	originalSubFactory := SubscriberFactory
	t.Cleanup(func() {
		DefaultConfigLoader = originalConfigLoader
		TopicResolverFactory = originalTopicResolver
		PublisherFactory = originalPubFactory
		SubscriberFactory = originalSubFactory
	})

	f := &factories{}
	DefaultConfigLoader = func(ctx context.Context, opts ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		f.loaderCalls++
		return aws.Config{Region: "us-east-1"}, nil
	}
	TopicResolverFactory = func(accountID, region string) (*sns.GenerateArnTopicResolver, error) {
		f.accountID = accountID
		f.region = region
		return &sns.GenerateArnTopicResolver{}, nil
	}
	PublisherFactory = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		f.pubCfg = cfg
		if pub == nil {
			return nil, errors.New("publisher error")
		}
		return pub, nil
	}
	SubscriberFactory = func(cfg sns.SubscriberConfig, sqsCfg sqs.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		f.sqsCfg = sqsCfg
		if sub == nil {
			return nil, errors.New("subscriber error")
		}
		return sub, nil
	}
	return f
}

func TestRegister(t *testing.T) {
	original := transport.DefaultRegistry
	defer func() { transport.DefaultRegistry = original }()

	transport.DefaultRegistry = transport.NewRegistry()
	Register()

	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, "aws", caps.Name)
	assert.Equal(t, int64(262144), caps.MaxMessageSize)
}

func TestCapabilities(t *testing.T) {
	assert.Equal(t, transport.AWSCapabilities, Capabilities())
}

func TestSettingsFrom(t *testing.T) {
	s := SettingsFrom(endpoint(t, "aws://eu-west-1?account_id='123456789012'&access_key_id=AK&secret_access_key=SK&endpoint=http://localhost:4566"))
	assert.Equal(t, Settings{
		Region:          "eu-west-1",
		AccountID:       "123456789012",
		AccessKeyID:     "AK",
		SecretAccessKey: "SK",
		Endpoint:        "http://localhost:4566",
	}, s)

	s = SettingsFrom(endpoint(t, "aws:?region=ap-south-1"))
	assert.Equal(t, "ap-south-1", s.Region)
}

func TestBuild(t *testing.T) {
	t.Run("creates transport with mocked factories", func(t *testing.T) {
		mockPub := &mockPublisher{}
		mockSub := &mockSubscriber{}
		f := mockFactories(t, mockPub, mockSub)

		tr, err := Build(context.Background(), endpoint(t, "aws://us-west-2?account_id=123456789012"), watermill.NopLogger{})

		require.NoError(t, err)
		assert.Equal(t, mockPub, tr.Publisher)
		assert.Equal(t, mockSub, tr.Subscriber)
		assert.Equal(t, "123456789012", f.accountID)
		assert.Equal(t, "us-west-2", f.region)
		assert.Equal(t, "us-west-2", f.pubCfg.AWSConfig.Region)
		assert.Empty(t, f.pubCfg.OptFns)
	})

	t.Run("custom endpoint installs resolvers", func(t *testing.T) {
		f := mockFactories(t, &mockPublisher{}, &mockSubscriber{})

		_, err := Build(context.Background(), endpoint(t, "aws://us-east-1?endpoint=http://localhost:4566"), watermill.NopLogger{})
		require.NoError(t, err)
		assert.Equal(t, localstackAccountID, f.accountID)
		assert.Len(t, f.pubCfg.OptFns, 1)
		assert.Len(t, f.sqsCfg.OptFns, 1)
	})

	t.Run("returns error when config loader fails", func(t *testing.T) {
		mockFactories(t, &mockPublisher{}, &mockSubscriber{})
		DefaultConfigLoader = func(ctx context.Context, opts ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
			return aws.Config{}, errors.New("config error")
		}

		_, err := Build(context.Background(), endpoint(t, "aws://us-east-1"), watermill.NopLogger{})
		assert.ErrorContains(t, err, "config error")
	})

	t.Run("returns error when publisher factory fails", func(t *testing.T) {
		mockFactories(t, nil, &mockSubscriber{})

		_, err := Build(context.Background(), endpoint(t, "aws://us-east-1?account_id=123456789012"), watermill.NopLogger{})
		assert.ErrorContains(t, err, "publisher error")
	})

	t.Run("closes publisher when subscriber factory fails", func(t *testing.T) {
		pub := &mockPublisher{}
		mockFactories(t, pub, nil)

		_, err := Build(context.Background(), endpoint(t, "aws://us-east-1?account_id=123456789012"), watermill.NopLogger{})
		assert.ErrorContains(t, err, "subscriber error")
		assert.True(t, pub.closed)
	})
}

func TestResolveAccountAndRegion(t *testing.T) {
	t.Run("uses settings values", func(t *testing.T) {
		accountID, region := resolveAccountAndRegion(Settings{AccountID: "123456789012", Region: "us-west-2"}, watermill.NopLogger{}, "us-east-1")
		assert.Equal(t, "123456789012", accountID)
		assert.Equal(t, "us-west-2", region)
	})

	t.Run("uses fallback region", func(t *testing.T) {
		_, region := resolveAccountAndRegion(Settings{AccountID: "123456789012"}, watermill.NopLogger{}, "us-east-1")
		assert.Equal(t, "us-east-1", region)
	})

	t.Run("localstack default when account empty", func(t *testing.T) {
		accountID, _ := resolveAccountAndRegion(Settings{Endpoint: "http://localhost:4566"}, watermill.NopLogger{}, "us-east-1")
		assert.Equal(t, localstackAccountID, accountID)
	})

	t.Run("localstack default when account malformed", func(t *testing.T) {
		accountID, _ := resolveAccountAndRegion(Settings{AccountID: "42", Endpoint: "http://localhost:4566"}, watermill.NopLogger{}, "us-east-1")
		assert.Equal(t, localstackAccountID, accountID)
	})
}

func TestEndpointOptions(t *testing.T) {
	snsOpts, sqsOpts, err := endpointOptions(Settings{})
	require.NoError(t, err)
	assert.Nil(t, snsOpts)
	assert.Nil(t, sqsOpts)

	_, _, err = endpointOptions(Settings{Endpoint: "http://bad host"})
	assert.ErrorContains(t, err, "failed to parse AWS endpoint")
}

type mockPublisher struct {
	closed bool
}

func (m *mockPublisher) Publish(topic string, messages ...*message.Message) error { return nil }
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

func (m *mockSubscriber) Close() error { return nil }
