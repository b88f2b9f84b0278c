// Package http provides an HTTP webhook transport: messages are POSTed to a
// peer and received on a local listener.
package http

import (
	"context"
	nethttp "net/http"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/axonbridge/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "http"

// Schemes lists the URL schemes served by this transport.
var Schemes = []string{"http", "https"}

// DefaultListenAddress is where inbound webhooks are accepted when the
// endpoint does not say otherwise.
const DefaultListenAddress = ":8081"

const paramListen = "listen"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(config http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return http.NewPublisher(config, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(addr string, config http.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return http.NewSubscriber(addr, config, logger)
}

func init() {
	for _, scheme := range Schemes {
		transport.RegisterWithCapabilities(scheme, Build, transport.HTTPCapabilities)
	}
}

// Build creates a new HTTP transport. The endpoint URL (without query) is the
// peer's base URL; the send topic is appended as the last path segment. The
// listen query parameter sets the local address for inbound messages, which
// arrive at /<receive topic>.
func Build(ctx context.Context, ep transport.Endpoint, logger watermill.LoggerAdapter) (transport.Transport, error) {
	base := PublishBaseURL(ep)

	publisher, err := PublisherFactory(
		http.PublisherConfig{
			MarshalMessageFunc: func(topic string, msg *message.Message) (*nethttp.Request, error) {
				return http.DefaultMarshalMessageFunc(base+topic, msg)
			},
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(
		ep.Param(paramListen, DefaultListenAddress),
		http.SubscriberConfig{
			UnmarshalMessageFunc: http.DefaultUnmarshalMessageFunc,
		},
		logger,
	)
	if err != nil {
		_ = publisher.Close()
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: &pathSubscriber{inner: subscriber, logger: logger},
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.HTTPCapabilities
}

// PublishBaseURL is the peer URL every send topic is appended to.
func PublishBaseURL(ep transport.Endpoint) string {
	base := ep.DialURL(paramListen)
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

type httpServerStarter interface {
	StartHTTPServer() error
}

// pathSubscriber mounts topics as URL paths and starts the listener once the
// first route is registered.
type pathSubscriber struct {
	inner  message.Subscriber
	logger watermill.LoggerAdapter
	once   sync.Once
}

func (s *pathSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if !strings.HasPrefix(topic, "/") {
		topic = "/" + topic
	}
	messages, err := s.inner.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}
	s.once.Do(func() {
		starter, ok := s.inner.(httpServerStarter)
		if !ok {
			return
		}
		go func() {
			if err := starter.StartHTTPServer(); err != nil && err != nethttp.ErrServerClosed {
				s.logger.Error("HTTP subscriber server stopped", err, nil)
			}
		}()
	})
	return messages, nil
}

func (s *pathSubscriber) Close() error {
	return s.inner.Close()
}
