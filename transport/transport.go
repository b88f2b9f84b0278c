// Package transport defines the bus backends the bridge's transport client can
// dial. Each backend lives in its own sub-package and registers the URL schemes
// it serves with the transport registry.
package transport

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Transport combines a publisher and subscriber pair produced by a builder.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close closes the publisher and the subscriber. A backend whose publisher and
// subscriber are the same value is closed once.
func (t Transport) Close() error {
	var errs []error
	if t.Subscriber != nil {
		errs = append(errs, t.Subscriber.Close())
	}
	if t.Publisher != nil && any(t.Publisher) != any(t.Subscriber) {
		errs = append(errs, t.Publisher.Close())
	}
	return errors.Join(errs...)
}

// Builder creates a transport for an endpoint. The context bounds dialing; a
// builder that can honour ctx's deadline should pass it down to its driver.
type Builder func(ctx context.Context, ep Endpoint, logger watermill.LoggerAdapter) (Transport, error)

// CapabilitiesProvider is implemented by transports that can report their capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}
