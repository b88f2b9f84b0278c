// Package channel provides an in-memory bus built on Go channels.
//
// Endpoints with the same host share one bus inside the process, so two
// transport clients dialing channel://loop can talk to each other. An endpoint
// without a host gets a private bus. Every subscriber on a topic gets its own
// copy of each message, the sender's included; the dealer filters those out.
package channel

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/axonbridge/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "channel"

// Schemes lists the URL schemes served by this transport.
var Schemes = []string{TransportName, "mem"}

// Factory allows overriding the channel creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(cfg, logger)
}

var (
	busesMu sync.Mutex
	buses   = make(map[string]*bus)
)

type bus struct {
	name   string
	pubSub *gochannel.GoChannel
	refs   int
}

func init() {
	Register()
}

// Register registers the channel transport with the default registry.
func Register() {
	for _, scheme := range Schemes {
		transport.RegisterWithCapabilities(scheme, Build, transport.ChannelCapabilities)
	}
}

// Build opens a handle on the bus named by the endpoint host.
//
// Query parameters: buffer (output channel buffer, default 64) and
// persistent=true to keep messages published before anyone subscribed.
func Build(ctx context.Context, ep transport.Endpoint, logger watermill.LoggerAdapter) (transport.Transport, error) {
	buffer, err := ep.IntParam("buffer", 64)
	if err != nil {
		return transport.Transport{}, err
	}
	cfg := gochannel.Config{
		OutputChannelBuffer: int64(buffer),
		Persistent:          ep.Param("persistent", "") == "true",
	}

	name := ""
	if ep.URL != nil {
		name = ep.URL.Host
	}
	h := &handle{bus: acquire(name, cfg, logger)}
	return transport.Transport{Publisher: h, Subscriber: h}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.ChannelCapabilities
}

// Buses returns the names of the shared buses currently open.
func Buses() []string {
	busesMu.Lock()
	defer busesMu.Unlock()
	names := make([]string, 0, len(buses))
	for name := range buses {
		names = append(names, name)
	}
	return names
}

func acquire(name string, cfg gochannel.Config, logger watermill.LoggerAdapter) *bus {
	if name == "" {
		return &bus{pubSub: Factory(cfg, logger), refs: 1}
	}

	busesMu.Lock()
	defer busesMu.Unlock()
	b, ok := buses[name]
	if !ok {
		b = &bus{name: name, pubSub: Factory(cfg, logger)}
		buses[name] = b
	}
	b.refs++
	return b
}

func release(b *bus) error {
	if b.name == "" {
		return b.pubSub.Close()
	}

	busesMu.Lock()
	b.refs--
	last := b.refs == 0
	if last {
		delete(buses, b.name)
	}
	busesMu.Unlock()

	if last {
		return b.pubSub.Close()
	}
	return nil
}

// handle is one client's view of a bus. Closing it releases the bus and
// closes the underlying channels once the last handle is gone.
type handle struct {
	bus  *bus
	once sync.Once
}

func (h *handle) Publish(topic string, messages ...*message.Message) error {
	return h.bus.pubSub.Publish(topic, messages...)
}

func (h *handle) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return h.bus.pubSub.Subscribe(ctx, topic)
}

func (h *handle) Close() error {
	var err error
	h.once.Do(func() { err = release(h.bus) })
	return err
}
