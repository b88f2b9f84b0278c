// Package dealer is the bridge's single connection to the message bus.
//
// A Dealer publishes envelopes to the endpoint's send topic and consumes its
// receive topic on one long-lived subscription. Received messages are routed
// into per-tag mailboxes so any number of callers can wait concurrently, each
// on its own correlation tag, without seeing each other's replies.
//
// A dealer never receives its own sends: every published message carries the
// dealer's origin id and dispatch skips those. With the default shared topic,
// peers on the bus see each other's messages and nobody sees their own.
//
// Receive calls block until a matching message arrives. They stop early only
// when their own context ends; bounding the wait is the caller's job.
//
// Messages for a tag nobody asks for stay buffered until Close. The buffer is
// unbounded; dispatch logs the count every pendingWarnEvery buffered messages.
package dealer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/axonbridge/internal/runtime/envelope"
	errspkg "github.com/drblury/axonbridge/internal/runtime/errors"
	idspkg "github.com/drblury/axonbridge/internal/runtime/ids"
	loggingpkg "github.com/drblury/axonbridge/internal/runtime/logging"
	metadatapkg "github.com/drblury/axonbridge/internal/runtime/metadata"
	"github.com/drblury/axonbridge/transport"
)

const (
	// DefaultConnectTimeout bounds Connect when no timeout is given.
	DefaultConnectTimeout = 30 * time.Second

	tracerName   = "github.com/drblury/axonbridge/dealer"
	closeTimeout = 10 * time.Second

	pendingWarnEvery = 1000
)

// Client is the transport contract the forwarding routes depend on.
type Client interface {
	Connect(ctx context.Context, timeout time.Duration) error
	Send(ctx context.Context, msg envelope.Message) error
	Receive(ctx context.Context) (envelope.Message, error)
	SendTagged(ctx context.Context, tag string, msg envelope.Message) error
	ReceiveTagged(ctx context.Context, tag string) (envelope.Message, error)
	Close() error
}

// Dealer implements Client on top of a Watermill publisher/subscriber pair.
type Dealer struct {
	endpoint   transport.Endpoint
	caps       transport.Capabilities
	registry   *transport.Registry
	logger     loggingpkg.ServiceLogger
	metrics    *Metrics
	tracer     trace.Tracer
	instanceID string
	origin     string

	connectMu sync.Mutex

	mu        sync.RWMutex
	tr        transport.Transport
	connected bool
	closed    bool
	cancel    context.CancelFunc
	done      chan struct{}

	inbox *inbox
}

var _ Client = (*Dealer)(nil)

// Option configures a Dealer.
type Option func(*Dealer)

// WithLogger sets the logger handed to the dealer and its transport.
func WithLogger(logger loggingpkg.ServiceLogger) Option {
	return func(d *Dealer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithRegistry builds the transport from r instead of transport.DefaultRegistry.
func WithRegistry(r *transport.Registry) Option {
	return func(d *Dealer) {
		if r != nil {
			d.registry = r
		}
	}
}

// WithMetrics records operation counters into m.
func WithMetrics(m *Metrics) Option {
	return func(d *Dealer) { d.metrics = m }
}

// WithInstanceID stamps published messages with id instead of a fresh ULID.
func WithInstanceID(id string) Option {
	return func(d *Dealer) {
		if id != "" {
			d.instanceID = id
		}
	}
}

// New prepares a dealer for the backend at rawURL. Nothing is dialled until
// Connect.
func New(rawURL string, opts ...Option) (*Dealer, error) {
	ep, err := transport.ParseEndpoint(rawURL)
	if err != nil {
		return nil, err
	}

	d := &Dealer{
		endpoint:   ep,
		registry:   transport.DefaultRegistry,
		logger:     loggingpkg.NewNopLogger(),
		tracer:     otel.Tracer(tracerName),
		instanceID: idspkg.CreateULID(),
		origin:     idspkg.CreateULID(),
		inbox:      newInbox(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if !d.registry.Has(ep.Scheme) {
		return nil, fmt.Errorf("%w %q (available: %v)", errspkg.ErrUnknownTransport, ep.Scheme, d.registry.Names())
	}
	d.caps = d.registry.GetCapabilities(ep.Scheme)
	d.logger = d.logger.With(loggingpkg.LogFields{"transport": ep.Scheme})
	return d, nil
}

// Endpoint returns the parsed backend endpoint.
func (d *Dealer) Endpoint() transport.Endpoint {
	return d.endpoint
}

// Capabilities returns the backend's declared capabilities.
func (d *Dealer) Capabilities() transport.Capabilities {
	return d.caps
}

// Connect builds the transport and starts consuming the receive topic. It
// gives up after timeout, or DefaultConnectTimeout when timeout is zero.
func (d *Dealer) Connect(ctx context.Context, timeout time.Duration) error {
	d.connectMu.Lock()
	defer d.connectMu.Unlock()

	d.mu.RLock()
	closed, connected := d.closed, d.connected
	d.mu.RUnlock()
	if closed {
		return errspkg.ErrClientClosed
	}
	if connected {
		return errspkg.ErrAlreadyConnected
	}

	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	tr, err := d.build(ctx, timeout)
	if err != nil {
		d.metrics.observe("connect", err)
		return errspkg.NewTransportError("connect", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	msgs, err := tr.Subscriber.Subscribe(runCtx, d.endpoint.ReceiveTopic)
	if err != nil {
		cancel()
		_ = tr.Close()
		d.metrics.observe("connect", err)
		return errspkg.NewTransportError("subscribe", err)
	}

	d.mu.Lock()
	d.tr = tr
	d.cancel = cancel
	d.done = make(chan struct{})
	d.connected = true
	d.mu.Unlock()

	go d.dispatch(msgs, d.done)

	d.metrics.observe("connect", nil)
	d.logger.Info("Connected to backend", loggingpkg.LogFields{
		"endpoint":      d.endpoint.String(),
		"send_topic":    d.endpoint.SendTopic,
		"receive_topic": d.endpoint.ReceiveTopic,
	})
	return nil
}

type buildResult struct {
	tr  transport.Transport
	err error
}

// build runs the transport builder in the background so a builder that
// ignores its context still cannot hold Connect past the timeout.
func (d *Dealer) build(ctx context.Context, timeout time.Duration) (transport.Transport, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make(chan buildResult, 1)
	go func() {
		tr, err := d.registry.Build(cctx, d.endpoint, loggingpkg.NewWatermillAdapter(d.logger))
		results <- buildResult{tr: tr, err: err}
	}()

	select {
	case res := <-results:
		return res.tr, res.err
	case <-cctx.Done():
		go func() {
			if res := <-results; res.err == nil {
				_ = res.tr.Close()
			}
		}()
		if err := ctx.Err(); err != nil {
			return transport.Transport{}, err
		}
		return transport.Transport{}, fmt.Errorf("%w after %s", errspkg.ErrConnectTimeout, timeout)
	}
}

func (d *Dealer) dispatch(msgs <-chan *message.Message, done chan struct{}) {
	defer close(done)
	for msg := range msgs {
		md := metadatapkg.FromWatermill(msg.Metadata)
		if md[metadatapkg.OriginKey] == d.origin {
			msg.Ack()
			d.logger.Trace("Skipping own bus message", loggingpkg.LogFields{"message_uuid": msg.UUID})
			continue
		}

		env, err := envelope.Unmarshal(msg.Payload)
		if err != nil {
			d.metrics.drop()
			d.logger.Error("Dropping bus message", err, loggingpkg.LogFields{"message_uuid": msg.UUID})
			msg.Ack()
			continue
		}

		r := untagged()
		if tag, ok := md.Tag(); ok {
			r = tagged(tag)
		}
		if !d.inbox.deliver(r, env) {
			msg.Nack()
			return
		}
		msg.Ack()
		d.metrics.addBytes("in", len(msg.Payload))
		d.logger.Trace("Buffered bus message", loggingpkg.LogFields{
			"message_uuid": msg.UUID,
			"tagged":       r.tagged,
		})
		if n := d.inbox.buffered(); n > 0 && n%pendingWarnEvery == 0 {
			d.logger.Info("Unclaimed bus messages buffered", loggingpkg.LogFields{"buffered": n})
		}
	}
}

func (d *Dealer) current() (transport.Transport, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return transport.Transport{}, errspkg.ErrClientClosed
	}
	if !d.connected {
		return transport.Transport{}, errspkg.ErrNotConnected
	}
	return d.tr, nil
}

// Send publishes an untagged message.
func (d *Dealer) Send(ctx context.Context, msg envelope.Message) error {
	return d.publish(ctx, "send", metadatapkg.Metadata{}, msg)
}

// SendTagged publishes msg carrying tag. The empty tag is valid and distinct
// from an untagged send.
func (d *Dealer) SendTagged(ctx context.Context, tag string, msg envelope.Message) error {
	return d.publish(ctx, "send_tagged", metadatapkg.Metadata{}.WithTag(tag), msg)
}

func (d *Dealer) publish(ctx context.Context, op string, md metadatapkg.Metadata, msg envelope.Message) (err error) {
	ctx, span := d.tracer.Start(ctx, "dealer."+op, trace.WithSpanKind(trace.SpanKindProducer))
	defer func() {
		d.metrics.observe(op, err)
		endSpan(span, err)
	}()

	tr, err := d.current()
	if err != nil {
		return errspkg.NewTransportError(op, err)
	}

	payload := envelope.Marshal(msg)
	if !d.caps.Fits(len(payload)) {
		return errspkg.NewValidationError("payload",
			fmt.Sprintf("encoded message is %d bytes, %s accepts at most %d", len(payload), d.caps.Name, d.caps.MaxMessageSize),
			errspkg.ErrMessageTooLarge)
	}

	wm := message.NewMessage(idspkg.CreateULID(), payload)
	wm.SetContext(ctx)
	md.With(metadatapkg.ContentTypeKey, envelope.ContentType).
		With(metadatapkg.BridgeKey, d.instanceID).
		With(metadatapkg.OriginKey, d.origin).
		Apply(wm)

	tag, isTagged := md.Tag()
	span.SetAttributes(
		attribute.String("messaging.system", d.endpoint.Scheme),
		attribute.String("messaging.destination.name", d.endpoint.SendTopic),
		attribute.String("messaging.message.id", wm.UUID),
		attribute.Int("messaging.message.body.size", len(payload)),
		attribute.Int("axon.frames", len(msg.Frames())),
		attribute.Bool("axon.tagged", isTagged),
	)
	if isTagged {
		span.SetAttributes(attribute.String("axon.mid", tag))
	}

	if err := tr.Publisher.Publish(d.endpoint.SendTopic, wm); err != nil {
		d.logger.Error("Publish failed", err, loggingpkg.LogFields{
			"topic":        d.endpoint.SendTopic,
			"message_uuid": wm.UUID,
		})
		return errspkg.NewTransportError(op, err)
	}
	d.metrics.addBytes("out", len(payload))
	return nil
}

// Receive blocks for the next untagged message.
func (d *Dealer) Receive(ctx context.Context) (envelope.Message, error) {
	return d.receive(ctx, "receive", untagged())
}

// ReceiveTagged blocks for the next message carrying exactly tag.
func (d *Dealer) ReceiveTagged(ctx context.Context, tag string) (envelope.Message, error) {
	return d.receive(ctx, "receive_tagged", tagged(tag))
}

func (d *Dealer) receive(ctx context.Context, op string, r route) (msg envelope.Message, err error) {
	ctx, span := d.tracer.Start(ctx, "dealer."+op, trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("messaging.system", d.endpoint.Scheme),
		attribute.String("messaging.destination.name", d.endpoint.ReceiveTopic),
		attribute.Bool("axon.tagged", r.tagged),
	)
	defer func() {
		d.metrics.observe(op, err)
		endSpan(span, err)
	}()

	if _, err := d.current(); err != nil {
		return envelope.Message{}, errspkg.NewTransportError(op, err)
	}

	d.metrics.receiverWaiting(1)
	msg, err = d.inbox.wait(ctx, r)
	d.metrics.receiverWaiting(-1)
	if err != nil {
		if ctx.Err() != nil {
			return envelope.Message{}, err
		}
		return envelope.Message{}, errspkg.NewTransportError(op, err)
	}
	span.SetAttributes(attribute.Int("axon.frames", len(msg.Frames())))
	return msg, nil
}

// Close stops consuming, releases every blocked receiver with ErrClientClosed
// and closes the transport. It is safe to call more than once.
func (d *Dealer) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	connected, tr, cancel, done := d.connected, d.tr, d.cancel, d.done
	d.mu.Unlock()

	d.inbox.close()
	if !connected {
		return nil
	}

	cancel()
	err := tr.Close()

	select {
	case <-done:
	case <-time.After(closeTimeout):
		d.logger.Info("Subscription did not drain before close timeout", loggingpkg.LogFields{"timeout": closeTimeout.String()})
	}

	d.metrics.observe("close", err)
	d.logger.Info("Disconnected from backend", nil)
	return errspkg.NewTransportError("close", err)
}

// Pending reports how many received messages are buffered and how many
// receivers are blocked.
func (d *Dealer) Pending() (buffered, waiting int) {
	return d.inbox.buffered(), d.inbox.waiting()
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
