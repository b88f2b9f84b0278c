// Package axonbridge exposes an asynchronous, tagged message bus over plain
// HTTP. A Bridge owns one transport client (a dealer) connected to the backend
// named by Config.BackendURL and serves four POST routes on top of it: /send
// and /receive for untagged traffic, /send-tagged and /receive-tagged for
// traffic carrying a correlation tag in the mid query parameter. Receives
// block until a matching message arrives, so callers bound them with their
// own HTTP timeouts.
//
// A minimal setup fills Config, calls NewBridge and then Run:
//
//	b, err := axonbridge.NewBridge(ctx, &axonbridge.Config{
//		BackendURL:     "nats://localhost:4222",
//		AuthorizedApps: []axonbridge.AuthorizedApp{{Name: "billing", Key: "s3cret"}},
//		ServerName:     "Acme",
//	}, axonbridge.NewSlogServiceLogger(slog.Default()))
//	if err != nil {
//		return err
//	}
//	return b.Run(ctx)
//
// # Transports
//
// The backend is chosen by the URL scheme:
//   - channel: in-process Go channels, for tests and single binaries
//   - nats: NATS core subjects
//   - amqp, amqps: RabbitMQ queues (mode=pubsub for fan-out)
//   - kafka: Kafka topics through Sarama
//   - http, https: Watermill HTTP webhooks
//   - aws: SNS topics fanned out to SQS queues, LocalStack aware
//
// The topic, send_topic and receive_topic query parameters pick the bus
// topics and default to "axon". A dealer never receives its own messages,
// so on a shared topic it only hears its peers. Backend specific parameters
// are documented in each transport package.
//
// # Wire format
//
// Every bus message carries one envelope: the payload followed by its
// metadata frames, encoded with protowire. Tagged messages additionally carry
// the tag in the axon_mid header, mirrored as the Watermill correlation id.
//
// # Authentication
//
// Every forwarding route requires HTTP Basic credentials matching one of
// Config.AuthorizedApps. With no apps configured only DefaultApp is accepted
// and a warning is logged at startup.
//
// # Introspection
//
// GET /_server/ answers with a banner, GET /_server/details with the server
// name and version, and GET /_server/metrics with Prometheus metrics when
// Config.MetricsEnabled is set.
package axonbridge
