/*
Package runtime provides the HTTP side of the bridge.

# Architecture Overview

A Server owns one HTTP listener. Every request passes through the same
pipeline before it reaches a mounted router:

	instrument -> translateErrors -> cors -> /_server group | routers

instrument is the outermost boundary. It times the request, assigns an
X-Request-Id, recovers panics, writes the response for any error a handler
returned and emits a RequestRecord on Server.Events. translateErrors wraps
untyped errors in errors.UnhandledError so every failure carries a status.

# Package Structure

## Server (server.go)

Lifecycle: Stopped -> Starting -> Running -> Stopping -> Stopped. Start is
idempotent while starting or running, binds before returning and serves on a
background errgroup. Stop cancels the serving context; the shutdown goroutine
calls http.Server.Shutdown without a deadline so blocked receives finish.

## Pipeline (pipeline.go), Introspection (introspection.go), Metrics (metrics.go)

  - GET /_server/         banner
  - GET /_server/details  {"serverName": ..., "serverVersion": ...}
  - GET /_server/metrics  Prometheus exposition when a registry is configured

# Sub-packages

  - auth/: HTTP Basic gate and AuthorizedApp
  - config/: bridge configuration with validation
  - dealer/: the transport client (tagged send/receive over Watermill)
  - envelope/: message value and its wire encoding
  - errors/: sentinel errors and status-carrying error types
  - events/: typed synchronous event channels
  - forwarder/: the /send, /receive, /send-tagged, /receive-tagged routes
  - handlers/: error-returning HTTP handler adapter
  - ids/: ULID generation
  - jsoncodec/: JSON marshaling
  - logging/: logger interface and adapters
  - metadata/: bus message header keys

# Usage Example

	d, _ := dealer.New("nats://localhost:4222", dealer.WithLogger(logger))
	fwd, err := forwarder.New(ctx, d, forwarder.Options{AuthorizedApps: apps, Realm: "Acme"})
	if err != nil {
		return err
	}
	srv, _ := runtime.NewServer(runtime.ServerOptions{Port: 8080, Name: "Acme", Version: "1.2.3"}, fwd)
	return srv.Run(ctx)
*/
package runtime
