package axonbridge

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	runtimepkg "github.com/drblury/axonbridge/internal/runtime"
	configpkg "github.com/drblury/axonbridge/internal/runtime/config"
	"github.com/drblury/axonbridge/internal/runtime/dealer"
	errspkg "github.com/drblury/axonbridge/internal/runtime/errors"
	"github.com/drblury/axonbridge/internal/runtime/forwarder"
	loggingpkg "github.com/drblury/axonbridge/internal/runtime/logging"

	// Registers every built-in backend scheme.
	_ "github.com/drblury/axonbridge/transport/transports"
)

// Bridge is a server with a forwarding router mounted on one transport
// client. Build it with NewBridge.
type Bridge struct {
	Config Config
	Server *Server
	Router *ForwardingRouter
	// Metrics is nil unless Config.MetricsEnabled is set.
	Metrics *prometheus.Registry

	logger loggingpkg.ServiceLogger
}

// NewBridge validates cfg, connects a dealer to cfg.BackendURL and returns a
// stopped server with the forwarding router mounted. A failed connect aborts
// construction.
func NewBridge(ctx context.Context, cfg *Config, logger ServiceLogger) (*Bridge, error) {
	if cfg == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if logger == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	c := cfg.WithDefaults()
	if err := configpkg.ValidateConfig(&c); err != nil {
		return nil, err
	}
	logger.Info("Creating bridge", loggingpkg.LogFields{"config": c.String()})

	b := &Bridge{Config: c, logger: logger}

	var dm *dealer.Metrics
	if c.MetricsEnabled {
		b.Metrics = prometheus.NewRegistry()
		b.Metrics.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		var err error
		if dm, err = dealer.NewMetrics(b.Metrics); err != nil {
			return nil, err
		}
	}

	d, err := dealer.New(c.BackendURL,
		dealer.WithLogger(logger),
		dealer.WithMetrics(dm),
		dealer.WithInstanceID(c.ServerName),
	)
	if err != nil {
		return nil, err
	}

	b.Router, err = forwarder.New(ctx, d, forwarder.Options{
		Prefix:         c.RouterPrefix,
		ConnectTimeout: c.ConnectTimeout,
		AuthorizedApps: c.AuthorizedApps,
		Realm:          c.ServerName,
		Logger:         logger,
	})
	if err != nil {
		_ = d.Close()
		return nil, err
	}

	b.Server, err = runtimepkg.NewServer(runtimepkg.ServerOptions{
		Hostname:           c.Hostname,
		Port:               c.Port,
		Name:               c.ServerName,
		Version:            c.ServerVersion,
		CORSAllowedOrigins: c.CORSAllowedOrigins,
		Metrics:            b.Metrics,
		Logger:             logger,
	}, b.Router)
	if err != nil {
		_ = b.Router.Close()
		return nil, err
	}
	return b, nil
}

// Start binds the listener and returns; see Server.Start.
func (b *Bridge) Start(ctx context.Context) error {
	return b.Server.Start(ctx)
}

// Run starts the bridge and blocks until the server has stopped, either
// because ctx was cancelled or because serving failed. In-flight requests,
// including blocked receives, drain before the transport client is closed.
func (b *Bridge) Run(ctx context.Context) error {
	err := b.Server.Run(ctx)
	return errors.Join(err, b.Router.Close())
}

// Close stops the server and then closes the transport client. When ctx ends
// before the server has drained, closing the client releases the requests
// still blocked in a receive.
func (b *Bridge) Close(ctx context.Context) error {
	stopErr := b.Server.Stop(ctx)
	closeErr := b.Router.Close()
	if err := errors.Join(stopErr, closeErr); err != nil {
		b.logger.Error("Bridge close failed", err, nil)
		return err
	}
	return nil
}
