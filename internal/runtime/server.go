package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	errspkg "github.com/drblury/axonbridge/internal/runtime/errors"
	"github.com/drblury/axonbridge/internal/runtime/events"
	loggingpkg "github.com/drblury/axonbridge/internal/runtime/logging"
)

// State is a server lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	}
	return "unknown"
}

// Router contributes routes to the server. Routers are mounted in the order
// they were added, after the /_server group.
type Router interface {
	Mount(r chi.Router)
}

// ServerOptions configures a Server.
type ServerOptions struct {
	Hostname string
	// Port 0 binds an ephemeral port; see Server.Addr.
	Port    int
	Name    string
	Version string

	// CORSAllowedOrigins defaults to "*".
	CORSAllowedOrigins []string

	// Metrics, when set, receives the HTTP collectors and is exposed at
	// /_server/metrics.
	Metrics *prometheus.Registry

	// Logger, when set, logs every request line and every handler error.
	Logger loggingpkg.ServiceLogger
}

// Server owns the HTTP listener and the routers mounted on it.
type Server struct {
	Events events.Bus

	opts    ServerOptions
	logger  loggingpkg.ServiceLogger
	metrics *httpMetrics

	mu       sync.Mutex
	routers  []Router
	state    State
	listener net.Listener
	cancel   context.CancelFunc
	done     chan struct{}
	serveErr error
}

// NewServer creates a stopped server.
func NewServer(opts ServerOptions, routers ...Router) (*Server, error) {
	if len(opts.CORSAllowedOrigins) == 0 {
		opts.CORSAllowedOrigins = []string{"*"}
	}
	s := &Server{
		opts:   opts,
		logger: opts.Logger,
	}
	if s.logger == nil {
		s.logger = loggingpkg.NewNopLogger()
	}
	for _, r := range routers {
		if err := s.AddRouter(r); err != nil {
			return nil, err
		}
	}
	if opts.Metrics != nil {
		m, err := newHTTPMetrics(opts.Metrics)
		if err != nil {
			return nil, err
		}
		s.metrics = m
	}
	if opts.Logger != nil {
		s.logEvents(opts.Logger)
	}
	return s, nil
}

// AddRouter mounts r on the next Start.
func (s *Server) AddRouter(r Router) error {
	if r == nil {
		return errspkg.ErrRouterRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routers = append(s.routers, r)
	return nil
}

// Name returns the configured server name.
func (s *Server) Name() string { return s.opts.Name }

// Version returns the configured server version.
func (s *Server) Version() string { return s.opts.Version }

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the bound address, or nil when the server is not listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Done is closed when the current run has fully drained. It returns a closed
// channel when the server was never started.
func (s *Server) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.done
}

// Start binds the listener and serves in the background. It returns once the
// listener is bound. Calling Start on a starting or running server does
// nothing. Cancelling ctx stops the server like Stop does.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	for s.state == StateStopping {
		done := s.done
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
	}
	if s.state != StateStopped {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStarting

	addr := net.JoinHostPort(s.opts.Hostname, strconv.Itoa(s.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.state = StateStopped
		s.mu.Unlock()
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.listener = ln
	s.cancel = cancel
	s.done = done
	s.serveErr = nil
	s.state = StateRunning
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(serveCtx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.mu.Lock()
		if s.state == StateRunning {
			s.state = StateStopping
		}
		s.mu.Unlock()
		// Blocked receives are allowed to finish; no deadline here.
		return srv.Shutdown(context.Background())
	})
	go func() {
		err := g.Wait()
		cancel()
		s.mu.Lock()
		s.state = StateStopped
		s.listener = nil
		s.serveErr = err
		s.mu.Unlock()
		if err != nil {
			s.Events.Error.Emit(err)
		}
		s.logger.Info("Server stopped", loggingpkg.LogFields{"name": s.opts.Name})
		close(done)
	}()

	s.logger.Info(fmt.Sprintf("Server %q listening on %s", s.opts.Name, ln.Addr()), nil)
	s.Events.Listening.Emit(ln.Addr())
	return nil
}

// Stop closes the listener and waits for in-flight requests to finish. When
// ctx ends first Stop returns ctx.Err() and draining continues in the
// background.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return nil
	}
	if s.state == StateRunning {
		s.state = StateStopping
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
		return s.err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the server and blocks until it has stopped, either through Stop
// or because ctx was cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-s.Done()
	return s.err()
}

func (s *Server) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serveErr
}

func (s *Server) logEvents(logger loggingpkg.ServiceLogger) {
	s.Events.RequestHandled.Subscribe(func(rec events.RequestRecord) {
		logger.Info(loggingpkg.RequestLine(rec), loggingpkg.RequestFields(rec))
	})
	s.Events.Error.Subscribe(func(err error) {
		logger.Error("Request failed", err, loggingpkg.LogFields{"status": errspkg.StatusCode(err)})
	})
}
