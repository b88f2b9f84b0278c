package runtime

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	errspkg "github.com/drblury/axonbridge/internal/runtime/errors"
	"github.com/drblury/axonbridge/internal/runtime/events"
	"github.com/drblury/axonbridge/internal/runtime/handlers"
	idspkg "github.com/drblury/axonbridge/internal/runtime/ids"
)

// RequestIDHeader carries the request id set by the server.
const RequestIDHeader = "X-Request-Id"

// handler builds the request pipeline. Callers hold s.mu.
func (s *Server) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.instrument, translateErrors, s.cors)

	r.Route("/_server", s.mountIntrospection)
	for _, rt := range s.routers {
		rt.Mount(r)
	}
	return otelhttp.NewHandler(r, "axon-bridge")
}

// instrument is the outermost middleware. It times the request, turns
// handler errors and panics into responses and emits the request record.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		reqID := r.Header.Get(RequestIDHeader)
		if reqID == "" {
			reqID = idspkg.NewRequestID()
		}
		ww.Header().Set(RequestIDHeader, reqID)

		r, failure := handlers.WithFailure(r)
		s.serve(next, ww, r, failure)

		if err := failure.Err(); err != nil {
			s.Events.Error.Emit(err)
			if ww.Status() == 0 {
				handlers.WriteError(ww, err)
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		rec := events.RequestRecord{
			ClientAddr: r.RemoteAddr,
			StartTime:  start,
			Method:     r.Method,
			Path:       r.URL.RequestURI(),
			Proto:      r.Proto,
			Status:     status,
			Duration:   time.Since(start),
		}
		s.metrics.observe(rec)
		s.Events.RequestHandled.Emit(rec)
	})
}

func (s *Server) serve(next http.Handler, w http.ResponseWriter, r *http.Request, failure *handlers.Failure) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if rec == http.ErrAbortHandler {
			panic(rec)
		}
		failure.Set(&errspkg.UnhandledError{Err: fmt.Errorf("%w: %v", errspkg.ErrPanicInHandler, rec)})
	}()
	next.ServeHTTP(w, r)
}

// translateErrors classifies whatever error the handler left behind.
func translateErrors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		if f := handlers.FailureFrom(r.Context()); f != nil {
			if err := f.Err(); err != nil {
				f.Set(errspkg.Classify(err))
			}
		}
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allowed := s.allowedCORSOrigin(r.Header.Get("Origin")); allowed != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowed)
			if allowed != "*" {
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Expose-Headers", RequestIDHeader)
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allowedCORSOrigin returns the Access-Control-Allow-Origin value for the
// request origin, or "" when the origin is not allowed.
func (s *Server) allowedCORSOrigin(requestOrigin string) string {
	for _, allowed := range s.opts.CORSAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if requestOrigin != "" && strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
