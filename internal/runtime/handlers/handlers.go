// Package handlers adapts error-returning HTTP handlers to net/http.
//
// Handlers never write failure responses themselves. They return an error and
// the server's outermost middleware decides the status and body.
package handlers

import (
	"context"
	"net/http"
	"sync"

	errspkg "github.com/drblury/axonbridge/internal/runtime/errors"
	jsoncodec "github.com/drblury/axonbridge/internal/runtime/jsoncodec"
)

// Func is an HTTP handler that reports failure by returning an error.
type Func func(w http.ResponseWriter, r *http.Request) error

// Middleware decorates a Func.
type Middleware func(Func) Func

// Chain applies middlewares so the first one listed runs outermost.
func Chain(h Func, mws ...Middleware) Func {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Failure holds the error a handler returned for the current request.
type Failure struct {
	mu  sync.Mutex
	err error
}

// Err returns the recorded error, if any.
func (f *Failure) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Set replaces the recorded error.
func (f *Failure) Set(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type failureKey struct{}

// WithFailure attaches a fresh Failure to the request context.
func WithFailure(r *http.Request) (*http.Request, *Failure) {
	f := &Failure{}
	return r.WithContext(context.WithValue(r.Context(), failureKey{}, f)), f
}

// FailureFrom returns the Failure attached to ctx, or nil.
func FailureFrom(ctx context.Context) *Failure {
	f, _ := ctx.Value(failureKey{}).(*Failure)
	return f
}

// Handle adapts h to an http.Handler. A returned error is stored in the
// request's Failure; when the request has none it is written immediately.
func Handle(h Func) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}
		if f := FailureFrom(r.Context()); f != nil {
			f.Set(err)
			return
		}
		WriteError(w, err)
	})
}

// WriteError writes err as a text/plain response using its status code.
func WriteError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(errspkg.StatusCode(err))
	_, _ = w.Write([]byte(err.Error()))
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	body, err := jsoncodec.Marshal(v)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}
