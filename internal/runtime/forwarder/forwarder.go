// Package forwarder maps the bridge's HTTP operations onto a transport client.
//
//	POST /send                 {"payload": "<base64>", "metadata": [{"id": "...", "data": "<base64>"}]}
//	POST /receive              -> same shape
//	POST /send-tagged?mid=T    body as /send
//	POST /receive-tagged?mid=T -> same shape as /receive
//
// Receives block until a message arrives. The only thing that ends a blocked
// receive early is the HTTP client going away.
package forwarder

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/drblury/axonbridge/internal/runtime/auth"
	"github.com/drblury/axonbridge/internal/runtime/dealer"
	"github.com/drblury/axonbridge/internal/runtime/envelope"
	errspkg "github.com/drblury/axonbridge/internal/runtime/errors"
	"github.com/drblury/axonbridge/internal/runtime/handlers"
	jsoncodec "github.com/drblury/axonbridge/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/axonbridge/internal/runtime/logging"
)

// TagParam is the query parameter carrying the correlation tag.
const TagParam = "mid"

// Options configures a Router.
type Options struct {
	// Prefix mounts the routes below a path such as "/bus".
	Prefix string
	// ConnectTimeout bounds the initial Connect. Zero means dealer.DefaultConnectTimeout.
	ConnectTimeout time.Duration
	// AuthorizedApps are the credentials the gate accepts.
	AuthorizedApps []auth.AuthorizedApp
	// Realm is reported in WWW-Authenticate, usually the server name.
	Realm string
	// BodyLimit caps request bodies. Zero means jsoncodec.DefaultBodyLimit.
	BodyLimit int64
	Logger    loggingpkg.ServiceLogger
}

// Router owns one transport client and exposes it over HTTP.
type Router struct {
	client    dealer.Client
	gate      *auth.Gate
	prefix    string
	bodyLimit int64
	logger    loggingpkg.ServiceLogger
}

// New connects client and returns a router serving it. A failed connect is
// returned as is and no router is created.
func New(ctx context.Context, client dealer.Client, opts Options) (*Router, error) {
	if client == nil {
		return nil, errspkg.ErrClientRequired
	}
	logger := opts.Logger
	if logger == nil {
		logger = loggingpkg.NewNopLogger()
	}
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = dealer.DefaultConnectTimeout
	}

	if err := client.Connect(ctx, timeout); err != nil {
		logger.Error("Transport connect failed", err, loggingpkg.LogFields{"timeout": timeout.String()})
		return nil, err
	}

	return &Router{
		client:    client,
		gate:      auth.NewGate(opts.AuthorizedApps, opts.Realm, logger),
		prefix:    opts.Prefix,
		bodyLimit: opts.BodyLimit,
		logger:    logger.With(loggingpkg.LogFields{"component": "forwarder"}),
	}, nil
}

// Client returns the router's transport client.
func (rt *Router) Client() dealer.Client {
	return rt.client
}

// Close closes the transport client.
func (rt *Router) Close() error {
	return rt.client.Close()
}

// Mount registers the forwarding routes on m, below the configured prefix.
func (rt *Router) Mount(m chi.Router) {
	routes := func(r chi.Router) {
		r.Method(http.MethodPost, "/send", rt.handle(rt.send))
		r.Method(http.MethodPost, "/receive", rt.handle(rt.receive))
		r.Method(http.MethodPost, "/send-tagged", rt.handle(rt.sendTagged))
		r.Method(http.MethodPost, "/receive-tagged", rt.handle(rt.receiveTagged))
	}
	if rt.prefix == "" || rt.prefix == "/" {
		routes(m)
		return
	}
	m.Route(rt.prefix, routes)
}

func (rt *Router) handle(h handlers.Func) http.Handler {
	return handlers.Handle(rt.gate.Middleware(h))
}

func (rt *Router) send(w http.ResponseWriter, r *http.Request) error {
	msg, err := rt.decodeMessage(r)
	if err != nil {
		return err
	}
	if err := rt.client.Send(r.Context(), msg); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (rt *Router) sendTagged(w http.ResponseWriter, r *http.Request) error {
	tag, err := tagFrom(r)
	if err != nil {
		return err
	}
	msg, err := rt.decodeMessage(r)
	if err != nil {
		return err
	}
	if err := rt.client.SendTagged(r.Context(), tag, msg); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (rt *Router) receive(w http.ResponseWriter, r *http.Request) error {
	msg, err := rt.client.Receive(r.Context())
	if err != nil {
		return err
	}
	return handlers.WriteJSON(w, http.StatusOK, encodeMessage(msg))
}

func (rt *Router) receiveTagged(w http.ResponseWriter, r *http.Request) error {
	tag, err := tagFrom(r)
	if err != nil {
		return err
	}
	rt.logger.Debug("Waiting for tagged message", loggingpkg.LogFields{"mid": tag})
	msg, err := rt.client.ReceiveTagged(r.Context(), tag)
	if err != nil {
		return err
	}
	return handlers.WriteJSON(w, http.StatusOK, encodeMessage(msg))
}

// tagFrom returns the mid query parameter. Present but empty is a valid tag;
// repeating it is rejected.
func tagFrom(r *http.Request) (string, error) {
	values, ok := r.URL.Query()[TagParam]
	if !ok || len(values) == 0 {
		return "", errspkg.NewValidationError(TagParam, "query parameter is required", errspkg.ErrTagRequired)
	}
	if len(values) > 1 {
		return "", errspkg.NewValidationError(TagParam, "must be given exactly once", errspkg.ErrTagRepeated)
	}
	return values[0], nil
}

type frameBody struct {
	ID   *string `json:"id"`
	Data *string `json:"data"`
}

type messageBody struct {
	Payload  *string      `json:"payload"`
	Metadata *[]frameBody `json:"metadata"`
}

func (rt *Router) decodeMessage(r *http.Request) (envelope.Message, error) {
	var body messageBody
	if err := jsoncodec.DecodeLimited(r.Body, rt.bodyLimit, &body); err != nil {
		if errors.Is(err, jsoncodec.ErrBodyTooLarge) {
			return envelope.Message{}, errspkg.NewValidationError("body", "too large", err)
		}
		return envelope.Message{}, errspkg.NewValidationError("body", "expected a JSON object with payload and metadata", err)
	}
	if body.Payload == nil {
		return envelope.Message{}, errspkg.NewValidationError("payload", "is required", nil)
	}
	if body.Metadata == nil {
		return envelope.Message{}, errspkg.NewValidationError("metadata", "is required", nil)
	}

	payload, err := base64.StdEncoding.DecodeString(*body.Payload)
	if err != nil {
		return envelope.Message{}, errspkg.NewValidationError("payload", "expected base64 string", err)
	}

	frames := make([]envelope.Frame, 0, len(*body.Metadata))
	for i, f := range *body.Metadata {
		field := fmt.Sprintf("metadata[%d]", i)
		if f.ID == nil {
			return envelope.Message{}, errspkg.NewValidationError(field+".id", "is required", nil)
		}
		if f.Data == nil {
			return envelope.Message{}, errspkg.NewValidationError(field+".data", "is required", nil)
		}
		data, err := base64.StdEncoding.DecodeString(*f.Data)
		if err != nil {
			return envelope.Message{}, errspkg.NewValidationError(field+".data", "expected base64 string", err)
		}
		frames = append(frames, envelope.Frame{ID: *f.ID, Data: data})
	}
	return envelope.New(payload, frames...), nil
}

// FrameJSON is one metadata frame in a receive response.
type FrameJSON struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

// MessageJSON is the body of a receive response.
type MessageJSON struct {
	Payload  string      `json:"payload"`
	Metadata []FrameJSON `json:"metadata"`
}

func encodeMessage(msg envelope.Message) MessageJSON {
	frames := msg.Frames()
	out := MessageJSON{
		Payload:  base64.StdEncoding.EncodeToString(msg.Payload()),
		Metadata: make([]FrameJSON, 0, len(frames)),
	}
	for _, f := range frames {
		out.Metadata = append(out.Metadata, FrameJSON{ID: f.ID, Data: base64.StdEncoding.EncodeToString(f.Data)})
	}
	return out
}
