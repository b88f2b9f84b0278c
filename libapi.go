package axonbridge

import (
	runtimepkg "github.com/drblury/axonbridge/internal/runtime"
	"github.com/drblury/axonbridge/internal/runtime/auth"
	configpkg "github.com/drblury/axonbridge/internal/runtime/config"
	"github.com/drblury/axonbridge/internal/runtime/dealer"
	"github.com/drblury/axonbridge/internal/runtime/envelope"
	errspkg "github.com/drblury/axonbridge/internal/runtime/errors"
	"github.com/drblury/axonbridge/internal/runtime/events"
	"github.com/drblury/axonbridge/internal/runtime/forwarder"
	idspkg "github.com/drblury/axonbridge/internal/runtime/ids"
	jsoncodec "github.com/drblury/axonbridge/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/axonbridge/internal/runtime/logging"
	"github.com/drblury/axonbridge/transport"
)

type (
	Config        = configpkg.Config
	AuthorizedApp = auth.AuthorizedApp

	Server        = runtimepkg.Server
	ServerOptions = runtimepkg.ServerOptions
	ServerState   = runtimepkg.State
	Router        = runtimepkg.Router
	Details       = runtimepkg.Details

	Message = envelope.Message
	Frame   = envelope.Frame

	// Transport client
	Client        = dealer.Client
	Dealer        = dealer.Dealer
	DealerOption  = dealer.Option
	DealerMetrics = dealer.Metrics

	ForwardingRouter  = forwarder.Router
	ForwardingOptions = forwarder.Options

	EventBus      = events.Bus
	RequestRecord = events.RequestRecord
	Subscription  = events.Subscription

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ValidationError = errspkg.ValidationError
	AuthError       = errspkg.AuthError
	TransportError  = errspkg.TransportError
	UnhandledError  = errspkg.UnhandledError

	// Transport registry
	Endpoint              = transport.Endpoint
	TransportBuilder      = transport.Builder
	TransportRegistry     = transport.Registry
	TransportCapabilities = transport.Capabilities
)

const (
	DefaultHostname       = configpkg.DefaultHostname
	DefaultPort           = configpkg.DefaultPort
	DefaultConnectTimeout = configpkg.DefaultConnectTimeout

	StateStopped  = runtimepkg.StateStopped
	StateStarting = runtimepkg.StateStarting
	StateRunning  = runtimepkg.StateRunning
	StateStopping = runtimepkg.StateStopping
)

var (
	DefaultApp = auth.DefaultApp

	NewServer           = runtimepkg.NewServer
	NewDealer           = dealer.New
	NewDealerMetrics    = dealer.NewMetrics
	NewForwardingRouter = forwarder.New
	NewMessage          = envelope.New

	WithLogger     = dealer.WithLogger
	WithRegistry   = dealer.WithRegistry
	WithMetrics    = dealer.WithMetrics
	WithInstanceID = dealer.WithInstanceID

	ValidateConfig      = configpkg.ValidateConfig
	ParseAuthorizedApps = configpkg.ParseAuthorizedApps

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewWatermillAdapter       = loggingpkg.NewWatermillAdapter
	RequestLine               = loggingpkg.RequestLine

	ParseEndpoint            = transport.ParseEndpoint
	DefaultTransportRegistry = transport.DefaultRegistry
	RegisterTransport        = transport.Register
	GetCapabilities          = transport.GetCapabilities

	CreateULID = idspkg.CreateULID

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal

	StatusCode = errspkg.StatusCode

	ErrConfigRequired     = errspkg.ErrConfigRequired
	ErrLoggerRequired     = errspkg.ErrLoggerRequired
	ErrBackendURLRequired = errspkg.ErrBackendURLRequired
	ErrUnknownTransport   = errspkg.ErrUnknownTransport
	ErrNotConnected       = errspkg.ErrNotConnected
	ErrAlreadyConnected   = errspkg.ErrAlreadyConnected
	ErrClientClosed       = errspkg.ErrClientClosed
	ErrConnectTimeout     = errspkg.ErrConnectTimeout
	ErrMessageTooLarge    = errspkg.ErrMessageTooLarge
	ErrTagRequired        = errspkg.ErrTagRequired
	ErrTagRepeated        = errspkg.ErrTagRepeated
	ErrRouterRequired     = errspkg.ErrRouterRequired
	ErrInvalidCredentials = errspkg.ErrInvalidCredentials
)
