package errors

import (
	sterrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrConfigRequired      = sterrors.New("axonbridge: configuration is required")
	ErrLoggerRequired      = sterrors.New("axonbridge: logger is required")
	ErrBackendURLRequired  = sterrors.New("axonbridge: backend URL is required")
	ErrUnknownTransport    = sterrors.New("axonbridge: unknown transport")
	ErrNotConnected        = sterrors.New("axonbridge: transport client is not connected")
	ErrAlreadyConnected    = sterrors.New("axonbridge: transport client is already connected")
	ErrClientClosed        = sterrors.New("axonbridge: transport client is closed")
	ErrConnectTimeout      = sterrors.New("axonbridge: transport connect timed out")
	ErrMessageTooLarge     = sterrors.New("axonbridge: message exceeds transport size limit")
	ErrMalformedEnvelope   = sterrors.New("axonbridge: malformed message envelope")
	ErrTagRequired         = sterrors.New("axonbridge: correlation tag is required")
	ErrTagRepeated         = sterrors.New("axonbridge: correlation tag is ambiguous")
	ErrRouterRequired      = sterrors.New("axonbridge: router is required")
	ErrClientRequired      = sterrors.New("axonbridge: transport client is required")
	ErrMissingCredentials  = sterrors.New("axonbridge: missing authorization header")
	ErrInvalidCredentials  = sterrors.New("axonbridge: invalid credentials")
	ErrUnsupportedScheme   = sterrors.New("axonbridge: unsupported auth scheme")
	ErrServerNotRunning    = sterrors.New("axonbridge: server is not running")
	ErrPanicInHandler      = sterrors.New("axonbridge: handler panicked")
	ErrAuthorizedAppFormat = sterrors.New("axonbridge: authorized app must be name:key")
)

// StatusCoder is implemented by errors that know which HTTP status they map to.
type StatusCoder interface {
	StatusCode() int
}

// ValidationError reports a malformed request body or query parameter.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := e.Reason
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	if e.Err != nil {
		if msg == "" {
			return e.Err.Error()
		}
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ValidationError) Unwrap() error   { return e.Err }
func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

// NewValidationError builds a ValidationError for field. err may be nil.
func NewValidationError(field, reason string, err error) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Err: err}
}

// AuthError is raised by the auth gate. Scheme is set when the client used an
// unsupported authorization scheme.
type AuthError struct {
	Scheme string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Scheme != "" {
		return fmt.Sprintf("Unsupported auth scheme %s", e.Scheme)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(http.StatusUnauthorized)
}

func (e *AuthError) Unwrap() error   { return e.Err }
func (e *AuthError) StatusCode() int { return http.StatusUnauthorized }

// TransportError wraps a failed transport call.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error   { return e.Err }
func (e *TransportError) StatusCode() int { return http.StatusInternalServerError }

// NewTransportError wraps err for op. A nil err yields nil.
func NewTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if sterrors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

// UnhandledError wraps any failure that is not part of the known taxonomy.
type UnhandledError struct {
	Err error
}

func (e *UnhandledError) Error() string   { return e.Err.Error() }
func (e *UnhandledError) Unwrap() error   { return e.Err }
func (e *UnhandledError) StatusCode() int { return http.StatusInternalServerError }

// Classify returns err unchanged when it already carries a status code and
// wraps it in UnhandledError otherwise.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var sc StatusCoder
	if sterrors.As(err, &sc) {
		return err
	}
	return &UnhandledError{Err: err}
}

// StatusCode returns the HTTP status for err, defaulting to 500.
func StatusCode(err error) int {
	var sc StatusCoder
	if sterrors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}
