// Package auth implements the HTTP Basic gate in front of the forwarding routes.
package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	errspkg "github.com/drblury/axonbridge/internal/runtime/errors"
	"github.com/drblury/axonbridge/internal/runtime/handlers"
	loggingpkg "github.com/drblury/axonbridge/internal/runtime/logging"
)

// AuthorizedApp is a client allowed to call the bridge.
type AuthorizedApp struct {
	Name string
	Key  string
}

// String hides the key.
func (a AuthorizedApp) String() string {
	return a.Name + ":***REDACTED***"
}

// DefaultApp is accepted only when no apps are configured. It exists for
// local development; production deployments should always configure apps.
var DefaultApp = AuthorizedApp{Name: "test", Key: "123abc"}

// Gate checks the Authorization header against a fixed app list.
type Gate struct {
	apps  []AuthorizedApp
	realm string
}

// NewGate copies apps. With an empty list only DefaultApp is accepted and a
// warning is logged.
func NewGate(apps []AuthorizedApp, realm string, logger loggingpkg.ServiceLogger) *Gate {
	if len(apps) == 0 {
		if logger != nil {
			logger.Info("WARNING: no authorized apps configured, accepting the default credential", loggingpkg.LogFields{
				"app": DefaultApp.Name,
			})
		}
		apps = []AuthorizedApp{DefaultApp}
	}
	return &Gate{
		apps:  append([]AuthorizedApp(nil), apps...),
		realm: realm,
	}
}

// Apps returns a copy of the accepted apps.
func (g *Gate) Apps() []AuthorizedApp {
	return append([]AuthorizedApp(nil), g.apps...)
}

// Authenticate returns the matching app or an *errors.AuthError.
func (g *Gate) Authenticate(r *http.Request) (AuthorizedApp, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return AuthorizedApp{}, &errspkg.AuthError{Err: errspkg.ErrMissingCredentials}
	}

	scheme, credentials, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Basic") {
		return AuthorizedApp{}, &errspkg.AuthError{Scheme: scheme, Err: errspkg.ErrUnsupportedScheme}
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(credentials))
	if err != nil {
		return AuthorizedApp{}, &errspkg.AuthError{Err: fmt.Errorf("%w: %v", errspkg.ErrInvalidCredentials, err)}
	}
	name, key, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return AuthorizedApp{}, &errspkg.AuthError{Err: errspkg.ErrInvalidCredentials}
	}

	for _, app := range g.apps {
		nameOK := subtle.ConstantTimeCompare([]byte(app.Name), []byte(name)) == 1
		keyOK := subtle.ConstantTimeCompare([]byte(app.Key), []byte(key)) == 1
		if nameOK && keyOK {
			return app, nil
		}
	}
	return AuthorizedApp{}, &errspkg.AuthError{Err: errspkg.ErrInvalidCredentials}
}

// Middleware rejects unauthenticated requests before they reach next.
func (g *Gate) Middleware(next handlers.Func) handlers.Func {
	return func(w http.ResponseWriter, r *http.Request) error {
		if _, err := g.Authenticate(r); err != nil {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", g.realm))
			return err
		}
		return next(w, r)
	}
}
