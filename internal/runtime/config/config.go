package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/drblury/axonbridge/internal/runtime/auth"
	errspkg "github.com/drblury/axonbridge/internal/runtime/errors"
)

const (
	DefaultHostname       = "0.0.0.0"
	DefaultPort           = 8080
	DefaultConnectTimeout = 30 * time.Second
	DefaultServerName     = "axon-bridge"
)

// Config groups everything needed to run a bridge.
type Config struct {
	// Hostname and Port are where the HTTP listener binds.
	Hostname string
	Port     int

	// BackendURL selects the transport by scheme, e.g. nats://localhost:4222
	// or channel://local. See the transport package for query parameters.
	BackendURL string

	// AuthorizedApps lists the credentials accepted by the Basic gate. When
	// empty only auth.DefaultApp is accepted.
	AuthorizedApps []auth.AuthorizedApp

	ServerName    string
	ServerVersion string

	// RouterPrefix mounts the forwarding routes below a path, e.g. "/bus".
	RouterPrefix string

	// ConnectTimeout bounds the initial transport connection.
	ConnectTimeout time.Duration

	// CORSAllowedOrigins lists origins echoed in Access-Control-Allow-Origin.
	// "*" allows any origin.
	CORSAllowedOrigins []string

	// MetricsEnabled exposes Prometheus metrics at /_server/metrics.
	MetricsEnabled bool
}

// WithDefaults returns a copy with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.Hostname == "" {
		c.Hostname = DefaultHostname
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ServerName == "" {
		c.ServerName = DefaultServerName
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if len(c.CORSAllowedOrigins) == 0 {
		c.CORSAllowedOrigins = []string{"*"}
	}
	return c
}

// Addr is the listen address in host:port form.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Port)
}

func (c Config) String() string {
	copy := c
	copy.BackendURL = redactURLCredentials(copy.BackendURL)
	if len(copy.AuthorizedApps) > 0 {
		redacted := make([]auth.AuthorizedApp, len(copy.AuthorizedApps))
		for i, app := range copy.AuthorizedApps {
			redacted[i] = auth.AuthorizedApp{Name: app.Name, Key: "***REDACTED***"}
		}
		copy.AuthorizedApps = redacted
	}
	type configAlias Config
	return fmt.Sprintf("%+v", configAlias(copy))
}

// redactURLCredentials masks the password and secret query values of a backend URL.
func redactURLCredentials(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "***REDACTED_URL***"
	}
	if parsed.User != nil {
		if _, hasPassword := parsed.User.Password(); hasPassword {
			parsed.User = url.UserPassword(parsed.User.Username(), "***REDACTED***")
		}
	}
	q := parsed.Query()
	for _, key := range []string{"secret_access_key", "password", "token"} {
		if q.Has(key) {
			q.Set(key, "***REDACTED***")
			parsed.RawQuery = q.Encode()
		}
	}
	return parsed.String()
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.BackendURL) == "" {
		errs = append(errs, errspkg.ErrBackendURLRequired)
	} else if u, err := url.Parse(c.BackendURL); err != nil {
		errs = append(errs, fmt.Errorf("backend: %w", err))
	} else if u.Scheme == "" {
		errs = append(errs, errors.New("backend: URL must have a scheme"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("server: invalid port %d", c.Port))
	}
	if c.ConnectTimeout < 0 {
		errs = append(errs, errors.New("backend: connect timeout cannot be negative"))
	}
	if c.RouterPrefix != "" && !strings.HasPrefix(c.RouterPrefix, "/") {
		errs = append(errs, fmt.Errorf("router: prefix %q must start with /", c.RouterPrefix))
	}
	for i, app := range c.AuthorizedApps {
		if app.Name == "" || app.Key == "" {
			errs = append(errs, fmt.Errorf("authorized app %d: %w", i, errspkg.ErrAuthorizedAppFormat))
		}
	}

	return errors.Join(errs...)
}

// ValidateConfig is a convenience function to validate a config pointer.
func ValidateConfig(c *Config) error {
	if c == nil {
		return errspkg.ErrConfigRequired
	}
	return c.Validate()
}

// ParseAuthorizedApps parses "name:key" entries. An entry may hold several
// space separated pairs, so "a:1 b:2" and ["a:1", "b:2"] are equivalent.
func ParseAuthorizedApps(entries []string) ([]auth.AuthorizedApp, error) {
	var apps []auth.AuthorizedApp
	for _, entry := range entries {
		for _, pair := range strings.Fields(entry) {
			name, key, ok := strings.Cut(pair, ":")
			if !ok || name == "" || key == "" {
				return nil, fmt.Errorf("%w: %q", errspkg.ErrAuthorizedAppFormat, pair)
			}
			apps = append(apps, auth.AuthorizedApp{Name: name, Key: key})
		}
	}
	return apps, nil
}
