package transport

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill"

	errspkg "github.com/drblury/axonbridge/internal/runtime/errors"
)

// Registry maps URL schemes to transport builders and their capabilities.
// Transport packages register themselves using Register.
type Registry struct {
	mu           sync.RWMutex
	builders     map[string]Builder
	capabilities map[string]Capabilities
}

// DefaultRegistry is the global transport registry.
var DefaultRegistry = NewRegistry()

// NewRegistry creates a new transport registry.
func NewRegistry() *Registry {
	return &Registry{
		builders:     make(map[string]Builder),
		capabilities: make(map[string]Capabilities),
	}
}

// Register adds a transport builder for a URL scheme.
func (r *Registry) Register(scheme string, builder Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[strings.ToLower(scheme)] = builder
}

// RegisterWithCapabilities adds a transport builder and its capabilities for a URL scheme.
func (r *Registry) RegisterWithCapabilities(scheme string, builder Builder, caps Capabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	scheme = strings.ToLower(scheme)
	r.builders[scheme] = builder
	r.capabilities[scheme] = caps
}

// GetCapabilities returns the capabilities registered for a scheme.
// Returns a zero Capabilities struct named after the scheme if it is unknown.
func (r *Registry) GetCapabilities(scheme string) Capabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if caps, ok := r.capabilities[strings.ToLower(scheme)]; ok {
		return caps
	}
	return Capabilities{Name: scheme}
}

// Build creates a transport using the builder registered for the endpoint's scheme.
func (r *Registry) Build(ctx context.Context, ep Endpoint, logger watermill.LoggerAdapter) (Transport, error) {
	r.mu.RLock()
	builder, ok := r.builders[ep.Scheme]
	r.mu.RUnlock()

	if !ok {
		return Transport{}, fmt.Errorf("%w: %q (registered: %v)", errspkg.ErrUnknownTransport, ep.Scheme, r.Names())
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return builder(ctx, ep, logger)
}

// Names returns the registered schemes in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has returns true if a transport is registered for the scheme.
func (r *Registry) Has(scheme string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builders[strings.ToLower(scheme)]
	return ok
}

// Register adds a transport builder to the default registry.
func Register(scheme string, builder Builder) {
	DefaultRegistry.Register(scheme, builder)
}

// RegisterWithCapabilities adds a transport builder and its capabilities to the default registry.
func RegisterWithCapabilities(scheme string, builder Builder, caps Capabilities) {
	DefaultRegistry.RegisterWithCapabilities(scheme, builder, caps)
}

// Build creates a transport using the default registry.
func Build(ctx context.Context, ep Endpoint, logger watermill.LoggerAdapter) (Transport, error) {
	return DefaultRegistry.Build(ctx, ep, logger)
}

// GetCapabilities returns the capabilities registered for a scheme in the default registry.
func GetCapabilities(scheme string) Capabilities {
	return DefaultRegistry.GetCapabilities(scheme)
}
