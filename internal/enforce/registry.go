package enforce

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrGatewayNotFound      = errors.New("gateway not found")
	ErrGatewayAlreadyExists = errors.New("gateway already registered")
)

// Registry manages all registered enforcement gateways
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
}

// NewRegistry creates a new gateway registry
func NewRegistry() *Registry {
	return &Registry{
		gateways: make(map[string]Gateway),
	}
}

// Register adds a gateway to the registry
func (r *Registry) Register(gw Gateway) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := gw.Name()
	if _, exists := r.gateways[name]; exists {
		return fmt.Errorf("%w: %s", ErrGatewayAlreadyExists, name)
	}

	r.gateways[name] = gw
	return nil
}

// Get retrieves a gateway by name
func (r *Registry) Get(name string) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	gw, exists := r.gateways[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrGatewayNotFound, name)
	}

	return gw, nil
}

// List returns all registered gateway names
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	return names
}
