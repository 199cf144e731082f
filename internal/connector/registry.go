package connector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kevin07696/payment-router/internal/domain"
)

// Registry resolves connector names to their implementations
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
}

// NewRegistry creates a registry with the given connectors
func NewRegistry(connectors ...Connector) *Registry {
	r := &Registry{connectors: make(map[string]Connector, len(connectors))}
	for _, c := range connectors {
		r.Register(c)
	}
	return r
}

// Register adds or replaces a connector
func (r *Registry) Register(c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[c.Name()] = c
}

// Connector looks up a connector by name
func (r *Registry) Connector(name string) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.connectors[name]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrorCodeConnectorNotFound,
			fmt.Sprintf("connector %q is not registered", name))
	}
	return c, nil
}

// Resolve returns the integration for (connector, flow). A flow the connector
// does not implement resolves to an integration that refuses to build a request.
func (r *Registry) Resolve(name string, flow domain.Flow) (Integration, error) {
	if !flow.Valid() {
		return nil, domain.NewDomainError(domain.ErrorCodeFlowNotSupported,
			fmt.Sprintf("unknown flow %q", flow))
	}
	c, err := r.Connector(name)
	if err != nil {
		return nil, err
	}
	if integ := c.Integration(flow); integ != nil {
		return integ, nil
	}
	return notSupported{connector: name, flow: flow}, nil
}

// Names lists registered connectors in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// notSupported stands in for flows a connector does not implement
type notSupported struct {
	connector string
	flow      domain.Flow
}

func (n notSupported) err() error {
	return domain.NewDomainError(domain.ErrorCodeFlowNotSupported,
		fmt.Sprintf("flow %s is not supported by %s", n.flow, n.connector)).
		WithDetail("connector", n.connector).
		WithDetail("flow", n.flow.String())
}

func (n notSupported) Headers(context.Context, *RouterData) ([]Header, error) { return nil, n.err() }
func (n notSupported) ContentType() string                                      { return "" }
func (n notSupported) URL(*RouterData) (string, error)                          { return "", n.err() }
func (n notSupported) RequestBody(*RouterData) (*RequestContent, error)         { return nil, n.err() }

func (n notSupported) BuildRequest(context.Context, *RouterData) (*Request, error) {
	return nil, n.err()
}

func (n notSupported) HandleResponse(*RouterData, Response) (*RouterData, error) {
	return nil, n.err()
}

func (n notSupported) ErrorResponse(Response) (*ErrorResponse, error) {
	return nil, n.err()
}
