package client

import (
	"context"
	"fmt"
	"sync"
)

// DefaultAlias is the alias used when a caller does not name its connection.
const DefaultAlias = "default"

// Registry keeps named connections so callers can share one client per alias.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*Client
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Client)}
}

// Connect returns the client registered under alias, dialing addr if the
// alias is new. Reusing an alias with a different address is an error.
func (r *Registry) Connect(ctx context.Context, alias, addr string, opts ...Option) (*Client, error) {
	if alias == "" {
		alias = DefaultAlias
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.conns[alias]; ok {
		if c.Addr() != addr {
			return nil, fmt.Errorf("alias %q already connected to %s", alias, c.Addr())
		}
		return c, nil
	}

	c, err := Connect(ctx, addr, opts...)
	if err != nil {
		return nil, err
	}
	r.conns[alias] = c
	return c, nil
}

// Get returns the client registered under alias.
func (r *Registry) Get(alias string) (*Client, bool) {
	if alias == "" {
		alias = DefaultAlias
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[alias]
	return c, ok
}

// Disconnect closes and forgets the client registered under alias.
func (r *Registry) Disconnect(alias string) error {
	if alias == "" {
		alias = DefaultAlias
	}
	r.mu.Lock()
	c, ok := r.conns[alias]
	delete(r.conns, alias)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return c.Close()
}

// Close disconnects every alias.
func (r *Registry) Close() error {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]*Client)
	r.mu.Unlock()

	var firstErr error
	for _, c := range conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
