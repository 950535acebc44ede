package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/hfpag/pkg/audio"
)

// ErrNotRegistered is returned by Create* methods when no factory has been
// registered under the requested name.
var ErrNotRegistered = errors.New("config: implementation not registered")

// Registry maps implementation names to their constructor functions for the
// audio backend and the competing-source pauser. It is safe for concurrent
// use.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]func(BackendEntry) (audio.Backend, error)
	pausers  map[string]func(BackendEntry) (audio.Pauser, error)
}

// NewRegistry returns a [Registry] with the built-in "none" pauser.
func NewRegistry() *Registry {
	r := &Registry{
		backends: make(map[string]func(BackendEntry) (audio.Backend, error)),
		pausers:  make(map[string]func(BackendEntry) (audio.Pauser, error)),
	}
	r.RegisterPauser("none", func(BackendEntry) (audio.Pauser, error) { return audio.NopPauser{}, nil })
	return r
}

// RegisterBackend registers an audio backend factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterBackend(name string, factory func(BackendEntry) (audio.Backend, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = factory
}

// RegisterPauser registers a pauser factory under name.
func (r *Registry) RegisterPauser(name string, factory func(BackendEntry) (audio.Pauser, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pausers[name] = factory
}

// CreateBackend instantiates an audio backend using the factory registered
// under entry.Name. Returns [ErrNotRegistered] if there is none.
func (r *Registry) CreateBackend(entry BackendEntry) (audio.Backend, error) {
	r.mu.RLock()
	factory, ok := r.backends[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: backend/%q", ErrNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreatePauser instantiates a pauser using the factory registered under
// entry.Name. An empty name selects the "none" pauser.
func (r *Registry) CreatePauser(entry BackendEntry) (audio.Pauser, error) {
	name := entry.Name
	if name == "" {
		name = "none"
	}
	r.mu.RLock()
	factory, ok := r.pausers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: pauser/%q", ErrNotRegistered, name)
	}
	return factory(entry)
}
