package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/specialistvlad/gobblego/internal/builderr"
)

// Module is the interface that all plugin modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds all the registered plugins for a single application instance.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]*Plugin
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		plugins: make(map[string]*Plugin),
	}
}

// Register adds a plugin. Registering two plugins under one name is a
// programming error and panics.
func (r *Registry) Register(p *Plugin) {
	if p == nil || p.Name == "" {
		panic("plugin must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[p.Name]; exists {
		panic(fmt.Sprintf("plugin with name '%s' already registered", p.Name))
	}
	slog.Debug("Registering plugin.", "name", p.Name)
	r.plugins[p.Name] = p
}

// Lookup returns the plugin registered under name. The error has code
// PLUGIN_NOT_FOUND if there is none.
func (r *Registry) Lookup(name string) (*Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[name]
	if !ok {
		err := builderr.New(builderr.PluginNotFound, "could not find plugin '%s'", name)
		err.Path = name
		return nil, err
	}
	return p, nil
}

// Names returns all registered plugin names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
