package testutil

import "github.com/specialistvlad/gobblego/internal/registry"

// SimpleModule is a test helper for easily creating a mock module that
// registers a single plugin.
type SimpleModule struct {
	Plugin *registry.Plugin
}

// Register implements the registry.Module interface.
func (m *SimpleModule) Register(r *registry.Registry) {
	if m.Plugin != nil {
		r.Register(m.Plugin)
	}
}
