package config

import "context"

// Loader is the interface for a format-specific build definition loader.
type Loader interface {
	// Load reads the definition from the given files or directories. vars
	// are exposed to expressions; "env" is always set.
	Load(ctx context.Context, vars Vars, paths ...string) (*Model, error)

	// Extensions lists the file extensions the loader reads, with the dot.
	Extensions() []string
}

// Vars are the variables visible to definition expressions.
type Vars map[string]string
