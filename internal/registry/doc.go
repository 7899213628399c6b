// Package registry provides the central "glue" for the plugin system.
//
// The Registry maps the plugin names used in build definitions (e.g.
// "uppercase", "include") to the compiled Go functions that implement them.
// Built-in modules register their plugins at startup; the registry is then
// validated so that a malformed plugin is reported before any build starts.
package registry
