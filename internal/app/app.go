package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/gobblego/internal/config"
	"github.com/specialistvlad/gobblego/internal/ctxlog"
	"github.com/specialistvlad/gobblego/internal/hcl"
	"github.com/specialistvlad/gobblego/internal/registry"
	"github.com/specialistvlad/gobblego/internal/yamlcfg"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	ctx        context.Context
	config     *Config
	registry   *registry.Registry
	loaders    []config.Loader
	httpServer *http.Server
}

// DefaultLoaders returns every build definition format gobble understands.
func DefaultLoaders() []config.Loader {
	return []config.Loader{hcl.NewLoader(), yamlcfg.NewLoader()}
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
// The build definition is read by Run, so a watch session can reload it.
func NewApp(outW io.Writer, cfg *Config, loaders []config.Loader, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All plugin modules registered.", "count", len(modules), "plugins", reg.Names())

	if err := reg.ValidateRegistry(ctx); err != nil {
		// A broken built-in plugin is a programmer error, so we panic.
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	return &App{
		outW:     outW,
		logger:   logger,
		ctx:      ctx,
		config:   cfg,
		registry: reg,
		loaders:  loaders,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}
