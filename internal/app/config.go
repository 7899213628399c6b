package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// Task selects what Run does with the assembled graph.
type Task string

const (
	TaskBuild Task = "build"
	TaskWatch Task = "watch"
	TaskGraph Task = "graph"
)

// Environment variables read by LoadEnv.
const (
	EnvName   = "GOBBLE_ENV"
	EnvCwd    = "GOBBLE_CWD"
	EnvTmpDir = "GOBBLE_TMP_DIR"
)

const defaultEnv = "development"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// DefinitionPath is a build definition file or a directory of them.
	DefinitionPath string
	Task           Task
	Dest           string
	Force          bool

	// Cwd anchors relative paths. Defaults to the working directory.
	Cwd string
	// TmpDir is the session scratch directory.
	TmpDir string
	// Env is exposed to build definitions as `env`.
	Env  string
	Vars map[string]string

	LogFormat       string
	LogLevel        string
	Debounce        time.Duration
	HealthcheckPort int
	NotifyURL       string
}

// LoadEnv reads .env files (a missing file is fine) and fills the fields the
// command line left empty from GOBBLE_* variables.
func LoadEnv(cfg *Config, files ...string) {
	_ = godotenv.Load(files...)

	if cfg.Env == "" {
		cfg.Env = os.Getenv(EnvName)
	}
	if cfg.Cwd == "" {
		cfg.Cwd = os.Getenv(EnvCwd)
	}
	if cfg.TmpDir == "" {
		cfg.TmpDir = os.Getenv(EnvTmpDir)
	}
}

// NewConfig validates cfg, applies defaults and makes every path absolute.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.DefinitionPath == "" {
		return nil, errors.New("a build definition path is required")
	}
	switch cfg.Task {
	case TaskBuild, TaskWatch:
		if cfg.Dest == "" {
			return nil, fmt.Errorf("the %s task needs a destination directory", cfg.Task)
		}
	case TaskGraph:
	default:
		return nil, fmt.Errorf("unknown task %q", cfg.Task)
	}
	if cfg.Debounce < 0 {
		return nil, errors.New("debounce cannot be negative")
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort)
	}
	if _, ok := cfg.Vars["env"]; ok {
		return nil, errors.New(`"env" is reserved, set it with --env`)
	}

	if cfg.Env == "" {
		cfg.Env = defaultEnv
	}
	if cfg.Cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		cfg.Cwd = wd
	}
	cwd, err := filepath.Abs(cfg.Cwd)
	if err != nil {
		return nil, err
	}
	cfg.Cwd = cwd

	if cfg.TmpDir == "" {
		cfg.TmpDir = ".gobble-" + string(cfg.Task)
	}
	cfg.DefinitionPath = cfg.resolve(cfg.DefinitionPath)
	cfg.TmpDir = cfg.resolve(cfg.TmpDir)
	if cfg.Dest != "" {
		cfg.Dest = cfg.resolve(cfg.Dest)
		if cfg.Dest == cfg.TmpDir {
			return nil, errors.New("destination and scratch directory must differ")
		}
	}
	return &cfg, nil
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(c.Cwd, path)
}
