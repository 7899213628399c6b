package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/specialistvlad/gobblego/internal/app"
	"github.com/specialistvlad/gobblego/internal/registry"
	"github.com/stretchr/testify/require"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer = app.SafeBuffer

// Options tune a harness run. The zero value runs a build of every
// definition file in the project root with the built-in plugins.
type Options struct {
	Task app.Task
	// Definition is relative to the project root. Default: the root itself.
	Definition string
	Env        string
	Vars       map[string]string
	Force      bool
	Debounce   time.Duration
	// Modules are registered next to the built-in plugins.
	Modules []registry.Module
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
	// Dir is the project root the files were written to.
	Dir string
	// Dest is the build destination, Dir/dist.
	Dest string
}

// WriteFiles writes files, keyed by slash-separated relative path, under dir.
func WriteFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// RunIntegrationTest provides a standardized harness for running integration tests
// using a default background context.
func RunIntegrationTest(t *testing.T, files map[string]string, opts Options) *HarnessResult {
	t.Helper()
	return RunIntegrationTestWithContext(context.Background(), t, files, opts)
}

// RunIntegrationTestWithContext writes files into a fresh project root and
// runs one task of a new App over it. Startup panics are returned as Err.
func RunIntegrationTestWithContext(ctx context.Context, t *testing.T, files map[string]string, opts Options) *HarnessResult {
	t.Helper()

	result, err := newHarness(t, files, opts)
	if err != nil {
		return result.HarnessResult
	}
	result.Err = result.App.Run(ctx)
	result.LogOutput = result.logs.String()
	dumpLogs(t, result.LogOutput)
	return result.HarnessResult
}

type harness struct {
	*HarnessResult
	logs *SafeBuffer
}

func newHarness(t *testing.T, files map[string]string, opts Options) (*harness, error) {
	t.Helper()

	dir := t.TempDir()
	WriteFiles(t, dir, files)

	if opts.Task == "" {
		opts.Task = app.TaskBuild
	}
	cfg := app.Config{
		DefinitionPath: filepath.Join(dir, filepath.FromSlash(opts.Definition)),
		Task:           opts.Task,
		Cwd:            dir,
		Env:            opts.Env,
		Vars:           opts.Vars,
		Force:          opts.Force,
		Debounce:       opts.Debounce,
		LogLevel:       "debug",
		LogFormat:      "text",
	}
	if opts.Task != app.TaskGraph {
		cfg.Dest = "dist"
	}
	appConfig, err := app.NewConfig(cfg)
	require.NoError(t, err)

	h := &harness{
		HarnessResult: &HarnessResult{Dir: dir, Dest: appConfig.Dest},
		logs:          &SafeBuffer{},
	}

	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = r
			}
		}()
		modules := append(app.CoreModules(), opts.Modules...)
		h.App = app.NewApp(h.logs, appConfig, app.DefaultLoaders(), modules...)
	}()

	if panicErr != nil {
		h.Err = fmt.Errorf("application startup panicked | %v", panicErr)
		h.LogOutput = h.logs.String()
		return h, h.Err
	}
	return h, nil
}

func dumpLogs(t *testing.T, logs string) {
	if os.Getenv("GOBBLE_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs)
	}
}

// WatchHarness is a running watch task.
type WatchHarness struct {
	*HarnessResult
	logs   *SafeBuffer
	cancel context.CancelFunc
	done   chan error
}

// StartWatch starts a watch task over files in the background. The task is
// stopped when the test ends, if Stop was not called before.
func StartWatch(t *testing.T, files map[string]string, opts Options) *WatchHarness {
	t.Helper()

	opts.Task = app.TaskWatch
	h, err := newHarness(t, files, opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	w := &WatchHarness{HarnessResult: h.HarnessResult, logs: h.logs, cancel: cancel, done: make(chan error, 1)}
	go func() { w.done <- h.App.Run(ctx) }()

	t.Cleanup(func() {
		_ = w.Stop()
		dumpLogs(t, w.LogOutput)
	})
	return w
}

// Logs returns the log output so far.
func (w *WatchHarness) Logs() string {
	return w.logs.String()
}

// Stop cancels the watch task and waits for it to return.
func (w *WatchHarness) Stop() error {
	w.cancel()
	select {
	case err, ok := <-w.done:
		if ok {
			w.Err = err
			close(w.done)
		}
	case <-time.After(10 * time.Second):
		return fmt.Errorf("watch task did not stop")
	}
	w.LogOutput = w.logs.String()
	return w.Err
}
