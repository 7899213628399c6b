// Package notify pushes build events to an external development server over
// socket.io, so a browser can reload once a build lands.
package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/specialistvlad/gobblego/internal/builderr"
	"github.com/specialistvlad/gobblego/internal/checksum"
	"github.com/specialistvlad/gobblego/internal/ctxlog"
	"github.com/specialistvlad/gobblego/internal/graph"
	"github.com/specialistvlad/gobblego/internal/task"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Event names emitted to the server.
const (
	EventBuildStart       = "build:start"
	EventBuildInvalidated = "build:invalidated"
	EventBuildEnd         = "build:end"
	EventBuilt            = "built"
	EventError            = "error"
)

// Options configures the connection.
type Options struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	// ConnectTimeout bounds Dial. Default: 15s
	ConnectTimeout time.Duration
}

// Reporter emits build events. It is safe for concurrent use.
type Reporter struct {
	logger *slog.Logger

	mu     sync.Mutex
	emit   func(event string, payload any)
	close  func()
	closed bool
}

// Dial connects to the socket.io server at opts.URL and waits for the
// connection to be acknowledged.
func Dial(ctx context.Context, opts Options) (*Reporter, error) {
	logger := ctxlog.FromContext(ctx).With("notify", opts.URL)
	logger.Debug("Connecting to notification server...")

	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("notify URL %q needs a scheme and a host", opts.URL)
	}
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	sockOpts := socket.DefaultOptions()
	sockOpts.SetPath(parsedURL.Path)
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		sockOpts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sockOpts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, sockOpts)
	io := manager.Socket(opts.Namespace, sockOpts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("Connected to notification server.", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		connectChan <- firstError(errs)
	})
	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}

	return newReporter(logger,
		func(event string, payload any) { io.Emit(event, payload) },
		func() { io.Disconnect() },
	), nil
}

func newReporter(logger *slog.Logger, emit func(string, any), closeFn func()) *Reporter {
	return &Reporter{logger: logger, emit: emit, close: closeFn}
}

func firstError(args []any) error {
	if len(args) == 0 {
		return errors.New("connect_error")
	}
	if err, ok := args[0].(error); ok {
		return err
	}
	return fmt.Errorf("%v", args[0])
}

func (r *Reporter) send(event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.logger.Debug("Emitting event.", "event", event)
	r.emit(event, payload)
}

// Info forwards build milestones. Node-level progress stays local.
func (r *Reporter) Info(info graph.Info) {
	switch info.Code {
	case graph.BuildStart:
		r.send(EventBuildStart, map[string]any{})
	case graph.BuildInvalidated:
		r.send(EventBuildInvalidated, map[string]any{"changes": changeList(info.Changes)})
	case graph.BuildComplete:
		r.send(EventBuildEnd, map[string]any{
			"duration": info.Duration.Milliseconds(),
			"watch":    info.Watch,
		})
	}
}

// Error forwards a build failure with its location.
func (r *Reporter) Error(err error) {
	if err == nil || builderr.IsAborted(err) {
		return
	}
	payload := map[string]any{"message": err.Error()}
	var be *builderr.Error
	if errors.As(err, &be) {
		payload["code"] = string(be.Code)
		payload["id"] = be.NodeID
		payload["file"] = be.File
		payload["line"] = be.Line
		payload["column"] = be.Column
		payload["creator"] = be.Creator
	}
	r.send(EventError, payload)
}

// Built announces the directory a watch build was written to.
func (r *Reporter) Built(dest string) {
	r.send(EventBuilt, map[string]any{"dest": dest})
}

// Wrap returns handlers that report to r and then call h.
func (r *Reporter) Wrap(h task.Handlers) task.Handlers {
	return task.Handlers{
		Info: func(info graph.Info) {
			r.Info(info)
			if h.Info != nil {
				h.Info(info)
			}
		},
		Error: func(err error) {
			r.Error(err)
			if h.Error != nil {
				h.Error(err)
			}
		},
		Built: func(dest string) {
			r.Built(dest)
			if h.Built != nil {
				h.Built(dest)
			}
		},
		Complete: h.Complete,
	}
}

// Close disconnects. Later events are dropped.
func (r *Reporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if r.close != nil {
		r.close()
	}
}

func changeList(changes []checksum.Change) []map[string]string {
	out := make([]map[string]string, 0, len(changes))
	for _, c := range changes {
		out = append(out, map[string]string{"file": c.File, "type": c.Kind.String()})
	}
	return out
}
