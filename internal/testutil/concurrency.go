package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/specialistvlad/gobblego/internal/registry"
)

// ExecutionRecord holds the start and end times of one plugin call.
type ExecutionRecord struct {
	Start time.Time
	End   time.Time
}

// MockSleeperModule registers the per-file "sleeper" plugin. It sleeps on
// every file, returns the content unchanged and records each call, so tests
// can count invocations and check that calls never overlap.
type MockSleeperModule struct {
	sleepDuration  time.Duration
	completionChan chan<- string

	mu        sync.Mutex
	active    int
	maxActive int
	calls     map[string]int
	records   []ExecutionRecord
}

// NewMockSleeperModule creates a new sleeper module for testing. When
// completionChan is not nil it receives each file name after its call.
func NewMockSleeperModule(completionChan chan<- string, sleep time.Duration) *MockSleeperModule {
	return &MockSleeperModule{
		sleepDuration:  sleep,
		completionChan: completionChan,
		calls:          make(map[string]int),
	}
}

// Register registers the "sleeper" plugin.
func (m *MockSleeperModule) Register(r *registry.Registry) {
	r.Register(&registry.Plugin{
		Name: "sleeper",
		File: m.transform,
	})
}

func (m *MockSleeperModule) transform(_ context.Context, code string, _ registry.Options, file *registry.File) (registry.Result, error) {
	m.mu.Lock()
	m.active++
	m.maxActive = max(m.maxActive, m.active)
	m.mu.Unlock()

	start := time.Now()
	time.Sleep(m.sleepDuration)
	end := time.Now()

	m.mu.Lock()
	m.active--
	m.calls[file.Name]++
	m.records = append(m.records, ExecutionRecord{Start: start, End: end})
	m.mu.Unlock()

	if m.completionChan != nil {
		m.completionChan <- file.Name
	}
	return registry.Result{Code: code}, nil
}

// Calls returns how often the plugin ran for the file named name.
func (m *MockSleeperModule) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// TotalCalls returns the number of plugin calls so far.
func (m *MockSleeperModule) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// MaxConcurrent returns the highest number of calls that were in flight at
// the same time.
func (m *MockSleeperModule) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxActive
}

// Records returns a copy of the recorded calls in completion order.
func (m *MockSleeperModule) Records() []ExecutionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExecutionRecord(nil), m.records...)
}
