// Package jobmgr runs named long-lived service jobs (tick loops, watchers,
// worker pools) under a shared parent context, with cancellation, lifecycle
// callbacks and a Wait for clean shutdown.
package jobmgr

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// StatusReporter receives lifecycle events for jobs: "running:<name>",
// "error:<name>:<message>", "done:<name>". May be nil.
type StatusReporter func(string)

type job struct {
	name   string
	cancel context.CancelFunc
}

// Manager starts, stops and tracks jobs. Safe for concurrent use.
type Manager struct {
	parent   context.Context
	reporter StatusReporter

	mu   sync.Mutex
	jobs map[string]*job
	wg   sync.WaitGroup
}

// NewManager creates a manager whose jobs all descend from parent: canceling
// parent stops every job.
func NewManager(parent context.Context, reporter StatusReporter) *Manager {
	return &Manager{
		parent:   parent,
		reporter: reporter,
		jobs:     make(map[string]*job),
	}
}

// Start runs a job in its own goroutine. A second job with the same name is
// rejected while the first is still running. Jobs are removed automatically
// when their runner returns.
func (m *Manager) Start(name string, runner func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(m.parent)

	m.mu.Lock()
	if _, exists := m.jobs[name]; exists {
		m.mu.Unlock()
		cancel()
		return fmt.Errorf("job %q is already running", name)
	}
	m.jobs[name] = &job{name: name, cancel: cancel}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer cancel()
		m.report("running:" + name)

		if err := runner(ctx); err != nil && ctx.Err() == nil {
			m.report("error:" + name + ":" + err.Error())
		} else {
			m.report("done:" + name)
		}

		m.mu.Lock()
		delete(m.jobs, name)
		m.mu.Unlock()
	}()

	return nil
}

// Stop cancels a running job by name.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[name]
	if !ok {
		return fmt.Errorf("job %q not running", name)
	}
	j.cancel()
	delete(m.jobs, name)
	return nil
}

// Wait blocks until every job has returned. Call after canceling the parent
// context to drain shutdown.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// List returns the active job names, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for name := range m.jobs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) report(msg string) {
	if m.reporter != nil {
		m.reporter(msg)
	}
}
