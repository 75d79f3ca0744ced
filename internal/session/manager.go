package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxWorkflows caps concurrent workflows when no limit is configured.
const DefaultMaxWorkflows = 32

// KeepAliveWindow is how long a touched workflow is protected from cleanup.
const KeepAliveWindow = 5 * time.Minute

// Manager owns the active upload workflows.
type Manager struct {
	mu           sync.RWMutex
	maxWorkflows int
	workflows    map[string]*Workflow
}

// NewManager creates an empty workflow manager with the default capacity.
func NewManager() *Manager {
	return NewManagerWithCapacity(DefaultMaxWorkflows)
}

// NewManagerWithCapacity creates a workflow manager holding at most max
// concurrent workflows, to prevent memory exhaustion.
func NewManagerWithCapacity(max int) *Manager {
	if max < 1 {
		max = DefaultMaxWorkflows
	}
	return &Manager{
		maxWorkflows: max,
		workflows:    make(map[string]*Workflow),
	}
}

// Create starts a new workflow session.
func (m *Manager) Create() (*Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.workflows) >= m.maxWorkflows {
		m.evictSettledLocked()
	}
	if len(m.workflows) >= m.maxWorkflows {
		return nil, fmt.Errorf("too many active workflows")
	}

	wf := newWorkflow(uuid.New().String())
	m.workflows[wf.ID] = wf
	fmt.Printf("[Workflow %s] Created\n", short(wf.ID))
	return wf, nil
}

// Get returns a workflow by id.
func (m *Manager) Get(id string) (*Workflow, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wf, ok := m.workflows[id]
	return wf, ok
}

// Touch refreshes a workflow's keep-alive timestamp.
func (m *Manager) Touch(id string) bool {
	m.mu.RLock()
	wf, ok := m.workflows[id]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	wf.Touch()
	return true
}

// Delete tears a workflow down: its context is cancelled, abandoning any
// queued files, and the session state is dropped.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	wf, ok := m.workflows[id]
	if ok {
		delete(m.workflows, id)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	wf.teardown()
	fmt.Printf("[Workflow %s] Torn down\n", short(id))
	return true
}

// CleanupAged removes settled or empty workflows older than maxAge, keeping
// any that were accessed within the keep-alive window. Workflows with files
// still in flight are never removed by cleanup.
func (m *Manager) CleanupAged(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)
	keepAlive := time.Now().Add(-KeepAliveWindow)

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, wf := range m.workflows {
		if !wf.Settled() && wf.Registry().Len() > 0 {
			continue
		}
		last := wf.LastAccessed()
		if last.After(keepAlive) || last.After(cutoff) {
			continue
		}
		delete(m.workflows, id)
		wf.teardown()
		fmt.Printf("[Workflow %s] Cleaned up (idle %s)\n", short(id), time.Since(last).Round(time.Second))
	}
}

// Len returns the number of active workflows.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workflows)
}

// evictSettledLocked frees room by dropping fully-terminal workflows.
func (m *Manager) evictSettledLocked() {
	for id, wf := range m.workflows {
		if wf.Settled() {
			delete(m.workflows, id)
			wf.teardown()
			fmt.Printf("[Workflow %s] Evicted to free capacity\n", short(id))
		}
	}
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
