package sysfs

import (
	"sync"

	"codeberg.org/mutker/dockd/internal/errors"
)

// Write is one recorded Memory.Write call.
type Write struct {
	Path  string
	Value string
}

// Memory is an in-memory attribute store. It backs the daemon's dry-run
// mode and lets tests observe writes and inject failures.
type Memory struct {
	mu       sync.Mutex
	values   map[string]string
	writes   []Write
	failures map[string]errors.ErrorCode
}

// NewMemory returns a store preloaded with values.
func NewMemory(values map[string]string) *Memory {
	m := &Memory{
		values:   make(map[string]string, len(values)),
		failures: make(map[string]errors.ErrorCode),
	}
	for k, v := range values {
		m.values[k] = v
	}

	return m
}

func (m *Memory) Read(path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	errFactory := errors.New()
	if code, ok := m.failures[path]; ok && code != ErrWriteFailed {
		return "", errFactory.WithData(code, path)
	}

	v, ok := m.values[path]
	if !ok {
		return "", errFactory.WithData(ErrNotFound, path)
	}

	return v, nil
}

// Write records the value. Unknown paths are created.
func (m *Memory) Write(path, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if code, ok := m.failures[path]; ok && code != ErrReadFailed {
		return errors.New().WithData(code, path)
	}

	m.values[path] = value
	m.writes = append(m.writes, Write{Path: path, Value: value})

	return nil
}

// Set changes a value without recording a write.
func (m *Memory) Set(path, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[path] = value
}

// Get returns the current value of path.
func (m *Memory) Get(path string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[path]

	return v, ok
}

// Fail makes subsequent operations on path fail with code. ErrReadFailed
// only affects reads, ErrWriteFailed only writes, any other code both.
func (m *Memory) Fail(path string, code errors.ErrorCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = code
}

// Heal removes an injected failure.
func (m *Memory) Heal(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, path)
}

// Writes returns the successful writes in call order.
func (m *Memory) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Write, len(m.writes))
	copy(out, m.writes)

	return out
}

// Reset forgets recorded writes.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = nil
}
