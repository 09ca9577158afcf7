package store

import "sync"

// Memory is an in-memory Documents implementation. Tests use it in place of
// the sqlite store; PutErr injects write failures (e.g. quota exceeded).
type Memory struct {
	mu   sync.Mutex
	docs map[string]string

	// PutErr, when set, is returned by every Put.
	PutErr error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: map[string]string{}}
}

func (m *Memory) Put(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return m.PutErr
	}
	m.docs[key] = value
	return nil
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.docs[key]
	return value, ok, nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, key)
	return nil
}
