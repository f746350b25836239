package store

import (
	"sync"
	"time"
)

// MemoryCredentials keeps credentials for the life of the process only.
type MemoryCredentials struct {
	mu    sync.RWMutex
	creds map[string]Credentials
}

func NewMemoryCredentials() *MemoryCredentials {
	return &MemoryCredentials{creds: make(map[string]Credentials)}
}

func (m *MemoryCredentials) Save(c Credentials) error {
	if c.SavedAt.IsZero() {
		c.SavedAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[c.Profile] = c
	return nil
}

func (m *MemoryCredentials) Load(profile string) (Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.creds[profile]
	if !ok {
		return Credentials{}, ErrNoCredentials
	}
	return c, nil
}

func (m *MemoryCredentials) Delete(profile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creds, profile)
	return nil
}

func (m *MemoryCredentials) Close() error { return nil }
