package otp

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps codes in process memory. Used by tests and local
// development without a database.
type MemoryStore struct {
	mu    sync.Mutex
	codes map[string]Code // by email; at most one live code each
}

var _ Store = (*MemoryStore)(nil)

func NewInMemory() *MemoryStore {
	return &MemoryStore{codes: make(map[string]Code)}
}

func (m *MemoryStore) Replace(_ context.Context, email, code string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[email] = Code{Email: email, Code: code, ExpiresAt: expiresAt}
	return nil
}

func (m *MemoryStore) Find(_ context.Context, email, code string) (*Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.codes[email]
	if !ok || rec.Code != code {
		return nil, errCodeMissing
	}
	clone := rec
	return &clone, nil
}

func (m *MemoryStore) DeleteByEmail(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.codes, email)
	return nil
}
