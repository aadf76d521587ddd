package tokenstore

import (
	"context"
	"sync"

	"github.com/aussiebroadwan/authclient/pkg/authsdk"
)

// Memory keeps the session for the lifetime of the process.
type Memory struct {
	mu      sync.Mutex
	session *authsdk.StoredSession
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(context.Context) (*authsdk.StoredSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, authsdk.ErrNoSession
	}
	cp := *m.session
	return &cp, nil
}

func (m *Memory) Save(_ context.Context, s authsdk.StoredSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &s
	return nil
}

func (m *Memory) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}
