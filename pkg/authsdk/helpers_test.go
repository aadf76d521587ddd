package authsdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authclient/pkg/slogx"
)

const testAPIKey = "anon-key"

// memStorage is an in-test Storage; the real backends live in tokenstore.
type memStorage struct {
	mu      sync.Mutex
	session *StoredSession
	saves   int
}

func (m *memStorage) Load(context.Context) (*StoredSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, ErrNoSession
	}
	cp := *m.session
	return &cp, nil
}

func (m *memStorage) Save(_ context.Context, s StoredSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &s
	m.saves++
	return nil
}

func (m *memStorage) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

func (m *memStorage) stored() *StoredSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

func newTestClient(t *testing.T, mux *http.ServeMux, opts ...Option) (*SDKClient, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithAPIKey(testAPIKey), WithLogger(slogx.Nop())}, opts...)
	return NewSDKClient(srv.URL, opts...), srv
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func tokenBody(access, refresh string, expiresIn int) map[string]any {
	return map[string]any{
		"access_token":  access,
		"token_type":    "bearer",
		"expires_in":    expiresIn,
		"refresh_token": refresh,
		"user": map[string]any{
			"id":         "6f1c3c1e-0000-4000-8000-000000000001",
			"email":      "a@b.com",
			"created_at": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}
