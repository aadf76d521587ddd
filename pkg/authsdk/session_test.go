package authsdk

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// refreshServer answers /token refreshes and /user, counting refreshes.
type refreshServer struct {
	refreshes atomic.Int32
	reject    atomic.Bool
	lastToken atomic.Value
}

func (rs *refreshServer) mux(t *testing.T) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		if rs.reject.Load() {
			writeJSON(t, w, http.StatusBadRequest, map[string]any{
				"code": 400, "error_code": "refresh_token_not_found", "msg": "Invalid Refresh Token: Refresh Token Not Found",
			})
			return
		}
		rs.refreshes.Add(1)
		writeJSON(t, w, http.StatusOK, tokenBody("access-refreshed", "refresh-rotated", 3600))
	})
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		rs.lastToken.Store(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		writeJSON(t, w, http.StatusOK, map[string]any{"id": "u1", "email": "a@b.com"})
	})
	mux.HandleFunc("POST /logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func TestSessionRefreshBuffer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("token outside buffer is not refreshed", func(t *testing.T) {
		t.Parallel()
		rs := &refreshServer{}
		client, _ := newTestClient(t, rs.mux(t))

		s := client.NewSessionFromTokens("access", "refresh", time.Now().Add(2*time.Minute))
		_, err := s.GetUser(ctx)
		require.NoError(t, err)
		require.Equal(t, int32(0), rs.refreshes.Load())
		require.Equal(t, "access", rs.lastToken.Load())
	})

	t.Run("token inside buffer is refreshed first", func(t *testing.T) {
		t.Parallel()
		rs := &refreshServer{}
		client, _ := newTestClient(t, rs.mux(t))

		var events []EventType
		var mu sync.Mutex
		client.OnAuthStateChange(func(ev Event) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, ev.Type)
		})

		s := client.NewSessionFromTokens("access", "refresh", time.Now().Add(20*time.Second))
		_, err := s.GetUser(ctx)
		require.NoError(t, err)
		require.Equal(t, int32(1), rs.refreshes.Load())
		require.Equal(t, "access-refreshed", rs.lastToken.Load())
		require.Equal(t, "refresh-rotated", s.RefreshToken())

		mu.Lock()
		defer mu.Unlock()
		require.Equal(t, []EventType{EventTokenRefreshed}, events)
	})

	t.Run("custom buffer", func(t *testing.T) {
		t.Parallel()
		rs := &refreshServer{}
		client, _ := newTestClient(t, rs.mux(t), WithRefreshBuffer(5*time.Minute))

		s := client.NewSessionFromTokens("access", "refresh", time.Now().Add(2*time.Minute))
		_, err := s.GetUser(ctx)
		require.NoError(t, err)
		require.Equal(t, int32(1), rs.refreshes.Load())
	})
}

func TestSessionConcurrentRefreshHappensOnce(t *testing.T) {
	t.Parallel()

	rs := &refreshServer{}
	client, _ := newTestClient(t, rs.mux(t))
	s := client.NewSessionFromTokens("access", "refresh", time.Now().Add(-time.Second))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.GetUser(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), rs.refreshes.Load())
}

func TestSessionRejectedRefreshSignsOut(t *testing.T) {
	t.Parallel()

	rs := &refreshServer{}
	rs.reject.Store(true)

	storage := &memStorage{}
	client, _ := newTestClient(t, rs.mux(t), WithStorage(storage))
	require.NoError(t, storage.Save(context.Background(), StoredSession{RefreshToken: "refresh"}))

	var got []Event
	unsubscribe := client.OnAuthStateChange(func(ev Event) { got = append(got, ev) })
	defer unsubscribe()

	s := client.NewSessionFromTokens("access", "refresh", time.Now().Add(-time.Second))
	err := s.Refresh(context.Background())
	require.ErrorIs(t, err, ErrRefreshNotFound)

	require.Empty(t, s.AccessToken())
	require.Empty(t, s.RefreshToken())
	require.Nil(t, storage.stored())
	require.Len(t, got, 1)
	require.Equal(t, EventSignedOut, got[0].Type)
	require.Same(t, s, got[0].Session)

	_, err = s.GetUser(context.Background())
	require.ErrorIs(t, err, ErrNoSession)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	t.Parallel()

	client := NewSDKClient("http://unused")
	calls := 0
	unsubscribe := client.OnAuthStateChange(func(Event) { calls++ })

	client.emit(Event{Type: EventTokenRefreshed})
	unsubscribe()
	unsubscribe()
	client.emit(Event{Type: EventTokenRefreshed})

	require.Equal(t, 1, calls)
}

func TestLogoutClearsStorage(t *testing.T) {
	t.Parallel()

	rs := &refreshServer{}
	storage := &memStorage{}
	client, _ := newTestClient(t, rs.mux(t), WithStorage(storage))

	s := client.NewSessionFromTokens("access", "refresh", time.Now().Add(time.Hour))
	require.NoError(t, storage.Save(context.Background(), s.Snapshot()))

	require.NoError(t, s.Logout(context.Background()))
	require.Nil(t, storage.stored())
	require.Empty(t, s.AccessToken())

	require.ErrorIs(t, s.Logout(context.Background()), ErrNoSession)
}

func TestAutoRefresher(t *testing.T) {
	t.Parallel()

	rs := &refreshServer{}
	client, _ := newTestClient(t, rs.mux(t))
	s := client.NewSessionFromTokens("access", "refresh", time.Now().Add(10*time.Second))

	r := NewAutoRefresher(func() *Session { return s }, nil, 20*time.Millisecond)
	r.Start()
	require.Eventually(t, func() bool { return rs.refreshes.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	r.Stop()

	require.Equal(t, "access-refreshed", s.AccessToken())
	require.True(t, s.ExpiresAt().After(time.Now().Add(30*time.Minute)))
}

func TestParseFragment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		address   string
		tokens    bool
		recovery  bool
		errCode   string
		expiresIn int
		expiresAt int64
	}{
		{"recovery with tokens", "http://app/reset#access_token=a&refresh_token=r&expires_in=3600&type=recovery", true, true, "", 3600, 0},
		{"signup with expires_at", "http://app/#access_token=a&refresh_token=r&expires_at=1700000000&type=signup", true, false, "", 0, 1700000000},
		{"marker without tokens", "http://app/reset#type=recovery", false, true, "", 0, 0},
		{"error fragment", "http://app/reset#error=access_denied&error_code=otp_expired&error_description=Email+link+is+invalid", false, false, "otp_expired", 0, 0},
		{"error in query", "http://app/reset?error=access_denied&error_code=otp_expired", false, false, "otp_expired", 0, 0},
		{"plain address", "http://app/reset", false, false, "", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, err := ParseFragment(tt.address)
			require.NoError(t, err)
			require.Equal(t, tt.tokens, f.HasTokens())
			require.Equal(t, tt.recovery, f.IsRecovery())
			require.Equal(t, tt.expiresIn, f.ExpiresIn)
			require.Equal(t, tt.expiresAt, f.ExpiresAt)
			if tt.errCode == "" {
				require.NoError(t, f.Err())
			} else {
				require.Equal(t, tt.errCode, ErrorCode(f.Err()))
			}
		})
	}
}
