package authstate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestStoreInit(t *testing.T) {
	t.Parallel()

	t.Run("existing session", func(t *testing.T) {
		t.Parallel()
		gw := newFakeGateway()
		existing := testSession("user-1", "restored", time.Hour)
		gw.getSession = func(context.Context) (*Session, error) { return &existing, nil }

		store, _ := newTestCore(gw)
		rec := &recorder{}
		store.Subscribe(rec.record)

		require.True(t, store.IsLoading())
		_, ok := store.Current()
		require.False(t, ok)

		store.Init(context.Background())
		store.Init(context.Background())

		require.False(t, store.IsLoading())
		cur, ok := store.Current()
		require.True(t, ok)
		require.Equal(t, "restored", cur.AccessToken)
		require.Equal(t, 1, gw.callCount("get_session"))
		require.Equal(t, []Event{EventInitialSession}, rec.events())
	})

	t.Run("probe failure resolves to no session", func(t *testing.T) {
		t.Parallel()
		gw := newFakeGateway()
		gw.getSession = func(context.Context) (*Session, error) {
			return nil, NewError(KindProviderUnavailable, errors.New("dial tcp: connection refused"))
		}

		store, _ := newTestCore(gw)
		store.Init(context.Background())

		require.False(t, store.IsLoading())
		_, ok := store.Current()
		require.False(t, ok)
	})
}

func TestStoreInitialNotificationSeesLoadingDone(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	store, _ := newTestCore(gw)

	var loading []bool
	store.Subscribe(func(Change) { loading = append(loading, store.IsLoading()) })
	store.Init(context.Background())

	require.Equal(t, []bool{false}, loading)
}

func TestStoreInitDefersToTransitionsDuringProbe(t *testing.T) {
	t.Parallel()

	t.Run("sign in wins over an empty probe", func(t *testing.T) {
		t.Parallel()
		gw := newFakeGateway()
		probing := make(chan struct{})
		release := make(chan struct{})
		gw.getSession = func(context.Context) (*Session, error) {
			close(probing)
			<-release
			return nil, nil
		}

		store, ops := newTestCore(gw)
		rec := &recorder{}
		store.Subscribe(rec.record)

		done := make(chan struct{})
		go func() {
			defer close(done)
			store.Init(context.Background())
		}()
		<-probing

		require.True(t, ops.SignIn(context.Background(), "a@b.com", "secret1").OK())
		require.True(t, store.IsLoading())
		close(release)
		<-done

		require.False(t, store.IsLoading())
		cur, ok := store.Current()
		require.True(t, ok)
		require.Equal(t, "access", cur.AccessToken)
		require.Equal(t, []Event{EventSignedIn, EventInitialSession}, rec.events())

		rec.mu.Lock()
		last := rec.changes[len(rec.changes)-1]
		rec.mu.Unlock()
		require.NotNil(t, last.Session)
		require.Equal(t, "access", last.Session.AccessToken)
	})

	t.Run("sign out wins over a restored session", func(t *testing.T) {
		t.Parallel()
		gw := newFakeGateway()
		probing := make(chan struct{})
		release := make(chan struct{})
		restored := testSession("user-1", "restored", time.Hour)
		gw.getSession = func(context.Context) (*Session, error) {
			close(probing)
			<-release
			return &restored, nil
		}

		store, ops := newTestCore(gw)
		done := make(chan struct{})
		go func() {
			defer close(done)
			store.Init(context.Background())
		}()
		<-probing

		require.True(t, ops.SignOut(context.Background()).OK())
		close(release)
		<-done

		require.False(t, store.IsLoading())
		_, ok := store.Current()
		require.False(t, ok)
	})
}

func TestStoreSubscribeOrder(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	store, ops := newTestCore(gw)
	store.Init(context.Background())

	rec := &recorder{}
	unsubscribe := store.Subscribe(rec.record)
	ctx := context.Background()

	require.True(t, ops.SignIn(ctx, "a@b.com", "secret1").OK())
	require.True(t, ops.SignOut(ctx).OK())
	require.True(t, ops.SignIn(ctx, "a@b.com", "secret1").OK())

	require.Equal(t, []Event{EventSignedIn, EventSignedOut, EventSignedIn}, rec.events())

	unsubscribe()
	unsubscribe()
	require.True(t, ops.SignOut(ctx).OK())
	require.Len(t, rec.events(), 3)
}

func TestStoreNotifiesAfterReplacement(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	store, ops := newTestCore(gw)

	var seen []string
	store.Subscribe(func(c Change) {
		cur, ok := store.Current()
		require.True(t, ok)
		require.Equal(t, c.Session.AccessToken, cur.AccessToken)
		seen = append(seen, cur.AccessToken)
	})

	require.True(t, ops.SignIn(context.Background(), "a@b.com", "secret1").OK())
	require.Equal(t, []string{"access"}, seen)
}

func TestStoreProviderEvents(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	store, ops := newTestCore(gw)
	rec := &recorder{}
	store.Subscribe(rec.record)
	ctx := context.Background()

	require.True(t, ops.SignIn(ctx, "a@b.com", "secret1").OK())

	// Refresh for someone else's session is ignored.
	other := testSession("user-2", "other", time.Hour)
	gw.push(EventTokenRefreshed, &other)
	cur, _ := store.Current()
	require.Equal(t, "access", cur.AccessToken)

	refreshed := testSession("user-1", "refreshed", time.Hour)
	gw.push(EventTokenRefreshed, &refreshed)
	cur, _ = store.Current()
	require.Equal(t, "refreshed", cur.AccessToken)

	gw.push(EventSignedOut, nil)
	_, ok := store.Current()
	require.False(t, ok)

	// A second forced sign out has nothing to clear.
	gw.push(EventSignedOut, nil)

	require.Equal(t, []Event{EventSignedIn, EventTokenRefreshed, EventSignedOut}, rec.events())

	store.Close()
	require.Equal(t, 0, gw.listenerCount())
}

func TestStoreNoTornReads(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	store, _ := newTestCore(gw)

	a := testSession("alice", "alice-token", time.Hour)
	b := testSession("bob", "bob-token", 2*time.Hour)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	torn := make(chan string, 1)

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				cur, ok := store.Current()
				if !ok {
					continue
				}
				if !strings.HasPrefix(cur.AccessToken, cur.User.ID) || !strings.HasSuffix(cur.RefreshToken, cur.AccessToken) {
					select {
					case torn <- cur.User.ID + "/" + cur.AccessToken:
					default:
					}
				}
			}
		}()
	}

	for i := range 2000 {
		if i%2 == 0 {
			store.set(EventSignedIn, a)
		} else {
			store.set(EventSignedIn, b)
		}
	}
	close(stop)
	wg.Wait()

	select {
	case s := <-torn:
		t.Fatalf("observed torn session %s", s)
	default:
	}
}

func TestStoreMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	gw := newFakeGateway()
	store, ops := newTestCore(gw, WithMetrics(metrics))
	store.Init(context.Background())

	require.True(t, ops.SignIn(context.Background(), "a@b.com", "secret1").OK())

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.transitions.WithLabelValues(string(EventSignedIn))))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.transitions.WithLabelValues(string(EventInitialSession))))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("sign_in", "ok")))
}

func TestNewSessionRejectsPartialSessions(t *testing.T) {
	t.Parallel()

	_, err := NewSession(User{}, "a", "r", "", time.Now().Add(time.Hour))
	require.Error(t, err)

	_, err = NewSession(User{ID: "u"}, "a", "r", "", time.Time{})
	require.Error(t, err)

	s, err := NewSession(User{ID: "u"}, "a", "r", "", time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, "bearer", s.TokenType)
	require.False(t, s.Expired(time.Now()))
	require.True(t, s.Expired(time.Now().Add(2*time.Hour)))
}
