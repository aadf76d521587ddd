package authstate

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

// Store is the single owner of the current Session.
//
// Reads are lock free. Writes are serialised so that subscribers see
// transitions in the order the Session was replaced, and each notification
// is delivered after the replacement it describes. Subscribers run on the
// writer's goroutine and must not call back into Operations, Enrollment or
// Recovery synchronously.
//
// Operations that resolve while the initial probe is outstanding take effect
// immediately and take precedence over the probe's answer: Init then only
// clears the loading flag and reports the Session already held.
type Store struct {
	gw  Gateway
	cfg config

	current  atomic.Pointer[Session]
	loading  atomic.Bool
	initOnce sync.Once

	// writeMu serialises replace-and-notify. gen counts replacements.
	writeMu sync.Mutex
	gen     uint64

	subsMu  sync.Mutex
	subs    map[uint64]func(Change)
	nextSub uint64

	unsubGateway func()
}

// NewStore creates a Store in the loading state and registers it for the
// gateway's out-of-band session events. Call Init to run the initial probe
// and Close to deregister.
func NewStore(gw Gateway, opts ...Option) *Store {
	s := &Store{
		gw:   gw,
		cfg:  newConfig(opts),
		subs: make(map[uint64]func(Change)),
	}
	s.loading.Store(true)
	s.unsubGateway = gw.OnSessionChange(s.onProviderChange)
	return s
}

// Current returns the live Session, if any.
func (s *Store) Current() (Session, bool) {
	p := s.current.Load()
	if p == nil {
		return Session{}, false
	}
	return *p, true
}

// IsLoading reports whether the initial session probe is outstanding.
func (s *Store) IsLoading() bool {
	return s.loading.Load()
}

// Subscribe registers fn for every transition. The returned function
// removes it and may be called more than once.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

// Init probes the provider for an existing session. It runs once; later
// calls return immediately. A failed probe counts as "no session". The
// loading flag is already false when subscribers see EventInitialSession.
func (s *Store) Init(ctx context.Context) {
	s.initOnce.Do(func() {
		s.writeMu.Lock()
		start := s.gen
		s.writeMu.Unlock()

		sess, err := s.gw.GetSession(ctx)
		if err != nil {
			s.cfg.logger.Warn("initial session probe failed", "kind", KindOf(err), "err", err)
			sess = nil
		}

		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		next := s.current.Load()
		if s.gen == start {
			next = clone(sess)
			s.current.Store(next)
		} else {
			s.cfg.logger.Debug("session changed during initial probe, keeping it", "signed_in", next != nil)
		}
		s.gen++
		s.loading.Store(false)
		s.notifyLocked(EventInitialSession, next)
	})
}

// Close deregisters the Store from the gateway.
func (s *Store) Close() {
	if s.unsubGateway != nil {
		s.unsubGateway()
	}
}

func (s *Store) onProviderChange(ev Event, sess *Session) {
	switch ev {
	case EventSignedOut:
		s.clear()
	case EventTokenRefreshed:
		// A refresh for a session the Store no longer holds is stale.
		if sess != nil {
			s.update(ev, *sess)
		}
	default:
		if sess != nil {
			s.set(ev, *sess)
		}
	}
}

// set replaces the current Session and notifies subscribers.
func (s *Store) set(ev Event, sess Session) {
	s.replace(ev, &sess, true)
}

// update replaces the Session only while the Store still holds one for
// the same user, and reports whether it did.
func (s *Store) update(ev Event, sess Session) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.current.Load()
	if cur == nil || cur.User.ID != sess.User.ID {
		return false
	}
	s.gen++
	next := clone(&sess)
	s.current.Store(next)
	s.notifyLocked(ev, next)
	return true
}

// clear empties the Store. It reports whether a Session was removed;
// subscribers are only notified in that case.
func (s *Store) clear() bool {
	return s.replace(EventSignedOut, nil, false)
}

func (s *Store) replace(ev Event, sess *Session, always bool) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// Counted even when nothing changes, so a sign-out during the
	// initial probe still wins over a restored session.
	s.gen++

	next := clone(sess)
	prev := s.current.Swap(next)
	if !always && prev == nil && next == nil {
		return false
	}
	s.notifyLocked(ev, next)
	return true
}

// notifyLocked delivers a transition to subscribers. writeMu must be held.
func (s *Store) notifyLocked(ev Event, next *Session) {
	s.cfg.metrics.transition(ev)
	s.cfg.logger.Debug("session transition", "event", ev, "signed_in", next != nil)

	change := Change{Event: ev, At: s.cfg.now(), Session: clone(next)}
	for _, fn := range s.subscribers() {
		fn(change)
	}
}

func clone(sess *Session) *Session {
	if sess == nil {
		return nil
	}
	cp := *sess
	return &cp
}

func (s *Store) subscribers() []func(Change) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	return fns
}
