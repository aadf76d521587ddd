package authsdk

import "slices"

// EventType names an out-of-band session change.
type EventType string

const (
	// EventTokenRefreshed is emitted after a background or on-demand refresh
	// rotated the session's tokens.
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"

	// EventSignedOut is emitted when the provider rejected the refresh
	// token and the session was dropped.
	EventSignedOut EventType = "SIGNED_OUT"
)

// Event is delivered to OnAuthStateChange listeners. For EventSignedOut,
// Session is the session that was dropped and holds no tokens.
type Event struct {
	Type    EventType
	Session *Session
}

// OnAuthStateChange registers fn for out-of-band session events. The
// returned function removes the listener and may be called more than once.
func (c *SDKClient) OnAuthStateChange(fn func(Event)) (unsubscribe func()) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	if c.listeners == nil {
		c.listeners = make(map[int]func(Event))
	}
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn

	return func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *SDKClient) emit(ev Event) {
	c.listenersMu.RLock()
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	fns := make([]func(Event), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, c.listeners[id])
	}
	c.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
