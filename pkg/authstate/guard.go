package authstate

import "sync/atomic"

// SubmitGuard is a caller-side busy flag. Operations do not serialise
// themselves; a UI surface holds a guard while its call is outstanding
// and ignores further submissions.
type SubmitGuard struct {
	busy atomic.Bool
}

// TryAcquire marks the guard busy. ok is false if it already was. release
// may be called more than once.
func (g *SubmitGuard) TryAcquire() (release func(), ok bool) {
	if !g.busy.CompareAndSwap(false, true) {
		return func() {}, false
	}
	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			g.busy.Store(false)
		}
	}, true
}

// Busy reports whether a submission is outstanding.
func (g *SubmitGuard) Busy() bool {
	return g.busy.Load()
}
