package authsdk

import (
	"context"
	"log/slog"
	"time"
)

// AutoRefresher periodically refreshes the current session's access token
// ahead of expiry, so that listeners registered with OnAuthStateChange see
// TOKEN_REFRESHED (or SIGNED_OUT) without a foreground call.
type AutoRefresher struct {
	Current  func() *Session
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewAutoRefresher creates a refresher that polls current every interval.
// If interval is 0 or negative, defaults to 10 seconds.
func NewAutoRefresher(current func() *Session, logger *slog.Logger, interval time.Duration) *AutoRefresher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &AutoRefresher{
		Current:  current,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Call Stop to shut it down.
func (r *AutoRefresher) Start() {
	go r.run()
	r.Logger.Debug("auto refresh started", "interval", r.Interval)
}

// Stop shuts down the worker and waits for an in-progress refresh.
func (r *AutoRefresher) Stop() {
	close(r.stopCh)
	<-r.doneCh
	r.Logger.Debug("auto refresh stopped")
}

func (r *AutoRefresher) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	r.tick()

	for {
		select {
		case <-ticker.C:
			r.tick()
		case <-r.stopCh:
			return
		}
	}
}

func (r *AutoRefresher) tick() {
	s := r.Current()
	if s == nil || s.RefreshToken() == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.Interval)
	defer cancel()

	// getValidToken is a no-op while the token is outside the refresh buffer.
	if _, err := s.getValidToken(ctx); err != nil {
		r.Logger.Warn("auto refresh failed", "err", err)
	}
}
