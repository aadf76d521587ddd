package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/authclient/internal/provider/store"
)

// unverifiedFactorTTL bounds how long an abandoned enrollment lingers.
const unverifiedFactorTTL = 24 * time.Hour

// HousekeepingService periodically deletes expired rows so refresh tokens,
// challenges, links and idle sessions do not grow without bound.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService defaults a non-positive interval to one hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs cleanup immediately and then every Interval until Stop.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until any in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background(), time.Now())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background(), time.Now())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup deletes everything that expired before now. Each step is
// independent; a failure is logged and the rest still run.
func (s *HousekeepingService) Cleanup(ctx context.Context, now time.Time) {
	steps := []struct {
		name string
		fn   func() (int64, error)
	}{
		{"refresh_tokens", func() (int64, error) { return s.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx, now) }},
		{"sessions", func() (int64, error) { return s.Store.Sessions().DeleteIdleSessions(ctx, now) }},
		{"challenges", func() (int64, error) { return s.Store.Challenges().DeleteExpiredChallenges(ctx, now) }},
		{"one_time_tokens", func() (int64, error) { return s.Store.OneTimeTokens().DeleteExpiredOneTimeTokens(ctx, now) }},
		{"unverified_factors", func() (int64, error) {
			return s.Store.Factors().DeleteUnverifiedFactorsBefore(ctx, now.Add(-unverifiedFactorTTL))
		}},
	}

	var total int64
	for _, step := range steps {
		n, err := step.fn()
		if err != nil {
			s.Logger.Error("housekeeping step failed", "step", step.name, "error", err)
			continue
		}
		s.Logger.Debug("housekeeping step done", "step", step.name, "deleted", n)
		total += n
	}

	s.Logger.Info("housekeeping cleanup completed", "deleted", total)
}
