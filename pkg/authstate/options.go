package authstate

import (
	"log/slog"
	"time"
)

type config struct {
	logger   *slog.Logger
	metrics  *Metrics
	messages *Messages
	now      func() time.Time
}

// Option configures a Store, Operations, Enrollment or Recovery.
type Option func(*config)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics records counters on m.
func WithMetrics(m *Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithMessages sets the language of Error.Message.
func WithMessages(m *Messages) Option {
	return func(c *config) { c.messages = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

func newConfig(opts []Option) config {
	c := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.messages == nil {
		c.messages = NewMessages()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// RedirectOption adjusts where a confirmation or recovery link lands.
type RedirectOption func(*redirect)

type redirect struct {
	to string
}

// WithRedirectTo sets the landing address for the emailed link.
func WithRedirectTo(address string) RedirectOption {
	return func(r *redirect) { r.to = address }
}

func redirectTarget(opts []RedirectOption) string {
	var r redirect
	for _, opt := range opts {
		opt(&r)
	}
	return r.to
}
