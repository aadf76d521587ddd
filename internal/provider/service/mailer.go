package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/aussiebroadwan/authclient/internal/provider/domain"
)

// Mailer delivers confirmation and recovery links.
type Mailer interface {
	Send(ctx context.Context, m domain.Mail) error
}

const outboxCapacity = 1000

// Outbox is the development Mailer: it logs every message and keeps the
// most recent ones in memory for GET /_dev/outbox.
type Outbox struct {
	mu     sync.Mutex
	mails  []domain.Mail
	logger *slog.Logger
}

func NewOutbox(logger *slog.Logger) *Outbox {
	return &Outbox{logger: logger}
}

func (o *Outbox) Send(ctx context.Context, m domain.Mail) error {
	m.To = strings.ToLower(m.To)

	o.mu.Lock()
	o.mails = append(o.mails, m)
	if len(o.mails) > outboxCapacity {
		o.mails = o.mails[len(o.mails)-outboxCapacity:]
	}
	o.mu.Unlock()

	o.logger.InfoContext(ctx, "mail queued", "to", m.To, "kind", m.Kind)
	o.logger.DebugContext(ctx, "mail link", "to", m.To, "link", m.Link)
	return nil
}

// List returns the messages sent to email, oldest first. An empty email
// lists everything.
func (o *Outbox) List(email string) []domain.Mail {
	email = strings.ToLower(strings.TrimSpace(email))

	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]domain.Mail, 0, len(o.mails))
	for _, m := range o.mails {
		if email == "" || m.To == email {
			out = append(out, m)
		}
	}
	return out
}

// Latest returns the newest message of kind sent to email.
func (o *Outbox) Latest(email, kind string) (domain.Mail, bool) {
	mails := o.List(email)
	for i := len(mails) - 1; i >= 0; i-- {
		if mails[i].Kind == kind {
			return mails[i], true
		}
	}
	return domain.Mail{}, false
}
