package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/confera/backend/internal/models"
)

// Reminder milestones. Windows are wider than the sweep interval so a
// skipped tick cannot lose a milestone; the email log dedups the overlap.
var milestones = []struct {
	emailType string
	lead      time.Duration
	slack     time.Duration
}{
	{models.EmailTypeSessionReminder24h, 24 * time.Hour, time.Hour},
	{models.EmailTypeSessionReminder1h, time.Hour, time.Minute},
}

// ConfirmedLister returns the recipients of session reminders.
type ConfirmedLister interface {
	ListConfirmedBySession(ctx context.Context, slug, sessionID string) ([]models.Registration, error)
}

// DedupStore answers whether a reminder milestone was already delivered.
type DedupStore interface {
	HasEmailOfType(ctx context.Context, registrationID uuid.UUID, emailType string) (bool, error)
}

// SessionMailer sends session reminder emails. Best-effort; the mailer
// records successful sends in the email log, which is what dedups us.
type SessionMailer interface {
	SendSessionReminder(ctx context.Context, conf *models.Conference, reg *models.Registration, sess *models.Session, emailType string) bool
}

// SessionSweeper mails the 24-hour and 1-hour reminders for upcoming
// sessions, at most once per registration and milestone.
type SessionSweeper struct {
	content ContentSource
	regs    ConfirmedLister
	dedup   DedupStore
	mailer  SessionMailer
	every   time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewSessionSweeper creates the session reminder sweep job.
func NewSessionSweeper(content ContentSource, regs ConfirmedLister, dedup DedupStore,
	mailer SessionMailer, every time.Duration, logger *zap.Logger) *SessionSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionSweeper{
		content: content,
		regs:    regs,
		dedup:   dedup,
		mailer:  mailer,
		every:   every,
		now:     time.Now,
		logger:  logger,
	}
}

// WithClock overrides the sweep clock. Used by tests.
func (s *SessionSweeper) WithClock(now func() time.Time) *SessionSweeper {
	s.now = now
	return s
}

// Run sweeps on a fixed interval until ctx is cancelled. Call in a goroutine.
func (s *SessionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over every session of every active conference.
func (s *SessionSweeper) Sweep(ctx context.Context) {
	confs, err := s.content.ActiveConferences()
	if err != nil {
		s.logger.Error("session sweep: list conferences failed", zap.Error(err))
		return
	}
	now := s.now()
	for i := range confs {
		conf := &confs[i]
		for j := range conf.Sessions {
			sess := &conf.Sessions[j]
			for _, m := range milestones {
				if !inWindow(sess.StartTime, now, m.lead, m.slack) {
					continue
				}
				s.remind(ctx, conf, sess, m.emailType)
			}
		}
	}
}

// inWindow reports whether the session starts lead from now, give or take
// slack. Sessions already started never match.
func inWindow(start, now time.Time, lead, slack time.Duration) bool {
	until := start.Sub(now)
	return until > 0 && until >= lead-slack && until <= lead+slack
}

func (s *SessionSweeper) remind(ctx context.Context, conf *models.Conference, sess *models.Session, emailType string) {
	regs, err := s.regs.ListConfirmedBySession(ctx, conf.Slug, sess.ID)
	if err != nil {
		s.logger.Error("session sweep: list registrations failed",
			zap.String("conference", conf.Slug), zap.String("session_id", sess.ID), zap.Error(err))
		return
	}
	for i := range regs {
		reg := &regs[i]
		sent, err := s.dedup.HasEmailOfType(ctx, reg.ID, emailType)
		if err != nil {
			s.logger.Error("session sweep: dedup lookup failed",
				zap.String("registration_id", reg.ID.String()), zap.Error(err))
			continue
		}
		if sent {
			continue
		}
		s.mailer.SendSessionReminder(ctx, conf, reg, sess, emailType)
	}
}
