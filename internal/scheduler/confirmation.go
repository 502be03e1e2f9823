// Package scheduler runs the periodic email automation sweeps. Each sweep is
// a single pass over active conferences; rows fail independently so one bad
// registration never stalls the rest.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/confera/backend/config"
	"github.com/confera/backend/internal/models"
)

// ContentSource provides the conferences to sweep.
type ContentSource interface {
	ActiveConferences() ([]models.Conference, error)
}

// PendingStore is the registration persistence used by the confirmation sweep.
type PendingStore interface {
	ReminderDue(ctx context.Context, slug string, now time.Time, maxReminders int, interval time.Duration) ([]models.Registration, error)
	CancellationDue(ctx context.Context, slug string, now time.Time, threshold time.Duration, maxReminders int) ([]models.Registration, error)
	MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ReminderMailer sends confirmation reminder emails. Best-effort.
type ReminderMailer interface {
	SendConfirmationReminder(ctx context.Context, conf *models.Conference, reg *models.Registration) bool
}

// ConfirmationSweeper nudges pending registrations toward confirmation and
// releases the ones that exhausted their reminder budget.
type ConfirmationSweeper struct {
	content ContentSource
	regs    PendingStore
	mailer  ReminderMailer
	policy  config.RegistrationConfig
	every   time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewConfirmationSweeper creates the confirmation sweep job.
func NewConfirmationSweeper(content ContentSource, regs PendingStore, mailer ReminderMailer,
	policy config.RegistrationConfig, every time.Duration, logger *zap.Logger) *ConfirmationSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfirmationSweeper{
		content: content,
		regs:    regs,
		mailer:  mailer,
		policy:  policy,
		every:   every,
		now:     time.Now,
		logger:  logger,
	}
}

// WithClock overrides the sweep clock. Used by tests.
func (s *ConfirmationSweeper) WithClock(now func() time.Time) *ConfirmationSweeper {
	s.now = now
	return s
}

// Run sweeps on a fixed interval until ctx is cancelled. Call in a goroutine.
func (s *ConfirmationSweeper) Run(ctx context.Context) {
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

// Sweep runs one pass. Cancellations go first so a row never gets a reminder
// and a deletion in the same pass.
func (s *ConfirmationSweeper) Sweep(ctx context.Context) {
	confs, err := s.content.ActiveConferences()
	if err != nil {
		s.logger.Error("confirmation sweep: list conferences failed", zap.Error(err))
		return
	}
	now := s.now()
	for i := range confs {
		s.sweepConference(ctx, &confs[i], now)
	}
}

func (s *ConfirmationSweeper) sweepConference(ctx context.Context, conf *models.Conference, now time.Time) {
	expired, err := s.regs.CancellationDue(ctx, conf.Slug, now, s.policy.CancellationThreshold, s.policy.MaxReminders)
	if err != nil {
		s.logger.Error("confirmation sweep: cancellation query failed",
			zap.String("conference", conf.Slug), zap.Error(err))
	}
	for _, reg := range expired {
		if err := s.regs.Delete(ctx, reg.ID); err != nil {
			s.logger.Error("confirmation sweep: release failed",
				zap.String("registration_id", reg.ID.String()), zap.Error(err))
			continue
		}
		s.logger.Info("unconfirmed registration released",
			zap.String("conference", conf.Slug),
			zap.String("session_id", reg.SessionID),
			zap.String("email", reg.Email))
	}

	due, err := s.regs.ReminderDue(ctx, conf.Slug, now, s.policy.MaxReminders, s.policy.ReminderInterval)
	if err != nil {
		s.logger.Error("confirmation sweep: reminder query failed",
			zap.String("conference", conf.Slug), zap.Error(err))
		return
	}
	for i := range due {
		reg := &due[i]
		if !s.mailer.SendConfirmationReminder(ctx, conf, reg) {
			continue // no send, no budget spent; retried next pass
		}
		if err := s.regs.MarkReminded(ctx, reg.ID, now); err != nil {
			s.logger.Error("confirmation sweep: mark reminded failed",
				zap.String("registration_id", reg.ID.String()), zap.Error(err))
		}
	}
}
