// Package checkins validates and records attendance from QR scans and manual
// admin actions, enforcing one check-in per (registration, session) pair.
package checkins

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/confera/backend/internal/models"
	"github.com/confera/backend/pkg/qr"
	"github.com/confera/backend/pkg/queue"
)

var (
	// ErrSessionMismatch is returned when a scanned code belongs to a
	// different conference or session than the one selected for scanning.
	ErrSessionMismatch = errors.New("qr code does not match the selected session")
	// ErrNotConfirmed is returned when the registration has not been
	// confirmed yet.
	ErrNotConfirmed = errors.New("registration not confirmed")
)

// RegistrationStore is the registration persistence used by the engine.
type RegistrationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	GetBySessionAndEmail(ctx context.Context, slug, sessionID, email string) (*models.Registration, error)
	MarkCheckedIn(ctx context.Context, id uuid.UUID) error
	MarkCertificateSent(ctx context.Context, id uuid.UUID) error
}

// Store is the check-in persistence used by the engine.
type Store interface {
	Create(ctx context.Context, ci *models.CheckIn) error
	Exists(ctx context.Context, registrationID uuid.UUID, sessionID string) (bool, error)
}

// SessionSource provides read access to conference content.
type SessionSource interface {
	Conference(slug string) (*models.Conference, error)
	SessionByID(slug, id string) (*models.Session, error)
}

// CertificateIssuer renders a CME attendance certificate PDF.
type CertificateIssuer interface {
	Generate(name, conferenceName string) ([]byte, error)
}

// CertificateMailer delivers the certificate. Best-effort.
type CertificateMailer interface {
	SendCertificate(ctx context.Context, conf *models.Conference, email, fullName string, pdf []byte) bool
}

// Broadcaster pushes check-in events to the live admin feed.
type Broadcaster interface {
	Broadcast(conferenceSlug, event string, payload any)
}

// BulkResult counts per-row outcomes of a bulk manual check-in.
type BulkResult struct {
	SuccessCount int `json:"success_count"`
	FailCount    int `json:"fail_count"`
}

// Engine applies the check-in state rule for both entry points.
type Engine struct {
	regs     RegistrationStore
	checkIns Store
	sessions SessionSource
	certs    CertificateIssuer
	mailer   CertificateMailer
	tasks    *queue.Queue
	feed     Broadcaster
	now      func() time.Time
	logger   *zap.Logger
}

// NewEngine creates a check-in engine. feed may be nil.
func NewEngine(regs RegistrationStore, checkIns Store, sessions SessionSource,
	certs CertificateIssuer, mailer CertificateMailer, tasks *queue.Queue,
	feed Broadcaster, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		regs:     regs,
		checkIns: checkIns,
		sessions: sessions,
		certs:    certs,
		mailer:   mailer,
		tasks:    tasks,
		feed:     feed,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock overrides the engine clock. Used by tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// CheckInQR records attendance from a scanned QR payload against the session
// currently selected at the scanning station.
func (e *Engine) CheckInQR(ctx context.Context, qrData, sessionID string) (*models.CheckIn, error) {
	payload, err := qr.ParsePayload(qrData)
	if err != nil {
		return nil, err
	}
	// A valid code for another session or conference must not check in here.
	if payload.SessionID != sessionID {
		return nil, ErrSessionMismatch
	}
	if _, err := e.sessions.SessionByID(payload.ConferenceSlug, sessionID); err != nil {
		return nil, ErrSessionMismatch
	}

	reg, err := e.regs.GetBySessionAndEmail(ctx, payload.ConferenceSlug, sessionID, payload.Email)
	if err != nil {
		return nil, err
	}
	return e.create(ctx, reg, models.CheckInMethodQR)
}

// CheckInManual records attendance for a registration id (admin desk path).
func (e *Engine) CheckInManual(ctx context.Context, registrationID uuid.UUID) (*models.CheckIn, error) {
	reg, err := e.regs.GetByID(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	return e.create(ctx, reg, models.CheckInMethodManual)
}

// CheckInBulk iterates registration ids against one target session. Rows
// fail independently; one failure never aborts the batch.
func (e *Engine) CheckInBulk(ctx context.Context, registrationIDs []uuid.UUID, sessionID string) BulkResult {
	var res BulkResult
	for _, id := range registrationIDs {
		reg, err := e.regs.GetByID(ctx, id)
		if err != nil || reg.SessionID != sessionID {
			if err != nil {
				e.logger.Warn("bulk check-in: registration lookup failed", zap.String("registration_id", id.String()), zap.Error(err))
			} else {
				e.logger.Warn("bulk check-in: registration not in target session",
					zap.String("registration_id", id.String()), zap.String("session_id", sessionID))
			}
			res.FailCount++
			continue
		}
		if _, err := e.create(ctx, reg, models.CheckInMethodManual); err != nil {
			e.logger.Warn("bulk check-in failed", zap.String("registration_id", id.String()), zap.Error(err))
			res.FailCount++
			continue
		}
		res.SuccessCount++
	}
	return res
}

// create applies the one state rule shared by every entry point: the pair
// must not be checked in already and the registration must be confirmed.
func (e *Engine) create(ctx context.Context, reg *models.Registration, method string) (*models.CheckIn, error) {
	if reg.Status == models.StatusPending {
		return nil, ErrNotConfirmed
	}
	if exists, err := e.checkIns.Exists(ctx, reg.ID, reg.SessionID); err != nil {
		return nil, fmt.Errorf("check-in lookup: %w", err)
	} else if exists {
		return nil, ErrAlreadyCheckedIn
	}

	ci := &models.CheckIn{
		RegistrationID: reg.ID,
		SessionID:      reg.SessionID,
		Method:         method,
		CheckedInAt:    e.now(),
	}
	// The insert is the authoritative guard; a concurrent scan loses here.
	if err := e.checkIns.Create(ctx, ci); err != nil {
		return nil, err
	}
	if err := e.regs.MarkCheckedIn(ctx, reg.ID); err != nil {
		e.logger.Error("status transition to checked-in failed", zap.String("registration_id", reg.ID.String()), zap.Error(err))
	}

	if e.feed != nil {
		e.feed.Broadcast(reg.ConferenceSlug, "check_in", checkInEvent{
			RegistrationID: reg.ID,
			SessionID:      reg.SessionID,
			FullName:       reg.FullName,
			Method:         method,
			CheckedInAt:    ci.CheckedInAt,
		})
	}

	if reg.CMECertificateRequested && !reg.ConferenceCertificateSent {
		e.queueCertificate(reg)
	}
	return ci, nil
}

type checkInEvent struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	SessionID      string    `json:"session_id"`
	FullName       string    `json:"full_name"`
	Method         string    `json:"method"`
	CheckedInAt    time.Time `json:"checked_in_at"`
}

// queueCertificate defers PDF generation and the email send to the
// background queue so the scan response returns immediately. The sent flag
// guarantees at most one certificate email per registration.
func (e *Engine) queueCertificate(reg *models.Registration) {
	slug, regID := reg.ConferenceSlug, reg.ID
	name, email := reg.FullName, reg.Email
	e.tasks.Enqueue("cme-certificate", func(ctx context.Context) error {
		conf, err := e.sessions.Conference(slug)
		if err != nil {
			return fmt.Errorf("load conference: %w", err)
		}
		pdf, err := e.certs.Generate(name, conf.Name)
		if err != nil {
			return fmt.Errorf("generate certificate: %w", err)
		}
		if !e.mailer.SendCertificate(ctx, conf, email, name, pdf) {
			return fmt.Errorf("certificate email to %s not delivered", email)
		}
		if err := e.regs.MarkCertificateSent(ctx, regID); err != nil {
			return fmt.Errorf("mark certificate sent: %w", err)
		}
		return nil
	})
}
