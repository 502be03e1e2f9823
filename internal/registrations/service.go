package registrations

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/confera/backend/internal/content"
	"github.com/confera/backend/internal/models"
	"github.com/confera/backend/pkg/qr"
)

var (
	ErrSessionsNotFound = errors.New("sessions not found")
	ErrSessionsOverlap  = errors.New("sessions overlap")
	ErrSessionFull      = errors.New("session full")
	ErrNotWhitelisted   = errors.New("email not allowed to register")
	ErrTokenInvalid     = errors.New("confirmation token invalid or already used")
	ErrTokenExpired     = errors.New("confirmation token expired")
)

// BatchFailure is a structured batch-registration failure naming the
// sessions that caused it. No rows are created when it is returned.
type BatchFailure struct {
	Err            error
	FailedSessions []string
}

func (e *BatchFailure) Error() string {
	if len(e.FailedSessions) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err, strings.Join(e.FailedSessions, ", "))
}

func (e *BatchFailure) Unwrap() error { return e.Err }

// Store is the registration persistence used by the service.
type Store interface {
	CreateBatch(ctx context.Context, regs []*models.Registration) error
	Create(ctx context.Context, reg *models.Registration) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	ConfirmByToken(ctx context.Context, token string, now time.Time) ([]models.Registration, error)
	ListByToken(ctx context.Context, token string) ([]models.Registration, error)
	ListByConferenceAndEmail(ctx context.Context, slug, email string) ([]models.Registration, error)
	CountBySession(ctx context.Context, slug, sessionID string) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SessionSource provides read access to conference content.
type SessionSource interface {
	Conference(slug string) (*models.Conference, error)
	SessionByID(slug, id string) (*models.Session, error)
}

// ConfirmedItem pairs a registration with its session for the consolidated
// confirmation email.
type ConfirmedItem struct {
	Registration models.Registration
	Session      models.Session
}

// Mailer sends registration emails. Sends are best-effort: implementations
// report success as a bool and never propagate transport errors.
type Mailer interface {
	SendVerification(ctx context.Context, conf *models.Conference, email, fullName, token string, expires time.Time) bool
	SendConfirmation(ctx context.Context, conf *models.Conference, email, fullName string, items []ConfirmedItem) bool
}

// CountInvalidator drops cached per-session occupancy counts after a
// registration is created or deleted.
type CountInvalidator interface {
	InvalidateSessionCount(ctx context.Context, slug, sessionID string)
}

// BatchInput is one batch registration request: one registrant, several
// sessions, one shared confirmation token.
type BatchInput struct {
	ConferenceSlug          string
	SessionIDs              []string
	FullName                string
	Email                   string
	Phone                   string
	Organization            string
	Position                string
	Role                    string
	CMECertificateRequested bool
}

// BatchResult is the outcome of a successful batch registration.
type BatchResult struct {
	Registrations     []models.Registration
	ConfirmationToken string
}

// Service implements batch registration and the confirmation workflow.
type Service struct {
	store       Store
	sessions    SessionSource
	mailer      Mailer
	tokenTTL    time.Duration
	now         func() time.Time
	invalidator CountInvalidator
	logger      *zap.Logger
}

// NewService creates the registration service.
func NewService(store Store, sessions SessionSource, mailer Mailer, tokenTTL time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		sessions: sessions,
		mailer:   mailer,
		tokenTTL: tokenTTL,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock overrides the service clock. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithCountInvalidator wires the capacity count cache so occupancy reads
// stop serving stale counts after writes.
func (s *Service) WithCountInvalidator(inv CountInvalidator) *Service {
	s.invalidator = inv
	return s
}

func (s *Service) invalidateCount(ctx context.Context, slug, sessionID string) {
	if s.invalidator != nil {
		s.invalidator.InvalidateSessionCount(ctx, slug, sessionID)
	}
}

// RegisterBatch validates and creates all registrations of one request.
// Either every row is created or none is.
func (s *Service) RegisterBatch(ctx context.Context, in BatchInput) (*BatchResult, error) {
	if len(in.SessionIDs) == 0 {
		return nil, &BatchFailure{Err: ErrSessionsNotFound}
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	conf, err := s.sessions.Conference(in.ConferenceSlug)
	if err != nil {
		if errors.Is(err, content.ErrConferenceNotFound) {
			return nil, &BatchFailure{Err: err}
		}
		return nil, fmt.Errorf("load conference: %w", err)
	}

	if len(conf.Whitelist) > 0 && !whitelisted(conf.Whitelist, in.Email) {
		return nil, &BatchFailure{Err: ErrNotWhitelisted}
	}

	requested, missing := pickSessions(conf.Sessions, in.SessionIDs)
	if len(missing) > 0 {
		return nil, &BatchFailure{Err: ErrSessionsNotFound, FailedSessions: missing}
	}

	// Adjacent-pair check over the start-sorted list detects any pairwise
	// overlap.
	sort.Slice(requested, func(i, j int) bool { return requested[i].StartTime.Before(requested[j].StartTime) })
	for i := 0; i < len(requested)-1; i++ {
		if requested[i].EndTime.After(requested[i+1].StartTime) {
			return nil, &BatchFailure{
				Err:            ErrSessionsOverlap,
				FailedSessions: []string{requested[i].ID, requested[i+1].ID},
			}
		}
	}

	for _, sess := range requested {
		if sess.Capacity == nil {
			continue
		}
		n, err := s.store.CountBySession(ctx, in.ConferenceSlug, sess.ID)
		if err != nil {
			return nil, fmt.Errorf("count session %s: %w", sess.ID, err)
		}
		if n >= *sess.Capacity {
			return nil, &BatchFailure{Err: ErrSessionFull, FailedSessions: []string{sess.ID}}
		}
	}

	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	now := s.now()
	expires := now.Add(s.tokenTTL)

	regs := make([]*models.Registration, 0, len(requested))
	for _, sess := range requested {
		payload := qr.BuildPayload(in.ConferenceSlug, sess.ID, in.Email, now)
		code, err := qr.DataURL(payload)
		if err != nil {
			return nil, fmt.Errorf("render qr for session %s: %w", sess.ID, err)
		}
		regs = append(regs, &models.Registration{
			ConferenceSlug:           in.ConferenceSlug,
			SessionID:                sess.ID,
			FullName:                 in.FullName,
			Email:                    in.Email,
			Phone:                    in.Phone,
			Organization:             in.Organization,
			Position:                 in.Position,
			Role:                     in.Role,
			CMECertificateRequested:  in.CMECertificateRequested,
			Status:                   models.StatusPending,
			QRCode:                   code,
			ConfirmationToken:        &token,
			ConfirmationTokenExpires: &expires,
			RegisteredAt:             now,
		})
	}

	if err := s.store.CreateBatch(ctx, regs); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, &BatchFailure{Err: err, FailedSessions: in.SessionIDs}
		}
		return nil, fmt.Errorf("create batch: %w", err)
	}

	out := make([]models.Registration, len(regs))
	for i, reg := range regs {
		out[i] = *reg
		s.invalidateCount(ctx, reg.ConferenceSlug, reg.SessionID)
	}
	return &BatchResult{Registrations: out, ConfirmationToken: token}, nil
}

// SendVerificationEmail mails the confirmation link for a batch. Enqueued by
// the handler after the transaction commits; best-effort.
func (s *Service) SendVerificationEmail(ctx context.Context, slug, email, fullName, token string, expires time.Time) error {
	conf, err := s.sessions.Conference(slug)
	if err != nil {
		return fmt.Errorf("load conference: %w", err)
	}
	if !s.mailer.SendVerification(ctx, conf, email, fullName, token, expires) {
		return fmt.Errorf("verification email to %s not delivered", email)
	}
	return nil
}

// Confirm transitions every pending row holding the token to confirmed and
// sends one consolidated email with every QR code the registrant holds in
// the conference. Confirmation is final once the status write succeeds;
// email delivery is best-effort.
func (s *Service) Confirm(ctx context.Context, token string) ([]models.Registration, error) {
	now := s.now()
	confirmed, err := s.store.ConfirmByToken(ctx, token, now)
	if err != nil {
		return nil, fmt.Errorf("confirm by token: %w", err)
	}
	if len(confirmed) == 0 {
		// Distinguish expired from unknown/spent for the error page.
		held, err := s.store.ListByToken(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("inspect token: %w", err)
		}
		if len(held) > 0 {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	slug := confirmed[0].ConferenceSlug
	email := confirmed[0].Email
	conf, err := s.sessions.Conference(slug)
	if err != nil {
		s.logger.Warn("conference missing for confirmation email", zap.String("slug", slug), zap.Error(err))
		return confirmed, nil
	}

	// The consolidated email covers every registration the address holds in
	// this conference, not just the batch behind this token.
	all, err := s.store.ListByConferenceAndEmail(ctx, slug, email)
	if err != nil {
		s.logger.Warn("loading registrations for confirmation email failed", zap.String("email", email), zap.Error(err))
		return confirmed, nil
	}
	items := make([]ConfirmedItem, 0, len(all))
	for _, reg := range all {
		sess, err := s.sessions.SessionByID(slug, reg.SessionID)
		if err != nil {
			// Sessions removed from content after registration are dropped.
			continue
		}
		items = append(items, ConfirmedItem{Registration: reg, Session: *sess})
	}

	if !s.mailer.SendConfirmation(ctx, conf, email, confirmed[0].FullName, items) {
		s.logger.Warn("confirmation email not delivered", zap.String("email", email), zap.String("conference", slug))
	}
	return confirmed, nil
}

// DirectAdd creates a single already-confirmed registration (admin path).
// No confirmation token is involved.
func (s *Service) DirectAdd(ctx context.Context, in BatchInput) (*models.Registration, error) {
	if len(in.SessionIDs) != 1 {
		return nil, &BatchFailure{Err: ErrSessionsNotFound}
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	sessionID := in.SessionIDs[0]

	sess, err := s.sessions.SessionByID(in.ConferenceSlug, sessionID)
	if err != nil {
		return nil, &BatchFailure{Err: ErrSessionsNotFound, FailedSessions: []string{sessionID}}
	}
	if sess.Capacity != nil {
		n, err := s.store.CountBySession(ctx, in.ConferenceSlug, sessionID)
		if err != nil {
			return nil, fmt.Errorf("count session %s: %w", sessionID, err)
		}
		if n >= *sess.Capacity {
			return nil, &BatchFailure{Err: ErrSessionFull, FailedSessions: []string{sessionID}}
		}
	}

	now := s.now()
	code, err := qr.DataURL(qr.BuildPayload(in.ConferenceSlug, sessionID, in.Email, now))
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}
	reg := &models.Registration{
		ConferenceSlug:          in.ConferenceSlug,
		SessionID:               sessionID,
		FullName:                in.FullName,
		Email:                   in.Email,
		Phone:                   in.Phone,
		Organization:            in.Organization,
		Position:                in.Position,
		Role:                    in.Role,
		CMECertificateRequested: in.CMECertificateRequested,
		Status:                  models.StatusConfirmed,
		QRCode:                  code,
		RegisteredAt:            now,
	}
	if err := s.store.Create(ctx, reg); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, &BatchFailure{Err: err, FailedSessions: []string{sessionID}}
		}
		return nil, fmt.Errorf("create registration: %w", err)
	}
	s.invalidateCount(ctx, reg.ConferenceSlug, reg.SessionID)
	return reg, nil
}

// DeleteRegistration removes one registration and drops its cached session
// count.
func (s *Service) DeleteRegistration(ctx context.Context, id uuid.UUID) error {
	reg, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateCount(ctx, reg.ConferenceSlug, reg.SessionID)
	return nil
}

// SendConfirmationEmail mails the consolidated confirmation for one address.
// Used by the admin direct-add path through the background queue.
func (s *Service) SendConfirmationEmail(ctx context.Context, slug, email, fullName string) error {
	conf, err := s.sessions.Conference(slug)
	if err != nil {
		return fmt.Errorf("load conference: %w", err)
	}
	all, err := s.store.ListByConferenceAndEmail(ctx, slug, email)
	if err != nil {
		return fmt.Errorf("load registrations: %w", err)
	}
	items := make([]ConfirmedItem, 0, len(all))
	for _, reg := range all {
		sess, err := s.sessions.SessionByID(slug, reg.SessionID)
		if err != nil {
			continue
		}
		items = append(items, ConfirmedItem{Registration: reg, Session: *sess})
	}
	if !s.mailer.SendConfirmation(ctx, conf, email, fullName, items) {
		return fmt.Errorf("confirmation email to %s not delivered", email)
	}
	return nil
}

func pickSessions(all []models.Session, ids []string) (picked []models.Session, missing []string) {
	byID := make(map[string]models.Session, len(all))
	for _, s := range all {
		byID[s.ID] = s
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if s, ok := byID[id]; ok {
			picked = append(picked, s)
		} else {
			missing = append(missing, id)
		}
	}
	return picked, missing
}

func whitelisted(list []string, email string) bool {
	for _, w := range list {
		if strings.EqualFold(strings.TrimSpace(w), email) {
			return true
		}
	}
	return false
}

// newToken returns a 64-char hex token from 32 random bytes.
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
