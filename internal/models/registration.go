package models

import (
	"time"

	"github.com/google/uuid"
)

// Registration status values. Transitions are forward-only:
// pending -> confirmed -> checked-in.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCheckedIn = "checked-in"
)

// Registration is one attendee row for one session. A batch call creates
// several rows sharing a single confirmation token.
type Registration struct {
	ID                        uuid.UUID  `json:"id"`
	ConferenceSlug            string     `json:"conference_slug"`
	SessionID                 string     `json:"session_id"`
	FullName                  string     `json:"full_name"`
	Email                     string     `json:"email"`
	Phone                     string     `json:"phone"`
	Organization              string     `json:"organization,omitempty"`
	Position                  string     `json:"position,omitempty"`
	Role                      string     `json:"role"`
	CMECertificateRequested   bool       `json:"cme_certificate_requested"`
	Status                    string     `json:"status"`
	QRCode                    string     `json:"qr_code"` // PNG data URL, generated once at creation
	ConfirmationToken         *string    `json:"-"`
	ConfirmationTokenExpires  *time.Time `json:"-"`
	ReminderCount             int        `json:"reminder_count"`
	LastReminderSentAt        *time.Time `json:"last_reminder_sent_at,omitempty"`
	ConferenceCertificateSent bool       `json:"conference_certificate_sent"`
	RegisteredAt              time.Time  `json:"registered_at"`
}

// Check-in method values.
const (
	CheckInMethodQR     = "qr"
	CheckInMethodManual = "manual"
)

// CheckIn records attendance. At most one row per (registration, session);
// creating one is the sole driver of Registration.Status -> checked-in.
type CheckIn struct {
	ID             uuid.UUID `json:"id"`
	RegistrationID uuid.UUID `json:"registration_id"`
	SessionID      string    `json:"session_id"`
	Method         string    `json:"method"`
	CheckedInAt    time.Time `json:"checked_in_at"`
}
