package models

import (
	"time"

	"github.com/google/uuid"
)

// Email types for the automation flows.
const (
	EmailTypeVerification         = "verification"
	EmailTypeConfirmation         = "confirmation"
	EmailTypeConfirmationReminder = "confirmation_reminder"
	EmailTypeSessionReminder24h   = "session_reminder_24h"
	EmailTypeSessionReminder1h    = "session_reminder_1h"
	EmailTypeCertificate          = "certificate"
)

// Email delivery status.
const (
	EmailLogStatusSent   = "sent"
	EmailLogStatusFailed = "failed"
)

// EmailLog records every outbound email attempt. The session reminder
// scheduler also uses it as its per-milestone dedup record.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	ConferenceSlug string     `json:"conference_slug"`
	RegistrationID *uuid.UUID `json:"registration_id,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	SentAt         time.Time  `json:"sent_at"`
}
