package mailer

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/confera/backend/internal/models"
)

// Repository persists the outbound email log. Beyond auditing, the session
// reminder scheduler reads it back as its per-milestone dedup record.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts one log row.
func (r *Repository) Record(ctx context.Context, log *models.EmailLog) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO email_logs (id, conference_slug, registration_id, email_type, recipient_email, subject, status, error_message, sent_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, sent_at`,
		log.ConferenceSlug, log.RegistrationID, log.EmailType, log.RecipientEmail,
		log.Subject, log.Status, log.ErrorMessage,
	).Scan(&log.ID, &log.SentAt)
}

// HasEmailOfType reports whether a registration already received a sent
// email of the given type.
func (r *Repository) HasEmailOfType(ctx context.Context, registrationID uuid.UUID, emailType string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM email_logs
			WHERE registration_id = $1 AND email_type = $2 AND status = $3
		)`, registrationID, emailType, models.EmailLogStatusSent).Scan(&exists)
	return exists, err
}

// ListByConference returns recent log rows of a conference, newest first.
func (r *Repository) ListByConference(ctx context.Context, slug string, limit, offset int) ([]models.EmailLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, conference_slug, registration_id, email_type, recipient_email, subject, status, error_message, sent_at
		FROM email_logs WHERE conference_slug = $1
		ORDER BY sent_at DESC LIMIT $2 OFFSET $3`, slug, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.EmailLog
	for rows.Next() {
		var l models.EmailLog
		if err := rows.Scan(&l.ID, &l.ConferenceSlug, &l.RegistrationID, &l.EmailType,
			&l.RecipientEmail, &l.Subject, &l.Status, &l.ErrorMessage, &l.SentAt); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}
