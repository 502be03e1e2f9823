package registrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/confera/backend/internal/models"
)

var (
	// ErrDuplicate is returned when an (email, session) pair already holds a
	// registration within the conference.
	ErrDuplicate = errors.New("duplicate registration")
	// ErrNotFound is returned when a registration does not exist.
	ErrNotFound = errors.New("registration not found")
)

const regColumns = `id, conference_slug, session_id, full_name, email, phone, organization, position, role,
	cme_certificate_requested, status, qr_code, confirmation_token, confirmation_token_expires,
	reminder_count, last_reminder_sent_at, conference_certificate_sent, registered_at`

// Repository handles registration persistence and queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	err := row.Scan(&reg.ID, &reg.ConferenceSlug, &reg.SessionID, &reg.FullName, &reg.Email, &reg.Phone,
		&reg.Organization, &reg.Position, &reg.Role, &reg.CMECertificateRequested, &reg.Status, &reg.QRCode,
		&reg.ConfirmationToken, &reg.ConfirmationTokenExpires, &reg.ReminderCount, &reg.LastReminderSentAt,
		&reg.ConferenceCertificateSent, &reg.RegisteredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &reg, nil
}

func collectRegistrations(rows pgx.Rows) ([]models.Registration, error) {
	defer rows.Close()
	var list []models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *reg)
	}
	return list, rows.Err()
}

// CreateBatch inserts all rows of one batch registration in a single
// transaction. The (conference, session, email) pair is re-checked per row
// inside the transaction; any collision aborts the whole batch and returns
// ErrDuplicate. This is the authoritative duplicate guard.
func (r *Repository) CreateBatch(ctx context.Context, regs []*models.Registration) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, reg := range regs {
		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM registrations WHERE conference_slug = $1 AND session_id = $2 AND email = $3)`,
			reg.ConferenceSlug, reg.SessionID, reg.Email,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("duplicate check: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: session %s for %s", ErrDuplicate, reg.SessionID, reg.Email)
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO registrations (id, conference_slug, session_id, full_name, email, phone, organization, position, role,
				cme_certificate_requested, status, qr_code, confirmation_token, confirmation_token_expires, registered_at)
			VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id, registered_at`,
			reg.ConferenceSlug, reg.SessionID, reg.FullName, reg.Email, reg.Phone, reg.Organization, reg.Position,
			reg.Role, reg.CMECertificateRequested, reg.Status, reg.QRCode, reg.ConfirmationToken, reg.ConfirmationTokenExpires,
			reg.RegisteredAt,
		).Scan(&reg.ID, &reg.RegisteredAt)
		if err != nil {
			// A concurrent batch can slip past the EXISTS check; the unique
			// constraint closes the race and the caller sees a conflict.
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: session %s for %s", ErrDuplicate, reg.SessionID, reg.Email)
			}
			return fmt.Errorf("insert registration: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Create inserts a single registration (admin direct-add path).
func (r *Repository) Create(ctx context.Context, reg *models.Registration) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO registrations (id, conference_slug, session_id, full_name, email, phone, organization, position, role,
			cme_certificate_requested, status, qr_code, registered_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, registered_at`,
		reg.ConferenceSlug, reg.SessionID, reg.FullName, reg.Email, reg.Phone, reg.Organization, reg.Position,
		reg.Role, reg.CMECertificateRequested, reg.Status, reg.QRCode, reg.RegisteredAt,
	).Scan(&reg.ID, &reg.RegisteredAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: session %s for %s", ErrDuplicate, reg.SessionID, reg.Email)
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

// GetByID returns one registration.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	return scanRegistration(r.pool.QueryRow(ctx,
		`SELECT `+regColumns+` FROM registrations WHERE id = $1`, id))
}

// GetBySessionAndEmail returns the registration for one (session, email)
// pair within a conference.
func (r *Repository) GetBySessionAndEmail(ctx context.Context, slug, sessionID, email string) (*models.Registration, error) {
	return scanRegistration(r.pool.QueryRow(ctx,
		`SELECT `+regColumns+` FROM registrations WHERE conference_slug = $1 AND session_id = $2 AND email = $3`,
		slug, sessionID, email))
}

// ListByConferenceAndEmail returns every registration an email holds within a
// conference, oldest first.
func (r *Repository) ListByConferenceAndEmail(ctx context.Context, slug, email string) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+regColumns+` FROM registrations WHERE conference_slug = $1 AND email = $2 ORDER BY registered_at`,
		slug, email)
	if err != nil {
		return nil, err
	}
	return collectRegistrations(rows)
}

// ListByToken returns all rows sharing a confirmation token.
func (r *Repository) ListByToken(ctx context.Context, token string) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+regColumns+` FROM registrations WHERE confirmation_token = $1 ORDER BY registered_at`, token)
	if err != nil {
		return nil, err
	}
	return collectRegistrations(rows)
}

// ConfirmByToken transitions every still-pending, unexpired row holding the
// token to confirmed and clears the token columns, returning the rows it
// touched. Zero rows means the token is invalid, expired, or already spent;
// the predicate only matches pending rows so replays are safe no-ops.
func (r *Repository) ConfirmByToken(ctx context.Context, token string, now time.Time) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx,
		`UPDATE registrations
		SET status = $1, confirmation_token = NULL, confirmation_token_expires = NULL
		WHERE confirmation_token = $2 AND status = $3 AND confirmation_token_expires > $4
		RETURNING `+regColumns,
		models.StatusConfirmed, token, models.StatusPending, now)
	if err != nil {
		return nil, err
	}
	return collectRegistrations(rows)
}

// Search returns registrations of a conference filtered by an optional
// name/email substring, session and status, newest first.
func (r *Repository) Search(ctx context.Context, slug, query, sessionID, status string, limit, offset int) ([]models.Registration, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT ` + regColumns + ` FROM registrations WHERE conference_slug = $1`
	args := []any{slug}
	if query != "" {
		args = append(args, "%"+query+"%")
		q += fmt.Sprintf(` AND (full_name ILIKE $%d OR email ILIKE $%d)`, len(args), len(args))
	}
	if sessionID != "" {
		args = append(args, sessionID)
		q += fmt.Sprintf(` AND session_id = $%d`, len(args))
	}
	if status != "" {
		args = append(args, status)
		q += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	args = append(args, limit, offset)
	q += fmt.Sprintf(` ORDER BY registered_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectRegistrations(rows)
}

// CountBySession returns the number of registrations held against a session.
func (r *Repository) CountBySession(ctx context.Context, slug, sessionID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE conference_slug = $1 AND session_id = $2`,
		slug, sessionID).Scan(&n)
	return n, err
}

// SessionCounts is the per-session status breakdown for admin stats.
type SessionCounts struct {
	SessionID string `json:"session_id"`
	Total     int    `json:"total"`
	Confirmed int    `json:"confirmed"`
	CheckedIn int    `json:"checked_in"`
}

// CountsByConference returns per-session totals for a conference.
func (r *Repository) CountsByConference(ctx context.Context, slug string) ([]SessionCounts, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id,
			COUNT(*),
			COUNT(*) FILTER (WHERE status IN ($2, $3)),
			COUNT(*) FILTER (WHERE status = $3)
		FROM registrations WHERE conference_slug = $1
		GROUP BY session_id ORDER BY session_id`,
		slug, models.StatusConfirmed, models.StatusCheckedIn)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []SessionCounts
	for rows.Next() {
		var c SessionCounts
		if err := rows.Scan(&c.SessionID, &c.Total, &c.Confirmed, &c.CheckedIn); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// ReminderDue returns pending rows of a conference eligible for a
// confirmation reminder: token still valid, reminder budget left, and no
// reminder within the interval.
func (r *Repository) ReminderDue(ctx context.Context, slug string, now time.Time, maxReminders int, interval time.Duration) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+regColumns+` FROM registrations
		WHERE conference_slug = $1 AND status = $2
			AND confirmation_token_expires > $3
			AND reminder_count < $4
			AND (last_reminder_sent_at IS NULL OR last_reminder_sent_at < $5)
		ORDER BY registered_at`,
		slug, models.StatusPending, now, maxReminders, now.Add(-interval))
	if err != nil {
		return nil, err
	}
	return collectRegistrations(rows)
}

// CancellationDue returns pending rows past the cancellation threshold whose
// reminder budget is exhausted. These are purged, not reminded again.
func (r *Repository) CancellationDue(ctx context.Context, slug string, now time.Time, threshold time.Duration, maxReminders int) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+regColumns+` FROM registrations
		WHERE conference_slug = $1 AND status = $2
			AND registered_at < $3
			AND reminder_count >= $4
		ORDER BY registered_at`,
		slug, models.StatusPending, now.Add(-threshold), maxReminders)
	if err != nil {
		return nil, err
	}
	return collectRegistrations(rows)
}

// MarkReminded increments the reminder count and stamps the send time.
func (r *Repository) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE registrations SET reminder_count = reminder_count + 1, last_reminder_sent_at = $2 WHERE id = $1`,
		id, at)
	return err
}

// MarkCheckedIn transitions a confirmed registration to checked-in.
func (r *Repository) MarkCheckedIn(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE registrations SET status = $2 WHERE id = $1 AND status = $3`,
		id, models.StatusCheckedIn, models.StatusConfirmed)
	return err
}

// MarkCertificateSent flags that the one-per-conference certificate email
// has gone out.
func (r *Repository) MarkCertificateSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE registrations SET conference_certificate_sent = TRUE WHERE id = $1`, id)
	return err
}

// Delete removes a registration (admin action or cancellation sweep).
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListConfirmedBySession returns confirmed registrants of a session (session
// reminder audience).
func (r *Repository) ListConfirmedBySession(ctx context.Context, slug, sessionID string) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+regColumns+` FROM registrations
		WHERE conference_slug = $1 AND session_id = $2 AND status = $3 ORDER BY registered_at`,
		slug, sessionID, models.StatusConfirmed)
	if err != nil {
		return nil, err
	}
	return collectRegistrations(rows)
}
