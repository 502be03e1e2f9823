package checkins

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/confera/backend/internal/models"
)

// ErrAlreadyCheckedIn is returned when a (registration, session) pair
// already holds a check-in row.
var ErrAlreadyCheckedIn = errors.New("already checked in")

// Repository handles check-in persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a check-ins repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a check-in row. The unique (registration, session)
// constraint is the authoritative at-most-once guard.
func (r *Repository) Create(ctx context.Context, ci *models.CheckIn) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO check_ins (id, registration_id, session_id, method, checked_in_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, checked_in_at`,
		ci.RegistrationID, ci.SessionID, ci.Method, ci.CheckedInAt,
	).Scan(&ci.ID, &ci.CheckedInAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyCheckedIn
		}
		return err
	}
	return nil
}

// Exists reports whether a check-in row exists for the pair.
func (r *Repository) Exists(ctx context.Context, registrationID uuid.UUID, sessionID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM check_ins WHERE registration_id = $1 AND session_id = $2)`,
		registrationID, sessionID).Scan(&exists)
	return exists, err
}

// ListBySession returns check-ins of one session, newest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]models.CheckIn, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, registration_id, session_id, method, checked_in_at
		FROM check_ins WHERE session_id = $1 ORDER BY checked_in_at DESC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.CheckIn
	for rows.Next() {
		var ci models.CheckIn
		if err := rows.Scan(&ci.ID, &ci.RegistrationID, &ci.SessionID, &ci.Method, &ci.CheckedInAt); err != nil {
			return nil, err
		}
		list = append(list, ci)
	}
	return list, rows.Err()
}
