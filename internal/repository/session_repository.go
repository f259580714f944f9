package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nianhua/banquet-reservation/internal/model"
)

// SessionRepo provides read access to session templates.  Templates
// are configuration data for the booking engine: it resolves them by
// type or id and never writes them.  All timestamp columns are
// assumed to be stored in UTC.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo returns a SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

const sessionColumns = `id, theme_id, session_type, session_name,
	front_capacity, middle_capacity, back_capacity, total_seats,
	makeup_stock, photography_stock, start_time, end_time, status,
	created_at, updated_at`

func scanSessionTemplate(row *sql.Row) (*model.SessionTemplate, error) {
	var s model.SessionTemplate
	var status int
	err := row.Scan(
		&s.ID, &s.ThemeID, &s.SessionType, &s.SessionName,
		&s.FrontCapacity, &s.MiddleCapacity, &s.BackCapacity, &s.TotalSeats,
		&s.MakeupStock, &s.PhotographyStock, &s.StartTime, &s.EndTime, &status,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Active = status == 1
	return &s, nil
}

// GetByType returns the active, non-deleted session template for the
// given session type.  There is at most one template per type; an
// inactive or missing template yields ErrSessionNotFound.
func (r *SessionRepo) GetByType(ctx context.Context, t model.SessionType) (*model.SessionTemplate, error) {
	const q = `SELECT ` + sessionColumns + `
	           FROM sessions
	           WHERE session_type = ? AND status = 1 AND is_deleted = 0`
	s, err := scanSessionTemplate(r.db.QueryRowContext(ctx, q, string(t)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByID returns one session template regardless of its active
// flag.  Used by read paths that resolve templates referenced from
// persisted bookings.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (*model.SessionTemplate, error) {
	const q = `SELECT ` + sessionColumns + `
	           FROM sessions
	           WHERE id = ? AND is_deleted = 0`
	s, err := scanSessionTemplate(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
