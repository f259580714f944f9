package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/nianhua/banquet-reservation/internal/model"
)

// SeatRepo provides read access to seat template rows.  Seats belong
// to a session template and are reused across dates; the booking
// engine never mutates them (per-date occupancy is derived from
// booking rows, see BookingRepo.BookedSeatIDs).
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo returns a SeatRepo bound to the given database.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

const seatColumns = `id, session_id, seat_label, seat_name, zone, price_cents, created_at`

// GetByIDs loads seats by id, restricted to the given session
// template so a request cannot smuggle in seats from another
// session's floor plan.  Missing ids do not appear in the result.
func (r *SeatRepo) GetByIDs(ctx context.Context, sessionID uint64, ids []uint64) ([]model.Seat, error) {
	if len(ids) == 0 {
		return []model.Seat{}, nil
	}
	placeholders := make([]string, 0, len(ids))
	args := []interface{}{sessionID}
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	query := `SELECT ` + seatColumns + `
	          FROM seats
	          WHERE session_id = ? AND id IN (` + strings.Join(placeholders, ",") + `)`
	return r.querySeats(ctx, query, args...)
}

// ListBySession returns every seat of a session template ordered by
// zone and label, for the seat map.
func (r *SeatRepo) ListBySession(ctx context.Context, sessionID uint64) ([]model.Seat, error) {
	query := `SELECT ` + seatColumns + `
	          FROM seats
	          WHERE session_id = ?
	          ORDER BY FIELD(zone, 'front', 'middle', 'back'), seat_label`
	return r.querySeats(ctx, query, sessionID)
}

func (r *SeatRepo) querySeats(ctx context.Context, query string, args ...interface{}) ([]model.Seat, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seats := make([]model.Seat, 0)
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.SessionID, &s.SeatLabel, &s.SeatName, &s.Zone, &s.PriceCents, &s.CreatedAt); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}
