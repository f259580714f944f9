package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nianhua/banquet-reservation/internal/model"
)

// BookingRepo persists bookings and their seat / goods line items.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, user_id, theme_id, daily_session_id, order_no,
	total_amount_cents, seat_count, booking_date, status, created_at, updated_at`

func scanBooking(sc interface{ Scan(...interface{}) error }) (*model.Booking, error) {
	var b model.Booking
	err := sc.Scan(&b.ID, &b.UserID, &b.ThemeID, &b.DailySessionID, &b.OrderNo,
		&b.TotalAmountCents, &b.SeatCount, &b.BookingDate, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create inserts the booking and its seat and goods lines in one
// transaction.  Inside that transaction it re-checks that none of the
// chosen seats already belong to a live booking for the same daily
// session; the seat lock table is the first line of defence, this is
// the durable second.  Returns ErrSeatTaken when the check trips.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking, seats []model.BookingSeat, goods []model.BookingGoods) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if len(seats) > 0 {
		ids := make([]interface{}, 0, len(seats)+1)
		ids = append(ids, b.DailySessionID)
		for _, s := range seats {
			ids = append(ids, s.SeatID)
		}
		q := `SELECT COUNT(*)
		      FROM booking_seats bs
		      JOIN bookings bk ON bk.id = bs.booking_id
		      WHERE bk.daily_session_id = ? AND bk.status <> 'cancelled'
		        AND bs.seat_id IN (` + placeholders(len(seats)) + `)`
		var taken int
		if err := tx.QueryRowContext(ctx, q, ids...).Scan(&taken); err != nil {
			return err
		}
		if taken > 0 {
			return fmt.Errorf("%w: %d seat(s) already booked", ErrSeatTaken, taken)
		}
	}

	const ins = `INSERT INTO bookings
	             (user_id, theme_id, daily_session_id, order_no, total_amount_cents,
	              seat_count, booking_date, status)
	             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, ins, b.UserID, b.ThemeID, b.DailySessionID,
		b.OrderNo, b.TotalAmountCents, b.SeatCount, b.BookingDate, b.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)

	for _, s := range seats {
		const q = `INSERT INTO booking_seats (booking_id, seat_id, seat_name, zone, price_cents)
		           VALUES (?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, q, b.ID, s.SeatID, s.SeatName, s.Zone, s.PriceCents); err != nil {
			return err
		}
	}
	for _, g := range goods {
		const q = `INSERT INTO booking_goods (booking_id, goods_id, quantity, price_cents)
		           VALUES (?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, q, b.ID, g.GoodsID, g.Quantity, g.PriceCents); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByID fetches a single booking or ErrNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return b, err
}

// ListByUser returns the user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + `
	           FROM bookings WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// SeatLines returns the seat line items of a booking.
func (r *BookingRepo) SeatLines(ctx context.Context, bookingID uint64) ([]model.BookingSeat, error) {
	const q = `SELECT booking_id, seat_id, seat_name, zone, price_cents
	           FROM booking_seats WHERE booking_id = ?`
	rows, err := r.db.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BookingSeat
	for rows.Next() {
		var s model.BookingSeat
		if err := rows.Scan(&s.BookingID, &s.SeatID, &s.SeatName, &s.Zone, &s.PriceCents); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GoodsLines returns the goods line items of a booking.
func (r *BookingRepo) GoodsLines(ctx context.Context, bookingID uint64) ([]model.BookingGoods, error) {
	const q = `SELECT booking_id, goods_id, quantity, price_cents
	           FROM booking_goods WHERE booking_id = ?`
	rows, err := r.db.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BookingGoods
	for rows.Next() {
		var g model.BookingGoods
		if err := rows.Scan(&g.BookingID, &g.GoodsID, &g.Quantity, &g.PriceCents); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// BookedSeatIDs returns the seat ids durably held by live bookings of
// the given daily session (pending bookings count: their seats are
// off the market until they pay or expire).
func (r *BookingRepo) BookedSeatIDs(ctx context.Context, dailySessionID uint64) (map[uint64]struct{}, error) {
	const q = `SELECT bs.seat_id
	           FROM booking_seats bs
	           JOIN bookings bk ON bk.id = bs.booking_id
	           WHERE bk.daily_session_id = ? AND bk.status <> 'cancelled'`
	rows, err := r.db.QueryContext(ctx, q, dailySessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uint64]struct{})
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// placeholders builds "?, ?, ..." for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
