package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/nianhua/banquet-reservation/internal/model"
)

// ExpiredBooking is the projection the expiration sweep works from:
// enough to recompute what the booking consumed and to release its
// seat holds.
type ExpiredBooking struct {
	ID             uint64
	UserID         uint64
	SessionID      uint64 // session template behind the daily row
	DailySessionID uint64
	OrderNo        string
	BookingDate    time.Time
	CreatedAt      time.Time
}

// SweepRepo backs the expiration sweep.  It is deliberately narrow:
// listing overdue pending bookings and cancelling one atomically with
// its inventory credit.
type SweepRepo struct {
	db        *sql.DB
	inventory *InventoryRepo
}

// NewSweepRepo returns a SweepRepo sharing the inventory ledger's
// restore logic.
func NewSweepRepo(db *sql.DB, inventory *InventoryRepo) *SweepRepo {
	return &SweepRepo{db: db, inventory: inventory}
}

// ListExpiredPending returns pending bookings created before the
// cutoff, oldest first, joined to their daily session so the sweep
// knows which inventory row to credit.
func (r *SweepRepo) ListExpiredPending(ctx context.Context, olderThan time.Time) ([]ExpiredBooking, error) {
	const q = `SELECT bk.id, bk.user_id, ds.session_id, bk.daily_session_id,
	                  bk.order_no, bk.booking_date, bk.created_at
	           FROM bookings bk
	           JOIN daily_sessions ds ON ds.id = bk.daily_session_id
	           WHERE bk.status = 'pending' AND bk.created_at < ?
	           ORDER BY bk.created_at`
	rows, err := r.db.QueryContext(ctx, q, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExpiredBooking
	for rows.Next() {
		var e ExpiredBooking
		if err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &e.DailySessionID,
			&e.OrderNo, &e.BookingDate, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GoodsLines returns the goods line items of a booking, for
// recomputing the stock it consumed.
func (r *SweepRepo) GoodsLines(ctx context.Context, bookingID uint64) ([]model.BookingGoods, error) {
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

// CancelAndRestore flips a pending booking to cancelled and credits
// its consumption back to the inventory row, in one transaction.  The
// conditional status predicate is the idempotence gate: if the
// booking was paid meanwhile, or another sweep already cancelled it,
// zero rows match and nothing is credited.  Returns whether this call
// performed the cancellation.
func (r *SweepRepo) CancelAndRestore(ctx context.Context, bookingID, inventoryID uint64, seatDelta, makeupDelta, photoDelta int) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	const flip = `UPDATE bookings
	              SET status = 'cancelled', updated_at = UTC_TIMESTAMP()
	              WHERE id = ? AND status = 'pending'`
	res, err := tx.ExecContext(ctx, flip, bookingID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, tx.Commit()
	}

	if err := r.inventory.RestoreTx(ctx, tx, inventoryID, seatDelta, makeupDelta, photoDelta); err != nil {
		return false, err
	}
	return true, tx.Commit()
}
