package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/nianhua/banquet-reservation/internal/model"
)

// InventoryRepo is the inventory ledger: the only code path allowed
// to mutate daily_sessions counters.  Consumption is a single
// conditional UPDATE guarded by the row version and non-negative
// counter predicates, so concurrent bookings can never drive a
// counter below zero or silently overwrite each other.
type InventoryRepo struct {
	db *sql.DB
}

// NewInventoryRepo returns an InventoryRepo bound to the given database.
func NewInventoryRepo(db *sql.DB) *InventoryRepo { return &InventoryRepo{db: db} }

const inventoryColumns = `id, session_id, date, available_seats, makeup_stock,
	photography_stock, version, created_at, updated_at`

func scanInventory(row *sql.Row) (*model.DailyInventory, error) {
	var inv model.DailyInventory
	err := row.Scan(&inv.ID, &inv.SessionID, &inv.Date, &inv.AvailableSeats,
		&inv.MakeupStock, &inv.PhotographyStock, &inv.Version, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetOrCreate returns the daily inventory row for (template, date),
// lazily seeding it from the template's totals the first time the
// date is queried or booked.  Two callers racing to create the same
// row are resolved by the unique (session_id, date) key: the loser
// re-reads the winner's row.
func (r *InventoryRepo) GetOrCreate(ctx context.Context, tpl *model.SessionTemplate, date time.Time) (*model.DailyInventory, error) {
	inv, err := r.get(ctx, tpl.ID, date)
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	const ins = `INSERT INTO daily_sessions
	             (session_id, date, available_seats, makeup_stock, photography_stock, version)
	             VALUES (?, ?, ?, ?, ?, 0)`
	_, err = r.db.ExecContext(ctx, ins, tpl.ID, date.Format(model.DateLayout),
		tpl.TotalSeats, tpl.MakeupStock, tpl.PhotographyStock)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			// Lost the creation race; the row exists now.
			return r.get(ctx, tpl.ID, date)
		}
		return nil, err
	}
	log.Printf("inventory: created daily row session=%d date=%s seats=%d makeup=%d photography=%d",
		tpl.ID, date.Format(model.DateLayout), tpl.TotalSeats, tpl.MakeupStock, tpl.PhotographyStock)
	return r.get(ctx, tpl.ID, date)
}

func (r *InventoryRepo) get(ctx context.Context, sessionID uint64, date time.Time) (*model.DailyInventory, error) {
	const q = `SELECT ` + inventoryColumns + `
	           FROM daily_sessions
	           WHERE session_id = ? AND date = ?`
	return scanInventory(r.db.QueryRowContext(ctx, q, sessionID, date.Format(model.DateLayout)))
}

// Refresh re-reads the row behind inv, replacing its counters and
// version with current persisted state.  Used before retrying a
// consume that lost the version race.
func (r *InventoryRepo) Refresh(ctx context.Context, inv *model.DailyInventory) error {
	const q = `SELECT ` + inventoryColumns + ` FROM daily_sessions WHERE id = ?`
	fresh, err := scanInventory(r.db.QueryRowContext(ctx, q, inv.ID))
	if err != nil {
		return err
	}
	*inv = *fresh
	return nil
}

// TryConsume atomically decrements the three counters by the given
// deltas.  It fails the whole operation with ErrInsufficient (naming
// the short resource) when the snapshot in inv cannot cover a delta,
// and with ErrVersionConflict when the conditional write matched no
// row because a concurrent transaction got there first.  No partial
// decrement is ever applied.  On success inv is updated in place to
// the new counters and version.
func (r *InventoryRepo) TryConsume(ctx context.Context, inv *model.DailyInventory, seatDelta, makeupDelta, photoDelta int) error {
	if seatDelta < 0 || makeupDelta < 0 || photoDelta < 0 {
		return fmt.Errorf("negative consume delta seats=%d makeup=%d photography=%d", seatDelta, makeupDelta, photoDelta)
	}
	if seatDelta == 0 && makeupDelta == 0 && photoDelta == 0 {
		return nil
	}
	if inv.AvailableSeats < seatDelta {
		return fmt.Errorf("%w: seats (have %d, need %d)", ErrInsufficient, inv.AvailableSeats, seatDelta)
	}
	if inv.MakeupStock < makeupDelta {
		return fmt.Errorf("%w: makeup (have %d, need %d)", ErrInsufficient, inv.MakeupStock, makeupDelta)
	}
	if inv.PhotographyStock < photoDelta {
		return fmt.Errorf("%w: photography (have %d, need %d)", ErrInsufficient, inv.PhotographyStock, photoDelta)
	}

	// The version predicate catches concurrent writers; the counter
	// predicates re-check sufficiency inside the same statement.
	const q = `UPDATE daily_sessions
	           SET available_seats = available_seats - ?,
	               makeup_stock = makeup_stock - ?,
	               photography_stock = photography_stock - ?,
	               version = version + 1,
	               updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND version = ?
	             AND available_seats >= ? AND makeup_stock >= ? AND photography_stock >= ?`
	res, err := r.db.ExecContext(ctx, q,
		seatDelta, makeupDelta, photoDelta,
		inv.ID, inv.Version,
		seatDelta, makeupDelta, photoDelta)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	inv.AvailableSeats -= seatDelta
	inv.MakeupStock -= makeupDelta
	inv.PhotographyStock -= photoDelta
	inv.Version++
	return nil
}

// Restore is the compensating increment for a failed or expired
// booking.  Callers must gate it on the booking's status transition
// so that one booking's stock is credited back at most once; the
// repository itself applies the deltas unconditionally.
func (r *InventoryRepo) Restore(ctx context.Context, inventoryID uint64, seatDelta, makeupDelta, photoDelta int) error {
	return restoreInventory(ctx, r.db, inventoryID, seatDelta, makeupDelta, photoDelta)
}

// RestoreTx is Restore inside an existing transaction, used by the
// expiration sweep so the credit commits atomically with the
// booking's cancellation.
func (r *InventoryRepo) RestoreTx(ctx context.Context, tx *sql.Tx, inventoryID uint64, seatDelta, makeupDelta, photoDelta int) error {
	return restoreInventory(ctx, tx, inventoryID, seatDelta, makeupDelta, photoDelta)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func restoreInventory(ctx context.Context, ex execer, inventoryID uint64, seatDelta, makeupDelta, photoDelta int) error {
	if seatDelta == 0 && makeupDelta == 0 && photoDelta == 0 {
		return nil
	}
	const q = `UPDATE daily_sessions
	           SET available_seats = available_seats + ?,
	               makeup_stock = makeup_stock + ?,
	               photography_stock = photography_stock + ?,
	               version = version + 1,
	               updated_at = UTC_TIMESTAMP()
	           WHERE id = ?`
	_, err := ex.ExecContext(ctx, q, seatDelta, makeupDelta, photoDelta, inventoryID)
	return err
}
