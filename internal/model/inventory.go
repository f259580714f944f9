package model

import "time"

// DailyInventory is the remaining-capacity snapshot for one
// (SessionTemplate, calendar date) pair.  Rows are created lazily
// from the template's totals the first time a date is queried or
// booked.  The three counters are mutated only through the inventory
// repository's conditional check-and-consume / restore operations and
// must never go negative.
//
// Fields:
//  ID               – primary key identifier.
//  SessionID        – owning session template.
//  Date             – calendar date this row covers.
//  AvailableSeats   – seats still consumable on this date.
//  MakeupStock      – makeup service slots remaining.
//  PhotographyStock – photography service slots remaining.
//  Version          – optimistic locking counter; bumped on every
//                     successful consume or restore.
type DailyInventory struct {
	ID               uint64    // daily_sessions.id
	SessionID        uint64    // daily_sessions.session_id
	Date             time.Time // daily_sessions.date
	AvailableSeats   int       // daily_sessions.available_seats
	MakeupStock      int       // daily_sessions.makeup_stock
	PhotographyStock int       // daily_sessions.photography_stock
	Version          uint32    // daily_sessions.version
	CreatedAt        time.Time // daily_sessions.created_at
	UpdatedAt        time.Time // daily_sessions.updated_at
}
