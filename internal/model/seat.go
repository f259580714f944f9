package model

import "time"

// Zone groups seats by distance from the stage.  Pricing and
// desirability differ per zone, and goods with a zone-consumption map
// constrain which zones a customer must pick seats from.
type Zone string

const (
	ZoneFront  Zone = "front"
	ZoneMiddle Zone = "middle"
	ZoneBack   Zone = "back"
)

// Zones lists every zone in display order.  Quota validation iterates
// this slice so that mismatch errors come out deterministically.
var Zones = []Zone{ZoneFront, ZoneMiddle, ZoneBack}

// Valid reports whether z names a known zone.
func (z Zone) Valid() bool {
	return z == ZoneFront || z == ZoneMiddle || z == ZoneBack
}

// Seat is a template row belonging to a SessionTemplate.  Seats are
// not scoped to a date: the same physical seat row is reused for
// every calendar date, and per-date occupancy is derived by
// cross-referencing non-cancelled bookings for that date.  Nothing in
// the booking engine writes seat rows.
//
// Fields:
//  ID         – primary key identifier.
//  SessionID  – owning session template.
//  SeatLabel  – stable short identifier shown on the floor plan (e.g. "A3").
//  SeatName   – display name.
//  Zone       – front, middle or back.
//  PriceCents – seat price captured into booking line items.
type Seat struct {
	ID         uint64    // seats.id
	SessionID  uint64    // seats.session_id
	SeatLabel  string    // seats.seat_label
	SeatName   string    // seats.seat_name
	Zone       Zone      // seats.zone
	PriceCents int64     // seats.price_cents
	CreatedAt  time.Time // seats.created_at
}

// SeatState is the derived per-date lifecycle of a seat as reported
// by the seat map: free to pick, held by an in-flight booking
// attempt, or committed to a persisted booking.
type SeatState string

const (
	SeatAvailable SeatState = "available"
	SeatHeld      SeatState = "held"
	SeatBooked    SeatState = "booked"
)
