package model

import "time"

// SessionType identifies the recurring slot of a dining event.  Only
// two slots exist per day.
type SessionType string

const (
	SessionLunch  SessionType = "lunch"
	SessionDinner SessionType = "dinner"
)

// Valid reports whether t is one of the known session types.
func (t SessionType) Valid() bool {
	return t == SessionLunch || t == SessionDinner
}

// SessionTemplate describes a fixed event recurrence.  Templates are
// created by configuration and never mutated by the booking engine;
// per-date remaining capacity lives in DailyInventory rows derived
// from the template's totals.
//
// Fields:
//  ID                – primary key identifier.
//  ThemeID           – theme staged during this session.
//  SessionType       – lunch or dinner.
//  SessionName       – display name.
//  FrontCapacity     – number of seats in the front zone.
//  MiddleCapacity    – number of seats in the middle zone.
//  BackCapacity      – number of seats in the back zone.
//  TotalSeats        – sum of the zone capacities.
//  MakeupStock       – makeup service slots available per date.
//  PhotographyStock  – photography service slots available per date.
//  StartTime/EndTime – time-of-day bounds of the session.
//  Active            – inactive templates cannot be booked.
type SessionTemplate struct {
	ID               uint64      // sessions.id
	ThemeID          uint64      // sessions.theme_id
	SessionType      SessionType // sessions.session_type
	SessionName      string      // sessions.session_name
	FrontCapacity    int         // sessions.front_capacity
	MiddleCapacity   int         // sessions.middle_capacity
	BackCapacity     int         // sessions.back_capacity
	TotalSeats       int         // sessions.total_seats
	MakeupStock      int         // sessions.makeup_stock
	PhotographyStock int         // sessions.photography_stock
	StartTime        string      // sessions.start_time (HH:MM:SS)
	EndTime          string      // sessions.end_time (HH:MM:SS)
	Active           bool        // sessions.status = 1
	CreatedAt        time.Time   // sessions.created_at
	UpdatedAt        time.Time   // sessions.updated_at
}

// ZoneCapacity returns the template's seat capacity for the given zone.
func (s *SessionTemplate) ZoneCapacity(z Zone) int {
	switch z {
	case ZoneFront:
		return s.FrontCapacity
	case ZoneMiddle:
		return s.MiddleCapacity
	case ZoneBack:
		return s.BackCapacity
	}
	return 0
}

// DateLayout is the wire and storage format for booking dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
