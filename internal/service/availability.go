package service

import (
	"context"
	"fmt"

	"github.com/nianhua/banquet-reservation/internal/model"
	"github.com/nianhua/banquet-reservation/internal/repository"
)

// SeatStatus is one seat in a seat map or availability check.
type SeatStatus struct {
	SeatID     uint64          `json:"seat_id"`
	SeatLabel  string          `json:"seat_label"`
	SeatName   string          `json:"seat_name"`
	Zone       model.Zone      `json:"zone"`
	PriceCents int64           `json:"price_cents"`
	State      model.SeatState `json:"state"`
}

// ZoneAvailability is the per-zone tally of a seat map.
type ZoneAvailability struct {
	Zone      model.Zone `json:"zone"`
	Capacity  int        `json:"capacity"`
	Booked    int        `json:"booked"`
	Held      int        `json:"held"`
	Available int        `json:"available"`
}

// SeatMap is the full availability picture of one session on one
// date: every seat with its derived state, zone tallies, and the
// remaining service stock.
type SeatMap struct {
	SessionName      string             `json:"session_name"`
	SessionType      model.SessionType  `json:"session_type"`
	Date             string             `json:"date"`
	AvailableSeats   int                `json:"available_seats"`
	MakeupStock      int                `json:"makeup_stock"`
	PhotographyStock int                `json:"photography_stock"`
	Zones            []ZoneAvailability `json:"zones"`
	Seats            []SeatStatus       `json:"seats"`
}

// GetSeatMap derives the availability of every seat of a session on a
// date.  Seat state is computed, never stored: a seat is booked when
// a live booking owns it, held when a lock exists on it, otherwise
// available.
func (s *BookingService) GetSeatMap(ctx context.Context, sessionType model.SessionType, dateStr string) (*SeatMap, error) {
	if !sessionType.Valid() {
		return nil, fmt.Errorf("%w: unknown session type %q", ErrValidation, sessionType)
	}
	date, err := model.ParseDate(dateStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	tpl, err := s.sessions.GetByType(ctx, sessionType)
	if err != nil {
		return nil, err
	}
	inv, err := s.inventory.GetOrCreate(ctx, tpl, date)
	if err != nil {
		return nil, err
	}
	seats, err := s.seats.ListBySession(ctx, tpl.ID)
	if err != nil {
		return nil, err
	}
	booked, err := s.bookings.BookedSeatIDs(ctx, inv.ID)
	if err != nil {
		return nil, err
	}

	zones := make(map[model.Zone]*ZoneAvailability, len(model.Zones))
	out := &SeatMap{
		SessionName:      tpl.SessionName,
		SessionType:      tpl.SessionType,
		Date:             dateStr,
		AvailableSeats:   inv.AvailableSeats,
		MakeupStock:      inv.MakeupStock,
		PhotographyStock: inv.PhotographyStock,
		Seats:            make([]SeatStatus, 0, len(seats)),
	}
	for _, z := range model.Zones {
		za := &ZoneAvailability{Zone: z, Capacity: tpl.ZoneCapacity(z)}
		zones[z] = za
	}

	for _, seat := range seats {
		state, err := s.seatState(ctx, inv.ID, seat.ID, booked)
		if err != nil {
			return nil, err
		}
		out.Seats = append(out.Seats, SeatStatus{
			SeatID:     seat.ID,
			SeatLabel:  seat.SeatLabel,
			SeatName:   seat.SeatName,
			Zone:       seat.Zone,
			PriceCents: seat.PriceCents,
			State:      state,
		})
		if za, ok := zones[seat.Zone]; ok {
			switch state {
			case model.SeatBooked:
				za.Booked++
			case model.SeatHeld:
				za.Held++
			default:
				za.Available++
			}
		}
	}
	for _, z := range model.Zones {
		out.Zones = append(out.Zones, *zones[z])
	}
	return out, nil
}

// CheckSeatsRequest asks whether a specific seat selection is still
// free, without taking anything.  When Goods are supplied the check
// additionally verifies that the date's inventory can cover the
// consumption the selection implies.
type CheckSeatsRequest struct {
	SessionType model.SessionType
	Date        string
	SeatIDs     []uint64
	Goods       []SelectedGood
}

// CheckSeatsResult reports per-seat states and whether the whole
// selection could be booked right now.  The answer is advisory: the
// booking pipeline re-checks under its locks.
type CheckSeatsResult struct {
	AllAvailable bool         `json:"all_available"`
	InventoryOK  bool         `json:"inventory_ok"`
	Seats        []SeatStatus `json:"seats"`
}

// CheckSeats resolves the requested seats and derives their states.
func (s *BookingService) CheckSeats(ctx context.Context, req CheckSeatsRequest) (*CheckSeatsResult, error) {
	if !req.SessionType.Valid() {
		return nil, fmt.Errorf("%w: unknown session type %q", ErrValidation, req.SessionType)
	}
	if len(req.SeatIDs) == 0 {
		return nil, fmt.Errorf("%w: no seats selected", ErrValidation)
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	tpl, err := s.sessions.GetByType(ctx, req.SessionType)
	if err != nil {
		return nil, err
	}
	inv, err := s.inventory.GetOrCreate(ctx, tpl, date)
	if err != nil {
		return nil, err
	}
	seats, err := s.seats.GetByIDs(ctx, tpl.ID, req.SeatIDs)
	if err != nil {
		return nil, err
	}
	if len(seats) != len(req.SeatIDs) {
		return nil, fmt.Errorf("%w: %d seat(s) not found in this session", repository.ErrNotFound, len(req.SeatIDs)-len(seats))
	}
	booked, err := s.bookings.BookedSeatIDs(ctx, inv.ID)
	if err != nil {
		return nil, err
	}

	res := &CheckSeatsResult{AllAvailable: true, InventoryOK: true, Seats: make([]SeatStatus, 0, len(seats))}
	if len(req.Goods) > 0 {
		ids := make([]uint64, len(req.Goods))
		for i, g := range req.Goods {
			ids[i] = g.GoodsID
		}
		catalog, err := s.goods.GetByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		want, err := ComputeConsumption(catalog, req.Goods)
		if err != nil {
			return nil, err
		}
		if inv.AvailableSeats < want.Seats() ||
			inv.MakeupStock < want.Makeup ||
			inv.PhotographyStock < want.Photography {
			res.InventoryOK = false
		}
	}
	for _, seat := range seats {
		state, err := s.seatState(ctx, inv.ID, seat.ID, booked)
		if err != nil {
			return nil, err
		}
		if state != model.SeatAvailable {
			res.AllAvailable = false
		}
		res.Seats = append(res.Seats, SeatStatus{
			SeatID:     seat.ID,
			SeatLabel:  seat.SeatLabel,
			SeatName:   seat.SeatName,
			Zone:       seat.Zone,
			PriceCents: seat.PriceCents,
			State:      state,
		})
	}
	return res, nil
}

func (s *BookingService) seatState(ctx context.Context, scopeID, seatID uint64, booked map[uint64]struct{}) (model.SeatState, error) {
	if _, ok := booked[seatID]; ok {
		return model.SeatBooked, nil
	}
	held, err := s.locks.IsHeld(ctx, scopeID, seatID)
	if err != nil {
		return "", err
	}
	if held {
		return model.SeatHeld, nil
	}
	return model.SeatAvailable, nil
}
