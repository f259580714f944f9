package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nianhua/banquet-reservation/internal/model"
	"github.com/nianhua/banquet-reservation/internal/queue"
	"github.com/nianhua/banquet-reservation/internal/repository"
)

// Hand-written in-memory fakes for the store interfaces.  They mimic
// the repository semantics closely enough to drive the orchestrator:
// the inventory fake honours version conflicts and sufficiency, the
// booking fake enforces the durable seat re-check.

type fakeSessions struct {
	templates []*model.SessionTemplate
}

func (f *fakeSessions) GetByType(_ context.Context, t model.SessionType) (*model.SessionTemplate, error) {
	for _, tpl := range f.templates {
		if tpl.SessionType == t {
			return tpl, nil
		}
	}
	return nil, repository.ErrSessionNotFound
}

func (f *fakeSessions) GetByID(_ context.Context, id uint64) (*model.SessionTemplate, error) {
	for _, tpl := range f.templates {
		if tpl.ID == id {
			return tpl, nil
		}
	}
	return nil, repository.ErrSessionNotFound
}

type restoreCall struct {
	inventoryID               uint64
	seats, makeup, photograph int
}

type fakeInventory struct {
	mu            sync.Mutex
	byKey         map[string]*model.DailyInventory
	byID          map[uint64]*model.DailyInventory
	nextID        uint64
	conflictsLeft int // force this many version conflicts before succeeding
	consumeCalls  int
	restores      []restoreCall
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{
		byKey: make(map[string]*model.DailyInventory),
		byID:  make(map[uint64]*model.DailyInventory),
	}
}

func (f *fakeInventory) GetOrCreate(_ context.Context, tpl *model.SessionTemplate, date time.Time) (*model.DailyInventory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := fmt.Sprintf("%d|%s", tpl.ID, date.Format(model.DateLayout))
	if row, ok := f.byKey[key]; ok {
		cp := *row
		return &cp, nil
	}
	f.nextID++
	row := &model.DailyInventory{
		ID:               f.nextID,
		SessionID:        tpl.ID,
		Date:             date,
		AvailableSeats:   tpl.TotalSeats,
		MakeupStock:      tpl.MakeupStock,
		PhotographyStock: tpl.PhotographyStock,
	}
	f.byKey[key] = row
	f.byID[row.ID] = row
	cp := *row
	return &cp, nil
}

func (f *fakeInventory) TryConsume(_ context.Context, inv *model.DailyInventory, seatDelta, makeupDelta, photoDelta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.consumeCalls++
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		return repository.ErrVersionConflict
	}
	row := f.byID[inv.ID]
	if row.Version != inv.Version {
		return repository.ErrVersionConflict
	}
	switch {
	case row.AvailableSeats < seatDelta:
		return fmt.Errorf("%w: seats", repository.ErrInsufficient)
	case row.MakeupStock < makeupDelta:
		return fmt.Errorf("%w: makeup", repository.ErrInsufficient)
	case row.PhotographyStock < photoDelta:
		return fmt.Errorf("%w: photography", repository.ErrInsufficient)
	}
	row.AvailableSeats -= seatDelta
	row.MakeupStock -= makeupDelta
	row.PhotographyStock -= photoDelta
	row.Version++
	*inv = *row
	return nil
}

func (f *fakeInventory) Refresh(_ context.Context, inv *model.DailyInventory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	*inv = *f.byID[inv.ID]
	return nil
}

func (f *fakeInventory) Restore(_ context.Context, inventoryID uint64, seatDelta, makeupDelta, photoDelta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restore(inventoryID, seatDelta, makeupDelta, photoDelta)
	return nil
}

func (f *fakeInventory) restore(inventoryID uint64, seatDelta, makeupDelta, photoDelta int) {
	row := f.byID[inventoryID]
	row.AvailableSeats += seatDelta
	row.MakeupStock += makeupDelta
	row.PhotographyStock += photoDelta
	row.Version++
	f.restores = append(f.restores, restoreCall{inventoryID, seatDelta, makeupDelta, photoDelta})
}

func (f *fakeInventory) counters(inventoryID uint64) (seats, makeup, photography int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.byID[inventoryID]
	return row.AvailableSeats, row.MakeupStock, row.PhotographyStock
}

type fakeGoods struct {
	catalog []model.Goods
}

func (f *fakeGoods) GetByIDs(_ context.Context, ids []uint64) ([]model.Goods, error) {
	var out []model.Goods
	for _, id := range ids {
		for _, g := range f.catalog {
			if g.ID == id {
				out = append(out, g)
				break
			}
		}
	}
	return out, nil
}

type fakeSeats struct {
	seats []model.Seat
}

func (f *fakeSeats) GetByIDs(_ context.Context, sessionID uint64, ids []uint64) ([]model.Seat, error) {
	var out []model.Seat
	for _, id := range ids {
		for _, s := range f.seats {
			if s.ID == id && s.SessionID == sessionID {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeSeats) ListBySession(_ context.Context, sessionID uint64) ([]model.Seat, error) {
	var out []model.Seat
	for _, s := range f.seats {
		if s.SessionID == sessionID {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeBookings struct {
	mu        sync.Mutex
	nextID    uint64
	bookings  map[uint64]*model.Booking
	seatLines map[uint64][]model.BookingSeat
	goodsRows map[uint64][]model.BookingGoods
	createErr error // returned by the next Create call, then cleared
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{
		bookings:  make(map[uint64]*model.Booking),
		seatLines: make(map[uint64][]model.BookingSeat),
		goodsRows: make(map[uint64][]model.BookingGoods),
	}
}

func (f *fakeBookings) Create(_ context.Context, b *model.Booking, seats []model.BookingSeat, goods []model.BookingGoods) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		err := f.createErr
		f.createErr = nil
		return err
	}
	taken := f.bookedSeatIDs(b.DailySessionID)
	for _, s := range seats {
		if _, ok := taken[s.SeatID]; ok {
			return fmt.Errorf("%w: 1 seat(s) already booked", repository.ErrSeatTaken)
		}
	}
	f.nextID++
	b.ID = f.nextID
	cp := *b
	f.bookings[b.ID] = &cp
	f.seatLines[b.ID] = append([]model.BookingSeat(nil), seats...)
	f.goodsRows[b.ID] = append([]model.BookingGoods(nil), goods...)
	return nil
}

func (f *fakeBookings) GetByID(_ context.Context, id uint64) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) ListByUser(_ context.Context, userID uint64) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Booking
	for _, b := range f.bookings {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBookings) SeatLines(_ context.Context, bookingID uint64) ([]model.BookingSeat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.BookingSeat(nil), f.seatLines[bookingID]...), nil
}

func (f *fakeBookings) GoodsLines(_ context.Context, bookingID uint64) ([]model.BookingGoods, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.BookingGoods(nil), f.goodsRows[bookingID]...), nil
}

func (f *fakeBookings) BookedSeatIDs(_ context.Context, dailySessionID uint64) (map[uint64]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bookedSeatIDs(dailySessionID), nil
}

// callers must hold f.mu
func (f *fakeBookings) bookedSeatIDs(dailySessionID uint64) map[uint64]struct{} {
	out := make(map[uint64]struct{})
	for id, b := range f.bookings {
		if b.DailySessionID != dailySessionID || b.Status == model.StatusCancelled {
			continue
		}
		for _, s := range f.seatLines[id] {
			out[s.SeatID] = struct{}{}
		}
	}
	return out
}

// fakeSweeps implements SweepStore over the booking and inventory fakes.
type fakeSweeps struct {
	bookings  *fakeBookings
	inventory *fakeInventory
}

func (f *fakeSweeps) ListExpiredPending(_ context.Context, olderThan time.Time) ([]repository.ExpiredBooking, error) {
	f.bookings.mu.Lock()
	defer f.bookings.mu.Unlock()

	var out []repository.ExpiredBooking
	for _, b := range f.bookings.bookings {
		if b.Status == model.StatusPending && b.CreatedAt.Before(olderThan) {
			out = append(out, repository.ExpiredBooking{
				ID:             b.ID,
				UserID:         b.UserID,
				DailySessionID: b.DailySessionID,
				OrderNo:        b.OrderNo,
				BookingDate:    b.BookingDate,
				CreatedAt:      b.CreatedAt,
			})
		}
	}
	return out, nil
}

func (f *fakeSweeps) GoodsLines(ctx context.Context, bookingID uint64) ([]model.BookingGoods, error) {
	return f.bookings.GoodsLines(ctx, bookingID)
}

func (f *fakeSweeps) CancelAndRestore(_ context.Context, bookingID, inventoryID uint64, seatDelta, makeupDelta, photoDelta int) (bool, error) {
	f.bookings.mu.Lock()
	b, ok := f.bookings.bookings[bookingID]
	if !ok || b.Status != model.StatusPending {
		f.bookings.mu.Unlock()
		return false, nil
	}
	b.Status = model.StatusCancelled
	f.bookings.mu.Unlock()

	f.inventory.mu.Lock()
	f.inventory.restore(inventoryID, seatDelta, makeupDelta, photoDelta)
	f.inventory.mu.Unlock()
	return true, nil
}

type fakeEvents struct {
	mu        sync.Mutex
	created   []queue.BookingCreatedEvent
	cancelled []queue.BookingCancelledEvent
}

func (f *fakeEvents) PublishBookingCreated(_ context.Context, ev queue.BookingCreatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, ev)
	return nil
}

func (f *fakeEvents) PublishBookingCancelled(_ context.Context, ev queue.BookingCancelledEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, ev)
	return nil
}
