package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nianhua/banquet-reservation/internal/lock"
	"github.com/nianhua/banquet-reservation/internal/model"
	"github.com/nianhua/banquet-reservation/internal/repository"
)

// engineFixture assembles the orchestrator over the in-memory fakes
// and a real MemoryTable lock table.
type engineFixture struct {
	svc       *BookingService
	sessions  *fakeSessions
	inventory *fakeInventory
	goods     *fakeGoods
	seats     *fakeSeats
	bookings  *fakeBookings
	locks     *lock.MemoryTable
	events    *fakeEvents
	now       time.Time
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	f := &engineFixture{
		sessions: &fakeSessions{templates: []*model.SessionTemplate{{
			ID: 1, ThemeID: 3, SessionType: model.SessionLunch, SessionName: "Lunch Banquet",
			FrontCapacity: 2, MiddleCapacity: 2, BackCapacity: 2, TotalSeats: 6,
			MakeupStock: 2, PhotographyStock: 1, Active: true,
		}}},
		inventory: newFakeInventory(),
		goods: &fakeGoods{catalog: []model.Goods{
			{ID: 1, Name: "front single", Category: model.CategorySeating, PriceCents: 28800,
				ZoneConsumption: `[{"zone":"front","count":1}]`, Active: true},
			{ID: 2, Name: "middle single", Category: model.CategorySeating, PriceCents: 18800,
				ZoneConsumption: `[{"zone":"middle","count":1}]`, Active: true},
			{ID: 3, Name: "makeup session", Category: model.CategoryMakeup, PriceCents: 9900, Active: true},
			{ID: 4, Name: "retired duo", Category: model.CategorySeating, PriceCents: 38800,
				ZoneConsumption: `[{"zone":"front","count":2}]`, Active: false},
		}},
		seats: &fakeSeats{seats: []model.Seat{
			{ID: 11, SessionID: 1, SeatLabel: "F1", SeatName: "Front 1", Zone: model.ZoneFront, PriceCents: 28800},
			{ID: 12, SessionID: 1, SeatLabel: "F2", SeatName: "Front 2", Zone: model.ZoneFront, PriceCents: 28800},
			{ID: 13, SessionID: 1, SeatLabel: "M1", SeatName: "Middle 1", Zone: model.ZoneMiddle, PriceCents: 18800},
			{ID: 14, SessionID: 1, SeatLabel: "M2", SeatName: "Middle 2", Zone: model.ZoneMiddle, PriceCents: 18800},
			{ID: 15, SessionID: 1, SeatLabel: "B1", SeatName: "Back 1", Zone: model.ZoneBack, PriceCents: 8800},
			{ID: 16, SessionID: 1, SeatLabel: "B2", SeatName: "Back 2", Zone: model.ZoneBack, PriceCents: 8800},
		}},
		bookings: newFakeBookings(),
		locks:    lock.NewMemoryTable(0),
		events:   &fakeEvents{},
		now:      time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	f.svc = NewBookingService(f.sessions, f.inventory, f.goods, f.seats, f.bookings, f.locks, f.events, 0)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *engineFixture) request(seatIDs []uint64, goods []SelectedGood) CreateBookingRequest {
	return CreateBookingRequest{
		UserID:      100,
		ThemeID:     3,
		SessionType: model.SessionLunch,
		Date:        "2026-03-20",
		SeatIDs:     seatIDs,
		Goods:       goods,
	}
}

func TestCreateBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path books seats, consumes stock and publishes", func(t *testing.T) {
		f := newEngineFixture(t)
		req := f.request([]uint64{11, 13}, []SelectedGood{
			{GoodsID: 1, Quantity: 1},
			{GoodsID: 2, Quantity: 1},
			{GoodsID: 3, Quantity: 1},
		})

		res, err := f.svc.CreateBooking(ctx, req)
		require.NoError(t, err)
		require.NotNil(t, res.Booking)

		assert.Equal(t, model.StatusPending, res.Booking.Status)
		assert.Equal(t, 2, res.Booking.SeatCount)
		assert.Equal(t, int64(28800+18800+9900), res.Booking.TotalAmountCents)
		assert.NotEmpty(t, res.Booking.OrderNo)
		assert.Equal(t, f.now.Add(PaymentWindow), res.ExpiresAt)
		assert.Len(t, res.Seats, 2)
		assert.Len(t, res.Goods, 3)

		seatsLeft, makeupLeft, photoLeft := f.inventory.counters(1)
		assert.Equal(t, 4, seatsLeft)
		assert.Equal(t, 1, makeupLeft)
		assert.Equal(t, 1, photoLeft)

		// Locks stay held until payment or expiry.
		assert.Equal(t, 2, f.locks.Len())
		require.Len(t, f.events.created, 1)
		assert.Equal(t, res.Booking.OrderNo, f.events.created[0].OrderNo)
	})

	t.Run("zone quota mismatch leaves no side effects", func(t *testing.T) {
		f := newEngineFixture(t)
		// Goods entitle one front seat; a middle seat is picked.
		req := f.request([]uint64{13}, []SelectedGood{{GoodsID: 1, Quantity: 1}})

		_, err := f.svc.CreateBooking(ctx, req)
		assert.ErrorIs(t, err, ErrValidation)

		var zErr *ZoneQuotaError
		require.True(t, errors.As(err, &zErr))
		assert.Equal(t, model.ZoneFront, zErr.Zone)

		seatsLeft, _, _ := f.inventory.counters(1)
		assert.Equal(t, 6, seatsLeft)
		assert.Equal(t, 0, f.locks.Len())
		assert.Zero(t, f.inventory.consumeCalls)
	})

	t.Run("entitlement and seat count must agree", func(t *testing.T) {
		f := newEngineFixture(t)
		req := f.request([]uint64{11}, []SelectedGood{{GoodsID: 1, Quantity: 2}})

		_, err := f.svc.CreateBooking(ctx, req)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("inactive goods are rejected", func(t *testing.T) {
		f := newEngineFixture(t)
		req := f.request([]uint64{11, 12}, []SelectedGood{{GoodsID: 4, Quantity: 1}})

		_, err := f.svc.CreateBooking(ctx, req)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown goods id is not found", func(t *testing.T) {
		f := newEngineFixture(t)
		req := f.request([]uint64{11}, []SelectedGood{{GoodsID: 99, Quantity: 1}})

		_, err := f.svc.CreateBooking(ctx, req)
		assert.ErrorIs(t, err, repository.ErrNotFound)

		assert.Equal(t, 0, f.locks.Len())
		assert.Zero(t, f.inventory.consumeCalls)
	})

	t.Run("unknown seat id is not found", func(t *testing.T) {
		f := newEngineFixture(t)
		req := f.request([]uint64{11, 77}, []SelectedGood{{GoodsID: 1, Quantity: 2}})

		_, err := f.svc.CreateBooking(ctx, req)
		assert.ErrorIs(t, err, repository.ErrNotFound)

		assert.Equal(t, 0, f.locks.Len())
		assert.Zero(t, f.inventory.consumeCalls)
	})

	t.Run("past date is rejected", func(t *testing.T) {
		f := newEngineFixture(t)
		req := f.request([]uint64{11}, []SelectedGood{{GoodsID: 1, Quantity: 1}})
		req.Date = "2026-03-13"

		_, err := f.svc.CreateBooking(ctx, req)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("locked seat rejects the second booker and keeps the first hold", func(t *testing.T) {
		f := newEngineFixture(t)
		first := f.request([]uint64{11}, []SelectedGood{{GoodsID: 1, Quantity: 1}})
		_, err := f.svc.CreateBooking(ctx, first)
		require.NoError(t, err)

		second := f.request([]uint64{11}, []SelectedGood{{GoodsID: 1, Quantity: 1}})
		second.UserID = 200
		_, err = f.svc.CreateBooking(ctx, second)
		assert.ErrorIs(t, err, ErrSeatLocked)

		// The loser's attempt must not consume stock.
		seatsLeft, _, _ := f.inventory.counters(1)
		assert.Equal(t, 5, seatsLeft)
		assert.Equal(t, 1, f.locks.Len())
	})

	t.Run("partial lock failure releases what was acquired", func(t *testing.T) {
		f := newEngineFixture(t)
		// User 200 holds seat 13 out-of-band.
		ok, err := f.locks.TryAcquire(ctx, 1, 13, 200)
		require.NoError(t, err)
		require.True(t, ok)

		req := f.request([]uint64{11, 13}, []SelectedGood{
			{GoodsID: 1, Quantity: 1},
			{GoodsID: 2, Quantity: 1},
		})
		_, err = f.svc.CreateBooking(ctx, req)
		assert.ErrorIs(t, err, ErrSeatLocked)

		// Seat 11 was acquired first and must be free again.
		ok, err = f.locks.TryAcquire(ctx, 1, 11, 999)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("insufficient service stock fails whole booking and releases locks", func(t *testing.T) {
		f := newEngineFixture(t)
		// Drain the single photography slot.
		f.goods.catalog = append(f.goods.catalog, model.Goods{
			ID: 5, Name: "photo package", Category: model.CategoryPhotography, PriceCents: 12900, Active: true,
		})
		first := f.request([]uint64{11}, []SelectedGood{{GoodsID: 1, Quantity: 1}, {GoodsID: 5, Quantity: 1}})
		_, err := f.svc.CreateBooking(ctx, first)
		require.NoError(t, err)

		second := f.request([]uint64{13}, []SelectedGood{{GoodsID: 2, Quantity: 1}, {GoodsID: 5, Quantity: 1}})
		second.UserID = 200
		_, err = f.svc.CreateBooking(ctx, second)
		assert.ErrorIs(t, err, repository.ErrInsufficient)

		// Only the winner's lock remains; the loser's seat lock was
		// given back and no partial decrement happened.
		assert.Equal(t, 1, f.locks.Len())
		seatsLeft, _, photoLeft := f.inventory.counters(1)
		assert.Equal(t, 5, seatsLeft)
		assert.Equal(t, 0, photoLeft)
	})

	t.Run("version conflict is retried once against fresh counters", func(t *testing.T) {
		f := newEngineFixture(t)
		f.inventory.conflictsLeft = 1

		req := f.request([]uint64{11}, []SelectedGood{{GoodsID: 1, Quantity: 1}})
		_, err := f.svc.CreateBooking(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, 2, f.inventory.consumeCalls)
	})

	t.Run("persistent version conflict surfaces after one retry", func(t *testing.T) {
		f := newEngineFixture(t)
		f.inventory.conflictsLeft = 2

		req := f.request([]uint64{11}, []SelectedGood{{GoodsID: 1, Quantity: 1}})
		_, err := f.svc.CreateBooking(ctx, req)
		assert.ErrorIs(t, err, repository.ErrVersionConflict)
		assert.Equal(t, 0, f.locks.Len())
	})

	t.Run("persist failure restores inventory and releases locks", func(t *testing.T) {
		f := newEngineFixture(t)
		f.bookings.createErr = errors.New("connection reset")

		req := f.request([]uint64{11, 13}, []SelectedGood{
			{GoodsID: 1, Quantity: 1},
			{GoodsID: 2, Quantity: 1},
			{GoodsID: 3, Quantity: 1},
		})
		_, err := f.svc.CreateBooking(ctx, req)
		require.Error(t, err)

		seatsLeft, makeupLeft, _ := f.inventory.counters(1)
		assert.Equal(t, 6, seatsLeft)
		assert.Equal(t, 2, makeupLeft)
		require.Len(t, f.inventory.restores, 1)
		assert.Equal(t, restoreCall{1, 2, 1, 0}, f.inventory.restores[0])
		assert.Equal(t, 0, f.locks.Len())
		assert.Empty(t, f.events.created)
	})

	t.Run("durably booked seat trips the secondary check", func(t *testing.T) {
		f := newEngineFixture(t)
		first := f.request([]uint64{11}, []SelectedGood{{GoodsID: 1, Quantity: 1}})
		_, err := f.svc.CreateBooking(ctx, first)
		require.NoError(t, err)

		// First booker's lock expires but the booking row remains.
		require.NoError(t, f.locks.ReleaseAll(ctx, 1, 100))

		second := f.request([]uint64{11}, []SelectedGood{{GoodsID: 1, Quantity: 1}})
		second.UserID = 200
		_, err = f.svc.CreateBooking(ctx, second)
		assert.ErrorIs(t, err, repository.ErrSeatTaken)

		// The failed attempt compensated its consume.
		seatsLeft, _, _ := f.inventory.counters(1)
		assert.Equal(t, 5, seatsLeft)
	})

	t.Run("concurrent attempts on one seat produce exactly one booking", func(t *testing.T) {
		f := newEngineFixture(t)

		const attempts = 16
		var wg sync.WaitGroup
		results := make([]error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				req := f.request([]uint64{11}, []SelectedGood{{GoodsID: 1, Quantity: 1}})
				req.UserID = uint64(1000 + i)
				_, err := f.svc.CreateBooking(ctx, req)
				results[i] = err
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range results {
			if err == nil {
				wins++
			} else {
				assert.True(t,
					errors.Is(err, ErrSeatLocked) ||
						errors.Is(err, repository.ErrSeatTaken) ||
						errors.Is(err, repository.ErrVersionConflict),
					"unexpected loser error: %v", err)
			}
		}
		assert.Equal(t, 1, wins)

		seatsLeft, _, _ := f.inventory.counters(1)
		assert.Equal(t, 5, seatsLeft)
	})
}

func TestBookingReads(t *testing.T) {
	ctx := context.Background()

	t.Run("owner sees detail with payment deadline", func(t *testing.T) {
		f := newEngineFixture(t)
		res, err := f.svc.CreateBooking(ctx, f.request([]uint64{11}, []SelectedGood{{GoodsID: 1, Quantity: 1}}))
		require.NoError(t, err)

		detail, err := f.svc.GetBooking(ctx, 100, res.Booking.ID)
		require.NoError(t, err)
		assert.Equal(t, res.Booking.OrderNo, detail.Booking.OrderNo)
		assert.Len(t, detail.Seats, 1)
		assert.Equal(t, f.now.Add(PaymentWindow), detail.ExpiresAt)
	})

	t.Run("configured payment window drives the reported deadline", func(t *testing.T) {
		f := newEngineFixture(t)
		window := 5 * time.Minute
		f.svc = NewBookingService(f.sessions, f.inventory, f.goods, f.seats, f.bookings, f.locks, f.events, window)
		f.svc.now = func() time.Time { return f.now }

		res, err := f.svc.CreateBooking(ctx, f.request([]uint64{11}, []SelectedGood{{GoodsID: 1, Quantity: 1}}))
		require.NoError(t, err)
		assert.Equal(t, f.now.Add(window), res.ExpiresAt)

		detail, err := f.svc.GetBooking(ctx, 100, res.Booking.ID)
		require.NoError(t, err)
		assert.Equal(t, res.ExpiresAt, detail.ExpiresAt)
	})

	t.Run("later catalog price edits never change what a booking owes", func(t *testing.T) {
		f := newEngineFixture(t)
		res, err := f.svc.CreateBooking(ctx, f.request([]uint64{11}, []SelectedGood{{GoodsID: 1, Quantity: 1}}))
		require.NoError(t, err)

		for i := range f.goods.catalog {
			f.goods.catalog[i].PriceCents *= 2
		}

		detail, err := f.svc.GetBooking(ctx, 100, res.Booking.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(28800), detail.Booking.TotalAmountCents)
		require.Len(t, detail.Goods, 1)
		assert.Equal(t, int64(28800), detail.Goods[0].PriceCents)
	})

	t.Run("other users are forbidden", func(t *testing.T) {
		f := newEngineFixture(t)
		res, err := f.svc.CreateBooking(ctx, f.request([]uint64{11}, []SelectedGood{{GoodsID: 1, Quantity: 1}}))
		require.NoError(t, err)

		_, err = f.svc.GetBooking(ctx, 200, res.Booking.ID)
		assert.ErrorIs(t, err, repository.ErrForbidden)
	})

	t.Run("missing booking is not found", func(t *testing.T) {
		f := newEngineFixture(t)
		_, err := f.svc.GetBooking(ctx, 100, 42)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("list returns only the user's bookings", func(t *testing.T) {
		f := newEngineFixture(t)
		_, err := f.svc.CreateBooking(ctx, f.request([]uint64{11}, []SelectedGood{{GoodsID: 1, Quantity: 1}}))
		require.NoError(t, err)

		other := f.request([]uint64{13}, []SelectedGood{{GoodsID: 2, Quantity: 1}})
		other.UserID = 200
		_, err = f.svc.CreateBooking(ctx, other)
		require.NoError(t, err)

		mine, err := f.svc.ListBookings(ctx, 100)
		require.NoError(t, err)
		assert.Len(t, mine, 1)
	})
}
