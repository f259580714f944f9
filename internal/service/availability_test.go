package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nianhua/banquet-reservation/internal/model"
	"github.com/nianhua/banquet-reservation/internal/repository"
)

func TestGetSeatMap(t *testing.T) {
	ctx := context.Background()

	t.Run("derives seat states from bookings and locks", func(t *testing.T) {
		f := newEngineFixture(t)

		// Seat 11 durably booked, seat 13 held by an in-flight attempt.
		_, err := f.svc.CreateBooking(ctx, f.request([]uint64{11}, []SelectedGood{{GoodsID: 1, Quantity: 1}}))
		require.NoError(t, err)
		require.NoError(t, f.locks.ReleaseAll(ctx, 1, 100))
		ok, err := f.locks.TryAcquire(ctx, 1, 13, 200)
		require.NoError(t, err)
		require.True(t, ok)

		sm, err := f.svc.GetSeatMap(ctx, model.SessionLunch, "2026-03-20")
		require.NoError(t, err)

		assert.Equal(t, "Lunch Banquet", sm.SessionName)
		assert.Equal(t, 5, sm.AvailableSeats)
		require.Len(t, sm.Seats, 6)

		states := make(map[uint64]model.SeatState, len(sm.Seats))
		for _, s := range sm.Seats {
			states[s.SeatID] = s.State
		}
		assert.Equal(t, model.SeatBooked, states[11])
		assert.Equal(t, model.SeatHeld, states[13])
		assert.Equal(t, model.SeatAvailable, states[12])
		assert.Equal(t, model.SeatAvailable, states[15])

		require.Len(t, sm.Zones, 3)
		byZone := make(map[model.Zone]ZoneAvailability, len(sm.Zones))
		for _, z := range sm.Zones {
			byZone[z.Zone] = z
		}
		assert.Equal(t, ZoneAvailability{Zone: model.ZoneFront, Capacity: 2, Booked: 1, Available: 1}, byZone[model.ZoneFront])
		assert.Equal(t, ZoneAvailability{Zone: model.ZoneMiddle, Capacity: 2, Held: 1, Available: 1}, byZone[model.ZoneMiddle])
		assert.Equal(t, ZoneAvailability{Zone: model.ZoneBack, Capacity: 2, Available: 2}, byZone[model.ZoneBack])
	})

	t.Run("unknown session type fails validation", func(t *testing.T) {
		f := newEngineFixture(t)
		_, err := f.svc.GetSeatMap(ctx, "brunch", "2026-03-20")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("malformed date fails validation", func(t *testing.T) {
		f := newEngineFixture(t)
		_, err := f.svc.GetSeatMap(ctx, model.SessionLunch, "20-03-2026")
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestCheckSeats(t *testing.T) {
	ctx := context.Background()

	t.Run("reports availability per seat", func(t *testing.T) {
		f := newEngineFixture(t)
		ok, err := f.locks.TryAcquire(ctx, 1, 12, 200)
		require.NoError(t, err)
		require.True(t, ok)

		res, err := f.svc.CheckSeats(ctx, CheckSeatsRequest{
			SessionType: model.SessionLunch,
			Date:        "2026-03-20",
			SeatIDs:     []uint64{11, 12},
		})
		require.NoError(t, err)
		assert.False(t, res.AllAvailable)
		require.Len(t, res.Seats, 2)
		assert.Equal(t, model.SeatAvailable, res.Seats[0].State)
		assert.Equal(t, model.SeatHeld, res.Seats[1].State)
	})

	t.Run("all free selection is bookable", func(t *testing.T) {
		f := newEngineFixture(t)
		res, err := f.svc.CheckSeats(ctx, CheckSeatsRequest{
			SessionType: model.SessionLunch,
			Date:        "2026-03-20",
			SeatIDs:     []uint64{15, 16},
		})
		require.NoError(t, err)
		assert.True(t, res.AllAvailable)
		assert.True(t, res.InventoryOK)
	})

	t.Run("goods selection beyond remaining stock flags inventory", func(t *testing.T) {
		f := newEngineFixture(t)
		// The fixture template carries a single photography slot.
		f.goods.catalog = append(f.goods.catalog, model.Goods{
			ID: 5, Name: "photo package", Category: model.CategoryPhotography, PriceCents: 12900, Active: true,
		})
		res, err := f.svc.CheckSeats(ctx, CheckSeatsRequest{
			SessionType: model.SessionLunch,
			Date:        "2026-03-20",
			SeatIDs:     []uint64{15},
			Goods:       []SelectedGood{{GoodsID: 5, Quantity: 2}},
		})
		require.NoError(t, err)
		assert.True(t, res.AllAvailable)
		assert.False(t, res.InventoryOK)
	})

	t.Run("unknown seat is not found", func(t *testing.T) {
		f := newEngineFixture(t)
		_, err := f.svc.CheckSeats(ctx, CheckSeatsRequest{
			SessionType: model.SessionLunch,
			Date:        "2026-03-20",
			SeatIDs:     []uint64{11, 77},
		})
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}
