package service

import (
	"context"
	"log"
	"time"

	"github.com/nianhua/banquet-reservation/internal/lock"
	"github.com/nianhua/banquet-reservation/internal/model"
	"github.com/nianhua/banquet-reservation/internal/queue"
	"github.com/nianhua/banquet-reservation/internal/repository"
)

// DefaultSweepInterval is how often the sweep wakes up.
const DefaultSweepInterval = 30 * time.Second

// SweepStore is the persistence surface of the expiration sweep.
type SweepStore interface {
	ListExpiredPending(ctx context.Context, olderThan time.Time) ([]repository.ExpiredBooking, error)
	GoodsLines(ctx context.Context, bookingID uint64) ([]model.BookingGoods, error)
	CancelAndRestore(ctx context.Context, bookingID, inventoryID uint64, seatDelta, makeupDelta, photoDelta int) (bool, error)
}

// Sweeper cancels pending bookings whose payment window has lapsed,
// credits their stock back to the inventory ledger, and releases
// their seat locks.  One booking failing to expire never blocks the
// rest of the batch.
type Sweeper struct {
	sweeps   SweepStore
	goods    GoodsStore
	locks    lock.Table
	events   EventPublisher
	window   time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewSweeper wires a sweeper.  Zero durations fall back to
// PaymentWindow and DefaultSweepInterval; events may be nil.
func NewSweeper(sweeps SweepStore, goods GoodsStore, locks lock.Table, events EventPublisher,
	window, interval time.Duration) *Sweeper {
	if window <= 0 {
		window = PaymentWindow
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		sweeps:   sweeps,
		goods:    goods,
		locks:    locks,
		events:   events,
		window:   window,
		interval: interval,
		now:      time.Now,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
// Meant to be started as a goroutine from main.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("sweeper: running every %s, payment window %s", s.interval, s.window)
	for {
		select {
		case <-ctx.Done():
			log.Printf("sweeper: stopped: %v", ctx.Err())
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				log.Printf("sweeper: sweep failed: %v", err)
			}
		}
	}
}

// SweepOnce performs a single pass: evict stale seat locks, then
// cancel every pending booking older than the payment window.
// Returns how many bookings this pass cancelled.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	if n, err := s.locks.SweepExpired(ctx); err != nil {
		log.Printf("sweeper: lock sweep failed: %v", err)
	} else if n > 0 {
		log.Printf("sweeper: evicted %d stale seat locks", n)
	}

	cutoff := s.now().Add(-s.window)
	expired, err := s.sweeps.ListExpiredPending(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, e := range expired {
		done, err := s.expireOne(ctx, e)
		if err != nil {
			log.Printf("sweeper: expire booking %d (%s): %v", e.ID, e.OrderNo, err)
			continue
		}
		if done {
			cancelled++
		}
	}
	if cancelled > 0 {
		log.Printf("sweeper: cancelled %d expired bookings", cancelled)
	}
	return cancelled, nil
}

// expireOne recomputes what the booking consumed from its goods lines
// and hands cancellation plus the inventory credit to the store as one
// atomic, status-gated operation.  If the status gate reports the
// booking already left pending (paid, or another sweep won), nothing
// is credited and nothing is released.
func (s *Sweeper) expireOne(ctx context.Context, e repository.ExpiredBooking) (bool, error) {
	lines, err := s.sweeps.GoodsLines(ctx, e.ID)
	if err != nil {
		return false, err
	}
	ids := make([]uint64, len(lines))
	selection := make([]SelectedGood, len(lines))
	for i, l := range lines {
		ids[i] = l.GoodsID
		selection[i] = SelectedGood{GoodsID: l.GoodsID, Quantity: l.Quantity}
	}
	catalog, err := s.goods.GetByIDs(ctx, ids)
	if err != nil {
		return false, err
	}
	cons, err := ComputeConsumption(catalog, selection)
	if err != nil {
		return false, err
	}

	done, err := s.sweeps.CancelAndRestore(ctx, e.ID, e.DailySessionID,
		cons.Seats(), cons.Makeup, cons.Photography)
	if err != nil || !done {
		return false, err
	}

	if err := s.locks.ReleaseAll(ctx, e.DailySessionID, e.UserID); err != nil {
		log.Printf("sweeper: release locks for booking %d: %v", e.ID, err)
	}
	s.publishCancelled(ctx, e)
	return true, nil
}

func (s *Sweeper) publishCancelled(ctx context.Context, e repository.ExpiredBooking) {
	if s.events == nil {
		return
	}
	ev := queue.BookingCancelledEvent{
		BookingID:   e.ID,
		OrderNo:     e.OrderNo,
		UserID:      e.UserID,
		BookingDate: e.BookingDate.Format(model.DateLayout),
		Reason:      "payment window expired",
		CancelledAt: s.now().UTC().Format(time.RFC3339),
	}
	if err := s.events.PublishBookingCancelled(ctx, ev); err != nil {
		log.Printf("sweeper: publish cancelled event for %s: %v", e.OrderNo, err)
	}
}
