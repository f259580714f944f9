// Package service contains the booking engine: zone quota validation,
// the booking orchestrator with its compensation paths, seat
// availability checks and the expiration sweep.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/nianhua/banquet-reservation/internal/lock"
	"github.com/nianhua/banquet-reservation/internal/model"
	"github.com/nianhua/banquet-reservation/internal/queue"
	"github.com/nianhua/banquet-reservation/internal/repository"
)

// PaymentWindow is how long a pending booking holds its seats and
// stock before the sweep cancels it.
const PaymentWindow = 10 * time.Minute

// SessionStore resolves session templates.
type SessionStore interface {
	GetByType(ctx context.Context, t model.SessionType) (*model.SessionTemplate, error)
	GetByID(ctx context.Context, id uint64) (*model.SessionTemplate, error)
}

// InventoryStore is the ledger of per-date counters.
type InventoryStore interface {
	GetOrCreate(ctx context.Context, tpl *model.SessionTemplate, date time.Time) (*model.DailyInventory, error)
	TryConsume(ctx context.Context, inv *model.DailyInventory, seatDelta, makeupDelta, photoDelta int) error
	Refresh(ctx context.Context, inv *model.DailyInventory) error
	Restore(ctx context.Context, inventoryID uint64, seatDelta, makeupDelta, photoDelta int) error
}

// GoodsStore resolves catalog rows.
type GoodsStore interface {
	GetByIDs(ctx context.Context, ids []uint64) ([]model.Goods, error)
}

// SeatStore resolves seat template rows.
type SeatStore interface {
	GetByIDs(ctx context.Context, sessionID uint64, ids []uint64) ([]model.Seat, error)
	ListBySession(ctx context.Context, sessionID uint64) ([]model.Seat, error)
}

// BookingStore persists and reads bookings.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking, seats []model.BookingSeat, goods []model.BookingGoods) error
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
	SeatLines(ctx context.Context, bookingID uint64) ([]model.BookingSeat, error)
	GoodsLines(ctx context.Context, bookingID uint64) ([]model.BookingGoods, error)
	BookedSeatIDs(ctx context.Context, dailySessionID uint64) (map[uint64]struct{}, error)
}

// EventPublisher pushes domain events to the broker. Failures are
// logged, never surfaced to the booking caller.
type EventPublisher interface {
	PublishBookingCreated(ctx context.Context, ev queue.BookingCreatedEvent) error
	PublishBookingCancelled(ctx context.Context, ev queue.BookingCancelledEvent) error
}

// BookingService orchestrates booking creation and reads.
type BookingService struct {
	sessions  SessionStore
	inventory InventoryStore
	goods     GoodsStore
	seats     SeatStore
	bookings  BookingStore
	locks     lock.Table
	events    EventPublisher
	window    time.Duration
	now       func() time.Time
}

// NewBookingService wires the orchestrator. events may be nil when no
// broker is configured. The window is the payment deadline reported
// on new bookings; it must match the sweeper's so callers are never
// promised a later deadline than the sweep enforces. Zero falls back
// to PaymentWindow.
func NewBookingService(sessions SessionStore, inventory InventoryStore, goods GoodsStore,
	seats SeatStore, bookings BookingStore, locks lock.Table, events EventPublisher,
	window time.Duration) *BookingService {
	if window <= 0 {
		window = PaymentWindow
	}
	return &BookingService{
		sessions:  sessions,
		inventory: inventory,
		goods:     goods,
		seats:     seats,
		bookings:  bookings,
		locks:     locks,
		events:    events,
		window:    window,
		now:       time.Now,
	}
}

// CreateBookingRequest is the engine-level input for placing a booking.
type CreateBookingRequest struct {
	UserID      uint64
	ThemeID     uint64
	SessionType model.SessionType
	Date        string // YYYY-MM-DD
	SeatIDs     []uint64
	Goods       []SelectedGood
}

// CreateBookingResult is the placed booking with its line items and
// payment deadline.
type CreateBookingResult struct {
	Booking   *model.Booking
	Seats     []model.BookingSeat
	Goods     []model.BookingGoods
	ExpiresAt time.Time
}

// orderSeq disambiguates order numbers minted in the same second.
var orderSeq uint64

func (s *BookingService) newOrderNo() string {
	seq := atomic.AddUint64(&orderSeq, 1) % 10000
	return fmt.Sprintf("%d%04d", s.now().Unix(), seq)
}

// CreateBooking runs the full pipeline: validate the request, resolve
// session and per-date inventory, check the goods entitlement against
// the chosen seats zone by zone, take seat locks all-or-nothing,
// consume inventory optimistically, persist, and publish. Every
// failure after a side effect compensates that side effect, so a
// failed booking leaves no seat locked and no stock consumed.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*CreateBookingResult, error) {
	if req.UserID == 0 {
		return nil, fmt.Errorf("%w: missing user", ErrValidation)
	}
	if !req.SessionType.Valid() {
		return nil, fmt.Errorf("%w: unknown session type %q", ErrValidation, req.SessionType)
	}
	if len(req.SeatIDs) == 0 {
		return nil, fmt.Errorf("%w: no seats selected", ErrValidation)
	}
	if len(req.Goods) == 0 {
		return nil, fmt.Errorf("%w: no goods selected", ErrValidation)
	}
	if dup := firstDuplicate(req.SeatIDs); dup != 0 {
		return nil, fmt.Errorf("%w: seat %d selected twice", ErrValidation, dup)
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if today := s.today(); date.Before(today) {
		return nil, fmt.Errorf("%w: date %s is in the past", ErrValidation, req.Date)
	}

	tpl, err := s.sessions.GetByType(ctx, req.SessionType)
	if err != nil {
		return nil, err
	}
	inv, err := s.inventory.GetOrCreate(ctx, tpl, date)
	if err != nil {
		return nil, err
	}

	// Resolve and validate the goods selection.
	ids := make([]uint64, len(req.Goods))
	for i, g := range req.Goods {
		ids[i] = g.GoodsID
	}
	catalog, err := s.goods.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, g := range catalog {
		if !g.Active {
			return nil, fmt.Errorf("%w: goods %q is no longer available", ErrValidation, g.Name)
		}
	}
	want, err := ComputeConsumption(catalog, req.Goods)
	if err != nil {
		return nil, err
	}
	if want.Seats() != len(req.SeatIDs) {
		return nil, fmt.Errorf("%w: goods entitle %d seat(s), %d selected", ErrValidation, want.Seats(), len(req.SeatIDs))
	}

	// Resolve the seats and match them against the entitlement.
	seats, err := s.seats.GetByIDs(ctx, tpl.ID, req.SeatIDs)
	if err != nil {
		return nil, err
	}
	if len(seats) != len(req.SeatIDs) {
		return nil, fmt.Errorf("%w: %d seat(s) not found in this session", repository.ErrNotFound, len(req.SeatIDs)-len(seats))
	}
	if err := ValidateZoneQuota(seats, want); err != nil {
		return nil, err
	}

	// Take every seat lock or none. The lock scope is the daily
	// inventory row so the same seat on another date is unaffected.
	acquired := make([]uint64, 0, len(seats))
	for _, seat := range seats {
		ok, err := s.locks.TryAcquire(ctx, inv.ID, seat.ID, req.UserID)
		if err == nil && !ok {
			err = fmt.Errorf("%w: seat %s", ErrSeatLocked, seat.SeatName)
		}
		if err != nil {
			s.releaseSeats(ctx, inv.ID, acquired, req.UserID)
			return nil, err
		}
		acquired = append(acquired, seat.ID)
	}

	// Consume inventory. One retry on a lost version race; every
	// failure gives the locks back.
	if err := s.consumeWithRetry(ctx, inv, want); err != nil {
		s.releaseSeats(ctx, inv.ID, acquired, req.UserID)
		return nil, err
	}

	booking := &model.Booking{
		UserID:           req.UserID,
		ThemeID:          req.ThemeID,
		DailySessionID:   inv.ID,
		OrderNo:          s.newOrderNo(),
		TotalAmountCents: goodsTotal(catalog, req.Goods),
		SeatCount:        len(seats),
		BookingDate:      date,
		Status:           model.StatusPending,
		CreatedAt:        s.now().UTC(),
	}
	seatLines := make([]model.BookingSeat, len(seats))
	for i, seat := range seats {
		seatLines[i] = model.BookingSeat{
			SeatID:     seat.ID,
			SeatName:   seat.SeatName,
			Zone:       seat.Zone,
			PriceCents: seat.PriceCents,
		}
	}
	goodsLines := make([]model.BookingGoods, len(req.Goods))
	for i, sel := range req.Goods {
		goodsLines[i] = model.BookingGoods{
			GoodsID:    sel.GoodsID,
			Quantity:   sel.Quantity,
			PriceCents: goodsPrice(catalog, sel.GoodsID),
		}
	}

	if err := s.bookings.Create(ctx, booking, seatLines, goodsLines); err != nil {
		// Persist failed after the consume committed: credit the
		// stock back and release the locks.
		if rerr := s.inventory.Restore(ctx, inv.ID, want.Seats(), want.Makeup, want.Photography); rerr != nil {
			log.Printf("booking: restore after failed persist: inventory=%d: %v", inv.ID, rerr)
		}
		s.releaseSeats(ctx, inv.ID, acquired, req.UserID)
		return nil, err
	}

	s.publishCreated(ctx, booking, tpl, seatLines)

	return &CreateBookingResult{
		Booking:   booking,
		Seats:     seatLines,
		Goods:     goodsLines,
		ExpiresAt: booking.CreatedAt.Add(s.window),
	}, nil
}

func (s *BookingService) consumeWithRetry(ctx context.Context, inv *model.DailyInventory, want Consumption) error {
	err := s.inventory.TryConsume(ctx, inv, want.Seats(), want.Makeup, want.Photography)
	if !errors.Is(err, repository.ErrVersionConflict) {
		return err
	}
	if rerr := s.inventory.Refresh(ctx, inv); rerr != nil {
		return rerr
	}
	return s.inventory.TryConsume(ctx, inv, want.Seats(), want.Makeup, want.Photography)
}

func (s *BookingService) releaseSeats(ctx context.Context, scopeID uint64, seatIDs []uint64, holderID uint64) {
	for _, id := range seatIDs {
		if err := s.locks.Release(ctx, scopeID, id, holderID); err != nil {
			log.Printf("booking: release seat lock %d/%d: %v", scopeID, id, err)
		}
	}
}

func (s *BookingService) publishCreated(ctx context.Context, b *model.Booking, tpl *model.SessionTemplate, seats []model.BookingSeat) {
	if s.events == nil {
		return
	}
	names := make([]string, len(seats))
	for i, seat := range seats {
		names[i] = seat.SeatName
	}
	ev := queue.BookingCreatedEvent{
		BookingID:        b.ID,
		OrderNo:          b.OrderNo,
		UserID:           b.UserID,
		ThemeID:          b.ThemeID,
		SessionName:      tpl.SessionName,
		SessionType:      string(tpl.SessionType),
		BookingDate:      b.BookingDate.Format(model.DateLayout),
		SeatNames:        names,
		TotalAmountCents: b.TotalAmountCents,
		CreatedAt:        s.now().UTC().Format(time.RFC3339),
	}
	if err := s.events.PublishBookingCreated(ctx, ev); err != nil {
		log.Printf("booking: publish created event for %s: %v", b.OrderNo, err)
	}
}

func (s *BookingService) today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BookingDetail is a booking with its line items and, while pending,
// the payment deadline.
type BookingDetail struct {
	Booking   *model.Booking
	Seats     []model.BookingSeat
	Goods     []model.BookingGoods
	ExpiresAt time.Time // zero unless the booking is pending
}

// ListBookings returns the user's bookings, newest first.
func (s *BookingService) ListBookings(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// GetBooking returns one booking with its lines. Users can only see
// their own bookings; anything else is ErrForbidden.
func (s *BookingService) GetBooking(ctx context.Context, userID, bookingID uint64) (*BookingDetail, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, repository.ErrForbidden
	}
	seats, err := s.bookings.SeatLines(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	goods, err := s.bookings.GoodsLines(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	detail := &BookingDetail{Booking: b, Seats: seats, Goods: goods}
	if b.Status == model.StatusPending {
		detail.ExpiresAt = b.CreatedAt.Add(s.window)
	}
	return detail, nil
}

func goodsTotal(catalog []model.Goods, selection []SelectedGood) int64 {
	var total int64
	for _, sel := range selection {
		total += goodsPrice(catalog, sel.GoodsID) * int64(sel.Quantity)
	}
	return total
}

func goodsPrice(catalog []model.Goods, id uint64) int64 {
	for _, g := range catalog {
		if g.ID == id {
			return g.PriceCents
		}
	}
	return 0
}

func firstDuplicate(ids []uint64) uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return id
		}
		seen[id] = struct{}{}
	}
	return 0
}
