package model

import "time"

// Booking statuses.  A booking is created pending and either paid
// within the payment window or cancelled by the expiration sweeper.
// Paid bookings may later move to completed or refunded by external
// collaborators; the booking engine itself only ever writes pending
// and cancelled.
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
	StatusRefunded  = "refunded"
)

// Booking is the reservation aggregate produced by a successful
// create-booking attempt.  The total amount is the sum of its goods
// line prices at creation time and is never recomputed from the
// current catalog.
//
// Fields:
//  ID               – primary key identifier.
//  UserID           – customer who made the booking.
//  ThemeID          – theme of the booked session.
//  DailySessionID   – per-date inventory row this booking consumed.
//  OrderNo          – generated order number handed to the payment
//                     collaborator.
//  TotalAmountCents – captured total price.
//  SeatCount        – number of seats in the booking.
//  BookingDate      – calendar date of the session.
//  Status           – one of the Status* constants.
type Booking struct {
	ID               uint64    // bookings.id
	UserID           uint64    // bookings.user_id
	ThemeID          uint64    // bookings.theme_id
	DailySessionID   uint64    // bookings.daily_session_id
	OrderNo          string    // bookings.order_no
	TotalAmountCents int64     // bookings.total_amount_cents
	SeatCount        int       // bookings.seat_count
	BookingDate      time.Time // bookings.booking_date
	Status           string    // bookings.status
	CreatedAt        time.Time // bookings.created_at
	UpdatedAt        time.Time // bookings.updated_at
}

// BookingSeat links a booking to one seat it consumes, with the seat
// price captured at booking time.
type BookingSeat struct {
	ID         uint64    // booking_seats.id
	BookingID  uint64    // booking_seats.booking_id
	SeatID     uint64    // booking_seats.seat_id
	SeatName   string    // booking_seats.seat_name
	Zone       Zone      // booking_seats.zone
	PriceCents int64     // booking_seats.price_cents
	CreatedAt  time.Time // booking_seats.created_at
}

// BookingGoods links a booking to one purchased good with quantity
// and the unit price captured at booking time.  Inventory restoration
// on expiry is recomputed from these rows, never from current catalog
// prices.
type BookingGoods struct {
	ID         uint64    // booking_goods.id
	BookingID  uint64    // booking_goods.booking_id
	GoodsID    uint64    // booking_goods.goods_id
	Quantity   int       // booking_goods.quantity
	PriceCents int64     // booking_goods.price_cents
	CreatedAt  time.Time // booking_goods.created_at
}
