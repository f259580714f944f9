// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingCreatedEvent is published when a booking is successfully
// placed (pending payment). It carries enough information for
// downstream consumers to log, notify, or trigger analytics without
// querying the primary database.
type BookingCreatedEvent struct {
	BookingID        uint64   `json:"booking_id"`
	OrderNo          string   `json:"order_no"`
	UserID           uint64   `json:"user_id"`
	ThemeID          uint64   `json:"theme_id"`
	SessionName      string   `json:"session_name"`
	SessionType      string   `json:"session_type"`
	BookingDate      string   `json:"booking_date"`
	SeatNames        []string `json:"seats"`
	TotalAmountCents int64    `json:"total_amount_cents"`
	CreatedAt        string   `json:"created_at"`
}

// BookingCancelledEvent is published when a pending booking is
// cancelled by the expiration sweep and its stock credited back.
type BookingCancelledEvent struct {
	BookingID   uint64 `json:"booking_id"`
	OrderNo     string `json:"order_no"`
	UserID      uint64 `json:"user_id"`
	BookingDate string `json:"booking_date"`
	Reason      string `json:"reason"`
	CancelledAt string `json:"cancelled_at"`
}
