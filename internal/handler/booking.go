package handler

import (
	"context"  // context for passing request-scoped deadlines to the service
	"errors"   // errors.Is comparisons against sentinel errors
	"net/http" // HTTP status codes
	"strconv"  // parsing path parameters
	"time"     // formatting timestamps in responses

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/nianhua/banquet-reservation/internal/model"
	"github.com/nianhua/banquet-reservation/internal/repository"
	"github.com/nianhua/banquet-reservation/internal/service"
)

// BookingService is the engine surface the HTTP layer depends on.
// *service.BookingService satisfies it; tests substitute a stub.
type BookingService interface {
	CreateBooking(ctx context.Context, req service.CreateBookingRequest) (*service.CreateBookingResult, error)
	CheckSeats(ctx context.Context, req service.CheckSeatsRequest) (*service.CheckSeatsResult, error)
	GetSeatMap(ctx context.Context, sessionType model.SessionType, date string) (*service.SeatMap, error)
	ListBookings(ctx context.Context, userID uint64) ([]model.Booking, error)
	GetBooking(ctx context.Context, userID, bookingID uint64) (*service.BookingDetail, error)
}

// BookingHandler exposes the booking engine over HTTP.  All methods
// except SeatMap assume that JWT authentication has already been
// performed by middleware and may return 401 Unauthorized if the user
// ID cannot be extracted from the context.
type BookingHandler struct {
	Service BookingService
}

// NewBookingHandler constructs a new BookingHandler.  The service must
// be non-nil.
func NewBookingHandler(svc BookingService) *BookingHandler {
	if svc == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{Service: svc}
}

// createBookingBody is the JSON body accepted by POST /v1/bookings.
type createBookingBody struct {
	ThemeID     uint64                 `json:"theme_id"`
	SessionType string                 `json:"session_type"`
	Date        string                 `json:"date"`
	SeatIDs     []uint64               `json:"seat_ids"`
	Goods       []service.SelectedGood `json:"goods"`
}

// CreateBooking handles POST /v1/bookings.  It runs the full booking
// pipeline and returns 201 Created with the pending booking and its
// payment deadline.  Contention outcomes map to 409: a seat locked by
// another buyer, exhausted inventory, or a lost optimistic write.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"code": "UNAUTHORIZED", "error": "unauthorized"})
	}
	var body createBookingBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"code": "BAD_REQUEST", "error": "invalid request body"})
	}

	res, err := h.Service.CreateBooking(c.Request().Context(), service.CreateBookingRequest{
		UserID:      userID,
		ThemeID:     body.ThemeID,
		SessionType: model.SessionType(body.SessionType),
		Date:        body.Date,
		SeatIDs:     body.SeatIDs,
		Goods:       body.Goods,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, bookingJSON(res.Booking, res.Seats, res.Goods, res.ExpiresAt))
}

// CheckSeats handles POST /v1/bookings/check.  It reports the current
// state of a seat selection without taking locks or consuming stock;
// the answer is advisory and may be stale by the time a booking is
// attempted.
func (h *BookingHandler) CheckSeats(c echo.Context) error {
	if _, err := getUserID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"code": "UNAUTHORIZED", "error": "unauthorized"})
	}
	var body struct {
		SessionType string                 `json:"session_type"`
		Date        string                 `json:"date"`
		SeatIDs     []uint64               `json:"seat_ids"`
		Goods       []service.SelectedGood `json:"goods"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"code": "BAD_REQUEST", "error": "invalid request body"})
	}

	res, err := h.Service.CheckSeats(c.Request().Context(), service.CheckSeatsRequest{
		SessionType: model.SessionType(body.SessionType),
		Date:        body.Date,
		SeatIDs:     body.SeatIDs,
		Goods:       body.Goods,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// SeatMap handles GET /v1/sessions/:type/seatmap?date=YYYY-MM-DD.  It
// is public so guests can browse availability before signing in.
func (h *BookingHandler) SeatMap(c echo.Context) error {
	sessionType := model.SessionType(c.Param("type"))
	date := c.QueryParam("date")
	if date == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"code": "BAD_REQUEST", "error": "date query parameter is required"})
	}

	sm, err := h.Service.GetSeatMap(c.Request().Context(), sessionType, date)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sm)
}

// ListBookings handles GET /v1/bookings and returns the caller's
// bookings, newest first.
func (h *BookingHandler) ListBookings(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"code": "UNAUTHORIZED", "error": "unauthorized"})
	}
	bookings, err := h.Service.ListBookings(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]echo.Map, 0, len(bookings))
	for i := range bookings {
		out = append(out, bookingSummaryJSON(&bookings[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

// GetBooking handles GET /v1/bookings/:id.  Callers can only see
// their own bookings; anything else yields 403.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"code": "UNAUTHORIZED", "error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"code": "BAD_REQUEST", "error": "invalid booking id"})
	}

	detail, err := h.Service.GetBooking(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, bookingJSON(detail.Booking, detail.Seats, detail.Goods, detail.ExpiresAt))
}

// writeError maps engine errors onto the HTTP error taxonomy.  The
// body always carries a stable machine code plus the human message.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"code": "BAD_REQUEST", "error": err.Error()})
	case errors.Is(err, repository.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"code": "SESSION_NOT_FOUND", "error": "session not found"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"code": "NOT_FOUND", "error": "not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"code": "FORBIDDEN", "error": "not your booking"})
	case errors.Is(err, service.ErrSeatLocked):
		return c.JSON(http.StatusConflict, echo.Map{"code": "SEAT_ALREADY_LOCKED", "error": err.Error()})
	case errors.Is(err, repository.ErrSeatTaken):
		return c.JSON(http.StatusConflict, echo.Map{"code": "SEAT_ALREADY_LOCKED", "error": err.Error()})
	case errors.Is(err, repository.ErrInsufficient):
		return c.JSON(http.StatusConflict, echo.Map{"code": "INVENTORY_INSUFFICIENT", "error": err.Error()})
	case errors.Is(err, repository.ErrVersionConflict):
		return c.JSON(http.StatusConflict, echo.Map{"code": "CONFLICT", "error": "concurrent update, please retry"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"code": "ERROR", "error": "internal error"})
	}
}

func bookingSummaryJSON(b *model.Booking) echo.Map {
	return echo.Map{
		"id":                 b.ID,
		"order_no":           b.OrderNo,
		"theme_id":           b.ThemeID,
		"booking_date":       b.BookingDate.Format(model.DateLayout),
		"status":             b.Status,
		"seat_count":         b.SeatCount,
		"total_amount_cents": b.TotalAmountCents,
		"created_at":         b.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func bookingJSON(b *model.Booking, seats []model.BookingSeat, goods []model.BookingGoods, expiresAt time.Time) echo.Map {
	seatViews := make([]echo.Map, 0, len(seats))
	for _, s := range seats {
		seatViews = append(seatViews, echo.Map{
			"seat_id":     s.SeatID,
			"seat_name":   s.SeatName,
			"zone":        s.Zone,
			"price_cents": s.PriceCents,
		})
	}
	goodsViews := make([]echo.Map, 0, len(goods))
	for _, g := range goods {
		goodsViews = append(goodsViews, echo.Map{
			"goods_id":    g.GoodsID,
			"quantity":    g.Quantity,
			"price_cents": g.PriceCents,
		})
	}
	out := bookingSummaryJSON(b)
	out["seats"] = seatViews
	out["goods"] = goodsViews
	if !expiresAt.IsZero() {
		out["expires_at"] = expiresAt.UTC().Format(time.RFC3339)
	}
	return out
}
