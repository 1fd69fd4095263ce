package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/courtly/court-booking-backend/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// BookingManager is the booking lifecycle used by the HTTP layer
type BookingManager interface {
	CreateBooking(ctx context.Context, tenantID int64, in *models.CreateBookingInput) (*models.Booking, error)
	GetBooking(ctx context.Context, tenantID, bookingID int64) (*models.Booking, error)
	ListBookingsForUser(ctx context.Context, tenantID, userID int64, limit, offset int) ([]models.Booking, error)
	GetBookingSummary(ctx context.Context, tenantID, bookingID int64) (*models.BookingSummary, error)
	CancelBooking(ctx context.Context, tenantID, bookingID int64, issueRefund bool) (*models.Booking, int64, error)
	RescheduleBooking(ctx context.Context, tenantID, bookingID int64, date time.Time, iv models.Interval) (*models.Booking, error)
	ConfirmBooking(ctx context.Context, tenantID, bookingID int64, method models.PaymentMethod) (*models.Booking, error)
	CompleteBooking(ctx context.Context, tenantID, bookingID int64) (*models.Booking, error)
	MarkNoShow(ctx context.Context, tenantID, bookingID int64) (*models.Booking, error)
	CheckIn(ctx context.Context, tenantID, bookingID int64) (*models.Booking, error)
}

// BookingHandler handles booking HTTP requests
type BookingHandler struct {
	bookings  BookingManager
	validator *validator.BookingValidator
	logger    *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookings BookingManager, v *validator.BookingValidator, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookings:  bookings,
		validator: v,
		logger:    logger,
	}
}

// ConfirmBookingRequest records how staff were paid when confirming
type ConfirmBookingRequest struct {
	PaymentMethod string `json:"payment_method"`
	Reference     string `json:"reference"`
}

// paymentMethod defaults to cash, the usual front-desk case
func (r *ConfirmBookingRequest) paymentMethod() (models.PaymentMethod, error) {
	if r.PaymentMethod == "" {
		return models.CashPayment(), nil
	}
	kind, err := models.ParsePaymentMethodKind(r.PaymentMethod)
	if err != nil {
		return models.PaymentMethod{}, err
	}
	switch kind {
	case models.PaymentMethodCard:
		if r.Reference == "" {
			return models.PaymentMethod{}, models.NewValidationError("reference", "is required for card payments")
		}
		return models.CardPayment(r.Reference), nil
	case models.PaymentMethodWallet:
		return models.WalletPayment(), nil
	default:
		return models.CashPayment(), nil
	}
}

// loadBooking fetches a booking the caller may act on. Members only see
// their own bookings; anything else reads as not found.
func (h *BookingHandler) loadBooking(c *gin.Context) (int64, *models.Booking, bool) {
	tenantID, userCtx, ok := requestScope(c)
	if !ok {
		return 0, nil, false
	}
	bookingID, ok := parseIDParam(c, "id")
	if !ok {
		return 0, nil, false
	}

	booking, err := h.bookings.GetBooking(c.Request.Context(), tenantID, bookingID)
	if err != nil {
		respondError(c, h.logger, err)
		return 0, nil, false
	}
	if !isStaff(userCtx) && booking.UserID != userCtx.UserID {
		respondError(c, h.logger, models.NotFoundf("booking", bookingID))
		return 0, nil, false
	}
	return tenantID, booking, true
}

// CreateBooking handles POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	tenantID, userCtx, ok := requestScope(c)
	if !ok {
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	userID := userCtx.UserID
	if req.UserID != nil && *req.UserID != userCtx.UserID {
		if !isStaff(userCtx) {
			c.JSON(http.StatusForbidden, ErrorResponse{
				Error:   "forbidden",
				Message: "Only staff can book on behalf of another user",
				Code:    "INSUFFICIENT_PERMISSIONS",
			})
			return
		}
		userID = *req.UserID
	}

	input, err := h.validator.ValidateCreate(&req, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	booking, err := h.bookings.CreateBooking(c.Request.Context(), tenantID, input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Booking created",
		"booking": booking,
	})
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	_, booking, ok := h.loadBooking(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// ListBookings handles GET /api/v1/bookings. Staff may pass ?user_id=.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	tenantID, userCtx, ok := requestScope(c)
	if !ok {
		return
	}

	userID := userCtx.UserID
	if isStaff(userCtx) {
		if other := queryInt(c, "user_id", 0); other > 0 {
			userID = int64(other)
		}
	}

	limit := queryInt(c, "limit", defaultPageSize)
	if limit == 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := queryInt(c, "offset", 0)

	bookings, err := h.bookings.ListBookingsForUser(c.Request.Context(), tenantID, userID, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"total":    len(bookings),
		"limit":    limit,
		"offset":   offset,
	})
}

// GetBookingSummary handles GET /api/v1/bookings/:id/summary
func (h *BookingHandler) GetBookingSummary(c *gin.Context) {
	tenantID, booking, ok := h.loadBooking(c)
	if !ok {
		return
	}

	summary, err := h.bookings.GetBookingSummary(c.Request.Context(), tenantID, booking.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	tenantID, booking, ok := h.loadBooking(c)
	if !ok {
		return
	}

	var req models.CancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}

	cancelled, refunded, err := h.bookings.CancelBooking(c.Request.Context(), tenantID, booking.ID, req.ShouldRefund())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "Booking cancelled",
		"booking":        cancelled,
		"refunded_cents": refunded,
	})
}

// RescheduleBooking handles POST /api/v1/bookings/:id/reschedule
func (h *BookingHandler) RescheduleBooking(c *gin.Context) {
	tenantID, booking, ok := h.loadBooking(c)
	if !ok {
		return
	}

	var req models.RescheduleBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	date, iv, err := h.validator.ValidateReschedule(&req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	moved, err := h.bookings.RescheduleBooking(c.Request.Context(), tenantID, booking.ID, date, iv)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Booking rescheduled",
		"booking": moved,
	})
}

// ConfirmBooking handles POST /api/v1/bookings/:id/confirm (staff only)
func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	tenantID, _, ok := requestScope(c)
	if !ok {
		return
	}
	bookingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req ConfirmBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}
	method, err := req.paymentMethod()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	booking, err := h.bookings.ConfirmBooking(c.Request.Context(), tenantID, bookingID, method)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Booking confirmed",
		"booking": booking,
	})
}

// staffTransition runs a staff-only status change on :id
func (h *BookingHandler) staffTransition(c *gin.Context, message string, fn func(ctx context.Context, tenantID, bookingID int64) (*models.Booking, error)) {
	tenantID, _, ok := requestScope(c)
	if !ok {
		return
	}
	bookingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	booking, err := fn(c.Request.Context(), tenantID, bookingID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"booking": booking,
	})
}

// CompleteBooking handles POST /api/v1/bookings/:id/complete (staff only)
func (h *BookingHandler) CompleteBooking(c *gin.Context) {
	h.staffTransition(c, "Booking completed", h.bookings.CompleteBooking)
}

// MarkNoShow handles POST /api/v1/bookings/:id/no-show (staff only)
func (h *BookingHandler) MarkNoShow(c *gin.Context) {
	h.staffTransition(c, "Booking marked as no-show", h.bookings.MarkNoShow)
}

// CheckIn handles POST /api/v1/bookings/:id/check-in (staff only)
func (h *BookingHandler) CheckIn(c *gin.Context) {
	h.staffTransition(c, "Checked in", h.bookings.CheckIn)
}
