package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// maxWebhookBody bounds gateway callback payloads
const maxWebhookBody = 1 << 20

// PaymentProcessor charges bookings and applies gateway callbacks
type PaymentProcessor interface {
	ProcessBookingPayment(ctx context.Context, tenantID, bookingID int64, req *models.PayBookingRequest) (*models.PayBookingResponse, error)
	HandleWebhook(ctx context.Context, body []byte) error
}

// PaymentHandler handles booking payments and gateway webhooks
type PaymentHandler struct {
	payments PaymentProcessor
	bookings BookingManager
	logger   *logrus.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(payments PaymentProcessor, bookings BookingManager, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		bookings: bookings,
		logger:   logger,
	}
}

// PayBooking handles POST /api/v1/bookings/:id/pay
func (h *PaymentHandler) PayBooking(c *gin.Context) {
	tenantID, userCtx, ok := requestScope(c)
	if !ok {
		return
	}
	bookingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.PayBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	booking, err := h.bookings.GetBooking(c.Request.Context(), tenantID, bookingID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !isStaff(userCtx) && booking.UserID != userCtx.UserID {
		respondError(c, h.logger, models.NotFoundf("booking", bookingID))
		return
	}

	resp, err := h.payments.ProcessBookingPayment(c.Request.Context(), tenantID, bookingID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	status := http.StatusOK
	if resp.CheckoutURL != "" {
		status = http.StatusAccepted
	}
	c.JSON(status, resp)
}

// Webhook handles POST /api/v1/payments/webhook. It is unauthenticated;
// the gateway adapter verifies the payload.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.payments.HandleWebhook(c.Request.Context(), body); err != nil {
		h.logger.WithError(err).Warn("Payment webhook rejected")
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
