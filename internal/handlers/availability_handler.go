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

// AvailabilityReader answers slot queries for a resource
type AvailabilityReader interface {
	GetAvailableSlots(ctx context.Context, tenantID, resourceID int64, date time.Time, duration int) ([]models.Slot, error)
	CheckAvailability(ctx context.Context, tenantID, resourceID int64, date time.Time, iv models.Interval) (bool, error)
}

// AvailabilityHandler handles slot lookups
type AvailabilityHandler struct {
	availability AvailabilityReader
	validator    *validator.BookingValidator
	logger       *logrus.Logger
}

// NewAvailabilityHandler creates a new availability handler
func NewAvailabilityHandler(availability AvailabilityReader, v *validator.BookingValidator, logger *logrus.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		availability: availability,
		validator:    v,
		logger:       logger,
	}
}

// GetSlots handles GET /api/v1/resources/:id/slots?date=YYYY-MM-DD&duration=60
func (h *AvailabilityHandler) GetSlots(c *gin.Context) {
	tenantID, _, ok := requestScope(c)
	if !ok {
		return
	}
	resourceID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	duration := queryInt(c, "duration", 0)
	date, err := h.validator.ValidateSlotQuery(c.Query("date"), duration)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	slots, err := h.availability.GetAvailableSlots(c.Request.Context(), tenantID, resourceID, date, duration)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"resource_id": resourceID,
		"date":        date.Format(models.DateLayout),
		"slots":       slots,
		"total":       len(slots),
	})
}

// CheckAvailability handles GET /api/v1/resources/:id/availability?date=&start_time=&end_time=
func (h *AvailabilityHandler) CheckAvailability(c *gin.Context) {
	tenantID, _, ok := requestScope(c)
	if !ok {
		return
	}
	resourceID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	date, err := h.validator.ValidateSlotQuery(c.Query("date"), 0)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	iv, err := h.validator.ParseInterval(c.Query("start_time"), c.Query("end_time"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	available, err := h.availability.CheckAvailability(c.Request.Context(), tenantID, resourceID, date, iv)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"resource_id": resourceID,
		"date":        date.Format(models.DateLayout),
		"start_time":  iv.Start,
		"end_time":    iv.End,
		"available":   available,
	})
}
