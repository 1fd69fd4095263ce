package handlers

import (
	"context"
	"net/http"

	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/courtly/court-booking-backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AccessCodeChecker validates court access codes
type AccessCodeChecker interface {
	ValidateAccessCode(ctx context.Context, tenantID int64, code string) (*models.Booking, error)
	Check(ctx context.Context, tenantID int64, code, userAgent string) (*models.AccessCodeCheck, error)
}

// AccessCodeLimiter throttles clients that keep presenting invalid codes
type AccessCodeLimiter interface {
	CheckAccessCodeRateLimit(ctx context.Context, tenantID int64, ip string) error
	RecordFailedAttempt(ctx context.Context, tenantID int64, ip string) error
}

// AccessCodeHandler serves the check-in kiosk
type AccessCodeHandler struct {
	codes   AccessCodeChecker
	limiter AccessCodeLimiter
	logger  *logrus.Logger
}

// NewAccessCodeHandler creates a new access code handler. limiter may be nil.
func NewAccessCodeHandler(codes AccessCodeChecker, limiter AccessCodeLimiter, logger *logrus.Logger) *AccessCodeHandler {
	return &AccessCodeHandler{codes: codes, limiter: limiter, logger: logger}
}

func (h *AccessCodeHandler) checkLimit(c *gin.Context, tenantID int64) bool {
	if h.limiter == nil {
		return true
	}
	if err := h.limiter.CheckAccessCodeRateLimit(c.Request.Context(), tenantID, utils.GetRealIP(c)); err != nil {
		respondError(c, h.logger, err)
		return false
	}
	return true
}

func (h *AccessCodeHandler) recordFailure(c *gin.Context, tenantID int64) {
	if h.limiter == nil {
		return
	}
	ip := utils.GetRealIP(c)
	if err := h.limiter.RecordFailedAttempt(c.Request.Context(), tenantID, ip); err != nil {
		h.logger.WithError(err).WithField("ip", ip).Warn("Failed to record access code attempt")
	}
}

// Validate handles POST /api/v1/access-codes/validate. It looks the code
// up without consuming it.
func (h *AccessCodeHandler) Validate(c *gin.Context) {
	tenantID, _, ok := requestScope(c)
	if !ok {
		return
	}

	var req models.ValidateAccessCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if !h.checkLimit(c, tenantID) {
		return
	}

	booking, err := h.codes.ValidateAccessCode(c.Request.Context(), tenantID, req.Code)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if booking == nil {
		h.recordFailure(c, tenantID)
		c.JSON(http.StatusOK, gin.H{
			"valid":   false,
			"message": "Access code is invalid or already used",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":   true,
		"booking": booking,
	})
}

// Check handles POST /api/v1/access-codes/check. A valid code inside its
// time window is consumed.
func (h *AccessCodeHandler) Check(c *gin.Context) {
	tenantID, _, ok := requestScope(c)
	if !ok {
		return
	}

	var req models.ValidateAccessCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if !h.checkLimit(c, tenantID) {
		return
	}

	result, err := h.codes.Check(c.Request.Context(), tenantID, req.Code, utils.GetUserAgent(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if result.Booking == nil {
		h.recordFailure(c, tenantID)
	}

	h.logger.WithFields(logrus.Fields{
		"valid":  result.Valid,
		"ip":     utils.GetRealIP(c),
		"device": result.DeviceLabel,
	}).Info("Access code check")

	c.JSON(http.StatusOK, result)
}
