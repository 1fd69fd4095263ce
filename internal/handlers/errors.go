package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/courtly/court-booking-backend/internal/middleware"
	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/courtly/court-booking-backend/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// respondError maps booking-core error kinds to HTTP statuses. Anything
// unrecognised is logged and reported as a 500 without internals.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var verr *models.ValidationError
	var rlErr *models.RateLimitError
	switch {
	case errors.As(err, &rlErr):
		retry := int(time.Until(rlErr.RetryAfter).Seconds())
		if retry < 1 {
			retry = 1
		}
		c.Header("Retry-After", strconv.Itoa(retry))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "rate_limit_exceeded",
			"message":     rlErr.Message,
			"code":        "RATE_LIMITED",
			"retry_after": rlErr.RetryAfter,
			"type":        rlErr.Type,
		})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Request validation failed",
			Code:    "VALIDATION_FAILED",
			Fields:  verr.Fields,
		})
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
			Code:    "VALIDATION_FAILED",
		})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: err.Error(),
			Code:    "NOT_FOUND",
		})
	case errors.Is(err, models.ErrSlotUnavailable):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "slot_unavailable",
			Message: "The selected time slot is not available",
			Code:    "SLOT_UNAVAILABLE",
		})
	case errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "invalid_transition",
			Message: err.Error(),
			Code:    "INVALID_TRANSITION",
		})
	case errors.Is(err, models.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "conflict",
			Message: err.Error(),
			Code:    "CONFLICT",
		})
	case errors.Is(err, models.ErrInsufficientBalance):
		c.JSON(http.StatusPaymentRequired, ErrorResponse{
			Error:   "insufficient_balance",
			Message: "Wallet balance is too low for this payment",
			Code:    "INSUFFICIENT_BALANCE",
		})
	case errors.Is(err, models.ErrGateway):
		logger.WithError(err).Error("Payment gateway failure")
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "payment_gateway_error",
			Message: "The payment provider could not process the request",
			Code:    "GATEWAY_ERROR",
		})
	default:
		logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An unexpected error occurred",
		})
	}
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: "Invalid request body: " + err.Error(),
		Code:    "INVALID_REQUEST",
	})
}

// parseIDParam reads a positive int64 path parameter, writing a 400 when it
// is malformed
func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid " + name + " format",
			Code:    "INVALID_ID",
		})
		return 0, false
	}
	return id, true
}

// requestScope resolves the caller and the tenant the request runs in
func requestScope(c *gin.Context) (int64, middleware.UserContext, bool) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "User context not found",
			Code:    "MISSING_USER_CONTEXT",
		})
		return 0, userCtx, false
	}

	tenantID, ok := middleware.TenantID(c)
	if !ok {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "No organization in scope for this request",
			Code:    "MISSING_ORGANIZATION",
		})
		return 0, userCtx, false
	}
	return tenantID, userCtx, true
}

// isStaff reports whether the caller may act on other users' bookings
func isStaff(u middleware.UserContext) bool {
	return u.IsSuperAdmin() || u.HasRole(jwt.RoleStaff, jwt.RoleAdmin)
}

// queryInt reads an optional non-negative integer query parameter
func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
