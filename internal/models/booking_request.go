package models

import "time"

// CreateBookingRequest is the raw body of a booking request
type CreateBookingRequest struct {
	ResourceID   int64                `json:"resource_id" binding:"required"`
	Date         string               `json:"date" binding:"required"`
	StartTime    string               `json:"start_time" binding:"required"`
	EndTime      string               `json:"end_time" binding:"required"`
	Visibility   string               `json:"visibility"`
	Notes        string               `json:"notes"`
	CouponCode   string               `json:"coupon_code"`
	Participants []ParticipantRequest `json:"participants"`
	// UserID lets staff book on behalf of a customer
	UserID *int64 `json:"user_id,omitempty"`
}

// ParticipantRequest names an extra player
type ParticipantRequest struct {
	UserID *int64  `json:"user_id,omitempty"`
	Name   string  `json:"name"`
	Email  *string `json:"email,omitempty"`
}

// CreateBookingInput is a validated booking request
type CreateBookingInput struct {
	UserID       int64
	ResourceID   int64
	Date         time.Time
	Interval     Interval
	Visibility   Visibility
	Notes        *string
	CouponCode   string
	Participants []BookingParticipant
}

// RescheduleBookingRequest moves a booking to a new slot
type RescheduleBookingRequest struct {
	Date      string `json:"date" binding:"required"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
}

// CancelBookingRequest cancels a booking
type CancelBookingRequest struct {
	IssueRefund *bool `json:"issue_refund"`
}

// ShouldRefund defaults to true when the flag is omitted
func (r *CancelBookingRequest) ShouldRefund() bool {
	return r.IssueRefund == nil || *r.IssueRefund
}

// PayBookingRequest selects how to pay a pending booking
type PayBookingRequest struct {
	PaymentMethod string `json:"payment_method" binding:"required"`
	CouponCode    string `json:"coupon_code"`
	ReturnURL     string `json:"return_url"`
	// CardToken is the tokenized card for gateways that charge directly
	CardToken string `json:"card_token"`
}

// TopUpRequest starts a card-funded wallet top-up
type TopUpRequest struct {
	AmountCents int64  `json:"amount_cents" binding:"required"`
	CardToken   string `json:"card_token"`
	ReturnURL   string `json:"return_url"`
}

// TopUpResponse points the customer at the gateway to finish a top-up
type TopUpResponse struct {
	TopUp       *WalletTopUp `json:"top_up"`
	CheckoutURL string       `json:"checkout_url,omitempty"`
}

// PayBookingResponse reports the payment outcome. CheckoutURL is set when
// the customer must finish paying on the gateway's page.
type PayBookingResponse struct {
	Booking     *Booking `json:"booking"`
	CheckoutURL string   `json:"checkout_url,omitempty"`
	Reference   string   `json:"reference,omitempty"`
}

// ValidateAccessCodeRequest is sent by a check-in kiosk
type ValidateAccessCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// AccessCodeCheck is the kiosk-facing validation result
type AccessCodeCheck struct {
	Valid       bool     `json:"valid"`
	WithinTime  bool     `json:"within_time"`
	Booking     *Booking `json:"booking,omitempty"`
	Message     string   `json:"message"`
	DeviceLabel string   `json:"device,omitempty"`
}

// Slot is a candidate booking interval on a date (YYYY-MM-DD)
type Slot struct {
	Date  string    `json:"date"`
	Start ClockTime `json:"start_time"`
	End   ClockTime `json:"end_time"`
}

// Interval converts the slot to an Interval
func (s Slot) Interval() Interval { return Interval{Start: s.Start, End: s.End} }
