package models

import (
	"fmt"
	"time"
)

// BookingStatus represents the lifecycle state of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusNoShow    BookingStatus = "no_show"
)

// ActiveBookingStatuses hold a live reservation that blocks availability
var ActiveBookingStatuses = []BookingStatus{BookingStatusPending, BookingStatusConfirmed}

// IsActive reports whether a booking in this status blocks its slot
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

// IsTerminal reports whether no further transitions are allowed
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusCompleted || s == BookingStatusNoShow
}

// CanTransitionTo encodes the booking state machine:
// pending -> confirmed -> completed | no_show, and pending|confirmed -> cancelled.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case BookingStatusPending:
		return next == BookingStatusConfirmed || next == BookingStatusCancelled
	case BookingStatusConfirmed:
		return next == BookingStatusCompleted || next == BookingStatusNoShow || next == BookingStatusCancelled
	default:
		return false
	}
}

// PaymentStatus represents the payment state of a booking
type PaymentStatus string

const (
	PaymentStatusPending       PaymentStatus = "pending"
	PaymentStatusPaid          PaymentStatus = "paid"
	PaymentStatusPartial       PaymentStatus = "partial"
	PaymentStatusRefunded      PaymentStatus = "refunded"
	PaymentStatusRefundPending PaymentStatus = "refund_pending"
)

// Visibility controls whether other members can see the booking
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// IsValid reports whether v is a known visibility
func (v Visibility) IsValid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Booking is the aggregate root for a court booking
type Booking struct {
	ID                int64              `json:"id" db:"id"`
	OrganizationID    int64              `json:"organization_id" db:"organization_id"`
	UserID            int64              `json:"user_id" db:"user_id"`
	ResourceID        int64              `json:"resource_id" db:"resource_id"`
	Status            BookingStatus      `json:"status" db:"status"`
	PaymentStatus     PaymentStatus      `json:"payment_status" db:"payment_status"`
	PaymentMethodKind *PaymentMethodKind `json:"payment_method,omitempty" db:"payment_method"`
	PaymentReference  *string            `json:"payment_reference,omitempty" db:"payment_reference"`
	Visibility        Visibility         `json:"visibility" db:"visibility"`
	AccessCode        *string            `json:"access_code,omitempty" db:"access_code"`
	AccessCodeUsedAt  *time.Time         `json:"access_code_used_at,omitempty" db:"access_code_used_at"`
	CheckInAt         *time.Time         `json:"check_in_at,omitempty" db:"check_in_at"`
	Notes             *string            `json:"notes,omitempty" db:"notes"`
	CreatedAt         time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" db:"updated_at"`

	// Hydrated associations
	Reservations []Reservation        `json:"reservations,omitempty" db:"-"`
	LineItems    []BookingLineItem    `json:"line_items,omitempty" db:"-"`
	Participants []BookingParticipant `json:"participants,omitempty" db:"-"`
	Resource     *Resource            `json:"resource,omitempty" db:"-"`
}

// PaymentMethod returns the tagged payment method, if one has been recorded
func (b *Booking) PaymentMethod() (PaymentMethod, bool) {
	if b.PaymentMethodKind == nil {
		return PaymentMethod{}, false
	}
	pm := PaymentMethod{Kind: *b.PaymentMethodKind}
	if b.PaymentReference != nil {
		pm.Reference = *b.PaymentReference
	}
	return pm, true
}

// SetPaymentMethod records the payment method columns
func (b *Booking) SetPaymentMethod(pm PaymentMethod) {
	kind := pm.Kind
	b.PaymentMethodKind = &kind
	if pm.Reference != "" {
		ref := pm.Reference
		b.PaymentReference = &ref
	} else {
		b.PaymentReference = nil
	}
}

// TotalCents sums every line item; discounts are negative
func (b *Booking) TotalCents() int64 {
	var total int64
	for _, item := range b.LineItems {
		total += item.TotalCents
	}
	return total
}

// CourtFeeCents sums the court_fee line items
func (b *Booking) CourtFeeCents() int64 {
	var total int64
	for _, item := range b.LineItems {
		if item.Type == LineItemCourtFee {
			total += item.TotalCents
		}
	}
	return total
}

// PrimaryReservation returns the first reservation, if loaded
func (b *Booking) PrimaryReservation() (Reservation, bool) {
	if len(b.Reservations) == 0 {
		return Reservation{}, false
	}
	return b.Reservations[0], true
}

// Window returns the absolute start and end of the primary reservation.
// Reservation dates and clock times are venue wall-clock values, so they are
// placed in loc (UTC when nil).
func (b *Booking) Window(loc *time.Location) (start, end time.Time, ok bool) {
	r, ok := b.PrimaryReservation()
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := r.ReservationDate.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return r.StartTime.On(day), r.EndTime.On(day), true
}

// Reservation is the concrete interval consumed by a booking
type Reservation struct {
	ID              int64     `json:"id" db:"id"`
	BookingID       int64     `json:"booking_id" db:"booking_id"`
	ResourceID      int64     `json:"resource_id" db:"resource_id"`
	ReservationDate time.Time `json:"reservation_date" db:"reservation_date"`
	StartTime       ClockTime `json:"start_time" db:"start_time"`
	EndTime         ClockTime `json:"end_time" db:"end_time"`
}

// Interval returns the reservation's time-of-day range
func (r Reservation) Interval() Interval {
	return Interval{Start: r.StartTime, End: r.EndTime}
}

// LineItemType tags a booking line item
type LineItemType string

const (
	LineItemCourtFee       LineItemType = "court_fee"
	LineItemLightFee       LineItemType = "light_fee"
	LineItemRental         LineItemType = "rental"
	LineItemProduct        LineItemType = "product"
	LineItemTax            LineItemType = "tax"
	LineItemDiscount       LineItemType = "discount"
	LineItemCouponDiscount LineItemType = "coupon_discount"
)

// BookingLineItem is a priced line on a booking
type BookingLineItem struct {
	ID             int64        `json:"id" db:"id"`
	BookingID      int64        `json:"booking_id" db:"booking_id"`
	Description    string       `json:"description" db:"description"`
	Quantity       int          `json:"quantity" db:"quantity"`
	UnitPriceCents int64        `json:"unit_price_cents" db:"unit_price_cents"`
	TotalCents     int64        `json:"total_cents" db:"total_cents"`
	Type           LineItemType `json:"type" db:"type"`
}

// BookingParticipant is an additional player on a booking
type BookingParticipant struct {
	ID        int64   `json:"id" db:"id"`
	BookingID int64   `json:"booking_id" db:"booking_id"`
	UserID    *int64  `json:"user_id,omitempty" db:"user_id"`
	Name      string  `json:"name" db:"name"`
	Email     *string `json:"email,omitempty" db:"email"`
}

// BookingSummary is the priced view of a booking
type BookingSummary struct {
	Booking        *Booking          `json:"booking"`
	TotalCents     int64             `json:"total_cents"`
	TotalFormatted string            `json:"total_formatted"`
	LineItems      []BookingLineItem `json:"line_items"`
}

// FormatCents renders minor units with a currency symbol, e.g. $40.00
func FormatCents(symbol string, cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%s%d.%02d", sign, symbol, cents/100, cents%100)
}
